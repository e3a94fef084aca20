// Package config loads an optional settings.json override, using a
// plain Load/Save pattern (read JSON file, fall back to a zero-value
// default on ENOENT) retargeted from relay credentials to the
// sender/receiver root paths.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// Settings holds the transfer-root overrides read from settings.json in
// the working directory.
type Settings struct {
	Path    string `json:"path,omitempty"`    // sender root, default "."
	OutPath string `json:"outpath,omitempty"` // receiver root, default "."
}

const fileName = "settings.json"

// Load reads settings.json from dir. A missing file is not an error: it
// yields the zero-value Settings, whose defaults are applied by
// Resolve.
func Load(dir string) (*Settings, error) {
	data, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, err
	}
	var s Settings
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Resolve applies the "." default to whichever of Path/OutPath the
// settings file left unset.
func (s *Settings) Resolve() (sendRoot, recvRoot string) {
	sendRoot, recvRoot = s.Path, s.OutPath
	if sendRoot == "" {
		sendRoot = "."
	}
	if recvRoot == "" {
		recvRoot = "."
	}
	return sendRoot, recvRoot
}
