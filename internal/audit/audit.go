// Package audit keeps a JSONL history of past directory-sync sessions,
// using the same flock'd append-only log and lipgloss table rendering
// style as a single-file, rendezvous-code-authenticated transfer tool
// would, but with per-file code/hash fields replaced by session-level
// file-count and byte-total fields: there's no rendezvous code or
// content hash to report here.
package audit

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/gofrs/flock"
)

// LogEntry represents one completed (or failed) directory-sync session.
type LogEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Role       string    `json:"role"` // "sender" or "receiver"
	Root       string    `json:"root"`
	FileCount  int       `json:"file_count"`
	TotalBytes int64     `json:"total_bytes"`
	Status     string    `json:"status"` // "success" or "failed"
	Error      string    `json:"error,omitempty"`
	Duration   float64   `json:"duration_seconds"`
}

var logPathOverride string

// SetLogPathOverride sets a custom path for the log file (for testing).
func SetLogPathOverride(path string) {
	logPathOverride = path
}

// GetLogPath returns the path to the history log file.
func GetLogPath() (string, error) {
	if logPathOverride != "" {
		return logPathOverride, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".jend")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.jsonl"), nil
}

func getLockPath() (string, error) {
	logPath, err := GetLogPath()
	if err != nil {
		return "", err
	}
	return logPath + ".lock", nil
}

// withLock runs action under the history file's exclusive (write) or
// shared (read) lock, depending on exclusive.
func withLock(exclusive bool, action func() error) error {
	lockPath, err := getLockPath()
	if err != nil {
		return err
	}

	fileLock := flock.New(lockPath)
	tryLock := fileLock.TryRLockContext
	kind := "read "
	if exclusive {
		tryLock = fileLock.TryLockContext
		kind = ""
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	locked, err := tryLock(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("failed to acquire %slock: %w", kind, err)
	}
	if !locked {
		return fmt.Errorf("timed out waiting for history %slock", kind)
	}
	defer fileLock.Unlock()

	return action()
}

// WriteEntry appends a log entry to the history file, pruning to the
// most recent 1000 entries if the log has grown past that.
func WriteEntry(entry LogEntry) error {
	return withLock(true, func() error {
		path, err := GetLogPath()
		if err != nil {
			return err
		}

		if entry.ID == "" {
			entry.ID = randomID()
		}
		if entry.Timestamp.IsZero() {
			entry.Timestamp = time.Now()
		}

		entries, err := loadHistoryInternal(path)
		if err == nil && len(entries) >= 1000 {
			all := append([]LogEntry{entry}, entries...)
			sort.Slice(all, func(i, j int) bool {
				return all[i].Timestamp.After(all[j].Timestamp)
			})
			return rewriteHistoryInternal(path, all[:1000])
		}

		return appendEntryInternal(path, entry)
	})
}

// ClearHistory deletes the history log file.
func ClearHistory() error {
	return withLock(true, func() error {
		path, err := GetLogPath()
		if err != nil {
			return err
		}
		err = os.Remove(path)
		if os.IsNotExist(err) {
			return nil
		}
		return err
	})
}

// GetEntry finds a specific log entry by ID (prefix match supported).
func GetEntry(id string) (LogEntry, error) {
	var found LogEntry
	err := withLock(false, func() error {
		path, err := GetLogPath()
		if err != nil {
			return err
		}
		entries, err := loadHistoryInternal(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if strings.HasPrefix(e.ID, id) {
				found = e
				return nil
			}
		}
		return fmt.Errorf("entry not found")
	})
	return found, err
}

// LoadHistory reads all log entries from the history file, newest first.
func LoadHistory() ([]LogEntry, error) {
	var entries []LogEntry
	err := withLock(false, func() error {
		path, err := GetLogPath()
		if err != nil {
			return err
		}
		var loadErr error
		entries, loadErr = loadHistoryInternal(path)
		return loadErr
	})
	return entries, err
}

func loadHistoryInternal(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var entries []LogEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry LogEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Timestamp.After(entries[j].Timestamp)
	})

	return entries, scanner.Err()
}

func rewriteHistoryInternal(path string, entries []LogEntry) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	for i := len(entries) - 1; i >= 0; i-- {
		data, err := json.Marshal(entries[i])
		if err != nil {
			continue
		}
		if _, err := f.Write(append(data, '\n')); err != nil {
			return err
		}
	}
	return nil
}

func appendEntryInternal(path string, entry LogEntry) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	_, err = f.Write(append(data, '\n'))
	return err
}

func randomID() string {
	var b [4]byte
	rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// --- Display logic ---

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	rowStyle = lipgloss.NewStyle().
			Padding(0, 1)

	statusSuccessStr = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")).Render("SUCCESS")
	statusFailStr    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Render("FAILED")
)

func ShowHistory() {
	entries, err := LoadHistory()
	if err != nil {
		fmt.Printf("Error loading history: %v\n", err)
		return
	}

	if len(entries) == 0 {
		fmt.Println("No session history found.")
		return
	}

	fmt.Println("")
	fmt.Printf("%s %s %s %s %s %s %s\n",
		headerStyle.Width(20).Render("DATE"),
		headerStyle.Width(10).Render("ROLE"),
		headerStyle.Width(25).Render("ROOT"),
		headerStyle.Width(10).Render("FILES"),
		headerStyle.Width(10).Render("BYTES"),
		headerStyle.Width(8).Render("TIME"),
		headerStyle.Width(10).Render("STATUS"),
	)
	fmt.Println("")

	for _, e := range entries {
		ts := e.Timestamp.Format("2006-01-02 15:04")
		root := e.Root
		if len(root) > 23 {
			root = root[:20] + "..."
		}
		size := formatBytes(e.TotalBytes)
		duration := fmt.Sprintf("%.1fs", e.Duration)
		status := statusSuccessStr
		if e.Status != "success" {
			status = statusFailStr
		}

		roleStr := lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")).Render("SENDER")
		if e.Role != "sender" {
			roleStr = lipgloss.NewStyle().Foreground(lipgloss.Color("#00FFFF")).Render("RECEIVER")
		}

		fmt.Printf("%s %s %s %s %s %s %s\n",
			rowStyle.Width(20).Render(ts),
			rowStyle.Width(10).Render(roleStr),
			rowStyle.Width(25).Render(root),
			rowStyle.Width(10).Render(fmt.Sprintf("%d", e.FileCount)),
			rowStyle.Width(10).Render(size),
			rowStyle.Width(8).Render(duration),
			rowStyle.Width(10).Render(status),
		)
	}
	fmt.Println("")
}

func ShowDetail(id string) {
	entry, err := GetEntry(id)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}

	fmt.Println("")
	fmt.Println(headerStyle.Render("SESSION DETAILS"))
	fmt.Println("")

	printKV := func(k, v string) {
		fmt.Printf("%s %s\n", lipgloss.NewStyle().Bold(true).Width(15).Foreground(lipgloss.Color("240")).Render(k+":"), v)
	}

	printKV("ID", entry.ID)
	printKV("Date", entry.Timestamp.Format(time.RFC822))
	printKV("Role", strings.ToUpper(entry.Role))
	printKV("Status", entry.Status)
	printKV("Root", entry.Root)
	printKV("Files", fmt.Sprintf("%d", entry.FileCount))
	printKV("Bytes", formatBytes(entry.TotalBytes))
	printKV("Duration", fmt.Sprintf("%.2fs", entry.Duration))
	fmt.Println("")

	if entry.Error != "" {
		fmt.Println(lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF0000")).Render("Error Log:"))
		fmt.Println(entry.Error)
		fmt.Println("")
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
