// Package logx centralizes structured logging for the session. Grounded
// on github.com/docker/model-runner (leo-pony-model-runner)'s use of
// sirupsen/logrus as its sole logging library; darkprince558-JEND has no
// structured logger of its own (it logs ad hoc via fmt.Println and
// progress messages), so this is where the ambient logging stack the
// rest of the pack shows comes from.
package logx

import (
	"os"

	"github.com/sirupsen/logrus"
)

var log = newLogger()

func newLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if os.Getenv("JEND_DEBUG") != "" {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// Log returns the process-wide logger.
func Log() *logrus.Logger { return log }

// WithField is a shorthand for Log().WithField.
func WithField(key string, value interface{}) *logrus.Entry {
	return log.WithField(key, value)
}
