// Package logging builds the one *logrus.Logger each broker or client
// process owns and hands out field-scoped children from it, replacing the
// original system's static logger with an injected sink.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Config controls how a process logger is built.
type Config struct {
	Level  logrus.Level
	Output io.Writer // defaults to os.Stderr
	JSON   bool
}

// New builds a *logrus.Logger for one process and returns its base entry.
// Callers derive per-component loggers with entry.WithField("component", ...).
func New(cfg Config) *logrus.Entry {
	logger := logrus.New()

	logger.SetLevel(cfg.Level)

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	logger.SetOutput(out)

	if cfg.JSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	return logrus.NewEntry(logger)
}
