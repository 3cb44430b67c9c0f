// Package logging builds the logrus entry every component derives its logger
// from.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"

	"github.com/course-search/backend/internal/config"
)

// New creates a logger for service. An unknown level falls back to info and
// is reported once on the returned entry.
func New(cfg config.LoggingConfig, service string) *logrus.Entry {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)

	switch cfg.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	entry := logger.WithField("service", service)

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
		entry.WithField("level", cfg.Level).Warn("Unknown log level, using info")
		return entry
	}
	logger.SetLevel(level)
	return entry
}
