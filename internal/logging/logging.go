// Package logging creates the per-component loggers used by the daemons.
package logging

import (
	"os"

	"github.com/sirupsen/logrus"
)

var level = logrus.InfoLevel

// SetLevel sets the level for loggers created afterwards.
func SetLevel(l logrus.Level) {
	level = l
}

// ParseLevel sets the level from its name ("debug", "info", ...).
func ParseLevel(name string) error {
	l, err := logrus.ParseLevel(name)
	if err != nil {
		return err
	}
	SetLevel(l)
	return nil
}

// New creates a logger whose entries carry the given prefix field.
func New(prefix string) *logrus.Entry {
	log := logrus.New()
	log.Out = os.Stderr
	log.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	log.Level = level

	return log.WithFields(logrus.Fields{
		"prefix": prefix,
	})
}
