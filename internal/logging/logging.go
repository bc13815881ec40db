// Package logging wraps logrus behind a small collaborator interface,
// injected into every subsystem constructor rather than reached for as a
// package-level global.
package logging

import (
	"encoding/hex"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the structured logger collaborator interface named in spec.md
// §6: debug/info/warn/error/fatal plus a child-context helper.
type Logger struct {
	entry *logrus.Entry
}

// New builds a root Logger writing JSON lines to stderr at the given level
// name ("debug", "info", "warn", "error").
func New(level string) *Logger {
	base := logrus.New()
	base.SetOutput(os.Stderr)
	base.SetFormatter(&logrus.JSONFormatter{})
	if lvl, err := logrus.ParseLevel(level); err == nil {
		base.SetLevel(lvl)
	} else {
		base.SetLevel(logrus.InfoLevel)
	}
	return &Logger{entry: logrus.NewEntry(base)}
}

// With returns a child logger carrying the given structured fields, the
// collaborator-interface "child-context helper" spec.md §6 requires.
func (l *Logger) With(fields map[string]any) *Logger {
	return &Logger{entry: l.entry.WithFields(logrus.Fields(fields))}
}

func (l *Logger) Debug(msg string, fields map[string]any) { l.With(fields).entry.Debug(msg) }
func (l *Logger) Info(msg string, fields map[string]any)  { l.With(fields).entry.Info(msg) }
func (l *Logger) Warn(msg string, fields map[string]any)  { l.With(fields).entry.Warn(msg) }
func (l *Logger) Error(msg string, fields map[string]any) { l.With(fields).entry.Error(msg) }
func (l *Logger) Fatal(msg string, fields map[string]any) { l.With(fields).entry.Fatal(msg) }

// ShortHash truncates a byte slice into a readable log value, e.g.
// "dead…beef".
func ShortHash(b []byte) string {
	if len(b) <= 4 {
		return hex.EncodeToString(b)
	}
	return hex.EncodeToString(b[:2]) + "…" + hex.EncodeToString(b[len(b)-2:])
}
