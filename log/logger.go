// Package log provides the category-tagged logger used throughout cdpgo.
package log

import (
	"io"
	"regexp"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger and tags every entry with a category, so the
// dial, send and receive paths can be told apart in debug output. An optional
// category filter silences everything that doesn't match.
type Logger struct {
	*logrus.Logger
	debugOverride  bool
	categoryFilter *regexp.Regexp
}

// New returns a Logger writing through the given logrus instance. With
// debugOverride set, debug entries are emitted even when the logrus level
// would normally drop them.
func New(logger *logrus.Logger, debugOverride bool, categoryFilter *regexp.Regexp) *Logger {
	return &Logger{
		Logger:         logger,
		debugOverride:  debugOverride,
		categoryFilter: categoryFilter,
	}
}

// NullLogger returns a Logger that discards everything. Used in tests and as
// the default when a caller passes no logger.
func NullLogger() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return New(l, false, nil)
}

func (l *Logger) Debugf(category, msg string, args ...any) {
	l.logf(logrus.DebugLevel, category, msg, args...)
}

func (l *Logger) Infof(category, msg string, args ...any) {
	l.logf(logrus.InfoLevel, category, msg, args...)
}

func (l *Logger) Warnf(category, msg string, args ...any) {
	l.logf(logrus.WarnLevel, category, msg, args...)
}

func (l *Logger) Errorf(category, msg string, args ...any) {
	l.logf(logrus.ErrorLevel, category, msg, args...)
}

func (l *Logger) logf(level logrus.Level, category, msg string, args ...any) {
	if l.categoryFilter != nil && !l.categoryFilter.MatchString(category) {
		return
	}
	entry := l.Logger.WithField("category", category)
	if level == logrus.DebugLevel && l.debugOverride {
		entry.Printf(msg, args...)
		return
	}
	entry.Logf(level, msg, args...)
}

// DebugMode returns true if the logger level is set to Debug or higher.
func (l *Logger) DebugMode() bool {
	return l.Logger.GetLevel() >= logrus.DebugLevel
}
