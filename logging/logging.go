// Package logging wraps sirupsen/logrus with the teacher's shared/logger
// call shape: package-level Debug/Info/Warn/Error helpers taking a
// message and an optional structured context.
package logging

import "github.com/sirupsen/logrus"

// Ctx is a set of structured fields attached to a log line, matching the
// teacher's logger.Ctx{...} call convention.
type Ctx map[string]any

var std = logrus.StandardLogger()

// SetLevel adjusts the minimum level logged, by name ("debug", "info",
// "warn", "error"). Unknown names are ignored.
func SetLevel(level string) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return
	}

	std.SetLevel(lvl)
}

func fields(ctx []Ctx) logrus.Fields {
	f := logrus.Fields{}
	for _, c := range ctx {
		for k, v := range c {
			f[k] = v
		}
	}

	return f
}

// Debug logs msg at debug level with optional structured context.
func Debug(msg string, ctx ...Ctx) {
	std.WithFields(fields(ctx)).Debug(msg)
}

// Info logs msg at info level with optional structured context.
func Info(msg string, ctx ...Ctx) {
	std.WithFields(fields(ctx)).Info(msg)
}

// Warn logs msg at warn level with optional structured context.
func Warn(msg string, ctx ...Ctx) {
	std.WithFields(fields(ctx)).Warn(msg)
}

// Error logs msg at error level with optional structured context.
func Error(msg string, ctx ...Ctx) {
	std.WithFields(fields(ctx)).Error(msg)
}
