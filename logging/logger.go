package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is the logging interface threaded through this module's
// constructors: teb.NewPlanner and teb.NewAdapter accept one and the
// cmd/tebdemo CLI builds one, rather than reaching for a package-level global.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})
	With(keysAndValues ...interface{}) Logger
}

type zapLogger struct {
	sugar *zap.SugaredLogger
}

func (l *zapLogger) Debugw(msg string, keysAndValues ...interface{}) { l.sugar.Debugw(msg, keysAndValues...) }
func (l *zapLogger) Infow(msg string, keysAndValues ...interface{})  { l.sugar.Infow(msg, keysAndValues...) }
func (l *zapLogger) Warnw(msg string, keysAndValues ...interface{})  { l.sugar.Warnw(msg, keysAndValues...) }
func (l *zapLogger) Errorw(msg string, keysAndValues ...interface{}) { l.sugar.Errorw(msg, keysAndValues...) }

func (l *zapLogger) With(keysAndValues ...interface{}) Logger {
	return &zapLogger{sugar: l.sugar.With(keysAndValues...)}
}

// NewLogger builds a Logger that writes through the given Appenders. With no
// appenders it defaults to a single ConsoleAppender over stdout.
func NewLogger(name string, appenders ...Appender) Logger {
	if len(appenders) == 0 {
		appenders = []Appender{NewStdoutAppender()}
	}
	cores := make([]zapcore.Core, 0, len(appenders))
	for _, a := range appenders {
		cores = append(cores, &appenderCore{appender: a, level: zapcore.DebugLevel})
	}
	core := zapcore.NewTee(cores...)
	zl := zap.New(core, zap.AddCaller()).Named(name)
	return &zapLogger{sugar: zl.Sugar()}
}

// testingWriter adapts testing.TB.Logf to io.Writer so NewTestLogger can
// reuse ConsoleAppender's formatting.
type testingWriter struct {
	tb testing.TB
}

func (w testingWriter) Write(p []byte) (int, error) {
	w.tb.Logf("%s", p)
	return len(p), nil
}

// NewTestLogger returns a Logger that routes through t.Logf, the
// go.viam.com/test convention of per-test loggers.
func NewTestLogger(tb testing.TB) Logger {
	return NewLogger("test", NewWriterAppender(testingWriter{tb}))
}

// globalLogger backs the rare package-level fallback (e.g. NewFileAppender's
// own rotation failure, which has no caller-supplied logger to report to).
var globalLogger = NewLogger("logging")

// appenderCore adapts our Appender interface to zapcore.Core so it can be
// combined with zap's own cores via zapcore.NewTee.
type appenderCore struct {
	appender Appender
	level    zapcore.Level
	fields   []zapcore.Field
}

func (c *appenderCore) Enabled(lvl zapcore.Level) bool { return lvl >= c.level }

func (c *appenderCore) With(fields []zapcore.Field) zapcore.Core {
	merged := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	merged = append(merged, c.fields...)
	merged = append(merged, fields...)
	return &appenderCore{appender: c.appender, level: c.level, fields: merged}
}

func (c *appenderCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *appenderCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	all := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	all = append(all, c.fields...)
	all = append(all, fields...)
	return c.appender.Write(entry, all)
}

func (c *appenderCore) Sync() error { return c.appender.Sync() }
