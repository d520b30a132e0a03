package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// LevelCritical sits above slog.LevelError. It is used for responses the
// agent could not make sense of at all.
const LevelCritical = slog.Level(12)

const DefaultLevel = slog.LevelError

var Log = slog.New(slog.NewJSONHandler(os.Stderr, nil))

// Options controls where and how much the agent logs.
type Options struct {
	Level   slog.Level
	LogFile string
}

// ParseLevel maps a --log value onto a slog level. Unknown values fall back
// to DefaultLevel and report ok=false.
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "DEBUG":
		return slog.LevelDebug, true
	case "INFO":
		return slog.LevelInfo, true
	case "WARN", "WARNING":
		return slog.LevelWarn, true
	case "ERROR":
		return slog.LevelError, true
	case "CRITICAL", "FATAL":
		return LevelCritical, true
	default:
		return DefaultLevel, false
	}
}

func Init(opts Options) {
	var writer io.Writer = os.Stderr
	if opts.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.LogFile,
			MaxSize:    10, // MB
			MaxBackups: 0,  // only one file
			MaxAge:     0,  // ignore age
			Compress:   false,
		}
		writer = io.MultiWriter(os.Stderr, rotator)
	}
	Log = New(writer, opts.Level)
	slog.SetDefault(Log)
}

// New builds a JSON logger on w. Exposed so tests can capture output.
func New(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: replaceLevel,
	}))
}

// Critical logs msg at LevelCritical.
func Critical(l *slog.Logger, msg string, args ...any) {
	l.Log(context.Background(), LevelCritical, msg, args...)
}

func replaceLevel(_ []string, a slog.Attr) slog.Attr {
	if a.Key != slog.LevelKey {
		return a
	}
	if lvl, ok := a.Value.Any().(slog.Level); ok && lvl >= LevelCritical {
		a.Value = slog.StringValue("CRITICAL")
	}
	return a
}
