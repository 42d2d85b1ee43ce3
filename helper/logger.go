package helper

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// LogOptions selects the shape of the process logger.
type LogOptions struct {
	Level  string
	Format string // json or text
	Env    string
	Source bool
	Out    io.Writer
}

// redactedKeys are attribute names whose values are credentials.
var redactedKeys = map[string]struct{}{
	"token":         {},
	"session_token": {},
	"access_token":  {},
	"refresh_token": {},
	"password":      {},
	"secret":        {},
}

// InitLogger builds the process logger, installs it as the slog default and
// returns it. Unknown levels fall back to info.
func InitLogger(opts LogOptions) *slog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{
		Level:       ParseLogLevel(opts.Level),
		AddSource:   opts.Source,
		ReplaceAttr: redact,
	}

	var handler slog.Handler
	if strings.EqualFold(opts.Format, "text") {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	logger := slog.New(handler).With(slog.String("service", "consultancy-cms"))
	if opts.Env != "" {
		logger = logger.With(slog.String("env", opts.Env))
	}
	slog.SetDefault(logger)
	return logger
}

func ParseLogLevel(level string) slog.Level {
	level = strings.TrimSpace(level)
	if strings.EqualFold(level, "warning") {
		return slog.LevelWarn
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func redact(_ []string, a slog.Attr) slog.Attr {
	if _, ok := redactedKeys[strings.ToLower(a.Key)]; ok {
		return slog.String(a.Key, "[redacted]")
	}
	return a
}
