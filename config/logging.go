package config

import (
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/pkg/errors"
)

// LevelTrace is below slog.LevelDebug.
const LevelTrace = slog.LevelDebug - 4

// SlogLevel maps the configured level to a slog level. Unknown levels map
// to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogLevelTrace:
		return LevelTrace
	case LogLevelDebug:
		return slog.LevelDebug
	case LogLevelWarn:
		return slog.LevelWarn
	case LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// OpenOutput returns the writer named by Output. The returned closer is a
// no-op for stdout and stderr.
func (c LogConfig) OpenOutput() (io.Writer, func() error, error) {
	switch c.Output {
	case "", "stdout":
		return os.Stdout, func() error { return nil }, nil
	case "stderr":
		return os.Stderr, func() error { return nil }, nil
	}
	f, err := os.OpenFile(c.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "open log output %s", c.Output)
	}
	return f, f.Close, nil
}

// NewLogger builds a logger writing to w. If level is not nil it is set from
// the configuration and used by the handler, so later changes to level take
// effect without rebuilding the logger.
func (c LogConfig) NewLogger(w io.Writer, level *slog.LevelVar) *slog.Logger {
	if level == nil {
		level = new(slog.LevelVar)
	}
	level.Set(c.Level.SlogLevel())

	opts := &slog.HandlerOptions{
		AddSource: c.AddSource,
		Level:     level,
	}

	var handler slog.Handler
	if c.Format == LogFormatJSON {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	logger := slog.New(handler)
	if len(c.Fields) > 0 {
		keys := make([]string, 0, len(c.Fields))
		for k := range c.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		args := make([]any, 0, 2*len(keys))
		for _, k := range keys {
			args = append(args, k, c.Fields[k])
		}
		logger = logger.With(args...)
	}
	return logger
}
