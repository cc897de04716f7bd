package log

import (
	"io"
	"log/slog"
	"os"
)

// NewCLIHandler builds the slog.Handler used by the pygr CLI: plain text
// to stderr, with timestamps and source locations only at DEBUG level
// (they add noise at the default WARN/INFO levels a terminal user sees).
func NewCLIHandler(level slog.Level) slog.Handler {
	return newCLIHandler(os.Stderr, level)
}

func newCLIHandler(w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}
	if level > slog.LevelDebug {
		opts.ReplaceAttr = func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		}
	}
	return slog.NewTextHandler(w, opts)
}
