package logging

import (
	"log/slog"
	"os"
	"strings"
)

// InitLogger installs the process-wide default logger. level accepts debug,
// info, warn and error in any case; format selects "json" or "text"
// handlers. Unrecognized values fall back to info and text.
func InitLogger(level, format string) {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
