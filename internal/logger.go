package internal

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger returns a JSON logger writing to w and, when configured, to a
// rotated log file. The returned func closes the file.
func newLogger(cfg ApplicationConfig, w io.Writer) (*slog.Logger, func() error) {
	closeFn := func() error { return nil }
	if cfg.LogFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    5,
			MaxBackups: 3,
			MaxAge:     30,
			Compress:   true,
		}
		w = io.MultiWriter(w, rotator)
		closeFn = rotator.Close
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})), closeFn
}
