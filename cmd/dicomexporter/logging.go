package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"

	"github.com/mrsinham/dicomexporter/internal/config"
)

// newLogger returns a console logger on stderr, or a rotating file logger
// when cfg.File is set. The returned func closes the file.
func newLogger(cfg config.LogConfig, stderr io.Writer) (zerolog.Logger, func() error, error) {
	level := zerolog.WarnLevel
	if cfg.Level != "" {
		l, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("invalid log level %q (use debug, info, warn or error)", cfg.Level)
		}
		level = l
	}

	if cfg.File == "" {
		w := zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05"}
		return zerolog.New(w).Level(level).With().Timestamp().Logger(), func() error { return nil }, nil
	}

	l := &lumberjack.Logger{
		Filename: cfg.File,
		MaxSize:  cfg.MaxSizeMB, // megabytes
		MaxAge:   cfg.MaxAgeDays,
	}
	return zerolog.New(l).Level(level).With().Timestamp().Logger(), l.Close, nil
}
