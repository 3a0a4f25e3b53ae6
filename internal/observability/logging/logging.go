package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options configures the process logger.
type Options struct {
	// File enables rotation into the given path; empty logs to stdout.
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// New builds the process logger. The returned closer flushes the rotating
// file and is a no-op for stdout.
func New(opts Options) (*log.Logger, io.Closer) {
	if opts.File == "" {
		return log.New(os.Stdout, "", log.LstdFlags), nopCloser{}
	}
	writer := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    orDefault(opts.MaxSizeMB, 10),
		MaxBackups: orDefault(opts.MaxBackups, 3),
		MaxAge:     orDefault(opts.MaxAgeDays, 7),
		Compress:   true,
	}
	return log.New(io.MultiWriter(os.Stdout, writer), "", log.LstdFlags), writer
}

func orDefault(value, fallback int) int {
	if value <= 0 {
		return fallback
	}
	return value
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
