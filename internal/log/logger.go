package log

import (
	"io"
	"log/slog"
	"os"
	"regexp"
	"time"

	"github.com/lmittmann/tint"
	"gopkg.in/natefinch/lumberjack.v2"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// fileWriter strips ANSI color codes before writing, since tint's escape
// sequences have no business in a log file meant for grep/tail.
type fileWriter struct{ inner io.Writer }

func (w fileWriter) Write(p []byte) (int, error) {
	if _, err := w.inner.Write(ansiPattern.ReplaceAll(p, nil)); err != nil {
		return 0, err
	}
	return len(p), nil
}

// New builds the scheduler's logger: tint's colorized handler for local
// dev, JSON otherwise, writing to stdout and a size-capped rotating file
// simultaneously, wrapped in ContextHandler for request-id enrichment.
func New(env, logFile string, maxSizeMB, maxBackups int) *slog.Logger {
	if logFile == "" {
		logFile = "scheduler.log"
	}

	rotating := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    maxSizeMB,
		MaxBackups: maxBackups,
	}
	writer := io.MultiWriter(os.Stdout, fileWriter{inner: rotating})

	var inner slog.Handler
	if env == "local" {
		inner = tint.NewHandler(writer, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: time.Kitchen,
		})
	} else {
		inner = slog.NewJSONHandler(writer, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return slog.New(NewContextHandler(inner))
}
