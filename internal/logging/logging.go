package logging

import (
	"io"
	"log"
	"os"

	"cf-quiz-service/internal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup points the standard logger at stdout and, when a log file is
// configured, a size-rotated copy of the same stream.
// The returned closer flushes the rotating file.
func Setup(cfg config.Config) io.Closer {
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds)
	if cfg.Log.File == "" {
		log.SetOutput(os.Stdout)
		return nopCloser{}
	}
	file := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
	}
	log.SetOutput(io.MultiWriter(os.Stdout, file))
	return file
}
