// Package logging builds the process logger from configuration.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/phuslu/log"

	"github.com/seenimoa/thesisai/internal/config"
)

// New returns a logger writing to w at the configured level.
// Format "json" emits one JSON object per line; anything else uses the
// human-readable console writer.
func New(cfg config.LoggingConfig, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	logger := &log.Logger{
		Level:      parseLevel(cfg.Level),
		TimeFormat: "15:04:05",
	}
	if strings.EqualFold(cfg.Format, "json") {
		logger.TimeFormat = ""
		logger.Writer = &log.IOWriter{Writer: w}
	} else {
		logger.Writer = &log.ConsoleWriter{
			Writer:         w,
			ColorOutput:    isTerminal(w),
			EndWithMessage: true,
		}
	}
	return logger
}

// Install replaces the package-level default logger so that code using
// log.Info() directly picks up the configured level and writer.
func Install(logger *log.Logger) {
	if logger != nil {
		log.DefaultLogger = *logger
	}
}

// Nop returns a logger that discards everything.
func Nop() *log.Logger {
	return &log.Logger{Level: log.PanicLevel + 1, Writer: &log.IOWriter{Writer: io.Discard}}
}

func parseLevel(s string) log.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return log.InfoLevel
	case "warning":
		return log.WarnLevel
	default:
		return log.ParseLevel(s)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
