// Package logging настраивает глобальный zerolog-логгер процесса.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Init выставляет уровень и формат глобального логгера.
// level: debug, info, warn, error (по умолчанию info).
// format: console или json (по умолчанию console).
func Init(level, format string) {
	InitWithWriter(level, format, os.Stderr)
}

// InitWithWriter то же, что Init, но пишет в переданный writer.
func InitWithWriter(level, format string, out io.Writer) {
	zerolog.SetGlobalLevel(ParseLevel(level))
	zerolog.TimeFieldFormat = time.RFC3339

	if strings.EqualFold(format, "json") {
		log.Logger = zerolog.New(out).With().Timestamp().Logger()
		return
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.DateTime})
}

// ParseLevel переводит строку в уровень zerolog
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
