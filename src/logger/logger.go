package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"orderbook-analytics/src/config"
)

var Logger zerolog.Logger
var logFile *os.File

// InitLogger configures the global zerolog logger. Output always goes to
// stdout and is mirrored to cfg.File when one is set.
func InitLogger(cfg config.LoggingConfig) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	logFile = nil
	if cfg.File != "" && cfg.File != "none" && cfg.File != "disabled" {
		logFile, err = os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			log.Error().Err(err).Msg("Failed to open log file, using stdout only")
			logFile = nil
		}
	}

	Logger = zerolog.New(newWriter(cfg.Format, os.Stdout, logFile)).With().
		Timestamp().
		Logger()

	log.Logger = Logger

	event := Logger.Info().Str("log_level", level.String())
	if logFile != nil {
		event.Str("log_file", cfg.File).Msg("Logger initialized - writing to console and file")
	} else {
		event.Msg("Logger initialized - writing to console only")
	}
}

func newWriter(format string, stdout io.Writer, file *os.File) io.Writer {
	writers := make([]io.Writer, 0, 2)

	if format == "pretty" {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        stdout,
			TimeFormat: time.RFC3339,
		})
	} else {
		writers = append(writers, stdout)
	}

	if file != nil {
		writers = append(writers, file)
	}

	return io.MultiWriter(writers...)
}

func CloseLogger() {
	if logFile != nil {
		_ = logFile.Sync()
		_ = logFile.Close()
		logFile = nil
	}
}

func GetLogger() zerolog.Logger {
	return Logger
}
