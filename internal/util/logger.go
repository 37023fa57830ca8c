// Package util provides logging setup and host inspection helpers.
package util

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const logFilePrefix = "streamtap_"

// LogConfig holds configuration for the logging system.
type LogConfig struct {
	Level      string `json:"level"`
	Directory  string `json:"directory"`
	MaxBackups int    `json:"max_backups"`
	Console    bool   `json:"console"`
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:      "info",
		Directory:  "logs",
		MaxBackups: 5,
		Console:    true,
	}
}

// InitLogger initializes the zerolog global logger with file and console
// output and returns the log file, which the caller closes on exit.
func InitLogger(cfg LogConfig) (*os.File, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if cfg.Directory == "" {
		cfg.Directory = "logs"
	}
	if err := os.MkdirAll(cfg.Directory, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", cfg.Directory, err)
	}

	logFilePath := filepath.Join(cfg.Directory, LogFileName(time.Now()))
	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", logFilePath, err)
	}

	// JSON to the file, human-readable to the console
	writers := []io.Writer{logFile}
	if cfg.Console {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		})
	}

	log.Logger = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("app", "streamtap").
		Logger()

	log.Info().
		Str("level", level.String()).
		Str("log_file", logFilePath).
		Msg("logger initialized")

	if removed := CleanOldLogs(cfg.Directory, cfg.MaxBackups); removed > 0 {
		log.Debug().Int("removed", removed).Msg("old log files removed")
	}

	return logFile, nil
}

// LogFileName returns the date-stamped log file name for t.
func LogFileName(t time.Time) string {
	return logFilePrefix + t.Format("2006-01-02") + ".log"
}

// CleanOldLogs keeps the newest maxBackups log files in directory and
// returns how many were removed. File names sort by date.
func CleanOldLogs(directory string, maxBackups int) int {
	if maxBackups <= 0 {
		return 0
	}
	entries, err := os.ReadDir(directory)
	if err != nil {
		return 0
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() && strings.HasPrefix(name, logFilePrefix) && filepath.Ext(name) == ".log" {
			names = append(names, name)
		}
	}
	if len(names) <= maxBackups {
		return 0
	}

	sort.Strings(names)
	removed := 0
	for _, name := range names[:len(names)-maxBackups] {
		path := filepath.Join(directory, name)
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("file", path).Msg("failed to remove old log file")
			continue
		}
		removed++
	}
	return removed
}

// ComponentLogger creates a logger with a component name field.
func ComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
