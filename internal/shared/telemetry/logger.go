package telemetry

import (
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	logger = newLogger(os.Stdout, zerolog.InfoLevel, false)
)

func newLogger(w io.Writer, level zerolog.Level, console bool) zerolog.Logger {
	if console {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Configure sets the level and output format for the process logger.
// Dev environments get a human-readable console writer.
func Configure(env, level string) {
	ConfigureWriter(os.Stdout, env, level)
}

// ConfigureWriter is Configure with an explicit destination. The "cli" env
// always uses the console writer.
func ConfigureWriter(w io.Writer, env, level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || strings.TrimSpace(level) == "" {
		lvl = zerolog.InfoLevel
		if env == "dev" || env == "local" {
			lvl = zerolog.DebugLevel
		}
	}
	console := env == "local" || env == "cli"
	mu.Lock()
	logger = newLogger(w, lvl, console)
	mu.Unlock()
}

// SetOutput redirects JSON log output, mainly for tests.
func SetOutput(w io.Writer) {
	mu.Lock()
	logger = newLogger(w, zerolog.DebugLevel, false)
	mu.Unlock()
}

// Logger returns the process logger for callers that want zerolog directly.
func Logger() zerolog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return logger
}

// Debug writes a debug-level log line with the given fields.
func Debug(msg string, fields map[string]any) {
	write(zerolog.DebugLevel, msg, fields)
}

// Info writes an info-level log line with the given fields.
func Info(msg string, fields map[string]any) {
	write(zerolog.InfoLevel, msg, fields)
}

// Warn writes a warn-level log line with the given fields.
func Warn(msg string, fields map[string]any) {
	write(zerolog.WarnLevel, msg, fields)
}

// Error writes an error-level log line with the given fields.
func Error(msg string, fields map[string]any) {
	write(zerolog.ErrorLevel, msg, fields)
}

func write(level zerolog.Level, msg string, fields map[string]any) {
	l := Logger()
	l.WithLevel(level).Fields(fields).Msg(msg)
}
