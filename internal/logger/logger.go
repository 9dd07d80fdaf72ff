package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levelNames = map[Level]string{
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
}

func (l Level) String() string { return levelNames[l] }

// ParseLevel accepts debug, info, warn and error in any case.
func ParseLevel(s string) (Level, error) {
	for l, name := range levelNames {
		if strings.EqualFold(s, name) {
			return l, nil
		}
	}
	if strings.EqualFold(s, "warning") {
		return LevelWarn, nil
	}
	return LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Config controls where log lines go. Command output is written to stdout,
// so log lines go to stderr and optionally to File.
type Config struct {
	Level Level
	File  string
}

var (
	mu     sync.Mutex
	level  = LevelWarn
	std    = log.New(os.Stderr, "", log.Ldate|log.Ltime)
	closer io.Closer
)

// Setup replaces the output and level. It may be called more than once.
func Setup(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	var out io.Writer = os.Stderr
	var c io.Closer
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o755); err != nil {
			return fmt.Errorf("logger: create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("logger: open %s: %w", cfg.File, err)
		}
		out = io.MultiWriter(os.Stderr, f)
		c = f
	}
	if closer != nil {
		_ = closer.Close()
	}
	closer = c
	level = cfg.Level
	std = log.New(out, "", log.Ldate|log.Ltime)
	return nil
}

// SetOutput redirects log lines to w, mainly for tests.
func SetOutput(w io.Writer, l Level) {
	mu.Lock()
	defer mu.Unlock()
	level = l
	std = log.New(w, "", 0)
}

func Enabled(l Level) bool {
	mu.Lock()
	defer mu.Unlock()
	return l >= level
}

func logMessage(l Level, format string, v ...any) {
	mu.Lock()
	defer mu.Unlock()
	if l < level {
		return
	}
	_, file, line, _ := runtime.Caller(2)
	std.Printf("[%s] %s:%d - %s", l, filepath.Base(file), line, fmt.Sprintf(format, v...))
}

func LogDebug(format string, v ...any) { logMessage(LevelDebug, format, v...) }
func LogInfo(format string, v ...any)  { logMessage(LevelInfo, format, v...) }
func LogWarn(format string, v ...any)  { logMessage(LevelWarn, format, v...) }
func LogError(format string, v ...any) { logMessage(LevelError, format, v...) }
