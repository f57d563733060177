// Package logx routes the standard logger through a level filter.
// Lines carry their level as a bare word (DEBUG, WARN, ERROR) after the
// component tag, e.g. "[LOADER] WARN skipped row 12".
package logx

import (
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
)

// Level is a log severity
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var mu sync.Mutex

type leveledWriter struct {
	minLevel Level
	target   io.Writer
}

func (w *leveledWriter) Write(p []byte) (int, error) {
	if levelFromMessage(string(p)) < w.minLevel {
		return len(p), nil
	}
	return w.target.Write(p)
}

// ParseLevel maps a config string to a Level
func ParseLevel(level string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// Setup installs the level filter on the standard logger
func Setup(level string, target io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	log.SetOutput(&leveledWriter{minLevel: lvl, target: target})
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return nil
}

func levelFromMessage(msg string) Level {
	for _, field := range strings.Fields(msg) {
		switch field {
		case "DEBUG":
			return LevelDebug
		case "WARN":
			return LevelWarn
		case "ERROR":
			return LevelError
		}
	}
	return LevelInfo
}
