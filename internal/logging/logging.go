package logging

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	filePrefix = "aguid-"
	fileSuffix = ".log"
	timeFormat = "2006-01-02-15" // hourly rotation
)

// HourlyLogWriter implements io.Writer with hourly log file rotation.
// Each Write is one log line and happens under the mutex, so lines from
// concurrent requests never interleave mid-line.
type HourlyLogWriter struct {
	mu         sync.Mutex
	dir        string
	maxAgeDays int
	current    *os.File
	hour       string // current hour key (YYYY-MM-DD-HH)
}

// NewHourlyLogWriter creates a new hourly-rotating log writer.
func NewHourlyLogWriter(dir string, maxAgeDays int) (*HourlyLogWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log directory %s: %w", dir, err)
	}
	if maxAgeDays <= 0 {
		maxAgeDays = 30
	}
	return &HourlyLogWriter{dir: dir, maxAgeDays: maxAgeDays}, nil
}

// Write implements io.Writer. It rotates the log file when the hour changes.
func (w *HourlyLogWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := time.Now().Format(timeFormat)
	if hour != w.hour {
		if err := w.rotate(hour); err != nil {
			return 0, err
		}
	}

	return w.current.Write(p)
}

// Close flushes and closes the current log file. After Close the writer must
// not be used.
func (w *HourlyLogWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current != nil {
		err := w.current.Close()
		w.current = nil
		return err
	}
	return nil
}

func (w *HourlyLogWriter) rotate(hour string) error {
	if w.current != nil {
		w.current.Close()
	}

	filename := filepath.Join(w.dir, filePrefix+hour+fileSuffix)
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening log file %s: %w", filename, err)
	}

	w.current = f
	w.hour = hour

	// Clean up old logs on rotation.
	go w.Cleanup()

	return nil
}

// Cleanup removes rotated log files older than the configured max age.
// Safe to call from the retention job as well as rotation.
func (w *HourlyLogWriter) Cleanup() {
	CleanupDir(w.dir, w.maxAgeDays)
}

// CleanupDir removes rotated log files in dir older than maxAgeDays.
func CleanupDir(dir string, maxAgeDays int) {
	cutoff := time.Now().AddDate(0, 0, -maxAgeDays)
	pattern := filepath.Join(dir, filePrefix+"*"+fileSuffix)
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return
	}
	for _, path := range matches {
		name := filepath.Base(path)
		hourStr := name[len(filePrefix) : len(name)-len(fileSuffix)]
		t, err := time.Parse(timeFormat, hourStr)
		if err != nil {
			continue
		}
		if t.Before(cutoff) {
			os.Remove(path)
		}
	}
}

// Setup routes the process logger through an hourly-rotating file writer and
// returns it so the caller can Close on shutdown. Output also goes to stderr
// so early startup errors stay visible.
func Setup(logsDir string, maxAgeDays int) (*HourlyLogWriter, error) {
	w, err := NewHourlyLogWriter(logsDir, maxAgeDays)
	if err != nil {
		return nil, err
	}
	log.SetOutput(io.MultiWriter(os.Stderr, w))
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return w, nil
}

// SetupConsole sets up standard console logging (default behavior).
func SetupConsole() {
	log.SetOutput(os.Stderr)
	log.SetFlags(log.LstdFlags)
}
