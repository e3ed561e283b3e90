package applog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	maxFileSize = 5 << 20 // rotate past 5 MB
	generations = 2       // rotated files kept: .1 and .2
	maxValueLen = 200
	truncSuffix = "…"
)

var (
	mu      sync.Mutex
	file    *os.File
	verbose bool
)

// Init opens the log file for appending. Call once at startup.
// An oversized file is rotated first; the last two generations are kept
// (.1, .2). Debug lines are written only when TABHIRTE_DEBUG is set.
// Safe to skip — all log calls become no-ops if not initialized.
func Init(dir string) error {
	path := filepath.Join(dir, "tabhirte.log")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	if info, err := os.Stat(path); err == nil && info.Size() > maxFileSize {
		rotate(path)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	mu.Lock()
	file = f
	verbose = os.Getenv("TABHIRTE_DEBUG") != ""
	mu.Unlock()
	return nil
}

// rotate shifts log generations: .1 becomes .2, the live file becomes .1.
// The oldest generation falls off.
func rotate(path string) {
	for gen := generations; gen > 1; gen-- {
		os.Rename(fmt.Sprintf("%s.%d", path, gen-1), fmt.Sprintf("%s.%d", path, gen))
	}
	os.Rename(path, path+".1")
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.Close()
		file = nil
	}
}

// Info logs a structured event line.
//
//	applog.Info("snapshot.cached", "tabs", len(tabs))
//	applog.Info("grouping.applied", "count", 12)
func Info(event string, kv ...any) {
	write("INFO", event, nil, kv)
}

// Debug logs a structured event line, dropped unless TABHIRTE_DEBUG was
// set at Init. For per-message noise like op dispatch traces.
func Debug(event string, kv ...any) {
	mu.Lock()
	v := verbose
	mu.Unlock()
	if !v {
		return
	}
	write("DEBUG", event, nil, kv)
}

// Error logs an event with an error.
//
//	applog.Error("genai.generate", err, "model", model)
func Error(event string, err error, kv ...any) {
	write("ERROR", event, err, kv)
}

func write(level, event string, err error, kv []any) {
	mu.Lock()
	f := file
	mu.Unlock()
	if f == nil {
		return
	}

	var b strings.Builder
	b.WriteString(time.Now().UTC().Format("2006-01-02T15:04:05.000Z"))
	b.WriteByte(' ')
	b.WriteString(level)
	b.WriteByte(' ')
	b.WriteString(event)

	if err != nil {
		b.WriteString(" err=")
		b.WriteString(quote(err.Error()))
	}

	for i := 0; i+1 < len(kv); i += 2 {
		b.WriteByte(' ')
		b.WriteString(fmt.Sprint(kv[i]))
		b.WriteByte('=')
		b.WriteString(quote(fmt.Sprint(kv[i+1])))
	}
	b.WriteByte('\n')

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		file.WriteString(b.String())
	}
}

func quote(s string) string {
	if len(s) > maxValueLen {
		s = s[:maxValueLen] + truncSuffix
	}
	if strings.ContainsAny(s, " \t\n\"") {
		return "\"" + strings.ReplaceAll(s, "\"", "\\\"") + "\""
	}
	return s
}
