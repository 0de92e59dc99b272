// Package logbook keeps the diagnostic trail of form activity in a plain text
// file so failed submissions can be inspected after the form closes.
package logbook

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents the severity of a log entry.
type Level string

const (
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const (
	// maxMessageBytes caps a single entry so Tail can always read it back.
	maxMessageBytes = 32 << 10
	// maxLineBytes is the longest line Tail will scan. Files written by older
	// builds may hold entries past maxMessageBytes.
	maxLineBytes = 1 << 20
)

var lineBreaks = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")

// Logbook appends entries to a text file. A nil *Logbook discards everything.
type Logbook struct {
	path  string
	scope string
	clock func() time.Time
	mu    *sync.Mutex
}

// New creates a logbook that writes to the provided path.
func New(path string) (*Logbook, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("logbook: ensure dir: %w", err)
	}
	return &Logbook{
		path:  path,
		clock: func() time.Time { return time.Now().UTC() },
		mu:    &sync.Mutex{},
	}, nil
}

// Scoped returns a logbook writing to the same file with every message
// prefixed by "[scope]".
func (l *Logbook) Scoped(scope string) *Logbook {
	if l == nil {
		return nil
	}
	clone := *l
	clone.scope = strings.TrimSpace(scope)
	return &clone
}

// Path returns the file backing this logbook.
func (l *Logbook) Path() string {
	if l == nil {
		return ""
	}
	return l.path
}

// Append writes a single entry to the logbook.
func (l *Logbook) Append(level Level, message string) {
	if l == nil {
		return
	}
	message = strings.TrimSpace(lineBreaks.Replace(message))
	if len(message) > maxMessageBytes {
		message = message[:maxMessageBytes] + " ... (truncated)"
	}
	if l.scope != "" {
		message = "[" + l.scope + "] " + message
	}
	line := fmt.Sprintf("%s %-5s %s\n", l.clock().Format(time.RFC3339), string(level), message)
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.OpenFile(l.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return
	}
	defer file.Close()
	_, _ = file.WriteString(line)
}

// Tail returns up to maxLines of the most recent entries and the total
// number of entries in the file.
func (l *Logbook) Tail(maxLines int) ([]string, int) {
	if l == nil || maxLines <= 0 {
		return nil, 0
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	file, err := os.Open(l.path)
	if err != nil {
		return nil, 0
	}
	defer file.Close()

	var lines []string
	total := 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineBytes)
	for scanner.Scan() {
		total++
		lines = append(lines, scanner.Text())
		if len(lines) > maxLines {
			lines = lines[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		lines = append(lines, fmt.Sprintf("logbook: read stopped after %d entries: %v", total, err))
		if len(lines) > maxLines {
			lines = lines[1:]
		}
	}
	return lines, total
}

// Info appends an informational entry.
func (l *Logbook) Info(format string, args ...any) {
	l.Append(LevelInfo, fmt.Sprintf(format, args...))
}

// Warn appends a warning entry.
func (l *Logbook) Warn(format string, args ...any) {
	l.Append(LevelWarn, fmt.Sprintf(format, args...))
}

// Error appends an error entry.
func (l *Logbook) Error(format string, args ...any) {
	l.Append(LevelError, fmt.Sprintf(format, args...))
}
