// Package usage appends one NDJSON line per reconciled invocation. The engine
// only ever writes the log; Summarize exists for the CLI.
package usage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"unicode/utf8"
)

// DefaultSnippetLength is the rune limit applied to prompt snippets.
const DefaultSnippetLength = 100

// Log is an append-only usage log.
type Log struct {
	mu         sync.Mutex
	path       string
	snippetLen int
}

// NewLog creates a log writing to path. The file and its directory are
// created on first append.
func NewLog(path string, snippetLen int) *Log {
	if snippetLen <= 0 {
		snippetLen = DefaultSnippetLength
	}
	return &Log{path: path, snippetLen: snippetLen}
}

// Path returns the log location.
func (l *Log) Path() string { return l.path }

// Append writes ev as one line. The snippet is truncated before writing.
func (l *Log) Append(ev Event) error {
	if l == nil {
		return nil
	}
	ev.PromptSnippet = Truncate(ev.PromptSnippet, l.snippetLen)

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal usage event: %w", err)
	}
	line = append(line, '\n')

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open usage log: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		_ = f.Close()
		return fmt.Errorf("append usage log: %w", err)
	}
	return f.Close()
}

// Truncate limits s to n runes.
func Truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

// Summarize reads the log at path and aggregates it. A missing log yields an
// empty summary.
func Summarize(path string) (Summary, error) {
	s := Summary{
		ByInvoked: make(map[string]Counts),
		BySession: make(map[string]Counts),
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			s.Malformed++
			continue
		}
		s.Total.add(ev.Fulfilled)
		addTo(s.ByInvoked, ev.Invoked, ev.Fulfilled)
		session := ev.SessionID
		if session == "" {
			session = "unknown"
		}
		addTo(s.BySession, session, ev.Fulfilled)
	}
	return s, scanner.Err()
}

func addTo(m map[string]Counts, key string, fulfilled bool) {
	c := m[key]
	c.add(fulfilled)
	m[key] = c
}
