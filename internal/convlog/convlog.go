// Package convlog writes an optional per-session NDJSON record of each
// coaching conversation.
package convlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Event types.
const (
	EventSessionStart   = "session_start"
	EventUserTranscript = "user_transcript"
	EventCoachReply     = "coach_reply"
	EventSummary        = "session_summary"
	EventSessionEnd     = "session_end"
)

// Config controls conversation logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Event is one line of a conversation log.
type Event struct {
	Timestamp  time.Time      `json:"ts"`
	ClientID   string         `json:"client_id,omitempty"`
	SessionID  string         `json:"session_id"`
	Turn       int            `json:"turn,omitempty"`
	EventType  string         `json:"event_type"`
	Content    string         `json:"content,omitempty"`
	ContentRaw string         `json:"content_raw,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Logger accepts conversation events. Log never blocks the caller.
type Logger interface {
	Log(Event)
	Close() error
}

// Noop discards everything.
type Noop struct{}

func (Noop) Log(Event)    {}
func (Noop) Close() error { return nil }

type fileLogger struct {
	dir    string
	logger *slog.Logger

	mu     sync.Mutex
	closed bool
	queue  chan Event
	done   chan struct{}

	files map[string]*os.File // owned by the writer goroutine
}

// New returns a file-backed Logger, or Noop when logging is disabled.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create conversation log dir: %w", err)
	}

	l := &fileLogger{
		dir:    cfg.Dir,
		logger: logger,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		files:  make(map[string]*os.File),
	}
	go l.run()

	logger.Info("Conversation logging enabled", "dir", cfg.Dir, "queue_size", cfg.QueueSize)
	return l, nil
}

func (l *fileLogger) Log(ev Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if ev.ContentRaw != "" && ev.Content == "" {
		ev.Content = cleanForReadability(ev.ContentRaw)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	select {
	case l.queue <- ev:
	default:
		l.logger.Warn("Conversation log queue full, dropping event",
			"session_id", ev.SessionID,
			"event_type", ev.EventType)
	}
}

func (l *fileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	defer func() {
		for _, f := range l.files {
			_ = f.Close()
		}
	}()

	for ev := range l.queue {
		if err := l.write(ev); err != nil {
			l.logger.Error("Failed to write conversation log",
				"session_id", ev.SessionID,
				"error", err)
		}
		if ev.EventType == EventSessionEnd {
			if f, ok := l.files[ev.SessionID]; ok {
				_ = f.Close()
				delete(l.files, ev.SessionID)
			}
		}
	}
}

func (l *fileLogger) write(ev Event) error {
	f, ok := l.files[ev.SessionID]
	if !ok {
		client := safeName(ev.ClientID)
		if client == "" {
			client = "anonymous"
		}
		dir := filepath.Join(l.dir, client)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create client dir: %w", err)
		}
		var err error
		f, err = os.OpenFile(filepath.Join(dir, safeName(ev.SessionID)+".ndjson"),
			os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		l.files[ev.SessionID] = f
	}

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

var (
	ansiPattern   = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	spacesPattern = regexp.MustCompile(`\s+`)
	unsafeChars   = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// cleanForReadability strips terminal escapes and collapses whitespace.
func cleanForReadability(raw string) string {
	s := ansiPattern.ReplaceAllString(raw, "")
	s = spacesPattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

func safeName(s string) string {
	return unsafeChars.ReplaceAllString(s, "_")
}
