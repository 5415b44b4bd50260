// Package logbuf keeps a bounded in-memory history of log records so
// the daemon can serve recent logs over its admin API without touching
// disk.
package logbuf

import (
	"log/slog"
	"sync"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time      `json:"time"`
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// Buffer is a fixed-capacity ring of log entries. Safe for concurrent
// use.
type Buffer struct {
	mu   sync.Mutex
	ring []Entry
	next int
	full bool
}

// New returns a buffer that retains the most recent capacity entries.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{ring: make([]Entry, capacity)}
}

// Add records an entry, evicting the oldest when the ring is full.
func (b *Buffer) Add(e Entry) {
	b.mu.Lock()
	b.ring[b.next] = e
	b.next++
	if b.next == len(b.ring) {
		b.next = 0
		b.full = true
	}
	b.mu.Unlock()
}

// Len reports how many entries are currently retained.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.ring)
	}
	return b.next
}

// Query returns retained entries at or above minLevel, oldest first.
// A zero since means no time filter; limit <= 0 means no cap. When a
// cap applies the newest matches win.
func (b *Buffer) Query(since time.Time, minLevel slog.Level, limit int) []Entry {
	var out []Entry
	for _, e := range b.snapshot() {
		if !since.IsZero() && e.Time.Before(since) {
			continue
		}
		if ParseLevel(e.Level) < minLevel {
			continue
		}
		out = append(out, e)
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// snapshot copies the retained entries in insertion order.
func (b *Buffer) snapshot() []Entry {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.full {
		return append([]Entry(nil), b.ring[:b.next]...)
	}
	out := make([]Entry, 0, len(b.ring))
	out = append(out, b.ring[b.next:]...)
	out = append(out, b.ring[:b.next]...)
	return out
}

// ParseLevel maps a level name back to slog.Level, defaulting to Info
// for anything unrecognized.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}
