package sessionlog

import (
	"log/slog"
	"time"
)

// Entry is one captured log record.
type Entry struct {
	Time    time.Time `json:"time"`
	Level   string    `json:"level"`
	Message string    `json:"message"`
	Source  string    `json:"source,omitempty"`
}

// Ring keeps the most recent log entries.
type Ring struct {
	*Buffer[Entry]
}

// NewRing returns a Ring holding up to capacity entries (minimum 1).
func NewRing(capacity int) *Ring {
	return &Ring{Buffer: NewBuffer[Entry](capacity)}
}

// Capture is an EntryCallback that stores records in the ring.
func (r *Ring) Capture(ts time.Time, level slog.Level, msg string, group string) {
	r.Add(Entry{Time: ts.UTC(), Level: level.String(), Message: msg, Source: group})
}
