package sessionlog

import (
	"bytes"
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestTeeHandlerForwardsAndCaptures(t *testing.T) {
	var buf bytes.Buffer
	ring := NewRing(4)
	logger := slog.New(NewTeeHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}), slog.LevelWarn, ring.Capture))

	logger.Debug("[DEBUG-TEST] quiet")
	logger.Warn("[WARN-TEST] loud", "k", "v")
	logger.WithGroup("daemon").Error("[ERROR-TEST] grouped")

	if !strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Fatalf("base handler output = %q, want every record", buf.String())
	}
	entries := ring.Snapshot()
	if len(entries) != 2 {
		t.Fatalf("captured %d entries, want 2", len(entries))
	}
	if entries[0].Message != "[WARN-TEST] loud" || entries[0].Level != "WARN" || entries[0].Source != "" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if entries[1].Source != "daemon" || entries[1].Level != "ERROR" {
		t.Errorf("entries[1] = %+v", entries[1])
	}
}

func TestTeeHandlerNestedGroupsAndAttrs(t *testing.T) {
	var groups []string
	h := NewTeeHandler(slog.NewTextHandler(&bytes.Buffer{}, nil), slog.LevelInfo,
		func(_ time.Time, _ slog.Level, _ string, group string) { groups = append(groups, group) })

	logger := slog.New(h).WithGroup("a").With("x", 1).WithGroup("b")
	logger.Info("nested")

	if len(groups) != 1 || groups[0] != "a.b" {
		t.Fatalf("groups = %v, want [a.b]", groups)
	}
	if h.WithGroup("") != h {
		t.Fatal("WithGroup(\"\") must return the receiver")
	}
	if h.WithAttrs(nil) != h {
		t.Fatal("WithAttrs(nil) must return the receiver")
	}
}

func TestTeeHandlerSurvivesCallbackPanic(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewTeeHandler(slog.NewTextHandler(&buf, nil), slog.LevelInfo,
		func(time.Time, slog.Level, string, string) { panic("callback bug") }))

	logger.Info("first")
	logger.Info("second")
	if !strings.Contains(buf.String(), "second") {
		t.Fatalf("output = %q, want logging to continue after a callback panic", buf.String())
	}
}

func TestRingOverwritesOldest(t *testing.T) {
	ring := NewRing(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		ring.Add(Entry{Message: msg})
	}
	got := ring.Snapshot()
	var msgs []string
	for _, e := range got {
		msgs = append(msgs, e.Message)
	}
	if strings.Join(msgs, ",") != "c,d,e" {
		t.Fatalf("Snapshot() = %v, want [c d e]", msgs)
	}
	if ring.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", ring.Len())
	}
}

func TestRingPartiallyFilled(t *testing.T) {
	ring := NewRing(0)
	if got := ring.Snapshot(); len(got) != 0 {
		t.Fatalf("empty ring Snapshot() = %v", got)
	}
	ring.Add(Entry{Message: "only"})
	if got := ring.Snapshot(); len(got) != 1 || got[0].Message != "only" {
		t.Fatalf("Snapshot() = %v", got)
	}
}

func TestBufferNewest(t *testing.T) {
	type record struct {
		id   int
		kind string
	}
	buf := NewBuffer[record](3)
	for i, kind := range []string{"a", "b", "a", "c"} {
		buf.Add(record{id: i, kind: kind})
	}

	tests := []struct {
		name  string
		kind  string
		limit int
		want  []int
	}{
		{name: "wraps and keeps newest", limit: 10, want: []int{3, 2, 1}},
		{name: "limit", limit: 2, want: []int{3, 2}},
		{name: "zero limit", limit: 0, want: nil},
		{name: "filter", kind: "a", limit: 10, want: []int{2}},
		{name: "no match", kind: "zzz", limit: 10, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var keep func(record) bool
			if tt.kind != "" {
				keep = func(r record) bool { return r.kind == tt.kind }
			}
			var got []int
			for _, r := range buf.Newest(tt.limit, keep) {
				got = append(got, r.id)
			}
			if !slices.Equal(got, tt.want) {
				t.Fatalf("Newest(%d) = %v, want %v", tt.limit, got, tt.want)
			}
		})
	}
}
