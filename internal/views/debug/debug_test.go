package debug

import (
	"log/slog"
	"strings"
	"testing"
)

func TestAddEntry(t *testing.T) {
	log := NewLog(slog.LevelDebug)
	log.Add("chat", "connected")
	entries := log.Entries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	if entries[0].Kind != "chat" {
		t.Errorf("expected kind 'chat', got %q", entries[0].Kind)
	}
}

func TestMaxEntries(t *testing.T) {
	log := NewLog(nil)
	for i := 0; i < maxEntries+50; i++ {
		log.Add("ws", "msg")
	}
	if got := len(log.Entries()); got != maxEntries {
		t.Errorf("expected %d entries, got %d", maxEntries, got)
	}
}

func TestHandlerRecordsSlog(t *testing.T) {
	log := NewLog(slog.LevelInfo)
	logger := slog.New(log)

	logger.Debug("hidden")
	logger.With("component", "chat").Info("history loaded", "count", 3)
	logger.With("component", "screen").WithGroup("frame").Warn("decode failed", "bytes", 12)
	logger.Error("boom", "component", "chat")

	entries := log.Entries()
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d: %+v", len(entries), entries)
	}

	if entries[0].Kind != "chat" || entries[0].Message != "history loaded count=3" {
		t.Errorf("entry 0 = %+v", entries[0])
	}
	if entries[1].Kind != "scr" || entries[1].Message != "decode failed frame.bytes=12" {
		t.Errorf("entry 1 = %+v", entries[1])
	}
	if entries[2].Kind != "err" {
		t.Errorf("errors should be tagged err, got %q", entries[2].Kind)
	}
}

func TestScrollUpDown(t *testing.T) {
	m := New(nil)
	for i := 0; i < 20; i++ {
		m.Log.Add("ws", "msg")
	}
	if m.Offset != 0 {
		t.Fatal("expected offset 0 after adds")
	}

	m.ScrollUp(5)
	if m.Offset != 5 {
		t.Errorf("expected offset 5, got %d", m.Offset)
	}

	m.ScrollDown(3)
	if m.Offset != 2 {
		t.Errorf("expected offset 2, got %d", m.Offset)
	}

	m.ScrollDown(10) // shouldn't go below 0
	if m.Offset != 0 {
		t.Errorf("expected offset 0, got %d", m.Offset)
	}
}

func TestScrollUpCapped(t *testing.T) {
	m := New(nil)
	for i := 0; i < 5; i++ {
		m.Log.Add("ws", "msg")
	}
	m.ScrollUp(100)
	if m.Offset != 4 { // max is len-1
		t.Errorf("expected offset 4, got %d", m.Offset)
	}
}

func TestViewEmpty(t *testing.T) {
	m := New(nil)
	v := m.View(80, 20)
	if !strings.Contains(v, "No events") {
		t.Error("empty view should show 'No events' message")
	}
}

func TestViewWithEntries(t *testing.T) {
	m := New(nil)
	m.Log.Add("ws", "connected")
	m.Log.Add("err", "timeout")
	v := m.View(80, 20)
	if !strings.Contains(v, "connected") {
		t.Error("view should contain 'connected'")
	}
	if !strings.Contains(v, "timeout") {
		t.Error("view should contain 'timeout'")
	}
}
