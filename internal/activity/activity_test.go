package activity

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/vthunder/nudge/internal/logging"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

// helper: open a pure-Go journal in a temp directory
func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := Open("sqlite", filepath.Join(t.TempDir(), "state", "activity.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

// --- Basic write/read ---

func TestLog_WriteAndRecent(t *testing.T) {
	log := newTestLog(t)

	ts := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	err := log.Log(Entry{
		Timestamp: ts,
		Type:      TypeInput,
		User:      "web:1",
		Summary:   "hello world",
		Source:    "web",
		Data:      map[string]any{"length": 11},
	})
	if err != nil {
		t.Fatalf("Log: %v", err)
	}

	entries, err := log.Recent(10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Type != TypeInput || e.User != "web:1" || e.Summary != "hello world" || e.Source != "web" {
		t.Errorf("unexpected entry %+v", e)
	}
	if !e.Timestamp.Equal(ts) {
		t.Errorf("expected timestamp %v, got %v", ts, e.Timestamp)
	}
	// JSON numbers come back as float64
	if e.Data["length"] != float64(11) {
		t.Errorf("expected data length 11, got %v", e.Data["length"])
	}
}

func TestLog_DefaultsTimestamp(t *testing.T) {
	log := newTestLog(t)

	before := time.Now()
	if err := log.LogReply("u", "ok"); err != nil {
		t.Fatalf("LogReply: %v", err)
	}
	entries, _ := log.Recent(1)
	if len(entries) != 1 || entries[0].Timestamp.Before(before) {
		t.Errorf("expected timestamp to be set, got %+v", entries)
	}
}

func TestLog_RecentIsChronological(t *testing.T) {
	log := newTestLog(t)
	for _, s := range []string{"one", "two", "three"} {
		log.LogInput("u", "test", s)
	}

	entries, err := log.Recent(2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 2 || entries[0].Summary != "two" || entries[1].Summary != "three" {
		t.Errorf("expected [two three], got %+v", entries)
	}
}

func TestLog_Filters(t *testing.T) {
	log := newTestLog(t)
	log.LogInput("alice", "web", "remind me to call mom")
	log.LogInput("bob", "discord", "done")
	log.LogError("alice", "fetch failed", errors.New("timeout"))

	byUser, _ := log.ByUser("alice", 10)
	if len(byUser) != 2 {
		t.Errorf("expected 2 entries for alice, got %d", len(byUser))
	}

	byType, _ := log.ByType(TypeError, 10)
	if len(byType) != 1 || byType[0].Data["error"] != "timeout" {
		t.Errorf("expected 1 error entry, got %+v", byType)
	}

	found, _ := log.Search("MOM", 10)
	if len(found) != 1 || found[0].User != "alice" {
		t.Errorf("expected case-insensitive search hit, got %+v", found)
	}
}

func TestLog_Concurrent(t *testing.T) {
	log := newTestLog(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := log.LogInput("u", "test", "msg"); err != nil {
				t.Errorf("LogInput: %v", err)
			}
		}()
	}
	wg.Wait()

	entries, _ := log.Recent(100)
	if len(entries) != 20 {
		t.Errorf("expected 20 entries, got %d", len(entries))
	}
}

func TestLog_NilIsNoop(t *testing.T) {
	var log *Log
	if err := log.LogInput("u", "test", "x"); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}
	if entries, err := log.Recent(5); err != nil || entries != nil {
		t.Errorf("expected nothing from nil log, got %v %v", entries, err)
	}
	if err := log.Close(); err != nil {
		t.Errorf("expected nil close, got %v", err)
	}
}

func TestLog_WriteFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	logging.SetLogger(zap.New(core))
	defer logging.SetLogger(zap.NewNop())

	log := newTestLog(t)
	log.Close()

	if err := log.LogInput("u", "test", "lost"); err == nil {
		t.Fatal("expected an error writing to a closed journal")
	}
	entries := logs.FilterMessageSnippet("Dropped input entry").All()
	if len(entries) != 1 {
		t.Errorf("expected 1 warning, got %d", len(logs.All()))
	}
}
