package calendar

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func at(h, m int) time.Time {
	return time.Date(2026, 3, 2, h, m, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a, b Event
		want bool
	}{
		{"back to back", Event{Start: at(10, 0), End: at(11, 0)}, Event{Start: at(11, 0), End: at(12, 0)}, false},
		{"one minute overlap", Event{Start: at(10, 0), End: at(11, 0)}, Event{Start: at(10, 59), End: at(11, 30)}, true},
		{"contained", Event{Start: at(9, 0), End: at(12, 0)}, Event{Start: at(10, 0), End: at(10, 30)}, true},
		{"disjoint", Event{Start: at(8, 0), End: at(9, 0)}, Event{Start: at(13, 0), End: at(14, 0)}, false},
	}
	for _, tt := range tests {
		if got := Overlaps(tt.a, tt.b); got != tt.want {
			t.Errorf("%s: Overlaps(a, b) = %v, want %v", tt.name, got, tt.want)
		}
		if got := Overlaps(tt.b, tt.a); got != tt.want {
			t.Errorf("%s: Overlaps(b, a) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestNormalizeRSVP(t *testing.T) {
	tests := map[string]RSVP{
		"accepted":    RSVPAccepted,
		"tentative":   RSVPTentative,
		"declined":    RSVPDeclined,
		"needsAction": RSVPNeedsAction,
		"ACCEPTED":    RSVPAccepted,
		"":            RSVPNeedsAction,
		"whatever":    RSVPNeedsAction,

		// Microsoft Graph
		"tentativelyAccepted": RSVPTentative,
		"organizer":           RSVPAccepted,
		"notResponded":        RSVPNeedsAction,
		"none":                RSVPNeedsAction,
	}
	for in, want := range tests {
		if got := NormalizeRSVP(in); got != want {
			t.Errorf("NormalizeRSVP(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestFreeSlots(t *testing.T) {
	// Monday 2 March 2026, 08:00
	from := at(8, 0)
	events := []Event{
		{ID: "a", Start: at(9, 0), End: at(10, 30), RSVP: RSVPAccepted},
		{ID: "b", Start: at(11, 0), End: at(12, 0), RSVP: RSVPNeedsAction}, // not busy
		{ID: "c", Start: at(11, 30), End: at(16, 30), RSVP: RSVPTentative},
	}

	slots := FreeSlots(events, from, SlotConfig{})
	if len(slots) != 3 {
		t.Fatalf("Expected 3 slots, got %d", len(slots))
	}
	if !slots[0].Start.Equal(at(10, 30)) {
		t.Errorf("Expected first slot at 10:30, got %v", slots[0].Start)
	}
	// Next free hour is Tuesday morning
	tuesday := time.Date(2026, 3, 3, 9, 0, 0, 0, time.UTC)
	if !slots[1].Start.Equal(tuesday) {
		t.Errorf("Expected second slot Tuesday 09:00, got %v", slots[1].Start)
	}
	for _, s := range slots {
		if s.End.Sub(s.Start) != time.Hour {
			t.Errorf("Expected 1h slots, got %v", s.End.Sub(s.Start))
		}
	}
}

func TestFreeSlots_NeverInThePast(t *testing.T) {
	from := at(15, 20)
	slots := FreeSlots(nil, from, SlotConfig{Limit: 1})
	if len(slots) != 1 || !slots[0].Start.Equal(from) {
		t.Errorf("Expected a slot starting now, got %v", slots)
	}

	late := at(16, 30)
	slots = FreeSlots(nil, late, SlotConfig{Limit: 1})
	if len(slots) != 1 || slots[0].Start.Day() != 3 {
		t.Errorf("Expected the first slot on the next day, got %v", slots)
	}
}

func TestMemorySource(t *testing.T) {
	src := NewMemorySource()
	ctx := context.Background()

	if _, err := src.FetchEvents(ctx, "u", at(0, 0), at(23, 0)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}

	src.Set("u", []Event{
		{ID: "late", Start: at(15, 0), End: at(16, 0)},
		{ID: "early", Start: at(9, 0), End: at(10, 0)},
		{ID: "outside", Start: at(20, 0), End: at(21, 0)},
	})
	events, err := src.FetchEvents(ctx, "u", at(8, 0), at(18, 0))
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if len(events) != 2 || events[0].ID != "early" {
		t.Errorf("Expected 2 sorted events, got %+v", events)
	}

	boom := errors.New("boom")
	src.Fail("u", boom)
	if _, err := src.FetchEvents(ctx, "u", at(8, 0), at(18, 0)); !errors.Is(err, boom) {
		t.Errorf("Expected injected error, got %v", err)
	}
	if src.Calls("u") != 3 {
		t.Errorf("Expected 3 calls, got %d", src.Calls("u"))
	}
}

// writeCredentials creates a throwaway service account key file
func writeCredentials(t *testing.T) string {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	der, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		t.Fatal(err)
	}
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	creds, _ := json.Marshal(map[string]string{
		"type":         "service_account",
		"private_key":  string(pemKey),
		"client_email": "nudge@example.iam.gserviceaccount.com",
	})
	path := filepath.Join(t.TempDir(), "creds.json")
	if err := os.WriteFile(path, creds, 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGoogleSource_FetchEvents(t *testing.T) {
	var tokenCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"tok","expires_in":3600,"token_type":"Bearer"}`))
	})
	mux.HandleFunc("/calendars/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if !strings.Contains(r.URL.Path, "alice@example.com") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"items": [
			{"id": "own", "summary": "Focus", "status": "confirmed",
			 "start": {"dateTime": "2026-03-02T10:00:00Z"}, "end": {"dateTime": "2026-03-02T11:00:00Z"}},
			{"id": "invite", "summary": "Sync", "status": "confirmed",
			 "start": {"dateTime": "2026-03-02T10:30:00Z"}, "end": {"dateTime": "2026-03-02T11:30:00Z"},
			 "organizer": {"email": "bob@example.com", "displayName": "Bob"},
			 "attendees": [{"email": "bob@example.com", "responseStatus": "accepted"},
			               {"email": "Alice@example.com", "responseStatus": "needsAction"}]},
			{"id": "gone", "status": "cancelled",
			 "start": {"dateTime": "2026-03-02T12:00:00Z"}, "end": {"dateTime": "2026-03-02T13:00:00Z"}},
			{"id": "holiday", "summary": "Holiday", "status": "confirmed",
			 "start": {"date": "2026-03-03"}, "end": {"date": "2026-03-04"}}
		]}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := NewClient(Config{
		CredentialsFile: writeCredentials(t),
		BaseURL:         srv.URL,
		TokenURL:        srv.URL + "/token",
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	src := NewGoogleSource(client, map[string]string{"web:alice": "alice@example.com"})

	ctx := context.Background()
	events, err := src.FetchEvents(ctx, "web:alice", at(0, 0), at(0, 0).Add(48*time.Hour))
	if err != nil {
		t.Fatalf("FetchEvents failed: %v", err)
	}
	if len(events) != 3 {
		t.Fatalf("Expected 3 events (cancelled skipped), got %d", len(events))
	}

	byID := map[string]Event{}
	for _, e := range events {
		byID[e.ID] = e
	}
	if byID["own"].RSVP != RSVPAccepted {
		t.Errorf("Event without the owner as attendee should be accepted, got %s", byID["own"].RSVP)
	}
	if byID["invite"].RSVP != RSVPNeedsAction {
		t.Errorf("Expected needsAction for invite, got %s", byID["invite"].RSVP)
	}
	if byID["invite"].Organizer != "Bob" {
		t.Errorf("Expected organizer Bob, got %q", byID["invite"].Organizer)
	}
	if !byID["holiday"].AllDay {
		t.Error("Expected all-day event")
	}

	// Token is cached between calls
	if _, err := src.FetchEvents(ctx, "web:alice", at(0, 0), at(23, 0)); err != nil {
		t.Fatalf("Second fetch failed: %v", err)
	}
	if n := tokenCalls.Load(); n != 1 {
		t.Errorf("Expected 1 token request, got %d", n)
	}

	if _, err := src.FetchEvents(ctx, "web:bob", at(0, 0), at(23, 0)); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected for unmapped user, got %v", err)
	}
}
