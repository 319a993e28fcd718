package vocab

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault_Weekdays(t *testing.T) {
	v := Default()

	tests := []struct {
		word string
		want time.Weekday
	}{
		{"monday", time.Monday},
		{"Wednesday", time.Wednesday},
		{"måndag", time.Monday},
		{"FREDAG", time.Friday},
		{"söndag", time.Sunday},
	}
	for _, tt := range tests {
		got, ok := v.Weekday(tt.word)
		if !ok {
			t.Errorf("Weekday(%q) not recognized", tt.word)
			continue
		}
		if got != tt.want {
			t.Errorf("Weekday(%q) = %v, want %v", tt.word, got, tt.want)
		}
	}

	if _, ok := v.Weekday("sun"); ok {
		t.Error("Ambiguous abbreviation 'sun' should not be a weekday")
	}
}

func TestDefault_Months(t *testing.T) {
	v := Default()
	if m, ok := v.Month("mars"); !ok || m != time.March {
		t.Errorf("Expected mars -> March, got %v %v", m, ok)
	}
	if m, ok := v.Month("Dec"); !ok || m != time.December {
		t.Errorf("Expected Dec -> December, got %v %v", m, ok)
	}
}

func TestIsStop(t *testing.T) {
	v := Default()
	for _, s := range []string{"done", "Done!", " ok ", "thank you", "klar"} {
		if !v.IsStop(s) {
			t.Errorf("Expected %q to be a stop word", s)
		}
	}
	for _, s := range []string{"done with the report", "remind me", ""} {
		if v.IsStop(s) {
			t.Errorf("Did not expect %q to be a stop word", s)
		}
	}
}

func TestStripPrefix_Longest(t *testing.T) {
	v := Default()

	rest, ok := StripPrefix("Remind me to call mom", v.Remind)
	if !ok || rest != "call mom" {
		t.Errorf("Expected 'call mom', got %q (%v)", rest, ok)
	}

	rest, ok = StripPrefix("påminn mig att ringa mamma", v.Remind)
	if !ok || rest != "ringa mamma" {
		t.Errorf("Expected 'ringa mamma', got %q (%v)", rest, ok)
	}

	if _, ok := StripPrefix("call mom", v.Remind); ok {
		t.Error("Expected no prefix match")
	}
}

func TestContainsAny_WholeWords(t *testing.T) {
	if !ContainsAny("Please remind me again", []string{"remind me again"}) {
		t.Error("Expected phrase match")
	}
	if ContainsAny("freedom", []string{"free"}) {
		t.Error("Expected no partial-word match")
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vocab.yaml")
	data := []byte("weekdays:\n  monday: [lundi]\nstop: [fini]\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}

	v, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if wd, ok := v.Weekday("lundi"); !ok || wd != time.Monday {
		t.Errorf("Expected lundi -> Monday")
	}
	if !v.IsStop("fini") {
		t.Error("Expected custom stop word")
	}
}

func TestParse_UnknownWeekday(t *testing.T) {
	if _, err := Parse([]byte("weekdays:\n  funday: [fun]\n")); err == nil {
		t.Error("Expected error for unknown weekday key")
	}
}
