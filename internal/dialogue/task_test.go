package dialogue

import (
	"testing"

	"github.com/vthunder/nudge/internal/timeparse"
	"github.com/vthunder/nudge/internal/vocab"
)

func TestTaskExtractor_Extract(t *testing.T) {
	v := vocab.Default()
	x := NewTaskExtractor(v, timeparse.New(v))

	tests := []struct {
		in   string
		want string
	}{
		{"remind me to call mom", "call mom"},
		{"remind me to call mom tomorrow at 14", "call mom"},
		{"Remind me to water the plants on monday", "water the plants"},
		{"påminn mig att ringa mamma", "ringa mamma"},
		{"buy milk.", "buy milk"},
		{"remind me", ""},
	}
	for _, tt := range tests {
		if got := x.Extract(tt.in, sunday); got != tt.want {
			t.Errorf("Extract(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
