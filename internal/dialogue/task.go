package dialogue

import (
	"strings"
	"time"

	"github.com/tsawler/prose/v3"
	"github.com/vthunder/nudge/internal/timeparse"
	"github.com/vthunder/nudge/internal/vocab"
)

// Part-of-speech tags that never start or end a task
var edgeTags = map[string]bool{
	"IN": true, // on, at, by
	"TO": true,
	"CC": true, // and, or
	"DT": true, // the, this
}

// TaskExtractor pulls the task out of a commitment such as
// "remind me to call mom tomorrow at 14"
type TaskExtractor struct {
	v      *vocab.Vocabulary
	parser *timeparse.Parser
}

// NewTaskExtractor creates an extractor using the given vocabulary and parser
func NewTaskExtractor(v *vocab.Vocabulary, parser *timeparse.Parser) *TaskExtractor {
	return &TaskExtractor{v: v, parser: parser}
}

// Extract returns the task text without remind prefixes and day/time words
func (x *TaskExtractor) Extract(text string, now time.Time) string {
	rest, _ := vocab.StripPrefix(text, x.v.Remind)
	rest = x.parser.Strip(rest, now)
	return x.trimEdges(rest)
}

// trimEdges drops connective words left dangling at either end
func (x *TaskExtractor) trimEdges(text string) string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return ""
	}

	tags := make(map[string]string)
	if doc, err := prose.NewDocument(text); err == nil {
		for _, tok := range doc.Tokens() {
			tags[strings.ToLower(tok.Text)] = tok.Tag
		}
	}

	dangling := func(w string) bool {
		lw := strings.ToLower(strings.Trim(w, ".,;:!?"))
		if lw == "" {
			return true
		}
		for _, f := range x.v.Filler {
			if lw == f {
				return true
			}
		}
		return edgeTags[tags[lw]]
	}

	for len(words) > 0 && dangling(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	for len(words) > 0 && dangling(words[0]) {
		words = words[1:]
	}
	return strings.TrimRight(strings.Join(words, " "), ".,;:!?")
}
