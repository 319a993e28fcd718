// Package vocab loads the word lists used to recognize days, times and
// commands in chat messages.
package vocab

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var defaultYAML []byte

// Vocabulary is the YAML-defined set of recognized words and phrases
type Vocabulary struct {
	Weekdays map[string][]string `yaml:"weekdays"` // english weekday name -> spellings
	Months   map[string][]string `yaml:"months"`   // english month name -> spellings
	Today    []string            `yaml:"today"`
	Tomorrow []string            `yaml:"tomorrow"`
	Next     []string            `yaml:"next"`
	At       []string            `yaml:"at"`
	In       []string            `yaml:"in"`
	Minutes  []string            `yaml:"minutes"`
	Hours    []string            `yaml:"hours"`
	Filler   []string            `yaml:"filler"`

	Stop     []string `yaml:"stop"`
	Snooze   []string `yaml:"snooze"`
	Remind   []string `yaml:"remind"`
	Question []string `yaml:"question"`
	Calendar []string `yaml:"calendar"`
	Free     []string `yaml:"free"`

	weekdayIndex map[string]time.Weekday
	monthIndex   map[string]time.Month
}

var weekdayNames = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
	"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
	"saturday": time.Saturday,
}

var monthNames = map[string]time.Month{
	"january": time.January, "february": time.February, "march": time.March,
	"april": time.April, "may": time.May, "june": time.June, "july": time.July,
	"august": time.August, "september": time.September, "october": time.October,
	"november": time.November, "december": time.December,
}

// Default returns the built-in English and Swedish vocabulary
func Default() *Vocabulary {
	v, err := Parse(defaultYAML)
	if err != nil {
		panic(fmt.Sprintf("vocab: embedded default is invalid: %v", err))
	}
	return v
}

// Load reads a vocabulary file. An empty path returns the default.
func Load(path string) (*Vocabulary, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary: %w", err)
	}
	return Parse(data)
}

// Parse builds a vocabulary from YAML
func Parse(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if err := v.index(); err != nil {
		return nil, err
	}
	return &v, nil
}

func (v *Vocabulary) index() error {
	v.weekdayIndex = make(map[string]time.Weekday)
	for name, words := range v.Weekdays {
		wd, ok := weekdayNames[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown weekday %q", name)
		}
		v.weekdayIndex[strings.ToLower(name)] = wd
		for _, w := range words {
			v.weekdayIndex[strings.ToLower(w)] = wd
		}
	}

	v.monthIndex = make(map[string]time.Month)
	for name, words := range v.Months {
		m, ok := monthNames[strings.ToLower(name)]
		if !ok {
			return fmt.Errorf("unknown month %q", name)
		}
		v.monthIndex[strings.ToLower(name)] = m
		for _, w := range words {
			v.monthIndex[strings.ToLower(w)] = m
		}
	}
	return nil
}

// Weekday resolves a single word to a weekday
func (v *Vocabulary) Weekday(word string) (time.Weekday, bool) {
	wd, ok := v.weekdayIndex[strings.ToLower(word)]
	return wd, ok
}

// Month resolves a single word to a month
func (v *Vocabulary) Month(word string) (time.Month, bool) {
	m, ok := v.monthIndex[strings.ToLower(word)]
	return m, ok
}

// WeekdayWords returns every spelling that names a weekday
func (v *Vocabulary) WeekdayWords() []string {
	return keys(v.weekdayIndex)
}

// MonthWords returns every spelling that names a month
func (v *Vocabulary) MonthWords() []string {
	return keys(v.monthIndex)
}

func keys[T any](m map[string]T) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// IsStop reports whether the whole message is a stop word
func (v *Vocabulary) IsStop(text string) bool {
	t := normalize(text)
	for _, w := range v.Stop {
		if t == w {
			return true
		}
	}
	return false
}

// ContainsAny reports whether text contains any of the phrases as whole words
func ContainsAny(text string, phrases []string) bool {
	t := " " + normalize(text) + " "
	for _, p := range phrases {
		if strings.Contains(t, " "+p+" ") {
			return true
		}
	}
	return false
}

// StripPrefix removes the longest matching phrase from the start of text
func StripPrefix(text string, phrases []string) (string, bool) {
	t := normalize(text)
	best := ""
	for _, p := range phrases {
		if (t == p || strings.HasPrefix(t, p+" ")) && len(p) > len(best) {
			best = p
		}
	}
	if best == "" {
		return t, false
	}
	return strings.TrimSpace(t[len(best):]), true
}

// normalize lower-cases text, collapses whitespace and drops trailing punctuation
func normalize(text string) string {
	t := strings.ToLower(strings.Join(strings.Fields(text), " "))
	return strings.TrimRight(t, ".!?,;")
}

// Normalize is the canonical form used for all vocabulary matching
func Normalize(text string) string {
	return normalize(text)
}
