// Package timeparse turns day and time phrases in chat messages into dates.
package timeparse

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vthunder/nudge/internal/vocab"
)

var (
	// ErrUnresolved means the text names neither a day nor a time
	ErrUnresolved = errors.New("timeparse: no day or time found")
	// ErrPast means the resolved time is not in the future
	ErrPast = errors.New("timeparse: time is in the past")
)

var (
	clockRe    = regexp.MustCompile(`^(\d{1,2})[:.](\d{2})$`)
	meridiemRe = regexp.MustCompile(`^(\d{1,2})(?:[:.](\d{2}))?(am|pm)$`)
	dateRe     = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	ordinalRe  = regexp.MustCompile(`^(\d{1,2})(?:st|nd|rd|th|e|a)?$`)
	splitRe    = regexp.MustCompile(`[\s,;!?()"]+`)
	iMorgonRe  = regexp.MustCompile(`(?i)\bi morgon\b`)
)

// Result is what a message says about when something should happen
type Result struct {
	Days     []time.Time   // midnight in the caller's location, in mention order
	Hour     int           // valid when HasTime
	Minute   int           // valid when HasTime
	HasTime  bool          // an hour (and maybe minute) was named
	Relative time.Duration // "in N minutes"; when set the result is already absolute
}

// HasDays reports whether at least one day was named
func (r Result) HasDays() bool {
	return len(r.Days) > 0
}

// Complete reports whether the result pins down at least one instant
func (r Result) Complete() bool {
	return r.Relative > 0 || (r.HasDays() && r.HasTime)
}

// Parser recognizes day and time phrases using a vocabulary
type Parser struct {
	v *vocab.Vocabulary
}

// New creates a parser; nil uses the default vocabulary
func New(v *vocab.Vocabulary) *Parser {
	if v == nil {
		v = vocab.Default()
	}
	return &Parser{v: v}
}

// Parse extracts days and time from text relative to now. The result is in
// now's location. When both a day and a time are present and any combination
// is not after now, ErrPast is returned.
func (p *Parser) Parse(text string, now time.Time) (Result, error) {
	res, _, _ := p.scan(text, now)
	if res.Relative > 0 {
		return res, nil
	}
	if !res.HasDays() && !res.HasTime {
		return Result{}, ErrUnresolved
	}
	if res.HasDays() && res.HasTime {
		if _, err := Resolve(res.Days, res.Hour, res.Minute, now); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Strip returns text without the words that Parse would read as a day or
// time, keeping the original spelling of everything else.
func (p *Parser) Strip(text string, now time.Time) string {
	_, words, used := p.scan(text, now)
	kept := make([]string, 0, len(words))
	for i, w := range words {
		if !used[i] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// scan walks the words of text once for days and once for a time of day.
// It returns the original words and which of them were used.
func (p *Parser) scan(text string, now time.Time) (Result, []string, []bool) {
	words := p.words(text)
	tokens := make([]string, len(words))
	for i, w := range words {
		tokens[i] = strings.TrimSuffix(strings.ToLower(w), ".")
	}
	var res Result
	consumed := make([]bool, len(tokens))
	today := midnight(now)

	addDay := func(d time.Time) {
		for _, existing := range res.Days {
			if existing.Equal(d) {
				return
			}
		}
		res.Days = append(res.Days, d)
	}

	for i := 0; i < len(tokens); i++ {
		if consumed[i] {
			continue
		}
		tok := tokens[i]

		// "in 20 minutes" / "om 2 timmar"
		if p.in(tok) && i+2 < len(tokens) {
			if n, err := strconv.Atoi(tokens[i+1]); err == nil && n > 0 {
				unit := tokens[i+2]
				switch {
				case member(unit, p.v.Minutes):
					res.Relative = time.Duration(n) * time.Minute
				case member(unit, p.v.Hours):
					res.Relative = time.Duration(n) * time.Hour
				}
				if res.Relative > 0 {
					consumed[i], consumed[i+1], consumed[i+2] = true, true, true
					i += 2
					continue
				}
			}
		}

		// 12/3 (day/month)
		if m := dateRe.FindStringSubmatch(tok); m != nil {
			day, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			if d, ok := dateFor(today, day, time.Month(month)); ok {
				addDay(d)
				consumed[i] = true
				continue
			}
		}

		// "3 march" / "3rd of march"
		if m := ordinalRe.FindStringSubmatch(tok); m != nil {
			j := i + 1
			if j < len(tokens) && tokens[j] == "of" {
				j++
			}
			if j < len(tokens) {
				if month, ok := p.v.Month(tokens[j]); ok {
					day, _ := strconv.Atoi(m[1])
					if d, ok := dateFor(today, day, month); ok {
						addDay(d)
						for k := i; k <= j; k++ {
							consumed[k] = true
						}
						i = j
						continue
					}
				}
			}
		}

		// "march 3"
		if month, ok := p.v.Month(tok); ok && i+1 < len(tokens) {
			if m := ordinalRe.FindStringSubmatch(tokens[i+1]); m != nil {
				day, _ := strconv.Atoi(m[1])
				if d, ok := dateFor(today, day, month); ok {
					addDay(d)
					consumed[i], consumed[i+1] = true, true
					i++
					continue
				}
			}
		}

		switch {
		case member(tok, p.v.Today):
			addDay(today)
			consumed[i] = true
			continue
		case member(tok, p.v.Tomorrow):
			addDay(today.AddDate(0, 0, 1))
			consumed[i] = true
			continue
		}

		// "next monday" / "monday"
		if member(tok, p.v.Next) && i+1 < len(tokens) {
			if wd, ok := p.v.Weekday(tokens[i+1]); ok {
				addDay(nextWeekday(today, wd).AddDate(0, 0, 7))
				consumed[i], consumed[i+1] = true, true
				i++
				continue
			}
		}
		if wd, ok := p.v.Weekday(tok); ok {
			addDay(nextWeekday(today, wd))
			consumed[i] = true
			continue
		}
	}

	// Second pass for the time of day so dates above claim their numbers first
	for i := 0; i < len(tokens) && !res.HasTime; i++ {
		if consumed[i] {
			continue
		}
		tok := tokens[i]

		if h, m, ok := p.clock(tokens, i); ok {
			res.Hour, res.Minute, res.HasTime = h, m, true
			markTime(consumed, tokens, i)
			break
		}

		if !p.at(tok) || i+1 >= len(tokens) {
			continue
		}
		if h, m, ok := p.clock(tokens, i+1); ok {
			res.Hour, res.Minute, res.HasTime = h, m, true
			consumed[i] = true
			markTime(consumed, tokens, i+1)
			break
		}
		if h, ok := hour(tokens[i+1]); ok {
			h, _ = p.meridiem(h, tokens, i+2)
			res.Hour, res.HasTime = h, true
			consumed[i] = true
			markTime(consumed, tokens, i+1)
			break
		}
	}

	// A bare number is an hour only right after a day ("tomorrow 14") or as the whole message
	if !res.HasTime {
		for i, tok := range tokens {
			if consumed[i] {
				continue
			}
			h, ok := hour(tok)
			if !ok {
				continue
			}
			afterDay := i > 0 && consumed[i-1] && res.HasDays()
			if afterDay || len(tokens) == 1 {
				h, _ = p.meridiem(h, tokens, i+1)
				res.Hour, res.HasTime = h, true
				markTime(consumed, tokens, i)
				break
			}
		}
	}

	if res.Relative > 0 {
		at := now.Add(res.Relative)
		res.Days = []time.Time{midnight(at)}
		res.Hour, res.Minute, res.HasTime = at.Hour(), at.Minute(), true
	}

	// Fillers between or around used words ("on monday and wednesday") go too
	for i, tok := range tokens {
		if consumed[i] || !member(tok, p.v.Filler) {
			continue
		}
		prev := i > 0 && consumed[i-1]
		next := i+1 < len(tokens) && consumed[i+1]
		if next || (prev && i == len(tokens)-1) {
			consumed[i] = true
		}
	}
	return res, words, consumed
}

// markTime marks tokens[i] and a following "am"/"pm" as used
func markTime(consumed []bool, tokens []string, i int) {
	consumed[i] = true
	if i+1 < len(tokens) && (tokens[i+1] == "am" || tokens[i+1] == "pm") {
		consumed[i+1] = true
	}
}

// Resolve combines days with a time of day. Every instant must be after now.
func Resolve(days []time.Time, hour, minute int, now time.Time) ([]time.Time, error) {
	out := make([]time.Time, 0, len(days))
	for _, d := range days {
		at := time.Date(d.Year(), d.Month(), d.Day(), hour, minute, 0, 0, now.Location())
		if !at.After(now) {
			return nil, ErrPast
		}
		out = append(out, at)
	}
	return out, nil
}

// Instants returns the absolute times a complete result stands for
func (r Result) Instants(now time.Time) ([]time.Time, error) {
	if r.Relative > 0 {
		return []time.Time{now.Add(r.Relative)}, nil
	}
	if !r.Complete() {
		return nil, ErrUnresolved
	}
	return Resolve(r.Days, r.Hour, r.Minute, now)
}

// words splits text on whitespace and punctuation, keeping the original case
func (p *Parser) words(text string) []string {
	// Multi-word day names are folded into single words
	t := iMorgonRe.ReplaceAllString(text, "imorgon")
	raw := splitRe.Split(t, -1)

	words := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.TrimRight(w, ".")
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// clock parses "14:30", "14.30", "2pm" or "2:30pm" at tokens[i]
func (p *Parser) clock(tokens []string, i int) (int, int, bool) {
	tok := tokens[i]
	if m := clockRe.FindStringSubmatch(tok); m != nil {
		h, _ := strconv.Atoi(m[1])
		min, _ := strconv.Atoi(m[2])
		if h > 23 || min > 59 {
			return 0, 0, false
		}
		h, _ = p.meridiem(h, tokens, i+1)
		return h, min, true
	}
	if m := meridiemRe.FindStringSubmatch(tok); m != nil {
		h, _ := strconv.Atoi(m[1])
		min := 0
		if m[2] != "" {
			min, _ = strconv.Atoi(m[2])
		}
		if h < 1 || h > 12 || min > 59 {
			return 0, 0, false
		}
		return applyMeridiem(h, m[3]), min, true
	}
	return 0, 0, false
}

// meridiem adjusts h when tokens[i] is "am" or "pm"
func (p *Parser) meridiem(h int, tokens []string, i int) (int, bool) {
	if i >= len(tokens) || h < 1 || h > 12 {
		return h, false
	}
	switch tokens[i] {
	case "am", "pm":
		return applyMeridiem(h, tokens[i]), true
	}
	return h, false
}

func applyMeridiem(h int, suffix string) int {
	switch {
	case suffix == "pm" && h < 12:
		return h + 12
	case suffix == "am" && h == 12:
		return 0
	}
	return h
}

func (p *Parser) at(tok string) bool {
	return member(tok, p.v.At)
}

func (p *Parser) in(tok string) bool {
	return member(tok, p.v.In)
}

func hour(tok string) (int, bool) {
	if len(tok) > 2 {
		return 0, false
	}
	h, err := strconv.Atoi(tok)
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}

func member(tok string, list []string) bool {
	for _, w := range list {
		if tok == w || tok == strings.TrimSuffix(w, ".") {
			return true
		}
	}
	return false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// nextWeekday returns the first day on or after today that falls on wd
func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	ahead := (int(wd) - int(today.Weekday()) + 7) % 7
	return today.AddDate(0, 0, ahead)
}

// dateFor builds day/month in today's year, rolling to next year for dates already gone
func dateFor(today time.Time, day int, month time.Month) (time.Time, bool) {
	if month < time.January || month > time.December || day < 1 || day > 31 {
		return time.Time{}, false
	}
	d := time.Date(today.Year(), month, day, 0, 0, 0, 0, today.Location())
	if d.Day() != day {
		return time.Time{}, false // e.g. 31/4
	}
	if d.Before(today) {
		d = time.Date(today.Year()+1, month, day, 0, 0, 0, 0, today.Location())
	}
	return d, true
}
