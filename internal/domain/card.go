package domain

import (
	"strings"
	"time"
)

// Card is a single word/definition entry together with its review history.
type Card struct {
	Word       string    `json:"word" yaml:"word"`
	Definition string    `json:"definition" yaml:"definition"`
	Created    time.Time `json:"created" yaml:"created"`
	Viewed     int       `json:"viewed" yaml:"viewed"`
	Tally      int       `json:"tally" yaml:"tally"`
}

// NewCard returns a card created on the calendar day of now, with zeroed
// counters. Line endings are normalised to "\n".
func NewCard(word, definition string, now time.Time) (Card, error) {
	word = NormalizeText(word)
	definition = NormalizeText(definition)
	if strings.TrimSpace(word) == "" {
		return Card{}, &EmptyFieldError{Field: "word"}
	}
	if strings.TrimSpace(definition) == "" {
		return Card{}, &EmptyFieldError{Field: "definition"}
	}
	return Card{
		Word:       word,
		Definition: definition,
		Created:    Day(now),
	}, nil
}

// Day truncates t to midnight UTC of its local calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// NormalizeText converts CRLF and lone CR line endings to LF.
func NormalizeText(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// ImportReport summarises one run of the import reconciler.
type ImportReport struct {
	Source    string `json:"source" yaml:"source"`
	Added     int    `json:"added" yaml:"added"`
	Updated   int    `json:"updated" yaml:"updated"`
	Unchanged int    `json:"unchanged" yaml:"unchanged"`
	Malformed int    `json:"malformed" yaml:"malformed"`
	// Changed reports whether the deck's fingerprint differs after the import.
	Changed bool    `json:"changed" yaml:"changed"`
	Errors  []error `json:"-" yaml:"-"`
}

// SessionReport summarises one review session.
// Completed is false when the session was aborted before every card was
// scored; Recorded is false for dry runs.
type SessionReport struct {
	ID        string   `json:"id" yaml:"id"`
	Presented int      `json:"presented" yaml:"presented"`
	Correct   int      `json:"correct" yaml:"correct"`
	Retired   []string `json:"retired" yaml:"retired"`
	Missed    []string `json:"missed" yaml:"missed"`
	// MissedAt holds the listing position of each missed card after the
	// session, in the order of Missed.
	MissedAt  []int     `json:"missed_at" yaml:"missed_at"`
	Completed bool      `json:"completed" yaml:"completed"`
	Recorded  bool      `json:"recorded" yaml:"recorded"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time `json:"ended_at" yaml:"ended_at"`
}
