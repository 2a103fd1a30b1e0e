// Package record maps cards to and from the pipe-delimited deck format.
//
// A deck file starts with the header line
//
//	word|definition|date|viewed|tally
//
// followed by one record per card. Fields that contain the delimiter, a
// double quote or a line break are quoted, so a single record may span
// several physical lines.
package record

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
)

const (
	// Delimiter separates fields. Definitions routinely contain commas, so a
	// comma is never used.
	Delimiter = '|'

	// DefaultDateLayout is the layout used for the date column.
	DefaultDateLayout = "2006-01-02"

	fieldCount = 5
)

// Header is the column header written as the first line of every deck file.
var Header = []string{"word", "definition", "date", "viewed", "tally"}

// Codec encodes and decodes cards using a fixed date layout.
type Codec struct {
	DateLayout string
}

// New returns a Codec for the given date layout, or the default layout when
// layout is empty.
func New(layout string) Codec {
	if layout == "" {
		layout = DefaultDateLayout
	}
	return Codec{DateLayout: layout}
}

func (c Codec) layout() string {
	if c.DateLayout == "" {
		return DefaultDateLayout
	}
	return c.DateLayout
}

// Fields returns the five column values for card, unquoted.
func (c Codec) Fields(card domain.Card) []string {
	return []string{
		card.Word,
		card.Definition,
		card.Created.Format(c.layout()),
		strconv.Itoa(card.Viewed),
		strconv.Itoa(card.Tally),
	}
}

// Encode returns the on-disk text of a single record, including the trailing
// newline.
func (c Codec) Encode(card domain.Card) (string, error) {
	var sb strings.Builder
	w := newWriter(&sb)
	if err := w.Write(c.Fields(card)); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// DecodeRecord parses exactly one record, which may span several lines.
func (c Codec) DecodeRecord(block string) (domain.Card, error) {
	r := newReader(strings.NewReader(block))
	fields, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = domain.ErrFieldCount
		}
		return domain.Card{}, &domain.MalformedRecordError{Line: 1, Raw: block, Err: err}
	}
	card, err := c.Decode(fields)
	if err != nil {
		var malformed *domain.MalformedRecordError
		if errors.As(err, &malformed) {
			malformed.Line = 1
		}
		return domain.Card{}, err
	}
	return card, nil
}

// Decode validates a split record against the fixed five-column schema.
// The returned error is always a *domain.MalformedRecordError.
func (c Codec) Decode(fields []string) (domain.Card, error) {
	fail := func(err error) (domain.Card, error) {
		return domain.Card{}, &domain.MalformedRecordError{
			Fields: len(fields),
			Raw:    strings.Join(fields, string(Delimiter)),
			Err:    err,
		}
	}

	if len(fields) != fieldCount {
		return fail(fmt.Errorf("%w: want %d, got %d", domain.ErrFieldCount, fieldCount, len(fields)))
	}
	if strings.TrimSpace(fields[0]) == "" {
		return fail(&domain.EmptyFieldError{Field: "word"})
	}
	if strings.TrimSpace(fields[1]) == "" {
		return fail(&domain.EmptyFieldError{Field: "definition"})
	}
	created, err := time.Parse(c.layout(), strings.TrimSpace(fields[2]))
	if err != nil {
		return fail(fmt.Errorf("invalid date %q: %w", fields[2], err))
	}
	viewed, err := parseCount("viewed", fields[3])
	if err != nil {
		return fail(err)
	}
	tally, err := parseCount("tally", fields[4])
	if err != nil {
		return fail(err)
	}

	return domain.Card{
		Word:       fields[0],
		Definition: fields[1],
		Created:    domain.Day(created),
		Viewed:     viewed,
		Tally:      tally,
	}, nil
}

func parseCount(name, s string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("invalid %s %d: must not be negative", name, n)
	}
	return n, nil
}

// Write writes the header followed by every card.
func (c Codec) Write(w io.Writer, cards []domain.Card) error {
	cw := newWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, card := range cards {
		if err := cw.Write(c.Fields(card)); err != nil {
			return fmt.Errorf("failed to encode card %q: %w", card.Word, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read decodes a whole deck file. Records that fail to decode are returned
// in malformed and skipped; only an I/O error aborts the read.
func (c Codec) Read(r io.Reader) ([]domain.Card, []*domain.MalformedRecordError, error) {
	rows, err := ReadRows(r, false)
	if err != nil {
		return nil, nil, err
	}

	var (
		cards     []domain.Card
		malformed []*domain.MalformedRecordError
	)
	for i, row := range rows {
		if row.Err != nil {
			malformed = append(malformed, &domain.MalformedRecordError{Line: row.Line, Raw: row.Raw, Err: row.Err})
			continue
		}
		if i == 0 && IsHeader(row.Fields) {
			continue
		}

		card, err := c.Decode(row.Fields)
		if err != nil {
			var m *domain.MalformedRecordError
			if errors.As(err, &m) {
				m.Line = row.Line
				malformed = append(malformed, m)
				continue
			}
			return nil, nil, err
		}
		cards = append(cards, card)
	}

	return cards, malformed, nil
}

// IsHeader reports whether fields is a header row: its first two columns
// read "word" and "definition", ignoring case, spacing and a UTF-8 BOM.
func IsHeader(fields []string) bool {
	if len(fields) < 2 {
		return false
	}
	first := strings.TrimPrefix(fields[0], "\ufeff")
	return strings.EqualFold(strings.TrimSpace(first), Header[0]) &&
		strings.EqualFold(strings.TrimSpace(fields[1]), Header[1])
}

// newReader returns a csv.Reader for the pipe-delimited format with variable
// field counts, so arity is checked by Decode instead.
func newReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = Delimiter
	cr.FieldsPerRecord = -1
	return cr
}

func newWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = Delimiter
	return cw
}
