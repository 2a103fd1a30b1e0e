package parser

import (
	"io"
	"os"
	"strings"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/record"
)

// Pair is one word/definition row of an import table.
type Pair struct {
	Word       string
	Definition string
	Line       int
}

// ParseFile reads an import table from the given path.
func ParseFile(path string) ([]Pair, []*domain.MalformedRecordError, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	return Parse(file)
}

// Parse reads a pipe-delimited table of word/definition rows, such as a
// spreadsheet export saved with '|' as the separator. A leading header row
// is skipped. Columns after the second are ignored, so a full deck file can
// be imported as well. Rows with fewer than two columns or an empty word or
// definition are returned as malformed and the rest of the table is still
// read.
func Parse(r io.Reader) ([]Pair, []*domain.MalformedRecordError, error) {
	// spreadsheets are not strict about quoting
	rows, err := record.ReadRows(r, true)
	if err != nil {
		return nil, nil, err
	}

	var (
		pairs     []Pair
		malformed []*domain.MalformedRecordError
	)
	for i, row := range rows {
		if row.Err != nil {
			malformed = append(malformed, &domain.MalformedRecordError{Line: row.Line, Raw: row.Raw, Err: row.Err})
			continue
		}
		if i == 0 && record.IsHeader(row.Fields) {
			continue
		}

		pair, perr := toPair(row.Fields)
		if perr != nil {
			perr.Line = row.Line
			malformed = append(malformed, perr)
			continue
		}
		pair.Line = row.Line
		pairs = append(pairs, pair)
	}

	return pairs, malformed, nil
}

func toPair(fields []string) (Pair, *domain.MalformedRecordError) {
	fail := func(err error) (Pair, *domain.MalformedRecordError) {
		return Pair{}, &domain.MalformedRecordError{
			Fields: len(fields),
			Raw:    strings.Join(fields, string(record.Delimiter)),
			Err:    err,
		}
	}

	if len(fields) < 2 {
		// usually the table was exported with ',' or ';' instead of '|'
		return fail(domain.ErrFieldCount)
	}
	word := strings.TrimSpace(domain.NormalizeText(fields[0]))
	definition := domain.NormalizeText(fields[1])
	if word == "" {
		return fail(&domain.EmptyFieldError{Field: "word"})
	}
	if strings.TrimSpace(definition) == "" {
		return fail(&domain.EmptyFieldError{Field: "definition"})
	}
	return Pair{Word: word, Definition: definition}, nil
}
