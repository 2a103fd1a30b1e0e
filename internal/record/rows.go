package record

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

// Row is one record split into fields, or a physical line that could not be
// split because of its quoting.
type Row struct {
	// Line is the physical line the record starts on, counting from 1.
	Line   int
	Fields []string
	// Raw and Err are set when the line could not be split.
	Raw string
	Err error
}

// ReadRows splits every record of r. A quoting error never swallows the rest
// of the input: an unterminated or misplaced quote marks only the line the
// record starts on, and reading resumes on the next physical line.
//
// With lazy set, a bare quote inside an unquoted field is kept as text
// instead of failing the record.
func ReadRows(r io.Reader, lazy bool) ([]Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	lines := strings.SplitAfter(string(data), "\n")

	var rows []Row
	offset := 0
	for offset < len(lines) {
		cr := newReader(strings.NewReader(strings.Join(lines[offset:], "")))
		restart := -1
		for restart < 0 {
			fields, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return rows, nil
			}
			if err == nil {
				line, _ := cr.FieldPos(0)
				rows = append(rows, Row{Line: offset + line, Fields: fields})
				continue
			}

			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return nil, err
			}
			start := offset + parseErr.StartLine
			end := offset + parseErr.Line
			if lazy && errors.Is(parseErr.Err, csv.ErrBareQuote) {
				if fields, ok := readLazy(lines[start-1 : end]); ok {
					rows = append(rows, Row{Line: start, Fields: fields})
					restart = end
					continue
				}
			}
			rows = append(rows, Row{
				Line: start,
				Raw:  strings.TrimRight(lines[start-1], "\r\n"),
				Err:  parseErr.Err,
			})
			restart = start
		}
		offset = restart
	}
	return rows, nil
}

// readLazy splits the lines of one record with lazy quoting.
func readLazy(lines []string) ([]string, bool) {
	cr := newReader(strings.NewReader(strings.Join(lines, "")))
	cr.LazyQuotes = true
	fields, err := cr.Read()
	return fields, err == nil
}
