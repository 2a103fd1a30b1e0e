// Package reconcile merges externally authored word/definition tables into a
// deck without discarding study history.
package reconcile

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/conorfennell/flashdeck/internal/deck"
	"github.com/conorfennell/flashdeck/internal/digest"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/parser"
)

// Merge folds pairs into d in memory. A pair whose word matches an existing
// card replaces only that card's definition, and only when it differs; the
// creation date and counters are kept. Other pairs become new cards dated
// today. When several cards share a word, the first one in deck order is
// updated. Merge does not save.
func Merge(d *deck.Deck, pairs []parser.Pair) domain.ImportReport {
	var report domain.ImportReport

	index := make(map[string]deck.Ref, d.Len())
	for _, ref := range d.Refs() {
		card, _ := d.Get(ref)
		key := digest.Word(card.Word)
		if _, seen := index[key]; !seen {
			index[key] = ref
		}
	}

	today := d.Today()
	for _, pair := range pairs {
		key := digest.Word(pair.Word)
		if ref, found := index[key]; found {
			card, _ := d.Get(ref)
			if card.Definition == pair.Definition {
				report.Unchanged++
				continue
			}
			card.Definition = pair.Definition
			if err := d.Replace(ref, card); err != nil {
				report.Errors = append(report.Errors, fmt.Errorf("line %d: %w", pair.Line, err))
				continue
			}
			report.Updated++
			continue
		}

		card, err := domain.NewCard(pair.Word, pair.Definition, today)
		if err != nil {
			report.Malformed++
			report.Errors = append(report.Errors, fmt.Errorf("line %d: %w", pair.Line, err))
			continue
		}
		index[key] = d.Append(card)
		report.Added++
	}

	return report
}

// ImportFile reads the table at path and merges it into d.
func ImportFile(d *deck.Deck, path string, logger *slog.Logger) (domain.ImportReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return domain.ImportReport{Source: path}, fmt.Errorf("failed to open import file %s: %w", path, err)
	}
	defer f.Close()
	return Import(d, path, f, logger)
}

// Import parses the table read from r and merges it into d, saving the deck
// once if anything changed. The report's Changed compares the deck
// fingerprint before and after the merge. Malformed rows are counted and listed in the
// report without stopping the import.
func Import(d *deck.Deck, source string, r io.Reader, logger *slog.Logger) (domain.ImportReport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	report := domain.ImportReport{Source: source}

	pairs, malformed, err := parser.Parse(r)
	if err != nil {
		return report, fmt.Errorf("failed to read import table %s: %w", source, err)
	}
	for _, m := range malformed {
		logger.Warn("Skipping malformed import row", "source", source, "line", m.Line, "error", m.Err)
		report.Errors = append(report.Errors, m)
	}

	before := d.Fingerprint()
	var merged domain.ImportReport
	err = d.Batch(func() error {
		merged = Merge(d, pairs)
		return nil
	})
	if err != nil {
		return report, err
	}

	report.Added = merged.Added
	report.Updated = merged.Updated
	report.Unchanged = merged.Unchanged
	report.Malformed = len(malformed) + merged.Malformed
	report.Errors = append(report.Errors, merged.Errors...)
	report.Changed = d.Fingerprint() != before

	logger.Info("Import complete",
		"source", source,
		"deck", d.Path(),
		"added", report.Added,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"malformed", report.Malformed,
		"changed", report.Changed,
	)
	return report, nil
}
