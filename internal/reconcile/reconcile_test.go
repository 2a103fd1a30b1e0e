package reconcile

import (
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flashdeck/internal/deck"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/parser"
)

var (
	today  = time.Date(2026, 10, 17, 12, 0, 0, 0, time.UTC)
	quiet  = slog.New(slog.NewTextHandler(io.Discard, nil))
	clock  = func() time.Time { return today }
	oldDay = time.Date(2024, 7, 13, 0, 0, 0, 0, time.UTC)
)

func newDeck(t *testing.T, cards ...domain.Card) *deck.Deck {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cards.txt")
	d := deck.New(path, deck.WithClock(clock), deck.WithLogger(quiet))
	for _, c := range cards {
		d.Append(c)
	}
	if len(cards) > 0 {
		require.NoError(t, d.Save())
	}
	return d
}

func TestImportIntoEmptyDeck(t *testing.T) {
	d := newDeck(t)

	report, err := Import(d, "table.txt", strings.NewReader("word|definition\ngato|cat\n"), quiet)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Zero(t, report.Updated)
	assert.Zero(t, report.Malformed)

	assert.Equal(t, []domain.Card{{Word: "gato", Definition: "cat", Created: domain.Day(today)}}, d.Cards())

	reloaded, err := deck.Load(d.Path(), deck.WithLogger(quiet))
	require.NoError(t, err)
	assert.Equal(t, d.Cards(), reloaded.Cards())
}

func TestImportPreservesHistory(t *testing.T) {
	d := newDeck(t,
		domain.Card{Word: "gato", Definition: "cat", Created: oldDay, Viewed: 7, Tally: 4},
		domain.Card{Word: "perro", Definition: "dog", Created: oldDay, Viewed: 2, Tally: 1},
	)

	table := "word|definition\ngato|cat (feline)\nperro|dog\ncasa|house\n"
	report, err := Import(d, "table.txt", strings.NewReader(table), quiet)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Added)
	assert.Equal(t, 1, report.Updated)
	assert.Equal(t, 1, report.Unchanged)

	assert.Equal(t, []domain.Card{
		{Word: "gato", Definition: "cat (feline)", Created: oldDay, Viewed: 7, Tally: 4},
		{Word: "perro", Definition: "dog", Created: oldDay, Viewed: 2, Tally: 1},
		{Word: "casa", Definition: "house", Created: domain.Day(today)},
	}, d.Cards())
}

func TestImportIsIdempotent(t *testing.T) {
	d := newDeck(t, domain.Card{Word: "gato", Definition: "cat", Created: oldDay, Viewed: 3, Tally: 2})
	table := "word|definition\ngato|a cat, the animal\nperro|\"dog\nhound\"\nmesa|table\n"

	first, err := Import(d, "table.txt", strings.NewReader(table), quiet)
	require.NoError(t, err)
	assert.True(t, first.Changed)
	firstBytes, err := os.ReadFile(d.Path())
	require.NoError(t, err)
	firstPrint := d.Fingerprint()

	report, err := Import(d, "table.txt", strings.NewReader(table), quiet)
	require.NoError(t, err)
	assert.Zero(t, report.Added)
	assert.Zero(t, report.Updated)
	assert.Equal(t, 3, report.Unchanged)
	assert.False(t, report.Changed)

	secondBytes, err := os.ReadFile(d.Path())
	require.NoError(t, err)
	assert.Equal(t, string(firstBytes), string(secondBytes))
	assert.Equal(t, firstPrint, d.Fingerprint())
	assert.Equal(t, 3, d.Len())
}

func TestImportReportsMalformedRows(t *testing.T) {
	d := newDeck(t)
	table := "word|definition\ngato|cat\nperro\n|house\nmesa|table\n"

	report, err := Import(d, "table.txt", strings.NewReader(table), quiet)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Added)
	assert.Equal(t, 2, report.Malformed)
	require.Len(t, report.Errors, 2)
	assert.Contains(t, report.Errors[0].Error(), "line 3")
	assert.Equal(t, 2, d.Len())
}

func TestImportFileMissing(t *testing.T) {
	d := newDeck(t)
	_, err := ImportFile(d, filepath.Join(t.TempDir(), "nope.txt"), quiet)
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestMerge(t *testing.T) {
	t.Run("duplicate words in one table", func(t *testing.T) {
		d := newDeck(t)
		report := Merge(d, []parser.Pair{
			{Word: "gato", Definition: "cat", Line: 1},
			{Word: "gato", Definition: "tomcat", Line: 2},
		})
		assert.Equal(t, 1, report.Added)
		assert.Equal(t, 1, report.Updated)
		require.Equal(t, 1, d.Len())
		assert.Equal(t, "tomcat", d.Cards()[0].Definition)
	})

	t.Run("first of duplicate deck cards is updated", func(t *testing.T) {
		d := newDeck(t,
			domain.Card{Word: "banco", Definition: "bank", Created: oldDay},
			domain.Card{Word: "banco", Definition: "bench", Created: oldDay},
		)
		report := Merge(d, []parser.Pair{{Word: "banco", Definition: "bank (money)"}})
		assert.Equal(t, 1, report.Updated)
		assert.Equal(t, "bank (money)", d.Cards()[0].Definition)
		assert.Equal(t, "bench", d.Cards()[1].Definition)
	})

	t.Run("merge does not save", func(t *testing.T) {
		d := newDeck(t)
		Merge(d, []parser.Pair{{Word: "gato", Definition: "cat"}})
		assert.True(t, d.Dirty())
		_, err := os.Stat(d.Path())
		assert.True(t, os.IsNotExist(err))
	})
}
