package deck

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flashdeck/internal/domain"
)

var today = time.Date(2026, 10, 17, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return today }

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestLoadMissingFileIsFresh(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.txt")

	d, err := Load(path)
	require.NoError(t, err)
	assert.True(t, d.Fresh())
	assert.Zero(t, d.Len())
	assert.Empty(t, d.Malformed())

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "loading must not create the file")
}

func TestLoadSkipsMalformedRecords(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.txt")
	writeFile(t, path, "word|definition|date|viewed|tally\n"+
		"gato|cat|2026-10-01|2|1\n"+
		"perro|dog|2026-10-01\n"+
		"casa|house|2026-10-02|0|0\n")

	d, err := Load(path)
	require.NoError(t, err)
	assert.False(t, d.Fresh())
	require.Equal(t, 2, d.Len())
	assert.Equal(t, "gato", d.Cards()[0].Word)
	assert.Equal(t, "casa", d.Cards()[1].Word)

	malformed := d.Malformed()
	require.Len(t, malformed, 1)
	assert.Equal(t, 3, malformed[0].Line)
}

func TestLoadDirectoryIsPersistenceError(t *testing.T) {
	_, err := Load(t.TempDir())
	var perr *domain.PersistenceError
	require.True(t, errors.As(err, &perr), "expected PersistenceError, got %v", err)
	assert.Equal(t, "load", perr.Op)
}

func TestAddPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "cards.txt")
	d, err := Load(path, WithClock(clock))
	require.NoError(t, err)

	card, err := d.Add("gato", "cat")
	require.NoError(t, err)
	assert.Equal(t, domain.Card{Word: "gato", Definition: "cat", Created: domain.Day(today)}, card)
	assert.False(t, d.Fresh())
	assert.False(t, d.Dirty())

	assert.Equal(t, "word|definition|date|viewed|tally\ngato|cat|2026-10-17|0|0\n", readFile(t, path))

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, d.Cards(), reloaded.Cards())
}

func TestAddRejectsEmptyFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.txt")
	d := New(path, WithClock(clock))

	_, err := d.Add("", "cat")
	var empty *domain.EmptyFieldError
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, "word", empty.Field)

	_, err = d.Add("gato", " ")
	require.True(t, errors.As(err, &empty))
	assert.Equal(t, "definition", empty.Field)

	assert.Zero(t, d.Len())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestSaveFailureRollsBack(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	writeFile(t, blocker, "not a directory")

	d := New(filepath.Join(blocker, "cards.txt"), WithClock(clock))
	_, err := d.Add("gato", "cat")

	var perr *domain.PersistenceError
	require.True(t, errors.As(err, &perr), "expected PersistenceError, got %v", err)
	assert.Equal(t, "save", perr.Op)
	assert.Zero(t, d.Len(), "failed save must not leave the card in memory")
	assert.False(t, d.Dirty())
}

func TestRemoveDuplicateByRef(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.txt")
	d := New(path, WithClock(clock))
	_, err := d.Add("banco", "bank")
	require.NoError(t, err)
	_, err = d.Add("banco", "bench")
	require.NoError(t, err)

	refs := d.Lookup("banco")
	require.Len(t, refs, 2)

	removed, err := d.Remove(refs[1])
	require.NoError(t, err)
	assert.Equal(t, "bench", removed.Definition)

	require.Equal(t, 1, d.Len())
	assert.Equal(t, "bank", d.Cards()[0].Definition)

	// the surviving ref still resolves after the removal shifted positions
	card, ok := d.Get(refs[0])
	require.True(t, ok)
	assert.Equal(t, "bank", card.Definition)

	_, err = d.Remove(refs[1])
	assert.ErrorIs(t, err, domain.ErrCardNotFound)

	reloaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, d.Cards(), reloaded.Cards())
}

func TestRefAt(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "cards.txt"))
	ref := d.Append(domain.Card{Word: "gato", Definition: "cat"})

	got, err := d.RefAt(0)
	require.NoError(t, err)
	assert.Equal(t, ref, got)

	_, err = d.RefAt(1)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
	_, err = d.RefAt(-1)
	assert.ErrorIs(t, err, domain.ErrCardNotFound)
}

func TestBatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.txt")
	d := New(path, WithClock(clock))
	ref := d.Append(domain.Card{Word: "gato", Definition: "cat", Created: domain.Day(today)})
	require.NoError(t, d.Save())

	t.Run("error restores memory", func(t *testing.T) {
		boom := errors.New("boom")
		err := d.Batch(func() error {
			d.Append(domain.Card{Word: "perro", Definition: "dog"})
			require.NoError(t, d.Drop(ref))
			return boom
		})
		assert.ErrorIs(t, err, boom)
		require.Equal(t, 1, d.Len())
		assert.Equal(t, "gato", d.Cards()[0].Word)
		assert.False(t, d.Dirty())
	})

	t.Run("no change does not rewrite", func(t *testing.T) {
		before, err := os.Stat(path)
		require.NoError(t, err)
		require.NoError(t, os.Chtimes(path, before.ModTime().Add(-time.Hour), before.ModTime().Add(-time.Hour)))
		stamped, err := os.Stat(path)
		require.NoError(t, err)

		err = d.Batch(func() error {
			card, _ := d.Get(ref)
			return d.Replace(ref, card)
		})
		require.NoError(t, err)

		after, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, stamped.ModTime(), after.ModTime())
	})

	t.Run("changes are saved once", func(t *testing.T) {
		err := d.Batch(func() error {
			card, _ := d.Get(ref)
			card.Viewed = 3
			return d.Replace(ref, card)
		})
		require.NoError(t, err)
		assert.Equal(t, "word|definition|date|viewed|tally\ngato|cat|2026-10-17|3|0\n", readFile(t, path))
	})
}

func TestSaveBacksUpMalformedOriginal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.txt")
	original := "word|definition|date|viewed|tally\ngato|cat|2026-10-01|0|0\nbroken line\n"
	writeFile(t, path, original)

	d, err := Load(path, WithClock(clock))
	require.NoError(t, err)
	require.Len(t, d.Malformed(), 1)
	assert.Empty(t, d.Backup())

	_, err = d.Add("perro", "dog")
	require.NoError(t, err)

	backup := path + ".20261017-093000.bak"
	assert.Equal(t, backup, d.Backup())
	assert.Equal(t, original, readFile(t, backup))
	assert.Equal(t, "word|definition|date|viewed|tally\ngato|cat|2026-10-01|0|0\nperro|dog|2026-10-17|0|0\n", readFile(t, path))

	// a second save keeps the first backup
	_, err = d.Add("casa", "house")
	require.NoError(t, err)
	assert.Equal(t, backup, d.Backup())
	assert.Equal(t, original, readFile(t, backup))
}

func TestLaterBackupKeepsEarlierOne(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.txt")
	first := "word|definition|date|viewed|tally\ngato|cat|2026-10-01|0|0\nbroken line\n"
	writeFile(t, path, first)

	d, err := Load(path, WithClock(clock))
	require.NoError(t, err)
	_, err = d.Add("perro", "dog")
	require.NoError(t, err)

	second := readFile(t, path) + "another broken line\n"
	writeFile(t, path, second)

	again, err := Load(path, WithClock(clock))
	require.NoError(t, err)
	require.Len(t, again.Malformed(), 1)
	_, err = again.Add("casa", "house")
	require.NoError(t, err)

	assert.NotEqual(t, d.Backup(), again.Backup())
	assert.Equal(t, path+".20261017-093000-2.bak", again.Backup())
	assert.Equal(t, first, readFile(t, d.Backup()))
	assert.Equal(t, second, readFile(t, again.Backup()))
}

func TestUnterminatedQuoteKeepsFollowingCards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cards.txt")
	writeFile(t, path, "word|definition|date|viewed|tally\n"+
		"\"run|to move fast|2024-01-01|0|0\n"+
		"a|first|2024-01-01|3|2\n"+
		"c|third|2024-01-01|0|0\n")

	d, err := Load(path, WithClock(clock))
	require.NoError(t, err)
	require.Len(t, d.Malformed(), 1)

	_, err = d.Add("new", "card")
	require.NoError(t, err)

	assert.Equal(t, "word|definition|date|viewed|tally\n"+
		"a|first|2024-01-01|3|2\n"+
		"c|third|2024-01-01|0|0\n"+
		"new|card|2026-10-17|0|0\n", readFile(t, path))
	assert.Contains(t, readFile(t, d.Backup()), "\"run|to move fast")
}

func TestFingerprintTracksContent(t *testing.T) {
	d := New(filepath.Join(t.TempDir(), "cards.txt"))
	empty := d.Fingerprint()
	ref := d.Append(domain.Card{Word: "gato", Definition: "cat"})
	withCard := d.Fingerprint()
	assert.NotEqual(t, empty, withCard)

	require.NoError(t, d.Drop(ref))
	assert.Equal(t, empty, d.Fingerprint())
}
