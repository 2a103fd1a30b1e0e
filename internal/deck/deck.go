// Package deck owns the file-backed collection of cards.
//
// A Deck is an explicit handle: it is loaded from one file, mutated in
// memory, and written back with an atomic replace so that a crash never
// leaves a half-written file behind.
package deck

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/natefinch/atomic"

	"github.com/conorfennell/flashdeck/internal/digest"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/record"
)

// Ref identifies one card inside an in-memory Deck. Refs stay valid while
// other cards are added or removed, which positions do not.
type Ref struct {
	id uint64
}

// IsZero reports whether r refers to no card.
func (r Ref) IsZero() bool {
	return r.id == 0
}

type entry struct {
	ref  Ref
	card domain.Card
}

// Deck is an ordered collection of cards backed by a single file.
type Deck struct {
	path   string
	codec  record.Codec
	now    func() time.Time
	logger *slog.Logger

	entries   []entry
	nextID    uint64
	fresh     bool
	dirty     bool
	malformed []*domain.MalformedRecordError
	backedUp  bool
	backup    string
}

// Option configures a Deck.
type Option func(*Deck)

// WithCodec sets the codec used to read and write the file.
func WithCodec(c record.Codec) Option {
	return func(d *Deck) { d.codec = c }
}

// WithClock sets the clock used to date new cards.
func WithClock(now func() time.Time) Option {
	return func(d *Deck) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Deck) { d.logger = l }
}

// New returns an empty deck bound to path. Nothing is written until Save.
func New(path string, opts ...Option) *Deck {
	d := &Deck{
		path:   path,
		codec:  record.New(""),
		now:    time.Now,
		logger: slog.Default(),
		fresh:  true,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Load reads the deck at path. A missing file is the first-run case: an
// empty deck is returned with Fresh reporting true. Records that cannot be
// decoded are left out of the deck and reported through Malformed.
func Load(path string, opts ...Option) (*Deck, error) {
	d := New(path, opts...)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		d.logger.Info("No deck file yet, starting empty", "path", path)
		return d, nil
	}
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Path: path, Err: err}
	}
	defer f.Close()

	cards, malformed, err := d.codec.Read(f)
	if err != nil {
		return nil, &domain.PersistenceError{Op: "load", Path: path, Err: err}
	}

	d.fresh = false
	for _, c := range cards {
		d.appendEntry(c)
	}
	d.malformed = malformed
	for _, m := range malformed {
		d.logger.Warn("Skipping malformed record", "path", path, "line", m.Line, "fields", m.Fields, "error", m.Err)
	}
	d.logger.Debug("Deck loaded", "path", path, "cards", len(cards), "malformed", len(malformed))
	return d, nil
}

// Path returns the backing file.
func (d *Deck) Path() string { return d.path }

// Fresh reports whether the backing file did not exist when the deck was
// loaded and has not been saved since.
func (d *Deck) Fresh() bool { return d.fresh }

// Malformed returns the records that were skipped while loading.
func (d *Deck) Malformed() []*domain.MalformedRecordError {
	return slices.Clone(d.malformed)
}

// Backup returns the copy of the original file written by the first save
// after loading malformed records, or "" if none was written.
func (d *Deck) Backup() string { return d.backup }

// Dirty reports whether the deck has unsaved changes.
func (d *Deck) Dirty() bool { return d.dirty }

// Len returns the number of cards.
func (d *Deck) Len() int { return len(d.entries) }

// Today returns the deck clock's current calendar day.
func (d *Deck) Today() time.Time { return domain.Day(d.now()) }

// Cards returns a copy of the cards in deck order.
func (d *Deck) Cards() []domain.Card {
	cards := make([]domain.Card, len(d.entries))
	for i, e := range d.entries {
		cards[i] = e.card
	}
	return cards
}

// Refs returns the refs of all cards in deck order.
func (d *Deck) Refs() []Ref {
	refs := make([]Ref, len(d.entries))
	for i, e := range d.entries {
		refs[i] = e.ref
	}
	return refs
}

// RefAt returns the ref of the card at position i in deck order.
func (d *Deck) RefAt(i int) (Ref, error) {
	if i < 0 || i >= len(d.entries) {
		return Ref{}, fmt.Errorf("%w: no card at position %d", domain.ErrCardNotFound, i)
	}
	return d.entries[i].ref, nil
}

// Get returns the card identified by ref.
func (d *Deck) Get(ref Ref) (domain.Card, bool) {
	i := d.index(ref)
	if i < 0 {
		return domain.Card{}, false
	}
	return d.entries[i].card, true
}

// Lookup returns the refs of every card whose word matches word by key, in
// deck order.
func (d *Deck) Lookup(word string) []Ref {
	key := digest.Word(word)
	var refs []Ref
	for _, e := range d.entries {
		if digest.Word(e.card.Word) == key {
			refs = append(refs, e.ref)
		}
	}
	return refs
}

// Fingerprint returns a digest of the current cards.
func (d *Deck) Fingerprint() string {
	return digest.Cards(d.Cards())
}

// Append adds card to the end of the deck without saving.
func (d *Deck) Append(card domain.Card) Ref {
	d.dirty = true
	return d.appendEntry(card)
}

// Replace overwrites the card identified by ref without saving.
func (d *Deck) Replace(ref Ref, card domain.Card) error {
	i := d.index(ref)
	if i < 0 {
		return domain.ErrCardNotFound
	}
	if d.entries[i].card != card {
		d.entries[i].card = card
		d.dirty = true
	}
	return nil
}

// Drop removes the card identified by ref without saving.
func (d *Deck) Drop(ref Ref) error {
	i := d.index(ref)
	if i < 0 {
		return domain.ErrCardNotFound
	}
	d.entries = slices.Delete(d.entries, i, i+1)
	d.dirty = true
	return nil
}

// Batch runs fn and then saves once if fn changed the deck. If fn fails or
// the save fails, the in-memory deck is restored to its state before fn, so
// memory never disagrees with the file.
func (d *Deck) Batch(fn func() error) error {
	saved := d.snapshot()
	if err := fn(); err != nil {
		d.restore(saved)
		return err
	}
	if !d.dirty {
		return nil
	}
	if err := d.Save(); err != nil {
		d.restore(saved)
		return err
	}
	return nil
}

// Add creates a card dated today with zeroed counters, appends it and saves.
func (d *Deck) Add(word, definition string) (domain.Card, error) {
	card, err := domain.NewCard(word, definition, d.now())
	if err != nil {
		return domain.Card{}, err
	}
	if err := d.Batch(func() error {
		d.Append(card)
		return nil
	}); err != nil {
		return domain.Card{}, err
	}
	d.logger.Info("Card added", "word", card.Word, "cards", d.Len())
	return card, nil
}

// Remove deletes exactly the card identified by ref and saves.
func (d *Deck) Remove(ref Ref) (domain.Card, error) {
	var removed domain.Card
	err := d.Batch(func() error {
		card, ok := d.Get(ref)
		if !ok {
			return domain.ErrCardNotFound
		}
		removed = card
		return d.Drop(ref)
	})
	if err != nil {
		return domain.Card{}, err
	}
	d.logger.Info("Card removed", "word", removed.Word, "cards", d.Len())
	return removed, nil
}

// Save writes the header and every card to the backing file through an
// atomic replace. The first save after loading malformed records copies the
// original file to <path>.<timestamp>.bak.
func (d *Deck) Save() error {
	if err := d.backupMalformed(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := d.codec.Write(&buf, d.Cards()); err != nil {
		return &domain.PersistenceError{Op: "save", Path: d.path, Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o755); err != nil {
		return &domain.PersistenceError{Op: "save", Path: d.path, Err: err}
	}
	if err := atomic.WriteFile(d.path, &buf); err != nil {
		return &domain.PersistenceError{Op: "save", Path: d.path, Err: err}
	}

	d.dirty = false
	d.fresh = false
	d.logger.Debug("Deck saved", "path", d.path, "cards", len(d.entries))
	return nil
}

func (d *Deck) backupMalformed() error {
	if len(d.malformed) == 0 || d.backedUp {
		return nil
	}
	original, err := os.ReadFile(d.path)
	if errors.Is(err, fs.ErrNotExist) {
		d.backedUp = true
		return nil
	}
	if err != nil {
		return &domain.PersistenceError{Op: "backup", Path: d.path, Err: err}
	}
	backup, err := d.backupPath()
	if err != nil {
		return &domain.PersistenceError{Op: "backup", Path: d.path, Err: err}
	}
	if err := atomic.WriteFile(backup, bytes.NewReader(original)); err != nil {
		return &domain.PersistenceError{Op: "backup", Path: backup, Err: err}
	}
	d.backedUp = true
	d.backup = backup
	d.logger.Warn("Deck had malformed records, original kept as backup", "backup", backup, "malformed", len(d.malformed))
	return nil
}

// backupPath returns <path>.<timestamp>.bak, numbered so that an earlier
// backup is never overwritten.
func (d *Deck) backupPath() (string, error) {
	stamp := d.now().Format("20060102-150405")
	for n := 1; ; n++ {
		name := fmt.Sprintf("%s.%s.bak", d.path, stamp)
		if n > 1 {
			name = fmt.Sprintf("%s.%s-%d.bak", d.path, stamp, n)
		}
		_, err := os.Stat(name)
		if errors.Is(err, fs.ErrNotExist) {
			return name, nil
		}
		if err != nil {
			return "", err
		}
	}
}

func (d *Deck) appendEntry(card domain.Card) Ref {
	d.nextID++
	ref := Ref{id: d.nextID}
	d.entries = append(d.entries, entry{ref: ref, card: card})
	return ref
}

func (d *Deck) index(ref Ref) int {
	if ref.IsZero() {
		return -1
	}
	for i, e := range d.entries {
		if e.ref == ref {
			return i
		}
	}
	return -1
}

type snapshot struct {
	entries []entry
	nextID  uint64
	dirty   bool
}

func (d *Deck) snapshot() snapshot {
	return snapshot{entries: slices.Clone(d.entries), nextID: d.nextID, dirty: d.dirty}
}

func (d *Deck) restore(s snapshot) {
	d.entries = s.entries
	d.nextID = s.nextID
	d.dirty = s.dirty
}
