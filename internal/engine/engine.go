// Package engine exposes the flashdeck operations over the configured deck.
//
// Every call loads the deck file afresh, so no deck state lives between
// operations and the file is always the source of truth.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"time"

	"github.com/conorfennell/flashdeck/internal/config"
	"github.com/conorfennell/flashdeck/internal/deck"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/gitsource"
	"github.com/conorfennell/flashdeck/internal/reconcile"
	"github.com/conorfennell/flashdeck/internal/review"
	"github.com/conorfennell/flashdeck/internal/storage"
)

// ErrNoJournal is returned by the journal queries when the journal is
// disabled.
var ErrNoJournal = errors.New("journal is disabled")

// Journal records finished sessions and imports.
type Journal interface {
	InsertSession(ctx context.Context, deckPath string, report domain.SessionReport) error
	InsertImport(ctx context.Context, report domain.ImportReport, at time.Time) (int64, error)
	RecentSessions(ctx context.Context, limit int) ([]storage.SessionRow, error)
	RecentImports(ctx context.Context, limit int) ([]storage.ImportRow, error)
	GetAllSources(ctx context.Context) ([]storage.Source, error)
	Close() error
}

// Engine runs flashdeck operations against the configured deck.
type Engine struct {
	cfg     *config.Config
	logger  *slog.Logger
	now     func() time.Time
	rng     *rand.Rand
	journal Journal
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithClock sets the clock used to date cards and sessions.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithRand sets the source used to shuffle sessions.
func WithRand(r *rand.Rand) Option {
	return func(e *Engine) { e.rng = r }
}

// WithJournal sets the journal, replacing the one named in the config.
func WithJournal(j Journal) Option {
	return func(e *Engine) { e.journal = j }
}

// New returns an engine for cfg. The journal is only used when given with
// WithJournal; see Open.
func New(cfg *config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Open returns an engine for cfg and opens the configured journal, unless
// one was given with WithJournal or the journal is disabled.
func Open(cfg *config.Config, opts ...Option) (*Engine, error) {
	e := New(cfg, opts...)
	if e.journal != nil || cfg.Journal == "" {
		return e, nil
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Journal), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}
	db, err := storage.Open(cfg.Journal)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", cfg.Journal, err)
	}
	e.journal = db
	return e, nil
}

// Close releases the journal.
func (e *Engine) Close() error {
	if e.journal == nil {
		return nil
	}
	return e.journal.Close()
}

// Deck loads the configured deck.
func (e *Engine) Deck() (*deck.Deck, error) {
	return deck.Load(e.cfg.Deck,
		deck.WithCodec(e.cfg.Codec()),
		deck.WithClock(e.now),
		deck.WithLogger(e.logger),
	)
}

// Add creates a card dated today and saves the deck.
func (e *Engine) Add(word, definition string) (domain.Card, error) {
	d, err := e.Deck()
	if err != nil {
		return domain.Card{}, err
	}
	return d.Add(word, definition)
}

// ImportFrom merges the import table named by ref into the deck. ref is a
// file path or a <repo-url>//<path/in/repo> reference.
func (e *Engine) ImportFrom(ctx context.Context, ref string) (domain.ImportReport, error) {
	path, err := gitsource.Resolve(ctx, ref, e.cfg.RepoCache, e.logger)
	if err != nil {
		return domain.ImportReport{Source: ref}, fmt.Errorf("failed to resolve import source %s: %w", ref, err)
	}

	d, err := e.Deck()
	if err != nil {
		return domain.ImportReport{Source: ref}, err
	}
	report, err := reconcile.ImportFile(d, path, e.logger)
	report.Source = ref
	if err != nil {
		return report, err
	}

	if e.journal != nil {
		if _, err := e.journal.InsertImport(ctx, report, e.now()); err != nil {
			e.logger.Warn("Failed to journal import", "source", ref, "error", err)
		}
	}
	return report, nil
}

// Go runs one review session over the deck through p.
func (e *Engine) Go(ctx context.Context, p review.Prompter) (domain.SessionReport, error) {
	d, err := e.Deck()
	if err != nil {
		return domain.SessionReport{}, err
	}

	opts := []review.Option{
		review.WithParams(e.cfg.TallyParams()),
		review.WithShuffle(e.cfg.Shuffle),
		review.WithDryRun(e.cfg.DryRun),
		review.WithClock(e.now),
		review.WithLogger(e.logger),
	}
	if e.rng != nil {
		opts = append(opts, review.WithRand(e.rng))
	}

	report, err := review.Run(ctx, d, p, opts...)
	if err != nil {
		return report, err
	}

	if e.journal != nil && report.Presented > 0 {
		// the session is already saved; a journal failure must not undo it
		if err := e.journal.InsertSession(context.WithoutCancel(ctx), d.Path(), report); err != nil {
			e.logger.Warn("Failed to journal session", "id", report.ID, "error", err)
		}
	}
	return report, nil
}

// Card returns the card at position index in deck order.
func (e *Engine) Card(index int) (domain.Card, error) {
	d, err := e.Deck()
	if err != nil {
		return domain.Card{}, err
	}
	ref, err := d.RefAt(index)
	if err != nil {
		return domain.Card{}, err
	}
	card, _ := d.Get(ref)
	return card, nil
}

// Delete removes the card at position index in deck order and saves the deck.
func (e *Engine) Delete(index int) (domain.Card, error) {
	d, err := e.Deck()
	if err != nil {
		return domain.Card{}, err
	}
	ref, err := d.RefAt(index)
	if err != nil {
		return domain.Card{}, err
	}
	return d.Remove(ref)
}

// History returns up to limit journaled sessions, most recent first.
func (e *Engine) History(ctx context.Context, limit int) ([]storage.SessionRow, error) {
	if e.journal == nil {
		return nil, ErrNoJournal
	}
	return e.journal.RecentSessions(ctx, limit)
}

// Imports returns up to limit journaled imports, most recent first.
func (e *Engine) Imports(ctx context.Context, limit int) ([]storage.ImportRow, error) {
	if e.journal == nil {
		return nil, ErrNoJournal
	}
	return e.journal.RecentImports(ctx, limit)
}

// Sources returns every import source with the time it was last imported.
func (e *Engine) Sources(ctx context.Context) ([]storage.Source, error) {
	if e.journal == nil {
		return nil, ErrNoJournal
	}
	return e.journal.GetAllSources(ctx)
}
