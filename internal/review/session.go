// Package review runs one shuffle/present/score/retire pass over a deck.
//
// A Session moves through Presenting -> Revealed -> Presenting ... -> Done,
// one card at a time. Scores are staged in the session and applied to the
// deck in a single save when the session is finished, so the file never
// holds a half-reviewed deck.
package review

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/flashdeck/internal/deck"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/tally"
)

// ErrState is returned when a session operation is called in the wrong state.
var ErrState = errors.New("invalid session state")

// State is the position of a session in its state machine.
type State int

const (
	// Presenting: the current card's word is shown.
	Presenting State = iota
	// Revealed: the current card's definition is shown, awaiting a score.
	Revealed
	// Done: every card has been scored; Finish has not been called yet.
	Done
	// Ended: Finish has applied the results.
	Ended
)

func (s State) String() string {
	switch s {
	case Presenting:
		return "presenting"
	case Revealed:
		return "revealed"
	case Done:
		return "done"
	case Ended:
		return "ended"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Option configures a Session.
type Option func(*Session)

// WithParams sets the retirement threshold.
func WithParams(p *tally.Params) Option {
	return func(s *Session) { s.params = p }
}

// WithRand sets the source used to shuffle the deck.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// WithShuffle turns shuffling on or off. Shuffling is on by default.
func WithShuffle(on bool) Option {
	return func(s *Session) { s.shuffle = on }
}

// WithDryRun makes Finish report the results without recording them.
func WithDryRun(on bool) Option {
	return func(s *Session) { s.dryRun = on }
}

// WithClock sets the clock used for the report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

type staged struct {
	ref    deck.Ref
	card   domain.Card
	retire bool
}

// Session is one review pass over a deck.
type Session struct {
	deck    *deck.Deck
	params  *tally.Params
	rng     *rand.Rand
	shuffle bool
	dryRun  bool
	now     func() time.Time
	logger  *slog.Logger

	order  []deck.Ref
	pos    int
	state  State
	scored []staged
	missed []deck.Ref
	report domain.SessionReport
}

// Start fixes the presentation order for a new session: a uniformly random
// permutation of every card in d, drawn afresh for each session.
func Start(d *deck.Deck, opts ...Option) *Session {
	s := &Session{
		deck:    d,
		params:  tally.DefaultParams(),
		shuffle: true,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	s.order = d.Refs()
	if s.shuffle {
		s.rng.Shuffle(len(s.order), func(i, j int) {
			s.order[i], s.order[j] = s.order[j], s.order[i]
		})
	}

	s.report = domain.SessionReport{
		ID:        uuid.NewString(),
		Retired:   []string{},
		Missed:    []string{},
		MissedAt:  []int{},
		StartedAt: s.now(),
	}
	if len(s.order) == 0 {
		s.state = Done
	}
	s.logger.Debug("Session started", "id", s.report.ID, "cards", len(s.order), "shuffle", s.shuffle, "dry_run", s.dryRun)
	return s
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Total returns the number of cards in the session.
func (s *Session) Total() int { return len(s.order) }

// Position returns the 0-based index of the current card in the
// presentation order.
func (s *Session) Position() int { return s.pos }

// Current returns the card being presented or revealed.
func (s *Session) Current() (domain.Card, error) {
	if s.state != Presenting && s.state != Revealed {
		return domain.Card{}, fmt.Errorf("%w: no current card while %s", ErrState, s.state)
	}
	card, ok := s.deck.Get(s.order[s.pos])
	if !ok {
		return domain.Card{}, domain.ErrCardNotFound
	}
	return card, nil
}

// Reveal moves from Presenting to Revealed and returns the card whose
// definition is now shown.
func (s *Session) Reveal() (domain.Card, error) {
	if s.state != Presenting {
		return domain.Card{}, fmt.Errorf("%w: cannot reveal while %s", ErrState, s.state)
	}
	card, err := s.Current()
	if err != nil {
		return domain.Card{}, err
	}
	s.state = Revealed
	return card, nil
}

// Score records the user's verdict for the revealed card and advances to the
// next card, or to Done after the last one.
func (s *Session) Score(rating tally.Rating) error {
	if s.state != Revealed {
		return fmt.Errorf("%w: cannot score while %s", ErrState, s.state)
	}
	card, err := s.Current()
	if err != nil {
		return err
	}

	next, retire := s.params.NextState(card, rating)
	s.scored = append(s.scored, staged{ref: s.order[s.pos], card: next, retire: retire})

	s.report.Presented++
	if rating == tally.Known {
		s.report.Correct++
	} else {
		s.report.Missed = append(s.report.Missed, card.Word)
		s.missed = append(s.missed, s.order[s.pos])
	}
	if retire {
		s.report.Retired = append(s.report.Retired, card.Word)
	}

	s.pos++
	if s.pos == len(s.order) {
		s.state = Done
	} else {
		s.state = Presenting
	}
	return nil
}

// Finish ends the session: viewed and tally updates of every scored card are
// applied, retired cards are removed, and the deck is saved once. Finishing
// before Done is an abort; only the cards scored so far are applied and the
// report is marked incomplete. In a dry run nothing is applied.
func (s *Session) Finish() (domain.SessionReport, error) {
	if s.state == Ended {
		return s.report, fmt.Errorf("%w: session already ended", ErrState)
	}

	report := s.report
	report.Completed = s.state == Done
	report.EndedAt = s.now()

	if !s.dryRun {
		err := s.deck.Batch(func() error {
			for _, st := range s.scored {
				if st.retire {
					if err := s.deck.Drop(st.ref); err != nil {
						return fmt.Errorf("failed to retire %q: %w", st.card.Word, err)
					}
					continue
				}
				if err := s.deck.Replace(st.ref, st.card); err != nil {
					return fmt.Errorf("failed to update %q: %w", st.card.Word, err)
				}
			}
			return nil
		})
		if err != nil {
			return report, err
		}
		report.Recorded = true
	}
	report.MissedAt = s.missedPositions()

	s.state = Ended
	s.report = report
	s.logger.Info("Session finished",
		"id", report.ID,
		"presented", report.Presented,
		"correct", report.Correct,
		"retired", len(report.Retired),
		"completed", report.Completed,
		"recorded", report.Recorded,
	)
	return report, nil
}

// missedPositions returns where each missed card now sits in deck order.
// Missed cards are never retired, so every one is still in the deck.
func (s *Session) missedPositions() []int {
	position := make(map[deck.Ref]int, s.deck.Len())
	for i, ref := range s.deck.Refs() {
		position[ref] = i
	}
	at := make([]int, 0, len(s.missed))
	for _, ref := range s.missed {
		if i, ok := position[ref]; ok {
			at = append(at, i)
		}
	}
	return at
}
