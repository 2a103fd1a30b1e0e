package review

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/conorfennell/flashdeck/internal/deck"
	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/tally"
)

// ErrQuit is returned by a Prompter when the user asks to stop the session.
var ErrQuit = errors.New("session quit")

// Verdict is the user's answer after seeing a definition.
type Verdict int

const (
	Missed Verdict = iota
	Known
	Quit
)

// Prompter is the user-facing side of a session. Both calls block until the
// user responds; there is no timeout.
type Prompter interface {
	// Present shows the card's word, n of total, and returns when the user
	// asks to see the definition.
	Present(ctx context.Context, card domain.Card, n, total int) error
	// Judge shows the card's definition and returns the user's verdict.
	Judge(ctx context.Context, card domain.Card) (Verdict, error)
}

// Run drives a full session over d through p and finishes it. If the user
// quits, input ends, or ctx is cancelled, the session is finished early and
// the cards scored so far are recorded; that is not an error. Any other
// prompter error also finishes the session early and is returned.
func Run(ctx context.Context, d *deck.Deck, p Prompter, opts ...Option) (domain.SessionReport, error) {
	s := Start(d, opts...)

	stopErr := s.drive(ctx, p)
	report, err := s.Finish()
	if err != nil {
		return report, err
	}
	if stopErr != nil && !isStop(stopErr) {
		return report, fmt.Errorf("session interrupted: %w", stopErr)
	}
	if !report.Completed {
		s.logger.Info("Session stopped early", "id", report.ID, "scored", report.Presented, "total", s.Total())
	}
	return report, nil
}

func (s *Session) drive(ctx context.Context, p Prompter) error {
	for s.State() == Presenting {
		if err := ctx.Err(); err != nil {
			return err
		}

		card, err := s.Current()
		if err != nil {
			return err
		}
		if err := p.Present(ctx, card, s.Position()+1, s.Total()); err != nil {
			return err
		}

		card, err = s.Reveal()
		if err != nil {
			return err
		}
		verdict, err := p.Judge(ctx, card)
		if err != nil {
			return err
		}

		switch verdict {
		case Quit:
			return ErrQuit
		case Known:
			err = s.Score(tally.Known)
		default:
			err = s.Score(tally.Missed)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func isStop(err error) bool {
	return errors.Is(err, ErrQuit) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
