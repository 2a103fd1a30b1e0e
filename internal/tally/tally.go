package tally

import "github.com/conorfennell/flashdeck/internal/domain"

// Rating is the user's self-reported recall of a card's definition.
type Rating int

const (
	Missed Rating = 1
	Known  Rating = 2
)

// DefaultMaxTally is the number of correct recalls after which a card is
// retired.
const DefaultMaxTally = 10

// Params holds the retirement threshold.
type Params struct {
	MaxTally int
}

// DefaultParams returns the default threshold.
func DefaultParams() *Params {
	return &Params{MaxTally: DefaultMaxTally}
}

// NextState records one scored presentation of card. Viewed always
// increases; Tally increases only when the card was known, and is never
// lowered. The second result reports whether the card reached the threshold
// and must be retired.
func (p *Params) NextState(card domain.Card, rating Rating) (domain.Card, bool) {
	card.Viewed++
	if rating == Known {
		card.Tally++
	}
	return card, p.Retired(card)
}

// Retired reports whether card has reached the threshold.
func (p *Params) Retired(card domain.Card) bool {
	return card.Tally >= p.maxTally()
}

func (p *Params) maxTally() int {
	if p == nil || p.MaxTally <= 0 {
		return DefaultMaxTally
	}
	return p.MaxTally
}
