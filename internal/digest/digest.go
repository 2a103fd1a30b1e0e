// Package digest derives comparison keys from card content.
package digest

import (
	"crypto/sha256"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/conorfennell/flashdeck/internal/domain"
)

// Word returns the soft key used to match cards by word: the word trimmed of
// surrounding whitespace, with line endings normalised and Unicode composed
// to NFC, so a word typed with a combining accent matches its precomposed
// form.
func Word(word string) string {
	w := domain.NormalizeText(word)
	w = strings.TrimSpace(w)
	return norm.NFC.String(w)
}

// Cards returns a SHA-256 fingerprint of the ordered card list. Two decks
// with the same fingerprint hold the same cards in the same order with the
// same history.
func Cards(cards []domain.Card) string {
	h := sha256.New()
	for _, c := range cards {
		// unit/record separators keep field boundaries unambiguous
		h.Write([]byte(c.Word))
		h.Write([]byte{0x1f})
		h.Write([]byte(c.Definition))
		h.Write([]byte{0x1f})
		h.Write([]byte(c.Created.Format("2006-01-02")))
		h.Write([]byte{0x1f})
		h.Write([]byte(strconv.Itoa(c.Viewed)))
		h.Write([]byte{0x1f})
		h.Write([]byte(strconv.Itoa(c.Tally)))
		h.Write([]byte{0x1e})
	}
	return fmt.Sprintf("%x", h.Sum(nil))
}
