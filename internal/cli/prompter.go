package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/review"
)

const sessionHelp = `Each word is shown first. Try to recall its meaning, then press Enter to
see the definition. Then answer "Meaning known? (Y/n/k/q)":
    Y or Enter  you knew the definition
    n           you did not know the definition
    k           a number 1, 2, 3, ... prints the k-th link of the definition;
                a negative number -k shows the definition with its links
    q           stop; cards answered so far are still recorded
`

type line struct {
	text string
	err  error
}

// Terminal is a review.Prompter reading answers line by line from a reader.
type Terminal struct {
	in     io.Reader
	out    io.Writer
	dryRun bool

	once  sync.Once
	lines chan line
	done  chan struct{}
	stop  sync.Once
}

// NewTerminal returns a prompter reading from in and writing to out.
func NewTerminal(in io.Reader, out io.Writer, dryRun bool) *Terminal {
	return &Terminal{in: in, out: out, dryRun: dryRun, done: make(chan struct{})}
}

// Close stops the background reader. A read already blocked on the input
// returns when the next line arrives and the line is discarded.
func (t *Terminal) Close() {
	t.stop.Do(func() { close(t.done) })
}

// Intro prints the answer keys.
func (t *Terminal) Intro(total int) {
	fmt.Fprint(t.out, sessionHelp)
	if t.dryRun {
		fmt.Fprintln(t.out, "(dry run: results will not be recorded)")
	}
	fmt.Fprintf(t.out, "\n%d cards.\n\n", total)
}

// Present shows the word and waits for Enter.
func (t *Terminal) Present(ctx context.Context, card domain.Card, n, total int) error {
	fmt.Fprintf(t.out, "%s tally: %d %s\n", strings.Repeat("-", 25), card.Tally, strings.Repeat("-", 25))
	fmt.Fprintf(t.out, "%d of %d.  %s\n", n, total, card.Word)

	answer, err := t.readLine(ctx)
	if err != nil {
		return err
	}
	if isQuit(answer) {
		return review.ErrQuit
	}
	return nil
}

// Judge shows the definition and asks whether it was known.
func (t *Terminal) Judge(ctx context.Context, card domain.Card) (review.Verdict, error) {
	showLinks := false
	for {
		definition := HideLinks(card.Definition)
		if showLinks {
			definition = card.Definition
		}
		fmt.Fprintf(t.out, "%s\n\n", definition)
		fmt.Fprint(t.out, "Meaning known? (Y/n/k/q) ")

		answer, err := t.readLine(ctx)
		if err != nil {
			return review.Missed, err
		}
		fmt.Fprintln(t.out)

		if k, err := strconv.Atoi(answer); err == nil {
			switch {
			case k > 0:
				if url, ok := LinkAt(card.Definition, k); ok {
					fmt.Fprintf(t.out, "    %s\n\n", url)
				} else {
					fmt.Fprintf(t.out, "    No link %d in this definition.\n\n", k)
				}
			case k < 0:
				showLinks = true
			}
			continue
		}

		switch {
		case isQuit(answer):
			return review.Quit, nil
		case strings.HasPrefix(strings.ToLower(answer), "n"):
			return review.Missed, nil
		default:
			return review.Known, nil
		}
	}
}

func isQuit(answer string) bool {
	a := strings.ToLower(answer)
	return strings.HasPrefix(a, "q") || strings.HasPrefix(a, "e")
}

// readLine returns the next trimmed input line. It returns io.EOF when input
// ends or the terminal is closed, and ctx.Err() when ctx is done first.
func (t *Terminal) readLine(ctx context.Context) (string, error) {
	t.once.Do(func() {
		t.lines = make(chan line)
		go t.scan()
	})

	select {
	case <-t.done:
		return "", io.EOF
	default:
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-t.done:
		return "", io.EOF
	case l, ok := <-t.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimSpace(l.text), l.err
	}
}

func (t *Terminal) scan() {
	defer close(t.lines)
	sc := bufio.NewScanner(t.in)
	for sc.Scan() {
		if !t.send(line{text: sc.Text()}) {
			return
		}
	}
	if err := sc.Err(); err != nil {
		t.send(line{err: err})
	}
}

func (t *Terminal) send(l line) bool {
	select {
	case t.lines <- l:
		return true
	case <-t.done:
		return false
	}
}
