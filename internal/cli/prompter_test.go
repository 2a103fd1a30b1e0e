package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/flashdeck/internal/domain"
	"github.com/conorfennell/flashdeck/internal/review"
)

func TestTerminalJudge(t *testing.T) {
	card := domain.Card{Word: "run", Definition: "to move fast [dict](https://example.com/run)", Tally: 2}

	testCases := []struct {
		name     string
		input    string
		expected review.Verdict
		output   []string
	}{
		{name: "Enter means known", input: "\n", expected: review.Known, output: []string{"to move fast [dict]\n"}},
		{name: "Y means known", input: "Y\n", expected: review.Known},
		{name: "N means missed", input: "no\n", expected: review.Missed},
		{name: "Q quits", input: "q\n", expected: review.Quit},
		{name: "Link number prints url", input: "1\ny\n", expected: review.Known, output: []string{"    https://example.com/run\n"}},
		{name: "Missing link", input: "3\nn\n", expected: review.Missed, output: []string{"No link 3"}},
		{name: "Negative number shows urls", input: "-1\ny\n", expected: review.Known, output: []string{"to move fast [dict](https://example.com/run)\n"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			term := NewTerminal(strings.NewReader(tc.input), &out, false)

			verdict, err := term.Judge(context.Background(), card)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, verdict)
			for _, s := range tc.output {
				assert.Contains(t, out.String(), s)
			}
		})
	}
}

func TestTerminalPresent(t *testing.T) {
	card := domain.Card{Word: "run", Definition: "to move fast", Tally: 2}

	var out bytes.Buffer
	term := NewTerminal(strings.NewReader("\nq\n"), &out, false)
	require.NoError(t, term.Present(context.Background(), card, 1, 3))
	assert.Contains(t, out.String(), "1 of 3.  run")
	assert.Contains(t, out.String(), "tally: 2")

	assert.ErrorIs(t, term.Present(context.Background(), card, 2, 3), review.ErrQuit)
	assert.ErrorIs(t, term.Present(context.Background(), card, 3, 3), io.EOF)
}

func TestTerminalCancelled(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	term := NewTerminal(pr, io.Discard, false)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := term.Present(ctx, domain.Card{Word: "run"}, 1, 1)
	assert.True(t, errors.Is(err, context.Canceled))
}

// blankLines is an input that never ends.
type blankLines struct{}

func (blankLines) Read(p []byte) (int, error) {
	for i := range p {
		p[i] = '\n'
	}
	return len(p), nil
}

func TestTerminalCloseStopsReader(t *testing.T) {
	term := NewTerminal(blankLines{}, io.Discard, false)
	require.NoError(t, term.Present(context.Background(), domain.Card{Word: "run"}, 1, 1))

	term.Close()
	_, err := term.Judge(context.Background(), domain.Card{Word: "run", Definition: "to move fast"})
	assert.ErrorIs(t, err, io.EOF)

	stopped := make(chan struct{})
	go func() {
		for range term.lines {
		}
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("reader still running after Close")
	}
}
