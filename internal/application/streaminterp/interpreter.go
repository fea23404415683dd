// Package streaminterp consumes engine output streams: it assembles the
// chunks into the turn's text, enforces the between-chunk timeout, and
// reacts to operator control while the engine is still talking.
package streaminterp

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sotakimura/conductor/internal/application/promptbuild"
	"github.com/sotakimura/conductor/internal/gateway/engine"
)

// DefaultChunkWait is the maximum silence tolerated between chunks
const DefaultChunkWait = 900 * time.Second

// Control is an operator steering decision
type Control int

const (
	ControlNone Control = iota
	ControlFinalize
	ControlAbort
)

// ParseControl recognizes the control tokens in operator input
func ParseControl(input string) Control {
	switch strings.TrimSpace(input) {
	case promptbuild.TokenApply:
		return ControlFinalize
	case promptbuild.TokenAbort:
		return ControlAbort
	default:
		return ControlNone
	}
}

// TimeoutError indicates the engine went silent for longer than the
// configured chunk wait
type TimeoutError struct {
	Wait time.Duration
}

func (e TimeoutError) Error() string {
	return fmt.Sprintf("engine produced no output for %s", e.Wait)
}

// IsTimeout checks for the engine-silence error
func IsTimeout(err error) bool {
	_, ok := err.(TimeoutError)
	return ok
}

// Outcome is the result of consuming one engine turn
type Outcome struct {
	Text        string
	Control     Control
	ResumeToken string
}

// Interpreter consumes engine streams with a silence deadline
type Interpreter struct {
	chunkWait time.Duration
	display   io.Writer
}

// NewInterpreter creates an interpreter. Zero chunkWait uses the default.
func NewInterpreter(chunkWait time.Duration) *Interpreter {
	if chunkWait <= 0 {
		chunkWait = DefaultChunkWait
	}
	return &Interpreter{chunkWait: chunkWait}
}

// SetDisplay forwards chunk text to w as it arrives, so the operator
// watches the engine talk instead of waiting for the turn to finish.
// Display writes are best effort and never fail the turn.
func (i *Interpreter) SetDisplay(w io.Writer) {
	i.display = w
}

// Consume drains the stream into one Outcome.
// The timeout is between chunks, not end to end: a long turn is fine as
// long as the engine keeps talking. Operator aborts on the control
// channel stop consumption immediately; the partial text is kept for the
// transcript.
func (i *Interpreter) Consume(ctx context.Context, stream *engine.Stream, control <-chan Control) (*Outcome, error) {
	var text strings.Builder

	timer := time.NewTimer(i.chunkWait)
	defer timer.Stop()

	for {
		select {
		case chunk, ok := <-stream.Chunks():
			if !ok {
				outcome := &Outcome{Text: text.String(), ResumeToken: stream.ResumeToken()}
				if err := stream.Err(); err != nil {
					return outcome, err
				}
				return outcome, nil
			}
			text.WriteString(chunk.Text)
			if i.display != nil {
				_, _ = io.WriteString(i.display, chunk.Text)
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(i.chunkWait)

		case <-timer.C:
			return &Outcome{Text: text.String(), ResumeToken: stream.ResumeToken()},
				TimeoutError{Wait: i.chunkWait}

		case c := <-control:
			if c == ControlAbort {
				return &Outcome{Text: text.String(), Control: ControlAbort, ResumeToken: stream.ResumeToken()}, nil
			}

		case <-ctx.Done():
			return &Outcome{Text: text.String(), ResumeToken: stream.ResumeToken()}, ctx.Err()
		}
	}
}
