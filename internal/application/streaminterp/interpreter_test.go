package streaminterp

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/sotakimura/conductor/internal/gateway/engine"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestConsumeAssemblesText(t *testing.T) {
	eng := engine.NewMockEngine(
		engine.Chunk{Text: "the plan "},
		engine.Chunk{Text: "has two parts"},
	)
	eng.ResumeToken = "sess-1"
	stream, err := eng.Start(context.Background(), engine.Request{Prompt: "go"})
	require.NoError(t, err)

	outcome, err := NewInterpreter(time.Second).Consume(context.Background(), stream, nil)
	require.NoError(t, err)
	assert.Equal(t, "the plan has two parts", outcome.Text)
	assert.Equal(t, ControlNone, outcome.Control)
	assert.Equal(t, "sess-1", outcome.ResumeToken)
}

func TestConsumeForwardsToDisplay(t *testing.T) {
	eng := engine.NewMockEngine(
		engine.Chunk{Text: "streamed "},
		engine.Chunk{Text: "live"},
	)
	stream, err := eng.Start(context.Background(), engine.Request{Prompt: "go"})
	require.NoError(t, err)

	var display strings.Builder
	interp := NewInterpreter(time.Second)
	interp.SetDisplay(&display)

	outcome, err := interp.Consume(context.Background(), stream, nil)
	require.NoError(t, err)
	assert.Equal(t, "streamed live", outcome.Text)
	assert.Equal(t, outcome.Text, display.String())
}

func TestConsumeTimesOutOnSilence(t *testing.T) {
	// A stream that never produces and never closes
	eng := engine.NewMockEngine(engine.Chunk{Text: "x"})
	eng.ChunkDelay = 5 * time.Second
	ctx, cancel := context.WithCancel(context.Background())
	stream, err := eng.Start(ctx, engine.Request{Prompt: "go"})
	require.NoError(t, err)

	outcome, err := NewInterpreter(30 * time.Millisecond).Consume(context.Background(), stream, nil)
	assert.True(t, IsTimeout(err))
	assert.Empty(t, outcome.Text)

	cancel()
	for range stream.Chunks() {
	}
}

func TestConsumePropagatesEngineError(t *testing.T) {
	eng := engine.NewMockEngine(engine.Chunk{Text: "partial"})
	eng.ExitErr = assert.AnError

	stream, err := eng.Start(context.Background(), engine.Request{Prompt: "go"})
	require.NoError(t, err)

	outcome, err := NewInterpreter(time.Second).Consume(context.Background(), stream, nil)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Equal(t, "partial", outcome.Text, "partial text is kept for the transcript")
}

func TestConsumeOperatorAbort(t *testing.T) {
	eng := engine.NewMockEngine(
		engine.Chunk{Text: "one "},
		engine.Chunk{Text: "two "},
		engine.Chunk{Text: "three"},
	)
	eng.ChunkDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := eng.Start(ctx, engine.Request{Prompt: "go"})
	require.NoError(t, err)

	control := make(chan Control, 1)
	go func() {
		time.Sleep(30 * time.Millisecond)
		control <- ControlAbort
	}()

	outcome, err := NewInterpreter(time.Second).Consume(context.Background(), stream, control)
	require.NoError(t, err)
	assert.Equal(t, ControlAbort, outcome.Control)

	cancel()
	for range stream.Chunks() {
	}
}

func TestConsumeContextCancellation(t *testing.T) {
	eng := engine.NewMockEngine(engine.Chunk{Text: "x"})
	eng.ChunkDelay = 5 * time.Second

	streamCtx, cancelStream := context.WithCancel(context.Background())
	stream, err := eng.Start(streamCtx, engine.Request{Prompt: "go"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = NewInterpreter(time.Minute).Consume(ctx, stream, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	cancelStream()
	for range stream.Chunks() {
	}
}

func TestParseControl(t *testing.T) {
	assert.Equal(t, ControlFinalize, ParseControl("/apply"))
	assert.Equal(t, ControlFinalize, ParseControl("  /apply  "))
	assert.Equal(t, ControlAbort, ParseControl("/abort"))
	assert.Equal(t, ControlNone, ParseControl("apply the change"))
	assert.Equal(t, ControlNone, ParseControl(""))
}

func TestZeroChunkWaitUsesDefault(t *testing.T) {
	i := NewInterpreter(0)
	assert.Equal(t, DefaultChunkWait, i.chunkWait)
}
