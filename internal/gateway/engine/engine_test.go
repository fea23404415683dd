package engine

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestParseClaudeEventAssistantText(t *testing.T) {
	line := `{"type":"assistant","session_id":"sess-1","message":{"content":[{"type":"text","text":"hello "},{"type":"text","text":"world"}]}}`

	text, sessionID, ok := parseClaudeEvent(line)
	require.True(t, ok)
	assert.Equal(t, "hello world", text)
	assert.Equal(t, "sess-1", sessionID)
}

func TestParseClaudeEventSystem(t *testing.T) {
	line := `{"type":"system","subtype":"init","session_id":"sess-9"}`

	text, sessionID, ok := parseClaudeEvent(line)
	require.True(t, ok)
	assert.Empty(t, text)
	assert.Equal(t, "sess-9", sessionID)
}

func TestParseClaudeEventResultCarriesNoText(t *testing.T) {
	line := `{"type":"result","result":"full answer repeated here","session_id":"sess-2"}`

	text, sessionID, ok := parseClaudeEvent(line)
	require.True(t, ok)
	assert.Empty(t, text, "result text duplicates assistant chunks and must not be re-emitted")
	assert.Equal(t, "sess-2", sessionID)
}

func TestParseClaudeEventNotJSON(t *testing.T) {
	_, _, ok := parseClaudeEvent("plain log output")
	assert.False(t, ok)
}

func TestParseClaudeEventIgnoresNonTextBlocks(t *testing.T) {
	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","text":""},{"type":"text","text":"kept"}]}}`

	text, _, ok := parseClaudeEvent(line)
	require.True(t, ok)
	assert.Equal(t, "kept", text)
}

func TestFactoryResolvesInstalledEngine(t *testing.T) {
	f := NewFactory(nil)
	f.lookPath = func(name string) (string, error) {
		if name == "claude" {
			return "/usr/local/bin/claude", nil
		}
		return "", errors.New("not found")
	}

	eng, err := f.Resolve("claude")
	require.NoError(t, err)
	assert.Equal(t, "claude", eng.Name())
	assert.Equal(t, FramingStreamJSON, eng.Capability().Framing)
	assert.True(t, eng.Capability().SupportsResume)
}

func TestFactoryReportsAlternatives(t *testing.T) {
	f := NewFactory(nil)
	f.lookPath = func(name string) (string, error) {
		if name == "gemini" || name == "codex" {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}

	_, err := f.Resolve("claude")
	require.True(t, IsUnavailable(err))
	unavailable := err.(UnavailableError)
	assert.Equal(t, "claude", unavailable.Requested)
	assert.Equal(t, []string{"codex", "gemini"}, unavailable.Alternatives)
}

func TestFactoryBinOverrideSkipsProbe(t *testing.T) {
	f := NewFactory(map[string]string{"codex": "/opt/codex/bin/codex"})
	f.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	eng, err := f.Resolve("codex")
	require.NoError(t, err)
	assert.Equal(t, "codex", eng.Name())
	assert.Equal(t, InputStagedFile, eng.Capability().Input)
}

func TestFactoryUnknownEngine(t *testing.T) {
	f := NewFactory(nil)
	f.lookPath = func(string) (string, error) { return "", errors.New("not found") }

	_, err := f.Resolve("copilot")
	assert.True(t, IsUnavailable(err))
}

func TestCodexRejectsResumeToken(t *testing.T) {
	eng := NewCodexCLI("codex")
	_, err := eng.Start(context.Background(), Request{Prompt: "hi", ResumeToken: "old-session"})
	assert.True(t, IsResumeFailed(err))
}

func TestCodexRemovesStagedPromptAfterExit(t *testing.T) {
	workDir := t.TempDir()
	c := NewCodexCLI("true")

	stream, err := c.Start(context.Background(), Request{Prompt: "hello", WorkDir: workDir})
	require.NoError(t, err)
	for range stream.Chunks() {
	}
	require.NoError(t, stream.Err())

	leftovers, err := filepath.Glob(filepath.Join(workDir, ".prompt-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "staged prompt must not outlive the process")
}

func TestGeminiRejectsResumeToken(t *testing.T) {
	eng := NewGeminiCLI("gemini")
	_, err := eng.Start(context.Background(), Request{Prompt: "hi", ResumeToken: "old-session"})
	assert.True(t, IsResumeFailed(err))
}

func TestMockEngineReplaysChunks(t *testing.T) {
	eng := NewMockEngine(Chunk{Text: "part one "}, Chunk{Text: "part two"})
	eng.ResumeToken = "mock-sess"

	stream, err := eng.Start(context.Background(), Request{Prompt: "go"})
	require.NoError(t, err)

	var text string
	for c := range stream.Chunks() {
		text += c.Text
	}
	assert.Equal(t, "part one part two", text)
	assert.NoError(t, stream.Err())
	assert.Equal(t, "mock-sess", stream.ResumeToken())
	require.Len(t, eng.Requests, 1)
	assert.Equal(t, "go", eng.Requests[0].Prompt)
}

func TestMockEngineResumeFailure(t *testing.T) {
	eng := NewMockEngine()
	eng.ExitErr = fmt.Errorf("session expired")

	stream, err := eng.Start(context.Background(), Request{Prompt: "go", ResumeToken: "stale"})
	require.NoError(t, err)

	for range stream.Chunks() {
	}
	assert.True(t, IsResumeFailed(stream.Err()))
}

func TestStreamResumeTokenAfterClose(t *testing.T) {
	stream := newStream()
	stream.setResumeToken("tok")
	stream.setResumeToken("") // empty never clears
	stream.finish(nil)

	for range stream.Chunks() {
	}
	assert.Equal(t, "tok", stream.ResumeToken())
}

func TestUnavailableErrorMessage(t *testing.T) {
	err := UnavailableError{Requested: "claude", Alternatives: []string{"codex"}}
	assert.Contains(t, err.Error(), `"claude"`)
	assert.Contains(t, err.Error(), "codex")

	bare := UnavailableError{Requested: "claude"}
	assert.Contains(t, bare.Error(), "no alternatives")
}
