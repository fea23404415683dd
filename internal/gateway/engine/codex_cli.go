package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// CodexCLI drives the codex binary in exec mode. Codex takes its prompt
// from a staged file rather than stdin, and emits plain text lines.
type CodexCLI struct {
	bin string
}

// NewCodexCLI creates the adapter for the given binary path
func NewCodexCLI(bin string) *CodexCLI {
	if bin == "" {
		bin = "codex"
	}
	return &CodexCLI{bin: bin}
}

func (c *CodexCLI) Name() string { return "codex" }

func (c *CodexCLI) Capability() Capability {
	return Capability{
		Name:           "codex",
		Input:          InputStagedFile,
		Framing:        FramingPlainText,
		SupportsResume: false,
	}
}

func (c *CodexCLI) Start(ctx context.Context, req Request) (*Stream, error) {
	if req.ResumeToken != "" {
		return nil, ResumeFailedError{
			Engine: "codex",
			Token:  req.ResumeToken,
			Cause:  errNoResume,
		}
	}

	promptFile, err := stagePrompt(req)
	if err != nil {
		return nil, err
	}

	stream := newStream()
	// The staged file lives only as long as the process that reads it
	cleanup := func() { os.Remove(promptFile) }
	runErr := runProcess(ctx, stream, "codex", req, c.bin, []string{"exec", "--prompt-file", promptFile}, nil, handlePlainLine, cleanup)
	if runErr != nil {
		cleanup()
		return nil, runErr
	}
	return stream, nil
}

// stagePrompt writes the prompt where the engine process can read it.
// The file lands next to the work dir so sandboxed engines can see it.
func stagePrompt(req Request) (string, error) {
	dir := req.WorkDir
	if dir == "" {
		dir = os.TempDir()
	}
	f, err := os.CreateTemp(dir, ".prompt-*.md")
	if err != nil {
		return "", fmt.Errorf("failed to stage prompt file: %w", err)
	}
	if _, err := f.WriteString(req.Prompt); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to write prompt file: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("failed to close prompt file: %w", err)
	}
	return filepath.Clean(f.Name()), nil
}

func handlePlainLine(stream *Stream, line string) {
	stream.emit(Chunk{Text: line + "\n"})
}
