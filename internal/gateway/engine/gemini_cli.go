package engine

import (
	"context"
	"strings"
)

// GeminiCLI drives the gemini binary. The prompt streams in over stdin
// and the output comes back as plain text lines.
type GeminiCLI struct {
	bin string
}

// NewGeminiCLI creates the adapter for the given binary path
func NewGeminiCLI(bin string) *GeminiCLI {
	if bin == "" {
		bin = "gemini"
	}
	return &GeminiCLI{bin: bin}
}

func (g *GeminiCLI) Name() string { return "gemini" }

func (g *GeminiCLI) Capability() Capability {
	return Capability{
		Name:           "gemini",
		Input:          InputStdin,
		Framing:        FramingPlainText,
		SupportsResume: false,
	}
}

func (g *GeminiCLI) Start(ctx context.Context, req Request) (*Stream, error) {
	if req.ResumeToken != "" {
		return nil, ResumeFailedError{
			Engine: "gemini",
			Token:  req.ResumeToken,
			Cause:  errNoResume,
		}
	}

	stream := newStream()
	err := runProcess(ctx, stream, "gemini", req, g.bin, nil, strings.NewReader(req.Prompt), handlePlainLine, nil)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
