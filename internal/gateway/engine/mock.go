package engine

import (
	"context"
	"time"
)

// MockEngine is an in-process Engine for tests and dry runs.
// Script decides what each request produces; when nil, the canned Chunks
// are replayed for every request.
type MockEngine struct {
	EngineName  string
	Chunks      []Chunk
	ResumeToken string
	StartErr    error
	ExitErr     error
	ChunkDelay  time.Duration
	Script      func(req Request) ([]Chunk, error)

	Requests []Request
}

// NewMockEngine creates a mock that replays the given chunks
func NewMockEngine(chunks ...Chunk) *MockEngine {
	return &MockEngine{EngineName: "mock", Chunks: chunks}
}

func (m *MockEngine) Name() string {
	if m.EngineName == "" {
		return "mock"
	}
	return m.EngineName
}

func (m *MockEngine) Capability() Capability {
	return Capability{
		Name:           m.Name(),
		Input:          InputStdin,
		Framing:        FramingPlainText,
		SupportsResume: true,
	}
}

func (m *MockEngine) Start(ctx context.Context, req Request) (*Stream, error) {
	m.Requests = append(m.Requests, req)
	if m.StartErr != nil {
		return nil, m.StartErr
	}

	chunks := m.Chunks
	exitErr := m.ExitErr
	if m.Script != nil {
		chunks, exitErr = m.Script(req)
	}

	stream := newStream()
	stream.setResumeToken(m.ResumeToken)

	go func() {
		for _, c := range chunks {
			if m.ChunkDelay > 0 {
				select {
				case <-time.After(m.ChunkDelay):
				case <-ctx.Done():
					stream.finish(ctx.Err())
					return
				}
			}
			select {
			case <-ctx.Done():
				stream.finish(ctx.Err())
				return
			default:
			}
			stream.emit(c)
		}
		if exitErr != nil && req.ResumeToken != "" && !stream.emittedAny() {
			exitErr = ResumeFailedError{Engine: m.Name(), Token: req.ResumeToken, Cause: exitErr}
		}
		stream.finish(exitErr)
	}()

	return stream, nil
}
