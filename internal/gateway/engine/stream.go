package engine

import "sync"

// streamBuffer bounds how far an engine can run ahead of its consumer
const streamBuffer = 64

// Stream carries engine output to the consumer.
// Chunks arrive on a bounded channel; Err and ResumeToken are valid once
// the channel is closed.
type Stream struct {
	chunks chan Chunk

	mu          sync.Mutex
	err         error
	resumeToken string
	emitted     bool
}

func newStream() *Stream {
	return &Stream{chunks: make(chan Chunk, streamBuffer)}
}

// Chunks returns the output channel. It is closed when the engine exits.
func (s *Stream) Chunks() <-chan Chunk { return s.chunks }

// Err returns the terminal error, if any. Valid after Chunks is closed.
func (s *Stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// ResumeToken returns the engine-issued token for resuming this
// conversation, or empty if the engine never reported one.
func (s *Stream) ResumeToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resumeToken
}

func (s *Stream) emit(c Chunk) {
	s.mu.Lock()
	s.emitted = true
	s.mu.Unlock()
	s.chunks <- c
}

func (s *Stream) emittedAny() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.emitted
}

func (s *Stream) setResumeToken(token string) {
	if token == "" {
		return
	}
	s.mu.Lock()
	s.resumeToken = token
	s.mu.Unlock()
}

func (s *Stream) finish(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	close(s.chunks)
}
