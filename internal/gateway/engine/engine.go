// Package engine adapts external AI CLI processes behind one gateway
// contract. Each adapter declares how it takes input (streamed over stdin
// or staged in a file) and how it frames output (stream-json events or
// plain text lines); everything above the gateway consumes the same
// chunk stream regardless of which binary is running.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// errNoResume is the cause recorded when a resume token is handed to an
// engine whose capability does not include resume
var errNoResume = errors.New("engine does not support session resume")

// InputMode describes how an engine receives its prompt
type InputMode string

const (
	InputStdin      InputMode = "stdin-stream"
	InputStagedFile InputMode = "staged-file"
)

// Framing describes how an engine structures its output
type Framing string

const (
	FramingStreamJSON Framing = "stream-json"
	FramingPlainText  Framing = "plain-text"
)

// Capability declares what an adapter supports
type Capability struct {
	Name           string
	Input          InputMode
	Framing        Framing
	SupportsResume bool
}

// Request is one engine invocation
type Request struct {
	Prompt      string
	ResumeToken string
	WorkDir     string
}

// Chunk is one unit of engine output
type Chunk struct {
	Text string
	Meta map[string]string
}

// Engine is the gateway contract for an external AI process.
// Start launches the process and returns immediately; output arrives on
// the stream and the final error is available after the stream closes.
type Engine interface {
	Name() string
	Capability() Capability
	Start(ctx context.Context, req Request) (*Stream, error)
}

// UnavailableError indicates the requested engine binary was not found.
// Alternatives lists engines that are installed, so callers can suggest
// a fallback instead of a bare failure.
type UnavailableError struct {
	Requested    string
	Alternatives []string
}

func (e UnavailableError) Error() string {
	if len(e.Alternatives) == 0 {
		return fmt.Sprintf("engine %q is not available and no alternatives are installed", e.Requested)
	}
	return fmt.Sprintf("engine %q is not available (installed: %s)", e.Requested, strings.Join(e.Alternatives, ", "))
}

// IsUnavailable checks for the missing-engine error
func IsUnavailable(err error) bool {
	_, ok := err.(UnavailableError)
	return ok
}

// ResumeFailedError indicates a resume attempt died before producing any
// output, which usually means the token no longer names a live session
type ResumeFailedError struct {
	Engine string
	Token  string
	Cause  error
}

func (e ResumeFailedError) Error() string {
	return fmt.Sprintf("engine %s failed to resume session %s: %v", e.Engine, e.Token, e.Cause)
}

func (e ResumeFailedError) Unwrap() error { return e.Cause }

// IsResumeFailed checks for the failed-resume error
func IsResumeFailed(err error) bool {
	_, ok := err.(ResumeFailedError)
	return ok
}
