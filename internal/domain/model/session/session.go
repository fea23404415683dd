// Package session models one logical conversation: its identity, target,
// transcript, and the status transitions between active, awaiting-contract,
// completed, and aborted.
package session

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status represents the session lifecycle state
type Status string

const (
	StatusActive           Status = "active"
	StatusAwaitingContract Status = "awaiting-contract"
	StatusCompleted        Status = "completed"
	StatusAborted          Status = "aborted"
)

// Turn roles in the transcript
const (
	RoleOperator = "operator"
	RoleEngine   = "engine"
	RoleSystem   = "system"
)

// Turn is one transcript entry
type Turn struct {
	TS   time.Time `json:"ts"`
	Role string    `json:"role"`
	Text string    `json:"text"`
}

// SessionError represents an invalid session transition
type SessionError struct {
	Code    string
	Message string
}

func (e SessionError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ErrInvalidTransition indicates a status transition the lifecycle forbids
var ErrInvalidTransition = SessionError{
	Code:    "SESSION_INVALID_TRANSITION",
	Message: "Invalid session status transition",
}

// IsInvalidTransition checks if the error is an invalid transition error
func IsInvalidTransition(err error) bool {
	sessErr, ok := err.(SessionError)
	return ok && sessErr.Code == ErrInvalidTransition.Code
}

// Session is one logical conversation.
// The persisted transcript is the source of truth for resume; a process
// only ever holds a working copy.
type Session struct {
	id          string
	target      string
	engineName  string
	resumeToken string
	status      Status
	turns       []Turn
	startedAt   time.Time
}

// New creates a session bound to a target reference (or "general")
func New(target, engineName string) *Session {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := "SES-" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()

	return &Session{
		id:         id,
		target:     target,
		engineName: engineName,
		status:     StatusActive,
		startedAt:  time.Now().UTC(),
	}
}

// Reconstruct rebuilds a session from persisted data
func Reconstruct(id, target, engineName, resumeToken string, status Status, turns []Turn, startedAt time.Time) *Session {
	return &Session{
		id:          id,
		target:      target,
		engineName:  engineName,
		resumeToken: resumeToken,
		status:      status,
		turns:       turns,
		startedAt:   startedAt,
	}
}

// AppendTurn records one transcript entry
func (s *Session) AppendTurn(role, text string) Turn {
	turn := Turn{TS: time.Now().UTC(), Role: role, Text: text}
	s.turns = append(s.turns, turn)
	return turn
}

// AwaitContract transitions active -> awaiting-contract when the operator
// requests finalization
func (s *Session) AwaitContract() error {
	if s.status != StatusActive {
		return transitionError(s.status, StatusAwaitingContract)
	}
	s.status = StatusAwaitingContract
	return nil
}

// Complete transitions awaiting-contract -> completed after a successful
// apply
func (s *Session) Complete() error {
	if s.status != StatusAwaitingContract {
		return transitionError(s.status, StatusCompleted)
	}
	s.status = StatusCompleted
	return nil
}

// Abort terminates the session from any non-terminal state.
// The transcript is preserved; abort never discards turns.
func (s *Session) Abort() error {
	if s.status == StatusCompleted || s.status == StatusAborted {
		return transitionError(s.status, StatusAborted)
	}
	s.status = StatusAborted
	return nil
}

// Reopen transitions an aborted session back to active for resume.
// Completed sessions stay completed.
func (s *Session) Reopen() error {
	if s.status != StatusAborted && s.status != StatusAwaitingContract {
		return transitionError(s.status, StatusActive)
	}
	s.status = StatusActive
	return nil
}

// SetResumeToken stores the engine-issued resume token for later turns
func (s *Session) SetResumeToken(token string) {
	if token != "" {
		s.resumeToken = token
	}
}

func transitionError(from, to Status) SessionError {
	return SessionError{
		Code:    ErrInvalidTransition.Code,
		Message: fmt.Sprintf("cannot transition session from %s to %s", from, to),
	}
}

// Getters
func (s *Session) ID() string           { return s.id }
func (s *Session) Target() string       { return s.target }
func (s *Session) EngineName() string   { return s.engineName }
func (s *Session) ResumeToken() string  { return s.resumeToken }
func (s *Session) Status() Status       { return s.status }
func (s *Session) Turns() []Turn        { return s.turns }
func (s *Session) StartedAt() time.Time { return s.startedAt }
