// Package worksession models a unit of work with its own mailbox on disk.
// A work session is identified by a WS-prefixed ULID, protected by a
// capability cookie, and accumulates breadcrumbs while an engine runs.
package worksession

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Status represents the work session lifecycle state
type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
)

// Breadcrumb kinds
const (
	CrumbNote   = "note"
	CrumbRollup = "rollup"
)

// Breadcrumb is one append-only progress entry in a session's mailbox
type Breadcrumb struct {
	TS      time.Time `json:"ts"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Source  string    `json:"source,omitempty"`
}

// ChildSummary is what a completed child session rolls up into its parent
type ChildSummary struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// WorkSession is a unit of work with its own mailbox.
// The cookie is the only write credential for the mailbox; a process that
// does not hold it can read breadcrumbs but never append.
type WorkSession struct {
	id        string
	title     string
	target    string
	parent    string
	cookie    string
	status    Status
	startedAt time.Time
}

// New creates a work session and mints its cookie
func New(title, target, parent string) *WorkSession {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id := "WS-" + ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()

	return &WorkSession{
		id:        id,
		title:     title,
		target:    target,
		parent:    parent,
		cookie:    MintCookie(),
		status:    StatusActive,
		startedAt: time.Now().UTC(),
	}
}

// Reconstruct rebuilds a work session from persisted metadata.
// The cookie is not part of the metadata; it lives in its own file and is
// attached only when the caller proves possession.
func Reconstruct(id, title, target, parent string, status Status, startedAt time.Time) *WorkSession {
	return &WorkSession{
		id:        id,
		title:     title,
		target:    target,
		parent:    parent,
		status:    status,
		startedAt: startedAt,
	}
}

// MintCookie generates a fresh write credential. Every session gets its
// own; a child stacked under a parent never inherits the parent's cookie.
func MintCookie() string {
	suffix := make([]byte, 8)
	if _, err := rand.Read(suffix); err != nil {
		panic(fmt.Sprintf("cookie entropy unavailable: %v", err))
	}
	return uuid.NewString() + "-" + hex.EncodeToString(suffix)
}

// Pause marks the session paused so a stacked child can run
func (w *WorkSession) Pause() error {
	if w.status != StatusActive {
		return fmt.Errorf("cannot pause %s session %s", w.status, w.id)
	}
	w.status = StatusPaused
	return nil
}

// Resume reactivates a paused session
func (w *WorkSession) Resume() error {
	if w.status != StatusPaused {
		return fmt.Errorf("cannot resume %s session %s", w.status, w.id)
	}
	w.status = StatusActive
	return nil
}

// Complete terminates the session. Completed is final.
func (w *WorkSession) Complete() error {
	if w.status == StatusCompleted {
		return fmt.Errorf("session %s already completed", w.id)
	}
	w.status = StatusCompleted
	return nil
}

// Getters
func (w *WorkSession) ID() string           { return w.id }
func (w *WorkSession) Title() string        { return w.title }
func (w *WorkSession) Target() string       { return w.target }
func (w *WorkSession) Parent() string       { return w.parent }
func (w *WorkSession) Cookie() string       { return w.cookie }
func (w *WorkSession) Status() Status       { return w.status }
func (w *WorkSession) StartedAt() time.Time { return w.startedAt }
