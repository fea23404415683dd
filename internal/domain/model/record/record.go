// Package record defines the repo-truth record shapes: keyed JSON documents
// for tasks, phases, tracks, and issues, plus YAML workflow documents, and
// the reference syntax that links them.
package record

import (
	"fmt"
	"strings"
	"time"
)

// Kind identifies a record type in the store
type Kind string

const (
	KindTask     Kind = "task"
	KindPhase    Kind = "phase"
	KindTrack    Kind = "track"
	KindIssue    Kind = "issue"
	KindWorkflow Kind = "workflow"
)

// GeneralTarget is the pseudo-target for conversations not bound to a record
const GeneralTarget = "general"

// Ref is a parsed record reference such as T-001 or PH-01
type Ref struct {
	Kind Kind
	ID   string
}

// prefixes maps reference prefixes to kinds
var prefixes = map[string]Kind{
	"T":  KindTask,
	"PH": KindPhase,
	"TR": KindTrack,
	"IS": KindIssue,
	"WF": KindWorkflow,
}

// ParseRef parses a reference string into a Ref.
// Accepted forms: T-001, PH-01, TR-01, IS-001, WF-01.
func ParseRef(s string) (Ref, error) {
	s = strings.TrimSpace(s)
	prefix, _, found := strings.Cut(s, "-")
	if !found {
		return Ref{}, fmt.Errorf("invalid record reference %q: missing prefix", s)
	}
	kind, ok := prefixes[strings.ToUpper(prefix)]
	if !ok {
		return Ref{}, fmt.Errorf("invalid record reference %q: unknown prefix %q", s, prefix)
	}
	return Ref{Kind: kind, ID: strings.ToUpper(s)}, nil
}

// String returns the reference form of the Ref
func (r Ref) String() string { return r.ID }

// Note is a timestamped free-text annotation on a record
type Note struct {
	TS   time.Time `json:"ts"`
	Text string    `json:"text"`
}

// Record is one repo-truth document.
// Parent links follow the hierarchy task -> phase -> track; Children is
// derived state maintained by the applier as part of each committed batch.
type Record struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Severity    string    `json:"severity,omitempty"` // issues only
	Parent      string    `json:"parent,omitempty"`
	Workflow    string    `json:"workflow,omitempty"`
	Children    []string  `json:"children,omitempty"`
	Notes       []Note    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record statuses
const (
	StatusOpen      = "open"
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusResolved  = "resolved"
)

// WorkflowStep is one step of a workflow/runbook document
type WorkflowStep struct {
	Name     string `yaml:"name"`
	Guidance string `yaml:"guidance"`
}

// Workflow is a runbook linked from a record, stored as YAML
type Workflow struct {
	ID    string         `yaml:"id"`
	Title string         `yaml:"title"`
	Steps []WorkflowStep `yaml:"steps"`
}

// StoreError represents a record store failure
type StoreError struct {
	Code    string
	Message string
}

func (e StoreError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// ErrNotFound indicates the referenced record does not exist
var ErrNotFound = StoreError{
	Code:    "RECORD_NOT_FOUND",
	Message: "Record not found",
}

// NotFound creates a not-found error naming the missing record
func NotFound(kind Kind, id string) StoreError {
	return StoreError{
		Code:    ErrNotFound.Code,
		Message: fmt.Sprintf("Record not found: %s/%s", kind, id),
	}
}

// IsNotFound checks if the error is a record not-found error
func IsNotFound(err error) bool {
	storeErr, ok := err.(StoreError)
	return ok && storeErr.Code == ErrNotFound.Code
}

// Store is the repo-truth access contract: keyed get/put/list per kind.
// The store is authoritative; everything above it holds working copies only.
type Store interface {
	Get(kind Kind, id string) (*Record, error)
	Put(kind Kind, id string, rec *Record) error
	List(kind Kind) ([]*Record, error)
	Delete(kind Kind, id string) error
	Exists(kind Kind, id string) bool
	GetWorkflow(id string) (*Workflow, error)
	PutWorkflow(wf *Workflow) error
}
