// Package session persists conversation transcripts as append-only NDJSON,
// one file per session. The file is the source of truth for resume: a
// header line opens the session and every turn and status change lands as
// its own line.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sotakimura/conductor/internal/domain/model/session"
	"github.com/sotakimura/conductor/internal/infra/fs"
)

// event is one NDJSON line in a transcript file
type event struct {
	Type      string         `json:"type"` // header, turn, status, resume_token
	TS        time.Time      `json:"ts,omitempty"`
	ID        string         `json:"id,omitempty"`
	Target    string         `json:"target,omitempty"`
	Engine    string         `json:"engine,omitempty"`
	StartedAt time.Time      `json:"started_at,omitempty"`
	Role      string         `json:"role,omitempty"`
	Text      string         `json:"text,omitempty"`
	Status    session.Status `json:"status,omitempty"`
	Token     string         `json:"token,omitempty"`
}

// TranscriptStore persists sessions under one directory
type TranscriptStore struct {
	dir string
}

// NewTranscriptStore creates a store rooted at the sessions directory
func NewTranscriptStore(dir string) *TranscriptStore {
	return &TranscriptStore{dir: dir}
}

func (s *TranscriptStore) path(id string) string {
	return filepath.Join(s.dir, id+".ndjson")
}

// Open writes the header line for a new session
func (s *TranscriptStore) Open(sess *session.Session) error {
	return s.append(sess.ID(), event{
		Type:      "header",
		ID:        sess.ID(),
		Target:    sess.Target(),
		Engine:    sess.EngineName(),
		StartedAt: sess.StartedAt(),
		Status:    sess.Status(),
	})
}

// AppendTurn records one transcript turn
func (s *TranscriptStore) AppendTurn(id string, turn session.Turn) error {
	return s.append(id, event{Type: "turn", TS: turn.TS, Role: turn.Role, Text: turn.Text})
}

// SetStatus records a status transition
func (s *TranscriptStore) SetStatus(id string, status session.Status) error {
	return s.append(id, event{Type: "status", TS: time.Now().UTC(), Status: status})
}

// SetResumeToken records the engine resume token
func (s *TranscriptStore) SetResumeToken(id, token string) error {
	if token == "" {
		return nil
	}
	return s.append(id, event{Type: "resume_token", TS: time.Now().UTC(), Token: token})
}

func (s *TranscriptStore) append(id string, ev event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal transcript event for %s: %w", id, err)
	}
	return fs.AppendLineSync(s.path(id), line)
}

// Load replays a transcript file into a session.
// The last status and resume token lines win; turns accumulate in order.
func (s *TranscriptStore) Load(id string) (*session.Session, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("session %s not found", id)
		}
		return nil, fmt.Errorf("read transcript %s: %w", id, err)
	}

	var (
		target, engineName, token string
		status                    session.Status
		startedAt                 time.Time
		turns                     []session.Turn
		sawHeader                 bool
	)

	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var ev event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			return nil, fmt.Errorf("corrupt transcript %s: %w", id, err)
		}
		switch ev.Type {
		case "header":
			sawHeader = true
			target = ev.Target
			engineName = ev.Engine
			startedAt = ev.StartedAt
			status = ev.Status
		case "turn":
			turns = append(turns, session.Turn{TS: ev.TS, Role: ev.Role, Text: ev.Text})
		case "status":
			status = ev.Status
		case "resume_token":
			token = ev.Token
		}
	}
	if !sawHeader {
		return nil, fmt.Errorf("transcript %s has no header", id)
	}

	return session.Reconstruct(id, target, engineName, token, status, turns, startedAt), nil
}

// List returns the session ids on disk, newest first
func (s *TranscriptStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".ndjson") || !strings.HasPrefix(name, "SES-") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".ndjson"))
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}
