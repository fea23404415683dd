// Package mailbox implements the on-disk work-session mailboxes.
//
// Each session owns one directory named <WS-ID>_<slug> containing:
//
//	cookie             write credential, mode 0600
//	meta.json          session metadata (status, parent, resume token)
//	context.json       seed context handed to the engine
//	breadcrumbs.ndjson append-only progress log
//
// Every mutation is gated on the cookie; reads are open. Breadcrumbs are
// append-only: nothing in this package rewrites or truncates the log.
package mailbox

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sotakimura/conductor/internal/domain/model/worksession"
	"github.com/sotakimura/conductor/internal/infra/fs"
)

// MailboxError represents a mailbox access failure
type MailboxError struct {
	Code    string
	Message string
}

func (e MailboxError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Error codes
const (
	codeNotFound      = "MAILBOX_NOT_FOUND"
	codeInvalidCookie = "MAILBOX_INVALID_COOKIE"
)

// NotFound creates the error for a missing mailbox
func NotFound(id string) MailboxError {
	return MailboxError{Code: codeNotFound, Message: fmt.Sprintf("work session not found: %s", id)}
}

// InvalidCookie creates the error for a rejected write credential
func InvalidCookie(id string) MailboxError {
	return MailboxError{Code: codeInvalidCookie, Message: fmt.Sprintf("cookie rejected for work session %s", id)}
}

// IsNotFound checks for the missing-mailbox error
func IsNotFound(err error) bool {
	mbErr, ok := err.(MailboxError)
	return ok && mbErr.Code == codeNotFound
}

// IsInvalidCookie checks for the rejected-cookie error
func IsInvalidCookie(err error) bool {
	mbErr, ok := err.(MailboxError)
	return ok && mbErr.Code == codeInvalidCookie
}

// Meta is the persisted session metadata.
// The cookie is deliberately absent; it lives in its own 0600 file.
type Meta struct {
	ID          string                     `json:"id"`
	Title       string                     `json:"title"`
	Target      string                     `json:"target"`
	Parent      string                     `json:"parent,omitempty"`
	Status      worksession.Status         `json:"status"`
	StartedAt   time.Time                  `json:"started_at"`
	ResumeToken string                     `json:"resume_token,omitempty"`
	Children    []worksession.ChildSummary `json:"children,omitempty"`
}

// Store manages mailbox directories under one root
type Store struct {
	root string
}

// NewStore creates a mailbox store rooted at the ws directory
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Create materializes a new session's mailbox on disk.
// contextDoc is the seed context handed to engines working this session.
func (s *Store) Create(ws *worksession.WorkSession, contextDoc []byte) (string, error) {
	dir := filepath.Join(s.root, ws.ID()+"_"+worksession.Slugify(ws.Title()))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create mailbox %s: %w", dir, err)
	}

	meta := Meta{
		ID:        ws.ID(),
		Title:     ws.Title(),
		Target:    ws.Target(),
		Parent:    ws.Parent(),
		Status:    ws.Status(),
		StartedAt: ws.StartedAt(),
	}
	if err := s.writeMeta(dir, &meta); err != nil {
		return "", err
	}

	if contextDoc == nil {
		contextDoc = []byte("{}\n")
	}
	if err := fs.WriteFileSync(filepath.Join(dir, "context.json"), contextDoc, 0644); err != nil {
		return "", fmt.Errorf("failed to write context for %s: %w", ws.ID(), err)
	}

	// Cookie last: until it exists every write is rejected, so an
	// interrupted create leaves a readable but unwritable mailbox
	if err := fs.WriteFileSync(filepath.Join(dir, "cookie"), []byte(ws.Cookie()), 0600); err != nil {
		return "", fmt.Errorf("failed to write cookie for %s: %w", ws.ID(), err)
	}

	return dir, nil
}

// DirFor resolves the mailbox directory for a session id
func (s *Store) DirFor(id string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(s.root, id+"_*"))
	if err != nil || len(matches) == 0 {
		return "", NotFound(id)
	}
	return matches[0], nil
}

// Load reads a session's metadata
func (s *Store) Load(id string) (*Meta, error) {
	dir, err := s.DirFor(id)
	if err != nil {
		return nil, err
	}
	return s.readMeta(dir)
}

// List returns metadata for every mailbox, newest first by session id.
// ULID ids sort chronologically, so a reverse id sort is a time sort.
func (s *Store) List() ([]*Meta, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list mailboxes: %w", err)
	}

	var metas []*Meta
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), "WS-") {
			continue
		}
		meta, err := s.readMeta(filepath.Join(s.root, entry.Name()))
		if err != nil {
			continue
		}
		metas = append(metas, meta)
	}

	sort.Slice(metas, func(i, j int) bool { return metas[i].ID > metas[j].ID })
	return metas, nil
}

// ReadCookie returns the session's write credential. Filesystem access to
// the mailbox is possession; this is how the coordinator recovers a cookie
// across process restarts.
func (s *Store) ReadCookie(id string) (string, error) {
	dir, err := s.DirFor(id)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(dir, "cookie"))
	if err != nil {
		return "", fmt.Errorf("failed to read cookie for %s: %w", id, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Context returns the seed context document
func (s *Store) Context(id string) ([]byte, error) {
	dir, err := s.DirFor(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, "context.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read context for %s: %w", id, err)
	}
	return data, nil
}

// AppendBreadcrumb appends one entry to the session's breadcrumb log.
// The cookie must match; a mismatch never partially writes.
func (s *Store) AppendBreadcrumb(id, cookie string, crumb worksession.Breadcrumb) error {
	dir, err := s.checkCookie(id, cookie)
	if err != nil {
		return err
	}

	if crumb.TS.IsZero() {
		crumb.TS = time.Now().UTC()
	}
	line, err := json.Marshal(crumb)
	if err != nil {
		return fmt.Errorf("failed to marshal breadcrumb for %s: %w", id, err)
	}
	return fs.AppendLineSync(filepath.Join(dir, "breadcrumbs.ndjson"), line)
}

// Breadcrumbs reads the full breadcrumb log. No cookie required; the log
// is readable by anyone with filesystem access.
func (s *Store) Breadcrumbs(id string) ([]worksession.Breadcrumb, error) {
	dir, err := s.DirFor(id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, "breadcrumbs.ndjson"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read breadcrumbs for %s: %w", id, err)
	}

	var crumbs []worksession.Breadcrumb
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var crumb worksession.Breadcrumb
		if err := json.Unmarshal([]byte(line), &crumb); err != nil {
			return nil, fmt.Errorf("corrupt breadcrumb in %s: %w", id, err)
		}
		crumbs = append(crumbs, crumb)
	}
	return crumbs, nil
}

// UpdateStatus rewrites the session status. Cookie-gated.
func (s *Store) UpdateStatus(id, cookie string, status worksession.Status) error {
	return s.mutateMeta(id, cookie, func(meta *Meta) {
		meta.Status = status
	})
}

// SetResumeToken stores the engine resume token for later sessions. Cookie-gated.
func (s *Store) SetResumeToken(id, cookie, token string) error {
	return s.mutateMeta(id, cookie, func(meta *Meta) {
		meta.ResumeToken = token
	})
}

// AddChildSummary records a completed child's rollup in the parent's
// metadata. Cookie-gated with the parent's cookie.
func (s *Store) AddChildSummary(id, cookie string, child worksession.ChildSummary) error {
	return s.mutateMeta(id, cookie, func(meta *Meta) {
		meta.Children = append(meta.Children, child)
	})
}

func (s *Store) mutateMeta(id, cookie string, mutate func(*Meta)) error {
	dir, err := s.checkCookie(id, cookie)
	if err != nil {
		return err
	}

	meta, err := s.readMeta(dir)
	if err != nil {
		return err
	}
	mutate(meta)
	return s.writeMeta(dir, meta)
}

func (s *Store) checkCookie(id, cookie string) (string, error) {
	dir, err := s.DirFor(id)
	if err != nil {
		return "", err
	}

	stored, err := os.ReadFile(filepath.Join(dir, "cookie"))
	if err != nil {
		return "", fmt.Errorf("failed to read cookie for %s: %w", id, err)
	}

	expected := strings.TrimSpace(string(stored))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(cookie)) != 1 {
		return "", InvalidCookie(id)
	}
	return dir, nil
}

func (s *Store) readMeta(dir string) (*Meta, error) {
	data, err := os.ReadFile(filepath.Join(dir, "meta.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata in %s: %w", dir, err)
	}
	var meta Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("corrupt metadata in %s: %w", dir, err)
	}
	return &meta, nil
}

func (s *Store) writeMeta(dir string, meta *Meta) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal metadata for %s: %w", meta.ID, err)
	}
	data = append(data, '\n')
	if err := fs.WriteFileSync(filepath.Join(dir, "meta.json"), data, 0644); err != nil {
		return fmt.Errorf("failed to write metadata for %s: %w", meta.ID, err)
	}
	return nil
}
