// Package worksession coordinates the work-session lifecycle over the
// mailbox store: starting sessions, appending progress, stacking child
// sessions under a paused parent, and rolling completed children back up.
package worksession

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sotakimura/conductor/internal/application/contextres"
	wsmodel "github.com/sotakimura/conductor/internal/domain/model/worksession"
	"github.com/sotakimura/conductor/internal/infra/mailbox"
)

// ContextDoc is the seed context written into a new mailbox
type ContextDoc struct {
	Target    string   `json:"target"`
	Title     string   `json:"title"`
	Parent    string   `json:"parent,omitempty"`
	Ancestors []string `json:"ancestors,omitempty"`
	Workflow  string   `json:"workflow,omitempty"`
}

// Service coordinates work sessions
type Service struct {
	boxes    *mailbox.Store
	resolver *contextres.Resolver
}

// NewService creates a coordinator over the given mailbox store
func NewService(boxes *mailbox.Store, resolver *contextres.Resolver) *Service {
	return &Service{boxes: boxes, resolver: resolver}
}

// Start creates a new top-level work session.
// The target must resolve; sessions are never started against phantom
// records. The returned session carries the freshly minted cookie, which
// is the caller's only chance to hold it in memory.
func (s *Service) Start(title, target string) (*wsmodel.WorkSession, error) {
	resolved, err := s.resolver.Resolve(target)
	if err != nil {
		return nil, err
	}

	ws := wsmodel.New(title, resolved.TargetRef, "")
	if _, err := s.boxes.Create(ws, s.contextDoc(ws, resolved)); err != nil {
		return nil, err
	}
	return ws, nil
}

// StackChild pauses the parent and creates a child session under it.
// The parent cookie gates the stack; the child gets its own cookie and
// never learns the parent's.
func (s *Service) StackChild(parentID, parentCookie, title string) (*wsmodel.WorkSession, error) {
	parent, err := s.boxes.Load(parentID)
	if err != nil {
		return nil, err
	}
	if parent.Status == wsmodel.StatusCompleted {
		return nil, fmt.Errorf("cannot stack under completed session %s", parentID)
	}

	// Pausing is cookie-gated, so this also proves possession before any
	// child state exists
	if err := s.boxes.UpdateStatus(parentID, parentCookie, wsmodel.StatusPaused); err != nil {
		return nil, err
	}

	resolved, err := s.resolver.Resolve(parent.Target)
	if err != nil {
		return nil, err
	}

	child := wsmodel.New(title, parent.Target, parentID)
	if _, err := s.boxes.Create(child, s.contextDoc(child, resolved)); err != nil {
		return nil, err
	}
	return child, nil
}

// Crumb appends one progress note to a session's breadcrumb log
func (s *Service) Crumb(id, cookie, message, source string) error {
	return s.boxes.AppendBreadcrumb(id, cookie, wsmodel.Breadcrumb{
		Kind:    wsmodel.CrumbNote,
		Message: message,
		Source:  source,
	})
}

// Complete finishes a session. A child session rolls its summary up into
// the parent's mailbox and reactivates the parent; the rollup crumb and
// the child summary land under the parent's own cookie, which the
// coordinator recovers from disk.
func (s *Service) Complete(id, cookie, summary string) error {
	meta, err := s.boxes.Load(id)
	if err != nil {
		return err
	}
	if meta.Status == wsmodel.StatusCompleted {
		return fmt.Errorf("session %s already completed", id)
	}

	if err := s.boxes.UpdateStatus(id, cookie, wsmodel.StatusCompleted); err != nil {
		return err
	}

	if meta.Parent == "" {
		return nil
	}

	parentCookie, err := s.boxes.ReadCookie(meta.Parent)
	if err != nil {
		return fmt.Errorf("rollup to %s: %w", meta.Parent, err)
	}
	if err := s.boxes.AppendBreadcrumb(meta.Parent, parentCookie, wsmodel.Breadcrumb{
		Kind:    wsmodel.CrumbRollup,
		Message: summary,
		Source:  id,
	}); err != nil {
		return fmt.Errorf("rollup to %s: %w", meta.Parent, err)
	}
	if err := s.boxes.AddChildSummary(meta.Parent, parentCookie, wsmodel.ChildSummary{
		ID:      id,
		Title:   meta.Title,
		Summary: summary,
	}); err != nil {
		return fmt.Errorf("rollup to %s: %w", meta.Parent, err)
	}

	// The parent resumes once its child is folded in
	if err := s.boxes.UpdateStatus(meta.Parent, parentCookie, wsmodel.StatusActive); err != nil {
		return fmt.Errorf("reactivate %s: %w", meta.Parent, err)
	}
	return nil
}

// Status returns a session's metadata and full breadcrumb trail
func (s *Service) Status(id string) (*mailbox.Meta, []wsmodel.Breadcrumb, error) {
	meta, err := s.boxes.Load(id)
	if err != nil {
		return nil, nil, err
	}
	crumbs, err := s.boxes.Breadcrumbs(id)
	if err != nil {
		return nil, nil, err
	}
	return meta, crumbs, nil
}

// List returns all known sessions, newest first
func (s *Service) List() ([]*mailbox.Meta, error) {
	return s.boxes.List()
}

// SetResumeToken records the engine resume token on the session
func (s *Service) SetResumeToken(id, cookie, token string) error {
	return s.boxes.SetResumeToken(id, cookie, token)
}

// ResumeSeed composes the catch-up text for an engine picking a session
// back up: the original context plus everything that happened since.
func (s *Service) ResumeSeed(id string) (string, error) {
	meta, crumbs, err := s.Status(id)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Resuming work session %s %q (target: %s, status: %s).\n",
		meta.ID, meta.Title, meta.Target, meta.Status)

	if len(crumbs) > 0 {
		sb.WriteString("\nProgress so far:\n")
		for _, crumb := range crumbs {
			label := "note"
			if crumb.Kind == wsmodel.CrumbRollup {
				label = "rollup from " + crumb.Source
			}
			fmt.Fprintf(&sb, "- [%s] %s\n", label, crumb.Message)
		}
	}
	if len(meta.Children) > 0 {
		sb.WriteString("\nCompleted child sessions:\n")
		for _, child := range meta.Children {
			fmt.Fprintf(&sb, "- %s %q: %s\n", child.ID, child.Title, child.Summary)
		}
	}
	return sb.String(), nil
}

// ResumeToken returns the stored engine resume token, if any
func (s *Service) ResumeToken(id string) (string, error) {
	meta, err := s.boxes.Load(id)
	if err != nil {
		return "", err
	}
	return meta.ResumeToken, nil
}

func (s *Service) contextDoc(ws *wsmodel.WorkSession, resolved *contextres.Context) []byte {
	doc := ContextDoc{
		Target: resolved.TargetRef,
		Title:  ws.Title(),
		Parent: ws.Parent(),
	}
	for _, ancestor := range resolved.Ancestors {
		doc.Ancestors = append(doc.Ancestors, ancestor.ID)
	}
	if resolved.Workflow != nil {
		doc.Workflow = resolved.Workflow.ID
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return []byte("{}\n")
	}
	return append(data, '\n')
}
