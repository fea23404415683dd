// Package apply turns a validated operation batch into committed record
// store state. Operations run in batch order against in-memory working
// copies; only when every operation and precondition succeeds does the
// result get staged, committed, and journaled as one unit.
package apply

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sotakimura/conductor/internal/domain/model/contract"
	"github.com/sotakimura/conductor/internal/domain/model/record"
	"github.com/sotakimura/conductor/internal/infra/fs"
	"github.com/sotakimura/conductor/internal/infra/fs/txn"
)

// PreconditionError indicates an operation referenced state that does not
// hold. A failed precondition aborts the whole batch before anything is
// staged.
type PreconditionError struct {
	OpIndex int
	Op      string
	Message string
}

func (e PreconditionError) Error() string {
	return fmt.Sprintf("operations[%d] %s: %s", e.OpIndex, e.Op, e.Message)
}

// IsPrecondition checks for the failed-precondition error
func IsPrecondition(err error) bool {
	_, ok := err.(PreconditionError)
	return ok
}

// JournalEntry is one committed apply in the append-only journal
type JournalEntry struct {
	TS         time.Time            `json:"ts"`
	Session    string               `json:"session"`
	Txn        string               `json:"txn,omitempty"`
	Summary    string               `json:"summary"`
	Operations []contract.Operation `json:"operations"`
}

// Result reports what a committed apply changed
type Result struct {
	TxnID   string
	Created []string
	Updated []string
	Summary string
}

// Applier commits operation batches to the record store
type Applier struct {
	store       record.Store
	txns        *txn.Manager
	journalPath string
	now         func() time.Time
}

// NewApplier creates an applier. The transaction manager's destination
// root must be the truth directory the store reads from.
func NewApplier(store record.Store, txns *txn.Manager, journalPath string) *Applier {
	return &Applier{
		store:       store,
		txns:        txns,
		journalPath: journalPath,
		now:         time.Now,
	}
}

// Apply executes the batch in order and commits the result.
// All-or-nothing: a failure in any operation, the staging, or the journal
// append leaves the store exactly as it was.
//
// An empty batch commits nothing and touches neither store nor journal.
func (a *Applier) Apply(ctx context.Context, sessionID string, batch *contract.OperationBatch) (*Result, error) {
	ops := batch.Ops()
	result := &Result{Summary: batch.SummaryText()}
	if len(ops) == 0 {
		return result, nil
	}

	now := a.now().UTC()
	ws := newWorkspace(a.store)

	for i, op := range ops {
		if err := a.applyOne(ws, i, op, now, result); err != nil {
			return nil, err
		}
	}

	tx, err := a.txns.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	result.TxnID = string(tx.Manifest.ID)

	for _, key := range ws.dirtyKeys() {
		rec := ws.records[key]
		data, err := json.MarshalIndent(rec, "", "  ")
		if err != nil {
			_ = a.txns.Rollback(tx, "marshal failed")
			return nil, fmt.Errorf("marshal record %s: %w", rec.ID, err)
		}
		data = append(data, '\n')
		dst := filepath.Join(string(rec.Kind), rec.ID+".json")
		if err := a.txns.StageFile(tx, dst, data); err != nil {
			_ = a.txns.Rollback(tx, "stage failed")
			return nil, fmt.Errorf("stage record %s: %w", rec.ID, err)
		}
	}

	if err := a.txns.MarkIntent(tx); err != nil {
		_ = a.txns.Rollback(tx, "intent failed")
		return nil, fmt.Errorf("mark intent: %w", err)
	}

	entry := JournalEntry{
		TS:         now,
		Session:    sessionID,
		Txn:        result.TxnID,
		Summary:    batch.SummaryText(),
		Operations: ops,
	}
	if err := a.txns.Commit(tx, func() error {
		line, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshal journal entry: %w", err)
		}
		return fs.AppendLineSync(a.journalPath, line)
	}); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	if err := a.txns.Cleanup(tx); err != nil {
		// Committed state is durable; a leftover work dir is only noise
		return result, nil
	}
	return result, nil
}

func (a *Applier) applyOne(ws *workspace, i int, op contract.Operation, now time.Time, result *Result) error {
	switch op.Name {
	case "create_task":
		return a.createTask(ws, i, op, now, result)
	case "update_task":
		return a.updateTask(ws, i, op, now, result)
	case "complete_task":
		return a.completeTask(ws, i, op, now, result)
	case "create_issue":
		return a.createIssue(ws, i, op, now, result)
	case "update_issue":
		return a.updateIssue(ws, i, op, now, result)
	case "add_note":
		return a.addNote(ws, i, op, now, result)
	default:
		// The gate rejects unknown operations; reaching here is a bug
		return fmt.Errorf("operations[%d]: unhandled operation %q", i, op.Name)
	}
}

func (a *Applier) createTask(ws *workspace, i int, op contract.Operation, now time.Time, result *Result) error {
	phaseID := op.StringArg("phase")
	phase, ok := ws.get(record.KindPhase, phaseID)
	if !ok {
		return PreconditionError{OpIndex: i, Op: op.Name, Message: fmt.Sprintf("phase %s does not exist", phaseID)}
	}

	if wf := op.StringArg("workflow"); wf != "" && !ws.workflowExists(wf) {
		return PreconditionError{OpIndex: i, Op: op.Name, Message: fmt.Sprintf("workflow %s does not exist", wf)}
	}

	id := ws.nextID(record.KindTask, "T", 3)
	rec := &record.Record{
		ID:          id,
		Kind:        record.KindTask,
		Title:       op.StringArg("title"),
		Description: op.StringArg("description"),
		Status:      record.StatusOpen,
		Parent:      phase.ID,
		Workflow:    op.StringArg("workflow"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ws.put(rec)

	// Derived state: the parent's children list is maintained in the same
	// committed unit as the new record
	phase.Children = append(phase.Children, id)
	phase.UpdatedAt = now
	ws.put(phase)

	result.Created = append(result.Created, id)
	return nil
}

func (a *Applier) updateTask(ws *workspace, i int, op contract.Operation, now time.Time, result *Result) error {
	rec, ok := ws.get(record.KindTask, op.StringArg("id"))
	if !ok {
		return PreconditionError{OpIndex: i, Op: op.Name, Message: fmt.Sprintf("task %s does not exist", op.StringArg("id"))}
	}

	if op.HasArg("status") {
		status := op.StringArg("status")
		switch status {
		case record.StatusOpen, record.StatusActive, record.StatusCompleted:
		default:
			return PreconditionError{OpIndex: i, Op: op.Name, Message: fmt.Sprintf("invalid task status %q", status)}
		}
		rec.Status = status
	}
	if op.HasArg("title") {
		rec.Title = op.StringArg("title")
	}
	if op.HasArg("description") {
		rec.Description = op.StringArg("description")
	}
	rec.UpdatedAt = now
	ws.put(rec)

	result.Updated = appendUnique(result.Updated, rec.ID)
	return nil
}

func (a *Applier) completeTask(ws *workspace, i int, op contract.Operation, now time.Time, result *Result) error {
	rec, ok := ws.get(record.KindTask, op.StringArg("id"))
	if !ok {
		return PreconditionError{OpIndex: i, Op: op.Name, Message: fmt.Sprintf("task %s does not exist", op.StringArg("id"))}
	}

	rec.Status = record.StatusCompleted
	rec.UpdatedAt = now
	ws.put(rec)

	result.Updated = appendUnique(result.Updated, rec.ID)
	return nil
}

func (a *Applier) createIssue(ws *workspace, i int, op contract.Operation, now time.Time, result *Result) error {
	var parentID string
	if taskID := op.StringArg("task"); taskID != "" {
		task, ok := ws.get(record.KindTask, taskID)
		if !ok {
			return PreconditionError{OpIndex: i, Op: op.Name, Message: fmt.Sprintf("task %s does not exist", taskID)}
		}
		parentID = task.ID
	}

	severity := op.StringArg("severity")
	if severity == "" {
		severity = "normal"
	}

	id := ws.nextID(record.KindIssue, "IS", 3)
	rec := &record.Record{
		ID:        id,
		Kind:      record.KindIssue,
		Title:     op.StringArg("title"),
		Status:    record.StatusOpen,
		Severity:  severity,
		Parent:    parentID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	ws.put(rec)

	if parentID != "" {
		parent, _ := ws.get(record.KindTask, parentID)
		parent.Children = append(parent.Children, id)
		parent.UpdatedAt = now
		ws.put(parent)
	}

	result.Created = append(result.Created, id)
	return nil
}

func (a *Applier) updateIssue(ws *workspace, i int, op contract.Operation, now time.Time, result *Result) error {
	rec, ok := ws.get(record.KindIssue, op.StringArg("id"))
	if !ok {
		return PreconditionError{OpIndex: i, Op: op.Name, Message: fmt.Sprintf("issue %s does not exist", op.StringArg("id"))}
	}

	if op.HasArg("status") {
		status := op.StringArg("status")
		switch status {
		case record.StatusOpen, record.StatusResolved:
		default:
			return PreconditionError{OpIndex: i, Op: op.Name, Message: fmt.Sprintf("invalid issue status %q", status)}
		}
		rec.Status = status
	}
	if op.HasArg("severity") {
		rec.Severity = op.StringArg("severity")
	}
	rec.UpdatedAt = now
	ws.put(rec)

	result.Updated = appendUnique(result.Updated, rec.ID)
	return nil
}

func (a *Applier) addNote(ws *workspace, i int, op contract.Operation, now time.Time, result *Result) error {
	target := op.StringArg("target")
	ref, err := record.ParseRef(target)
	if err != nil {
		return PreconditionError{OpIndex: i, Op: op.Name, Message: err.Error()}
	}
	if ref.Kind == record.KindWorkflow {
		return PreconditionError{OpIndex: i, Op: op.Name, Message: "notes cannot be attached to workflows"}
	}

	rec, ok := ws.get(ref.Kind, ref.ID)
	if !ok {
		return PreconditionError{OpIndex: i, Op: op.Name, Message: fmt.Sprintf("%s %s does not exist", ref.Kind, ref.ID)}
	}

	rec.Notes = append(rec.Notes, record.Note{TS: now, Text: op.StringArg("text")})
	rec.UpdatedAt = now
	ws.put(rec)

	result.Updated = appendUnique(result.Updated, rec.ID)
	return nil
}

func appendUnique(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
