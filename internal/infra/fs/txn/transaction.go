package txn

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sotakimura/conductor/internal/infra/fs"
)

// Manager handles the transaction lifecycle.
// All staged destinations are relative to destRoot.
type Manager struct {
	baseDir  string // work area for transactions (e.g., .conductor/var/txn)
	destRoot string // root the destinations resolve against (e.g., .conductor)
}

// NewManager creates a new transaction manager
func NewManager(baseDir, destRoot string) *Manager {
	return &Manager{baseDir: baseDir, destRoot: destRoot}
}

// Begin starts a new transaction
func (m *Manager) Begin(ctx context.Context) (*Transaction, error) {
	txnID := generateTxnID()

	txnDir := filepath.Join(m.baseDir, string(txnID))
	stageDir := filepath.Join(txnDir, "stage")
	undoDir := filepath.Join(txnDir, "undo")

	if err := os.MkdirAll(stageDir, 0755); err != nil {
		return nil, fmt.Errorf("create stage directory: %w", err)
	}
	if err := os.MkdirAll(undoDir, 0755); err != nil {
		return nil, fmt.Errorf("create undo directory: %w", err)
	}
	if err := fs.FsyncDir(m.baseDir); err != nil {
		fmt.Fprintf(os.Stderr, "WARN: fsync txn base directory failed: %v\n", err)
	}

	tx := &Transaction{
		Manifest: &Manifest{
			ID:        txnID,
			Files:     []FileOperation{},
			CreatedAt: time.Now().UTC(),
		},
		Status:   StatusPending,
		BaseDir:  txnDir,
		StageDir: stageDir,
		UndoDir:  undoDir,
	}

	if err := m.saveManifest(tx); err != nil {
		return nil, fmt.Errorf("save manifest: %w", err)
	}
	return tx, nil
}

// StageFile stages content for dst (relative to destRoot) and captures the
// undo snapshot: an existing destination is copied into the undo directory,
// a missing one is recorded for deletion at rollback.
func (m *Manager) StageFile(tx *Transaction, dst string, content []byte) error {
	if tx.Status != StatusPending {
		return fmt.Errorf("cannot stage file: transaction status is %s", tx.Status)
	}
	if filepath.IsAbs(dst) {
		return fmt.Errorf("cannot stage file: destination must be relative, got %s", dst)
	}

	stagePath := filepath.Join(tx.StageDir, dst)
	if err := os.MkdirAll(filepath.Dir(stagePath), 0755); err != nil {
		return fmt.Errorf("create stage parent directory: %w", err)
	}
	if err := fs.WriteFileSync(stagePath, content, 0644); err != nil {
		return fmt.Errorf("write staged file: %w", err)
	}

	finalPath := filepath.Join(m.destRoot, dst)
	opType := "create"
	restore := RestoreOp{Type: "delete", TargetPath: finalPath}
	if prev, err := os.ReadFile(finalPath); err == nil {
		opType = "overwrite"
		undoPath := filepath.Join(tx.UndoDir, dst)
		if err := fs.WriteFileSync(undoPath, prev, 0644); err != nil {
			return fmt.Errorf("write undo snapshot: %w", err)
		}
		restore = RestoreOp{Type: "overwrite", TargetPath: finalPath, UndoPath: undoPath}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("read destination for undo: %w", err)
	}

	tx.Manifest.Files = append(tx.Manifest.Files, FileOperation{
		Type:        opType,
		Destination: dst,
		Size:        int64(len(content)),
	})
	tx.Restores = append(tx.Restores, restore)

	if err := m.saveManifest(tx); err != nil {
		return fmt.Errorf("update manifest: %w", err)
	}
	return nil
}

// MarkIntent marks the transaction as ready to commit
func (m *Manager) MarkIntent(tx *Transaction) error {
	if tx.Status != StatusPending {
		return fmt.Errorf("cannot mark intent: transaction status is %s", tx.Status)
	}
	if err := tx.Manifest.Validate(); err != nil {
		return fmt.Errorf("invalid manifest: %w", err)
	}

	intent := &Intent{
		TxnID:    tx.Manifest.ID,
		MarkedAt: time.Now().UTC(),
		Ready:    true,
	}

	intentData, err := json.MarshalIndent(intent, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}
	if err := fs.WriteFileSync(filepath.Join(tx.BaseDir, "status.intent"), intentData, 0644); err != nil {
		return fmt.Errorf("write intent marker: %w", err)
	}

	tx.Status = StatusIntent
	tx.Intent = intent
	return nil
}

// Commit renames all staged files into place as one unit, runs the journal
// callback, and writes the commit marker.
//
// IDEMPOTENCY: if status.commit already exists this is a no-op success, so
// forward recovery can safely re-run a commit.
// If any rename fails mid-way, the files renamed so far are restored from
// their undo snapshots before the error is returned.
func (m *Manager) Commit(tx *Transaction, withJournal func() error) error {
	commitPath := filepath.Join(tx.BaseDir, "status.commit")
	if _, err := os.Stat(commitPath); err == nil {
		tx.Status = StatusCommit
		return nil
	}

	if tx.Status != StatusIntent {
		return fmt.Errorf("cannot commit: transaction status is %s", tx.Status)
	}

	// Phase 1: rename staged files to final destinations
	var done []int
	for i, op := range tx.Manifest.Files {
		stagePath := filepath.Join(tx.StageDir, op.Destination)
		finalPath := filepath.Join(m.destRoot, op.Destination)

		if err := fs.AtomicRename(stagePath, finalPath); err != nil {
			m.restoreRenamed(tx, done)
			tx.Status = StatusAborted
			return fmt.Errorf("rename %s to %s: %w", stagePath, finalPath, err)
		}
		done = append(done, i)
	}

	// Phase 2: journal append must succeed before the commit marker exists
	if withJournal != nil {
		if err := withJournal(); err != nil {
			m.restoreRenamed(tx, done)
			tx.Status = StatusAborted
			return fmt.Errorf("journal operation failed: %w", err)
		}
	}

	// Phase 3: commit marker
	commit := &Commit{
		TxnID:       tx.Manifest.ID,
		CommittedAt: time.Now().UTC(),
		Success:     true,
	}
	for _, op := range tx.Manifest.Files {
		commit.CommittedFiles = append(commit.CommittedFiles, op.Destination)
	}

	commitData, err := json.MarshalIndent(commit, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal commit: %w", err)
	}
	if err := fs.WriteFileSync(commitPath, commitData, 0644); err != nil {
		return fmt.Errorf("write commit marker: %w", err)
	}

	tx.Status = StatusCommit
	tx.Commit = commit
	return nil
}

// restoreRenamed undoes the renames listed by index in done
func (m *Manager) restoreRenamed(tx *Transaction, done []int) {
	for _, i := range done {
		restore := tx.Restores[i]
		if err := m.performRestore(restore); err != nil {
			fmt.Fprintf(os.Stderr, "WARN: failed to restore %s during commit abort: %v\n",
				restore.TargetPath, err)
		}
	}
}

// Rollback aborts the transaction and restores any files already touched.
// Committed transactions cannot be rolled back.
func (m *Manager) Rollback(tx *Transaction, reason string) error {
	if tx.Status == StatusCommit {
		return fmt.Errorf("cannot rollback committed transaction %s", tx.Manifest.ID)
	}

	for _, restore := range tx.Restores {
		if restore.Type == "overwrite" {
			// Only restore if the destination was actually replaced
			if _, err := os.Stat(restore.UndoPath); err != nil {
				continue
			}
		}
		if err := m.performRestore(restore); err != nil {
			fmt.Fprintf(os.Stderr, "WARN: failed to restore %s during rollback: %v\n",
				restore.TargetPath, err)
		}
	}

	if err := os.RemoveAll(tx.BaseDir); err != nil {
		return fmt.Errorf("cleanup transaction directory: %w", err)
	}
	if err := fs.FsyncDir(m.baseDir); err != nil {
		fmt.Fprintf(os.Stderr, "WARN: fsync after rollback cleanup failed: %v\n", err)
	}

	tx.Status = StatusAborted
	return nil
}

// performRestore restores a single file from undo information
func (m *Manager) performRestore(restore RestoreOp) error {
	switch restore.Type {
	case "overwrite":
		return fs.AtomicRename(restore.UndoPath, restore.TargetPath)
	case "delete":
		if err := os.Remove(restore.TargetPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove created file: %w", err)
		}
		return fs.FsyncDir(filepath.Dir(restore.TargetPath))
	default:
		return fmt.Errorf("unknown restore operation type: %s", restore.Type)
	}
}

// Cleanup removes the transaction work directory.
// Only committed or aborted transactions may be cleaned up.
func (m *Manager) Cleanup(tx *Transaction) error {
	if tx.Status != StatusCommit && tx.Status != StatusAborted {
		return fmt.Errorf("cannot cleanup: transaction status is %s", tx.Status)
	}

	if err := os.RemoveAll(tx.BaseDir); err != nil {
		return fmt.Errorf("remove transaction directory: %w", err)
	}
	if err := fs.FsyncDir(m.baseDir); err != nil {
		fmt.Fprintf(os.Stderr, "WARN: fsync after cleanup failed: %v\n", err)
	}
	return nil
}

// saveManifest saves the transaction manifest to disk
func (m *Manager) saveManifest(tx *Transaction) error {
	data, err := json.MarshalIndent(tx.Manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}
	if err := fs.WriteFileSync(filepath.Join(tx.BaseDir, "manifest.json"), data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// generateTxnID generates a unique transaction ID
func generateTxnID() TxnID {
	now := time.Now().UTC()
	return TxnID(fmt.Sprintf("txn_%d_%d", now.Unix(), now.Nanosecond()))
}
