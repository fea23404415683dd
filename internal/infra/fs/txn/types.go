// Package txn implements a filesystem staging transaction: files are staged
// under a work directory, an intent marker is written once everything is
// staged, and commit renames the staged files into place as one unit. Undo
// snapshots of overwritten files make rollback possible at any point before
// the commit marker exists.
package txn

import (
	"fmt"
	"time"
)

// TxnID identifies one transaction
type TxnID string

// Status of a transaction
type Status string

const (
	StatusPending Status = "pending"
	StatusIntent  Status = "intent"
	StatusCommit  Status = "commit"
	StatusAborted Status = "aborted"
)

// FileOperation describes one staged file
type FileOperation struct {
	Type        string `json:"type"` // create or overwrite
	Destination string `json:"destination"`
	Size        int64  `json:"size"`
}

// RestoreOp describes how to undo one staged file at rollback time
type RestoreOp struct {
	Type       string `json:"type"` // overwrite: restore from undo; delete: remove created file
	TargetPath string `json:"target_path"`
	UndoPath   string `json:"undo_path,omitempty"`
}

// Manifest records the shape of a transaction
type Manifest struct {
	ID        TxnID           `json:"id"`
	Files     []FileOperation `json:"files"`
	CreatedAt time.Time       `json:"created_at"`
}

// Validate checks manifest invariants before intent is marked
func (m *Manifest) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("manifest: missing transaction ID")
	}
	if len(m.Files) == 0 {
		return fmt.Errorf("manifest: no files staged")
	}
	seen := make(map[string]bool, len(m.Files))
	for _, op := range m.Files {
		if op.Destination == "" {
			return fmt.Errorf("manifest: file operation with empty destination")
		}
		if seen[op.Destination] {
			return fmt.Errorf("manifest: duplicate destination %s", op.Destination)
		}
		seen[op.Destination] = true
	}
	return nil
}

// Intent marks that all files are staged and the transaction may commit
type Intent struct {
	TxnID    TxnID     `json:"txn_id"`
	MarkedAt time.Time `json:"marked_at"`
	Ready    bool      `json:"ready"`
}

// Commit marks a completed transaction
type Commit struct {
	TxnID          TxnID     `json:"txn_id"`
	CommittedAt    time.Time `json:"committed_at"`
	CommittedFiles []string  `json:"committed_files"`
	Success        bool      `json:"success"`
}

// Transaction is the in-process handle for one transaction
type Transaction struct {
	Manifest *Manifest
	Status   Status
	BaseDir  string
	StageDir string
	UndoDir  string
	Restores []RestoreOp
	Intent   *Intent
	Commit   *Commit
}
