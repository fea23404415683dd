package app

import (
	"os"
	"path/filepath"
)

// DefaultHome is the canonical state directory relative to the repo root.
const DefaultHome = ".conductor"

// Paths resolves the canonical layout under the conductor home directory.
// All durable state (repo truth, mailboxes, transcripts, journal) lives here.
type Paths struct {
	Home string
}

// ResolvePaths determines the home directory.
// Priority: explicit argument > CONDUCTOR_HOME > default.
func ResolvePaths(home string) Paths {
	if home == "" {
		home = os.Getenv("CONDUCTOR_HOME")
	}
	if home == "" {
		home = DefaultHome
	}
	return Paths{Home: home}
}

// TruthDir is the root of the repo-truth record store.
func (p Paths) TruthDir() string { return filepath.Join(p.Home, "truth") }

// WorkSessionDir is the root of the work-session mailboxes.
func (p Paths) WorkSessionDir() string { return filepath.Join(p.Home, "var", "ws") }

// SessionDir holds persisted session transcripts.
func (p Paths) SessionDir() string { return filepath.Join(p.Home, "var", "sessions") }

// TxnDir is the staging area for apply transactions.
func (p Paths) TxnDir() string { return filepath.Join(p.Home, "var", "txn") }

// JournalPath is the append-only apply journal.
func (p Paths) JournalPath() string { return filepath.Join(p.Home, "var", "journal.ndjson") }

// SettingPath is the configuration file.
func (p Paths) SettingPath() string { return filepath.Join(p.Home, "setting.json") }
