package txn

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) (*Manager, string) {
	t.Helper()
	root := t.TempDir()
	destRoot := filepath.Join(root, "dest")
	require.NoError(t, os.MkdirAll(destRoot, 0755))
	return NewManager(filepath.Join(root, "txn"), destRoot), destRoot
}

func TestCommitCreatesFiles(t *testing.T) {
	m, destRoot := newTestManager(t)

	tx, err := m.Begin(context.Background())
	require.NoError(t, err)

	require.NoError(t, m.StageFile(tx, "truth/task/T-001.json", []byte(`{"id":"T-001"}`)))
	require.NoError(t, m.StageFile(tx, "truth/phase/PH-01.json", []byte(`{"id":"PH-01"}`)))
	require.NoError(t, m.MarkIntent(tx))

	journalCalled := false
	require.NoError(t, m.Commit(tx, func() error {
		journalCalled = true
		return nil
	}))
	assert.True(t, journalCalled)
	assert.Equal(t, StatusCommit, tx.Status)

	data, err := os.ReadFile(filepath.Join(destRoot, "truth/task/T-001.json"))
	require.NoError(t, err)
	assert.Equal(t, `{"id":"T-001"}`, string(data))

	require.NoError(t, m.Cleanup(tx))
	_, err = os.Stat(tx.BaseDir)
	assert.True(t, os.IsNotExist(err))
}

func TestCommitIsIdempotent(t *testing.T) {
	m, _ := newTestManager(t)

	tx, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.StageFile(tx, "a.json", []byte("1")))
	require.NoError(t, m.MarkIntent(tx))
	require.NoError(t, m.Commit(tx, nil))

	// Second commit is a no-op success
	require.NoError(t, m.Commit(tx, nil))
}

func TestRollbackRestoresOverwrittenFile(t *testing.T) {
	m, destRoot := newTestManager(t)

	target := filepath.Join(destRoot, "truth/task/T-001.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("original"), 0644))

	tx, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.StageFile(tx, "truth/task/T-001.json", []byte("replacement")))
	require.NoError(t, m.Rollback(tx, "test"))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))
	assert.Equal(t, StatusAborted, tx.Status)
}

func TestFailedJournalRestoresRenamedFiles(t *testing.T) {
	m, destRoot := newTestManager(t)

	target := filepath.Join(destRoot, "truth/task/T-001.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("original"), 0644))

	tx, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.StageFile(tx, "truth/task/T-001.json", []byte("replacement")))
	require.NoError(t, m.StageFile(tx, "truth/task/T-002.json", []byte("new")))
	require.NoError(t, m.MarkIntent(tx))

	err = m.Commit(tx, func() error { return assert.AnError })
	require.Error(t, err)
	assert.Equal(t, StatusAborted, tx.Status)

	// Overwritten file restored, created file removed
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	_, err = os.Stat(filepath.Join(destRoot, "truth/task/T-002.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestCannotRollbackCommitted(t *testing.T) {
	m, _ := newTestManager(t)

	tx, err := m.Begin(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.StageFile(tx, "a.json", []byte("1")))
	require.NoError(t, m.MarkIntent(tx))
	require.NoError(t, m.Commit(tx, nil))

	assert.Error(t, m.Rollback(tx, "too late"))
}

func TestStageRejectsAbsolutePath(t *testing.T) {
	m, _ := newTestManager(t)

	tx, err := m.Begin(context.Background())
	require.NoError(t, err)
	assert.Error(t, m.StageFile(tx, "/etc/passwd", []byte("x")))
}

func TestMarkIntentRequiresStagedFiles(t *testing.T) {
	m, _ := newTestManager(t)

	tx, err := m.Begin(context.Background())
	require.NoError(t, err)
	assert.Error(t, m.MarkIntent(tx))
}
