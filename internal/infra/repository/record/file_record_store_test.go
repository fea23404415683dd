package record

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotakimura/conductor/internal/domain/model/record"
)

func newTestStore() *FileStore {
	return NewFileStore(afero.NewMemMapFs(), "/home/truth")
}

func sampleTask(id string) *record.Record {
	now := time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC)
	return &record.Record{
		ID:        id,
		Kind:      record.KindTask,
		Title:     "Sample task",
		Status:    record.StatusOpen,
		Parent:    "PH-01",
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestPutAndGet(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Put(record.KindTask, "T-001", sampleTask("T-001")))

	got, err := store.Get(record.KindTask, "T-001")
	require.NoError(t, err)
	assert.Equal(t, "T-001", got.ID)
	assert.Equal(t, "Sample task", got.Title)
	assert.Equal(t, "PH-01", got.Parent)
}

func TestGetMissingRecord(t *testing.T) {
	store := newTestStore()
	_, err := store.Get(record.KindTask, "T-999")
	assert.True(t, record.IsNotFound(err))
}

func TestListSortsByID(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Put(record.KindTask, "T-003", sampleTask("T-003")))
	require.NoError(t, store.Put(record.KindTask, "T-001", sampleTask("T-001")))
	require.NoError(t, store.Put(record.KindTask, "T-002", sampleTask("T-002")))

	records, err := store.List(record.KindTask)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "T-001", records[0].ID)
	assert.Equal(t, "T-002", records[1].ID)
	assert.Equal(t, "T-003", records[2].ID)
}

func TestListEmptyKind(t *testing.T) {
	store := newTestStore()
	records, err := store.List(record.KindIssue)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestDelete(t *testing.T) {
	store := newTestStore()
	require.NoError(t, store.Put(record.KindTask, "T-001", sampleTask("T-001")))
	require.NoError(t, store.Delete(record.KindTask, "T-001"))

	assert.False(t, store.Exists(record.KindTask, "T-001"))
	assert.True(t, record.IsNotFound(store.Delete(record.KindTask, "T-001")))
}

func TestExists(t *testing.T) {
	store := newTestStore()
	assert.False(t, store.Exists(record.KindTask, "T-001"))
	require.NoError(t, store.Put(record.KindTask, "T-001", sampleTask("T-001")))
	assert.True(t, store.Exists(record.KindTask, "T-001"))
}

func TestWorkflowRoundTrip(t *testing.T) {
	store := newTestStore()
	wf := &record.Workflow{
		ID:    "WF-01",
		Title: "Standard dev flow",
		Steps: []record.WorkflowStep{
			{Name: "design", Guidance: "sketch the approach first"},
			{Name: "implement", Guidance: "small commits"},
		},
	}
	require.NoError(t, store.PutWorkflow(wf))

	got, err := store.GetWorkflow("WF-01")
	require.NoError(t, err)
	assert.Equal(t, wf, got)
}

func TestGetMissingWorkflow(t *testing.T) {
	store := newTestStore()
	_, err := store.GetWorkflow("WF-99")
	assert.True(t, record.IsNotFound(err))
}

func TestPutOverwrites(t *testing.T) {
	store := newTestStore()
	rec := sampleTask("T-001")
	require.NoError(t, store.Put(record.KindTask, "T-001", rec))

	rec.Status = record.StatusCompleted
	require.NoError(t, store.Put(record.KindTask, "T-001", rec))

	got, err := store.Get(record.KindTask, "T-001")
	require.NoError(t, err)
	assert.Equal(t, record.StatusCompleted, got.Status)
}
