package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sotakimura/conductor/internal/domain/model/session"
)

func TestOpenAndLoad(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())
	sess := session.New("T-001", "claude")
	require.NoError(t, store.Open(sess))

	loaded, err := store.Load(sess.ID())
	require.NoError(t, err)
	assert.Equal(t, sess.ID(), loaded.ID())
	assert.Equal(t, "T-001", loaded.Target())
	assert.Equal(t, "claude", loaded.EngineName())
	assert.Equal(t, session.StatusActive, loaded.Status())
	assert.Empty(t, loaded.Turns())
}

func TestTurnsReplayInOrder(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())
	sess := session.New("general", "claude")
	require.NoError(t, store.Open(sess))

	require.NoError(t, store.AppendTurn(sess.ID(), sess.AppendTurn(session.RoleOperator, "first")))
	require.NoError(t, store.AppendTurn(sess.ID(), sess.AppendTurn(session.RoleEngine, "second")))
	require.NoError(t, store.AppendTurn(sess.ID(), sess.AppendTurn(session.RoleOperator, "third")))

	loaded, err := store.Load(sess.ID())
	require.NoError(t, err)
	require.Len(t, loaded.Turns(), 3)
	assert.Equal(t, "first", loaded.Turns()[0].Text)
	assert.Equal(t, session.RoleEngine, loaded.Turns()[1].Role)
	assert.Equal(t, "third", loaded.Turns()[2].Text)
}

func TestLastStatusAndTokenWin(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())
	sess := session.New("general", "claude")
	require.NoError(t, store.Open(sess))

	require.NoError(t, store.SetResumeToken(sess.ID(), "tok-1"))
	require.NoError(t, store.SetResumeToken(sess.ID(), "tok-2"))
	require.NoError(t, store.SetStatus(sess.ID(), session.StatusAwaitingContract))
	require.NoError(t, store.SetStatus(sess.ID(), session.StatusCompleted))

	loaded, err := store.Load(sess.ID())
	require.NoError(t, err)
	assert.Equal(t, "tok-2", loaded.ResumeToken())
	assert.Equal(t, session.StatusCompleted, loaded.Status())
}

func TestEmptyResumeTokenNotRecorded(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())
	sess := session.New("general", "claude")
	require.NoError(t, store.Open(sess))
	require.NoError(t, store.SetResumeToken(sess.ID(), ""))

	loaded, err := store.Load(sess.ID())
	require.NoError(t, err)
	assert.Empty(t, loaded.ResumeToken())
}

func TestLoadMissingSession(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())
	_, err := store.Load("SES-NOPE")
	assert.Error(t, err)
}

func TestListNewestFirst(t *testing.T) {
	store := NewTranscriptStore(t.TempDir())

	a := session.New("general", "claude")
	b := session.New("general", "claude")
	require.NoError(t, store.Open(a))
	require.NoError(t, store.Open(b))

	ids, err := store.List()
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.True(t, ids[0] >= ids[1])
}
