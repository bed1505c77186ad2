package storage

import (
	"testing"
	"time"

	"github.com/cuemby/olrunner/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetSession(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Millisecond)

	session := &types.Session{
		ID:         "s1",
		ServerName: "defaultServer",
		StartedAt:  now,
		State:      types.StateReady,
		Transitions: []types.Transition{
			{From: types.StateNotStarted, To: types.StateLaunching, At: now},
		},
	}
	require.NoError(t, store.SaveSession(session))

	got, err := store.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "defaultServer", got.ServerName)
	assert.Equal(t, types.StateReady, got.State)
	require.Len(t, got.Transitions, 1)
	assert.True(t, now.Equal(got.Transitions[0].At))

	session.State = types.StateStopped
	require.NoError(t, store.SaveSession(session))
	got, err = store.GetSession("s1")
	require.NoError(t, err)
	assert.Equal(t, types.StateStopped, got.State)
}

func TestGetSessionNotFound(t *testing.T) {
	_, err := newTestStore(t).GetSession("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveSessionRequiresID(t *testing.T) {
	assert.Error(t, newTestStore(t).SaveSession(&types.Session{}))
}

func TestListSessionsMostRecentFirst(t *testing.T) {
	store := newTestStore(t)
	base := time.Now()

	require.NoError(t, store.SaveSession(&types.Session{ID: "a", StartedAt: base.Add(-2 * time.Hour)}))
	require.NoError(t, store.SaveSession(&types.Session{ID: "b", StartedAt: base}))
	require.NoError(t, store.SaveSession(&types.Session{ID: "c", StartedAt: base.Add(-time.Hour)}))

	sessions, err := store.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 3)
	assert.Equal(t, "b", sessions[0].ID)
	assert.Equal(t, "c", sessions[1].ID)
	assert.Equal(t, "a", sessions[2].ID)

	require.NoError(t, store.DeleteSession("c"))
	sessions, err = store.ListSessions()
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestReopenKeepsData(t *testing.T) {
	dir := t.TempDir()
	store, err := NewBoltStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.SaveSession(&types.Session{ID: "persisted", StartedAt: time.Now()}))
	require.NoError(t, store.Close())

	store, err = NewBoltStore(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.GetSession("persisted")
	assert.NoError(t, err)
}
