package storage_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/faceoff/internal/bracket"
	"github.com/mcdev12/faceoff/internal/storage"
	"github.com/mcdev12/faceoff/internal/tournament"
)

// Both implementations must be interchangeable behind the port.
func stores(t *testing.T) map[string]tournament.Store {
	t.Helper()
	bolt, err := storage.NewBoltStore(filepath.Join(t.TempDir(), "faceoff.db"))
	require.NoError(t, err)
	t.Cleanup(func() { bolt.Close() })

	return map[string]tournament.Store{
		"memory": storage.NewMemoryStore(),
		"bolt":   bolt,
	}
}

func sampleState(t *testing.T) *tournament.State {
	t.Helper()
	entrants := []bracket.Entrant{
		{ID: "e0", ImageURL: "/uploads/e0.jpg", Caption: "first"},
		{ID: "e1", ImageURL: "/uploads/e1.jpg", Caption: "second"},
		{ID: "e2", ImageURL: "/uploads/e2.jpg", Caption: "third"},
	}
	b, err := bracket.Build(entrants, 30)
	require.NoError(t, err)

	return &tournament.State{
		Status:          tournament.StatusDuelInProgress,
		Entrants:        entrants,
		Bracket:         b,
		SecondsPerMatch: 30,
	}
}

func TestStateRoundTrip(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			got, err := store.GetState()
			require.NoError(t, err)
			assert.Nil(t, got, "fresh store holds no state")

			want := sampleState(t)
			require.NoError(t, store.SetState(want))

			got, err = store.GetState()
			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tournament.StatusDuelInProgress, got.Status)
			assert.Len(t, got.Entrants, 3)
			assert.Len(t, got.Bracket.Rounds, 2)

			require.NoError(t, store.ClearState())
			got, err = store.GetState()
			require.NoError(t, err)
			assert.Nil(t, got)
		})
	}
}

func TestEntrantLifecycle(t *testing.T) {
	for name, store := range stores(t) {
		t.Run(name, func(t *testing.T) {
			entrants, err := store.ListEntrants()
			require.NoError(t, err)
			assert.Empty(t, entrants)

			require.NoError(t, store.AddEntrant(bracket.Entrant{ID: "e0", Caption: "first"}))
			require.NoError(t, store.AddEntrant(bracket.Entrant{ID: "e1", Caption: "second"}))
			// Duplicate admission keeps one record.
			require.NoError(t, store.AddEntrant(bracket.Entrant{ID: "e0", Caption: "first"}))

			entrants, err = store.ListEntrants()
			require.NoError(t, err)
			assert.Len(t, entrants, 2)

			require.NoError(t, store.RemoveEntrant("e0"))
			require.NoError(t, store.RemoveEntrant("missing"))

			entrants, err = store.ListEntrants()
			require.NoError(t, err)
			require.Len(t, entrants, 1)
			assert.Equal(t, "e1", entrants[0].ID)
		})
	}
}

func TestBoltStatePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faceoff.db")

	first, err := storage.NewBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, first.SetState(sampleState(t)))
	require.NoError(t, first.AddEntrant(bracket.Entrant{ID: "e9"}))
	require.NoError(t, first.Close())

	second, err := storage.NewBoltStore(path)
	require.NoError(t, err)
	defer second.Close()

	state, err := second.GetState()
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, tournament.StatusDuelInProgress, state.Status)

	entrants, err := second.ListEntrants()
	require.NoError(t, err)
	assert.Len(t, entrants, 1)
}
