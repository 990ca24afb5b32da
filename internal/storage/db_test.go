package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arlenko/mira/internal/config"
	"github.com/arlenko/mira/internal/player"
)

func newTestDatabase(t *testing.T) *Database {
	t.Helper()
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "mira.db")
	cfg.Storage.EnableWAL = true

	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestRecordAndListPlays(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	base := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, db.RecordPlay(ctx, "t1", "u1", base))
	require.NoError(t, db.RecordPlay(ctx, "t2", "u1", base.Add(time.Minute)))
	require.NoError(t, db.RecordPlay(ctx, "t3", "", base.Add(2*time.Minute)))

	entries, err := db.RecentPlays(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "t3", entries[0].TrackID)
	require.Equal(t, "t2", entries[1].TrackID)
	require.Nil(t, entries[0].UserID)
	require.NotNil(t, entries[1].UserID)
}

func TestPlayerStateRoundTrip(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	loaded, err := db.LoadPlayerState(ctx)
	require.NoError(t, err)
	require.Nil(t, loaded, "no state before first save")

	state := PlayerState{
		Volume:      0.45,
		Shuffle:     true,
		RepeatMode:  player.RepeatAll,
		LastTrackID: "t9",
	}
	require.NoError(t, db.SavePlayerState(ctx, state))

	loaded, err = db.LoadPlayerState(ctx)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.InDelta(t, 0.45, loaded.Volume, 0.001)
	require.True(t, loaded.Shuffle)
	require.Equal(t, player.RepeatAll, loaded.RepeatMode)
	require.Equal(t, "t9", loaded.LastTrackID)
}

func TestPlayerStateUpsertsSingleRow(t *testing.T) {
	db := newTestDatabase(t)
	ctx := context.Background()

	require.NoError(t, db.SavePlayerState(ctx, PlayerState{Volume: 0.3}))
	require.NoError(t, db.SavePlayerState(ctx, PlayerState{Volume: 0.9, RepeatMode: player.RepeatOne}))

	loaded, err := db.LoadPlayerState(ctx)
	require.NoError(t, err)
	require.InDelta(t, 0.9, loaded.Volume, 0.001)
	require.Equal(t, player.RepeatOne, loaded.RepeatMode)
}

func TestClosedDatabaseRejectsOperations(t *testing.T) {
	cfg := &config.Config{}
	cfg.Storage.DatabasePath = filepath.Join(t.TempDir(), "mira.db")

	db, err := NewDatabase(cfg)
	require.NoError(t, err)
	require.NoError(t, db.Close())
	require.NoError(t, db.Close(), "double close is a no-op")

	require.Error(t, db.RecordPlay(context.Background(), "t1", "", time.Now()))
	_, err = db.RecentPlays(context.Background(), 5)
	require.Error(t, err)
}
