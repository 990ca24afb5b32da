package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/arlenko/mira/internal/config"
	"github.com/arlenko/mira/internal/player"
	"github.com/arlenko/mira/pkg/types"
)

// Database is the local store: the play-history record the playback
// controller owns, plus persisted player preferences restored at startup.
// It is not a media cache.
type Database struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
	debug  bool
}

func NewDatabase(cfg *config.Config) (*Database, error) {
	dbDir := filepath.Dir(cfg.Storage.DatabasePath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	db, err := openDatabase(cfg.Storage.DatabasePath, cfg.Storage.EnableWAL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	storage := &Database{
		db:    db,
		debug: cfg.Debug,
	}

	if err := storage.runMigrations(); err != nil {
		if closeErr := storage.Close(); closeErr != nil {
			log.Printf("Failed to close database after migration error: %v", closeErr)
		}
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return storage, nil
}

func openDatabase(dbPath string, enableWAL bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=memory",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=30000",
	}
	if enableWAL {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			if closeErr := db.Close(); closeErr != nil {
				log.Printf("Failed to close database after pragma error: %v", closeErr)
			}
			return nil, fmt.Errorf("execute pragma %s: %w", pragma, err)
		}
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("Failed to close database after ping error: %v", closeErr)
		}
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}

func (d *Database) checkClosed() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return fmt.Errorf("database is closed")
	}
	return nil
}

// RecordPlay appends a play-history row.
func (d *Database) RecordPlay(ctx context.Context, trackID, userID string, playedAt time.Time) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	var userIDPtr *string
	if userID != "" {
		userIDPtr = &userID
	}

	_, err := d.db.ExecContext(ctx,
		"INSERT INTO play_history (track_id, user_id, played_at) VALUES (?, ?, ?)",
		trackID, userIDPtr, playedAt)
	if err != nil {
		return fmt.Errorf("insert play history: %w", err)
	}
	return nil
}

// RecentPlays returns the newest play-history entries, most recent first.
func (d *Database) RecentPlays(ctx context.Context, limit int) ([]*types.PlayHistoryEntry, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	rows, err := d.db.QueryContext(ctx,
		"SELECT id, track_id, user_id, played_at FROM play_history ORDER BY played_at DESC LIMIT ?",
		limit)
	if err != nil {
		return nil, fmt.Errorf("query play history: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Printf("Failed to close rows: %v", closeErr)
		}
	}()

	var entries []*types.PlayHistoryEntry
	for rows.Next() {
		entry := &types.PlayHistoryEntry{}
		if err := rows.Scan(&entry.ID, &entry.TrackID, &entry.UserID, &entry.PlayedAt); err != nil {
			return nil, fmt.Errorf("scan play history: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate play history: %w", err)
	}
	return entries, nil
}

// PlayerState is the persisted slice of session preferences.
type PlayerState struct {
	Volume      float64
	Shuffle     bool
	RepeatMode  player.RepeatMode
	LastTrackID string
}

// SavePlayerState upserts the single preferences row.
func (d *Database) SavePlayerState(ctx context.Context, state PlayerState) error {
	if err := d.checkClosed(); err != nil {
		return err
	}

	_, err := d.db.ExecContext(ctx, `
		INSERT INTO player_state (id, volume, shuffle, repeat_mode, last_track_id, updated_at)
		VALUES (1, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			volume = excluded.volume,
			shuffle = excluded.shuffle,
			repeat_mode = excluded.repeat_mode,
			last_track_id = excluded.last_track_id,
			updated_at = excluded.updated_at
	`, state.Volume, state.Shuffle, int(state.RepeatMode), state.LastTrackID, time.Now())
	if err != nil {
		return fmt.Errorf("save player state: %w", err)
	}
	return nil
}

// LoadPlayerState returns the persisted preferences, or (nil, nil) when none
// have been saved yet.
func (d *Database) LoadPlayerState(ctx context.Context) (*PlayerState, error) {
	if err := d.checkClosed(); err != nil {
		return nil, err
	}

	row := d.db.QueryRowContext(ctx,
		"SELECT volume, shuffle, repeat_mode, last_track_id FROM player_state WHERE id = 1")

	var state PlayerState
	var repeat int
	err := row.Scan(&state.Volume, &state.Shuffle, &repeat, &state.LastTrackID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load player state: %w", err)
	}

	state.RepeatMode = player.RepeatMode(repeat)
	return &state, nil
}

func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	return d.db.Close()
}
