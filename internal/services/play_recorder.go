package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/arlenko/mira/internal/api"
	"github.com/arlenko/mira/internal/storage"
	"github.com/arlenko/mira/pkg/types"
)

// PlayRecorder writes a play event to the local history and notifies the
// remote service. Both sides are best-effort: a failed remote insert is
// logged and never retried - play analytics must never block playback.
type PlayRecorder struct {
	api   *api.Client
	db    *storage.Database
	debug bool

	mu     sync.RWMutex
	userID string
}

func NewPlayRecorder(apiClient *api.Client, db *storage.Database, debug bool) *PlayRecorder {
	return &PlayRecorder{
		api:   apiClient,
		db:    db,
		debug: debug,
	}
}

func (r *PlayRecorder) SetUserID(userID string) {
	r.mu.Lock()
	r.userID = userID
	r.mu.Unlock()
}

func (r *PlayRecorder) Record(ctx context.Context, track *types.Track) error {
	r.mu.RLock()
	userID := r.userID
	r.mu.RUnlock()

	now := time.Now()

	if err := r.db.RecordPlay(ctx, track.ID, userID, now); err != nil {
		log.Printf("[PLAY_RECORDER] Failed to record local play for %s: %v", track.Title, err)
	}

	if err := r.api.RecordPlay(ctx, track.ID, uuid.NewString(), now); err != nil {
		return err
	}

	if r.debug {
		log.Printf("[PLAY_RECORDER] Play event recorded for %s", track.Title)
	}
	return nil
}
