package library

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/arlenko/mira/internal/handlers"
	"github.com/arlenko/mira/pkg/types"
)

// Remote is the slice of the persistence service the synchronizer depends
// on. *api.Client satisfies it.
type Remote interface {
	GetLikedTracks(ctx context.Context) ([]*types.Track, error)
	GetPlaylists(ctx context.Context) ([]*types.Playlist, error)
	LikeTrack(ctx context.Context, trackID string) error
	UnlikeTrack(ctx context.Context, trackID string) error
	CreatePlaylist(ctx context.Context, title, description string) (*types.Playlist, error)
	DeletePlaylist(ctx context.Context, id string) error
	AddPlaylistTrack(ctx context.Context, playlistID, trackID string) error
	RemovePlaylistTrack(ctx context.Context, playlistID, trackID string) error
}

// mutation is one optimistic library change: the local apply, its exact
// inverse, the remote persistence call, and an optional reconcile step run
// after remote success (e.g. swapping a provisional id for the server one).
// apply, revert and reconcile run under the state lock.
type mutation struct {
	name      string
	apply     func()
	revert    func()
	remote    func(ctx context.Context) error
	reconcile func()
}

// Synchronizer owns the client-side mirror of liked tracks and playlists.
// Every mutation applies optimistically, then persists remotely; a remote
// failure rolls the change back wholesale - there is no partial merge.
//
// Mutations are serialized per entity id: a mutation for a busy id queues
// behind the in-flight one, so a stale rollback can never clobber a newer
// optimistic state.
type Synchronizer struct {
	mu     sync.RWMutex
	remote Remote
	bus    *handlers.EventBus
	debug  bool

	liked     map[string]bool
	playlists []*types.Playlist

	guardMu sync.Mutex
	guards  map[string]*sync.Mutex
}

func NewSynchronizer(remote Remote, bus *handlers.EventBus, debug bool) *Synchronizer {
	return &Synchronizer{
		remote: remote,
		bus:    bus,
		debug:  debug,
		liked:  make(map[string]bool),
		guards: make(map[string]*sync.Mutex),
	}
}

// Init builds the per-user state from the remote service. Called at login.
func (s *Synchronizer) Init(ctx context.Context) error {
	tracks, err := s.remote.GetLikedTracks(ctx)
	if err != nil {
		return fmt.Errorf("init liked tracks: %w", err)
	}

	playlists, err := s.remote.GetPlaylists(ctx)
	if err != nil {
		return fmt.Errorf("init playlists: %w", err)
	}

	s.mu.Lock()
	s.liked = make(map[string]bool, len(tracks))
	for _, t := range tracks {
		s.liked[t.ID] = true
	}
	s.playlists = playlists
	s.mu.Unlock()

	s.publish()
	return nil
}

// Dispose invalidates the state. Called at logout; a subsequent login gets a
// fresh Init.
func (s *Synchronizer) Dispose() {
	s.mu.Lock()
	s.liked = make(map[string]bool)
	s.playlists = nil
	s.mu.Unlock()

	s.guardMu.Lock()
	s.guards = make(map[string]*sync.Mutex)
	s.guardMu.Unlock()

	s.publish()
}

func (s *Synchronizer) entityGuard(key string) *sync.Mutex {
	s.guardMu.Lock()
	defer s.guardMu.Unlock()

	guard, ok := s.guards[key]
	if !ok {
		guard = &sync.Mutex{}
		s.guards[key] = guard
	}
	return guard
}

// execute runs one mutation: optimistic apply, remote call, full revert on
// failure. The caller holds the entity guard.
func (s *Synchronizer) execute(ctx context.Context, m mutation) error {
	s.mu.Lock()
	m.apply()
	s.mu.Unlock()
	s.publish()

	if err := m.remote(ctx); err != nil {
		s.mu.Lock()
		m.revert()
		s.mu.Unlock()
		s.publish()

		if s.debug {
			log.Printf("[LIBRARY] %s failed, rolled back: %v", m.name, err)
		}
		wrapped := fmt.Errorf("%s: %w", m.name, err)
		s.bus.Publish(handlers.EventLibraryError, wrapped)
		return wrapped
	}

	if m.reconcile != nil {
		s.mu.Lock()
		m.reconcile()
		s.mu.Unlock()
		s.publish()
	}
	return nil
}

// ToggleLike flips the liked state of a track. Two rapid toggles for the
// same id serialize: the second reads the first's outcome before applying.
func (s *Synchronizer) ToggleLike(ctx context.Context, trackID string) error {
	if trackID == "" {
		return &ValidationError{Reason: "track id is empty"}
	}

	guard := s.entityGuard("track:" + trackID)
	guard.Lock()
	defer guard.Unlock()

	s.mu.RLock()
	prior := s.liked[trackID]
	s.mu.RUnlock()
	next := !prior

	return s.execute(ctx, mutation{
		name: "toggle like",
		apply: func() {
			s.setLikedLocked(trackID, next)
		},
		revert: func() {
			s.setLikedLocked(trackID, prior)
		},
		remote: func(ctx context.Context) error {
			if next {
				return s.remote.LikeTrack(ctx, trackID)
			}
			return s.remote.UnlikeTrack(ctx, trackID)
		},
	})
}

func (s *Synchronizer) setLikedLocked(trackID string, liked bool) {
	if liked {
		s.liked[trackID] = true
	} else {
		delete(s.liked, trackID)
	}
}

// CreatePlaylist appends a provisional playlist immediately and reconciles
// its id with the server-assigned one on success. On failure the
// provisional entry is removed wholesale.
func (s *Synchronizer) CreatePlaylist(ctx context.Context, title, description string) (*types.Playlist, error) {
	if strings.TrimSpace(title) == "" {
		return nil, &ValidationError{Reason: "playlist title is empty"}
	}

	provisionalID := "local-" + uuid.NewString()
	provisional := &types.Playlist{ID: provisionalID, Title: title}

	guard := s.entityGuard("playlist:" + provisionalID)
	guard.Lock()
	defer guard.Unlock()

	var created *types.Playlist
	err := s.execute(ctx, mutation{
		name: "create playlist",
		apply: func() {
			s.playlists = append(s.playlists, provisional)
		},
		revert: func() {
			s.removePlaylistLocked(provisionalID)
		},
		remote: func(ctx context.Context) error {
			p, err := s.remote.CreatePlaylist(ctx, title, description)
			if err != nil {
				return err
			}
			created = p
			return nil
		},
		reconcile: func() {
			for i, p := range s.playlists {
				if p.ID == provisionalID {
					s.playlists[i] = created
					return
				}
			}
		},
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeletePlaylist removes a playlist optimistically, restoring it at its
// original position on remote failure.
func (s *Synchronizer) DeletePlaylist(ctx context.Context, playlistID string) error {
	guard := s.entityGuard("playlist:" + playlistID)
	guard.Lock()
	defer guard.Unlock()

	s.mu.RLock()
	existing := s.findPlaylist(playlistID)
	s.mu.RUnlock()
	if existing == nil {
		return &ValidationError{Reason: "playlist not found: " + playlistID}
	}

	var removedAt int
	var removed *types.Playlist
	return s.execute(ctx, mutation{
		name: "delete playlist",
		apply: func() {
			for i, p := range s.playlists {
				if p.ID == playlistID {
					removedAt = i
					removed = p
					s.playlists = append(s.playlists[:i], s.playlists[i+1:]...)
					return
				}
			}
		},
		revert: func() {
			if removed == nil {
				return
			}
			if removedAt > len(s.playlists) {
				removedAt = len(s.playlists)
			}
			s.playlists = append(s.playlists[:removedAt],
				append([]*types.Playlist{removed}, s.playlists[removedAt:]...)...)
		},
		remote: func(ctx context.Context) error {
			return s.remote.DeletePlaylist(ctx, playlistID)
		},
	})
}

// AddTrackToPlaylist appends a track id to a playlist. Adding a track that
// is already present is rejected before any mutation.
func (s *Synchronizer) AddTrackToPlaylist(ctx context.Context, playlistID string, track *types.Track) error {
	if track == nil || track.ID == "" {
		return &ValidationError{Reason: "track is empty"}
	}

	guard := s.entityGuard("playlist:" + playlistID)
	guard.Lock()
	defer guard.Unlock()

	s.mu.RLock()
	playlist := s.findPlaylist(playlistID)
	var prior []string
	if playlist != nil {
		prior = append([]string(nil), playlist.TrackIDs...)
	}
	s.mu.RUnlock()

	if playlist == nil {
		return &ValidationError{Reason: "playlist not found: " + playlistID}
	}
	for _, id := range prior {
		if id == track.ID {
			return &ValidationError{Reason: "track already in playlist"}
		}
	}

	return s.execute(ctx, mutation{
		name: "add playlist track",
		apply: func() {
			if p := s.findPlaylist(playlistID); p != nil {
				p.TrackIDs = append(p.TrackIDs, track.ID)
			}
		},
		revert: func() {
			if p := s.findPlaylist(playlistID); p != nil {
				p.TrackIDs = prior
			}
		},
		remote: func(ctx context.Context) error {
			return s.remote.AddPlaylistTrack(ctx, playlistID, track.ID)
		},
	})
}

// RemoveTrackFromPlaylist removes a track id from a playlist.
func (s *Synchronizer) RemoveTrackFromPlaylist(ctx context.Context, playlistID, trackID string) error {
	if trackID == "" {
		return &ValidationError{Reason: "track id is empty"}
	}

	guard := s.entityGuard("playlist:" + playlistID)
	guard.Lock()
	defer guard.Unlock()

	s.mu.RLock()
	playlist := s.findPlaylist(playlistID)
	var prior []string
	if playlist != nil {
		prior = append([]string(nil), playlist.TrackIDs...)
	}
	s.mu.RUnlock()

	if playlist == nil {
		return &ValidationError{Reason: "playlist not found: " + playlistID}
	}

	present := false
	for _, id := range prior {
		if id == trackID {
			present = true
			break
		}
	}
	if !present {
		return &ValidationError{Reason: "track not in playlist"}
	}

	return s.execute(ctx, mutation{
		name: "remove playlist track",
		apply: func() {
			p := s.findPlaylist(playlistID)
			if p == nil {
				return
			}
			next := make([]string, 0, len(p.TrackIDs)-1)
			for _, id := range p.TrackIDs {
				if id != trackID {
					next = append(next, id)
				}
			}
			p.TrackIDs = next
		},
		revert: func() {
			if p := s.findPlaylist(playlistID); p != nil {
				p.TrackIDs = prior
			}
		},
		remote: func(ctx context.Context) error {
			return s.remote.RemovePlaylistTrack(ctx, playlistID, trackID)
		},
	})
}

func (s *Synchronizer) removePlaylistLocked(playlistID string) {
	for i, p := range s.playlists {
		if p.ID == playlistID {
			s.playlists = append(s.playlists[:i], s.playlists[i+1:]...)
			return
		}
	}
}

func (s *Synchronizer) publish() {
	s.mu.RLock()
	snap := s.snapshotLocked()
	s.mu.RUnlock()
	s.bus.Publish(handlers.EventLibraryChanged, snap)
}
