package library

import (
	"fmt"

	"github.com/arlenko/mira/pkg/types"
)

// ValidationError rejects a mutation before any optimistic change or remote
// call is attempted.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("library validation: %s", e.Reason)
}

// Snapshot is the observable library state published on the bus: the liked
// track id set and the playlist sequence. Both are copies; mutating a
// snapshot never touches the synchronizer's state.
type Snapshot struct {
	LikedTrackIDs map[string]bool
	Playlists     []*types.Playlist
}

func (s *Synchronizer) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Synchronizer) snapshotLocked() Snapshot {
	liked := make(map[string]bool, len(s.liked))
	for id := range s.liked {
		liked[id] = true
	}

	playlists := make([]*types.Playlist, 0, len(s.playlists))
	for _, p := range s.playlists {
		clone := *p
		clone.TrackIDs = append([]string(nil), p.TrackIDs...)
		playlists = append(playlists, &clone)
	}

	return Snapshot{LikedTrackIDs: liked, Playlists: playlists}
}

// IsLiked reports the authoritative liked state for a track id.
func (s *Synchronizer) IsLiked(trackID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liked[trackID]
}

// Playlists returns a copy of the playlist sequence.
func (s *Synchronizer) Playlists() []*types.Playlist {
	return s.Snapshot().Playlists
}

func (s *Synchronizer) findPlaylist(id string) *types.Playlist {
	for _, p := range s.playlists {
		if p.ID == id {
			return p
		}
	}
	return nil
}
