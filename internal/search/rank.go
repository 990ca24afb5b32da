package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/arlenko/mira/pkg/types"
)

// scoreName is the relevance score for a single display name: substring and
// prefix matches dominate, with a Levenshtein bonus for near-misses.
func scoreName(name, query string) float64 {
	q := strings.ToLower(query)
	n := strings.ToLower(name)

	score := 0.0
	if strings.Contains(n, q) {
		score += 10.0
		if strings.HasPrefix(n, q) {
			score += 5.0
		}
	}

	distance := fuzzy.LevenshteinDistance(q, n)
	if distance <= len(q)/2 {
		score += float64(len(q) - distance)
	}

	return score
}

func rankTracks(tracks []*types.Track, query string, mode SortMode) []*types.Track {
	if mode == SortAlphabetical {
		sort.SliceStable(tracks, func(i, j int) bool {
			return strings.ToLower(tracks[i].Title) < strings.ToLower(tracks[j].Title)
		})
		return tracks
	}

	scores := make(map[string]float64, len(tracks))
	for _, t := range tracks {
		score := scoreName(t.Title, query)
		if strings.Contains(strings.ToLower(t.ArtistName), strings.ToLower(query)) {
			score += 7.0
		}
		if strings.Contains(strings.ToLower(t.AlbumName), strings.ToLower(query)) {
			score += 5.0
		}
		scores[t.ID] = score
	}
	sort.SliceStable(tracks, func(i, j int) bool {
		return scores[tracks[i].ID] > scores[tracks[j].ID]
	})
	return tracks
}

func rankAlbums(albums []*types.Album, query string, mode SortMode) []*types.Album {
	if mode == SortAlphabetical {
		sort.SliceStable(albums, func(i, j int) bool {
			return strings.ToLower(albums[i].Title) < strings.ToLower(albums[j].Title)
		})
		return albums
	}

	scores := make(map[string]float64, len(albums))
	for _, a := range albums {
		score := scoreName(a.Title, query)
		if strings.Contains(strings.ToLower(a.ArtistName), strings.ToLower(query)) {
			score += 7.0
		}
		scores[a.ID] = score
	}
	sort.SliceStable(albums, func(i, j int) bool {
		return scores[albums[i].ID] > scores[albums[j].ID]
	})
	return albums
}

func rankArtists(artists []*types.Artist, query string, mode SortMode) []*types.Artist {
	if mode == SortAlphabetical {
		sort.SliceStable(artists, func(i, j int) bool {
			return strings.ToLower(artists[i].Name) < strings.ToLower(artists[j].Name)
		})
		return artists
	}

	scores := make(map[string]float64, len(artists))
	for _, a := range artists {
		scores[a.ID] = scoreName(a.Name, query)
	}
	sort.SliceStable(artists, func(i, j int) bool {
		return scores[artists[i].ID] > scores[artists[j].ID]
	})
	return artists
}

func rankPlaylists(playlists []*types.Playlist, query string, mode SortMode) []*types.Playlist {
	if mode == SortAlphabetical {
		sort.SliceStable(playlists, func(i, j int) bool {
			return strings.ToLower(playlists[i].Title) < strings.ToLower(playlists[j].Title)
		})
		return playlists
	}

	scores := make(map[string]float64, len(playlists))
	for _, p := range playlists {
		scores[p.ID] = scoreName(p.Title, query)
	}
	sort.SliceStable(playlists, func(i, j int) bool {
		return scores[playlists[i].ID] > scores[playlists[j].ID]
	})
	return playlists
}

func rankUsers(users []*types.User, query string, mode SortMode) []*types.User {
	if mode == SortAlphabetical {
		sort.SliceStable(users, func(i, j int) bool {
			return strings.ToLower(users[i].Username) < strings.ToLower(users[j].Username)
		})
		return users
	}

	scores := make(map[string]float64, len(users))
	for _, u := range users {
		scores[u.ID] = scoreName(u.Username, query)
	}
	sort.SliceStable(users, func(i, j int) bool {
		return scores[users[i].ID] > scores[users[j].ID]
	})
	return users
}

func dedupeTracks(tracks []*types.Track) []*types.Track {
	seen := make(map[string]bool, len(tracks))
	out := tracks[:0]
	for _, t := range tracks {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		out = append(out, t)
	}
	return out
}

func dedupeAlbums(albums []*types.Album) []*types.Album {
	seen := make(map[string]bool, len(albums))
	out := albums[:0]
	for _, a := range albums {
		if a == nil || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

func dedupeArtists(artists []*types.Artist) []*types.Artist {
	seen := make(map[string]bool, len(artists))
	out := artists[:0]
	for _, a := range artists {
		if a == nil || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	return out
}

func dedupePlaylists(playlists []*types.Playlist) []*types.Playlist {
	seen := make(map[string]bool, len(playlists))
	out := playlists[:0]
	for _, p := range playlists {
		if p == nil || seen[p.ID] {
			continue
		}
		seen[p.ID] = true
		out = append(out, p)
	}
	return out
}

func dedupeUsers(users []*types.User) []*types.User {
	seen := make(map[string]bool, len(users))
	out := users[:0]
	for _, u := range users {
		if u == nil || seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		out = append(out, u)
	}
	return out
}

func capTracks(tracks []*types.Track, limit int) []*types.Track {
	if len(tracks) > limit {
		return tracks[:limit]
	}
	return tracks
}

func capAlbums(albums []*types.Album, limit int) []*types.Album {
	if len(albums) > limit {
		return albums[:limit]
	}
	return albums
}

func capArtists(artists []*types.Artist, limit int) []*types.Artist {
	if len(artists) > limit {
		return artists[:limit]
	}
	return artists
}

func capPlaylists(playlists []*types.Playlist, limit int) []*types.Playlist {
	if len(playlists) > limit {
		return playlists[:limit]
	}
	return playlists
}

func capUsers(users []*types.User, limit int) []*types.User {
	if len(users) > limit {
		return users[:limit]
	}
	return users
}
