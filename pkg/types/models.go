package types

import (
	"time"
)

// Track is an immutable value constructed from a remote row. A fresh Track
// replaces an old one; nothing mutates a Track in place. Liked is a display
// hint only - the authoritative value lives in the library state.
type Track struct {
	ID              string           `json:"id"`
	Title           string           `json:"title"`
	ArtistName      string           `json:"artist_name"`
	ArtistID        string           `json:"artist_id,omitempty"`
	AlbumName       string           `json:"album_name"`
	AlbumID         string           `json:"album_id,omitempty"`
	DurationSeconds int              `json:"duration_seconds"`
	CoverURI        string           `json:"cover_uri"`
	AudioURI        string           `json:"audio_uri"`
	Liked           bool             `json:"liked"`
	Genres          []string         `json:"genres"`
	ReleaseDate     *time.Time       `json:"release_date"`
	PlayCount       int              `json:"play_count,omitempty"`
	LikeCount       int              `json:"like_count,omitempty"`
	TrackNumber     int              `json:"track_number,omitempty"`
	Lyrics          *string          `json:"lyrics,omitempty"`
	FeaturedArtists []FeaturedArtist `json:"featured_artists,omitempty"`
}

type FeaturedArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Album struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	ArtistName  string     `json:"artist_name"`
	ArtistID    string     `json:"artist_id,omitempty"`
	CoverURI    string     `json:"cover_uri"`
	ReleaseDate *time.Time `json:"release_date"`
	Tracks      []*Track   `json:"tracks,omitempty"`
}

type Artist struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	ImageURI string   `json:"image_uri"`
	Albums   []*Album `json:"albums,omitempty"`
	Tracks   []*Track `json:"tracks,omitempty"`
}

type Playlist struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	CoverURI string   `json:"cover_uri"`
	TrackIDs []string `json:"track_ids"`
}

type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Email    string  `json:"email"`
	ImageURI *string `json:"image_uri"`
}

// SearchResultSet is the ephemeral per-query result: five parallel sequences,
// each independently capped and ranked. Not persisted.
type SearchResultSet struct {
	Query     string      `json:"query"`
	Tracks    []*Track    `json:"tracks"`
	Albums    []*Album    `json:"albums"`
	Playlists []*Playlist `json:"playlists"`
	Artists   []*Artist   `json:"artists"`
	Users     []*User     `json:"users"`
}

// Total counts results across all categories.
func (s *SearchResultSet) Total() int {
	return len(s.Tracks) + len(s.Albums) + len(s.Playlists) + len(s.Artists) + len(s.Users)
}

type TrackListResponse struct {
	Count    int      `json:"count"`
	Next     *string  `json:"next"`
	Previous *string  `json:"previous"`
	Results  []*Track `json:"results"`
}

type AlbumListResponse struct {
	Count    int      `json:"count"`
	Next     *string  `json:"next"`
	Previous *string  `json:"previous"`
	Results  []*Album `json:"results"`
}

type ArtistListResponse struct {
	Count    int       `json:"count"`
	Next     *string   `json:"next"`
	Previous *string   `json:"previous"`
	Results  []*Artist `json:"results"`
}

type PlayHistoryEntry struct {
	ID       int64     `db:"id"`
	TrackID  string    `db:"track_id"`
	UserID   *string   `db:"user_id"`
	PlayedAt time.Time `db:"played_at"`
}
