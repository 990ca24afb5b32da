package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arlenko/mira/internal/config"
	"github.com/arlenko/mira/internal/handlers"
	"github.com/arlenko/mira/pkg/types"
)

type fakeSearchRemote struct {
	mu    sync.Mutex
	calls atomic.Int64

	tracks    []*types.Track
	albums    []*types.Album
	artists   []*types.Artist
	playlists []*types.Playlist
	users     []*types.User

	fail map[string]error
	// gate, when non-nil, parks track queries matching gateQuery until closed.
	gate      chan struct{}
	gateQuery string
}

func newFakeSearchRemote() *fakeSearchRemote {
	return &fakeSearchRemote{fail: make(map[string]error)}
}

func (r *fakeSearchRemote) failCategory(category string, err error) {
	r.mu.Lock()
	r.fail[category] = err
	r.mu.Unlock()
}

func (r *fakeSearchRemote) failure(category string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fail[category]
}

func (r *fakeSearchRemote) SearchTracks(ctx context.Context, query string, limit int) ([]*types.Track, error) {
	r.calls.Add(1)
	r.mu.Lock()
	gate := r.gate
	gated := r.gateQuery == query
	r.mu.Unlock()
	if gate != nil && gated {
		<-gate
	}
	if err := r.failure("tracks"); err != nil {
		return nil, err
	}
	return r.tracks, nil
}

func (r *fakeSearchRemote) SearchAlbums(ctx context.Context, query string, limit int) ([]*types.Album, error) {
	r.calls.Add(1)
	if err := r.failure("albums"); err != nil {
		return nil, err
	}
	return r.albums, nil
}

func (r *fakeSearchRemote) SearchArtists(ctx context.Context, query string, limit int) ([]*types.Artist, error) {
	r.calls.Add(1)
	if err := r.failure("artists"); err != nil {
		return nil, err
	}
	return r.artists, nil
}

func (r *fakeSearchRemote) SearchPlaylists(ctx context.Context, query string, limit int) ([]*types.Playlist, error) {
	r.calls.Add(1)
	if err := r.failure("playlists"); err != nil {
		return nil, err
	}
	return r.playlists, nil
}

func (r *fakeSearchRemote) SearchUsers(ctx context.Context, query string, limit int) ([]*types.User, error) {
	r.calls.Add(1)
	if err := r.failure("users"); err != nil {
		return nil, err
	}
	return r.users, nil
}

func newTestAggregator(remote Remote, limit int) *Aggregator {
	cfg := &config.Config{}
	cfg.Search.CategoryLimit = limit
	return NewAggregator(cfg, remote, handlers.NewEventBus())
}

func TestEmptyQueryResolvesWithoutRemoteCalls(t *testing.T) {
	remote := newFakeSearchRemote()
	a := newTestAggregator(remote, 10)

	result, err := a.Search(context.Background(), "   ", SortRelevance)
	require.NoError(t, err)
	require.Equal(t, 0, result.Total())
	require.Equal(t, int64(0), remote.calls.Load())
}

func TestAllCategoriesPopulate(t *testing.T) {
	remote := newFakeSearchRemote()
	remote.tracks = []*types.Track{{ID: "t1", Title: "Nightfall"}}
	remote.albums = []*types.Album{{ID: "al1", Title: "Nightfall"}}
	remote.artists = []*types.Artist{{ID: "ar1", Name: "Night"}}
	remote.playlists = []*types.Playlist{{ID: "p1", Title: "Night drives"}}
	remote.users = []*types.User{{ID: "u1", Username: "nightowl"}}
	a := newTestAggregator(remote, 10)

	result, err := a.Search(context.Background(), "night", SortRelevance)
	require.NoError(t, err)
	require.Len(t, result.Tracks, 1)
	require.Len(t, result.Albums, 1)
	require.Len(t, result.Artists, 1)
	require.Len(t, result.Playlists, 1)
	require.Len(t, result.Users, 1)
	require.Equal(t, 5, result.Total())
}

func TestFailedCategoryDegradesToEmpty(t *testing.T) {
	remote := newFakeSearchRemote()
	remote.tracks = []*types.Track{{ID: "t1", Title: "Nightfall"}}
	remote.albums = []*types.Album{{ID: "al1", Title: "Nightfall"}}
	remote.failCategory("artists", errors.New("service unavailable"))
	a := newTestAggregator(remote, 10)

	result, err := a.Search(context.Background(), "night", SortRelevance)
	require.NoError(t, err)
	require.Len(t, result.Tracks, 1)
	require.Len(t, result.Albums, 1)
	require.Empty(t, result.Artists)
}

func TestAllCategoriesFailed(t *testing.T) {
	remote := newFakeSearchRemote()
	unavailable := errors.New("service unavailable")
	for _, category := range []string{"tracks", "albums", "artists", "playlists", "users"} {
		remote.failCategory(category, unavailable)
	}
	a := newTestAggregator(remote, 10)

	result, err := a.Search(context.Background(), "night", SortRelevance)
	require.ErrorIs(t, err, ErrAllCategoriesFailed)
	require.Equal(t, 0, result.Total())
}

func TestCategoryCapApplied(t *testing.T) {
	remote := newFakeSearchRemote()
	for i := 0; i < 8; i++ {
		remote.tracks = append(remote.tracks, &types.Track{
			ID:    fmtID("t", i),
			Title: "Night " + fmtID("", i),
		})
	}
	a := newTestAggregator(remote, 3)

	result, err := a.Search(context.Background(), "night", SortRelevance)
	require.NoError(t, err)
	require.Len(t, result.Tracks, 3)
}

func TestWithinCategoryDedupe(t *testing.T) {
	remote := newFakeSearchRemote()
	remote.tracks = []*types.Track{
		{ID: "t1", Title: "Nightfall"},
		{ID: "t1", Title: "Nightfall"},
		{ID: "t2", Title: "Night drive"},
	}
	a := newTestAggregator(remote, 10)

	result, err := a.Search(context.Background(), "night", SortRelevance)
	require.NoError(t, err)
	require.Len(t, result.Tracks, 2)
}

func TestStaleResultNotPublished(t *testing.T) {
	remote := newFakeSearchRemote()
	remote.tracks = []*types.Track{{ID: "t1", Title: "Nightfall"}}

	bus := handlers.NewEventBus()
	cfg := &config.Config{}
	cfg.Search.CategoryLimit = 10
	a := NewAggregator(cfg, remote, bus)

	var publishedMu sync.Mutex
	var published []string
	done := make(chan struct{}, 2)
	bus.Subscribe(handlers.EventSearchCompleted, func(data interface{}) {
		set := data.(*types.SearchResultSet)
		publishedMu.Lock()
		published = append(published, set.Query)
		publishedMu.Unlock()
		done <- struct{}{}
	})

	gate := make(chan struct{})
	remote.gate = gate
	remote.gateQuery = "slow"

	slowDone := make(chan struct{})
	go func() {
		_, _ = a.Search(context.Background(), "slow", SortRelevance)
		close(slowDone)
	}()

	// Let the slow search claim its sequence number, then supersede it.
	require.Eventually(t, func() bool {
		return remote.calls.Load() >= 5
	}, 2*time.Second, 5*time.Millisecond)

	_, err := a.Search(context.Background(), "fast", SortRelevance)
	require.NoError(t, err)
	<-done

	close(gate)
	<-slowDone

	publishedMu.Lock()
	defer publishedMu.Unlock()
	require.Equal(t, []string{"fast"}, published, "only the newest search may publish")
}

func TestRelevanceRanking(t *testing.T) {
	remote := newFakeSearchRemote()
	remote.tracks = []*types.Track{
		{ID: "t1", Title: "Unrelated", ArtistName: "Someone"},
		{ID: "t2", Title: "Night drive", ArtistName: "Someone"},
		{ID: "t3", Title: "A night song", ArtistName: "Night Owls"},
	}
	a := newTestAggregator(remote, 10)

	result, err := a.Search(context.Background(), "night", SortRelevance)
	require.NoError(t, err)
	require.Len(t, result.Tracks, 3)
	// t3 matches title and artist, t2 matches title with prefix, t1 neither.
	require.Equal(t, "t3", result.Tracks[0].ID)
	require.Equal(t, "t2", result.Tracks[1].ID)
	require.Equal(t, "t1", result.Tracks[2].ID)
}

func TestAlphabeticalSort(t *testing.T) {
	remote := newFakeSearchRemote()
	remote.artists = []*types.Artist{
		{ID: "ar1", Name: "Zenith"},
		{ID: "ar2", Name: "august"},
		{ID: "ar3", Name: "Borealis"},
	}
	a := newTestAggregator(remote, 10)

	result, err := a.Search(context.Background(), "a", SortAlphabetical)
	require.NoError(t, err)
	require.Equal(t, "ar2", result.Artists[0].ID)
	require.Equal(t, "ar3", result.Artists[1].ID)
	require.Equal(t, "ar1", result.Artists[2].ID)
}

func fmtID(prefix string, i int) string {
	return prefix + string(rune('0'+i))
}
