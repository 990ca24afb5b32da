package search

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/arlenko/mira/internal/config"
	"github.com/arlenko/mira/internal/handlers"
	"github.com/arlenko/mira/pkg/types"
)

// Remote is the per-category text search surface of the persistence service.
// *api.Client satisfies it.
type Remote interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]*types.Track, error)
	SearchAlbums(ctx context.Context, query string, limit int) ([]*types.Album, error)
	SearchArtists(ctx context.Context, query string, limit int) ([]*types.Artist, error)
	SearchPlaylists(ctx context.Context, query string, limit int) ([]*types.Playlist, error)
	SearchUsers(ctx context.Context, query string, limit int) ([]*types.User, error)
}

type SortMode string

const (
	SortRelevance    SortMode = "relevance"
	SortAlphabetical SortMode = "alphabetical"
)

// ErrAllCategoriesFailed is returned only when every category query failed;
// a single failed category degrades to an empty sequence instead.
var ErrAllCategoriesFailed = errors.New("search: all categories failed")

// Aggregator fans a query out across the five categories, merges the
// results, and discards stale responses: each request carries a monotonic
// sequence number and only the newest one is published on the bus.
type Aggregator struct {
	remote Remote
	bus    *handlers.EventBus
	limit  int
	debug  bool

	seq       atomic.Uint64
	published atomic.Uint64
}

func NewAggregator(cfg *config.Config, remote Remote, bus *handlers.EventBus) *Aggregator {
	limit := cfg.Search.CategoryLimit
	if limit <= 0 {
		limit = 10
	}
	return &Aggregator{
		remote: remote,
		bus:    bus,
		limit:  limit,
		debug:  cfg.Debug,
	}
}

// Search runs the fan-out. An empty or whitespace-only query resolves
// synchronously with all-empty categories and zero remote calls. A failed
// category yields an empty sequence while the others still populate.
func (a *Aggregator) Search(ctx context.Context, query string, sort SortMode) (*types.SearchResultSet, error) {
	id := a.seq.Add(1)
	result := &types.SearchResultSet{Query: query}

	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		a.deliver(id, result)
		return result, nil
	}

	var wg sync.WaitGroup
	errs := make([]error, 5)

	wg.Add(5)
	go func() {
		defer wg.Done()
		result.Tracks, errs[0] = a.remote.SearchTracks(ctx, trimmed, a.limit)
	}()
	go func() {
		defer wg.Done()
		result.Albums, errs[1] = a.remote.SearchAlbums(ctx, trimmed, a.limit)
	}()
	go func() {
		defer wg.Done()
		result.Artists, errs[2] = a.remote.SearchArtists(ctx, trimmed, a.limit)
	}()
	go func() {
		defer wg.Done()
		result.Playlists, errs[3] = a.remote.SearchPlaylists(ctx, trimmed, a.limit)
	}()
	go func() {
		defer wg.Done()
		result.Users, errs[4] = a.remote.SearchUsers(ctx, trimmed, a.limit)
	}()
	wg.Wait()

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
			if a.debug {
				log.Printf("[SEARCH] Category query failed for %q: %v", trimmed, err)
			}
		}
	}
	if failed == len(errs) {
		return &types.SearchResultSet{Query: query}, fmt.Errorf("search %q: %w", trimmed, ErrAllCategoriesFailed)
	}

	a.shape(result, trimmed, sort)
	a.deliver(id, result)
	return result, nil
}

// shape dedupes each category by id, ranks it, and applies the per-category
// cap. Results are never deduplicated across categories - a track and an
// album can legitimately share a title.
func (a *Aggregator) shape(result *types.SearchResultSet, query string, sort SortMode) {
	result.Tracks = capTracks(rankTracks(dedupeTracks(result.Tracks), query, sort), a.limit)
	result.Albums = capAlbums(rankAlbums(dedupeAlbums(result.Albums), query, sort), a.limit)
	result.Artists = capArtists(rankArtists(dedupeArtists(result.Artists), query, sort), a.limit)
	result.Playlists = capPlaylists(rankPlaylists(dedupePlaylists(result.Playlists), query, sort), a.limit)
	result.Users = capUsers(rankUsers(dedupeUsers(result.Users), query, sort), a.limit)
}

// deliver publishes result unless a newer search has already been started
// or delivered; the newest request always wins.
func (a *Aggregator) deliver(id uint64, result *types.SearchResultSet) {
	if id != a.seq.Load() {
		if a.debug {
			log.Printf("[SEARCH] Discarding stale result for %q (seq %d)", result.Query, id)
		}
		return
	}
	for {
		current := a.published.Load()
		if id <= current {
			return
		}
		if a.published.CompareAndSwap(current, id) {
			a.bus.Publish(handlers.EventSearchCompleted, result)
			return
		}
	}
}
