package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arlenko/mira/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	cfg.API.BaseURL = server.URL
	cfg.API.Token = "test-token"
	cfg.API.UserAgent = "Mira-Test/1.0"
	cfg.API.Timeout = 5
	cfg.API.RateLimit.RequestsPerSecond = 100
	cfg.API.RateLimit.BurstSize = 10

	return NewClient(cfg), server
}

func TestRequestCarriesAuthAndAgentHeaders(t *testing.T) {
	var gotAuth, gotAgent string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "t1", "title": "Song"})
	})

	_, err := client.GetTrack(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "Bearer test-token", gotAuth)
	require.Equal(t, "Mira-Test/1.0", gotAgent)
}

func TestGetTracksBuildsQuery(t *testing.T) {
	var gotQuery string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"count": 0, "results": []interface{}{}})
	})

	_, err := client.GetTracks(context.Background(), 2, "night", SortPlayed)
	require.NoError(t, err)
	require.Contains(t, gotQuery, "page=2")
	require.Contains(t, gotQuery, "search=night")
	require.Contains(t, gotQuery, "sort=played")
}

func TestNormalizeErrorPrefersBodyMessage(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "not your playlist"})
	})

	err := client.DeletePlaylist(context.Background(), "p1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "not your playlist")
	require.Contains(t, err.Error(), "403")
}

func TestNormalizeErrorFallsBackToStatus(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>not json</html>"))
	})

	_, err := client.GetAlbum(context.Background(), "missing")
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func TestLikeTrackPostsPayload(t *testing.T) {
	var gotMethod, gotPath string
	var gotBody map[string]string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("{}"))
	})

	require.NoError(t, client.LikeTrack(context.Background(), "t42"))
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "/library/likes/", gotPath)
	require.Equal(t, "t42", gotBody["track"])
}

func TestSearchCategoryDecodesList(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/search/tracks/", r.URL.Path)
		require.Equal(t, "night", r.URL.Query().Get("q"))
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"id":"t1","title":"Nightfall"},{"id":"t2","title":"Night drive"}]`))
	})

	tracks, err := client.SearchTracks(context.Background(), "night", 5)
	require.NoError(t, err)
	require.Len(t, tracks, 2)
	require.Equal(t, "Nightfall", tracks[0].Title)
}

func TestAuthenticateRestoresTokenOnFailure(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "invalid token"})
	})

	err := client.Authenticate(context.Background(), "bad-token")
	require.Error(t, err)
	require.Equal(t, "test-token", client.Token(), "failed auth must not clobber the existing token")
}

func TestTokenSafeForConcurrentUse(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "t1", "title": "Song"})
	})

	// Logout clears the token while a fire-and-forget play record may still
	// be in flight; both sides must be race-free.
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if i%2 == 0 {
					client.SetToken("")
					client.SetToken("test-token")
				} else {
					_, _ = client.GetTrack(context.Background(), "t1")
				}
			}
		}(i)
	}
	wg.Wait()
	require.Equal(t, "test-token", client.Token())
}

func TestServerErrorsAreRetried(t *testing.T) {
	attempts := 0
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"id": "t1", "title": "Song"})
	})
	client.httpClient.RetryMax = 3
	client.httpClient.RetryWaitMin = 0
	client.httpClient.RetryWaitMax = 0

	track, err := client.GetTrack(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "t1", track.ID)
	require.Equal(t, 3, attempts)
}
