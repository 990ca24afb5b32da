package services

import (
	"context"
	"fmt"
	"log"

	"github.com/arlenko/mira/internal/api"
	"github.com/arlenko/mira/internal/audio"
	"github.com/arlenko/mira/internal/config"
	"github.com/arlenko/mira/internal/handlers"
	"github.com/arlenko/mira/internal/library"
	"github.com/arlenko/mira/internal/player"
	"github.com/arlenko/mira/internal/search"
	"github.com/arlenko/mira/internal/storage"
	"github.com/arlenko/mira/pkg/types"
)

// Services is the explicitly constructed dependency container. Nothing in
// the process holds package-level mutable state; one Services instance owns
// the playback session, the library mirror and the search aggregator, all
// scoped to the authenticated user and replaced wholesale on logout.
type Services struct {
	cfg      *config.Config
	engine   *audio.Engine
	recorder *PlayRecorder
	stateSub handlers.Subscription
	debug    bool

	API     *api.Client
	DB      *storage.Database
	Bus     *handlers.EventBus
	Player  *player.Controller
	Library *library.Synchronizer
	Search  *search.Aggregator
}

func New(cfg *config.Config) (*Services, error) {
	bus := handlers.NewEventBus()
	apiClient := api.NewClient(cfg)

	db, err := storage.NewDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("initialize storage: %w", err)
	}

	engine, err := audio.NewEngine(cfg)
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			log.Printf("[SERVICES] Failed to close database: %v", closeErr)
		}
		return nil, fmt.Errorf("initialize audio engine: %w", err)
	}

	recorder := NewPlayRecorder(apiClient, db, cfg.Debug)
	queue := player.NewQueue()
	controller := player.NewController(cfg, engine, queue, bus, recorder)

	s := &Services{
		cfg:      cfg,
		engine:   engine,
		recorder: recorder,
		debug:    cfg.Debug,
		API:      apiClient,
		DB:       db,
		Bus:      bus,
		Player:   controller,
		Library:  library.NewSynchronizer(apiClient, bus, cfg.Debug),
		Search:   search.NewAggregator(cfg, apiClient, bus),
	}

	s.restorePlayerState(context.Background())
	s.stateSub = bus.Subscribe(handlers.EventSessionChanged, s.persistPlayerState)

	return s, nil
}

func (s *Services) restorePlayerState(ctx context.Context) {
	state, err := s.DB.LoadPlayerState(ctx)
	if err != nil {
		log.Printf("[SERVICES] Failed to load player state: %v", err)
		return
	}
	if state == nil {
		return
	}

	s.Player.SetVolume(state.Volume)
	s.Player.SetRepeatMode(state.RepeatMode)
	if state.Shuffle {
		s.Player.ToggleShuffle()
	}

	if s.debug {
		log.Printf("[SERVICES] Restored player state - volume %.2f, shuffle %v, repeat %s",
			state.Volume, state.Shuffle, state.RepeatMode)
	}
}

func (s *Services) persistPlayerState(data interface{}) {
	snap, ok := data.(player.Snapshot)
	if !ok {
		return
	}

	state := storage.PlayerState{
		Volume:     snap.Volume,
		Shuffle:    snap.Shuffle,
		RepeatMode: snap.Repeat,
	}
	if snap.Track != nil {
		state.LastTrackID = snap.Track.ID
	}

	if err := s.DB.SavePlayerState(context.Background(), state); err != nil {
		log.Printf("[SERVICES] Failed to persist player state: %v", err)
	}
}

// Login authenticates with a persisted token and builds the per-user
// library state.
func (s *Services) Login(ctx context.Context, token string) (*types.User, error) {
	if err := s.API.Authenticate(ctx, token); err != nil {
		return nil, err
	}
	return s.finishLogin(ctx)
}

// LoginWithCredentials authenticates with username and password.
func (s *Services) LoginWithCredentials(ctx context.Context, username, password string) (*types.User, error) {
	if _, err := s.API.Login(ctx, username, password); err != nil {
		return nil, err
	}
	return s.finishLogin(ctx)
}

func (s *Services) finishLogin(ctx context.Context) (*types.User, error) {
	user, err := s.API.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}
	s.recorder.SetUserID(user.ID)

	if err := s.Library.Init(ctx); err != nil {
		return nil, err
	}

	if s.debug {
		log.Printf("[SERVICES] Logged in as %s", user.Username)
	}
	return user, nil
}

// Logout tears down everything scoped to the user: the playback session
// stops and unloads its audio resource, and the library mirror is
// invalidated. A later login rebuilds both from scratch.
func (s *Services) Logout() {
	s.Player.Stop()
	s.Library.Dispose()
	s.recorder.SetUserID("")
	s.API.SetToken("")

	if s.debug {
		log.Printf("[SERVICES] Logged out, session state cleared")
	}
}

// Close releases process-wide resources at shutdown.
func (s *Services) Close() {
	s.Bus.Unsubscribe(s.stateSub)
	s.Player.Close()
	if err := s.engine.Close(); err != nil {
		log.Printf("[SERVICES] Failed to close audio engine: %v", err)
	}
	if err := s.DB.Close(); err != nil {
		log.Printf("[SERVICES] Failed to close database: %v", err)
	}
}
