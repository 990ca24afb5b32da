package player

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/arlenko/mira/internal/audio"
	"github.com/arlenko/mira/internal/config"
	"github.com/arlenko/mira/internal/handlers"
	"github.com/arlenko/mira/pkg/types"
)

// PlayRecorder persists play events. Recording is best-effort: failures are
// logged, never retried and never surfaced to the user.
type PlayRecorder interface {
	Record(ctx context.Context, track *types.Track) error
}

// Controller is the playback session state machine. It is the only component
// allowed to touch the audio session, mediates between the queue and the
// adapter, and publishes session snapshots on the bus.
//
// There is one Controller per user session; a new PlayTrack supersedes any
// in-flight load, and the old handle's unload is awaited before the new load
// begins so two audio handles are never live at once.
type Controller struct {
	mu     sync.Mutex
	loadMu sync.Mutex // serializes unload+load sequences

	cfg      *config.Config
	session  audio.Session
	queue    *Queue
	bus      *handlers.EventBus
	recorder PlayRecorder
	debug    bool

	state    State
	current  *types.Track
	handle   audio.Handle
	position time.Duration
	duration time.Duration
	volume   float64
	lastErr  error

	generation uint64
	cancelLoad context.CancelFunc

	done      chan struct{}
	closeOnce sync.Once
}

func NewController(cfg *config.Config, session audio.Session, queue *Queue, bus *handlers.EventBus, recorder PlayRecorder) *Controller {
	c := &Controller{
		cfg:      cfg,
		session:  session,
		queue:    queue,
		bus:      bus,
		recorder: recorder,
		debug:    cfg.Debug,
		state:    StateIdle,
		volume:   cfg.Audio.DefaultVolume,
		done:     make(chan struct{}),
	}

	go c.consumeEvents()
	return c
}

func (c *Controller) consumeEvents() {
	for {
		select {
		case status, ok := <-c.session.Events():
			if !ok {
				return
			}
			c.handleStatus(status)
		case <-c.done:
			return
		}
	}
}

func (c *Controller) handleStatus(status audio.Status) {
	c.mu.Lock()
	if c.state != StatePlaying && c.state != StatePaused {
		c.mu.Unlock()
		return
	}

	if !status.Finished {
		c.position = status.Position
		if status.Duration > 0 {
			c.duration = status.Duration
		}
		progress := Progress{Position: c.position, Duration: c.duration}
		c.mu.Unlock()
		c.bus.Publish(handlers.EventSessionProgress, progress)
		return
	}
	c.mu.Unlock()

	// didFinish is the sole internal trigger for advancing the queue.
	go func() {
		if err := c.SkipNext(context.Background()); err != nil {
			log.Printf("[PLAYER] Auto-advance failed: %v", err)
		}
	}()
}

// PlayTrack starts playback of track. If queueTracks is non-nil it replaces
// the queue; otherwise the current queue is kept and track is selected in it
// (appended if missing). A load already in flight is cancelled and its
// handle unloaded before the new load starts.
func (c *Controller) PlayTrack(ctx context.Context, track *types.Track, queueTracks []*types.Track) error {
	if track == nil {
		return fmt.Errorf("track is nil")
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	c.mu.Unlock()

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	c.mu.Lock()
	if gen != c.generation {
		// A newer intent arrived while we waited for the previous load.
		c.mu.Unlock()
		return nil
	}

	oldHandle := c.handle
	c.handle = 0
	c.state = StateLoading
	c.current = track
	c.position = 0
	c.duration = time.Duration(track.DurationSeconds) * time.Second
	c.lastErr = nil

	if queueTracks != nil {
		c.queue.SetQueue(queueTracks, track)
	} else if !c.queue.Select(track.ID) {
		c.queue.Append(track)
	}

	timeout := time.Duration(c.cfg.Audio.LoadTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	loadCtx, cancel := context.WithTimeout(ctx, timeout)
	c.cancelLoad = cancel
	c.mu.Unlock()

	c.publishState()

	if oldHandle != 0 {
		if err := c.session.Unload(oldHandle); err != nil {
			log.Printf("[PLAYER] Unload of previous handle failed: %v", err)
		}
	}

	handle, err := c.session.Load(loadCtx, track.AudioURI)
	cancel()

	c.mu.Lock()
	c.cancelLoad = nil
	if gen != c.generation {
		c.mu.Unlock()
		if err == nil {
			_ = c.session.Unload(handle)
		}
		return nil
	}

	if err != nil {
		c.state = StateError
		c.lastErr = err
		c.mu.Unlock()
		c.publishState()
		c.bus.Publish(handlers.EventPlaybackError, err)
		return err
	}

	c.handle = handle
	volume := c.volume
	c.mu.Unlock()

	if err := c.session.SetVolume(handle, volume); err != nil && c.debug {
		log.Printf("[PLAYER] Apply volume failed: %v", err)
	}

	if err := c.session.Play(handle); err != nil {
		_ = c.session.Unload(handle)
		c.mu.Lock()
		if gen != c.generation {
			c.mu.Unlock()
			return nil
		}
		c.handle = 0
		c.state = StateError
		c.lastErr = err
		c.mu.Unlock()
		c.publishState()
		c.bus.Publish(handlers.EventPlaybackError, err)
		return err
	}

	c.mu.Lock()
	if gen != c.generation {
		c.mu.Unlock()
		_ = c.session.Unload(handle)
		return nil
	}
	c.state = StatePlaying
	c.position = 0
	c.mu.Unlock()
	c.publishState()

	go c.recordPlay(track)
	return nil
}

// recordPlay notifies the remote service of a play event. Best-effort only.
func (c *Controller) recordPlay(track *types.Track) {
	if c.recorder == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := c.recorder.Record(ctx, track); err != nil {
		log.Printf("[PLAYER] Failed to record play event for %s: %v", track.Title, err)
	}
}

// TogglePlayPause flips between Playing and Paused. From any other state it
// is a no-op.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	switch c.state {
	case StatePlaying:
		handle := c.handle
		c.state = StatePaused
		c.mu.Unlock()
		if err := c.session.Pause(handle); err != nil && c.debug {
			log.Printf("[PLAYER] Pause failed: %v", err)
		}
		c.publishState()
	case StatePaused:
		handle := c.handle
		c.state = StatePlaying
		c.mu.Unlock()
		if err := c.session.Play(handle); err != nil && c.debug {
			log.Printf("[PLAYER] Resume failed: %v", err)
		}
		c.publishState()
	default:
		c.mu.Unlock()
	}
}

// Seek clamps to [0, duration] and updates the adapter position. Valid from
// Playing or Paused; a no-op otherwise. Lifecycle state is unchanged.
func (c *Controller) Seek(pos time.Duration) {
	c.mu.Lock()
	if c.state != StatePlaying && c.state != StatePaused {
		c.mu.Unlock()
		return
	}
	if pos < 0 {
		pos = 0
	}
	if c.duration > 0 && pos > c.duration {
		pos = c.duration
	}
	handle := c.handle
	c.position = pos
	progress := Progress{Position: c.position, Duration: c.duration}
	c.mu.Unlock()

	if err := c.session.Seek(handle, pos); err != nil && c.debug {
		log.Printf("[PLAYER] Seek failed: %v", err)
	}
	c.bus.Publish(handlers.EventSessionProgress, progress)
}

// SetVolume clamps to [0,1] and applies immediately regardless of lifecycle
// state.
func (c *Controller) SetVolume(level float64) {
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	c.mu.Lock()
	c.volume = level
	handle := c.handle
	c.mu.Unlock()

	if handle != 0 {
		if err := c.session.SetVolume(handle, level); err != nil && c.debug {
			log.Printf("[PLAYER] Set volume failed: %v", err)
		}
	}
	c.publishState()
}

// SkipNext resolves the next track via the queue and plays it. When the
// queue is exhausted the session transitions to Idle and the current track
// is cleared; the queue itself is untouched.
func (c *Controller) SkipNext(ctx context.Context) error {
	c.mu.Lock()
	next, err := c.queue.Next()
	c.mu.Unlock()

	if err != nil {
		c.stopToIdle()
		return nil
	}
	return c.PlayTrack(ctx, next, nil)
}

// SkipPrevious mirrors SkipNext; at the head of the queue with no wrap the
// first track restarts.
func (c *Controller) SkipPrevious(ctx context.Context) error {
	c.mu.Lock()
	prev, err := c.queue.Previous()
	c.mu.Unlock()

	if err != nil {
		c.stopToIdle()
		return nil
	}
	return c.PlayTrack(ctx, prev, nil)
}

// ToggleShuffle flips the queue's shuffle mode.
func (c *Controller) ToggleShuffle() {
	c.mu.Lock()
	c.queue.ToggleShuffle()
	c.mu.Unlock()
	c.publishState()
}

// SetRepeatMode updates the repeat mode; playback position is unaffected.
func (c *Controller) SetRepeatMode(mode RepeatMode) {
	c.mu.Lock()
	c.queue.SetRepeatMode(mode)
	c.mu.Unlock()
	c.publishState()
}

func (c *Controller) stopToIdle() {
	c.mu.Lock()
	c.generation++
	if c.cancelLoad != nil {
		c.cancelLoad()
	}
	handle := c.handle
	c.handle = 0
	c.state = StateIdle
	c.current = nil
	c.position = 0
	c.duration = 0
	c.lastErr = nil
	c.mu.Unlock()

	if handle != 0 {
		if err := c.session.Unload(handle); err != nil {
			log.Printf("[PLAYER] Unload failed: %v", err)
		}
	}
	c.publishState()
}

// Stop is the explicit stop intent: unloads the audio resource and returns
// to Idle. Navigating away from a player screen does not call this; only a
// user stop or app-level teardown does.
func (c *Controller) Stop() {
	c.stopToIdle()
}

// Snapshot returns a copy of the observable session state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:    c.state,
		Track:    c.current,
		Position: c.position,
		Duration: c.duration,
		Volume:   c.volume,
		Shuffle:  c.queue.ShuffleActive(),
		Repeat:   c.queue.RepeatMode(),
	}
	if c.lastErr != nil {
		snap.LastErr = c.lastErr.Error()
	}
	return snap
}

func (c *Controller) publishState() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.bus.Publish(handlers.EventSessionChanged, snap)
}

// Close tears the controller down: the event subscription ends and the
// audio resource is released.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	c.stopToIdle()
}
