package audio

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/speaker"

	"github.com/arlenko/mira/internal/config"
)

var speakerInitialized = false
var speakerMutex sync.Mutex

// Engine is the production Session backed by the beep speaker. It streams
// mp3 data over http (or from a local path), decodes, resamples to the
// configured output rate and emits Status updates on a ticker.
type Engine struct {
	mu sync.Mutex

	cfg        *config.Config
	httpClient *http.Client
	sampleRate beep.SampleRate
	events     chan Status
	finish     chan Handle
	ticker     *time.Ticker
	done       chan struct{}
	closeOnce  sync.Once
	debug      bool

	nextHandle Handle
	handle     Handle
	streamer   beep.StreamSeekCloser
	srcRate    beep.SampleRate
	ctrl       *beep.Ctrl
	volume     *effects.Volume
	duration   time.Duration
	started    bool
	paused     bool
	finished   bool
}

func NewEngine(cfg *config.Config) (*Engine, error) {
	e := &Engine{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.API.Timeout) * time.Second},
		sampleRate: beep.SampleRate(cfg.Audio.SampleRate),
		events:     make(chan Status, 16),
		finish:     make(chan Handle, 4),
		done:       make(chan struct{}),
		debug:      cfg.Debug,
	}

	if err := e.initializeSpeaker(); err != nil {
		return nil, fmt.Errorf("initialize speaker: %w", err)
	}

	e.ticker = time.NewTicker(200 * time.Millisecond)
	go e.statusLoop()

	if e.debug {
		log.Printf("[AUDIO] Engine initialized on %s with sample rate %d", runtime.GOOS, e.sampleRate)
	}

	return e, nil
}

func (e *Engine) initializeSpeaker() error {
	speakerMutex.Lock()
	defer speakerMutex.Unlock()

	if speakerInitialized {
		return nil
	}

	bufferSize := e.sampleRate.N(time.Second / 10)
	if runtime.GOOS == "linux" || runtime.GOOS == "android" {
		bufferSize = e.sampleRate.N(time.Second / 5)
	}

	if err := speaker.Init(e.sampleRate, bufferSize); err != nil {
		return fmt.Errorf("speaker initialization failed: %w", err)
	}

	speakerInitialized = true
	return nil
}

// Load acquires the audio resource for uri. It fails with ErrSessionBusy
// while a previous handle is still loaded; the caller must unload first.
func (e *Engine) Load(ctx context.Context, uri string) (Handle, error) {
	e.mu.Lock()
	if e.handle != 0 {
		e.mu.Unlock()
		return 0, ErrSessionBusy
	}
	e.mu.Unlock()

	reader, err := e.openSource(ctx, uri)
	if err != nil {
		return 0, &LoadError{URI: uri, Err: err}
	}

	streamer, format, err := mp3.Decode(reader)
	if err != nil {
		reader.Close()
		return 0, &LoadError{URI: uri, Err: fmt.Errorf("decode: %w", err)}
	}

	if ctx.Err() != nil {
		streamer.Close()
		return 0, &LoadError{URI: uri, Err: ctx.Err()}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle != 0 {
		streamer.Close()
		return 0, ErrSessionBusy
	}

	resampled := beep.Resample(4, format.SampleRate, e.sampleRate, streamer)
	ctrl := &beep.Ctrl{Streamer: resampled, Paused: false}
	volume := &effects.Volume{
		Streamer: ctrl,
		Base:     2,
		Volume:   (e.cfg.Audio.DefaultVolume - 1) * 5,
		Silent:   e.cfg.Audio.DefaultVolume == 0,
	}

	e.nextHandle++
	e.handle = e.nextHandle
	e.streamer = streamer
	e.srcRate = format.SampleRate
	e.ctrl = ctrl
	e.volume = volume
	e.duration = format.SampleRate.D(streamer.Len())
	e.started = false
	e.paused = false
	e.finished = false

	if e.debug {
		log.Printf("[AUDIO] Loaded %s - duration %v, source rate %d", uri, e.duration, format.SampleRate)
	}

	return e.handle, nil
}

func (e *Engine) openSource(ctx context.Context, uri string) (io.ReadCloser, error) {
	if !strings.Contains(uri, "://") {
		return os.Open(uri)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", uri, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", e.cfg.API.UserAgent)
	req.Header.Set("Accept", "audio/mpeg, audio/*")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("bad status: %s", resp.Status)
	}

	return resp.Body, nil
}

func (e *Engine) Play(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h == 0 || h != e.handle {
		return ErrNoHandle
	}

	if e.started {
		speaker.Lock()
		e.ctrl.Paused = false
		speaker.Unlock()
		e.paused = false
		return nil
	}

	handle := e.handle
	sequence := beep.Seq(e.volume, beep.Callback(func() {
		e.signalFinished(handle)
	}))

	speaker.Play(sequence)
	e.started = true
	e.paused = false

	if e.debug {
		log.Printf("[AUDIO] Playback started for handle %d", h)
	}
	return nil
}

// signalFinished runs inside the speaker's streaming callback, under the
// speaker mutex. It must not take e.mu there; it only hands the handle to the
// status loop, which does the finish handling outside the speaker lock.
func (e *Engine) signalFinished(h Handle) {
	select {
	case e.finish <- h:
	default:
	}
}

func (e *Engine) onFinished(h Handle) {
	e.mu.Lock()
	if h != e.handle {
		e.mu.Unlock()
		return
	}
	e.finished = true
	status := Status{
		Position: e.duration,
		Duration: e.duration,
		Playing:  false,
		Finished: true,
	}
	e.mu.Unlock()

	e.emit(status)
}

func (e *Engine) Pause(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h == 0 || h != e.handle {
		return ErrNoHandle
	}
	if !e.started || e.paused {
		return nil
	}

	speaker.Lock()
	e.ctrl.Paused = true
	speaker.Unlock()
	e.paused = true
	return nil
}

func (e *Engine) Seek(h Handle, pos time.Duration) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h == 0 || h != e.handle {
		return ErrNoHandle
	}

	n := e.srcRate.N(pos)
	if n < 0 {
		n = 0
	}
	if n >= e.streamer.Len() {
		n = e.streamer.Len() - 1
	}

	speaker.Lock()
	err := e.streamer.Seek(n)
	speaker.Unlock()
	if err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

func (e *Engine) SetVolume(h Handle, level float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h == 0 || h != e.handle {
		return ErrNoHandle
	}

	speaker.Lock()
	e.volume.Volume = (level - 1) * 5
	e.volume.Silent = level == 0
	speaker.Unlock()
	return nil
}

// Unload releases the resource behind h. Unloading a stale handle is a no-op
// so a superseded load can always clean up after itself.
func (e *Engine) Unload(h Handle) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if h == 0 || h != e.handle {
		return nil
	}

	e.unloadLocked()
	return nil
}

func (e *Engine) unloadLocked() {
	if e.started {
		speaker.Clear()
	}
	if e.streamer != nil {
		if err := e.streamer.Close(); err != nil && e.debug {
			log.Printf("[AUDIO] Error closing streamer: %v", err)
		}
	}

	e.handle = 0
	e.streamer = nil
	e.ctrl = nil
	e.volume = nil
	e.duration = 0
	e.started = false
	e.paused = false
	e.finished = false
}

func (e *Engine) Events() <-chan Status {
	return e.events
}

func (e *Engine) Close() error {
	e.closeOnce.Do(func() {
		close(e.done)
	})
	e.ticker.Stop()

	e.mu.Lock()
	e.unloadLocked()
	e.mu.Unlock()
	return nil
}

func (e *Engine) statusLoop() {
	for {
		select {
		case h := <-e.finish:
			e.onFinished(h)
		case <-e.ticker.C:
			if status, ok := e.snapshot(); ok {
				e.emit(status)
			}
		case <-e.done:
			return
		}
	}
}

func (e *Engine) snapshot() (Status, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handle == 0 || !e.started || e.finished {
		return Status{}, false
	}

	speaker.Lock()
	pos := e.srcRate.D(e.streamer.Position())
	speaker.Unlock()

	return Status{
		Position: pos,
		Duration: e.duration,
		Playing:  !e.paused,
	}, true
}

// emit never blocks; a full channel drops the update. Consumers are required
// to tolerate irregular delivery.
func (e *Engine) emit(status Status) {
	select {
	case e.events <- status:
	default:
	}
}
