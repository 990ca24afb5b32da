package audio

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Handle identifies one loaded audio resource. Zero is never a valid handle.
type Handle uint64

// Status is a point-in-time report from the platform audio primitive.
// Delivery intervals are not guaranteed; consumers must tolerate irregular
// and dropped updates.
type Status struct {
	Position time.Duration
	Duration time.Duration
	Playing  bool
	Finished bool
}

var (
	// ErrSessionBusy is returned by Load while a previous handle has not been
	// unloaded. Two live handles would overlap audio and leak the resource.
	ErrSessionBusy = errors.New("audio: another handle is active")

	// ErrNoHandle is returned when an operation references a handle that is
	// not the active one.
	ErrNoHandle = errors.New("audio: no active handle")
)

// LoadError marks a failed resource acquisition. It is terminal for the
// track it was issued for; callers must not retry automatically.
type LoadError struct {
	URI string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s: %v", e.URI, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Session wraps the platform "load+play a URI" primitive. At most one handle
// is active at a time; Load fails with ErrSessionBusy until the previous
// handle is unloaded. Load and Play errors surface as rejected operations,
// never as status events.
type Session interface {
	Load(ctx context.Context, uri string) (Handle, error)
	Play(h Handle) error
	Pause(h Handle) error
	Seek(h Handle, pos time.Duration) error
	SetVolume(h Handle, level float64) error
	Unload(h Handle) error
	Events() <-chan Status
	Close() error
}
