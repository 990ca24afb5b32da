package player

import (
	"errors"
	"math/rand"
	"time"

	"github.com/arlenko/mira/pkg/types"
)

type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

func (r RepeatMode) String() string {
	switch r {
	case RepeatOff:
		return "off"
	case RepeatAll:
		return "all"
	case RepeatOne:
		return "one"
	default:
		return "unknown"
	}
}

// ErrQueueExhausted signals that no further track is available under the
// current repeat mode. Playback should stop rather than loop silently.
var ErrQueueExhausted = errors.New("player: queue exhausted")

// Queue is the ordered playback sequence with a current-position pointer.
// Shuffle is a derived permutation of indices into the original order, so
// disabling shuffle restores the original ordering without reconstructing
// the queue. Duplicate track ids are disallowed within one queue.
//
// Queue is not safe for concurrent use; the Controller serializes access.
type Queue struct {
	items         []*types.Track // original order
	perm          []int          // active permutation while shuffled
	currentIndex  int            // index into the active order, -1 if none
	shuffleActive bool
	repeatMode    RepeatMode
	rng           *rand.Rand
}

func NewQueue() *Queue {
	return &Queue{
		currentIndex: -1,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (q *Queue) Len() int {
	return len(q.items)
}

func (q *Queue) CurrentIndex() int {
	return q.currentIndex
}

func (q *Queue) ShuffleActive() bool {
	return q.shuffleActive
}

func (q *Queue) RepeatMode() RepeatMode {
	return q.repeatMode
}

// SetRepeatMode is a pure state transition; the current position is untouched.
func (q *Queue) SetRepeatMode(mode RepeatMode) {
	q.repeatMode = mode
}

func (q *Queue) at(i int) *types.Track {
	if q.shuffleActive {
		return q.items[q.perm[i]]
	}
	return q.items[i]
}

// Current returns the selected track, or nil when the queue has no selection.
func (q *Queue) Current() *types.Track {
	if q.currentIndex < 0 || q.currentIndex >= len(q.items) {
		return nil
	}
	return q.at(q.currentIndex)
}

// Tracks returns the queue in active order.
func (q *Queue) Tracks() []*types.Track {
	out := make([]*types.Track, 0, len(q.items))
	for i := range q.items {
		out = append(out, q.at(i))
	}
	return out
}

// SetQueue replaces the queue contents and selects start. If start is not in
// tracks it is appended and selected - that is the single-track playback
// case. Duplicates by id are dropped, keeping the first occurrence. An active
// shuffle is re-derived over the new contents.
func (q *Queue) SetQueue(tracks []*types.Track, start *types.Track) {
	seen := make(map[string]bool, len(tracks))
	items := make([]*types.Track, 0, len(tracks))
	for _, t := range tracks {
		if t == nil || seen[t.ID] {
			continue
		}
		seen[t.ID] = true
		items = append(items, t)
	}

	startIndex := -1
	if start != nil {
		for i, t := range items {
			if t.ID == start.ID {
				startIndex = i
				break
			}
		}
		if startIndex == -1 {
			items = append(items, start)
			startIndex = len(items) - 1
		}
	}

	q.items = items
	q.perm = nil
	q.currentIndex = startIndex

	if q.shuffleActive {
		q.shuffleActive = false
		q.enableShuffle()
	}
}

// Select moves the pointer to the track with the given id without touching
// ordering or shuffle state. Returns false if the id is not queued.
func (q *Queue) Select(trackID string) bool {
	for i := range q.items {
		if q.at(i).ID == trackID {
			q.currentIndex = i
			return true
		}
	}
	return false
}

// Append adds track to the end of the original order and selects it. An
// active shuffle keeps its permutation, with the new track last in the active
// order, so disabling shuffle still restores the true original sequence. A
// track already queued is selected in place.
func (q *Queue) Append(track *types.Track) {
	if track == nil {
		return
	}
	if q.Select(track.ID) {
		return
	}
	q.items = append(q.items, track)
	if q.shuffleActive {
		q.perm = append(q.perm, len(q.items)-1)
	}
	q.currentIndex = len(q.items) - 1
}

// Next resolves the following track. With repeat "one" the current track is
// returned unchanged. Past the end, repeat "all" wraps to the start while
// repeat "off" holds the pointer at the last index and reports exhaustion.
func (q *Queue) Next() (*types.Track, error) {
	if len(q.items) == 0 {
		return nil, ErrQueueExhausted
	}
	if q.currentIndex == -1 {
		q.currentIndex = 0
		return q.Current(), nil
	}
	if q.repeatMode == RepeatOne {
		return q.Current(), nil
	}

	if q.currentIndex+1 >= len(q.items) {
		if q.repeatMode == RepeatAll {
			q.currentIndex = 0
			return q.Current(), nil
		}
		return nil, ErrQueueExhausted
	}

	q.currentIndex++
	return q.Current(), nil
}

// Previous is symmetric to Next, except at index 0 without wrap it clamps to
// 0 and replays the first track rather than erroring.
func (q *Queue) Previous() (*types.Track, error) {
	if len(q.items) == 0 {
		return nil, ErrQueueExhausted
	}
	if q.currentIndex == -1 {
		q.currentIndex = 0
		return q.Current(), nil
	}
	if q.repeatMode == RepeatOne {
		return q.Current(), nil
	}

	if q.currentIndex == 0 {
		if q.repeatMode == RepeatAll {
			q.currentIndex = len(q.items) - 1
			return q.Current(), nil
		}
		return q.Current(), nil
	}

	q.currentIndex--
	return q.Current(), nil
}

// ToggleShuffle flips shuffle. Enabling pins the current track first and
// randomizes the rest; disabling restores the original order and relocates
// the pointer to the current track's original position.
func (q *Queue) ToggleShuffle() {
	if q.shuffleActive {
		q.disableShuffle()
	} else {
		q.enableShuffle()
	}
}

func (q *Queue) enableShuffle() {
	if q.shuffleActive {
		return
	}
	q.shuffleActive = true

	if len(q.items) == 0 {
		q.perm = nil
		return
	}

	if q.currentIndex == -1 {
		q.perm = q.rng.Perm(len(q.items))
		return
	}

	current := q.currentIndex
	rest := make([]int, 0, len(q.items)-1)
	for i := range q.items {
		if i != current {
			rest = append(rest, i)
		}
	}
	q.rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})

	q.perm = append([]int{current}, rest...)
	q.currentIndex = 0
}

func (q *Queue) disableShuffle() {
	if !q.shuffleActive {
		return
	}

	var currentID string
	if t := q.Current(); t != nil {
		currentID = t.ID
	}

	q.shuffleActive = false
	q.perm = nil

	if currentID == "" {
		q.currentIndex = -1
		return
	}
	for i, t := range q.items {
		if t.ID == currentID {
			q.currentIndex = i
			return
		}
	}
	q.currentIndex = -1
}
