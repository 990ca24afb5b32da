package player

import (
	"errors"
	"testing"

	"github.com/arlenko/mira/pkg/types"
)

func makeTracks(ids ...string) []*types.Track {
	tracks := make([]*types.Track, 0, len(ids))
	for _, id := range ids {
		tracks = append(tracks, &types.Track{ID: id, Title: "Track " + id})
	}
	return tracks
}

func TestSetQueueSelectsStart(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c")
	q.SetQueue(tracks, tracks[1])

	if q.Len() != 3 {
		t.Fatalf("expected 3 tracks, got %d", q.Len())
	}
	if cur := q.Current(); cur == nil || cur.ID != "b" {
		t.Fatalf("expected current b, got %v", cur)
	}
}

func TestSetQueueAppendsMissingStart(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b")
	single := &types.Track{ID: "solo"}
	q.SetQueue(tracks, single)

	if q.Len() != 3 {
		t.Fatalf("expected 3 tracks, got %d", q.Len())
	}
	if cur := q.Current(); cur == nil || cur.ID != "solo" {
		t.Fatalf("expected current solo, got %v", cur)
	}
}

func TestSetQueueDropsDuplicates(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "a", "c", "b")
	q.SetQueue(tracks, tracks[0])

	if q.Len() != 3 {
		t.Fatalf("expected 3 unique tracks, got %d", q.Len())
	}
	got := q.Tracks()
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestNextRepeatOffExhausts(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c")
	q.SetQueue(tracks, tracks[1])

	next, err := q.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.ID != "c" {
		t.Fatalf("expected c, got %s", next.ID)
	}

	if _, err := q.Next(); !errors.Is(err, ErrQueueExhausted) {
		t.Fatalf("expected ErrQueueExhausted, got %v", err)
	}
	// Pointer holds at the last track.
	if cur := q.Current(); cur == nil || cur.ID != "c" {
		t.Fatalf("expected pointer to stay at c, got %v", cur)
	}
}

func TestNextRepeatAllCyclesBackToStart(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c", "d")
	q.SetQueue(tracks, tracks[0])
	q.SetRepeatMode(RepeatAll)

	for i := 0; i < q.Len(); i++ {
		if _, err := q.Next(); err != nil {
			t.Fatalf("next %d: unexpected error: %v", i, err)
		}
	}
	if cur := q.Current(); cur == nil || cur.ID != "a" {
		t.Fatalf("expected wrap back to a after %d nexts, got %v", q.Len(), cur)
	}
}

func TestNextRepeatOneHoldsCurrent(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c")
	q.SetQueue(tracks, tracks[1])
	q.SetRepeatMode(RepeatOne)

	for i := 0; i < 3; i++ {
		next, err := q.Next()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if next.ID != "b" {
			t.Fatalf("expected b every time, got %s", next.ID)
		}
	}
}

func TestPreviousAtHeadClampsToFirst(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c")
	q.SetQueue(tracks, tracks[0])

	prev, err := q.Previous()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prev.ID != "a" {
		t.Fatalf("expected first track replayed, got %s", prev.ID)
	}
	if q.CurrentIndex() != 0 {
		t.Fatalf("expected index 0, got %d", q.CurrentIndex())
	}
}

func TestPreviousRepeatAllWrapsToEnd(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c")
	q.SetQueue(tracks, tracks[0])
	q.SetRepeatMode(RepeatAll)

	prev, err := q.Previous()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if prev.ID != "c" {
		t.Fatalf("expected wrap to c, got %s", prev.ID)
	}
}

func TestEmptyQueueExhausts(t *testing.T) {
	q := NewQueue()
	if _, err := q.Next(); !errors.Is(err, ErrQueueExhausted) {
		t.Fatalf("expected ErrQueueExhausted on empty next, got %v", err)
	}
	if _, err := q.Previous(); !errors.Is(err, ErrQueueExhausted) {
		t.Fatalf("expected ErrQueueExhausted on empty previous, got %v", err)
	}
	if q.Current() != nil {
		t.Fatal("expected nil current on empty queue")
	}
}

func TestShufflePinsCurrentFirst(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c", "d", "e")
	q.SetQueue(tracks, tracks[2])

	q.ToggleShuffle()
	if !q.ShuffleActive() {
		t.Fatal("expected shuffle active")
	}
	if q.CurrentIndex() != 0 {
		t.Fatalf("expected current pinned at index 0, got %d", q.CurrentIndex())
	}
	if cur := q.Current(); cur == nil || cur.ID != "c" {
		t.Fatalf("expected current unchanged (c), got %v", cur)
	}

	seen := make(map[string]bool)
	for _, tr := range q.Tracks() {
		seen[tr.ID] = true
	}
	if len(seen) != 5 {
		t.Fatalf("shuffle lost tracks: %v", seen)
	}
}

func TestDisableShuffleRestoresOriginalOrder(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c", "d", "e")
	q.SetQueue(tracks, tracks[1])

	q.ToggleShuffle()
	// Advance so the pointer sits somewhere inside the permutation.
	if _, err := q.Next(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	currentID := q.Current().ID

	q.ToggleShuffle()
	if q.ShuffleActive() {
		t.Fatal("expected shuffle inactive")
	}
	got := q.Tracks()
	want := []string{"a", "b", "c", "d", "e"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s after restore, got %s", i, id, got[i].ID)
		}
	}
	if cur := q.Current(); cur == nil || cur.ID != currentID {
		t.Fatalf("expected current %s preserved, got %v", currentID, cur)
	}
}

func TestSelectMovesPointerWithoutReshuffle(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c", "d")
	q.SetQueue(tracks, tracks[0])
	q.ToggleShuffle()

	order := make([]string, 0, q.Len())
	for _, tr := range q.Tracks() {
		order = append(order, tr.ID)
	}

	if !q.Select("c") {
		t.Fatal("expected select to find c")
	}
	if cur := q.Current(); cur == nil || cur.ID != "c" {
		t.Fatalf("expected current c, got %v", cur)
	}
	for i, tr := range q.Tracks() {
		if tr.ID != order[i] {
			t.Fatalf("select must not reorder: position %d changed from %s to %s", i, order[i], tr.ID)
		}
	}

	if q.Select("missing") {
		t.Fatal("expected select to miss unknown id")
	}
}

func TestAppendUnderShufflePreservesOriginalOrder(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c")
	q.SetQueue(tracks, tracks[0])
	q.ToggleShuffle()

	outsider := &types.Track{ID: "x"}
	q.Append(outsider)

	if cur := q.Current(); cur == nil || cur.ID != "x" {
		t.Fatalf("expected appended track selected, got %v", cur)
	}

	q.ToggleShuffle()
	got := q.Tracks()
	want := []string{"a", "b", "c", "x"}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: expected %s after shuffle off, got %s", i, id, got[i].ID)
		}
	}
	if cur := q.Current(); cur == nil || cur.ID != "x" {
		t.Fatalf("expected current x after shuffle off, got %v", cur)
	}
}

func TestAppendExistingTrackSelectsInPlace(t *testing.T) {
	q := NewQueue()
	tracks := makeTracks("a", "b", "c")
	q.SetQueue(tracks, tracks[0])

	q.Append(tracks[2])
	if q.Len() != 3 {
		t.Fatalf("expected no duplicate, got %d tracks", q.Len())
	}
	if cur := q.Current(); cur == nil || cur.ID != "c" {
		t.Fatalf("expected current c, got %v", cur)
	}
}

func TestSetQueueRederivesActiveShuffle(t *testing.T) {
	q := NewQueue()
	first := makeTracks("a", "b", "c")
	q.SetQueue(first, first[0])
	q.ToggleShuffle()

	second := makeTracks("x", "y", "z")
	q.SetQueue(second, second[1])

	if !q.ShuffleActive() {
		t.Fatal("expected shuffle to survive queue replacement")
	}
	if cur := q.Current(); cur == nil || cur.ID != "y" {
		t.Fatalf("expected current y, got %v", cur)
	}
	if q.CurrentIndex() != 0 {
		t.Fatalf("expected start pinned at index 0 under shuffle, got %d", q.CurrentIndex())
	}
}
