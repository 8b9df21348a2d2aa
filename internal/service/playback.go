package service

import (
	"sync"

	"github.com/schoolroute/backend/internal/domain"
)

// PlaybackState tracks which prefix of the segments is revealed.
// Segments with index < Cursor are active, the rest are pending.
// Transitions return a new state and never modify the receiver.
type PlaybackState struct {
	Segments []domain.Segment `json:"segments"`
	Cursor   int              `json:"cursor"`
}

// NewPlaybackState starts playback over segments with nothing revealed
func NewPlaybackState(segments []domain.Segment) PlaybackState {
	out := make([]domain.Segment, len(segments))
	copy(out, segments)
	for i := range out {
		out[i].Active = false
	}
	return PlaybackState{Segments: out, Cursor: 0}
}

// Len is the number of segments
func (s PlaybackState) Len() int { return len(s.Segments) }

// Done reports whether every segment is revealed
func (s PlaybackState) Done() bool { return s.Cursor == len(s.Segments) }

// Advance reveals the next segment; at the end it returns the state unchanged
func (s PlaybackState) Advance() PlaybackState {
	if s.Cursor >= len(s.Segments) {
		return s
	}
	next := s.clone()
	next.Segments[next.Cursor].Active = true
	next.Cursor++
	return next
}

// Rewind hides the last revealed segment; at the start it returns the state unchanged
func (s PlaybackState) Rewind() PlaybackState {
	if s.Cursor <= 0 {
		return s
	}
	next := s.clone()
	next.Cursor--
	next.Segments[next.Cursor].Active = false
	return next
}

// ActiveSegments returns the revealed prefix
func (s PlaybackState) ActiveSegments() []domain.Segment {
	return s.Segments[:s.Cursor]
}

func (s PlaybackState) clone() PlaybackState {
	segments := make([]domain.Segment, len(s.Segments))
	copy(segments, s.Segments)
	return PlaybackState{Segments: segments, Cursor: s.Cursor}
}

// PlaybackController holds the current playback state. Each operation
// swaps the whole state under the lock, so readers never observe a
// half-applied transition.
type PlaybackController struct {
	mu    sync.RWMutex
	state PlaybackState
}

// NewPlaybackController creates a controller with no segments
func NewPlaybackController() *PlaybackController {
	return &PlaybackController{}
}

// Reset replaces the state with a fresh one over segments
func (c *PlaybackController) Reset(segments []domain.Segment) PlaybackState {
	next := NewPlaybackState(segments)
	c.mu.Lock()
	c.state = next
	c.mu.Unlock()
	return next
}

// Restart rewinds the current segments to the initial state
func (c *PlaybackController) Restart() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = NewPlaybackState(c.state.Segments)
	return c.state
}

// Advance reveals the next segment
func (c *PlaybackController) Advance() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.state.Advance()
	return c.state
}

// Rewind hides the last revealed segment
func (c *PlaybackController) Rewind() PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = c.state.Rewind()
	return c.state
}

// State returns the current state
func (c *PlaybackController) State() PlaybackState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}
