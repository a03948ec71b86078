package room

import (
	"sync"
	"sync/atomic"

	"github.com/mychat/chathub/internal/v1/bufpool"
)

// Subscription is a broadcast receiver handed out by a room's Join. Frames
// arrive in the room's publication order; a subscriber that falls behind by
// more than the buffer capacity loses intermediate frames, observable via
// Dropped.
type Subscription struct {
	id      uint64
	frames  chan bufpool.Frame
	dropped atomic.Uint64
	cancel  func()
	once    sync.Once
}

// Frames is the receive side of the subscription. It is closed when the
// subscription is cancelled or the room exits.
func (s *Subscription) Frames() <-chan bufpool.Frame {
	return s.frames
}

// Dropped reports how many frames have been lost to lag so far.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Cancel detaches the subscription from the room. Safe to call more than
// once and after the room has exited.
func (s *Subscription) Cancel() {
	s.once.Do(s.cancel)
}
