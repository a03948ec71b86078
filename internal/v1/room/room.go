// Package room implements the per-room actor: one goroutine owning the
// room's membership, bounded history ring and broadcast fan-out. All access
// goes through the command channel; the actor is the sole mutator of its
// own state.
package room

import (
	"container/list"
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mychat/chathub/internal/v1/bufpool"
	"github.com/mychat/chathub/internal/v1/logging"
	"github.com/mychat/chathub/internal/v1/metrics"
	"github.com/mychat/chathub/internal/v1/wire"
)

// sweepInterval is how often an idle room checks its TTL.
const sweepInterval = time.Second

// Config captures the per-room knobs the hub hands down.
type Config struct {
	HistoryLimit    int           // chat-history ring capacity
	TTL             time.Duration // how long an empty room is retained
	BroadcastBuffer int           // per-subscriber frame buffer
}

// Room is a handle to a live room actor. The zero value is not usable;
// call Spawn.
type Room struct {
	name string
	cmds chan command
	done chan struct{}
}

type command interface{ isCommand() }

type joinCmd struct {
	name  string
	reply chan *Subscription
}

type sendCmd struct {
	ev wire.ServerEvent
}

type leaveCmd struct {
	name  string
	reply chan struct{}
}

type membersCmd struct {
	reply chan []string
}

type historyCmd struct {
	reply chan []bufpool.Frame
}

type unsubscribeCmd struct {
	id uint64
}

type closeCmd struct{}

func (joinCmd) isCommand()        {}
func (sendCmd) isCommand()        {}
func (leaveCmd) isCommand()       {}
func (membersCmd) isCommand()     {}
func (historyCmd) isCommand()     {}
func (unsubscribeCmd) isCommand() {}
func (closeCmd) isCommand()       {}

// Spawn starts a new room actor and returns its handle.
func Spawn(name string, cfg Config) *Room {
	r := &Room{
		name: name,
		cmds: make(chan command, 32),
		done: make(chan struct{}),
	}
	go r.run(cfg)
	return r
}

// Name returns the room name.
func (r *Room) Name() string {
	return r.name
}

// Done is closed when the actor has exited, either via Close or the TTL
// sweeper.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// enqueue delivers a command to the actor. It reports false when the actor
// has already exited.
func (r *Room) enqueue(cmd command) bool {
	select {
	case r.cmds <- cmd:
		return true
	case <-r.done:
		return false
	}
}

// Join adds name to the room and subscribes a fresh broadcast receiver.
// The receiver is handed out before UserJoined is published, so the joiner
// observes its own join. Reports false if the room has exited.
func (r *Room) Join(name string) (*Subscription, bool) {
	reply := make(chan *Subscription, 1)
	if !r.enqueue(joinCmd{name: name, reply: reply}) {
		return nil, false
	}
	select {
	case sub := <-reply:
		return sub, true
	case <-r.done:
		return nil, false
	}
}

// Send broadcasts ev to all subscribers. NewMessage events are also
// recorded in the history ring. Reports false if the room has exited.
func (r *Room) Send(ev wire.ServerEvent) bool {
	return r.enqueue(sendCmd{ev: ev})
}

// Leave removes name from the room, broadcasting UserLeft first. Leaving a
// room one is not a member of is a no-op and broadcasts nothing. Leave
// returns once the actor has processed the removal, so the UserLeft frame
// is already queued on every surviving subscription.
func (r *Room) Leave(name string) bool {
	reply := make(chan struct{})
	if !r.enqueue(leaveCmd{name: name, reply: reply}) {
		return false
	}
	select {
	case <-reply:
		return true
	case <-r.done:
		return false
	}
}

// Members returns a snapshot of member names, in no particular order.
func (r *Room) Members() ([]string, bool) {
	reply := make(chan []string, 1)
	if !r.enqueue(membersCmd{reply: reply}) {
		return nil, false
	}
	select {
	case members := <-reply:
		return members, true
	case <-r.done:
		return nil, false
	}
}

// History returns a copy of the current history frames, oldest first.
func (r *Room) History() ([]bufpool.Frame, bool) {
	reply := make(chan []bufpool.Frame, 1)
	if !r.enqueue(historyCmd{reply: reply}) {
		return nil, false
	}
	select {
	case frames := <-reply:
		return frames, true
	case <-r.done:
		return nil, false
	}
}

// Close asks the actor to exit. Subscriber channels are closed so push
// loops wind down.
func (r *Room) Close() {
	r.enqueue(closeCmd{})
}

// roomState is the actor-owned mutable state. Only the run goroutine
// touches it.
type roomState struct {
	name        string
	cfg         Config
	members     map[string]struct{}
	history     *list.List // of bufpool.Frame, oldest at Front
	subs        map[uint64]*Subscription
	nextSubID   uint64
	lastEmptyAt time.Time // zero while the room has members
}

func (r *Room) run(cfg Config) {
	ctx := context.WithValue(context.Background(), logging.RoomKey, r.name)

	metrics.ActiveRooms.Inc()
	defer metrics.ActiveRooms.Dec()
	defer close(r.done)

	s := &roomState{
		name:    r.name,
		cfg:     cfg,
		members: make(map[string]struct{}),
		history: list.New(),
		subs:    make(map[uint64]*Subscription),
	}
	defer s.closeSubscribers()

	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	logging.Debug(ctx, "room actor started")

	for {
		select {
		case cmd := <-r.cmds:
			switch c := cmd.(type) {
			case joinCmd:
				s.handleJoin(ctx, r, c)
			case sendCmd:
				s.broadcast(ctx, c.ev)
			case leaveCmd:
				s.handleLeave(ctx, c.name)
				close(c.reply)
			case membersCmd:
				c.reply <- s.memberSnapshot()
			case historyCmd:
				c.reply <- s.historySnapshot()
			case unsubscribeCmd:
				s.handleUnsubscribe(c.id)
			case closeCmd:
				logging.Info(ctx, "room actor closing")
				return
			}
		case <-sweep.C:
			if len(s.members) == 0 && !s.lastEmptyAt.IsZero() && time.Since(s.lastEmptyAt) > cfg.TTL {
				logging.Info(ctx, "room expired after TTL",
					zap.Duration("ttl", cfg.TTL))
				metrics.ExpiredRooms.Inc()
				return
			}
		}
	}
}

func (s *roomState) handleJoin(ctx context.Context, r *Room, c joinCmd) {
	s.members[c.name] = struct{}{}
	s.lastEmptyAt = time.Time{}

	id := s.nextSubID
	s.nextSubID++
	sub := &Subscription{
		id:     id,
		frames: make(chan bufpool.Frame, s.cfg.BroadcastBuffer),
	}
	sub.cancel = func() { r.enqueue(unsubscribeCmd{id: id}) }
	s.subs[id] = sub

	// The receiver goes out before UserJoined so the joiner's stream
	// contains its own join event.
	c.reply <- sub
	s.broadcast(ctx, wire.UserJoined{Room: s.name, Name: c.name})
}

func (s *roomState) handleLeave(ctx context.Context, name string) {
	if _, ok := s.members[name]; !ok {
		return
	}
	s.broadcast(ctx, wire.UserLeft{Room: s.name, Name: name})
	delete(s.members, name)
	if len(s.members) == 0 {
		s.lastEmptyAt = time.Now()
	}
}

func (s *roomState) handleUnsubscribe(id uint64) {
	if sub, ok := s.subs[id]; ok {
		delete(s.subs, id)
		close(sub.frames)
	}
}

// broadcast encodes ev once, fans the frame out to every subscriber and
// records NewMessage frames in the history ring.
func (s *roomState) broadcast(ctx context.Context, ev wire.ServerEvent) {
	frame, err := wire.EncodeEvent(ev)
	if err != nil {
		// Encoding a known event cannot fail; this is a programming error.
		logging.Error(ctx, "failed to encode event", zap.Error(err))
		return
	}
	metrics.EventsBroadcast.WithLabelValues(wire.EventName(ev)).Inc()

	for _, sub := range s.subs {
		select {
		case sub.frames <- frame:
		default:
			// Lagging subscriber: drop rather than buffer without bound.
			sub.dropped.Add(1)
			metrics.FramesDropped.Inc()
			logging.Warn(ctx, "subscriber lagging, dropping frame",
				zap.Uint64("subscription", sub.id))
		}
	}

	if _, ok := ev.(wire.NewMessage); ok {
		s.history.PushBack(frame)
		if s.history.Len() > s.cfg.HistoryLimit {
			s.history.Remove(s.history.Front())
		}
	}
}

func (s *roomState) memberSnapshot() []string {
	members := make([]string, 0, len(s.members))
	for name := range s.members {
		members = append(members, name)
	}
	return members
}

func (s *roomState) historySnapshot() []bufpool.Frame {
	frames := make([]bufpool.Frame, 0, s.history.Len())
	for e := s.history.Front(); e != nil; e = e.Next() {
		frames = append(frames, e.Value.(bufpool.Frame))
	}
	return frames
}

func (s *roomState) closeSubscribers() {
	for id, sub := range s.subs {
		delete(s.subs, id)
		close(sub.frames)
	}
}
