// Package hub implements the process-wide router owning the mapping from
// room name to room actor. The hub is a pure router: payload semantics live
// entirely in the rooms. Commands are processed sequentially by a single
// goroutine, so two Joins naming the same new room can never race room
// creation.
package hub

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"github.com/mychat/chathub/internal/v1/bufpool"
	"github.com/mychat/chathub/internal/v1/logging"
	"github.com/mychat/chathub/internal/v1/room"
	"github.com/mychat/chathub/internal/v1/wire"
)

// ErrClosed is returned once the hub has shut down.
var ErrClosed = errors.New("hub: closed")

// Hub routes commands to room actors, lazily creating rooms on Join.
type Hub struct {
	cmds chan command
	done chan struct{}
}

type command interface{ isCommand() }

type joinCmd struct {
	room  string
	name  string
	reply chan *room.Subscription
}

type sendCmd struct {
	room string
	ev   wire.ServerEvent
}

type leaveCmd struct {
	room  string
	name  string
	reply chan struct{}
}

type membersCmd struct {
	room  string
	reply chan []string
}

type historyCmd struct {
	room  string
	reply chan []bufpool.Frame
}

type roomListCmd struct {
	reply chan []string
}

type shutdownCmd struct {
	reply chan struct{}
}

func (joinCmd) isCommand()     {}
func (sendCmd) isCommand()     {}
func (leaveCmd) isCommand()    {}
func (membersCmd) isCommand()  {}
func (historyCmd) isCommand()  {}
func (roomListCmd) isCommand() {}
func (shutdownCmd) isCommand() {}

// New starts a hub with the given per-room configuration.
func New(cfg room.Config) *Hub {
	h := &Hub{
		cmds: make(chan command, 64),
		done: make(chan struct{}),
	}
	go h.run(cfg)
	return h
}

// Done is closed once the hub loop has exited.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) enqueue(cmd command) bool {
	select {
	case h.cmds <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// Join subscribes name to roomName, instantiating the room if needed, and
// returns the fresh broadcast receiver.
func (h *Hub) Join(roomName, name string) (*room.Subscription, error) {
	reply := make(chan *room.Subscription, 1)
	if !h.enqueue(joinCmd{room: roomName, name: name, reply: reply}) {
		return nil, ErrClosed
	}
	select {
	case sub := <-reply:
		return sub, nil
	case <-h.done:
		return nil, ErrClosed
	}
}

// Send forwards ev to roomName. Events to absent rooms are dropped
// silently.
func (h *Hub) Send(roomName string, ev wire.ServerEvent) {
	h.enqueue(sendCmd{room: roomName, ev: ev})
}

// Leave removes name from roomName. Absent rooms are a silent no-op.
// Leave blocks until the room has processed the removal so that callers
// can rely on the UserLeft broadcast having been queued.
func (h *Hub) Leave(roomName, name string) {
	reply := make(chan struct{})
	if !h.enqueue(leaveCmd{room: roomName, name: name, reply: reply}) {
		return
	}
	select {
	case <-reply:
	case <-h.done:
	}
}

// Members returns a snapshot of roomName's members; empty if the room is
// absent.
func (h *Hub) Members(roomName string) []string {
	reply := make(chan []string, 1)
	if !h.enqueue(membersCmd{room: roomName, reply: reply}) {
		return []string{}
	}
	select {
	case members := <-reply:
		return members
	case <-h.done:
		return []string{}
	}
}

// History returns roomName's history frames oldest first; empty if the
// room is absent.
func (h *Hub) History(roomName string) []bufpool.Frame {
	reply := make(chan []bufpool.Frame, 1)
	if !h.enqueue(historyCmd{room: roomName, reply: reply}) {
		return nil
	}
	select {
	case frames := <-reply:
		return frames
	case <-h.done:
		return nil
	}
}

// RoomList returns the names of all live rooms, pruning rooms whose actors
// have exited.
func (h *Hub) RoomList() ([]string, error) {
	reply := make(chan []string, 1)
	if !h.enqueue(roomListCmd{reply: reply}) {
		return nil, ErrClosed
	}
	select {
	case rooms := <-reply:
		return rooms, nil
	case <-h.done:
		return nil, ErrClosed
	}
}

// Ping verifies the hub loop is responsive within the context deadline.
func (h *Hub) Ping(ctx context.Context) error {
	reply := make(chan []string, 1)
	select {
	case h.cmds <- roomListCmd{reply: reply}:
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-h.done:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Shutdown closes every room actor and stops the hub loop.
func (h *Hub) Shutdown(ctx context.Context) error {
	reply := make(chan struct{})
	select {
	case h.cmds <- shutdownCmd{reply: reply}:
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-reply:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// hubState is owned by the run goroutine.
type hubState struct {
	cfg   room.Config
	rooms map[string]*room.Room
}

func (h *Hub) run(cfg room.Config) {
	defer close(h.done)

	ctx := context.Background()
	s := &hubState{
		cfg:   cfg,
		rooms: make(map[string]*room.Room),
	}

	for cmd := range h.cmds {
		switch c := cmd.(type) {
		case joinCmd:
			s.handleJoin(ctx, c)
		case sendCmd:
			if rm := s.liveRoom(c.room); rm != nil {
				rm.Send(c.ev)
			}
		case leaveCmd:
			if rm := s.liveRoom(c.room); rm != nil {
				rm.Leave(c.name)
			}
			close(c.reply)
		case membersCmd:
			members := []string{}
			if rm := s.liveRoom(c.room); rm != nil {
				if snapshot, ok := rm.Members(); ok {
					members = snapshot
				}
			}
			c.reply <- members
		case historyCmd:
			var frames []bufpool.Frame
			if rm := s.liveRoom(c.room); rm != nil {
				if snapshot, ok := rm.History(); ok {
					frames = snapshot
				}
			}
			c.reply <- frames
		case roomListCmd:
			c.reply <- s.roomNames()
		case shutdownCmd:
			logging.Info(ctx, "hub shutting down, closing all rooms",
				zap.Int("rooms", len(s.rooms)))
			for name, rm := range s.rooms {
				rm.Close()
				<-rm.Done()
				delete(s.rooms, name)
			}
			close(c.reply)
			return
		}
	}
}

// handleJoin lazily instantiates the room actor and forwards the join.
// A room that exits between lookup and forward is replaced and the join
// retried against the fresh actor.
func (s *hubState) handleJoin(ctx context.Context, c joinCmd) {
	for {
		rm := s.liveRoom(c.room)
		if rm == nil {
			logging.Info(ctx, "creating room",
				zap.String("room", c.room))
			rm = room.Spawn(c.room, s.cfg)
			s.rooms[c.room] = rm
		}
		if sub, ok := rm.Join(c.name); ok {
			c.reply <- sub
			return
		}
		delete(s.rooms, c.room)
	}
}

// liveRoom returns the named room, pruning it first if its actor has
// exited.
func (s *hubState) liveRoom(name string) *room.Room {
	rm, ok := s.rooms[name]
	if !ok {
		return nil
	}
	select {
	case <-rm.Done():
		delete(s.rooms, name)
		return nil
	default:
		return rm
	}
}

func (s *hubState) roomNames() []string {
	names := make([]string, 0, len(s.rooms))
	for name, rm := range s.rooms {
		select {
		case <-rm.Done():
			delete(s.rooms, name)
		default:
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}
