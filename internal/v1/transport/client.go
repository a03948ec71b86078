package transport

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/mychat/chathub/internal/v1/bufpool"
	"github.com/mychat/chathub/internal/v1/hub"
	"github.com/mychat/chathub/internal/v1/logging"
	"github.com/mychat/chathub/internal/v1/metrics"
	"github.com/mychat/chathub/internal/v1/room"
	"github.com/mychat/chathub/internal/v1/wire"
)

// writeWait bounds how long a single transport write may take.
const writeWait = 10 * time.Second

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error) // Read the next message from the connection
	WriteMessage(messageType int, data []byte) error     // Write a message to the connection
	Close() error                                        // Close the connection
	SetWriteDeadline(t time.Time) error
}

// Client drives one connection through the protocol state machine:
// pre-join listing, join, history replay, push loop, command loop,
// teardown. Only the push loop writes frames after join; the command loop
// routes unicast replies through the mailbox so the transport has a single
// writer.
type Client struct {
	id   string
	conn wsConnection
	hub  *hub.Hub

	room string
	name string

	mailbox     chan bufpool.Frame // unicast replies, serialized with broadcast frames
	closeSignal chan struct{}
	closeOnce   sync.Once
	pushDone    chan struct{}

	ctx context.Context
}

func newClient(conn wsConnection, h *hub.Hub) *Client {
	id := uuid.New().String()
	return &Client{
		id:          id,
		conn:        conn,
		hub:         h,
		mailbox:     make(chan bufpool.Frame, 32),
		closeSignal: make(chan struct{}),
		pushDone:    make(chan struct{}),
		ctx:         context.WithValue(context.Background(), logging.CorrelationIDKey, id),
	}
}

// run executes the full connection lifecycle. It blocks until the
// connection is torn down.
func (c *Client) run() {
	metrics.IncConnection()
	defer metrics.DecConnection()
	defer func() { _ = c.conn.Close() }()

	if !c.preJoin() {
		return
	}
	c.joined()
}

// preJoin reads requests until a Join arrives. RoomList is serviced
// inline; everything else is ignored. Returns false when the connection
// terminates before joining.
func (c *Client) preJoin() bool {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return false
		}
		if messageType != websocket.TextMessage {
			continue
		}

		req, err := wire.DecodeRequest(data)
		if err != nil {
			logging.Warn(c.ctx, "failed to decode request", zap.Error(err))
			return false
		}

		switch req := req.(type) {
		case wire.JoinRequest:
			c.room = req.Room
			c.name = req.Name
			c.ctx = context.WithValue(c.ctx, logging.RoomKey, c.room)
			c.ctx = context.WithValue(c.ctx, logging.UserKey, c.name)
			return true
		case wire.RoomListRequest:
			rooms, err := c.hub.RoomList()
			if err != nil {
				return false
			}
			if err := c.writeEvent(wire.RoomList{Rooms: rooms}); err != nil {
				return false
			}
		default:
			// Only Join and RoomList mean anything before joining.
		}
	}
}

// joined subscribes to the room, replays history, then splits into the
// push loop and the command loop.
func (c *Client) joined() {
	sub, err := c.hub.Join(c.room, c.name)
	if err != nil {
		logging.Warn(c.ctx, "join failed", zap.Error(err))
		return
	}
	defer sub.Cancel()

	// History goes out before any live frame from the new subscription.
	for _, frame := range c.hub.History(c.room) {
		if err := c.writeFrame(frame); err != nil {
			logging.Warn(c.ctx, "failed to replay history", zap.Error(err))
			c.hub.Leave(c.room, c.name)
			return
		}
	}

	logging.Info(c.ctx, "client joined room")

	go c.pushLoop(sub)
	c.commandLoop()

	c.signalClose()
	<-c.pushDone
}

// pushLoop is the sole transport writer once the client has joined. It
// multiplexes live broadcast frames and unicast mailbox replies, and
// flushes a close frame before exiting.
func (c *Client) pushLoop(sub *room.Subscription) {
	defer close(c.pushDone)
	defer func() { _ = c.conn.Close() }()

	for {
		select {
		case frame, ok := <-sub.Frames():
			if !ok {
				// Room exited underneath us.
				c.writeClose()
				return
			}
			if err := c.writeFrame(frame); err != nil {
				logging.Warn(c.ctx, "transport write failed", zap.Error(err))
				return
			}
		case frame := <-c.mailbox:
			if err := c.writeFrame(frame); err != nil {
				logging.Warn(c.ctx, "transport write failed", zap.Error(err))
				return
			}
		case <-c.closeSignal:
			// Leave has already been acknowledged by the hub, so any
			// frames the client should still see are queued. Flush them
			// before the close frame.
			c.drainPending(sub)
			c.writeClose()
			return
		}
	}
}

// drainPending writes whatever frames are already queued, without
// blocking for new ones.
func (c *Client) drainPending(sub *room.Subscription) {
	for {
		select {
		case frame, ok := <-sub.Frames():
			if !ok {
				return
			}
			if err := c.writeFrame(frame); err != nil {
				return
			}
		case frame := <-c.mailbox:
			if err := c.writeFrame(frame); err != nil {
				return
			}
		default:
			return
		}
	}
}

// commandLoop reads further requests until Leave or EOF. It never writes
// to the transport directly.
func (c *Client) commandLoop() {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			// Membership must not outlive the connection.
			c.hub.Leave(c.room, c.name)
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		req, err := wire.DecodeRequest(data)
		if err != nil {
			logging.Warn(c.ctx, "failed to decode request", zap.Error(err))
			c.hub.Leave(c.room, c.name)
			return
		}

		switch req := req.(type) {
		case wire.MessageRequest:
			c.hub.Send(req.Room, wire.NewMessage{
				Room: req.Room,
				Name: c.name,
				Text: req.Text,
				TS:   uint64(time.Now().UnixMilli()),
			})
		case wire.MembersRequest:
			members := c.hub.Members(req.Room)
			frame, err := wire.EncodeEvent(wire.MemberList{Room: req.Room, Members: members})
			if err != nil {
				logging.Error(c.ctx, "failed to encode member list", zap.Error(err))
				continue
			}
			select {
			case c.mailbox <- frame:
			case <-c.pushDone:
				// Push loop died underneath us; the membership must not
				// outlive the connection.
				c.hub.Leave(c.room, c.name)
				return
			}
		case wire.LeaveRequest:
			// Whatever room the request names, it is the connection's own
			// membership that ends here. The driver joins exactly one room,
			// so leaving any other name would strand a ghost member.
			c.hub.Leave(c.room, c.name)
			logging.Info(c.ctx, "client left room")
			return
		default:
			// Join and RoomList are ignored once joined.
		}
	}
}

// signalClose asks the push loop to flush a close frame and exit.
func (c *Client) signalClose() {
	c.closeOnce.Do(func() { close(c.closeSignal) })
}

func (c *Client) writeFrame(frame bufpool.Frame) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) writeEvent(ev wire.ServerEvent) error {
	frame, err := wire.EncodeEvent(ev)
	if err != nil {
		return err
	}
	return c.writeFrame(frame)
}

func (c *Client) writeClose() {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}
