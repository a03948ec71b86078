package transport

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// MockConnection implements wsConnection
type MockConnection struct {
	ReadMessageFunc  func() (int, []byte, error)
	WriteMessageFunc func(int, []byte) error
	CloseFunc        func() error
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	if m.ReadMessageFunc != nil {
		return m.ReadMessageFunc()
	}
	return 0, nil, nil
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	if m.WriteMessageFunc != nil {
		return m.WriteMessageFunc(messageType, data)
	}
	return nil
}

func (m *MockConnection) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockConnection) SetWriteDeadline(_ time.Time) error {
	return nil
}

// scriptedConn feeds a fixed sequence of inbound text frames to a driver
// and records everything written back. Closing the connection unblocks a
// pending ReadMessage, matching gorilla's behavior.
type scriptedConn struct {
	mu     sync.Mutex
	reads  chan []byte
	writes []writtenFrame
	closed chan struct{}
	once   sync.Once
}

type writtenFrame struct {
	messageType int
	data        []byte
}

func newScriptedConn(frames ...string) *scriptedConn {
	c := &scriptedConn{
		reads:  make(chan []byte, len(frames)+16),
		closed: make(chan struct{}),
	}
	for _, f := range frames {
		c.reads <- []byte(f)
	}
	return c
}

// finishReads makes ReadMessage return io.EOF once the scripted frames
// are exhausted.
func (c *scriptedConn) finishReads() {
	close(c.reads)
}

func (c *scriptedConn) ReadMessage() (int, []byte, error) {
	select {
	case data, ok := <-c.reads:
		if !ok {
			return 0, nil, io.EOF
		}
		return websocket.TextMessage, data, nil
	case <-c.closed:
		return 0, nil, net.ErrClosed
	}
}

func (c *scriptedConn) WriteMessage(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clone := make([]byte, len(data))
	copy(clone, data)
	c.writes = append(c.writes, writtenFrame{messageType: messageType, data: clone})
	return nil
}

func (c *scriptedConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *scriptedConn) SetWriteDeadline(_ time.Time) error {
	return nil
}

// textFrames returns the payloads of all text frames written so far.
func (c *scriptedConn) textFrames() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out [][]byte
	for _, w := range c.writes {
		if w.messageType == websocket.TextMessage {
			out = append(out, w.data)
		}
	}
	return out
}

// closeFrames returns how many close frames were written.
func (c *scriptedConn) closeFrames() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.writes {
		if w.messageType == websocket.CloseMessage {
			n++
		}
	}
	return n
}
