// Package bufpool provides the shared byte-buffer pool used to serialize a
// server event once and fan the resulting frame out to many subscribers.
package bufpool

import (
	"slices"

	"github.com/valyala/bytebufferpool"
)

// Frame is an immutable, cheaply shareable byte sequence carrying a single
// encoded server event. Holders must never mutate it; sharing a Frame is a
// slice-header copy, so history rings and subscriber channels can all hold
// the same bytes.
type Frame []byte

// Clone returns a Frame sharing the same backing bytes.
func (f Frame) Clone() Frame {
	return f
}

// String returns the frame contents as text. Frames carry UTF-8 JSON.
func (f Frame) String() string {
	return string(f)
}

// Pool hands out recyclable buffers backed by a size-bucketed free list.
type Pool struct {
	inner bytebufferpool.Pool
}

var global Pool

// Global returns the process-wide pool.
func Global() *Pool {
	return &global
}

// Alloc returns a cleared buffer with capacity for at least minCapacity
// bytes. The buffer must be finished with Freeze or Discard.
func (p *Pool) Alloc(minCapacity int) *MutableBuffer {
	bb := p.inner.Get()
	bb.Reset()
	if cap(bb.B) < minCapacity {
		bb.B = slices.Grow(bb.B, minCapacity)
	}
	return &MutableBuffer{bb: bb, pool: p}
}

// MutableBuffer is a writable buffer drawn from a Pool. It is not safe for
// concurrent use; exactly one of Freeze or Discard must be called.
type MutableBuffer struct {
	bb   *bytebufferpool.ByteBuffer
	pool *Pool
}

// Write appends p to the buffer, implementing io.Writer so encoders can
// serialize directly into pooled storage.
func (b *MutableBuffer) Write(p []byte) (int, error) {
	return b.bb.Write(p)
}

// Len returns the number of bytes written so far.
func (b *MutableBuffer) Len() int {
	return b.bb.Len()
}

// Bytes returns the bytes written so far. The slice is invalidated by
// Freeze and Discard.
func (b *MutableBuffer) Bytes() []byte {
	return b.bb.B
}

// Truncate shrinks the buffer to n bytes.
func (b *MutableBuffer) Truncate(n int) {
	if n >= 0 && n < len(b.bb.B) {
		b.bb.B = b.bb.B[:n]
	}
}

// Freeze converts the buffer contents into an immutable Frame and recycles
// the backing storage. The buffer must not be used afterwards.
func (b *MutableBuffer) Freeze() Frame {
	frame := Frame(append([]byte(nil), b.bb.B...))
	b.release()
	return frame
}

// Discard recycles the buffer without producing a frame.
func (b *MutableBuffer) Discard() {
	b.release()
}

func (b *MutableBuffer) release() {
	if b.bb == nil {
		return
	}
	b.pool.inner.Put(b.bb)
	b.bb = nil
}
