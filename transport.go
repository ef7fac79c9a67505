//go:build linux

package rtdump

import (
	"errors"
	"fmt"

	"github.com/valyala/bytebufferpool"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

var (
	// buffers recycles datagram buffers between receives.
	buffers bytebufferpool.Pool

	// putBuffer returns a released buffer to buffers.
	putBuffer = buffers.Put
)

// A buffer holds exactly one datagram read from a Channel. A buffer has a
// single owner, the walk over its messages, which must release it exactly
// once.
type buffer struct {
	bb     *bytebufferpool.ByteBuffer
	put    func(*bytebufferpool.ByteBuffer)
	sender uint32
}

// newBuffer takes an n byte buffer from the pool.
func newBuffer(n int) *buffer {
	bb := buffers.Get()
	if cap(bb.B) < n {
		bb.B = make([]byte, n)
	} else {
		bb.B = bb.B[:n]
	}

	return &buffer{bb: bb, put: putBuffer}
}

// bytes returns the datagram, or nil once the buffer has been released.
func (b *buffer) bytes() []byte {
	if b.bb == nil {
		return nil
	}

	return b.bb.B
}

// release hands the buffer back. Later calls are no-ops.
func (b *buffer) release() {
	if b.bb == nil {
		return
	}

	b.put(b.bb)
	b.bb = nil
}

// receive reads one datagram in two phases: a peek which reports the
// datagram's full size without consuming it, then a read into a buffer of
// exactly that size.
func (c *Channel) receive() (*buffer, error) {
	n, _, err := c.recvmsg(nil, unix.MSG_PEEK|unix.MSG_TRUNC)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrEndOfStream
	}

	b := newBuffer(n)

	read, from, err := c.recvmsg(b.bytes(), 0)
	if err != nil {
		b.release()
		return nil, err
	}
	if read != n {
		b.release()
		return nil, newOpError("receive", ErrReceive,
			fmt.Errorf("%w: read %d of %d bytes", ErrShortRead, read, n))
	}

	b.sender = from
	return b, nil
}

// recvmsg calls Recvmsg on the socket until it completes without being
// interrupted and without reporting that it would block.
func (c *Channel) recvmsg(b []byte, flags int) (int, uint32, error) {
	for {
		n, from, err := c.s.Recvmsg(b, flags)
		if err == nil {
			return n, from, nil
		}

		if !errors.Is(err, unix.EINTR) && !errors.Is(err, unix.EAGAIN) {
			return 0, 0, newOpError("receive", ErrReceive, err)
		}

		c.log.Debug("retrying netlink receive", zap.Int("flags", flags), zap.Error(err))
	}
}
