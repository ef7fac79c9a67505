//go:build linux

package rtdumptest

import (
	"errors"
	"fmt"
	"io"

	"github.com/jsimonetti/rtnetlink"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"github.com/mdlayher/rtdump"
	"golang.org/x/sys/unix"
)

// A Func is a function that can be used to test rtdump integration. It is
// called with each request a Channel sends and returns the messages the
// fake kernel replies with.
//
// Returning io.EOF queues no reply. Returning an error created by Error
// queues an NLMSG_ERROR reply. Any other error is returned by the next
// receive.
type Func func(req netlink.Message) ([]netlink.Message, error)

// Dial sets up an rtdump.Channel over a Socket which calls fn.
func Dial(fn Func) *rtdump.Channel {
	return rtdump.NewChannel(NewSocket(fn), nil)
}

var _ rtdump.Socket = &Socket{}

// A Socket is an rtdump.Socket which answers requests with a Func instead of
// the kernel.
type Socket struct {
	// Sender is the port ID reported as the sender of every datagram. The
	// zero value is the kernel.
	Sender uint32

	// PerDatagram splits replies into datagrams of at most this many
	// messages. If zero, each reply is sent in a single datagram.
	PerDatagram int

	// Interrupt sets the dump interrupted flag on every reply message.
	Interrupt bool

	fn      Func
	pending []datagram
	closed  bool
}

type datagram struct {
	b   []byte
	err error
}

// NewSocket creates a Socket which answers requests with fn.
func NewSocket(fn Func) *Socket {
	return &Socket{fn: fn}
}

// Send implements rtdump.Socket.
func (s *Socket) Send(b []byte) error {
	if s.closed {
		return unix.EBADF
	}

	var req netlink.Message
	if err := req.UnmarshalBinary(b); err != nil {
		return err
	}

	msgs, err := s.fn(req)
	var errno errnoError
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		return nil
	case errors.As(err, &errno):
		msgs = []netlink.Message{errorMessage(req, errno)}
	default:
		s.pending = append(s.pending, datagram{err: err})
		return nil
	}

	if req.Header.Flags&netlink.Dump != 0 {
		msgs = append(msgs, netlink.Message{
			Header: netlink.Header{Type: netlink.Done},
			Data:   make([]byte, 4),
		})
	}

	s.queue(req, msgs)
	return nil
}

// queue stamps msgs as replies to req and packs them into datagrams.
func (s *Socket) queue(req netlink.Message, msgs []netlink.Message) {
	per := s.PerDatagram
	if per <= 0 {
		per = len(msgs)
	}

	for len(msgs) > 0 {
		n := per
		if n > len(msgs) {
			n = len(msgs)
		}

		var b []byte
		for _, m := range msgs[:n] {
			b = append(b, s.marshal(req, m)...)
		}

		s.pending = append(s.pending, datagram{b: b})
		msgs = msgs[n:]
	}
}

func (s *Socket) marshal(req netlink.Message, m netlink.Message) []byte {
	l := unix.NLMSG_HDRLEN + len(m.Data)
	b := make([]byte, nlmsgAlign(l))

	flags := m.Header.Flags
	if req.Header.Flags&netlink.Dump != 0 {
		flags |= netlink.Multi
	}
	if s.Interrupt {
		flags |= netlink.DumpInterrupted
	}

	nlenc.PutUint32(b[0:4], uint32(l))
	nlenc.PutUint16(b[4:6], uint16(m.Header.Type))
	nlenc.PutUint16(b[6:8], uint16(flags))
	nlenc.PutUint32(b[8:12], req.Header.Sequence)
	nlenc.PutUint32(b[12:16], req.Header.PID)
	copy(b[unix.NLMSG_HDRLEN:], m.Data)

	return b
}

// Recvmsg implements rtdump.Socket. With no reply queued it reports a zero
// length datagram, as a closed netlink socket would.
func (s *Socket) Recvmsg(b []byte, flags int) (int, uint32, error) {
	if s.closed {
		return 0, 0, unix.EBADF
	}
	if len(s.pending) == 0 {
		return 0, s.Sender, nil
	}

	d := s.pending[0]
	if flags&unix.MSG_PEEK == 0 {
		s.pending = s.pending[1:]
	}
	if d.err != nil {
		if flags&unix.MSG_PEEK != 0 {
			s.pending = s.pending[1:]
		}
		return 0, 0, d.err
	}

	n := copy(b, d.b)
	if flags&unix.MSG_TRUNC != 0 {
		n = len(d.b)
	}

	return n, s.Sender, nil
}

// Close implements rtdump.Socket.
func (s *Socket) Close() error {
	s.closed = true
	return nil
}

// Error returns an error which makes the fake kernel reply with an
// NLMSG_ERROR message carrying errno.
func Error(errno int) error {
	return errnoError(errno)
}

type errnoError int

func (e errnoError) Error() string {
	return fmt.Sprintf("rtdumptest: errno %d", int(e))
}

// errorMessage builds the kernel's error reply to req: a negated errno
// followed by the request's header.
func errorMessage(req netlink.Message, errno errnoError) netlink.Message {
	b := make([]byte, 4+unix.NLMSG_HDRLEN)
	nlenc.PutInt32(b[0:4], -int32(errno))
	nlenc.PutUint32(b[4:8], req.Header.Length)
	nlenc.PutUint16(b[8:10], uint16(req.Header.Type))
	nlenc.PutUint16(b[10:12], uint16(req.Header.Flags))
	nlenc.PutUint32(b[12:16], req.Header.Sequence)
	nlenc.PutUint32(b[16:20], req.Header.PID)

	return netlink.Message{
		Header: netlink.Header{Type: netlink.Error},
		Data:   b,
	}
}

// CheckRequest returns a Func that verifies the type and flags of a request
// before calling fn. A zero typ or flags skips that check.
func CheckRequest(typ netlink.HeaderType, flags netlink.HeaderFlags, fn Func) Func {
	return func(req netlink.Message) ([]netlink.Message, error) {
		if typ != 0 && req.Header.Type != typ {
			return nil, fmt.Errorf("rtdumptest: unexpected request type: %d, want: %d",
				req.Header.Type, typ)
		}

		if flags != 0 && req.Header.Flags != flags {
			return nil, fmt.Errorf("rtdumptest: unexpected request flags: %#x, want: %#x",
				req.Header.Flags, flags)
		}

		return fn(req)
	}
}

// Link marshals lm into an RTM_NEWLINK reply.
func Link(lm rtnetlink.LinkMessage) (netlink.Message, error) {
	return reply(unix.RTM_NEWLINK, &lm)
}

// Address marshals am into an RTM_NEWADDR reply.
func Address(am rtnetlink.AddressMessage) (netlink.Message, error) {
	return reply(unix.RTM_NEWADDR, &am)
}

// Route marshals rm into an RTM_NEWROUTE reply.
func Route(rm rtnetlink.RouteMessage) (netlink.Message, error) {
	return reply(unix.RTM_NEWROUTE, &rm)
}

type marshaler interface {
	MarshalBinary() ([]byte, error)
}

func reply(typ netlink.HeaderType, m marshaler) (netlink.Message, error) {
	b, err := m.MarshalBinary()
	if err != nil {
		return netlink.Message{}, err
	}

	return netlink.Message{
		Header: netlink.Header{Type: typ},
		Data:   b,
	}, nil
}

func nlmsgAlign(n int) int {
	return (n + unix.NLMSG_ALIGNTO - 1) & ^(unix.NLMSG_ALIGNTO - 1)
}
