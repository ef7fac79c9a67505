//go:build linux

package rtdump

import (
	"fmt"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// An Envelope is one netlink message within a received datagram. Data aliases
// the datagram's buffer and is only valid until the handler it was passed to
// returns.
type Envelope struct {
	Header netlink.Header
	Data   []byte
}

// An EnvelopeHandler is called once for each data message in a dump
// response, in the order the kernel sent them.
type EnvelopeHandler interface {
	HandleEnvelope(e Envelope) error
}

// EnvelopeHandlerFunc adapts a function to an EnvelopeHandler.
type EnvelopeHandlerFunc func(e Envelope) error

// HandleEnvelope calls fn(e).
func (fn EnvelopeHandlerFunc) HandleEnvelope(e Envelope) error { return fn(e) }

// A Status is the state a walk over a datagram ended in.
type Status int

// Possible Status values. StatusStreaming means the datagram was exhausted
// and the dump continues in the next datagram; the rest are terminal.
const (
	StatusStreaming Status = iota
	StatusDone
	StatusInterrupted
	StatusKernelError
)

func (s Status) String() string {
	switch s {
	case StatusStreaming:
		return "streaming"
	case StatusDone:
		return "done"
	case StatusInterrupted:
		return "interrupted"
	case StatusKernelError:
		return "kernel error"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Terminal reports whether no more messages belong to the dump.
func (s Status) Terminal() bool {
	return s != StatusStreaming
}

const headerLen = unix.NLMSG_HDRLEN

// nlmsgAlign rounds n up to the netlink message alignment.
func nlmsgAlign(n int) int {
	return (n + unix.NLMSG_ALIGNTO - 1) & ^(unix.NLMSG_ALIGNTO - 1)
}

// Walk walks b as a sequence of netlink messages received from the port ID
// sender and passes each data message to h.
//
// Messages from any sender other than the kernel (port ID 0) are skipped.
// The walk stops at the end of b with StatusStreaming, at an NLMSG_DONE
// message with StatusDone, at a message flagged as interrupted with
// StatusInterrupted and ErrDumpInterrupted, or at an NLMSG_ERROR message
// with StatusKernelError and a *KernelError. Trailing bytes too short to hold
// a message header are ignored. A message whose length runs past the end of
// b stops the walk with ErrMalformedMessage, and an error from h stops the
// walk and is returned as is.
func Walk(b []byte, sender uint32, h EnvelopeHandler) (Status, error) {
	return walk(b, sender, h, zap.NewNop())
}

// walk consumes b's datagram and releases it, whatever the outcome. If the
// dump was interrupted before the datagram carrying its end, the Channel
// remembers that the rest of the dump is still queued.
func (c *Channel) walk(b *buffer, h EnvelopeHandler) (Status, error) {
	defer b.release()

	status, err := walk(b.bytes(), b.sender, h, c.log)
	if status == StatusInterrupted {
		end, eerr := endsDump(b.bytes(), b.sender)
		c.unfinished = !end && eerr == nil
	}

	return status, err
}

func walk(b []byte, sender uint32, h EnvelopeHandler, log *zap.Logger) (Status, error) {
	for len(b) >= headerLen {
		e, rest, err := nextEnvelope(b)
		if err != nil {
			return StatusStreaming, err
		}
		b = rest
		hdr := e.Header

		if sender != 0 {
			log.Debug("skipping message from non-kernel sender",
				zap.Uint32("sender", sender), zap.Uint16("type", uint16(hdr.Type)))
			continue
		}

		if hdr.Flags&netlink.DumpInterrupted != 0 {
			return StatusInterrupted, ErrDumpInterrupted
		}

		switch hdr.Type {
		case netlink.Error:
			return StatusKernelError, newKernelError(e.Data)
		case netlink.Done:
			return StatusDone, nil
		}

		if hdr.Type < unix.NLMSG_MIN_TYPE {
			log.Debug("skipping netlink control message", zap.Uint16("type", uint16(hdr.Type)))
			continue
		}

		if err := h.HandleEnvelope(e); err != nil {
			return StatusStreaming, err
		}
	}

	return StatusStreaming, nil
}

// nextEnvelope splits the message at the start of b from the messages which
// follow it. b must hold at least a message header.
func nextEnvelope(b []byte) (Envelope, []byte, error) {
	hdr := netlink.Header{
		Length:   nlenc.Uint32(b[0:4]),
		Type:     netlink.HeaderType(nlenc.Uint16(b[4:6])),
		Flags:    netlink.HeaderFlags(nlenc.Uint16(b[6:8])),
		Sequence: nlenc.Uint32(b[8:12]),
		PID:      nlenc.Uint32(b[12:16]),
	}

	l := int(hdr.Length)
	if l < headerLen || nlmsgAlign(l) > len(b) {
		return Envelope{}, nil, fmt.Errorf("%w: message length %d with %d bytes remaining",
			ErrMalformedMessage, hdr.Length, len(b))
	}

	e := Envelope{
		Header: hdr,
		Data:   b[headerLen:l:l],
	}

	return e, b[nlmsgAlign(l):], nil
}

// endsDump reports whether b, a datagram from sender, carries the kernel's
// final NLMSG_DONE or NLMSG_ERROR message for a dump. Flags are ignored, so
// the end of an interrupted dump is found too.
func endsDump(b []byte, sender uint32) (bool, error) {
	if sender != 0 {
		return false, nil
	}

	for len(b) >= headerLen {
		e, rest, err := nextEnvelope(b)
		if err != nil {
			return false, err
		}

		switch e.Header.Type {
		case netlink.Done, netlink.Error:
			return true, nil
		}

		b = rest
	}

	return false, nil
}

// newKernelError copies an NLMSG_ERROR payload, which starts with a negated
// errno.
func newKernelError(b []byte) *KernelError {
	ke := &KernelError{Message: append([]byte(nil), b...)}
	if len(b) >= 4 {
		ke.Errno = -nlenc.Int32(b[0:4])
	}

	return ke
}
