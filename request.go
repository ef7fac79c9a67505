//go:build linux

package rtdump

import (
	"fmt"

	"github.com/mdlayher/netlink"
	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

// SendLinkDumpRequest asks the kernel for every network interface.
func (c *Channel) SendLinkDumpRequest() error {
	return c.sendDump(unix.RTM_GETLINK, unix.SizeofIfInfomsg, unix.AF_UNSPEC)
}

// SendAddressDumpRequest asks the kernel for every address of the given
// family: AF_INET, AF_INET6, or AF_UNSPEC for both.
func (c *Channel) SendAddressDumpRequest(family uint8) error {
	if err := checkFamily(family); err != nil {
		return err
	}

	return c.sendDump(unix.RTM_GETADDR, unix.SizeofIfAddrmsg, family)
}

// SendRouteDumpRequest asks the kernel for every route of the given family:
// AF_INET, AF_INET6, or AF_UNSPEC for both.
func (c *Channel) SendRouteDumpRequest(family uint8) error {
	if err := checkFamily(family); err != nil {
		return err
	}

	return c.sendDump(unix.RTM_GETROUTE, unix.SizeofRtMsg, family)
}

// ReceiveLinkDumpResponse receives one datagram of a link dump and passes
// each of its messages to h. Call it until the returned Status is terminal.
func (c *Channel) ReceiveLinkDumpResponse(h EnvelopeHandler) (Status, error) {
	return c.receiveDump(h)
}

// ReceiveAddressDumpResponse receives one datagram of an address dump and
// passes each of its messages to h. Call it until the returned Status is
// terminal.
func (c *Channel) ReceiveAddressDumpResponse(h EnvelopeHandler) (Status, error) {
	return c.receiveDump(h)
}

// ReceiveRouteDumpResponse receives one datagram of a route dump and passes
// each of its messages to h. Call it until the returned Status is terminal.
func (c *Channel) ReceiveRouteDumpResponse(h EnvelopeHandler) (Status, error) {
	return c.receiveDump(h)
}

// DiscardDump receives and drops what remains of a dump which the kernel
// interrupted, up to and including its final NLMSG_DONE or NLMSG_ERROR
// message. The kernel keeps sending an interrupted dump to its end, so after
// a receive reports StatusInterrupted, DiscardDump must be called before the
// next request. It returns immediately if nothing remains.
func (c *Channel) DiscardDump() error {
	for c.unfinished {
		b, err := c.receive()
		if err != nil {
			return err
		}

		end, err := c.discard(b)
		if err != nil {
			return err
		}

		c.unfinished = !end
	}

	return nil
}

func (c *Channel) discard(b *buffer) (bool, error) {
	defer b.release()

	c.log.Debug("discarding rest of interrupted dump", zap.Int("bytes", len(b.bytes())))
	return endsDump(b.bytes(), b.sender)
}

func (c *Channel) receiveDump(h EnvelopeHandler) (Status, error) {
	b, err := c.receive()
	if err != nil {
		return StatusStreaming, err
	}

	return c.walk(b, h)
}

func (c *Channel) sendDump(typ netlink.HeaderType, size int, family uint8) error {
	b, err := c.dumpRequest(typ, size, family).MarshalBinary()
	if err != nil {
		return err
	}

	if err := c.s.Send(b); err != nil {
		return &OpError{Op: "send", Err: err}
	}

	return nil
}

// dumpRequest builds a dump request of type typ. Its body is a zeroed fixed
// header of size bytes which carries family in its first byte, the family
// field of ifinfomsg, ifaddrmsg, and rtmsg alike.
func (c *Channel) dumpRequest(typ netlink.HeaderType, size int, family uint8) netlink.Message {
	body := make([]byte, size)
	body[0] = family

	return netlink.Message{
		Header: netlink.Header{
			Length:   uint32(headerLen + size),
			Type:     typ,
			Flags:    netlink.Request | netlink.Dump,
			Sequence: uint32(c.now().Unix()),
			PID:      c.pid,
		},
		Data: body,
	}
}

func checkFamily(family uint8) error {
	switch family {
	case unix.AF_UNSPEC, unix.AF_INET, unix.AF_INET6:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedFamily, family)
	}
}
