//go:build linux

package rtdump

import (
	"os"
	"time"

	"go.uber.org/zap"
)

// A Socket is the kernel-facing endpoint used by a Channel. It is implemented
// by the NETLINK_ROUTE socket opened by Open, and may be swapped out for
// testing, as package rtdumptest does.
type Socket interface {
	// Send transmits one datagram to the kernel.
	Send(b []byte) error

	// Recvmsg reads one datagram into b, honoring MSG_PEEK and MSG_TRUNC in
	// flags the way recvmsg(2) does on a netlink socket, and reports the
	// sender's port ID. A zero-length b with MSG_TRUNC reports the size of
	// the pending datagram without consuming it.
	Recvmsg(b []byte, flags int) (n int, from uint32, err error)

	// Close releases the socket.
	Close() error
}

// Config contains options for a Channel.
type Config struct {
	// PID is the port ID the socket is bound to. If zero, the process ID
	// of the caller is used.
	PID uint32

	// Logger receives debug output about skipped messages and retried reads.
	// If nil, logging is disabled.
	Logger *zap.Logger
}

// A Channel is a bound rtnetlink socket used to issue dump requests and
// receive their responses. A Channel is not safe for concurrent use.
type Channel struct {
	s   Socket
	pid uint32
	log *zap.Logger

	// now feeds request sequence numbers.
	now func() time.Time

	// unfinished is set while an interrupted dump still has replies queued.
	unfinished bool
}

// Open opens a NETLINK_ROUTE socket and binds it to the port ID in cfg, or
// to the caller's process ID if cfg is nil or its PID is zero.
//
// The returned error matches ErrChannelOpen if the socket could not be
// created, or ErrChannelBind if it could not be bound.
func Open(cfg *Config) (*Channel, error) {
	pid := processPID(cfg)

	s, err := openSocket(pid)
	if err != nil {
		return nil, err
	}

	c := NewChannel(s, cfg)
	c.pid = pid
	return c, nil
}

// NewChannel creates a Channel which sends and receives through s. The caller
// is responsible for binding s; Close closes it.
func NewChannel(s Socket, cfg *Config) *Channel {
	log := zap.NewNop()
	if cfg != nil && cfg.Logger != nil {
		log = cfg.Logger
	}

	return &Channel{
		s:   s,
		pid: processPID(cfg),
		log: log,
		now: time.Now,
	}
}

// Close closes the Channel's socket. Closing a Channel is the only way to
// abandon a dump in progress.
func (c *Channel) Close() error {
	return c.s.Close()
}

// PID returns the port ID the Channel identifies itself with.
func (c *Channel) PID() uint32 {
	return c.pid
}

func processPID(cfg *Config) uint32 {
	if cfg != nil && cfg.PID != 0 {
		return cfg.PID
	}

	return uint32(os.Getpid())
}
