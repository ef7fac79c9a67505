package rtdump

import (
	"errors"
	"fmt"
	"syscall"
)

// Errors which may be returned while opening a Channel or receiving from it.
var (
	ErrChannelOpen = errors.New("rtdump: failed to open netlink socket")
	ErrChannelBind = errors.New("rtdump: failed to bind netlink socket")
	ErrReceive     = errors.New("rtdump: failed to receive from netlink socket")
	ErrShortRead   = errors.New("rtdump: datagram shorter than its peeked size")
	ErrEndOfStream = errors.New("rtdump: end of stream on netlink socket")
)

// Errors which may be returned while walking a dump response.
var (
	ErrDumpInterrupted  = errors.New("rtdump: dump interrupted by the kernel")
	ErrMalformedMessage = errors.New("rtdump: malformed netlink message stream")
)

// Errors which may be returned while decoding a single message.
var (
	ErrTruncatedMessage    = errors.New("rtdump: message shorter than its fixed header")
	ErrMalformedAttributes = errors.New("rtdump: malformed attribute stream")
	ErrAttributeTooShort   = errors.New("rtdump: attribute value too short")
	ErrAddressFormat       = errors.New("rtdump: address length does not match family")
	ErrUnexpectedMessage   = errors.New("rtdump: unexpected message type")
	ErrUnsupportedFamily   = errors.New("rtdump: unsupported address family")
)

// An OpError is an error produced by a system call on a Channel's socket.
type OpError struct {
	// Op is the operation which produced the error, such as "receive".
	Op string

	// Err is the underlying error. It matches one of the ErrChannel* or
	// ErrReceive sentinels with errors.Is, and the system call error with
	// errors.As.
	Err error
}

func newOpError(op string, sentinel, err error) *OpError {
	if err == nil {
		return &OpError{Op: op, Err: sentinel}
	}

	return &OpError{Op: op, Err: &wrapped{sentinel: sentinel, err: err}}
}

// Error implements error.
func (e *OpError) Error() string {
	if e == nil {
		return "<nil>"
	}

	return fmt.Sprintf("rtdump %s: %v", e.Op, e.Err)
}

// Unwrap unwraps the internal Err field for use with errors.Unwrap.
func (e *OpError) Unwrap() error { return e.Err }

// wrapped pairs a package sentinel with the error that caused it so both
// match with errors.Is.
type wrapped struct {
	sentinel error
	err      error
}

func (w *wrapped) Error() string   { return fmt.Sprintf("%v: %v", w.sentinel, w.err) }
func (w *wrapped) Unwrap() []error { return []error{w.sentinel, w.err} }

// A KernelError is returned when the kernel replies to a dump request with
// an NLMSG_ERROR message instead of data.
type KernelError struct {
	// Errno is the error number reported by the kernel, or 0 when the
	// message was too short to carry one.
	Errno int32

	// Message is a copy of the error message's payload.
	Message []byte
}

// Error implements error.
func (e *KernelError) Error() string {
	if e.Errno == 0 {
		return "rtdump: kernel reported an error"
	}

	return fmt.Sprintf("rtdump: kernel reported error: %v", syscall.Errno(e.Errno))
}

// Unwrap returns the reported error number as a syscall.Errno, so kernel
// errors match values such as os.ErrPermission with errors.Is.
func (e *KernelError) Unwrap() error {
	if e.Errno == 0 {
		return nil
	}

	return syscall.Errno(e.Errno)
}
