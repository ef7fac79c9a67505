//go:build linux

package rtdump

import (
	"os"

	"golang.org/x/sys/unix"
)

var _ Socket = &sysSocket{}

// A sysSocket is a Socket backed by a NETLINK_ROUTE file descriptor.
type sysSocket struct {
	fd int
}

// openSocket creates a NETLINK_ROUTE socket bound to pid. The descriptor is
// closed again if binding fails.
func openSocket(pid uint32) (*sysSocket, error) {
	fd, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_RAW|unix.SOCK_CLOEXEC, unix.NETLINK_ROUTE)
	if err != nil {
		return nil, newOpError("open", ErrChannelOpen, os.NewSyscallError("socket", err))
	}

	sa := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Pid:    pid,
	}

	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, newOpError("bind", ErrChannelBind, os.NewSyscallError("bind", err))
	}

	return &sysSocket{fd: fd}, nil
}

func (s *sysSocket) Send(b []byte) error {
	// Port ID 0 addresses the kernel.
	sa := &unix.SockaddrNetlink{Family: unix.AF_NETLINK}
	return os.NewSyscallError("sendto", unix.Sendto(s.fd, b, 0, sa))
}

func (s *sysSocket) Recvmsg(b []byte, flags int) (int, uint32, error) {
	n, _, _, from, err := unix.Recvmsg(s.fd, b, nil, flags)
	if err != nil {
		return 0, 0, err
	}

	var pid uint32
	if sa, ok := from.(*unix.SockaddrNetlink); ok {
		pid = sa.Pid
	}

	return n, pid, nil
}

func (s *sysSocket) Close() error {
	return os.NewSyscallError("close", unix.Close(s.fd))
}
