//go:build linux

package rtdump

import (
	"fmt"

	"github.com/mdlayher/netlink"
)

// splitMessage checks that e is one of types and splits its payload into a
// fixed header of size bytes and the attributes which follow it.
func splitMessage(e Envelope, size int, types ...netlink.HeaderType) ([]byte, []byte, error) {
	if !isType(e.Header.Type, types) {
		return nil, nil, fmt.Errorf("%w: %d", ErrUnexpectedMessage, e.Header.Type)
	}

	// The remaining length goes negative when the declared message length
	// cannot hold the fixed header.
	if rest := len(e.Data) - size; rest < 0 {
		return nil, nil, fmt.Errorf("%w: type %d has %d payload bytes, need %d",
			ErrTruncatedMessage, e.Header.Type, len(e.Data), size)
	}

	off := nlmsgAlign(size)
	if off > len(e.Data) {
		off = len(e.Data)
	}

	return e.Data[:size], e.Data[off:], nil
}

func isType(t netlink.HeaderType, types []netlink.HeaderType) bool {
	for _, tt := range types {
		if t == tt {
			return true
		}
	}

	return false
}
