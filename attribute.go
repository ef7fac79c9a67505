//go:build linux

package rtdump

import (
	"bytes"
	"fmt"
	"net"
	"net/netip"

	"github.com/mdlayher/netlink"
	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

const (
	attrHeaderLen = unix.SizeofRtAttr

	// attrTypeMask clears the nested and byte order flags from a type.
	attrTypeMask = ^(netlink.Nested | netlink.NetByteOrder)
)

// rtaAlign rounds n up to the route attribute alignment.
func rtaAlign(n int) int {
	return (n + unix.RTA_ALIGNTO - 1) & ^(unix.RTA_ALIGNTO - 1)
}

// An AttributeTable maps attribute types to the values found in one message.
// Values alias the message and are only valid as long as it is.
type AttributeTable struct {
	// A nil entry marks a type which was not present.
	attrs [][]byte
}

// IndexAttributes walks b as a stream of route attributes and records the
// value of every attribute whose type is at most max. Attributes of larger
// types are ignored. When a type repeats, the last value wins.
//
// Trailing bytes too short to hold an attribute header are ignored. An
// attribute whose length is too small to cover its own header, or which runs
// past the end of b, fails with ErrMalformedAttributes.
func IndexAttributes(b []byte, max uint16) (*AttributeTable, error) {
	t := &AttributeTable{attrs: make([][]byte, int(max)+1)}

	for len(b) >= attrHeaderLen {
		l := int(nlenc.Uint16(b[0:2]))
		typ := nlenc.Uint16(b[2:4]) & attrTypeMask

		if l < attrHeaderLen || rtaAlign(l) > len(b) {
			return nil, fmt.Errorf("%w: attribute type %d length %d with %d bytes remaining",
				ErrMalformedAttributes, typ, l, len(b))
		}

		if typ <= max {
			t.attrs[typ] = b[attrHeaderLen:l:l]
		}

		b = b[rtaAlign(l):]
	}

	return t, nil
}

// Bytes returns the raw value of the attribute typ, and whether it was
// present.
func (t *AttributeTable) Bytes(typ uint16) ([]byte, bool) {
	if int(typ) >= len(t.attrs) || t.attrs[typ] == nil {
		return nil, false
	}

	return t.attrs[typ], true
}

// Uint32 decodes the first four bytes of the attribute typ as a native
// endian integer.
func (t *AttributeTable) Uint32(typ uint16) (uint32, bool, error) {
	b, ok := t.Bytes(typ)
	if !ok {
		return 0, false, nil
	}
	if err := checkLen(typ, b, 4); err != nil {
		return 0, true, err
	}

	return nlenc.Uint32(b[:4]), true, nil
}

// String returns the attribute typ as a string, up to its first NUL byte.
func (t *AttributeTable) String(typ uint16) (string, bool) {
	b, ok := t.Bytes(typ)
	if !ok {
		return "", false
	}

	if i := bytes.IndexByte(b, 0); i != -1 {
		b = b[:i]
	}

	return string(b), true
}

// HardwareAddr formats the first six bytes of the attribute typ as a
// colon-separated, lower case MAC address.
func (t *AttributeTable) HardwareAddr(typ uint16) (string, bool, error) {
	b, ok := t.Bytes(typ)
	if !ok {
		return "", false, nil
	}
	if err := checkLen(typ, b, 6); err != nil {
		return "", true, err
	}

	return net.HardwareAddr(b[:6]).String(), true, nil
}

// IP formats the attribute typ as an IP address of the given family, which
// must be AF_INET or AF_INET6. The value must be exactly the size of the
// family's binary address, or ErrAddressFormat is returned.
func (t *AttributeTable) IP(family uint8, typ uint16) (string, bool, error) {
	b, ok := t.Bytes(typ)
	if !ok {
		return "", false, nil
	}

	var size int
	switch family {
	case unix.AF_INET:
		size = net.IPv4len
	case unix.AF_INET6:
		size = net.IPv6len
	default:
		return "", true, fmt.Errorf("%w: attribute type %d has unknown family %d",
			ErrAddressFormat, typ, family)
	}

	if len(b) != size {
		return "", true, fmt.Errorf("%w: attribute type %d has %d bytes for family %d",
			ErrAddressFormat, typ, len(b), family)
	}

	ip, _ := netip.AddrFromSlice(b)
	return ip.String(), true, nil
}

func checkLen(typ uint16, b []byte, need int) error {
	if len(b) < need {
		return fmt.Errorf("%w: attribute type %d has %d bytes, need %d",
			ErrAttributeTooShort, typ, len(b), need)
	}

	return nil
}
