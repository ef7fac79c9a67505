//go:build linux

package rtdump_test

import (
	"errors"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mdlayher/netlink"
	"github.com/mdlayher/rtdump"
	"golang.org/x/sys/unix"
)

func TestIndexAttributesAccessors(t *testing.T) {
	var (
		mac = []byte{0x02, 0x42, 0xac, 0x11, 0x00, 0x02}
		ip6 = net.ParseIP("2001:db8::1")
	)

	ae := netlink.NewAttributeEncoder()
	ae.Bytes(1, mac)
	ae.Uint32(3, 0xdeadbeef)
	ae.Bytes(7, ip6)

	table := indexAttributes(t, ae, 10)

	b, ok := table.Bytes(1)
	if !ok {
		t.Fatal("expected attribute 1 to be present")
	}
	if diff := cmp.Diff(mac, b); diff != "" {
		t.Fatalf("unexpected attribute 1 bytes (-want +got):\n%s", diff)
	}

	hw, _, err := table.HardwareAddr(1)
	if err != nil {
		t.Fatalf("failed to format hardware address: %v", err)
	}
	if want, got := "02:42:ac:11:00:02", hw; want != got {
		t.Fatalf("unexpected hardware address:\n- want: %q\n-  got: %q", want, got)
	}

	v, ok, err := table.Uint32(3)
	if err != nil || !ok {
		t.Fatalf("failed to decode attribute 3: %v, present: %v", err, ok)
	}
	if want, got := uint32(0xdeadbeef), v; want != got {
		t.Fatalf("unexpected attribute 3 value:\n- want: %#x\n-  got: %#x", want, got)
	}

	ip, ok, err := table.IP(unix.AF_INET6, 7)
	if err != nil || !ok {
		t.Fatalf("failed to format attribute 7: %v, present: %v", err, ok)
	}
	if want, got := "2001:db8::1", ip; want != got {
		t.Fatalf("unexpected IPv6 address:\n- want: %q\n-  got: %q", want, got)
	}

	// Attribute 5 was never encoded.
	if _, ok := table.Bytes(5); ok {
		t.Fatal("attribute 5 unexpectedly present as bytes")
	}
	if _, ok, err := table.Uint32(5); ok || err != nil {
		t.Fatalf("attribute 5 unexpectedly present as uint32: %v", err)
	}
	if _, ok, err := table.HardwareAddr(5); ok || err != nil {
		t.Fatalf("attribute 5 unexpectedly present as hardware address: %v", err)
	}
	if _, ok, err := table.IP(unix.AF_INET, 5); ok || err != nil {
		t.Fatalf("attribute 5 unexpectedly present as IP address: %v", err)
	}
	if _, ok := table.String(5); ok {
		t.Fatal("attribute 5 unexpectedly present as string")
	}

	// Types beyond the table are absent rather than out of range.
	if _, ok := table.Bytes(100); ok {
		t.Fatal("attribute 100 unexpectedly present")
	}
}

func TestAttributeTableIP(t *testing.T) {
	tests := []struct {
		name   string
		family uint8
		b      []byte
		s      string
		err    error
	}{
		{
			name:   "IPv4",
			family: unix.AF_INET,
			b:      []byte{127, 0, 0, 1},
			s:      "127.0.0.1",
		},
		{
			name:   "IPv4 short",
			family: unix.AF_INET,
			b:      []byte{127, 0, 0},
			err:    rtdump.ErrAddressFormat,
		},
		{
			name:   "IPv4 given IPv6 length",
			family: unix.AF_INET,
			b:      net.ParseIP("::1"),
			err:    rtdump.ErrAddressFormat,
		},
		{
			name:   "IPv6",
			family: unix.AF_INET6,
			b:      net.ParseIP("fe80::42:acff:fe11:2"),
			s:      "fe80::42:acff:fe11:2",
		},
		{
			name:   "IPv6 given IPv4 length",
			family: unix.AF_INET6,
			b:      []byte{192, 0, 2, 1},
			err:    rtdump.ErrAddressFormat,
		},
		{
			name:   "unknown family",
			family: unix.AF_PACKET,
			b:      []byte{192, 0, 2, 1},
			err:    rtdump.ErrAddressFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ae := netlink.NewAttributeEncoder()
			ae.Bytes(1, tt.b)

			s, ok, err := indexAttributes(t, ae, 1).IP(tt.family, 1)
			if !ok {
				t.Fatal("expected attribute to be present")
			}

			if want, got := tt.err, err; !errors.Is(got, want) {
				t.Fatalf("unexpected error:\n- want: %v\n-  got: %v", want, got)
			}

			if want, got := tt.s, s; want != got {
				t.Fatalf("unexpected address:\n- want: %q\n-  got: %q", want, got)
			}
		})
	}
}

func TestAttributeTableTooShort(t *testing.T) {
	ae := netlink.NewAttributeEncoder()
	ae.Bytes(1, []byte{0x02, 0x42, 0xac, 0x11})
	ae.Uint16(2, 1)

	table := indexAttributes(t, ae, 2)

	if _, ok, err := table.HardwareAddr(1); !ok || !errors.Is(err, rtdump.ErrAttributeTooShort) {
		t.Fatalf("expected too short hardware address, but got: %v, present: %v", err, ok)
	}

	if _, ok, err := table.Uint32(2); !ok || !errors.Is(err, rtdump.ErrAttributeTooShort) {
		t.Fatalf("expected too short integer, but got: %v, present: %v", err, ok)
	}
}

func TestAttributeTableString(t *testing.T) {
	ae := netlink.NewAttributeEncoder()
	// Encoded with a trailing NUL, as the kernel does for names.
	ae.String(unix.IFLA_IFNAME, "eth0")
	ae.Bytes(unix.IFLA_QDISC, []byte("noqueue"))

	table := indexAttributes(t, ae, unix.IFLA_QDISC)

	for typ, want := range map[uint16]string{
		unix.IFLA_IFNAME: "eth0",
		unix.IFLA_QDISC:  "noqueue",
	} {
		got, ok := table.String(typ)
		if !ok {
			t.Fatalf("expected attribute %d to be present", typ)
		}
		if want != got {
			t.Fatalf("unexpected string for attribute %d:\n- want: %q\n-  got: %q", typ, want, got)
		}
	}
}

func TestIndexAttributesDuplicateLastWins(t *testing.T) {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(unix.RTA_OIF, 1)
	ae.Uint32(unix.RTA_PRIORITY, 100)
	ae.Uint32(unix.RTA_OIF, 2)

	v, _, err := indexAttributes(t, ae, unix.RTA_PRIORITY).Uint32(unix.RTA_OIF)
	if err != nil {
		t.Fatalf("failed to decode attribute: %v", err)
	}

	if want, got := uint32(2), v; want != got {
		t.Fatalf("unexpected value for repeated attribute:\n- want: %d\n-  got: %d", want, got)
	}
}

func TestIndexAttributesIgnoresTypesAboveMax(t *testing.T) {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(2, 2)
	ae.Uint32(9, 9)
	ae.Uint32(4, 4)

	table := indexAttributes(t, ae, 4)

	for _, typ := range []uint16{2, 4} {
		if _, ok := table.Bytes(typ); !ok {
			t.Fatalf("expected attribute %d to be present", typ)
		}
	}

	if _, ok := table.Bytes(9); ok {
		t.Fatal("attribute above maximum unexpectedly present")
	}
}

func TestIndexAttributesMasksFlags(t *testing.T) {
	ae := netlink.NewAttributeEncoder()
	ae.Nested(unix.IFLA_PROP_LIST, func(nae *netlink.AttributeEncoder) error {
		nae.String(unix.IFLA_ALT_IFNAME, "enp0s31f6")
		return nil
	})

	table := indexAttributes(t, ae, unix.IFLA_PROP_LIST)
	if _, ok := table.Bytes(unix.IFLA_PROP_LIST); !ok {
		t.Fatal("expected nested attribute to be indexed by its type without flags")
	}
}

func TestIndexAttributesZeroLengthValue(t *testing.T) {
	ae := netlink.NewAttributeEncoder()
	ae.Flag(1, true)

	b, ok := indexAttributes(t, ae, 1).Bytes(1)
	if !ok {
		t.Fatal("expected empty attribute to be present")
	}

	if want, got := 0, len(b); want != got {
		t.Fatalf("unexpected value length:\n- want: %d\n-  got: %d", want, got)
	}
}

func TestIndexAttributesMalformed(t *testing.T) {
	tests := []struct {
		name string
		b    []byte
		ok   bool
	}{
		{
			name: "empty",
			ok:   true,
		},
		{
			name: "trailing slack",
			b:    append(attr(1, []byte{1, 2, 3, 4}), 0, 0),
			ok:   true,
		},
		{
			name: "length shorter than header",
			b: func() []byte {
				b := attr(1, []byte{1, 2, 3, 4})
				b[0], b[1] = 0, 0
				return b
			}(),
		},
		{
			name: "length past end",
			b:    attr(1, []byte{1, 2, 3, 4})[:6],
		},
		{
			name: "padding past end",
			b:    attr(1, []byte{1, 2, 3, 4, 5})[:9],
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := rtdump.IndexAttributes(tt.b, 10)
			if tt.ok && err != nil {
				t.Fatalf("failed to index attributes: %v", err)
			}
			if !tt.ok && !errors.Is(err, rtdump.ErrMalformedAttributes) {
				t.Fatalf("expected malformed attributes error, but got: %v", err)
			}
		})
	}
}

func indexAttributes(t *testing.T, ae *netlink.AttributeEncoder, max uint16) *rtdump.AttributeTable {
	t.Helper()

	b, err := ae.Encode()
	if err != nil {
		t.Fatalf("failed to encode attributes: %v", err)
	}

	table, err := rtdump.IndexAttributes(b, max)
	if err != nil {
		t.Fatalf("failed to index attributes: %v", err)
	}

	return table
}

// attr encodes a single padded attribute.
func attr(typ uint16, v []byte) []byte {
	ae := netlink.NewAttributeEncoder()
	ae.Bytes(typ, v)

	b, err := ae.Encode()
	if err != nil {
		panic(err)
	}

	return b
}
