//go:build linux

package rtdump

import (
	"fmt"

	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

// An AddressHeader is the fixed ifaddrmsg header of an address message.
type AddressHeader struct {
	Family       uint8
	PrefixLength uint8
	Flags        uint8
	Scope        uint8
	Index        uint32
}

// An Address is an IPv4 or IPv6 address reported by an address dump. Name is
// the name of the interface at Index; it is filled in by Channel.Addresses
// and left empty by ParseAddress.
type Address struct {
	Family       uint8  `json:"family" yaml:"family"`
	Index        uint32 `json:"index" yaml:"index"`
	Name         string `json:"name,omitempty" yaml:"name,omitempty"`
	PrefixLength uint8  `json:"prefix_length" yaml:"prefix_length"`
	Scope        uint8  `json:"scope" yaml:"scope"`
	Flags        uint32 `json:"flags" yaml:"flags"`
	Address      string `json:"address,omitempty" yaml:"address,omitempty"`
	Local        string `json:"local,omitempty" yaml:"local,omitempty"`
	Broadcast    string `json:"broadcast,omitempty" yaml:"broadcast,omitempty"`
	Anycast      string `json:"anycast,omitempty" yaml:"anycast,omitempty"`
	Label        string `json:"label,omitempty" yaml:"label,omitempty"`
}

// DecodeAddress splits an address message into its fixed header and its
// attributes and passes both to fn.
func DecodeAddress(e Envelope, fn func(h AddressHeader, t *AttributeTable) error) error {
	b, attrs, err := splitMessage(e, unix.SizeofIfAddrmsg, unix.RTM_NEWADDR, unix.RTM_DELADDR)
	if err != nil {
		return err
	}

	h := AddressHeader{
		Family:       b[0],
		PrefixLength: b[1],
		Flags:        b[2],
		Scope:        b[3],
		Index:        nlenc.Uint32(b[4:8]),
	}

	t, err := IndexAttributes(attrs, ifaMax)
	if err != nil {
		return err
	}

	return fn(h, t)
}

// ParseAddress decodes an address message into an Address. Messages for
// families other than AF_INET and AF_INET6 fail with ErrUnsupportedFamily.
func ParseAddress(e Envelope) (Address, error) {
	var a Address
	err := DecodeAddress(e, func(h AddressHeader, t *AttributeTable) error {
		if h.Family != unix.AF_INET && h.Family != unix.AF_INET6 {
			return fmt.Errorf("%w: address family %d", ErrUnsupportedFamily, h.Family)
		}

		a = Address{
			Family:       h.Family,
			Index:        h.Index,
			PrefixLength: h.PrefixLength,
			Scope:        h.Scope,
			Flags:        uint32(h.Flags),
		}

		// IFA_FLAGS carries the full 32-bit flags when the header's 8 bits
		// are not enough.
		flags, ok, err := t.Uint32(unix.IFA_FLAGS)
		if err != nil {
			return err
		}
		if ok {
			a.Flags = flags
		}

		a.Label, _ = t.String(unix.IFA_LABEL)

		return decodeIPs(h.Family, t, []ipField{
			{typ: unix.IFA_ADDRESS, dst: &a.Address},
			{typ: unix.IFA_LOCAL, dst: &a.Local},
			{typ: unix.IFA_BROADCAST, dst: &a.Broadcast},
			{typ: unix.IFA_ANYCAST, dst: &a.Anycast},
		})
	})
	if err != nil {
		return Address{}, err
	}

	return a, nil
}

// An ipField names an address attribute and where its text goes.
type ipField struct {
	typ uint16
	dst *string
}

func decodeIPs(family uint8, t *AttributeTable, fields []ipField) error {
	for _, f := range fields {
		s, _, err := t.IP(family, f.typ)
		if err != nil {
			return err
		}

		*f.dst = s
	}

	return nil
}
