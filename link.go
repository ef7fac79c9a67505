//go:build linux

package rtdump

import (
	"net"

	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

// A LinkHeader is the fixed ifinfomsg header of a link message.
type LinkHeader struct {
	Family uint8
	Type   uint16
	Index  int32
	Flags  uint32
	Change uint32
}

// A Link is a network interface reported by a link dump.
type Link struct {
	Index     int32  `json:"index" yaml:"index"`
	Name      string `json:"name" yaml:"name"`
	Type      uint16 `json:"type" yaml:"type"`
	Flags     uint32 `json:"flags" yaml:"flags"`
	MTU       uint32 `json:"mtu,omitempty" yaml:"mtu,omitempty"`
	Address   string `json:"address,omitempty" yaml:"address,omitempty"`
	Broadcast string `json:"broadcast,omitempty" yaml:"broadcast,omitempty"`
}

// DecodeLink splits a link message into its fixed header and its attributes
// and passes both to fn.
func DecodeLink(e Envelope, fn func(h LinkHeader, t *AttributeTable) error) error {
	b, attrs, err := splitMessage(e, unix.SizeofIfInfomsg, unix.RTM_NEWLINK, unix.RTM_DELLINK)
	if err != nil {
		return err
	}

	h := LinkHeader{
		Family: b[0],
		Type:   nlenc.Uint16(b[2:4]),
		Index:  nlenc.Int32(b[4:8]),
		Flags:  nlenc.Uint32(b[8:12]),
		Change: nlenc.Uint32(b[12:16]),
	}

	t, err := IndexAttributes(attrs, iflaMax)
	if err != nil {
		return err
	}

	return fn(h, t)
}

// ParseLink decodes a link message into a Link.
func ParseLink(e Envelope) (Link, error) {
	var l Link
	err := DecodeLink(e, func(h LinkHeader, t *AttributeTable) error {
		l = Link{
			Index: h.Index,
			Type:  h.Type,
			Flags: h.Flags,
		}

		l.Name, _ = t.String(unix.IFLA_IFNAME)
		l.Address = linkAddr(t, unix.IFLA_ADDRESS)
		l.Broadcast = linkAddr(t, unix.IFLA_BROADCAST)

		var err error
		l.MTU, _, err = t.Uint32(unix.IFLA_MTU)
		return err
	})
	if err != nil {
		return Link{}, err
	}

	return l, nil
}

// linkAddr formats a link layer address. Ethernet addresses go through
// HardwareAddr; other link types such as IP tunnels or InfiniBand carry
// shorter or longer addresses, which are formatted in full.
func linkAddr(t *AttributeTable, typ uint16) string {
	b, ok := t.Bytes(typ)
	if !ok {
		return ""
	}

	if len(b) == 6 {
		s, _, _ := t.HardwareAddr(typ)
		return s
	}

	return net.HardwareAddr(b).String()
}
