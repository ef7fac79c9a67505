//go:build linux

package rtdump

import (
	"fmt"

	"github.com/mdlayher/netlink/nlenc"
	"golang.org/x/sys/unix"
)

// A RouteAttr is a route attribute type, as found in an rtmsg's attributes.
type RouteAttr uint16

// Route attribute types.
const (
	RouteDst       RouteAttr = unix.RTA_DST
	RouteSrc       RouteAttr = unix.RTA_SRC
	RouteIIF       RouteAttr = unix.RTA_IIF
	RouteOIF       RouteAttr = unix.RTA_OIF
	RouteGateway   RouteAttr = unix.RTA_GATEWAY
	RoutePriority  RouteAttr = unix.RTA_PRIORITY
	RoutePrefSrc   RouteAttr = unix.RTA_PREFSRC
	RouteMetrics   RouteAttr = unix.RTA_METRICS
	RouteMultipath RouteAttr = unix.RTA_MULTIPATH
	RouteFlow      RouteAttr = unix.RTA_FLOW
	RouteCacheInfo RouteAttr = unix.RTA_CACHEINFO
	RouteTable     RouteAttr = unix.RTA_TABLE
	RouteMark      RouteAttr = unix.RTA_MARK
	RouteVia       RouteAttr = unix.RTA_VIA
	RoutePref      RouteAttr = unix.RTA_PREF
	RouteExpires   RouteAttr = unix.RTA_EXPIRES
)

var routeAttrNames = map[RouteAttr]string{
	RouteDst:       "dst",
	RouteSrc:       "src",
	RouteIIF:       "iif",
	RouteOIF:       "oif",
	RouteGateway:   "gateway",
	RoutePriority:  "priority",
	RoutePrefSrc:   "prefsrc",
	RouteMetrics:   "metrics",
	RouteMultipath: "multipath",
	RouteFlow:      "flow",
	RouteCacheInfo: "cacheinfo",
	RouteTable:     "table",
	RouteMark:      "mark",
	RouteVia:       "via",
	RoutePref:      "pref",
	RouteExpires:   "expires",
}

func (a RouteAttr) String() string {
	if s, ok := routeAttrNames[a]; ok {
		return s
	}

	return fmt.Sprintf("RouteAttr(%d)", uint16(a))
}

// Route returns the raw value of the route attribute a.
func (t *AttributeTable) Route(a RouteAttr) ([]byte, bool) {
	return t.Bytes(uint16(a))
}

// A RouteHeader is the fixed rtmsg header of a route message.
type RouteHeader struct {
	Family    uint8
	DstLength uint8
	SrcLength uint8
	TOS       uint8
	Table     uint8
	Protocol  uint8
	Scope     uint8
	Type      uint8
	Flags     uint32
}

// A Route is an IPv4 or IPv6 route reported by a route dump. Interface
// indices are zero when the kernel did not report them. The interface names
// are filled in by Channel.Routes and left empty by ParseRoute.
type Route struct {
	Family      uint8  `json:"family" yaml:"family"`
	Destination string `json:"destination,omitempty" yaml:"destination,omitempty"`
	DstLength   uint8  `json:"dst_length" yaml:"dst_length"`
	Source      string `json:"source,omitempty" yaml:"source,omitempty"`
	SrcLength   uint8  `json:"src_length" yaml:"src_length"`
	TOS         uint8  `json:"tos" yaml:"tos"`
	Table       uint32 `json:"table" yaml:"table"`
	Protocol    uint8  `json:"protocol" yaml:"protocol"`
	Scope       uint8  `json:"scope" yaml:"scope"`
	Type        uint8  `json:"type" yaml:"type"`
	Flags       uint32 `json:"flags" yaml:"flags"`
	InputIndex  uint32 `json:"input_index,omitempty" yaml:"input_index,omitempty"`
	InputName   string `json:"input_name,omitempty" yaml:"input_name,omitempty"`
	OutputIndex uint32 `json:"output_index,omitempty" yaml:"output_index,omitempty"`
	OutputName  string `json:"output_name,omitempty" yaml:"output_name,omitempty"`
	Gateway     string `json:"gateway,omitempty" yaml:"gateway,omitempty"`
	PrefSource  string `json:"pref_source,omitempty" yaml:"pref_source,omitempty"`
	Priority    uint32 `json:"priority,omitempty" yaml:"priority,omitempty"`
}

// DecodeRoute splits a route message into its fixed header and its
// attributes and passes both to fn.
func DecodeRoute(e Envelope, fn func(h RouteHeader, t *AttributeTable) error) error {
	b, attrs, err := splitMessage(e, unix.SizeofRtMsg, unix.RTM_NEWROUTE, unix.RTM_DELROUTE)
	if err != nil {
		return err
	}

	h := RouteHeader{
		Family:    b[0],
		DstLength: b[1],
		SrcLength: b[2],
		TOS:       b[3],
		Table:     b[4],
		Protocol:  b[5],
		Scope:     b[6],
		Type:      b[7],
		Flags:     nlenc.Uint32(b[8:12]),
	}

	t, err := IndexAttributes(attrs, rtaMax)
	if err != nil {
		return err
	}

	return fn(h, t)
}

// ParseRoute decodes a route message into a Route. Messages for families
// other than AF_INET and AF_INET6 fail with ErrUnsupportedFamily.
func ParseRoute(e Envelope) (Route, error) {
	var r Route
	err := DecodeRoute(e, func(h RouteHeader, t *AttributeTable) error {
		if h.Family != unix.AF_INET && h.Family != unix.AF_INET6 {
			return fmt.Errorf("%w: route family %d", ErrUnsupportedFamily, h.Family)
		}

		r = Route{
			Family:    h.Family,
			DstLength: h.DstLength,
			SrcLength: h.SrcLength,
			TOS:       h.TOS,
			Table:     uint32(h.Table),
			Protocol:  h.Protocol,
			Scope:     h.Scope,
			Type:      h.Type,
			Flags:     h.Flags,
		}

		// The header only has room for tables up to 255.
		table, ok, err := t.Uint32(uint16(RouteTable))
		if err != nil {
			return err
		}
		if ok {
			r.Table = table
		}

		for _, f := range []struct {
			a   RouteAttr
			dst *uint32
		}{
			{a: RouteIIF, dst: &r.InputIndex},
			{a: RouteOIF, dst: &r.OutputIndex},
			{a: RoutePriority, dst: &r.Priority},
		} {
			if *f.dst, _, err = t.Uint32(uint16(f.a)); err != nil {
				return err
			}
		}

		return decodeIPs(h.Family, t, []ipField{
			{typ: uint16(RouteDst), dst: &r.Destination},
			{typ: uint16(RouteSrc), dst: &r.Source},
			{typ: uint16(RouteGateway), dst: &r.Gateway},
			{typ: uint16(RoutePrefSrc), dst: &r.PrefSource},
		})
	})
	if err != nil {
		return Route{}, err
	}

	return r, nil
}
