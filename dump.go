//go:build linux

package rtdump

import (
	"errors"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Links dumps every network interface known to the kernel.
//
// Messages which fail to decode are skipped; their errors are combined into
// the returned error alongside the links which did decode. If the kernel
// interrupts the dump, the links received so far are returned with an error
// matching ErrDumpInterrupted; the rest of the dump has been discarded, so
// the caller may retry on the same Channel.
func (c *Channel) Links() ([]Link, error) {
	if err := c.SendLinkDumpRequest(); err != nil {
		return nil, err
	}

	var links []Link
	err := c.drain(c.ReceiveLinkDumpResponse, func(e Envelope) error {
		l, err := ParseLink(e)
		if err != nil {
			return err
		}

		links = append(links, l)
		return nil
	})

	return links, err
}

// Addresses dumps every address of the given family: AF_INET, AF_INET6, or
// AF_UNSPEC for both. Interface names come from a link dump made first; an
// address whose interface is missing from it has an empty Name. Errors are
// reported as for Links.
func (c *Channel) Addresses(family uint8) ([]Address, error) {
	if err := checkFamily(family); err != nil {
		return nil, err
	}

	names := c.linkNames()
	if err := c.SendAddressDumpRequest(family); err != nil {
		return nil, err
	}

	var addrs []Address
	err := c.drain(c.ReceiveAddressDumpResponse, func(e Envelope) error {
		a, err := ParseAddress(e)
		if err != nil {
			return err
		}

		a.Name = names[a.Index]
		addrs = append(addrs, a)
		return nil
	})

	return addrs, err
}

// Routes dumps every route of the given family: AF_INET, AF_INET6, or
// AF_UNSPEC for both. Routes of other families, such as multicast routes,
// are skipped. Interface names are resolved as for Addresses. Errors are
// reported as for Links.
func (c *Channel) Routes(family uint8) ([]Route, error) {
	if err := checkFamily(family); err != nil {
		return nil, err
	}

	names := c.linkNames()
	if err := c.SendRouteDumpRequest(family); err != nil {
		return nil, err
	}

	var routes []Route
	err := c.drain(c.ReceiveRouteDumpResponse, func(e Envelope) error {
		r, err := ParseRoute(e)
		if err != nil {
			return err
		}

		r.InputName = names[r.InputIndex]
		r.OutputName = names[r.OutputIndex]
		routes = append(routes, r)
		return nil
	})

	return routes, err
}

// linkNames maps interface indices to names with a link dump. A failed or
// partial dump leaves names out rather than failing the caller.
func (c *Channel) linkNames() map[uint32]string {
	links, err := c.Links()
	if err != nil {
		c.log.Debug("failed to resolve some interface names", zap.Error(err))
	}

	names := make(map[uint32]string, len(links))
	for _, l := range links {
		names[uint32(l.Index)] = l.Name
	}

	return names
}

// drain receives datagrams with recv until the dump reaches a terminal
// state. A message which parse rejects only fails itself, not the dump. An
// interrupted dump is read to its end before drain returns.
func (c *Channel) drain(recv func(EnvelopeHandler) (Status, error), parse func(e Envelope) error) error {
	var errs error
	h := EnvelopeHandlerFunc(func(e Envelope) error {
		err := parse(e)
		switch {
		case err == nil:
		case errors.Is(err, ErrUnsupportedFamily):
			c.log.Debug("skipping message of unsupported family",
				zap.Uint16("type", uint16(e.Header.Type)), zap.Error(err))
		default:
			c.log.Warn("skipping message which failed to decode",
				zap.Uint16("type", uint16(e.Header.Type)),
				zap.Uint32("sequence", e.Header.Sequence),
				zap.Error(err))
			errs = multierr.Append(errs, err)
		}

		return nil
	})

	for {
		status, err := recv(h)
		if status == StatusInterrupted {
			// Leave the socket ready for a retry.
			err = multierr.Append(err, c.DiscardDump())
		}
		if err != nil {
			return multierr.Append(errs, err)
		}
		if status.Terminal() {
			return errs
		}
	}
}
