// Package rtdump implements dump queries against the Linux kernel's rtnetlink
// interface for network interfaces, addresses, and routes.
//
// A Channel sends one dump request at a time and drains the kernel's reply
// one datagram at a time. Each datagram is walked as a sequence of netlink
// messages, and the payload of each message can be decoded into a fixed
// header plus an AttributeTable, or directly into a Link, Address, or Route.
//
// Channels are not safe for concurrent use. A dump request must be followed
// by receiving its complete response before another request is sent. If the
// kernel interrupts a dump, the rest of it is discarded with DiscardDump; the
// Links, Addresses, and Routes helpers do this themselves.
package rtdump
