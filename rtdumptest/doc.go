// Package rtdumptest provides utilities for rtnetlink dump testing.
//
// The fake kernel socket and reply builders are only available on Linux,
// the only platform package rtdump supports.
package rtdumptest
