//go:build linux

package rtdump

// Highest attribute types indexed for each message family, from the kernel's
// uapi headers. Newer kernels may send higher types, which are ignored.
const (
	iflaMax = 0x41 // IFLA_MAX
	ifaMax  = 0x0b // IFA_MAX
	rtaMax  = 0x1e // RTA_MAX
)
