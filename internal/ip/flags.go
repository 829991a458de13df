package ip

import "strings"

// Flags is the 3-bit IPv4 flags field (RFC 791 Section 3.1): a reserved
// bit, Don't Fragment, and More Fragments.
type Flags uint8

const (
	// FlagMoreFragments indicates more fragments follow.
	FlagMoreFragments Flags = 1 << 0

	// FlagDontFragment indicates the packet must not be fragmented.
	FlagDontFragment Flags = 1 << 1

	// flagReserved is the reserved high bit; must be zero.
	flagReserved Flags = 1 << 2
)

// ResponseFlags is the flag set used on synthesized responses:
// Don't Fragment set, last fragment.
const ResponseFlags = FlagDontFragment

// String renders the set flags, e.g. "DF" or "DF, MF".
func (f Flags) String() string {
	var set []string
	if f&flagReserved != 0 {
		set = append(set, "Reserved")
	}
	if f&FlagDontFragment != 0 {
		set = append(set, "DF")
	}
	if f&FlagMoreFragments != 0 {
		set = append(set, "MF")
	}
	if len(set) == 0 {
		return "none"
	}
	return strings.Join(set, ", ")
}
