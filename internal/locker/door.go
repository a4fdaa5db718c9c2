package locker

import "strings"

// lock suffix convention: a controller hosts up to two compartments,
// addressed by appending "A" or "B" to the bank base name.
const (
	SuffixA = "A"
	SuffixB = "B"
)

// DoorRef is a parsed door identifier from an RFID access event.
//
// A door identifier names a single compartment ("F1A"), a whole bank
// ("F1"), or a controller in hostname form ("F1-2", base plus lock
// count). Parsing is structural: the trailing A/B suffix or "-{n}"
// count is split off so matching and same-bank comparisons work on
// the base, not on raw string prefixes.
type DoorRef struct {
	// Raw is the identifier exactly as scanned.
	Raw string

	// Base is the bank identity without the lock suffix or count.
	Base string

	// Suffix is "A" or "B", or empty when the door names the bank.
	Suffix string
}

// ParseDoorRef parses a door identifier into its bank base and lock suffix.
func ParseDoorRef(raw string) DoorRef {
	trimmed := strings.TrimSpace(raw)

	if len(trimmed) > 1 {
		last := trimmed[len(trimmed)-1:]
		if last == SuffixA || last == SuffixB {
			return DoorRef{
				Raw:    trimmed,
				Base:   trimmed[:len(trimmed)-1],
				Suffix: last,
			}
		}
	}

	// Controller hostname form: "{base}-{lockCount}".
	if idx := strings.LastIndex(trimmed, "-"); idx > 0 {
		if isDigits(trimmed[idx+1:]) {
			return DoorRef{Raw: trimmed, Base: trimmed[:idx]}
		}
	}

	return DoorRef{Raw: trimmed, Base: trimmed}
}

// isDigits reports whether s is a non-empty run of ASCII digits.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// IsZero reports whether the reference is empty.
func (d DoorRef) IsZero() bool {
	return d.Raw == ""
}

// Matches reports whether the door reference matches a locker name.
//
// A compartment door ("bank-07A") matches only that compartment.
// A bank door ("bank-07") matches every compartment of the bank.
func (d DoorRef) Matches(lockerName string) bool {
	if d.IsZero() {
		return false
	}
	if d.Raw == lockerName {
		return true
	}
	if d.Suffix != "" {
		return false
	}
	return ParseDoorRef(lockerName).Base == d.Base
}

// SameBank reports whether a locker name belongs to the same physical
// bank as the scanned door. Used to distinguish a scan at the member's
// own bank from a scan at a remote reader.
func (d DoorRef) SameBank(lockerName string) bool {
	if d.IsZero() {
		return false
	}
	return ParseDoorRef(lockerName).Base == d.Base
}

// BankLockerNames returns the compartment names a bank base expands to.
//
// lockCount is clamped to the range [1, 2]: a controller hosts at most
// two compartments, and anything reporting more is treated as two.
func BankLockerNames(base string, lockCount int) []string {
	if lockCount <= 1 {
		return []string{base + SuffixA}
	}
	return []string{base + SuffixA, base + SuffixB}
}
