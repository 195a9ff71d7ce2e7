package enums

import "fmt"

// GuestStatus tracks whether a guest identity is still anonymous or has
// been converted into a registered user.
type GuestStatus string

const (
	GuestStatusActive    GuestStatus = "active"
	GuestStatusConverted GuestStatus = "converted"
)

var validGuestStatuses = []GuestStatus{
	GuestStatusActive,
	GuestStatusConverted,
}

// String implements fmt.Stringer.
func (g GuestStatus) String() string {
	return string(g)
}

// IsValid reports whether the value is a known GuestStatus.
func (g GuestStatus) IsValid() bool {
	for _, candidate := range validGuestStatuses {
		if candidate == g {
			return true
		}
	}
	return false
}

// ParseGuestStatus converts raw input into a GuestStatus.
func ParseGuestStatus(value string) (GuestStatus, error) {
	for _, candidate := range validGuestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid guest status %q", value)
}
