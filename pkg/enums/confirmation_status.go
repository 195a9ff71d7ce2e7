package enums

import "fmt"

// ConfirmationStatus tracks the lifecycle of a payment confirmation.
type ConfirmationStatus string

const (
	ConfirmationStatusPending   ConfirmationStatus = "pending"
	ConfirmationStatusConfirmed ConfirmationStatus = "confirmed"
	ConfirmationStatusRejected  ConfirmationStatus = "rejected"
)

var validConfirmationStatuses = []ConfirmationStatus{
	ConfirmationStatusPending,
	ConfirmationStatusConfirmed,
	ConfirmationStatusRejected,
}

// String implements fmt.Stringer.
func (c ConfirmationStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConfirmationStatus.
func (c ConfirmationStatus) IsValid() bool {
	for _, candidate := range validConfirmationStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed.
func (c ConfirmationStatus) IsTerminal() bool {
	return c == ConfirmationStatusConfirmed || c == ConfirmationStatusRejected
}

// ParseConfirmationStatus converts raw input into a ConfirmationStatus.
func ParseConfirmationStatus(value string) (ConfirmationStatus, error) {
	for _, candidate := range validConfirmationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid confirmation status %q", value)
}
