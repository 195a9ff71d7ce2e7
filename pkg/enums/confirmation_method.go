package enums

import "fmt"

// ConfirmationMethod records which surface settled a payment confirmation.
type ConfirmationMethod string

const (
	ConfirmationMethodAdminDashboard ConfirmationMethod = "admin_dashboard"
	ConfirmationMethodAPICall        ConfirmationMethod = "api_call"
)

var validConfirmationMethods = []ConfirmationMethod{
	ConfirmationMethodAdminDashboard,
	ConfirmationMethodAPICall,
}

// String implements fmt.Stringer.
func (c ConfirmationMethod) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ConfirmationMethod.
func (c ConfirmationMethod) IsValid() bool {
	for _, candidate := range validConfirmationMethods {
		if candidate == c {
			return true
		}
	}
	return false
}

// ConfirmationMethodForPaymentType derives the confirmation surface from the
// payment type: manual payments are settled from the admin dashboard, all
// other types via API.
func ConfirmationMethodForPaymentType(paymentType PaymentType) ConfirmationMethod {
	if paymentType == PaymentTypeManual {
		return ConfirmationMethodAdminDashboard
	}
	return ConfirmationMethodAPICall
}

// ParseConfirmationMethod converts raw input into a ConfirmationMethod.
func ParseConfirmationMethod(value string) (ConfirmationMethod, error) {
	for _, candidate := range validConfirmationMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid confirmation method %q", value)
}
