package types

import "time"

// ConfirmationEvidence captures the structured proof attached when an
// operator settles a manual payment.
type ConfirmationEvidence struct {
	Reference  string     `json:"reference"`
	AmountPaid string     `json:"amount_paid,omitempty"`
	PaidAt     *time.Time `json:"paid_at,omitempty"`
	BankName   *string    `json:"bank_name,omitempty"`
	Remarks    *string    `json:"remarks,omitempty"`
}
