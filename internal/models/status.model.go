package models

// VerificationStatus is the lifecycle state of a submitted service or
// suggestion. Approved and Rejected are terminal.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusApproved VerificationStatus = "approved"
	StatusRejected VerificationStatus = "rejected"
)

func (s VerificationStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further transitions.
func (s VerificationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}
