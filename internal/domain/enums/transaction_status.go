package enums

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionConfirmed TransactionStatus = "confirmed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionExpired   TransactionStatus = "expired"
)

// Terminal reports whether the status can no longer change.
func (s TransactionStatus) Terminal() bool {
	switch s {
	case TransactionConfirmed, TransactionFailed, TransactionExpired:
		return true
	}
	return false
}
