package ledger

import "errors"

var (
	ErrAccountRequired   = errors.New("account name is required")
	ErrInvalidAccount    = errors.New("invalid account name")
	ErrAmountNotPositive = errors.New("amount must be positive")
	ErrSameAccount       = errors.New("transfer source and target must differ")
	ErrInsufficientFunds = errors.New("insufficient funds")
)
