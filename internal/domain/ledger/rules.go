package ledger

import (
	"fmt"
	"strings"
)

const maxAccountNameLength = 64

// NormalizeAccountName trims and lower-cases an account name and checks its charset.
func NormalizeAccountName(raw string) (string, error) {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return "", ErrAccountRequired
	}
	if len(name) > maxAccountNameLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidAccount, maxAccountNameLength)
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
		default:
			return "", fmt.Errorf("%w: %q contains %q", ErrInvalidAccount, raw, r)
		}
	}
	return name, nil
}

func ValidateAmount(amount int64) error {
	if amount <= 0 {
		return fmt.Errorf("%w: %d", ErrAmountNotPositive, amount)
	}
	return nil
}

// CanDebit reports whether balance covers amount. Overdrafts are never allowed.
func CanDebit(balance int64, amount int64) error {
	if balance < amount {
		return fmt.Errorf("%w: balance %d, requested %d", ErrInsufficientFunds, balance, amount)
	}
	return nil
}
