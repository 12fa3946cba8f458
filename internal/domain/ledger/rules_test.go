package ledger

import (
	"errors"
	"testing"
)

func TestNormalizeAccountName(t *testing.T) {
	name, err := NormalizeAccountName("  Alice_01 ")
	if err != nil {
		t.Fatalf("NormalizeAccountName() error = %v", err)
	}
	if name != "alice_01" {
		t.Fatalf("NormalizeAccountName() = %q", name)
	}

	if _, err := NormalizeAccountName("   "); !errors.Is(err, ErrAccountRequired) {
		t.Fatalf("blank name error = %v", err)
	}
	if _, err := NormalizeAccountName("bob smith"); !errors.Is(err, ErrInvalidAccount) {
		t.Fatalf("name with space error = %v", err)
	}
}

func TestAmountRules(t *testing.T) {
	if err := ValidateAmount(0); !errors.Is(err, ErrAmountNotPositive) {
		t.Fatalf("ValidateAmount(0) = %v", err)
	}
	if err := ValidateAmount(5); err != nil {
		t.Fatalf("ValidateAmount(5) = %v", err)
	}
	if err := CanDebit(10, 11); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("CanDebit(10, 11) = %v", err)
	}
	if err := CanDebit(10, 10); err != nil {
		t.Fatalf("CanDebit(10, 10) = %v", err)
	}
}
