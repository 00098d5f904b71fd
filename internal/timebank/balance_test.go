package timebank

import (
	"errors"
	"testing"
)

func TestCanStartConsumerBoundary(t *testing.T) {
	if err := CanStart(RoleConsumer, 2.0, 2.0, MaxTimeBalance); err != nil {
		t.Fatalf("balance equal to hours must pass: %v", err)
	}
	err := CanStart(RoleConsumer, 1.9, 2.0, MaxTimeBalance)
	var ierr *InsufficientBalanceError
	if !errors.As(err, &ierr) {
		t.Fatalf("want InsufficientBalanceError, got %v", err)
	}
}

func TestCanStartProviderBoundary(t *testing.T) {
	// 8.5 + 1.5 lands exactly on the 10.0 cap.
	if err := CanStart(RoleProvider, 8.5, 1.5, MaxTimeBalance); err != nil {
		t.Fatalf("exactly reaching the cap must pass: %v", err)
	}
	err := CanStart(RoleProvider, 8.6, 1.5, MaxTimeBalance)
	var cerr *BalanceCapExceededError
	if !errors.As(err, &cerr) {
		t.Fatalf("want BalanceCapExceededError, got %v", err)
	}
	if cerr.Excess() < 0.09 || cerr.Excess() > 0.11 {
		t.Fatalf("excess = %v, want 0.1", cerr.Excess())
	}
}

func TestCheckStartBothGuards(t *testing.T) {
	if err := CheckStart(Balances{Consumer: 5.0, Provider: 3.0}, 2.0); err != nil {
		t.Fatalf("both guards pass: %v", err)
	}
	var ierr *InsufficientBalanceError
	if err := CheckStart(Balances{Consumer: 1.0, Provider: 3.0}, 2.0); !errors.As(err, &ierr) {
		t.Fatalf("want consumer guard failure, got %v", err)
	}
	var cerr *BalanceCapExceededError
	if err := CheckStart(Balances{Consumer: 5.0, Provider: 9.5}, 2.0); !errors.As(err, &cerr) {
		t.Fatalf("want provider guard failure, got %v", err)
	}
}
