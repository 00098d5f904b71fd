package timebank

// CanStart evaluates one party's balance guard for starting a service of the
// given duration. A nil return means the guard passes. The consumer must be
// able to cover the hours; the provider must stay at or under the cap after
// being credited. Boundary cases are inclusive on both sides: balance ==
// hours passes for the consumer, balance + hours == cap passes for the
// provider.
func CanStart(role Role, balance, hours, cap float64) error {
	switch role {
	case RoleConsumer:
		if balance < hours {
			return &InsufficientBalanceError{Balance: balance, Required: hours}
		}
	case RoleProvider:
		if balance+hours > cap {
			return &BalanceCapExceededError{Balance: balance, Hours: hours, Cap: cap}
		}
	}
	return nil
}

// CheckStart evaluates both parties' guards. Both must pass independently
// for the joint start to proceed; the first failure is returned.
func CheckStart(b Balances, hours float64) error {
	if err := CanStart(RoleConsumer, b.Consumer, hours, MaxTimeBalance); err != nil {
		return err
	}
	return CanStart(RoleProvider, b.Provider, hours, MaxTimeBalance)
}
