package timebank

import "fmt"

// ValidationError rejects malformed or rule-breaking input (bad time window,
// duration mismatch). Recoverable: the caller fixes the input and retries.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ConflictError rejects an operation that collides with existing state
// (a pending proposal already exists, a survey already submitted).
// Recoverable after the conflicting state clears.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string { return e.Reason }

// PermissionError rejects an operation the caller's role may not perform.
// Not retryable for that caller.
type PermissionError struct {
	Reason string
}

func (e *PermissionError) Error() string { return e.Reason }

// NotPendingError rejects a response or cancellation aimed at a proposal
// that is no longer pending.
type NotPendingError struct {
	State ProposalState
}

func (e *NotPendingError) Error() string {
	if e.State == "" {
		return "no pending schedule proposal"
	}
	return fmt.Sprintf("proposal already %s", e.State)
}

// StatusError rejects a transition attempted from the wrong status.
type StatusError struct {
	Op   string
	From Status
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("cannot %s while status is %s", e.Op, e.From)
}

// InsufficientBalanceError blocks a start when the consumer cannot cover the
// agreed hours. Carries the exact shortfall so the user can act on it.
type InsufficientBalanceError struct {
	Balance  float64
	Required float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient time balance: have %.1f hour(s), service requires %.1f hour(s); %.1f more must be earned first",
		e.Balance, e.Required, e.Shortfall())
}

// Shortfall is the number of hours the consumer is missing.
func (e *InsufficientBalanceError) Shortfall() float64 { return e.Required - e.Balance }

// BalanceCapExceededError blocks a start when crediting the provider would
// push them past MaxTimeBalance. Carries the exact excess.
type BalanceCapExceededError struct {
	Balance float64
	Hours   float64
	Cap     float64
}

func (e *BalanceCapExceededError) Error() string {
	return fmt.Sprintf("time balance would exceed the %.1f hour cap: %.1f + %.1f hour(s) is over by %.1f",
		e.Cap, e.Balance, e.Hours, e.Excess())
}

// Excess is the number of hours past the cap.
func (e *BalanceCapExceededError) Excess() float64 { return e.Balance + e.Hours - e.Cap }
