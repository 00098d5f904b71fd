package timebank

import (
	"errors"
	"testing"
)

func newNeedProgress(hours float64) *Progress {
	return NewProgress("prog-1", "svc-1", "app-1", KindNeed, hours)
}

func newOfferProgress() *Progress {
	return NewProgress("prog-1", "svc-1", "app-1", KindOffer, 2.0)
}

func twoHourWindow() Window {
	return Window{Date: "2024-06-01", Start: "09:00", End: "11:00"}
}

func TestProposeScheduleSingleSlot(t *testing.T) {
	p := newNeedProgress(2.0)
	if _, err := p.ProposeSchedule(RoleProvider, "msg-1", twoHourWindow(), "the park"); err != nil {
		t.Fatalf("first proposal: %v", err)
	}
	_, err := p.ProposeSchedule(RoleConsumer, "msg-2", twoHourWindow(), "")
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("second proposal while pending: want ConflictError, got %v", err)
	}
	if p.Pending.MessageID != "msg-1" {
		t.Fatalf("pending proposal replaced: %+v", p.Pending)
	}
}

func TestProposeScheduleDurationRules(t *testing.T) {
	cases := []struct {
		name  string
		kind  ServiceKind
		hours float64
		w     Window
		ok    bool
	}{
		{"need exact match", KindNeed, 2.0, Window{Date: "2024-06-01", Start: "09:00", End: "11:00"}, true},
		{"need short", KindNeed, 2.0, Window{Date: "2024-06-01", Start: "09:00", End: "10:30"}, false},
		{"offer below minimum", KindOffer, 2.0, Window{Date: "2024-06-01", Start: "09:00", End: "09:30"}, false},
		{"offer above maximum", KindOffer, 2.0, Window{Date: "2024-06-01", Start: "09:00", End: "13:00"}, false},
		{"offer in range", KindOffer, 2.0, Window{Date: "2024-06-01", Start: "09:00", End: "11:00"}, true},
		{"offer at minimum", KindOffer, 2.0, Window{Date: "2024-06-01", Start: "09:00", End: "10:00"}, true},
		{"offer at maximum", KindOffer, 2.0, Window{Date: "2024-06-01", Start: "09:00", End: "12:00"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewProgress("prog-1", "svc-1", "app-1", tc.kind, tc.hours)
			_, err := p.ProposeSchedule(RoleProvider, "msg-1", tc.w, "")
			if tc.ok && err != nil {
				t.Fatalf("want accepted, got %v", err)
			}
			if !tc.ok {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("want ValidationError, got %v", err)
				}
			}
		})
	}
}

func TestProposeScheduleTerminalStatus(t *testing.T) {
	p := newNeedProgress(2.0)
	p.Status = StatusCancelled
	_, err := p.ProposeSchedule(RoleProvider, "msg-1", twoHourWindow(), "")
	var serr *StatusError
	if !errors.As(err, &serr) {
		t.Fatalf("want StatusError on cancelled progress, got %v", err)
	}
}

func TestRespondAcceptSchedules(t *testing.T) {
	p := newNeedProgress(2.0)
	if _, err := p.ProposeSchedule(RoleProvider, "msg-1", twoHourWindow(), "the library"); err != nil {
		t.Fatalf("propose: %v", err)
	}
	res, err := p.RespondToProposal(RoleConsumer, "msg-1", true)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if !res.Accepted || res.Hours != 2.0 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if p.Status != StatusScheduled {
		t.Fatalf("status = %s, want scheduled", p.Status)
	}
	if p.Hours != 2.0 || p.ScheduledDate != "2024-06-01" || p.ScheduledTime != "09:00" || p.AgreedLocation != "the library" {
		t.Fatalf("schedule not applied: %+v", p)
	}
	if p.Pending.State != ProposalAccepted {
		t.Fatalf("proposal state = %s, want accepted", p.Pending.State)
	}
}

func TestRespondRejectCancels(t *testing.T) {
	p := newNeedProgress(2.0)
	if _, err := p.ProposeSchedule(RoleProvider, "msg-1", twoHourWindow(), ""); err != nil {
		t.Fatalf("propose: %v", err)
	}
	res, err := p.RespondToProposal(RoleConsumer, "msg-1", false)
	if err != nil {
		t.Fatalf("reject: %v", err)
	}
	if res.Accepted {
		t.Fatal("reject reported as accepted")
	}
	if p.Status != StatusCancelled {
		t.Fatalf("status = %s, want cancelled after rejection", p.Status)
	}
	if p.Pending.State != ProposalRejected {
		t.Fatalf("proposal state = %s, want rejected", p.Pending.State)
	}
}

func TestRespondOwnProposalForbidden(t *testing.T) {
	p := newNeedProgress(2.0)
	if _, err := p.ProposeSchedule(RoleProvider, "msg-1", twoHourWindow(), ""); err != nil {
		t.Fatalf("propose: %v", err)
	}
	_, err := p.RespondToProposal(RoleProvider, "msg-1", true)
	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("responding to own proposal: want PermissionError, got %v", err)
	}
}

func TestRespondNoPending(t *testing.T) {
	p := newNeedProgress(2.0)
	_, err := p.RespondToProposal(RoleConsumer, "msg-1", true)
	var nperr *NotPendingError
	if !errors.As(err, &nperr) {
		t.Fatalf("want NotPendingError, got %v", err)
	}
}

func TestCancelProposal(t *testing.T) {
	p := newNeedProgress(2.0)
	if _, err := p.ProposeSchedule(RoleProvider, "msg-1", twoHourWindow(), ""); err != nil {
		t.Fatalf("propose: %v", err)
	}

	// Only the sender may cancel.
	err := p.CancelProposal(RoleConsumer, "msg-1")
	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("receiver cancelling: want PermissionError, got %v", err)
	}

	if err := p.CancelProposal(RoleProvider, "msg-1"); err != nil {
		t.Fatalf("sender cancelling: %v", err)
	}
	if p.Status != StatusSelected {
		t.Fatalf("cancel must not change status, got %s", p.Status)
	}

	// The slot is free again: a new proposal succeeds.
	if _, err := p.ProposeSchedule(RoleConsumer, "msg-2", twoHourWindow(), ""); err != nil {
		t.Fatalf("re-propose after cancel: %v", err)
	}

	err = p.CancelProposal(RoleConsumer, "msg-1")
	var nperr *NotPendingError
	if !errors.As(err, &nperr) {
		t.Fatalf("cancelling a stale message id: want NotPendingError, got %v", err)
	}
}

func scheduled(t *testing.T, hours float64) *Progress {
	t.Helper()
	p := newNeedProgress(hours)
	if _, err := p.ProposeSchedule(RoleProvider, "msg-1", twoHourWindow(), ""); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := p.RespondToProposal(RoleConsumer, "msg-1", true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	return p
}

func TestConfirmStartIdempotentPerRole(t *testing.T) {
	p := scheduled(t, 2.0)
	b := Balances{Consumer: 5.0, Provider: 3.0}

	res, err := p.ConfirmStart(RoleConsumer, b)
	if err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if res.BothConfirmed || res.Transfer != nil {
		t.Fatalf("single confirmation must not transition: %+v", res)
	}

	// Same role again: no transition, no transfer.
	res, err = p.ConfirmStart(RoleConsumer, b)
	if err != nil {
		t.Fatalf("repeat confirm: %v", err)
	}
	if res.BothConfirmed || res.Transfer != nil || p.Status != StatusScheduled {
		t.Fatalf("repeat confirmation changed state: %+v status=%s", res, p.Status)
	}

	// Second distinct role triggers the transition exactly once.
	res, err = p.ConfirmStart(RoleProvider, b)
	if err != nil {
		t.Fatalf("second confirm: %v", err)
	}
	if !res.BothConfirmed || res.Transfer == nil || res.Transfer.Hours != 2.0 {
		t.Fatalf("joint confirmation result: %+v", res)
	}
	if p.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", p.Status)
	}
}

func TestConfirmStartOwnGuardBlocks(t *testing.T) {
	p := scheduled(t, 2.0)
	_, err := p.ConfirmStart(RoleConsumer, Balances{Consumer: 1.9, Provider: 3.0})
	var ierr *InsufficientBalanceError
	if !errors.As(err, &ierr) {
		t.Fatalf("want InsufficientBalanceError, got %v", err)
	}
	if ierr.Shortfall() < 0.09 || ierr.Shortfall() > 0.11 {
		t.Fatalf("shortfall = %v, want 0.1", ierr.Shortfall())
	}
	if p.StartConfirmed.Has(RoleConsumer) {
		t.Fatal("failed guard must not record a confirmation")
	}
}

func TestConfirmStartJointGuardRollsBack(t *testing.T) {
	p := scheduled(t, 2.0)
	// Consumer confirms while solvent.
	if _, err := p.ConfirmStart(RoleConsumer, Balances{Consumer: 5.0, Provider: 3.0}); err != nil {
		t.Fatalf("consumer confirm: %v", err)
	}
	// By the provider's confirmation the consumer has spent down below the
	// required hours; the joint check fails and both flags roll back.
	_, err := p.ConfirmStart(RoleProvider, Balances{Consumer: 1.0, Provider: 3.0})
	var ierr *InsufficientBalanceError
	if !errors.As(err, &ierr) {
		t.Fatalf("want InsufficientBalanceError, got %v", err)
	}
	if p.Status != StatusScheduled {
		t.Fatalf("status = %s, want scheduled after failed joint guard", p.Status)
	}
	if p.StartConfirmed.Provider || p.StartConfirmed.Consumer {
		t.Fatalf("flags not rolled back: %+v", p.StartConfirmed)
	}
}

// TestNoRescheduleAfterStart pins the transfer-exactly-once guarantee: once
// both parties confirmed the start, no proposal may be created or answered,
// so the workflow can never rewind to scheduled and fire a second transfer.
func TestNoRescheduleAfterStart(t *testing.T) {
	p := scheduled(t, 2.0)
	b := Balances{Consumer: 5.0, Provider: 3.0}

	// A fresh proposal is still pending when the parties confirm the start.
	if _, err := p.ProposeSchedule(RoleConsumer, "msg-2", twoHourWindow(), ""); err != nil {
		t.Fatalf("re-propose while scheduled: %v", err)
	}
	if _, err := p.ConfirmStart(RoleConsumer, b); err != nil {
		t.Fatalf("consumer confirm: %v", err)
	}
	transfers := 0
	res, err := p.ConfirmStart(RoleProvider, b)
	if err != nil {
		t.Fatalf("provider confirm: %v", err)
	}
	if !res.BothConfirmed || res.Transfer == nil {
		t.Fatalf("joint confirm result: %+v", res)
	}
	transfers++

	// The leftover pending proposal is dead: accepting it must not rewind
	// the status or reset the confirmation gate.
	var serr *StatusError
	if _, err := p.RespondToProposal(RoleProvider, "msg-2", true); !errors.As(err, &serr) {
		t.Fatalf("accept after start: want StatusError, got %v", err)
	}
	if p.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", p.Status)
	}
	if !p.StartConfirmed.Both() {
		t.Fatalf("confirmation gate reset after start: %+v", p.StartConfirmed)
	}

	if _, err := p.ProposeSchedule(RoleProvider, "msg-3", twoHourWindow(), ""); !errors.As(err, &serr) {
		t.Fatalf("propose at in_progress: want StatusError, got %v", err)
	}

	if err := p.MarkFinished(RoleProvider); err != nil {
		t.Fatalf("mark finished: %v", err)
	}
	if _, err := p.ProposeSchedule(RoleProvider, "msg-4", twoHourWindow(), ""); !errors.As(err, &serr) {
		t.Fatalf("propose at awaiting_confirmation: want StatusError, got %v", err)
	}

	// Confirming again from in-flight statuses cannot produce a transfer.
	res, err = p.ConfirmStart(RoleConsumer, b)
	if !errors.As(err, &serr) {
		t.Fatalf("confirm after start: want StatusError, got %v", err)
	}
	if res.Transfer != nil {
		transfers++
	}
	if transfers != 1 {
		t.Fatalf("transfer applied %d times, want exactly once", transfers)
	}
}

func TestMarkFinished(t *testing.T) {
	p := scheduled(t, 2.0)
	b := Balances{Consumer: 5.0, Provider: 3.0}
	if _, err := p.ConfirmStart(RoleConsumer, b); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := p.ConfirmStart(RoleProvider, b); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	err := p.MarkFinished(RoleConsumer)
	var perr *PermissionError
	if !errors.As(err, &perr) {
		t.Fatalf("consumer marking finished: want PermissionError, got %v", err)
	}

	if err := p.MarkFinished(RoleProvider); err != nil {
		t.Fatalf("provider marking finished: %v", err)
	}
	if p.Status != StatusAwaitingConfirmation {
		t.Fatalf("status = %s, want awaiting_confirmation", p.Status)
	}

	var serr *StatusError
	if err := p.MarkFinished(RoleProvider); !errors.As(err, &serr) {
		t.Fatalf("double mark finished: want StatusError, got %v", err)
	}
}

func TestCompletionRequiresBothSurveys(t *testing.T) {
	p := scheduled(t, 2.0)
	b := Balances{Consumer: 5.0, Provider: 3.0}
	p.ConfirmStart(RoleConsumer, b)
	p.ConfirmStart(RoleProvider, b)
	if err := p.MarkFinished(RoleProvider); err != nil {
		t.Fatalf("mark finished: %v", err)
	}

	res, err := p.SubmitSurvey(RoleProvider)
	if err != nil {
		t.Fatalf("provider survey: %v", err)
	}
	if res.Completed || p.Status != StatusAwaitingConfirmation {
		t.Fatalf("one survey must not complete: %+v status=%s", res, p.Status)
	}

	_, err = p.SubmitSurvey(RoleProvider)
	var cerr *ConflictError
	if !errors.As(err, &cerr) {
		t.Fatalf("duplicate survey: want ConflictError, got %v", err)
	}

	res, err = p.SubmitSurvey(RoleConsumer)
	if err != nil {
		t.Fatalf("consumer survey: %v", err)
	}
	if !res.Completed || p.Status != StatusCompleted {
		t.Fatalf("both surveys must complete: %+v status=%s", res, p.Status)
	}
}

// TestFullWorkflow walks one application from selection to completion with
// the balances moving at the joint start confirmation.
func TestFullWorkflow(t *testing.T) {
	p := NewProgress("prog-1", "svc-1", "app-1", KindNeed, 2.0)
	if p.Status != StatusSelected {
		t.Fatalf("initial status = %s, want selected", p.Status)
	}

	if _, err := p.ProposeSchedule(RoleProvider, "msg-1", Window{Date: "2024-06-01", Start: "09:00", End: "11:00"}, ""); err != nil {
		t.Fatalf("propose: %v", err)
	}
	if _, err := p.RespondToProposal(RoleConsumer, "msg-1", true); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if p.Status != StatusScheduled || p.Hours != 2.0 {
		t.Fatalf("after accept: status=%s hours=%v", p.Status, p.Hours)
	}

	consumer, provider := 5.0, 3.0
	if _, err := p.ConfirmStart(RoleConsumer, Balances{Consumer: consumer, Provider: provider}); err != nil {
		t.Fatalf("consumer confirm: %v", err)
	}
	res, err := p.ConfirmStart(RoleProvider, Balances{Consumer: consumer, Provider: provider})
	if err != nil {
		t.Fatalf("provider confirm: %v", err)
	}
	if !res.BothConfirmed || res.Transfer == nil {
		t.Fatalf("joint confirm result: %+v", res)
	}
	consumer -= res.Transfer.Hours
	provider += res.Transfer.Hours
	if consumer != 3.0 || provider != 5.0 {
		t.Fatalf("balances after transfer = %v/%v, want 3.0/5.0", consumer, provider)
	}
	if p.Status != StatusInProgress {
		t.Fatalf("status = %s, want in_progress", p.Status)
	}

	if err := p.MarkFinished(RoleProvider); err != nil {
		t.Fatalf("mark finished: %v", err)
	}
	if _, err := p.SubmitSurvey(RoleProvider); err != nil {
		t.Fatalf("provider survey: %v", err)
	}
	res2, err := p.SubmitSurvey(RoleConsumer)
	if err != nil {
		t.Fatalf("consumer survey: %v", err)
	}
	if !res2.Completed || p.Status != StatusCompleted {
		t.Fatalf("final status = %s, want completed", p.Status)
	}
}
