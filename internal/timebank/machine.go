package timebank

// StartResult reports the effect of a ConfirmStart call.
type StartResult struct {
	// BothConfirmed is true when this call was the second distinct
	// confirmation and the progress moved to in_progress.
	BothConfirmed bool
	// Transfer is non-nil exactly when BothConfirmed is true: the hours to
	// debit from the consumer and credit to the provider, applied once.
	Transfer *Transfer
}

// SurveyResult reports the effect of a SubmitSurvey call.
type SurveyResult struct {
	// Completed is true when both parties have now submitted and the
	// progress reached its terminal completed state.
	Completed bool
}

// RespondResult reports the effect of a RespondToProposal call.
type RespondResult struct {
	Accepted bool
	// Hours is the agreed duration when accepted.
	Hours float64
}

// ProposeSchedule creates a pending schedule proposal from the given role.
// It fails with ConflictError while another proposal is pending, with
// ValidationError when the window breaks the service-kind duration rule,
// and with StatusError once the service has started: proposals exist only
// before the start, otherwise accepting one would rewind the workflow past
// the point where the balance transfer fired.
func (p *Progress) ProposeSchedule(by Role, messageID string, w Window, location string) (*Proposal, error) {
	if !p.Status.preStart() {
		return nil, &StatusError{Op: "propose a schedule", From: p.Status}
	}
	if p.Pending != nil && p.Pending.State == ProposalPending {
		return nil, &ConflictError{Reason: "a schedule proposal is already pending for this application"}
	}
	if _, err := ValidateDuration(p.Kind, p.HoursRequired, w); err != nil {
		return nil, err
	}
	p.Pending = &Proposal{
		MessageID: messageID,
		Sender:    by,
		Window:    w,
		Location:  location,
		State:     ProposalPending,
	}
	return p.Pending, nil
}

// RespondToProposal lets the receiver of the pending proposal accept or
// reject it. Accepting fixes the agreed hours and schedule and moves the
// progress to scheduled. Rejecting is terminal: the whole progress is
// cancelled, which reopens the service and bars the applicant from
// reapplying (enforced by the storage layer).
func (p *Progress) RespondToProposal(by Role, messageID string, accept bool) (RespondResult, error) {
	if err := p.checkPending(messageID); err != nil {
		return RespondResult{}, err
	}
	if p.Pending.Sender == by {
		return RespondResult{}, &PermissionError{Reason: "cannot respond to your own proposal"}
	}
	if !accept {
		p.Pending.State = ProposalRejected
		p.Status = StatusCancelled
		return RespondResult{Accepted: false}, nil
	}
	hours, err := ValidateDuration(p.Kind, p.HoursRequired, p.Pending.Window)
	if err != nil {
		return RespondResult{}, err
	}
	p.Pending.State = ProposalAccepted
	p.Hours = hours
	p.ScheduledDate = p.Pending.Window.Date
	p.ScheduledTime = p.Pending.Window.Start
	if p.Pending.Location != "" {
		p.AgreedLocation = p.Pending.Location
	}
	p.Status = StatusScheduled
	p.StartConfirmed.Reset()
	return RespondResult{Accepted: true, Hours: hours}, nil
}

// CancelProposal lets the original sender withdraw a still-pending proposal.
// It has no other side effects, so a fresh proposal may follow.
func (p *Progress) CancelProposal(by Role, messageID string) error {
	if err := p.checkPending(messageID); err != nil {
		return err
	}
	if p.Pending.Sender != by {
		return &PermissionError{Reason: "only the sender can cancel a proposal"}
	}
	p.Pending.State = ProposalCancelled
	p.Pending = nil
	return nil
}

func (p *Progress) checkPending(messageID string) error {
	if !p.Status.preStart() {
		return &StatusError{Op: "act on a proposal", From: p.Status}
	}
	if p.Pending == nil {
		return &NotPendingError{}
	}
	if p.Pending.MessageID != messageID {
		return &NotPendingError{}
	}
	if p.Pending.State != ProposalPending {
		return &NotPendingError{State: p.Pending.State}
	}
	return nil
}

// ConfirmStart records the caller's start confirmation. Confirming twice
// from the same role is a no-op. The caller's own balance guard is checked
// up front: a party whose guard fails cannot confirm at all. When the second
// distinct role confirms, both guards are re-evaluated together; on failure
// both flags are rolled back and the status stays scheduled, on success the
// progress moves to in_progress and the result carries the one balance
// transfer to apply.
func (p *Progress) ConfirmStart(by Role, b Balances) (StartResult, error) {
	if p.Status != StatusScheduled {
		return StartResult{}, &StatusError{Op: "confirm start", From: p.Status}
	}
	own := b.Consumer
	if by == RoleProvider {
		own = b.Provider
	}
	if err := CanStart(by, own, p.Hours, MaxTimeBalance); err != nil {
		return StartResult{}, err
	}
	p.StartConfirmed.Set(by)
	if !p.StartConfirmed.Both() {
		return StartResult{}, nil
	}
	if err := CheckStart(b, p.Hours); err != nil {
		p.StartConfirmed.Reset()
		return StartResult{}, err
	}
	p.Status = StatusInProgress
	return StartResult{BothConfirmed: true, Transfer: &Transfer{Hours: p.Hours}}, nil
}

// MarkFinished is the provider declaring the work done, which opens the
// completion-survey window for both parties.
func (p *Progress) MarkFinished(by Role) error {
	if by != RoleProvider {
		return &PermissionError{Reason: "only the provider can mark the service finished"}
	}
	if p.Status != StatusInProgress {
		return &StatusError{Op: "mark finished", From: p.Status}
	}
	p.Status = StatusAwaitingConfirmation
	p.SurveySubmitted.Reset()
	return nil
}

// SubmitSurvey records one party's completion survey. Each party submits at
// most once; the second distinct submission finalizes the progress.
func (p *Progress) SubmitSurvey(by Role) (SurveyResult, error) {
	if p.Status != StatusAwaitingConfirmation {
		return SurveyResult{}, &StatusError{Op: "submit the completion survey", From: p.Status}
	}
	if p.SurveySubmitted.Has(by) {
		return SurveyResult{}, &ConflictError{Reason: "you have already submitted your confirmation"}
	}
	p.SurveySubmitted.Set(by)
	if !p.SurveySubmitted.Both() {
		return SurveyResult{}, nil
	}
	p.Status = StatusCompleted
	return SurveyResult{Completed: true}, nil
}
