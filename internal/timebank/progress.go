// Package timebank implements the service-progress workflow: the status
// state machine, schedule-proposal negotiation, dual-confirmation gates and
// time-balance guards. It is deliberately free of HTTP and database concerns
// so the same rules run in handlers, the expiry sweeper and tests.
package timebank

// Status is the lifecycle state of a service progress record.
type Status string

const (
	StatusSelected             Status = "selected"
	StatusScheduled            Status = "scheduled"
	StatusInProgress           Status = "in_progress"
	StatusAwaitingConfirmation Status = "awaiting_confirmation"
	StatusCompleted            Status = "completed"
	StatusCancelled            Status = "cancelled"
)

// Terminal reports whether no further transitions are possible.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// preStart reports whether the service has not started yet. Schedule
// proposals may only be created or answered in these statuses; once the
// start fired the agreed hours are settled.
func (s Status) preStart() bool {
	return s == StatusSelected || s == StatusScheduled
}

// Role identifies which side of the exchange a user is on.
type Role string

const (
	RoleProvider Role = "provider"
	RoleConsumer Role = "consumer"
)

// Other returns the opposite role.
func (r Role) Other() Role {
	if r == RoleProvider {
		return RoleConsumer
	}
	return RoleProvider
}

// ServiceKind distinguishes offers (provider lists hours, flexible 1-3h
// duration) from needs (consumer requests hours, duration must match
// hours_required exactly).
type ServiceKind string

const (
	KindOffer ServiceKind = "offer"
	KindNeed  ServiceKind = "need"
)

const (
	// MaxTimeBalance is the system-wide cap on hours a user may hold.
	MaxTimeBalance = 10.0
	// MinOfferHours and MaxOfferHours bound the duration of offer services.
	MinOfferHours = 1.0
	MaxOfferHours = 3.0
	// hoursEpsilon absorbs float drift when matching a need's exact duration.
	hoursEpsilon = 0.01
)

// ProposalState tracks the lifecycle of a schedule proposal message.
type ProposalState string

const (
	ProposalPending   ProposalState = "pending"
	ProposalAccepted  ProposalState = "accepted"
	ProposalRejected  ProposalState = "rejected"
	ProposalCancelled ProposalState = "cancelled"
)

// Proposal is one schedule suggestion in the application's message thread.
// At most one proposal per progress may be pending at a time.
type Proposal struct {
	MessageID string
	Sender    Role
	Window    Window
	Location  string
	State     ProposalState
}

// Balances carries both parties' current time balances into a start guard.
type Balances struct {
	Consumer float64
	Provider float64
}

// Transfer describes a committed balance movement: debit the consumer,
// credit the provider, exactly once.
type Transfer struct {
	Hours float64
}

// Progress is the mutable workflow record for one application. The zero
// value is not valid; use NewProgress.
type Progress struct {
	ID            string
	ServiceID     string
	ApplicationID string

	Kind          ServiceKind
	HoursRequired float64
	// Hours is the agreed duration, fixed when a proposal is accepted.
	Hours float64

	Status  Status
	Pending *Proposal

	StartConfirmed  Gate
	SurveySubmitted Gate

	ScheduledDate  string
	ScheduledTime  string
	AgreedLocation string
}

// NewProgress returns a progress record in the initial selected state,
// as created when a provider is chosen for an application.
func NewProgress(id, serviceID, applicationID string, kind ServiceKind, hoursRequired float64) *Progress {
	return &Progress{
		ID:            id,
		ServiceID:     serviceID,
		ApplicationID: applicationID,
		Kind:          kind,
		HoursRequired: hoursRequired,
		Hours:         hoursRequired,
		Status:        StatusSelected,
	}
}
