package progress

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/hivetime/timebank/internal/timebank"
)

// record joins the workflow state with the parties and deadline that live
// only in storage.
type record struct {
	tb *timebank.Progress

	ProviderID     string
	ConsumerID     string
	SurveyDeadline *time.Time
}

// role maps a user id onto their side of the exchange.
func (r *record) role(userID string) (timebank.Role, bool) {
	switch userID {
	case r.ProviderID:
		return timebank.RoleProvider, true
	case r.ConsumerID:
		return timebank.RoleConsumer, true
	}
	return "", false
}

// userID is the inverse of role.
func (r *record) userID(role timebank.Role) string {
	if role == timebank.RoleProvider {
		return r.ProviderID
	}
	return r.ConsumerID
}

var errNotFound = errors.New("progress not found")

// loadForUpdate reads a progress row inside tx with a row lock, along with
// the service kind and any pending schedule proposal from the message thread.
func loadForUpdate(ctx context.Context, tx pgx.Tx, progressID string) (*record, error) {
	p := &timebank.Progress{ID: progressID}
	rec := &record{tb: p}

	var scheduledDate, scheduledTime, agreedLocation *string
	err := tx.QueryRow(ctx,
		`SELECT p.service_id, p.application_id, p.provider_id, p.consumer_id, s.service_type,
                s.hours_required, p.hours, p.status,
                p.provider_start_confirmed, p.consumer_start_confirmed,
                p.provider_survey_submitted, p.consumer_survey_submitted,
                p.scheduled_date::text, p.scheduled_time::text, p.agreed_location, p.survey_deadline
         FROM service_progress p
         JOIN services s ON s.id = p.service_id
         WHERE p.id = $1
         FOR UPDATE OF p`, progressID,
	).Scan(&p.ServiceID, &p.ApplicationID, &rec.ProviderID, &rec.ConsumerID, &p.Kind,
		&p.HoursRequired, &p.Hours, &p.Status,
		&p.StartConfirmed.Provider, &p.StartConfirmed.Consumer,
		&p.SurveySubmitted.Provider, &p.SurveySubmitted.Consumer,
		&scheduledDate, &scheduledTime, &agreedLocation, &rec.SurveyDeadline)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errNotFound
		}
		return nil, err
	}
	if scheduledDate != nil {
		p.ScheduledDate = *scheduledDate
	}
	if scheduledTime != nil {
		p.ScheduledTime = *scheduledTime
	}
	if agreedLocation != nil {
		p.AgreedLocation = *agreedLocation
	}

	// The single pending proposal, if one exists, lives in the thread.
	var msgID, senderID, location *string
	var date, start, end *string
	err = tx.QueryRow(ctx,
		`SELECT id::text, sender_id::text, proposal_date::text, proposal_start_time::text, proposal_end_time::text, proposal_location
         FROM messages
         WHERE application_id = $1 AND message_type = 'schedule_proposal' AND proposal_status = 'pending'`,
		p.ApplicationID,
	).Scan(&msgID, &senderID, &date, &start, &end, &location)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if msgID != nil {
		sender := timebank.RoleConsumer
		if senderID != nil && *senderID == rec.ProviderID {
			sender = timebank.RoleProvider
		}
		prop := &timebank.Proposal{
			MessageID: *msgID,
			Sender:    sender,
			State:     timebank.ProposalPending,
		}
		if date != nil {
			prop.Window.Date = *date
		}
		if start != nil {
			prop.Window.Start = *start
		}
		if end != nil {
			prop.Window.End = *end
		}
		if location != nil {
			prop.Location = *location
		}
		p.Pending = prop
	}

	return rec, nil
}

// save persists the mutable workflow fields back to the row. Timestamp
// columns are advanced by the callers that own the transition.
func save(ctx context.Context, tx pgx.Tx, rec *record) error {
	p := rec.tb
	var scheduledDate, scheduledTime, agreedLocation interface{}
	if p.ScheduledDate != "" {
		scheduledDate = p.ScheduledDate
	}
	if p.ScheduledTime != "" {
		scheduledTime = p.ScheduledTime
	}
	if p.AgreedLocation != "" {
		agreedLocation = p.AgreedLocation
	}
	_, err := tx.Exec(ctx,
		`UPDATE service_progress SET
            hours = $2,
            status = $3,
            provider_start_confirmed = $4,
            consumer_start_confirmed = $5,
            provider_survey_submitted = $6,
            consumer_survey_submitted = $7,
            scheduled_date = $8,
            scheduled_time = $9,
            agreed_location = $10,
            survey_deadline = $11,
            updated_at = NOW()
         WHERE id = $1`,
		p.ID, p.Hours, string(p.Status),
		p.StartConfirmed.Provider, p.StartConfirmed.Consumer,
		p.SurveySubmitted.Provider, p.SurveySubmitted.Consumer,
		scheduledDate, scheduledTime, agreedLocation, rec.SurveyDeadline,
	)
	return err
}
