package alerts

import "time"

// Task type constants
const (
	TaskWelcomeEmail      = "email:welcome"
	TaskPasswordReset     = "email:password_reset"
	TaskProposalReceived  = "email:proposal_received"
	TaskScheduleResponded = "email:schedule_responded"
	TaskServiceStarted    = "email:service_started"
	TaskServiceFinished   = "email:service_finished"
	TaskServiceCompleted  = "email:service_completed"
	TaskMessageNew        = "email:message_new"
	TaskAdminAlert        = "email:admin_alert"
)

// Common envelope for email-like notifications
type EmailEnvelope struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Welcome email payload
type WelcomeEmailPayload struct {
	UserID   string        `json:"user_id"`
	Name     string        `json:"name"`
	Email    string        `json:"email"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}

// Password reset payload
type PasswordResetPayload struct {
	UserID    string        `json:"user_id"`
	Email     string        `json:"email"`
	ResetURL  string        `json:"reset_url"`
	Envelope  EmailEnvelope `json:"envelope"`
	Requested time.Time     `json:"requested"`
}

// ProgressEventPayload covers workflow events on a service progress:
// proposals, schedule responses, start, finish and completion.
type ProgressEventPayload struct {
	ProgressID string        `json:"progress_id"`
	SenderID   string        `json:"sender_id"`
	Recipient  string        `json:"recipient"`
	Email      string        `json:"email"`
	Hours      float64       `json:"hours,omitempty"`
	Envelope   EmailEnvelope `json:"envelope"`
	SentAt     time.Time     `json:"sent_at"`
}

// Message new payload (sent to recipient on new message)
type MessageNewPayload struct {
	ApplicationID string        `json:"application_id"`
	SenderID      string        `json:"sender_id"`
	Recipient     string        `json:"recipient"`
	Email         string        `json:"email"`
	Body          string        `json:"body"`
	Envelope      EmailEnvelope `json:"envelope"`
	SentAt        time.Time     `json:"sent_at"`
}

// Admin alert payload
type AdminAlertPayload struct {
	AdminID  string        `json:"admin_id"`
	Severity string        `json:"severity"` // info|warning|critical
	Message  string        `json:"message"`
	Envelope EmailEnvelope `json:"envelope"`
	SentAt   time.Time     `json:"sent_at"`
}
