package alerts

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hibiken/asynq"
)

// ensureClient returns a usable client instance
func ensureClient() *asynq.Client {
	if client == nil {
		Init()
	}
	return client
}

func enqueue(taskType string, payload interface{}, queue string) error {
	b, _ := json.Marshal(payload)
	task := asynq.NewTask(taskType, b)
	_, err := ensureClient().Enqueue(task, asynq.Queue(queue))
	return err
}

// EnqueueWelcomeEmail schedules a welcome email to the user
func EnqueueWelcomeEmail(userID, email, name string) error {
	base := os.Getenv("APP_URL")
	if base == "" {
		base = "http://localhost:3000"
	}
	base = strings.TrimRight(base, "/")

	subject := fmt.Sprintf("Welcome to the hive, %s!", name)
	body := fmt.Sprintf("Hi %s, thanks for joining. You start with 1.0 hour of time balance to spend on your first service.\n\nOpen the app: %s", name, base)

	env := EmailEnvelope{To: email, Subject: subject, Body: body}
	return enqueue(TaskWelcomeEmail, WelcomeEmailPayload{UserID: userID, Name: name, Email: email, Envelope: env, SentAt: time.Now()}, "emails")
}

// EnqueuePasswordReset schedules a password reset notification
func EnqueuePasswordReset(userID, email, resetURL, name string) error {
	expiry := os.Getenv("PASSWORD_RESET_EXP_MINUTES")
	if expiry == "" {
		expiry = "30"
	}
	subject := "Password reset instructions"
	body := fmt.Sprintf("Hello %s,\n\nWe received a request to reset your password.\n\nTo proceed, open the link below:\n%s\n\nThis link expires in %s minutes. If you did not request this, no action is required.", name, resetURL, expiry)

	env := EmailEnvelope{To: email, Subject: subject, Body: body}
	return enqueue(TaskPasswordReset, PasswordResetPayload{UserID: userID, Email: email, ResetURL: resetURL, Envelope: env, Requested: time.Now()}, "emails")
}

// EnqueueProposalReceived notifies the other party that a schedule was proposed
func EnqueueProposalReceived(progressID, senderID, recipientID, email, when string) error {
	env := EmailEnvelope{
		To:      email,
		Subject: "New schedule proposal",
		Body:    fmt.Sprintf("A schedule has been proposed for your service: %s. Open the progress page to accept or reject it.", when),
	}
	return enqueue(TaskProposalReceived, ProgressEventPayload{ProgressID: progressID, SenderID: senderID, Recipient: recipientID, Email: email, Envelope: env, SentAt: time.Now()}, "emails")
}

// EnqueueScheduleResponded notifies the proposer of the accept/reject outcome
func EnqueueScheduleResponded(progressID, senderID, recipientID, email string, accepted bool) error {
	subject := "Your schedule proposal was accepted"
	body := "Your proposed schedule was accepted. The service is now scheduled; confirm the start when you meet."
	if !accepted {
		subject = "Your schedule proposal was rejected"
		body = "Your proposed schedule was rejected. The service has been cancelled and reopened to other applicants."
	}
	env := EmailEnvelope{To: email, Subject: subject, Body: body}
	return enqueue(TaskScheduleResponded, ProgressEventPayload{ProgressID: progressID, SenderID: senderID, Recipient: recipientID, Email: email, Envelope: env, SentAt: time.Now()}, "emails")
}

// EnqueueServiceStarted notifies both-confirmed start and the hour transfer
func EnqueueServiceStarted(progressID, senderID, recipientID, email string, hours float64) error {
	env := EmailEnvelope{
		To:      email,
		Subject: "Service started",
		Body:    fmt.Sprintf("Both parties confirmed the start. %.1f hour(s) have been transferred.", hours),
	}
	return enqueue(TaskServiceStarted, ProgressEventPayload{ProgressID: progressID, SenderID: senderID, Recipient: recipientID, Email: email, Hours: hours, Envelope: env, SentAt: time.Now()}, "emails")
}

// EnqueueServiceFinished prompts the other party for their completion survey
func EnqueueServiceFinished(progressID, senderID, recipientID, email string) error {
	env := EmailEnvelope{
		To:      email,
		Subject: "Service marked as finished",
		Body:    "The provider marked the service as finished. Please submit your confirmation survey within 24 hours.",
	}
	return enqueue(TaskServiceFinished, ProgressEventPayload{ProgressID: progressID, SenderID: senderID, Recipient: recipientID, Email: email, Envelope: env, SentAt: time.Now()}, "emails")
}

// EnqueueServiceCompleted notifies both parties that the exchange closed
func EnqueueServiceCompleted(progressID, senderID, recipientID, email string, hours float64) error {
	env := EmailEnvelope{
		To:      email,
		Subject: "Service completed",
		Body:    fmt.Sprintf("Both confirmations are in. The %.1f hour exchange is complete. Thank you!", hours),
	}
	return enqueue(TaskServiceCompleted, ProgressEventPayload{ProgressID: progressID, SenderID: senderID, Recipient: recipientID, Email: email, Hours: hours, Envelope: env, SentAt: time.Now()}, "emails")
}

// EnqueueMessageNew notifies the recipient of a new thread message
func EnqueueMessageNew(applicationID, senderID, email, recipientID, body string) error {
	env := EmailEnvelope{
		To:      email,
		Subject: "New message on your service",
		Body:    body,
	}
	return enqueue(TaskMessageNew, MessageNewPayload{ApplicationID: applicationID, SenderID: senderID, Recipient: recipientID, Email: email, Body: body, Envelope: env, SentAt: time.Now()}, "emails")
}

// EnqueueAdminAlert sends an alert to admins
func EnqueueAdminAlert(adminID, severity, message string) error {
	to := os.Getenv("ADMIN_ALERT_EMAIL")
	if to == "" {
		to = "admin@timebank.local"
	}
	env := EmailEnvelope{To: to, Subject: "Admin Alert", Body: message}
	return enqueue(TaskAdminAlert, AdminAlertPayload{AdminID: adminID, Severity: severity, Message: message, Envelope: env, SentAt: time.Now()}, "alerts")
}
