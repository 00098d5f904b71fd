package messaging

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/alerts"
	"github.com/hivetime/timebank/internal/db"
)

// participants resolves the two parties of an application thread from its
// progress record and reports whether userID is one of them.
func participants(applicationID, userID string) (otherID string, found, member bool, err error) {
	var providerID, consumerID string
	err = db.Conn.QueryRow(context.Background(),
		`SELECT provider_id, consumer_id FROM service_progress WHERE application_id = $1`, applicationID,
	).Scan(&providerID, &consumerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, false, nil
		}
		return "", false, false, err
	}
	switch userID {
	case providerID:
		return consumerID, true, true, nil
	case consumerID:
		return providerID, true, true, nil
	}
	return "", true, false, nil
}

// SendMessage - either party sends a text message in an application thread
func SendMessage(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	applicationID := c.Param("id")
	if applicationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing application id"})
	}

	var body struct {
		Content string `json:"content"`
	}
	if err := c.Bind(&body); err != nil || body.Content == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid payload"})
	}

	receiverID, found, member, err := participants(applicationID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch thread"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "thread not found"})
	}
	if !member {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this thread"})
	}

	msgID := uuid.New().String()
	var createdAt time.Time
	err = db.Conn.QueryRow(context.Background(),
		`INSERT INTO messages (id, application_id, sender_id, receiver_id, body, message_type)
         VALUES ($1, $2, $3, $4, $5, 'text') RETURNING created_at`,
		msgID, applicationID, userID, receiverID, body.Content,
	).Scan(&createdAt)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send message"})
	}

	BroadcastNewMessage(applicationID, echo.Map{
		"id":             msgID,
		"application_id": applicationID,
		"sender_id":      userID,
		"receiver_id":    receiverID,
		"body":           body.Content,
		"created_at":     createdAt.UTC().Format(time.RFC3339),
	})

	// In-app notification for receiver
	ref := msgID
	meta := "{}"
	_ = alerts.CreateNotification(receiverID, "message:new", "New message on your service", body.Content, &ref, &meta)

	// Email notification (best-effort)
	var receiverEmail string
	_ = db.Conn.QueryRow(context.Background(), `SELECT email FROM users WHERE id = $1`, receiverID).Scan(&receiverEmail)
	if receiverEmail != "" {
		_ = alerts.EnqueueMessageNew(applicationID, userID, receiverEmail, receiverID, body.Content)
	}

	return c.JSON(http.StatusOK, echo.Map{"message_id": msgID})
}

// ListMessages - get the conversation for an application thread
func ListMessages(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	applicationID := c.Param("id")
	if applicationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing application id"})
	}

	_, found, member, err := participants(applicationID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch thread"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "thread not found"})
	}
	if !member {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this thread"})
	}

	// Optional since filter for incremental fetches
	sinceStr := c.QueryParam("since")
	var rows pgx.Rows
	if sinceStr != "" {
		sinceTime, perr := time.Parse(time.RFC3339, sinceStr)
		if perr != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid since timestamp, use RFC3339"})
		}
		rows, err = db.Conn.Query(context.Background(),
			`SELECT id, sender_id, receiver_id, body, message_type,
                    proposal_date::text, proposal_start_time::text, proposal_end_time::text, proposal_location, proposal_status,
                    created_at, read_at
             FROM messages WHERE application_id = $1 AND created_at > $2 ORDER BY created_at ASC`, applicationID, sinceTime,
		)
	} else {
		rows, err = db.Conn.Query(context.Background(),
			`SELECT id, sender_id, receiver_id, body, message_type,
                    proposal_date::text, proposal_start_time::text, proposal_end_time::text, proposal_location, proposal_status,
                    created_at, read_at
             FROM messages WHERE application_id = $1 ORDER BY created_at ASC`, applicationID,
		)
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to list messages"})
	}
	defer rows.Close()

	type message struct {
		ID          string      `json:"id"`
		SenderID    string      `json:"sender_id"`
		ReceiverID  string      `json:"receiver_id"`
		Body        string      `json:"body"`
		MessageType string      `json:"message_type"`
		Proposal    interface{} `json:"proposal,omitempty"`
		CreatedAt   string      `json:"created_at"`
		ReadAt      interface{} `json:"read_at"`
	}

	var msgs []message
	for rows.Next() {
		var m message
		var propDate, propStart, propEnd, propLocation, propStatus *string
		var createdAt time.Time
		var readAt *time.Time
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.MessageType,
			&propDate, &propStart, &propEnd, &propLocation, &propStatus,
			&createdAt, &readAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		m.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		if readAt != nil {
			m.ReadAt = readAt.UTC().Format(time.RFC3339)
		}
		if m.MessageType == "schedule_proposal" {
			m.Proposal = echo.Map{
				"date":       propDate,
				"start_time": propStart,
				"end_time":   propEnd,
				"location":   propLocation,
				"status":     propStatus,
			}
		}
		msgs = append(msgs, m)
	}

	return c.JSON(http.StatusOK, echo.Map{"messages": msgs})
}

// UnreadCount - unread messages for the current user in a thread
func UnreadCount(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	applicationID := c.Param("id")
	if applicationID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing application id"})
	}

	_, found, member, err := participants(applicationID, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch thread"})
	}
	if !found {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "thread not found"})
	}
	if !member {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not a participant in this thread"})
	}

	var count int64
	err = db.Conn.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM messages WHERE application_id = $1 AND receiver_id = $2 AND read_at IS NULL`,
		applicationID, userID,
	).Scan(&count)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to compute unread count"})
	}

	return c.JSON(http.StatusOK, echo.Map{"unread": count})
}

// MarkMessageRead - receiver marks a specific message as read
func MarkMessageRead(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	applicationID := c.Param("id")
	msgID := c.Param("message_id")
	if applicationID == "" || msgID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing application or message id"})
	}

	var receiverID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT receiver_id FROM messages WHERE id = $1 AND application_id = $2`, msgID, applicationID,
	).Scan(&receiverID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "message not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch message"})
	}
	if receiverID != userID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "not the receiver"})
	}

	var readTS time.Time
	err = db.Conn.QueryRow(context.Background(),
		`UPDATE messages SET read_at = NOW() WHERE id = $1 AND receiver_id = $2 RETURNING read_at`, msgID, userID,
	).Scan(&readTS)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to mark read"})
	}

	BroadcastMessageRead(applicationID, echo.Map{
		"message_id":     msgID,
		"application_id": applicationID,
		"user_id":        userID,
		"read_at":        readTS.UTC().Format(time.RFC3339),
	})

	return c.JSON(http.StatusOK, echo.Map{"message_id": msgID, "read_at": readTS.UTC().Format(time.RFC3339)})
}
