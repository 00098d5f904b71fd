package progress

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/alerts"
	"github.com/hivetime/timebank/internal/db"
	"github.com/hivetime/timebank/internal/messaging"
	"github.com/hivetime/timebank/internal/timebank"
)

// =========================
// ProposeSchedule - either party suggests a time window
// =========================
func ProposeSchedule(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	progressID := c.Param("id")
	if progressID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing progress id in URL"})
	}

	var req struct {
		Date      string `json:"date"`
		StartTime string `json:"start_time"`
		EndTime   string `json:"end_time"`
		Location  string `json:"location"`
		Note      string `json:"note"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction start failed"})
	}
	defer tx.Rollback(ctx)

	rec, err := loadForUpdate(ctx, tx, progressID)
	if err != nil {
		return writeError(c, err)
	}
	role, member := rec.role(uid)
	if !member {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you are not part of this service"})
	}

	messageID := uuid.New().String()
	window := timebank.Window{Date: req.Date, Start: req.StartTime, End: req.EndTime}
	prop, opErr := rec.tb.ProposeSchedule(role, messageID, window, req.Location)
	if opErr != nil {
		return writeError(c, opErr)
	}

	body := req.Note
	if body == "" {
		body = "Schedule proposal: " + req.Date + " " + req.StartTime + "-" + req.EndTime
	}
	receiverID := rec.userID(role.Other())
	_, err = tx.Exec(ctx,
		`INSERT INTO messages (id, application_id, sender_id, receiver_id, body, message_type,
                               proposal_date, proposal_start_time, proposal_end_time, proposal_location, proposal_status, created_at)
         VALUES ($1, $2, $3, $4, $5, 'schedule_proposal', $6, $7, $8, NULLIF($9, ''), 'pending', $10)`,
		messageID, rec.tb.ApplicationID, uid, receiverID, body,
		req.Date, req.StartTime, req.EndTime, req.Location, time.Now(),
	)
	if err != nil {
		// The partial unique index on pending proposals backstops the
		// in-memory check under concurrent proposers.
		return c.JSON(http.StatusConflict, echo.Map{"error": "a schedule proposal is already pending for this application"})
	}

	if err = tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	messaging.BroadcastProposal(rec.tb.ApplicationID, messageID, "pending")

	ref := messageID
	meta := "{}"
	_ = alerts.CreateNotification(receiverID, "schedule:proposed", "New schedule proposal",
		req.Date+" "+req.StartTime+"-"+req.EndTime, &ref, &meta)

	var receiverEmail string
	_ = db.Conn.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, receiverID).Scan(&receiverEmail)
	if receiverEmail != "" {
		_ = alerts.EnqueueProposalReceived(progressID, uid, receiverID, receiverEmail,
			req.Date+" "+req.StartTime+"-"+req.EndTime)
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"message_id": messageID,
		"proposal": echo.Map{
			"date":       prop.Window.Date,
			"start_time": prop.Window.Start,
			"end_time":   prop.Window.End,
			"location":   prop.Location,
			"status":     prop.State,
		},
	})
}

// =========================
// RespondToSchedule - receiver accepts or rejects the pending proposal
// =========================
func RespondToSchedule(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	progressID := c.Param("id")
	messageID := c.Param("message_id")
	if progressID == "" || messageID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing id in URL"})
	}

	var req struct {
		Accept bool `json:"accept"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction start failed"})
	}
	defer tx.Rollback(ctx)

	rec, err := loadForUpdate(ctx, tx, progressID)
	if err != nil {
		return writeError(c, err)
	}
	role, member := rec.role(uid)
	if !member {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you are not part of this service"})
	}
	senderRole := role.Other()

	res, opErr := rec.tb.RespondToProposal(role, messageID, req.Accept)
	if opErr != nil {
		return writeError(c, opErr)
	}

	proposalStatus := "rejected"
	if res.Accepted {
		proposalStatus = "accepted"
	}
	_, err = tx.Exec(ctx,
		`UPDATE messages SET proposal_status = $2 WHERE id = $1`, messageID, proposalStatus,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update proposal"})
	}

	if err := save(ctx, tx, rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save progress"})
	}

	if res.Accepted {
		_, err = tx.Exec(ctx,
			`UPDATE service_progress SET scheduled_at = NOW() WHERE id = $1`, progressID,
		)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save progress"})
		}
	} else {
		// Rejection is terminal: the service reopens for other applicants
		// and the rejected applicant may not reapply.
		_, err = tx.Exec(ctx,
			`UPDATE services SET status = 'open', updated_at = NOW() WHERE id = $1`, rec.tb.ServiceID,
		)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to reopen service"})
		}
		_, err = tx.Exec(ctx,
			`UPDATE service_applications SET status = 'rejected', updated_at = NOW() WHERE id = $1`,
			rec.tb.ApplicationID,
		)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to close application"})
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	messaging.BroadcastProposal(rec.tb.ApplicationID, messageID, proposalStatus)

	senderID := rec.userID(senderRole)
	ref := messageID
	meta := "{}"
	title := "Your schedule proposal was " + proposalStatus
	_ = alerts.CreateNotification(senderID, "schedule:"+proposalStatus, title, "", &ref, &meta)

	var senderEmail string
	_ = db.Conn.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, senderID).Scan(&senderEmail)
	if senderEmail != "" {
		_ = alerts.EnqueueScheduleResponded(progressID, uid, senderID, senderEmail, res.Accepted)
	}

	if res.Accepted {
		return c.JSON(http.StatusOK, echo.Map{
			"message":      "schedule accepted; service is now scheduled",
			"status":       rec.tb.Status,
			"agreed_hours": res.Hours,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "schedule rejected; the exchange has been cancelled",
		"status":  rec.tb.Status,
	})
}

// =========================
// CancelProposal - sender withdraws a still-pending proposal
// =========================
func CancelProposal(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	progressID := c.Param("id")
	messageID := c.Param("message_id")
	if progressID == "" || messageID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing id in URL"})
	}

	ctx := context.Background()
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction start failed"})
	}
	defer tx.Rollback(ctx)

	rec, err := loadForUpdate(ctx, tx, progressID)
	if err != nil {
		return writeError(c, err)
	}
	role, member := rec.role(uid)
	if !member {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you are not part of this service"})
	}

	if opErr := rec.tb.CancelProposal(role, messageID); opErr != nil {
		return writeError(c, opErr)
	}

	_, err = tx.Exec(ctx,
		`UPDATE messages SET proposal_status = 'cancelled' WHERE id = $1`, messageID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update proposal"})
	}

	if err = tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	messaging.BroadcastProposal(rec.tb.ApplicationID, messageID, "cancelled")

	return c.JSON(http.StatusOK, echo.Map{"message": "proposal cancelled"})
}
