package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/alerts"
	"github.com/hivetime/timebank/internal/db"
	"github.com/hivetime/timebank/internal/timebank"
)

// surveyWindow is how long both parties have to confirm completion before
// the sweeper closes the exchange on their behalf.
const surveyWindow = 24 * time.Hour

// =========================
// GetProgress - either party views the workflow state
// =========================
func GetProgress(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	progressID := c.Param("id")
	if progressID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing progress id in URL"})
	}

	var serviceID, applicationID, providerID, consumerID, serviceType, title, status string
	var hours float64
	var providerStart, consumerStart, providerSurvey, consumerSurvey bool
	var scheduledDate, scheduledTime, agreedLocation *string
	var surveyDeadline, startedAt, completedAt *time.Time
	err := db.Conn.QueryRow(context.Background(),
		`SELECT p.service_id, p.application_id, p.provider_id, p.consumer_id, s.service_type, s.title,
                p.hours, p.status,
                p.provider_start_confirmed, p.consumer_start_confirmed,
                p.provider_survey_submitted, p.consumer_survey_submitted,
                p.scheduled_date::text, p.scheduled_time::text, p.agreed_location,
                p.survey_deadline, p.started_at, p.completed_at
         FROM service_progress p
         JOIN services s ON s.id = p.service_id
         WHERE p.id = $1 OR p.application_id = $1`, progressID,
	).Scan(&serviceID, &applicationID, &providerID, &consumerID, &serviceType, &title,
		&hours, &status,
		&providerStart, &consumerStart, &providerSurvey, &consumerSurvey,
		&scheduledDate, &scheduledTime, &agreedLocation,
		&surveyDeadline, &startedAt, &completedAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "progress not found"})
	}

	if uid != providerID && uid != consumerID {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you are not part of this service"})
	}

	role := timebank.RoleConsumer
	otherID := providerID
	if uid == providerID {
		role = timebank.RoleProvider
		otherID = consumerID
	}
	var otherName string
	_ = db.Conn.QueryRow(context.Background(),
		`SELECT first_name || ' ' || last_name FROM users WHERE id = $1`, otherID,
	).Scan(&otherName)

	return c.JSON(http.StatusOK, echo.Map{
		"id":             progressID,
		"service_id":     serviceID,
		"application_id": applicationID,
		"service_title":  title,
		"service_type":   serviceType,
		"status":         status,
		"hours":          hours,
		"your_role":      role,
		"other_party":    echo.Map{"id": otherID, "name": otherName},
		"start_confirmed": echo.Map{
			"provider": providerStart,
			"consumer": consumerStart,
		},
		"survey_submitted": echo.Map{
			"provider": providerSurvey,
			"consumer": consumerSurvey,
		},
		"scheduled_date":  scheduledDate,
		"scheduled_time":  scheduledTime,
		"agreed_location": agreedLocation,
		"survey_deadline": surveyDeadline,
		"started_at":      startedAt,
		"completed_at":    completedAt,
	})
}

// =========================
// GetUserProgress - all workflow records the user takes part in
// =========================
func GetUserProgress(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(),
		`SELECT p.id, p.service_id, s.title, s.service_type, p.hours, p.status,
                p.scheduled_date::text, p.scheduled_time::text, p.updated_at,
                CASE WHEN p.provider_id = $1 THEN 'provider' ELSE 'consumer' END
         FROM service_progress p
         JOIN services s ON s.id = p.service_id
         WHERE p.provider_id = $1 OR p.consumer_id = $1
         ORDER BY p.updated_at DESC`, uid,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch progress records"})
	}
	defer rows.Close()

	var items []map[string]interface{}
	for rows.Next() {
		var id, serviceID, title, serviceType, status, role string
		var hours float64
		var schedDate, schedTime *string
		var updatedAt time.Time
		if err := rows.Scan(&id, &serviceID, &title, &serviceType, &hours, &status,
			&schedDate, &schedTime, &updatedAt, &role); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		items = append(items, map[string]interface{}{
			"id":             id,
			"service_id":     serviceID,
			"service_title":  title,
			"service_type":   serviceType,
			"hours":          hours,
			"status":         status,
			"your_role":      role,
			"scheduled_date": schedDate,
			"scheduled_time": schedTime,
			"updated_at":     updatedAt,
		})
	}

	return c.JSON(http.StatusOK, echo.Map{"progress": items})
}

// =========================
// ConfirmStart - either party confirms the service has started
// =========================
func ConfirmStart(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	progressID := c.Param("id")
	if progressID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing progress id in URL"})
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

	// Lock both balances for the duration of the guard and transfer.
	var balances timebank.Balances
	rows, err := tx.Query(ctx,
		`SELECT id::text, time_balance FROM users WHERE id IN ($1, $2) ORDER BY id FOR UPDATE`,
		rec.ProviderID, rec.ConsumerID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to lock balances"})
	}
	for rows.Next() {
		var id string
		var bal float64
		if err := rows.Scan(&id, &bal); err != nil {
			rows.Close()
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read balances"})
		}
		if id == rec.ProviderID {
			balances.Provider = bal
		} else {
			balances.Consumer = bal
		}
	}
	rows.Close()

	res, opErr := rec.tb.ConfirmStart(role, balances)
	if opErr != nil {
		// A joint-guard failure rolls back a previously persisted flag,
		// so that reset must be committed before reporting the error.
		switch opErr.(type) {
		case *timebank.InsufficientBalanceError, *timebank.BalanceCapExceededError:
			if err := save(ctx, tx, rec); err == nil {
				_ = syncConfirmTimestamps(ctx, tx, progressID)
				_ = tx.Commit(ctx)
			}
		}
		return writeError(c, opErr)
	}

	if err := save(ctx, tx, rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save progress"})
	}
	if err := syncConfirmTimestamps(ctx, tx, progressID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save progress"})
	}

	if res.BothConfirmed {
		hours := res.Transfer.Hours
		_, err = tx.Exec(ctx,
			`UPDATE users SET time_balance = time_balance - $1 WHERE id = $2`,
			hours, rec.ConsumerID,
		)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to debit consumer"})
		}
		_, err = tx.Exec(ctx,
			`UPDATE users SET time_balance = time_balance + $1 WHERE id = $2`,
			hours, rec.ProviderID,
		)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to credit provider"})
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO transfers (id, user_id, hours, direction, reference, created_at)
             VALUES ($1, $2, $3, 'debit', $4, NOW()), ($5, $6, $3, 'credit', $4, NOW())`,
			uuid.New().String(), rec.ConsumerID, hours, progressID,
			uuid.New().String(), rec.ProviderID,
		)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record transfer"})
		}
		_, err = tx.Exec(ctx,
			`UPDATE service_progress SET started_at = NOW() WHERE id = $1`, progressID,
		)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save progress"})
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	if res.BothConfirmed {
		notifyBoth(rec, func(id, email string) {
			_ = alerts.EnqueueServiceStarted(progressID, uid, id, email, res.Transfer.Hours)
		})
		return c.JSON(http.StatusOK, echo.Map{
			"message":           "both parties confirmed; service started",
			"status":            rec.tb.Status,
			"hours_transferred": res.Transfer.Hours,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "start confirmed; waiting for the other party",
		"status":  rec.tb.Status,
	})
}

// =========================
// MarkFinished - provider declares the work done
// =========================
func MarkFinished(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	progressID := c.Param("id")
	if progressID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing progress id in URL"})
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

	if err := rec.tb.MarkFinished(role); err != nil {
		return writeError(c, err)
	}
	deadline := time.Now().Add(surveyWindow)
	rec.SurveyDeadline = &deadline

	if err := save(ctx, tx, rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save progress"})
	}
	if err = tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	// Prompt the consumer for their survey (best-effort)
	var consumerEmail string
	_ = db.Conn.QueryRow(ctx, `SELECT email FROM users WHERE id = $1`, rec.ConsumerID).Scan(&consumerEmail)
	if consumerEmail != "" {
		_ = alerts.EnqueueServiceFinished(progressID, uid, rec.ConsumerID, consumerEmail)
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message":         "service marked as finished",
		"status":          rec.tb.Status,
		"survey_deadline": deadline.UTC().Format(time.RFC3339),
	})
}

// =========================
// SubmitSurvey - one party confirms completion
// =========================
func SubmitSurvey(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	progressID := c.Param("id")
	if progressID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing progress id in URL"})
	}

	var req struct {
		Rating   int    `json:"rating"`
		Feedback string `json:"feedback"`
	}
	_ = c.Bind(&req)
	if req.Rating != 0 && (req.Rating < 1 || req.Rating > 5) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "rating must be between 1 and 5"})
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

	res, opErr := rec.tb.SubmitSurvey(role)
	if opErr != nil {
		return writeError(c, opErr)
	}

	if err := save(ctx, tx, rec); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save progress"})
	}

	surveyData, _ := json.Marshal(map[string]interface{}{
		"rating":   req.Rating,
		"feedback": req.Feedback,
	})
	column := "consumer_survey_data"
	tsColumn := "consumer_survey_submitted_at"
	if role == timebank.RoleProvider {
		column = "provider_survey_data"
		tsColumn = "provider_survey_submitted_at"
	}
	_, err = tx.Exec(ctx,
		`UPDATE service_progress SET `+column+` = $2, `+tsColumn+` = NOW() WHERE id = $1`,
		progressID, surveyData,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save survey"})
	}

	if res.Completed {
		_, err = tx.Exec(ctx,
			`UPDATE service_progress SET completed_at = NOW() WHERE id = $1`, progressID,
		)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save progress"})
		}
		_, err = tx.Exec(ctx,
			`UPDATE services SET status = 'completed', updated_at = NOW() WHERE id = $1`, rec.tb.ServiceID,
		)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to close service"})
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	if res.Completed {
		notifyBoth(rec, func(id, email string) {
			_ = alerts.EnqueueServiceCompleted(progressID, uid, id, email, rec.tb.Hours)
		})
		return c.JSON(http.StatusOK, echo.Map{
			"message": "both confirmations received; service completed",
			"status":  rec.tb.Status,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message": "survey submitted; waiting for the other party",
		"status":  rec.tb.Status,
	})
}

// syncConfirmTimestamps keeps the per-role confirmation timestamps aligned
// with the flags, clearing them when a joint-guard failure resets the gate.
func syncConfirmTimestamps(ctx context.Context, tx pgx.Tx, progressID string) error {
	_, err := tx.Exec(ctx,
		`UPDATE service_progress SET
            provider_start_confirmed_at = CASE WHEN provider_start_confirmed THEN COALESCE(provider_start_confirmed_at, NOW()) ELSE NULL END,
            consumer_start_confirmed_at = CASE WHEN consumer_start_confirmed THEN COALESCE(consumer_start_confirmed_at, NOW()) ELSE NULL END
         WHERE id = $1`, progressID,
	)
	return err
}

// notifyBoth emails provider and consumer (best-effort)
func notifyBoth(rec *record, send func(userID, email string)) {
	for _, id := range []string{rec.ProviderID, rec.ConsumerID} {
		var email string
		_ = db.Conn.QueryRow(context.Background(), `SELECT email FROM users WHERE id = $1`, id).Scan(&email)
		if email != "" {
			send(id, email)
		}
	}
}
