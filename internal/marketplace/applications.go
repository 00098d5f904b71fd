package marketplace

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
	"github.com/hivetime/timebank/internal/timebank"
)

// =========================
// Apply - user applies to take part in a service
// =========================
func Apply(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	serviceID := c.Param("id")
	if serviceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing service id in URL"})
	}

	var req struct {
		Message string `json:"message"`
	}
	_ = c.Bind(&req)

	var ownerID, status string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT user_id, status FROM services WHERE id = $1`, serviceID,
	).Scan(&ownerID, &status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch service"})
	}
	if ownerID == uid {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot apply to your own service"})
	}
	if status != "open" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "service is not open for applications"})
	}

	// A prior rejection bars reapplication; a live application blocks a duplicate.
	var priorStatus string
	err = db.Conn.QueryRow(context.Background(),
		`SELECT status FROM service_applications
         WHERE service_id = $1 AND applicant_id = $2
         ORDER BY applied_at DESC LIMIT 1`, serviceID, uid,
	).Scan(&priorStatus)
	if err == nil {
		switch priorStatus {
		case "rejected":
			return c.JSON(http.StatusForbidden, echo.Map{"error": "you cannot reapply to this service"})
		case "pending", "accepted":
			return c.JSON(http.StatusConflict, echo.Map{"error": "you already applied to this service"})
		}
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to check applications"})
	}

	appID := uuid.New().String()
	_, err = db.Conn.Exec(context.Background(),
		`INSERT INTO service_applications (id, service_id, applicant_id, status, message, applied_at)
         VALUES ($1, $2, $3, 'pending', NULLIF($4, ''), $5)`,
		appID, serviceID, uid, req.Message, time.Now(),
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create application"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"application_id": appID,
		"message":        "application submitted",
	})
}

// =========================
// WithdrawApplication - applicant withdraws a pending application
// =========================
func WithdrawApplication(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	appID := c.Param("id")
	if appID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing application id in URL"})
	}

	res, err := db.Conn.Exec(context.Background(),
		`UPDATE service_applications SET status = 'withdrawn', updated_at = NOW()
         WHERE id = $1 AND applicant_id = $2 AND status = 'pending'`,
		appID, uid,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update application"})
	}
	if res.RowsAffected() == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "application not found or not pending"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "application withdrawn"})
}

// =========================
// AcceptApplication - service owner selects an applicant
// =========================
func AcceptApplication(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	appID := c.Param("id")
	if appID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing application id in URL"})
	}

	var serviceID, applicantID, appStatus string
	var ownerID, serviceType, serviceStatus string
	var hoursRequired float64
	err := db.Conn.QueryRow(context.Background(),
		`SELECT a.service_id, a.applicant_id, a.status, s.user_id, s.service_type, s.status, s.hours_required
         FROM service_applications a
         JOIN services s ON s.id = a.service_id
         WHERE a.id = $1`, appID,
	).Scan(&serviceID, &applicantID, &appStatus, &ownerID, &serviceType, &serviceStatus, &hoursRequired)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "application not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch application"})
	}

	if ownerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the service owner can accept applications"})
	}
	if appStatus != "pending" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "application not pending"})
	}
	if serviceStatus != "open" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "service is not open"})
	}

	// Who gives hours and who spends them depends on the listing kind:
	// for an offer the owner provides, for a need the applicant does.
	providerID := ownerID
	consumerID := applicantID
	if serviceType == string(timebank.KindNeed) {
		providerID = applicantID
		consumerID = ownerID
	}

	tx, err := db.Conn.Begin(context.Background())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction start failed"})
	}
	defer tx.Rollback(context.Background())

	_, err = tx.Exec(context.Background(),
		`UPDATE service_applications SET status = 'accepted', updated_at = NOW() WHERE id = $1`, appID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to accept application"})
	}

	_, err = tx.Exec(context.Background(),
		`UPDATE service_applications SET status = 'rejected', updated_at = NOW()
         WHERE service_id = $1 AND id <> $2 AND status = 'pending'`,
		serviceID, appID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to close sibling applications"})
	}

	_, err = tx.Exec(context.Background(),
		`UPDATE services SET status = 'in_progress', updated_at = NOW() WHERE id = $1`, serviceID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update service status"})
	}

	progressID := uuid.New().String()
	_, err = tx.Exec(context.Background(),
		`INSERT INTO service_progress (id, service_id, application_id, provider_id, consumer_id, hours, status, selected_at)
         VALUES ($1, $2, $3, $4, $5, $6, 'selected', $7)`,
		progressID, serviceID, appID, providerID, consumerID, hoursRequired, time.Now(),
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create progress record"})
	}

	if err = tx.Commit(context.Background()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	// Notify applicant of selection (best-effort)
	var applicantEmail string
	_ = db.Conn.QueryRow(context.Background(), `SELECT email FROM users WHERE id = $1`, applicantID).Scan(&applicantEmail)
	if applicantEmail != "" {
		_ = alerts.EnqueueProposalReceived(progressID, uid, applicantID, applicantEmail, "you were selected; propose a schedule to continue")
	}

	return c.JSON(http.StatusOK, echo.Map{
		"progress_id": progressID,
		"message":     "application accepted",
	})
}

// =========================
// RejectApplication - service owner turns down an applicant
// =========================
func RejectApplication(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	appID := c.Param("id")
	if appID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing application id in URL"})
	}

	res, err := db.Conn.Exec(context.Background(),
		`UPDATE service_applications a SET status = 'rejected', updated_at = NOW()
         FROM services s
         WHERE a.id = $1 AND s.id = a.service_id AND s.user_id = $2 AND a.status = 'pending'`,
		appID, uid,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update application"})
	}
	if res.RowsAffected() == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "application not found or not pending"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "application rejected"})
}

// =========================
// GetServiceApplications - owner lists applicants for a service
// =========================
func GetServiceApplications(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	serviceID := c.Param("id")
	if serviceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing service id in URL"})
	}

	var ownerID string
	err := db.Conn.QueryRow(context.Background(),
		`SELECT user_id FROM services WHERE id = $1`, serviceID,
	).Scan(&ownerID)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
	}
	if ownerID != uid {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "only the service owner can view applications"})
	}

	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, service_id, applicant_id, status, message, applied_at
         FROM service_applications WHERE service_id = $1 ORDER BY applied_at ASC`, serviceID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch applications"})
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.ServiceID, &a.ApplicantID, &a.Status, &a.Message, &a.AppliedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		apps = append(apps, a)
	}

	return c.JSON(http.StatusOK, echo.Map{"applications": apps})
}

// =========================
// GetUserApplications - fetch applications the user submitted
// =========================
func GetUserApplications(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, service_id, applicant_id, status, message, applied_at
         FROM service_applications WHERE applicant_id = $1 ORDER BY applied_at DESC`, uid,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch applications"})
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var a Application
		if err := rows.Scan(&a.ID, &a.ServiceID, &a.ApplicantID, &a.Status, &a.Message, &a.AppliedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		apps = append(apps, a)
	}

	return c.JSON(http.StatusOK, echo.Map{"applications": apps})
}
