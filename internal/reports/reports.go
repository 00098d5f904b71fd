package reports

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/alerts"
	"github.com/hivetime/timebank/internal/db"
)

type Report struct {
	ID             string     `json:"id"`
	ReporterID     string     `json:"reporter_id"`
	ReportedUserID *string    `json:"reported_user_id,omitempty"`
	ContentType    string     `json:"content_type"`
	ContentID      *string    `json:"content_id,omitempty"`
	Reason         string     `json:"reason"`
	Description    *string    `json:"description,omitempty"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// ReportIssue lets a user flag a service, message, user or progress record.
// A user may report the same piece of content once.
func ReportIssue(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		ContentType    string `json:"content_type"`
		ContentID      string `json:"content_id"`
		ReportedUserID string `json:"reported_user_id"`
		Reason         string `json:"reason"`
		Description    string `json:"description"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	switch req.ContentType {
	case "service", "message", "user", "progress":
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "content_type must be service, message, user or progress"})
	}
	if req.Reason == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "reason is required"})
	}

	reportID := uuid.New().String()
	var contentID, reportedUserID interface{}
	if req.ContentID != "" {
		contentID = req.ContentID
	}
	if req.ReportedUserID != "" {
		reportedUserID = req.ReportedUserID
	}

	_, err := db.Conn.Exec(context.Background(),
		`INSERT INTO reports (id, reporter_id, reported_user_id, content_type, content_id, reason, description, status, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), 'open', $8)`,
		reportID, uid, reportedUserID, req.ContentType, contentID, req.Reason, req.Description, time.Now(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return c.JSON(http.StatusConflict, echo.Map{"error": "you already reported this content"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create report"})
	}

	_ = alerts.EnqueueAdminAlert(uid, "warning", "New "+req.ContentType+" report: "+req.Reason)

	return c.JSON(http.StatusCreated, echo.Map{
		"report_id": reportID,
		"message":   "report submitted",
	})
}

// ListReports - admin view of reports, optionally filtered by status
func ListReports(c echo.Context) error {
	status := c.QueryParam("status")
	if status == "" {
		status = "open"
	}

	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, reporter_id, reported_user_id::text, content_type, content_id::text, reason, description, status, created_at, resolved_at
         FROM reports WHERE status = $1 ORDER BY created_at ASC`, status,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch reports"})
	}
	defer rows.Close()

	var items []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.ReporterID, &r.ReportedUserID, &r.ContentType, &r.ContentID,
			&r.Reason, &r.Description, &r.Status, &r.CreatedAt, &r.ResolvedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		items = append(items, r)
	}

	return c.JSON(http.StatusOK, echo.Map{"reports": items})
}

// ResolveReport - admin resolves or dismisses a report
func ResolveReport(c echo.Context) error {
	adminID, ok := c.Get("user_id").(string)
	if !ok || adminID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	reportID := c.Param("id")
	if reportID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing report id in URL"})
	}

	var req struct {
		Outcome string `json:"outcome"`
		Notes   string `json:"notes"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Outcome != "resolved" && req.Outcome != "dismissed" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "outcome must be 'resolved' or 'dismissed'"})
	}

	res, err := db.Conn.Exec(context.Background(),
		`UPDATE reports SET status = $2, resolved_by = $3, resolved_at = NOW(), resolution_notes = NULLIF($4, '')
         WHERE id = $1 AND status = 'open'`,
		reportID, req.Outcome, adminID, req.Notes,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update report"})
	}
	if res.RowsAffected() == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "report not found or already handled"})
	}

	_, _ = db.Conn.Exec(context.Background(),
		`INSERT INTO admin_logs (admin_id, action, target_type, target_id)
         VALUES ($1, $2, 'report', $3)`,
		adminID, "report_"+req.Outcome, reportID,
	)

	return c.JSON(http.StatusOK, echo.Map{"message": "report " + req.Outcome})
}
