package marketplace

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/db"
	"github.com/hivetime/timebank/internal/timebank"
)

// CreateService allows a user to post an offer or a need
func CreateService(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var req struct {
		ServiceType     string  `json:"service_type"`
		Title           string  `json:"title"`
		Description     string  `json:"description"`
		HoursRequired   float64 `json:"hours_required"`
		LocationType    string  `json:"location_type"`
		LocationAddress string  `json:"location_address"`
		ServiceDate     string  `json:"service_date"`
		StartTime       string  `json:"start_time"`
		EndTime         string  `json:"end_time"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "title is required"})
	}
	if req.ServiceType != string(timebank.KindOffer) && req.ServiceType != string(timebank.KindNeed) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "service_type must be 'offer' or 'need'"})
	}
	if req.LocationType == "" {
		req.LocationType = "online"
	}
	if req.LocationType != "online" && req.LocationType != "in-person" && req.LocationType != "both" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "location_type must be 'online', 'in-person' or 'both'"})
	}

	// Needs carry an exact duration; the hours may come either directly
	// or from the posted time window.
	hours := req.HoursRequired
	if req.ServiceType == string(timebank.KindNeed) && req.StartTime != "" && req.EndTime != "" {
		w := timebank.Window{Date: req.ServiceDate, Start: req.StartTime, End: req.EndTime}
		h, err := w.Hours()
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
		}
		hours = h
	}
	if hours <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "hours_required must be positive"})
	}
	if req.ServiceType == string(timebank.KindOffer) &&
		(hours < timebank.MinOfferHours || hours > timebank.MaxOfferHours) {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error": fmt.Sprintf("offers must be between %.0f and %.0f hours", timebank.MinOfferHours, timebank.MaxOfferHours),
		})
	}

	serviceID := uuid.New().String()

	var serviceDate, startTime, endTime interface{}
	if req.ServiceDate != "" {
		serviceDate = req.ServiceDate
	}
	if req.StartTime != "" {
		startTime = req.StartTime
	}
	if req.EndTime != "" {
		endTime = req.EndTime
	}

	_, err := db.Conn.Exec(context.Background(),
		`INSERT INTO services (id, user_id, service_type, title, description, hours_required, location_type, location_address, status, service_date, start_time, end_time, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), 'open', $9, $10, $11, $12)`,
		serviceID, uid, req.ServiceType, req.Title, req.Description, hours,
		req.LocationType, req.LocationAddress, serviceDate, startTime, endTime, time.Now(),
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not create service"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"service_id": serviceID,
		"message":    "service created successfully",
	})
}

// GetAllServices returns open listings with search and pagination
func GetAllServices(c echo.Context) error {
	q := c.QueryParam("q")
	serviceType := c.QueryParam("service_type")
	locationType := c.QueryParam("location_type")
	status := c.QueryParam("status")
	limit := 20
	offset := 0
	if l := c.QueryParam("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}
	if o := c.QueryParam("offset"); o != "" {
		if v, err := strconv.Atoi(o); err == nil && v >= 0 {
			offset = v
		}
	}
	if status == "" {
		status = "open"
	}

	query := `SELECT s.id, s.user_id, u.first_name || ' ' || u.last_name, s.service_type, s.title, s.description,
                     s.hours_required, s.location_type, s.status, COUNT(a.id)::int, s.created_at
              FROM services s
              JOIN users u ON u.id = s.user_id
              LEFT JOIN service_applications a ON a.service_id = s.id AND a.status = 'pending'`
	var where []string
	var args []any
	idx := 1

	where = append(where, fmt.Sprintf("s.status = $%d", idx))
	args = append(args, status)
	idx++
	if q != "" {
		where = append(where, fmt.Sprintf("(s.title ILIKE $%d OR s.description ILIKE $%d)", idx, idx+1))
		qArg := "%" + q + "%"
		args = append(args, qArg, qArg)
		idx += 2
	}
	if serviceType != "" {
		where = append(where, fmt.Sprintf("s.service_type = $%d", idx))
		args = append(args, serviceType)
		idx++
	}
	if locationType != "" {
		where = append(where, fmt.Sprintf("s.location_type = $%d", idx))
		args = append(args, locationType)
		idx++
	}

	query += " WHERE " + strings.Join(where, " AND ")
	query += " GROUP BY s.id, u.first_name, u.last_name ORDER BY s.created_at DESC"
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, offset)

	rows, err := db.Conn.Query(context.Background(), query, args...)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch services"})
	}
	defer rows.Close()

	var services []ServiceSummary
	for rows.Next() {
		var s ServiceSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.OwnerName, &s.ServiceType, &s.Title, &s.Description,
			&s.HoursRequired, &s.LocationType, &s.Status, &s.Applicants, &s.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse service record"})
		}
		services = append(services, s)
	}

	return c.JSON(http.StatusOK, echo.Map{"services": services})
}

// GetUserServices returns services created by the authenticated user
func GetUserServices(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, user_id, service_type, title, description, hours_required, location_type, location_address, status, service_date, created_at
         FROM services WHERE user_id = $1 ORDER BY created_at DESC`, uid,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch user services"})
	}
	defer rows.Close()

	var services []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.UserID, &s.ServiceType, &s.Title, &s.Description, &s.HoursRequired,
			&s.LocationType, &s.LocationAddress, &s.Status, &s.ServiceDate, &s.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse service record"})
		}
		services = append(services, s)
	}

	return c.JSON(http.StatusOK, echo.Map{"services": services})
}

// GetService returns a single listing by id
func GetService(c echo.Context) error {
	serviceID := c.Param("id")
	if serviceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing service id in URL"})
	}

	var s Service
	err := db.Conn.QueryRow(context.Background(),
		`SELECT id, user_id, service_type, title, description, hours_required, location_type, location_address, status, service_date, created_at
         FROM services WHERE id = $1`, serviceID,
	).Scan(&s.ID, &s.UserID, &s.ServiceType, &s.Title, &s.Description, &s.HoursRequired,
		&s.LocationType, &s.LocationAddress, &s.Status, &s.ServiceDate, &s.CreatedAt)
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "service not found"})
	}

	return c.JSON(http.StatusOK, s)
}

// CancelService lets the owner withdraw an open listing
func CancelService(c echo.Context) error {
	uid, ok := c.Get("user_id").(string)
	if !ok || uid == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	serviceID := c.Param("id")
	if serviceID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing service id in URL"})
	}

	tx, err := db.Conn.Begin(context.Background())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "transaction start failed"})
	}
	defer tx.Rollback(context.Background())

	res, err := tx.Exec(context.Background(),
		`UPDATE services SET status = 'cancelled', updated_at = NOW() WHERE id = $1 AND user_id = $2 AND status = 'open'`,
		serviceID, uid,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update service"})
	}
	if res.RowsAffected() == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "service not found or not open"})
	}

	_, err = tx.Exec(context.Background(),
		`UPDATE service_applications SET status = 'cancelled', updated_at = NOW() WHERE service_id = $1 AND status = 'pending'`,
		serviceID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to cancel applications"})
	}

	if err = tx.Commit(context.Background()); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "commit failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"message": "service cancelled"})
}
