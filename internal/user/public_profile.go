package user

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/db"
)

// GET /user/:id/profile
func GetPublicProfile(c echo.Context) error {
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing user id"})
	}

	var (
		id        string
		firstName string
		lastName  string
		biography *string
		createdAt time.Time
	)

	query := `
		SELECT id, first_name, last_name, biography, created_at
		FROM users
		WHERE id = $1 AND is_active = TRUE
	`

	err := db.Conn.QueryRow(context.Background(), query, userID).Scan(
		&id,
		&firstName,
		&lastName,
		&biography,
		&createdAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch user"})
	}

	// How much they have given and received speaks for itself
	var provided, received int
	_ = db.Conn.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM service_progress WHERE provider_id = $1 AND status = 'completed'`, userID,
	).Scan(&provided)
	_ = db.Conn.QueryRow(context.Background(),
		`SELECT COUNT(*) FROM service_progress WHERE consumer_id = $1 AND status = 'completed'`, userID,
	).Scan(&received)

	profile := echo.Map{
		"id":                id,
		"name":              firstName + " " + lastName,
		"biography":         biography,
		"services_provided": provided,
		"services_received": received,
		"created_at":        createdAt.Format(time.RFC3339),
	}

	return c.JSON(http.StatusOK, profile)
}
