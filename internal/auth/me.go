package auth

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/db"
)

// Me returns the currently authenticated user's profile
func Me(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var id, email, firstName, lastName, role string
	var timeBalance float64
	err := db.Conn.QueryRow(context.Background(),
		`SELECT id, email, first_name, last_name, role, time_balance FROM users WHERE id=$1`, userID).
		Scan(&id, &email, &firstName, &lastName, &role, &timeBalance)

	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"id":           id,
		"email":        email,
		"first_name":   firstName,
		"last_name":    lastName,
		"role":         role,
		"time_balance": timeBalance,
	})
}
