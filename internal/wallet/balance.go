package wallet

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/db"
	"github.com/hivetime/timebank/internal/timebank"
)

// Balance returns the authenticated user's time balance
func Balance(c echo.Context) error {
	userID := c.Get("user_id")
	if userID == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	var balance float64
	err := db.Conn.QueryRow(context.Background(),
		`SELECT time_balance FROM users WHERE id=$1`, userID).
		Scan(&balance)

	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user_id": userID,
		"balance": balance,
		"cap":     timebank.MaxTimeBalance,
	})
}
