package wallet

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/db"
)

type Transfer struct {
	ID        string    `json:"id"`
	Hours     float64   `json:"hours"`
	Direction string    `json:"direction"`
	Reference *string   `json:"reference,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Transactions returns the user's hour transfer ledger, newest first
func Transactions(c echo.Context) error {
	userID, ok := c.Get("user_id").(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, hours, direction, reference::text, created_at
         FROM transfers WHERE user_id = $1 ORDER BY created_at DESC`, userID,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to fetch transfers"})
	}
	defer rows.Close()

	var items []Transfer
	for rows.Next() {
		var t Transfer
		if err := rows.Scan(&t.ID, &t.Hours, &t.Direction, &t.Reference, &t.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to parse record"})
		}
		items = append(items, t)
	}

	return c.JSON(http.StatusOK, echo.Map{"transfers": items})
}
