package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/db"
)

type AdminUser struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Email       string    `json:"email"`
	Role        string    `json:"role"`
	TimeBalance float64   `json:"time_balance"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// GET /admin/users
func ListUsers(c echo.Context) error {
	rows, err := db.Conn.Query(context.Background(),
		`SELECT id, first_name || ' ' || last_name, email, role, time_balance, is_active, created_at
         FROM users ORDER BY created_at DESC`,
	)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "could not fetch users"})
	}
	defer rows.Close()

	var users []AdminUser
	for rows.Next() {
		var u AdminUser
		if err := rows.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.TimeBalance, &u.IsActive, &u.CreatedAt); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to read user record"})
		}
		users = append(users, u)
	}
	return c.JSON(http.StatusOK, echo.Map{"users": users})
}

// POST /admin/users/:id/suspend
func SuspendUser(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}
	_, err := db.Conn.Exec(context.Background(), `UPDATE users SET is_active = FALSE WHERE id = $1`, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to suspend user"})
	}
	logAction(adminID, "user_suspend", "user", userID)
	return c.JSON(http.StatusOK, echo.Map{"message": "user suspended", "user_id": userID})
}

// POST /admin/users/:id/activate
func ActivateUser(c echo.Context) error {
	adminID, _ := c.Get("user_id").(string)
	userID := c.Param("id")
	if userID == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "user id required"})
	}
	_, err := db.Conn.Exec(context.Background(), `UPDATE users SET is_active = TRUE WHERE id = $1`, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to activate user"})
	}
	logAction(adminID, "user_activate", "user", userID)
	return c.JSON(http.StatusOK, echo.Map{"message": "user activated", "user_id": userID})
}

func logAction(adminID, action, targetType, targetID string) {
	_, _ = db.Conn.Exec(context.Background(),
		`INSERT INTO admin_logs (admin_id, action, target_type, target_id) VALUES ($1, $2, $3, $4)`,
		adminID, action, targetType, targetID,
	)
}
