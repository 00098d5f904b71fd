package admin

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/db"
)

// GET /admin/stats
func Stats(c echo.Context) error {
	ctx := context.Background()

	var users, services, applications, active, completed, transfers int
	var hoursCirculating float64

	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&users)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM services`).Scan(&services)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM service_applications`).Scan(&applications)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM service_progress WHERE status IN ('selected','scheduled','in_progress','awaiting_confirmation')`).Scan(&active)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM service_progress WHERE status = 'completed'`).Scan(&completed)
	_ = db.Conn.QueryRow(ctx, `SELECT COUNT(*) FROM transfers`).Scan(&transfers)
	_ = db.Conn.QueryRow(ctx, `SELECT COALESCE(SUM(time_balance), 0) FROM users`).Scan(&hoursCirculating)

	return c.JSON(http.StatusOK, echo.Map{
		"users":               users,
		"services":            services,
		"applications":        applications,
		"active_exchanges":    active,
		"completed_exchanges": completed,
		"transfers":           transfers,
		"hours_circulating":   hoursCirculating,
	})
}
