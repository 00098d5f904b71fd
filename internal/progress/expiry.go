package progress

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/db"
)

// StartSweeper runs the hourly pass that closes exchanges whose survey
// deadline has lapsed. The balance transfer already happened at start, so
// the sweep only finalizes statuses.
func StartSweeper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := sweepExpired(context.Background())
				if err != nil {
					log.Printf("[sweeper] pass failed: %v", err)
					continue
				}
				if n > 0 {
					log.Printf("[sweeper] auto-completed %d expired exchange(s)", n)
				}
			}
		}
	}()
}

// sweepExpired force-completes every awaiting_confirmation row whose
// deadline passed, filling the missing survey flags so the record reads as
// fully confirmed.
func sweepExpired(ctx context.Context) (int, error) {
	tx, err := db.Conn.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx,
		`SELECT id::text, service_id::text FROM service_progress
         WHERE status = 'awaiting_confirmation' AND survey_deadline IS NOT NULL AND survey_deadline < NOW()
         FOR UPDATE SKIP LOCKED`,
	)
	if err != nil {
		return 0, err
	}
	type expired struct{ id, serviceID string }
	var batch []expired
	for rows.Next() {
		var e expired
		if err := rows.Scan(&e.id, &e.serviceID); err != nil {
			rows.Close()
			return 0, err
		}
		batch = append(batch, e)
	}
	rows.Close()

	for _, e := range batch {
		_, err = tx.Exec(ctx,
			`UPDATE service_progress SET
                status = 'completed',
                provider_survey_submitted = TRUE,
                consumer_survey_submitted = TRUE,
                completed_at = NOW(),
                updated_at = NOW()
             WHERE id = $1`, e.id,
		)
		if err != nil {
			return 0, err
		}
		_, err = tx.Exec(ctx,
			`UPDATE services SET status = 'completed', updated_at = NOW() WHERE id = $1`, e.serviceID,
		)
		if err != nil {
			return 0, err
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(batch), nil
}

// SweepExpired lets an admin run the pass on demand
func SweepExpired(c echo.Context) error {
	n, err := sweepExpired(context.Background())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "sweep failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"message":   "sweep complete",
		"completed": n,
	})
}
