package progress

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/timebank"
)

// writeError translates workflow errors into the response the client needs:
// the balance errors carry exact amounts, the rest map onto the usual codes.
func writeError(c echo.Context, err error) error {
	switch e := err.(type) {
	case *timebank.InsufficientBalanceError:
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":     e.Error(),
			"balance":   e.Balance,
			"required":  e.Required,
			"shortfall": e.Shortfall(),
		})
	case *timebank.BalanceCapExceededError:
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   e.Error(),
			"balance": e.Balance,
			"cap":     e.Cap,
			"excess":  e.Excess(),
		})
	case *timebank.ValidationError:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": e.Error()})
	case *timebank.StatusError:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": e.Error()})
	case *timebank.PermissionError:
		return c.JSON(http.StatusForbidden, echo.Map{"error": e.Error()})
	case *timebank.ConflictError:
		return c.JSON(http.StatusConflict, echo.Map{"error": e.Error()})
	case *timebank.NotPendingError:
		return c.JSON(http.StatusConflict, echo.Map{"error": e.Error()})
	}
	if err == errNotFound {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "progress not found"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
