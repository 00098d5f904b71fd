package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// AdminGuard rejects requests whose JWT role claim is not admin. It must run
// after JWTMiddleware, which puts the claim into the echo context.
func AdminGuard(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		role, _ := c.Get("role").(string)
		if role != "admin" {
			return c.JSON(http.StatusForbidden, echo.Map{"error": "admin access only"})
		}
		return next(c)
	}
}
