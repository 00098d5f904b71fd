package user

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/db"
)

type UpdateProfileRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
	Biography   string `json:"biography"`
}

// PATCH /user/profile
func UpdateProfile(c echo.Context) error {
	userIDVal := c.Get("user_id")
	userID, ok := userIDVal.(string)
	if !ok || userID == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or missing token"})
	}

	var req UpdateProfileRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	query := `
		UPDATE users
		SET first_name = COALESCE(NULLIF($1, ''), first_name),
		    last_name = COALESCE(NULLIF($2, ''), last_name),
		    phone_number = COALESCE(NULLIF($3, ''), phone_number),
		    biography = COALESCE(NULLIF($4, ''), biography)
		WHERE id = $5
	`
	_, err := db.Conn.Exec(c.Request().Context(), query, req.FirstName, req.LastName, req.PhoneNumber, req.Biography, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update profile"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"message": "profile updated successfully",
	})
}
