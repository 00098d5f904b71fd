package auth

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/hivetime/timebank/internal/alerts"
	"github.com/hivetime/timebank/internal/db"
)

type SignupRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
	FirstName string `json:"first_name" validate:"required"`
	LastName  string `json:"last_name"`
}

type SignupResponse struct {
	Token string `json:"token"`
}

// ===== Signup =====
func Signup(c echo.Context) error {
	req := new(SignupRequest)
	if err := c.Bind(req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if req.Email == "" || len(req.Password) < 6 || req.FirstName == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email, password (min 6 chars) and first name are required"})
	}

	// Hash password
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "server error"})
	}

	// Every new member starts with 1.0 hour of time balance so the exchange
	// can bootstrap.
	var userID string
	err = db.Conn.QueryRow(context.Background(), `
		INSERT INTO users (id, email, password, first_name, last_name, role, time_balance)
		VALUES ($1, $2, $3, $4, $5, 'user', 1.0)
		RETURNING id
	`, uuid.New().String(), req.Email, string(hashed), req.FirstName, req.LastName).Scan(&userID)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already exists"})
	}

	_ = alerts.EnqueueWelcomeEmail(userID, req.Email, req.FirstName)

	claims := jwt.MapClaims{
		"user_id": userID,
		"role":    "user",
		"exp":     time.Now().Add(72 * time.Hour).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(os.Getenv("JWT_SECRET")))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "token generation failed"})
	}

	return c.JSON(http.StatusOK, SignupResponse{Token: signed})
}
