package progress

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/hivetime/timebank/internal/timebank"
)

func TestWriteErrorStatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"validation", &timebank.ValidationError{Reason: "bad window"}, http.StatusBadRequest},
		{"status", &timebank.StatusError{Op: "confirm start", From: timebank.StatusSelected}, http.StatusBadRequest},
		{"insufficient balance", &timebank.InsufficientBalanceError{Balance: 1.0, Required: 2.0}, http.StatusBadRequest},
		{"cap exceeded", &timebank.BalanceCapExceededError{Balance: 9.0, Hours: 2.0, Cap: 10.0}, http.StatusBadRequest},
		{"permission", &timebank.PermissionError{Reason: "not yours"}, http.StatusForbidden},
		{"conflict", &timebank.ConflictError{Reason: "already pending"}, http.StatusConflict},
		{"not pending", &timebank.NotPendingError{}, http.StatusConflict},
		{"not found", errNotFound, http.StatusNotFound},
	}

	e := echo.New()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)
			if err := writeError(c, tc.err); err != nil {
				t.Fatalf("writeError returned %v", err)
			}
			if rec.Code != tc.code {
				t.Fatalf("got status %d, want %d", rec.Code, tc.code)
			}
		})
	}
}

func TestWriteErrorBalancePayload(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	err := writeError(c, &timebank.InsufficientBalanceError{Balance: 1.9, Required: 2.0})
	if err != nil {
		t.Fatalf("writeError returned %v", err)
	}
	body := rec.Body.String()
	for _, field := range []string{`"balance"`, `"required"`, `"shortfall"`} {
		if !strings.Contains(body, field) {
			t.Errorf("response missing %s: %s", field, body)
		}
	}
}
