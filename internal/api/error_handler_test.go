package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ebarangay/registry-system/internal/core/domain"
)

func TestHTTPErrorHandler_DomainErrorMapping(t *testing.T) {
	cases := []struct {
		err      error
		wantCode int
	}{
		{domain.ErrCredentialNotFound, http.StatusNotFound},
		{domain.ErrCredentialExists, http.StatusConflict},
		{fmt.Errorf("approve from active: %w", domain.ErrInvalidTransition), http.StatusUnprocessableEntity},
		{fmt.Errorf("rejection reason is required: %w", domain.ErrValidation), http.StatusBadRequest},
		{domain.ErrForbidden, http.StatusForbidden},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("approve: %w", domain.ErrApprovalNotApplied), http.StatusBadGateway},
		{fmt.Errorf("update: %w", domain.ErrWriteMismatch), http.StatusBadGateway},
		{domain.ErrUserExists, http.StatusConflict},
		{fmt.Errorf("something broke"), http.StatusInternalServerError},
	}

	e := echo.New()
	handle := NewHTTPErrorHandler(zerolog.Nop())

	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)

		handle(tc.err, c)

		if rec.Code != tc.wantCode {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.wantCode, rec.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("%v: invalid envelope: %v", tc.err, err)
		} else if body["error"] == "" {
			t.Errorf("%v: empty error message", tc.err)
		}
	}
}

func TestHTTPErrorHandler_InternalErrorHidesCause(t *testing.T) {
	e := echo.New()
	handle := NewHTTPErrorHandler(zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	handle(fmt.Errorf("mongo: connection pool exhausted at 10.0.0.3"), c)

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid envelope: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Fatalf("internal details leaked: %q", body["error"])
	}
}
