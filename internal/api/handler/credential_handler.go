package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ebarangay/registry-system/internal/api/metrics"
	"github.com/ebarangay/registry-system/internal/core/domain"
	"github.com/ebarangay/registry-system/internal/core/ports"
)

// CredentialHandler handles HTTP requests for the digital ID lifecycle.
type CredentialHandler struct {
	service ports.CredentialService
}

func NewCredentialHandler(service ports.CredentialService) *CredentialHandler {
	return &CredentialHandler{service: service}
}

// Generate handles POST /v1/credentials.
//
// @Summary      Generate the caller's digital ID record
// @Tags         credentials
// @Produce      json
// @Security     BearerAuth
// @Success      201  {object}  credentialResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Router       /v1/credentials [post]
func (h *CredentialHandler) Generate(c echo.Context) error {
	_, userID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	record, err := h.service.RequestGeneration(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	metrics.CredentialsGeneratedTotal.Inc()
	return c.JSON(http.StatusCreated, toCredentialResponse(record))
}

// GetMine handles GET /v1/credentials/me.
//
// @Summary      Get the caller's digital ID record
// @Tags         credentials
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  credentialResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Router       /v1/credentials/me [get]
func (h *CredentialHandler) GetMine(c echo.Context) error {
	_, userID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	record, err := h.service.GetByUser(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toCredentialResponse(record))
}

// RequestVerification handles POST /v1/credentials/:id/request-verification.
// Residents may only submit their own record; admins may submit any.
//
// @Summary      Submit a record for verification
// @Tags         credentials
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Credential record id"
// @Success      200  {object}  credentialResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Router       /v1/credentials/{id}/request-verification [post]
func (h *CredentialHandler) RequestVerification(c echo.Context) error {
	role, userID, err := ctxClaims(c)
	if err != nil {
		return err
	}
	recordID := c.Param("id")

	if role != domain.RoleAdmin {
		own, err := h.service.GetByUser(c.Request().Context(), userID)
		if err != nil {
			return err
		}
		if own.ID != recordID {
			return domain.ErrForbidden
		}
	}

	record, err := h.service.RequestVerification(c.Request().Context(), recordID)
	if err != nil {
		return err
	}

	metrics.VerificationRequestsTotal.Inc()
	return c.JSON(http.StatusOK, toCredentialResponse(record))
}

// Approve handles POST /v1/credentials/:id/approve.
//
// @Summary      Approve a pending verification request
// @Tags         credentials
// @Produce      json
// @Security     BearerAuth
// @Param        id   path      string  true  "Credential record id"
// @Success      200  {object}  credentialResponse
// @Failure      401  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      422  {object}  errorResponse
// @Failure      502  {object}  errorResponse
// @Router       /v1/credentials/{id}/approve [post]
func (h *CredentialHandler) Approve(c echo.Context) error {
	_, adminID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	record, err := h.service.Approve(c.Request().Context(), c.Param("id"), adminID)
	if err != nil {
		return err
	}

	metrics.VerificationDecisionsTotal.WithLabelValues("approved").Inc()
	return c.JSON(http.StatusOK, toCredentialResponse(record))
}

// Reject handles POST /v1/credentials/:id/reject.
//
// @Summary      Reject a pending verification request
// @Tags         credentials
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id    path      string         true  "Credential record id"
// @Param        body  body      rejectRequest  true  "Rejection reason"
// @Success      200   {object}  credentialResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      422   {object}  errorResponse
// @Failure      502   {object}  errorResponse
// @Router       /v1/credentials/{id}/reject [post]
func (h *CredentialHandler) Reject(c echo.Context) error {
	_, adminID, err := ctxClaims(c)
	if err != nil {
		return err
	}

	var req rejectRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	record, err := h.service.Reject(c.Request().Context(), c.Param("id"), adminID, req.Reason)
	if err != nil {
		return err
	}

	metrics.VerificationDecisionsTotal.WithLabelValues("rejected").Inc()
	return c.JSON(http.StatusOK, toCredentialResponse(record))
}

// List handles GET /v1/credentials.
//
// @Summary      List all credential records with resident profiles
// @Tags         credentials
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  listCredentialsResponse
// @Failure      401  {object}  errorResponse
// @Failure      403  {object}  errorResponse
// @Router       /v1/credentials [get]
func (h *CredentialHandler) List(c echo.Context) error {
	if _, _, err := ctxClaims(c); err != nil {
		return err
	}

	summaries, err := h.service.List(c.Request().Context())
	if err != nil {
		return err
	}

	rows := make([]credentialSummaryResponse, 0, len(summaries))
	for i := range summaries {
		rows = append(rows, credentialSummaryResponse{
			credentialResponse: toCredentialResponse(&summaries[i].Record),
			ResidentName:       summaries[i].ResidentName,
			Address:            summaries[i].Address,
			Degraded:           summaries[i].Degraded,
		})
	}
	return c.JSON(http.StatusOK, listCredentialsResponse{Data: rows, Total: len(rows)})
}

func toCredentialResponse(r *domain.CredentialRecord) credentialResponse {
	return credentialResponse{
		ID:                      r.ID,
		UserID:                  r.UserID,
		IDNumber:                r.IDNumber,
		QRCode:                  r.QRCode,
		Status:                  string(r.Status),
		VerifiedBy:              r.VerifiedBy,
		VerifiedDate:            r.VerifiedDate,
		IssuedDate:              r.IssuedDate,
		ExpiryDate:              r.ExpiryDate,
		RejectionReason:         r.RejectionReason,
		VerificationRequestDate: r.VerificationRequestDate,
		CreatedAt:               r.CreatedAt,
	}
}
