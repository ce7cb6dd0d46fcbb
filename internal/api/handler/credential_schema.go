package handler

import "time"

// errorResponse is the standard error envelope returned on all 4xx/5xx responses.
type errorResponse struct {
	Error string `json:"error"`
}

// --- Request / Response types ---

type rejectRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type credentialResponse struct {
	ID                      string     `json:"id"`
	UserID                  string     `json:"user_id"`
	IDNumber                string     `json:"id_number"`
	QRCode                  string     `json:"qr_code"`
	Status                  string     `json:"status"`
	VerifiedBy              string     `json:"verified_by,omitempty"`
	VerifiedDate            *time.Time `json:"verified_date,omitempty"`
	IssuedDate              *time.Time `json:"issued_date,omitempty"`
	ExpiryDate              *time.Time `json:"expiry_date,omitempty"`
	RejectionReason         string     `json:"rejection_reason,omitempty"`
	VerificationRequestDate *time.Time `json:"verification_request_date,omitempty"`
	CreatedAt               time.Time  `json:"created_at"`
}

// credentialSummaryResponse is the admin listing row: credential fields plus
// the enriched resident profile. degraded marks rows whose profile fetch
// failed and fell back to placeholder data.
type credentialSummaryResponse struct {
	credentialResponse
	ResidentName string `json:"resident_name"`
	Address      string `json:"address,omitempty"`
	Degraded     bool   `json:"degraded,omitempty"`
}

type listCredentialsResponse struct {
	Data  []credentialSummaryResponse `json:"data"`
	Total int                         `json:"total"`
}

type notificationResponse struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Read      bool      `json:"read"`
}

type listNotificationsResponse struct {
	Data   []notificationResponse `json:"data"`
	Unread int                    `json:"unread"`
}
