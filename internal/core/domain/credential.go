package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// CredentialStatus represents the lifecycle state of a digital barangay ID.
type CredentialStatus string

const (
	StatusPendingGeneration   CredentialStatus = "pending_generation"
	StatusPendingVerification CredentialStatus = "pending_verification"
	StatusActive              CredentialStatus = "active"
	StatusRejected            CredentialStatus = "rejected"
	StatusExpired             CredentialStatus = "expired"
)

// validTransitions defines the allowed state machine transitions.
// Expired is reached by the clock, not by an operation, so it has no edge
// here. Rejected has no outgoing edge: there is no re-submission path.
var validTransitions = map[CredentialStatus][]CredentialStatus{
	StatusPendingGeneration:   {StatusPendingVerification},
	StatusPendingVerification: {StatusActive, StatusRejected},
}

var ErrCredentialNotFound = errors.New("credential not found")
var ErrCredentialExists = errors.New("credential already exists")
var ErrResidentNotFound = errors.New("resident not found")
var ErrInvalidTransition = errors.New("invalid status transition")
var ErrValidation = errors.New("validation failed")
var ErrApprovalNotApplied = errors.New("approval was not applied by the store")
var ErrRejectionNotApplied = errors.New("rejection was not applied by the store")
var ErrForbidden = errors.New("access forbidden")

// Document store error classes. The update protocol keys its retry ladder
// off these; the store implementation wraps its raw errors into them.
var ErrNotFound = errors.New("document not found")
var ErrConflict = errors.New("document conflict")
var ErrSchemaMismatch = errors.New("attribute not in collection schema")
var ErrNoValidAttributes = errors.New("no valid attributes left after schema filtering")
var ErrWriteMismatch = errors.New("store echoed different values than written")
var ErrUnauthorized = errors.New("session expired or unauthorized")

// CanTransitionTo reports whether a transition from current status to next is valid.
func (s CredentialStatus) CanTransitionTo(next CredentialStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CredentialValidity is how long an approved ID stays valid.
const CredentialValidity = 5 // years

// CredentialRecord is the authoritative remote document describing a
// resident's digital ID and its verification status.
//
// Invariants, held by the state machine (the only writer of Status):
//   - exactly one record per UserID
//   - RejectionReason is non-empty iff Status == rejected
//   - VerifiedBy/VerifiedDate/IssuedDate/ExpiryDate are set iff Status == active
type CredentialRecord struct {
	ID                      string           `json:"id" bson:"_id,omitempty"`
	UserID                  string           `json:"user_id" bson:"user_id"`
	ResidentID              string           `json:"resident_id" bson:"resident_id"`
	IDNumber                string           `json:"id_number" bson:"id_number"`
	QRCode                  string           `json:"qr_code" bson:"qr_code"`
	Status                  CredentialStatus `json:"status" bson:"status"`
	VerifiedBy              string           `json:"verified_by,omitempty" bson:"verified_by,omitempty"`
	VerifiedDate            *time.Time       `json:"verified_date,omitempty" bson:"verified_date,omitempty"`
	IssuedDate              *time.Time       `json:"issued_date,omitempty" bson:"issued_date,omitempty"`
	ExpiryDate              *time.Time       `json:"expiry_date,omitempty" bson:"expiry_date,omitempty"`
	RejectionReason         string           `json:"rejection_reason,omitempty" bson:"rejection_reason,omitempty"`
	VerificationRequestDate *time.Time       `json:"verification_request_date,omitempty" bson:"verification_request_date,omitempty"`
	CreatedAt               time.Time        `json:"created_at" bson:"created_at"`
}

// EffectiveStatus applies the clock to the stored status: an active record
// past its expiry date reads as expired. Nothing writes expired back to the
// store; it is derived on every read.
func (r *CredentialRecord) EffectiveStatus(now time.Time) CredentialStatus {
	if r.Status == StatusActive && r.ExpiryDate != nil && now.After(*r.ExpiryDate) {
		return StatusExpired
	}
	return r.Status
}

// NewIDNumber returns an ID number in the format BRG-<year>-<6-digit suffix>.
// The suffix is the high-resolution clock truncated to six digits; collisions
// are accepted and backstopped by the unique index on id_number.
func NewIDNumber(now time.Time) string {
	return fmt.Sprintf("BRG-%d-%06d", now.Year(), now.UnixNano()%1_000_000)
}

// QRPayload derives the QR code content for an ID. It is a pure function of
// its inputs and must stay byte-for-byte reproducible: scanners validate
// printed cards against it.
func QRPayload(idNumber, firstName, lastName string, birthDate time.Time, gender string, now time.Time) string {
	var b strings.Builder
	b.WriteString("EBRGY")
	for _, r := range idNumber {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	b.WriteString(strings.ToUpper(firstName + lastName))
	b.WriteString(fmt.Sprintf("%d", birthDate.Year()))
	b.WriteString(fmt.Sprintf("%02d", AgeAt(birthDate, now)))
	b.WriteString(genderCode(gender))
	return b.String()
}

// AgeAt returns full years elapsed between birthDate and now.
func AgeAt(birthDate, now time.Time) int {
	age := now.Year() - birthDate.Year()
	if now.Month() < birthDate.Month() ||
		(now.Month() == birthDate.Month() && now.Day() < birthDate.Day()) {
		age--
	}
	if age < 0 {
		age = 0
	}
	return age
}

func genderCode(gender string) string {
	switch strings.ToLower(strings.TrimSpace(gender)) {
	case "male", "m":
		return "M"
	case "female", "f":
		return "F"
	default:
		return "X"
	}
}
