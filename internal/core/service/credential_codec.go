package service

import (
	"time"

	"github.com/ebarangay/registry-system/internal/core/domain"
	"github.com/ebarangay/registry-system/internal/core/ports"
)

// CollectionCredentials is the remote collection holding credential records.
const CollectionCredentials = "credentials"

// Attribute keys of the credentials collection.
const (
	fieldUserID                  = "user_id"
	fieldResidentID              = "resident_id"
	fieldIDNumber                = "id_number"
	fieldQRCode                  = "qr_code"
	fieldStatus                  = "status"
	fieldVerifiedBy              = "verified_by"
	fieldVerifiedDate            = "verified_date"
	fieldIssuedDate              = "issued_date"
	fieldExpiryDate              = "expiry_date"
	fieldRejectionReason         = "rejection_reason"
	fieldVerificationRequestDate = "verification_request_date"
	fieldCreatedAt               = "created_at"
)

// credentialFromDocument decodes a raw store document into a CredentialRecord.
func credentialFromDocument(doc *ports.Document) *domain.CredentialRecord {
	if doc == nil {
		return nil
	}
	f := doc.Fields
	return &domain.CredentialRecord{
		ID:                      doc.ID,
		UserID:                  asString(f[fieldUserID]),
		ResidentID:              asString(f[fieldResidentID]),
		IDNumber:                asString(f[fieldIDNumber]),
		QRCode:                  asString(f[fieldQRCode]),
		Status:                  domain.CredentialStatus(asString(f[fieldStatus])),
		VerifiedBy:              asString(f[fieldVerifiedBy]),
		VerifiedDate:            asTimePtr(f[fieldVerifiedDate]),
		IssuedDate:              asTimePtr(f[fieldIssuedDate]),
		ExpiryDate:              asTimePtr(f[fieldExpiryDate]),
		RejectionReason:         asString(f[fieldRejectionReason]),
		VerificationRequestDate: asTimePtr(f[fieldVerificationRequestDate]),
		CreatedAt:               asTime(f[fieldCreatedAt]),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asTime(v any) time.Time {
	t, _ := v.(time.Time)
	return t
}

func asTimePtr(v any) *time.Time {
	if t, ok := v.(time.Time); ok {
		return &t
	}
	return nil
}
