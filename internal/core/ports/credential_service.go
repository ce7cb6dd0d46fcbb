package ports

import (
	"context"

	"github.com/ebarangay/registry-system/internal/core/domain"
)

// CredentialSummary is one row of the admin listing: the credential plus the
// resident profile fetched during enrichment. ResidentName degrades to a
// placeholder when the profile fetch times out or fails.
type CredentialSummary struct {
	Record       domain.CredentialRecord
	ResidentName string
	Address      string
	Degraded     bool
}

// CredentialService owns the verification lifecycle of digital ID records.
// Its four mutating operations are the only legal writers of a record's
// status field.
type CredentialService interface {
	// RequestGeneration creates the single credential record for the acting
	// user, deriving the ID number and QR payload from the resident profile.
	// Fails with domain.ErrCredentialExists when a record already exists.
	RequestGeneration(ctx context.Context, userID string) (*domain.CredentialRecord, error)

	// RequestVerification moves a pending_generation record to
	// pending_verification and stamps the request date.
	RequestVerification(ctx context.Context, recordID string) (*domain.CredentialRecord, error)

	// Approve activates a pending_verification record. Re-approving an
	// already active record is a no-op returning the current record.
	Approve(ctx context.Context, recordID, adminID string) (*domain.CredentialRecord, error)

	// Reject marks a pending_verification record rejected with a non-empty
	// reason. Re-rejecting an already rejected record is a no-op.
	Reject(ctx context.Context, recordID, adminID, reason string) (*domain.CredentialRecord, error)

	// GetByUser returns the user's credential record.
	GetByUser(ctx context.Context, userID string) (*domain.CredentialRecord, error)

	// List returns all credential records enriched with resident profiles.
	List(ctx context.Context) ([]CredentialSummary, error)
}
