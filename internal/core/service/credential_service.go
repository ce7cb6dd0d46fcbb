package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ebarangay/registry-system/internal/core/domain"
	"github.com/ebarangay/registry-system/internal/core/ports"
)

const defaultEnrichTimeout = 2 * time.Second

// degradedResidentName is the placeholder shown when profile enrichment
// times out or fails for a single row.
const degradedResidentName = "Unknown resident"

// CredentialService implements the digital ID verification lifecycle. Its
// four mutators are the only writers of a record's status field; everything
// goes through the SafeWriter so concurrent browser tabs and schema drift
// converge instead of corrupting the record.
type CredentialService struct {
	store         ports.DocumentStore
	writer        *SafeWriter
	residents     ports.ResidentRepository
	log           zerolog.Logger
	now           func() time.Time
	enrichTimeout time.Duration
}

func NewCredentialService(store ports.DocumentStore, writer *SafeWriter, residents ports.ResidentRepository, log zerolog.Logger) *CredentialService {
	return &CredentialService{
		store:         store,
		writer:        writer,
		residents:     residents,
		log:           log,
		now:           time.Now,
		enrichTimeout: defaultEnrichTimeout,
	}
}

// RequestGeneration creates the single credential record for the user. The
// ID number and QR payload are assigned exactly once, here.
func (s *CredentialService) RequestGeneration(ctx context.Context, userID string) (*domain.CredentialRecord, error) {
	resident, err := s.residents.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("request generation: %w", err)
	}

	existing, err := s.store.List(ctx, CollectionCredentials, []ports.Filter{{Key: fieldUserID, Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("request generation: %w", err)
	}
	if len(existing) > 0 {
		return nil, domain.ErrCredentialExists
	}

	now := s.now().UTC()
	idNumber := domain.NewIDNumber(now)
	fields := map[string]any{
		fieldUserID:     userID,
		fieldResidentID: resident.ID,
		fieldIDNumber:   idNumber,
		fieldQRCode:     domain.QRPayload(idNumber, resident.FirstName, resident.LastName, resident.BirthDate, resident.Gender, now),
		fieldStatus:     string(domain.StatusPendingGeneration),
		fieldCreatedAt:  now,
	}

	doc, err := s.store.Create(ctx, CollectionCredentials, "", fields)
	if err != nil {
		// A racing tab creating the same user's record trips the unique
		// index; report it as the same AlreadyExists the pre-check gives.
		if errors.Is(err, domain.ErrConflict) {
			return nil, domain.ErrCredentialExists
		}
		return nil, fmt.Errorf("request generation: %w", err)
	}

	s.log.Info().Str("user_id", userID).Str("id_number", idNumber).Msg("credential record generated")
	return credentialFromDocument(doc), nil
}

// RequestVerification moves a pending_generation record into
// pending_verification. A double submission that finds the record already
// pending verification returns it unchanged.
func (s *CredentialService) RequestVerification(ctx context.Context, recordID string) (*domain.CredentialRecord, error) {
	record, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if record.Status == domain.StatusPendingVerification {
		return record, nil
	}
	if !record.Status.CanTransitionTo(domain.StatusPendingVerification) {
		return nil, fmt.Errorf("request verification from %s: %w", record.Status, domain.ErrInvalidTransition)
	}

	now := s.now().UTC()
	doc, err := s.writer.Update(ctx, CollectionCredentials, recordID, map[string]any{
		fieldStatus:                  string(domain.StatusPendingVerification),
		fieldVerificationRequestDate: now,
	})
	if err != nil {
		return nil, fmt.Errorf("request verification: %w", err)
	}

	s.log.Info().Str("record_id", recordID).Msg("verification requested")
	return credentialFromDocument(doc), nil
}

// Approve activates a pending_verification record. Two concurrent approvals
// converge: the second sees the record already active and returns it as-is.
func (s *CredentialService) Approve(ctx context.Context, recordID, adminID string) (*domain.CredentialRecord, error) {
	// Re-fetch the authoritative record right before writing; the caller's
	// copy may be stale.
	record, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if record.Status == domain.StatusActive {
		s.log.Debug().Str("record_id", recordID).Msg("approve on already active record, no-op")
		return record, nil
	}
	if record.Status != domain.StatusPendingVerification {
		return nil, fmt.Errorf("approve from %s: %w", record.Status, domain.ErrInvalidTransition)
	}

	now := s.now().UTC()
	expiry := now.AddDate(domain.CredentialValidity, 0, 0)
	doc, err := s.writer.Update(ctx, CollectionCredentials, recordID, map[string]any{
		fieldStatus:       string(domain.StatusActive),
		fieldVerifiedBy:   adminID,
		fieldVerifiedDate: now,
		fieldIssuedDate:   now,
		fieldExpiryDate:   expiry,
	})
	if err != nil && !errors.Is(err, domain.ErrWriteMismatch) {
		return nil, fmt.Errorf("approve: %w", err)
	}

	// Post-write validation guards against a silent partial write.
	updated := credentialFromDocument(doc)
	if updated.Status != domain.StatusActive {
		return nil, fmt.Errorf("approve %s: status is %s: %w", recordID, updated.Status, domain.ErrApprovalNotApplied)
	}

	s.log.Info().Str("record_id", recordID).Str("admin_id", adminID).Msg("credential approved")
	return updated, nil
}

// Reject marks a pending_verification record rejected. The reason is
// mandatory; two concurrent rejections converge like approvals do.
func (s *CredentialService) Reject(ctx context.Context, recordID, adminID, reason string) (*domain.CredentialRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, fmt.Errorf("rejection reason is required: %w", domain.ErrValidation)
	}

	record, err := s.getRecord(ctx, recordID)
	if err != nil {
		return nil, err
	}

	if record.Status == domain.StatusRejected {
		s.log.Debug().Str("record_id", recordID).Msg("reject on already rejected record, no-op")
		return record, nil
	}
	if record.Status != domain.StatusPendingVerification {
		return nil, fmt.Errorf("reject from %s: %w", record.Status, domain.ErrInvalidTransition)
	}

	doc, err := s.writer.Update(ctx, CollectionCredentials, recordID, map[string]any{
		fieldStatus:          string(domain.StatusRejected),
		fieldVerifiedBy:      adminID,
		fieldRejectionReason: reason,
	})
	if err != nil && !errors.Is(err, domain.ErrWriteMismatch) {
		return nil, fmt.Errorf("reject: %w", err)
	}

	updated := credentialFromDocument(doc)
	if updated.Status != domain.StatusRejected {
		return nil, fmt.Errorf("reject %s: status is %s: %w", recordID, updated.Status, domain.ErrRejectionNotApplied)
	}

	s.log.Info().Str("record_id", recordID).Str("admin_id", adminID).Msg("credential rejected")
	return updated, nil
}

// GetByUser returns the user's credential record.
func (s *CredentialService) GetByUser(ctx context.Context, userID string) (*domain.CredentialRecord, error) {
	docs, err := s.store.List(ctx, CollectionCredentials, []ports.Filter{{Key: fieldUserID, Value: userID}})
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if len(docs) == 0 {
		return nil, domain.ErrCredentialNotFound
	}
	record := credentialFromDocument(&docs[0])
	record.Status = record.EffectiveStatus(s.now().UTC())
	return record, nil
}

// List returns all credential records with resident profiles attached. Each
// profile fetch runs under its own timeout; a slow or failing fetch degrades
// that single row to placeholder data instead of failing the batch.
func (s *CredentialService) List(ctx context.Context) ([]ports.CredentialSummary, error) {
	docs, err := s.store.List(ctx, CollectionCredentials, nil)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}

	now := s.now().UTC()
	summaries := make([]ports.CredentialSummary, 0, len(docs))
	for i := range docs {
		record := credentialFromDocument(&docs[i])
		record.Status = record.EffectiveStatus(now)
		summary := ports.CredentialSummary{Record: *record}

		enrichCtx, cancel := context.WithTimeout(ctx, s.enrichTimeout)
		resident, err := s.residents.FindByID(enrichCtx, record.ResidentID)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Str("record_id", record.ID).
				Str("resident_id", record.ResidentID).Msg("enrichment degraded")
			summary.ResidentName = degradedResidentName
			summary.Degraded = true
		} else {
			summary.ResidentName = resident.FullName()
			summary.Address = resident.Address
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func (s *CredentialService) getRecord(ctx context.Context, recordID string) (*domain.CredentialRecord, error) {
	doc, err := s.store.Get(ctx, CollectionCredentials, recordID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("fetch credential %s: %w", recordID, err)
	}
	return credentialFromDocument(doc), nil
}
