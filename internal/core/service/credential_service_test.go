package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ebarangay/registry-system/internal/core/domain"
)

// ---------------------------------------------------------------------------
// In-memory stub resident repository
// ---------------------------------------------------------------------------

type stubResidentRepo struct {
	byID   map[string]*domain.Resident
	byUser map[string]*domain.Resident
	block  bool // when set, lookups hang until the context expires
}

func newStubResidentRepo() *stubResidentRepo {
	return &stubResidentRepo{
		byID:   make(map[string]*domain.Resident),
		byUser: make(map[string]*domain.Resident),
	}
}

func (r *stubResidentRepo) add(res *domain.Resident) {
	r.byID[res.ID] = res
	r.byUser[res.UserID] = res
}

func (r *stubResidentRepo) FindByID(ctx context.Context, id string) (*domain.Resident, error) {
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	res, ok := r.byID[id]
	if !ok {
		return nil, domain.ErrResidentNotFound
	}
	clone := *res
	return &clone, nil
}

func (r *stubResidentRepo) FindByUserID(ctx context.Context, userID string) (*domain.Resident, error) {
	if r.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	res, ok := r.byUser[userID]
	if !ok {
		return nil, domain.ErrResidentNotFound
	}
	clone := *res
	return &clone, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)

func newCredentialFixture(t *testing.T) (*stubDocStore, *stubResidentRepo, *CredentialService) {
	t.Helper()
	store := newStubDocStore()
	residents := newStubResidentRepo()
	residents.add(&domain.Resident{
		ID:        "res_1",
		UserID:    "user_1",
		FirstName: "Juan",
		LastName:  "Santos",
		BirthDate: time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC),
		Gender:    "male",
		Address:   "Purok 3, Zone 2",
	})
	writer, _ := newTestWriter(store)
	svc := NewCredentialService(store, writer, residents, zerolog.Nop())
	svc.now = func() time.Time { return fixedNow }
	return store, residents, svc
}

func seedCredential(store *stubDocStore, id string, status domain.CredentialStatus, extra map[string]any) {
	fields := map[string]any{
		fieldUserID:     "user_1",
		fieldResidentID: "res_1",
		fieldIDNumber:   "BRG-2025-123456",
		fieldQRCode:     "EBRGY2025123456JUANSANTOS199036M",
		fieldStatus:     string(status),
		fieldCreatedAt:  fixedNow.AddDate(0, 0, -10),
	}
	for k, v := range extra {
		fields[k] = v
	}
	store.seed(id, fields)
}

// ---------------------------------------------------------------------------
// RequestGeneration tests
// ---------------------------------------------------------------------------

func TestCredentialService_RequestGeneration_Success(t *testing.T) {
	store, _, svc := newCredentialFixture(t)

	record, err := svc.RequestGeneration(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ok, _ := regexp.MatchString(`^BRG-\d{4}-\d{6}$`, record.IDNumber); !ok {
		t.Errorf("id number format wrong: %s", record.IDNumber)
	}
	if !strings.HasPrefix(record.QRCode, "EBRGY") {
		t.Errorf("qr payload must start with EBRGY, got %s", record.QRCode)
	}
	if record.Status != domain.StatusPendingGeneration {
		t.Errorf("expected status %q, got %q", domain.StatusPendingGeneration, record.Status)
	}
	if record.UserID != "user_1" || record.ResidentID != "res_1" {
		t.Errorf("ownership fields wrong: %+v", record)
	}
	if store.createCalls != 1 {
		t.Errorf("expected exactly 1 create, got %d", store.createCalls)
	}
}

func TestCredentialService_RequestGeneration_QRReproducible(t *testing.T) {
	_, _, svc := newCredentialFixture(t)

	record, err := svc.RequestGeneration(context.Background(), "user_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := domain.QRPayload(record.IDNumber, "Juan", "Santos",
		time.Date(1990, 5, 10, 0, 0, 0, 0, time.UTC), "male", fixedNow)
	if record.QRCode != want {
		t.Errorf("qr payload not reproducible: got %q, want %q", record.QRCode, want)
	}
}

func TestCredentialService_RequestGeneration_AlreadyExists(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingGeneration, nil)

	_, err := svc.RequestGeneration(context.Background(), "user_1")
	if !errors.Is(err, domain.ErrCredentialExists) {
		t.Fatalf("expected ErrCredentialExists, got %v", err)
	}
	if store.createCalls != 0 {
		t.Errorf("no create call may happen, got %d", store.createCalls)
	}
}

func TestCredentialService_RequestGeneration_RacingCreateConflict(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	store.createErr = domain.ErrConflict

	_, err := svc.RequestGeneration(context.Background(), "user_1")
	if !errors.Is(err, domain.ErrCredentialExists) {
		t.Fatalf("a store conflict must surface as AlreadyExists, got %v", err)
	}
}

func TestCredentialService_RequestGeneration_NoResident(t *testing.T) {
	_, _, svc := newCredentialFixture(t)

	_, err := svc.RequestGeneration(context.Background(), "user_unknown")
	if !errors.Is(err, domain.ErrResidentNotFound) {
		t.Fatalf("expected ErrResidentNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// RequestVerification tests
// ---------------------------------------------------------------------------

func TestCredentialService_RequestVerification_Success(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingGeneration, nil)

	record, err := svc.RequestVerification(context.Background(), "cred_1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Status != domain.StatusPendingVerification {
		t.Errorf("expected pending_verification, got %s", record.Status)
	}
	if record.VerificationRequestDate == nil || !record.VerificationRequestDate.Equal(fixedNow) {
		t.Errorf("verification request date not stamped: %v", record.VerificationRequestDate)
	}
}

func TestCredentialService_RequestVerification_DoubleSubmissionSafe(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingGeneration, nil)

	if _, err := svc.RequestVerification(context.Background(), "cred_1"); err != nil {
		t.Fatalf("first submission failed: %v", err)
	}
	writesAfterFirst := store.updateCalls

	record, err := svc.RequestVerification(context.Background(), "cred_1")
	if err != nil {
		t.Fatalf("double submission must be safe, got %v", err)
	}
	if record.Status != domain.StatusPendingVerification {
		t.Errorf("expected pending_verification, got %s", record.Status)
	}
	if store.updateCalls != writesAfterFirst {
		t.Errorf("double submission must not write again: %d → %d", writesAfterFirst, store.updateCalls)
	}
}

func TestCredentialService_RequestVerification_InvalidFromActive(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusActive, nil)

	_, err := svc.RequestVerification(context.Background(), "cred_1")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCredentialService_RequestVerification_NotFound(t *testing.T) {
	_, _, svc := newCredentialFixture(t)

	_, err := svc.RequestVerification(context.Background(), "missing")
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Approve tests
// ---------------------------------------------------------------------------

func TestCredentialService_Approve_Success(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingVerification, nil)

	record, err := svc.Approve(context.Background(), "cred_1", "admin1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Status != domain.StatusActive {
		t.Fatalf("expected active, got %s", record.Status)
	}
	if record.VerifiedBy != "admin1" {
		t.Errorf("verified_by: expected admin1, got %q", record.VerifiedBy)
	}
	if record.VerifiedDate == nil || record.IssuedDate == nil {
		t.Fatal("verified_date and issued_date must be set on an active record")
	}
	if record.ExpiryDate == nil || !record.ExpiryDate.Equal(fixedNow.AddDate(5, 0, 0)) {
		t.Errorf("expiry must be issued date + 5 years, got %v", record.ExpiryDate)
	}
	if record.RejectionReason != "" {
		t.Errorf("rejection reason must stay empty on an active record, got %q", record.RejectionReason)
	}
}

func TestCredentialService_Approve_Idempotent(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingVerification, nil)

	first, err := svc.Approve(context.Background(), "cred_1", "admin1")
	if err != nil {
		t.Fatalf("first approve failed: %v", err)
	}
	writesAfterFirst := store.updateCalls

	// A second admin tab approving on stale local data converges on the
	// same active record without a second write.
	second, err := svc.Approve(context.Background(), "cred_1", "admin1")
	if err != nil {
		t.Fatalf("second approve must be a no-op, got %v", err)
	}
	if second.Status != domain.StatusActive {
		t.Errorf("expected active, got %s", second.Status)
	}
	if !second.VerifiedDate.Equal(*first.VerifiedDate) {
		t.Errorf("second approve must return the original approval data")
	}
	if store.updateCalls != writesAfterFirst {
		t.Errorf("second approve must not write: %d → %d", writesAfterFirst, store.updateCalls)
	}
}

func TestCredentialService_Approve_InvalidFromPendingGeneration(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingGeneration, nil)

	_, err := svc.Approve(context.Background(), "cred_1", "admin1")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCredentialService_Approve_InvalidFromRejected(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusRejected, map[string]any{
		fieldRejectionReason: "Incomplete documents",
	})

	_, err := svc.Approve(context.Background(), "cred_1", "admin1")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestCredentialService_Approve_PartialWriteDetected(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingVerification, nil)

	// The store acknowledges the write but silently keeps the old status.
	store.echo = func(fields map[string]any) map[string]any {
		fields[fieldStatus] = string(domain.StatusPendingVerification)
		return fields
	}

	_, err := svc.Approve(context.Background(), "cred_1", "admin1")
	if !errors.Is(err, domain.ErrApprovalNotApplied) {
		t.Fatalf("expected ErrApprovalNotApplied, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Reject tests
// ---------------------------------------------------------------------------

func TestCredentialService_Reject_EmptyReason(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingVerification, nil)

	for _, reason := range []string{"", "   ", "\t\n"} {
		_, err := svc.Reject(context.Background(), "cred_1", "admin1", reason)
		if !errors.Is(err, domain.ErrValidation) {
			t.Errorf("reason %q: expected ErrValidation, got %v", reason, err)
		}
	}
	if store.updateCalls != 0 {
		t.Errorf("no write may happen on a validation failure, got %d", store.updateCalls)
	}
}

func TestCredentialService_Reject_Success(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingVerification, nil)

	record, err := svc.Reject(context.Background(), "cred_1", "admin1", "  Incomplete documents  ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if record.Status != domain.StatusRejected {
		t.Fatalf("expected rejected, got %s", record.Status)
	}
	if record.RejectionReason != "Incomplete documents" {
		t.Errorf("reason must be trimmed, got %q", record.RejectionReason)
	}
	if record.VerifiedBy != "admin1" {
		t.Errorf("verified_by: expected admin1, got %q", record.VerifiedBy)
	}
	if record.VerifiedDate != nil {
		t.Errorf("verified_date must stay unset on a rejected record, got %v", record.VerifiedDate)
	}
}

func TestCredentialService_Reject_Idempotent(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingVerification, nil)

	if _, err := svc.Reject(context.Background(), "cred_1", "admin1", "Incomplete documents"); err != nil {
		t.Fatalf("first reject failed: %v", err)
	}
	writesAfterFirst := store.updateCalls

	record, err := svc.Reject(context.Background(), "cred_1", "admin2", "Different reason")
	if err != nil {
		t.Fatalf("second reject must be a no-op, got %v", err)
	}
	if record.RejectionReason != "Incomplete documents" {
		t.Errorf("second reject must not overwrite the original reason, got %q", record.RejectionReason)
	}
	if store.updateCalls != writesAfterFirst {
		t.Errorf("second reject must not write: %d → %d", writesAfterFirst, store.updateCalls)
	}
}

func TestCredentialService_Reject_InvalidFromActive(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusActive, nil)

	_, err := svc.Reject(context.Background(), "cred_1", "admin1", "reason")
	if !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// GetByUser / List tests
// ---------------------------------------------------------------------------

func TestCredentialService_GetByUser_NotFound(t *testing.T) {
	_, _, svc := newCredentialFixture(t)

	_, err := svc.GetByUser(context.Background(), "user_1")
	if !errors.Is(err, domain.ErrCredentialNotFound) {
		t.Fatalf("expected ErrCredentialNotFound, got %v", err)
	}
}

func TestCredentialService_List_EnrichesWithResident(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingVerification, nil)

	summaries, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].ResidentName != "Juan Santos" {
		t.Errorf("expected enriched name, got %q", summaries[0].ResidentName)
	}
	if summaries[0].Degraded {
		t.Error("row must not be degraded when the profile resolves")
	}
}

func TestCredentialService_List_DegradesMissingResident(t *testing.T) {
	store, _, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingVerification, map[string]any{
		fieldResidentID: "res_gone",
	})

	summaries, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("a single failed enrichment must not fail the batch: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if summaries[0].ResidentName != degradedResidentName {
		t.Errorf("expected placeholder name, got %q", summaries[0].ResidentName)
	}
	if !summaries[0].Degraded {
		t.Error("row must be flagged degraded")
	}
}

func TestCredentialService_List_PerRecordTimeout(t *testing.T) {
	store, residents, svc := newCredentialFixture(t)
	seedCredential(store, "cred_1", domain.StatusPendingVerification, nil)
	residents.block = true
	svc.enrichTimeout = 10 * time.Millisecond

	done := make(chan struct{})
	go func() {
		defer close(done)
		rows, err := svc.List(context.Background())
		if err != nil {
			t.Errorf("timeout must degrade the row, not fail the batch: %v", err)
			return
		}
		if len(rows) != 1 || !rows[0].Degraded {
			t.Errorf("expected one degraded row, got %+v", rows)
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listing blocked instead of applying the per-record timeout")
	}
}
