package ports

import (
	"context"

	"github.com/ebarangay/registry-system/internal/core/domain"
)

// NotificationStateStore is the string-keyed client state collaborator the
// read/cleared sets persist into. It offers no cross-key atomicity; callers
// must tolerate partially written or corrupted values. Get returns "" for an
// absent key.
type NotificationStateStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
	// Keys lists existing keys matching a glob-style pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// NotificationService derives user-facing alerts from a credential record
// and maintains their persisted read/cleared disposition.
type NotificationService interface {
	// Refresh recomputes the alert list for the record's owner, applying
	// transition auto-cleanup against the previously observed status.
	Refresh(ctx context.Context, record *domain.CredentialRecord) ([]domain.Notification, error)

	MarkRead(ctx context.Context, userID, notificationID string) error
	MarkAllRead(ctx context.Context, record *domain.CredentialRecord) error
	Clear(ctx context.Context, userID, notificationID string) error
	ClearAll(ctx context.Context, record *domain.CredentialRecord) error

	// CleanupStale removes persisted wrappers older than the retention
	// window. Gated internally to run at most once per day.
	CleanupStale(ctx context.Context) error
}
