package service

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ebarangay/registry-system/internal/api/metrics"
	"github.com/ebarangay/registry-system/internal/core/domain"
	"github.com/ebarangay/registry-system/internal/core/ports"
)

const (
	readKeyPrefix    = "notifstate:read:"
	clearedKeyPrefix = "notifstate:cleared:"
	lastCleanupKey   = "notifstate:last_cleanup"

	// approvalNoticeWindow is how long a fresh approval stays visible.
	approvalNoticeWindow = 7 * 24 * time.Hour
	// reminderThreshold is how long a verification request may sit pending
	// before the resident is nudged.
	reminderThreshold = 3 * 24 * time.Hour
	// stateRetention bounds client-side growth of persisted wrappers.
	stateRetention = 30 * 24 * time.Hour
	// cleanupInterval gates the stale-state sweep.
	cleanupInterval = 24 * time.Hour
)

// persistedSet is the versioned wrapper the read/cleared sets are stored
// under. A bare JSON array is the legacy format and is migrated on load.
type persistedSet struct {
	Data      []string `json:"data"`
	Timestamp int64    `json:"timestamp"` // unix milliseconds
	UserID    string   `json:"userId"`
}

// DeriveNotifications is the pure reducer at the heart of the engine: given
// the credential record, the persisted read/cleared sets, and a clock value,
// it produces the exact alert list, already ordered for display. Identical
// inputs always produce an identical list.
func DeriveNotifications(record *domain.CredentialRecord, read, cleared map[string]struct{}, now time.Time) []domain.Notification {
	var list []domain.Notification

	add := func(t domain.NotificationType, title, message string, ts time.Time) {
		id := domain.NotificationID(t, record.ID)
		if _, isCleared := cleared[id]; isCleared {
			return
		}
		_, isRead := read[id]
		list = append(list, domain.Notification{
			ID:        id,
			Type:      t,
			Title:     title,
			Message:   message,
			Timestamp: ts,
			Read:      isRead,
		})
	}

	switch record.Status {
	case domain.StatusRejected:
		if record.RejectionReason != "" {
			add(domain.NotificationRejection, "ID Application Rejected", record.RejectionReason, requestedOrCreated(record))
		}
	case domain.StatusActive:
		if record.VerifiedDate != nil && now.Sub(*record.VerifiedDate) <= approvalNoticeWindow {
			add(domain.NotificationApproval, "ID Application Approved",
				"Your digital barangay ID "+record.IDNumber+" is now active.", *record.VerifiedDate)
		}
	case domain.StatusPendingVerification:
		since := requestedOrCreated(record)
		if now.Sub(since) > reminderThreshold {
			add(domain.NotificationReminder, "Verification Pending",
				"Your ID verification request is still awaiting review.", since)
		}
	}

	domain.SortNotifications(list)
	return list
}

func requestedOrCreated(record *domain.CredentialRecord) time.Time {
	if record.VerificationRequestDate != nil {
		return *record.VerificationRequestDate
	}
	return record.CreatedAt
}

// NotificationService wires the pure reducer to the persistence collaborator
// and tracks the last observed status per resident so a transition can
// retire alerts the new state contradicts.
type NotificationService struct {
	states ports.NotificationStateStore
	log    zerolog.Logger
	now    func() time.Time

	mu         sync.Mutex
	lastStatus map[string]domain.CredentialStatus
}

func NewNotificationService(states ports.NotificationStateStore, log zerolog.Logger) *NotificationService {
	return &NotificationService{
		states:     states,
		log:        log,
		now:        time.Now,
		lastStatus: make(map[string]domain.CredentialStatus),
	}
}

// Refresh recomputes the alert list for the record's owner. When the status
// changed since the last observation, alerts contradicted by the new status
// are moved into the cleared set so they never resurface.
func (s *NotificationService) Refresh(ctx context.Context, record *domain.CredentialRecord) ([]domain.Notification, error) {
	userID := record.UserID
	read := s.loadSet(ctx, readKeyPrefix+userID, userID)
	cleared := s.loadSet(ctx, clearedKeyPrefix+userID, userID)

	s.mu.Lock()
	prev, seen := s.lastStatus[userID]
	s.lastStatus[userID] = record.Status
	s.mu.Unlock()

	if seen && prev != record.Status {
		var retire []domain.NotificationType
		switch record.Status {
		case domain.StatusActive:
			retire = []domain.NotificationType{domain.NotificationRejection, domain.NotificationReminder}
		case domain.StatusRejected:
			retire = []domain.NotificationType{domain.NotificationApproval, domain.NotificationReminder}
		}
		if len(retire) > 0 {
			for _, t := range retire {
				id := domain.NotificationID(t, record.ID)
				cleared[id] = struct{}{}
				delete(read, id)
			}
			s.saveSet(ctx, readKeyPrefix+userID, userID, read)
			s.saveSet(ctx, clearedKeyPrefix+userID, userID, cleared)
			s.log.Info().Str("user_id", userID).
				Str("from", string(prev)).Str("to", string(record.Status)).
				Msg("retired notifications after status transition")
		}
	}

	return DeriveNotifications(record, read, cleared, s.now().UTC()), nil
}

// MarkRead records a single notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, notificationID string) error {
	read := s.loadSet(ctx, readKeyPrefix+userID, userID)
	read[notificationID] = struct{}{}
	return s.saveSet(ctx, readKeyPrefix+userID, userID, read)
}

// MarkAllRead marks every currently derivable notification as read.
func (s *NotificationService) MarkAllRead(ctx context.Context, record *domain.CredentialRecord) error {
	userID := record.UserID
	read := s.loadSet(ctx, readKeyPrefix+userID, userID)
	cleared := s.loadSet(ctx, clearedKeyPrefix+userID, userID)
	for _, n := range DeriveNotifications(record, read, cleared, s.now().UTC()) {
		read[n.ID] = struct{}{}
	}
	return s.saveSet(ctx, readKeyPrefix+userID, userID, read)
}

// Clear dismisses a single notification; its id never resurfaces until a
// status transition resets the condition.
func (s *NotificationService) Clear(ctx context.Context, userID, notificationID string) error {
	cleared := s.loadSet(ctx, clearedKeyPrefix+userID, userID)
	cleared[notificationID] = struct{}{}
	return s.saveSet(ctx, clearedKeyPrefix+userID, userID, cleared)
}

// ClearAll dismisses every currently derivable notification.
func (s *NotificationService) ClearAll(ctx context.Context, record *domain.CredentialRecord) error {
	userID := record.UserID
	read := s.loadSet(ctx, readKeyPrefix+userID, userID)
	cleared := s.loadSet(ctx, clearedKeyPrefix+userID, userID)
	for _, n := range DeriveNotifications(record, read, cleared, s.now().UTC()) {
		cleared[n.ID] = struct{}{}
	}
	return s.saveSet(ctx, clearedKeyPrefix+userID, userID, cleared)
}

// CleanupStale removes persisted wrappers older than the retention window
// across all residents. The last-cleanup gate is checked before any scan so
// repeated triggers within a day are free.
func (s *NotificationService) CleanupStale(ctx context.Context) error {
	now := s.now().UTC()
	if raw, err := s.states.Get(ctx, lastCleanupKey); err == nil && raw != "" {
		if last, parseErr := strconv.ParseInt(raw, 10, 64); parseErr == nil {
			if now.Sub(time.UnixMilli(last)) < cleanupInterval {
				return nil
			}
		}
	}

	swept := 0
	for _, pattern := range []string{readKeyPrefix + "*", clearedKeyPrefix + "*"} {
		keys, err := s.states.Keys(ctx, pattern)
		if err != nil {
			return err
		}
		for _, key := range keys {
			raw, err := s.states.Get(ctx, key)
			if err != nil || raw == "" {
				continue
			}
			var wrapper persistedSet
			if err := json.Unmarshal([]byte(raw), &wrapper); err != nil {
				// Legacy bare arrays carry no timestamp; they are migrated
				// on next load, not swept. Anything else unparseable goes.
				var legacy []string
				if json.Unmarshal([]byte(raw), &legacy) == nil {
					continue
				}
				if rmErr := s.states.Remove(ctx, key); rmErr == nil {
					swept++
				}
				continue
			}
			if now.Sub(time.UnixMilli(wrapper.Timestamp)) > stateRetention {
				if rmErr := s.states.Remove(ctx, key); rmErr == nil {
					swept++
				}
			}
		}
	}

	if err := s.states.Set(ctx, lastCleanupKey, strconv.FormatInt(now.UnixMilli(), 10)); err != nil {
		return err
	}
	if swept > 0 {
		metrics.StateKeysSweptTotal.Add(float64(swept))
		s.log.Info().Int("swept", swept).Msg("stale notification state removed")
	}
	return nil
}

// loadSet reads a persisted id set, transparently migrating the legacy
// bare-array format and falling back to an empty set on corrupted entries.
func (s *NotificationService) loadSet(ctx context.Context, key, userID string) map[string]struct{} {
	set := make(map[string]struct{})

	raw, err := s.states.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("notification state read failed, using empty set")
		return set
	}
	if raw == "" {
		return set
	}

	var wrapper persistedSet
	if err := json.Unmarshal([]byte(raw), &wrapper); err == nil {
		for _, id := range wrapper.Data {
			set[id] = struct{}{}
		}
		return set
	}

	var legacy []string
	if err := json.Unmarshal([]byte(raw), &legacy); err == nil {
		for _, id := range legacy {
			set[id] = struct{}{}
		}
		// Rewrite in the wrapper format so the next load takes the fast path.
		if err := s.saveSet(ctx, key, userID, set); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("legacy state migration failed")
		} else {
			s.log.Info().Str("key", key).Int("ids", len(legacy)).Msg("migrated legacy notification state")
		}
		return set
	}

	s.log.Warn().Str("key", key).Msg("corrupted notification state, using empty set")
	return set
}

func (s *NotificationService) saveSet(ctx context.Context, key, userID string, set map[string]struct{}) error {
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	payload, err := json.Marshal(persistedSet{
		Data:      ids,
		Timestamp: s.now().UTC().UnixMilli(),
		UserID:    userID,
	})
	if err != nil {
		return err
	}
	return s.states.Set(ctx, key, string(payload))
}
