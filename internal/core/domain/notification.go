package domain

import (
	"sort"
	"time"
)

// NotificationType classifies a derived alert.
type NotificationType string

const (
	NotificationRejection NotificationType = "rejection"
	NotificationApproval  NotificationType = "approval"
	NotificationReminder  NotificationType = "reminder"
	NotificationInfo      NotificationType = "info"
)

// typePriority orders notification types for display (lower shows first).
var typePriority = map[NotificationType]int{
	NotificationRejection: 1,
	NotificationApproval:  2,
	NotificationReminder:  3,
	NotificationInfo:      4,
}

// Notification is a user-facing alert computed from the current credential
// record. It is never stored remotely; its ID is deterministic so the
// client-held read/cleared sets survive recomputation.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
}

// NotificationID builds the stable identifier "<type>-<credentialRecordID>".
func NotificationID(t NotificationType, recordID string) string {
	return string(t) + "-" + recordID
}

// SortNotifications orders alerts for display: unread before read, then by
// type priority, then newest first.
func SortNotifications(list []Notification) {
	sort.SliceStable(list, func(i, j int) bool {
		if list[i].Read != list[j].Read {
			return !list[i].Read
		}
		pi, pj := typePriority[list[i].Type], typePriority[list[j].Type]
		if pi != pj {
			return pi < pj
		}
		return list[i].Timestamp.After(list[j].Timestamp)
	})
}
