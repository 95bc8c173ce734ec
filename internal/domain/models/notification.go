package models

import "time"

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// PriorityForStrength buckets a 0..100 strength.
func PriorityForStrength(strength int) Priority {
	switch {
	case strength < 40:
		return PriorityLow
	case strength < 70:
		return PriorityMedium
	case strength < 90:
		return PriorityHigh
	default:
		return PriorityCritical
	}
}

type NotificationState string

const (
	StateUnread   NotificationState = "unread"
	StateRead     NotificationState = "read"
	StateArchived NotificationState = "archived"
)

// Notification moves only forward: unread, read, archived.
type Notification struct {
	ID          string            `json:"id"`
	OwnerUserID string            `json:"owner_user_id"`
	SignalID    string            `json:"signal_id"`
	AssetSymbol string            `json:"asset_symbol"`
	Kind        Kind              `json:"kind"`
	Title       string            `json:"title"`
	Message     string            `json:"message"`
	Priority    Priority          `json:"priority"`
	State       NotificationState `json:"state"`
	SentAt      time.Time         `json:"sent_at"`
	ReadAt      *time.Time        `json:"read_at,omitempty"`
	ArchivedAt  *time.Time        `json:"archived_at,omitempty"`
	GroupID     string            `json:"group_id"`
}

type NotificationQuery struct {
	Limit           int
	Offset          int
	IncludeArchived bool
}

type NotificationPage struct {
	Items  []Notification `json:"items"`
	Total  int64          `json:"total"`
	Unread int64          `json:"unread"`
}

// DeliveryMessage is what a channel sends for a notification.
type DeliveryMessage struct {
	NotificationID string    `json:"notification_id"`
	UserID         string    `json:"user_id"`
	AssetSymbol    string    `json:"asset_symbol"`
	Title          string    `json:"title"`
	Message        string    `json:"message"`
	Priority       Priority  `json:"priority"`
	SentAt         time.Time `json:"sent_at"`
}

func NewDeliveryMessage(n *Notification) DeliveryMessage {
	return DeliveryMessage{
		NotificationID: n.ID,
		UserID:         n.OwnerUserID,
		AssetSymbol:    n.AssetSymbol,
		Title:          n.Title,
		Message:        n.Message,
		Priority:       n.Priority,
		SentAt:         n.SentAt,
	}
}

// MarkRead moves an unread notification to read and reports whether it changed.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.State != StateUnread {
		return false
	}
	n.State = StateRead
	n.ReadAt = &at
	return true
}

// Archive is terminal. Archiving an unread notification stamps ReadAt too.
func (n *Notification) Archive(at time.Time) bool {
	if n.State == StateArchived {
		return false
	}
	if n.ReadAt == nil {
		n.ReadAt = &at
	}
	n.State = StateArchived
	n.ArchivedAt = &at
	return true
}

// Contact holds where a user's channels deliver to.
type Contact struct {
	UserID         string    `json:"user_id"`
	Email          string    `json:"email,omitempty"`
	TelegramChatID int64     `json:"telegram_chat_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
