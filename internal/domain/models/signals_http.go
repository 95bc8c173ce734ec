package models

// Request bodies and query strings for the HTTP API.

type SignalsRequest struct {
	Assets string `query:"assets"`
	Page   int    `query:"page" default:"1" validate:"gte=1"`
	Limit  int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
}

type UserRequest struct {
	UserID string `param:"user_id" validate:"required,max=128"`
}

type AssetRuleRequest struct {
	UserID string `param:"user_id" validate:"required,max=128"`
	Asset  string `param:"asset" validate:"required,symbol"`
}

type RulePatchRequest struct {
	UserID string `param:"user_id" validate:"required,max=128"`
	Asset  string `param:"asset" validate:"omitempty,symbol"`
	RulePatch
}

type NotificationsRequest struct {
	UserID          string `param:"user_id" validate:"required,max=128"`
	Page            int    `query:"page" default:"1" validate:"gte=1"`
	Limit           int    `query:"limit" default:"20" validate:"gte=1,lte=200"`
	IncludeArchived bool   `query:"include_archived"`
}

type NotificationActionRequest struct {
	UserID string `param:"user_id" validate:"required,max=128"`
	ID     string `param:"id" validate:"required"`
}

type WatchlistAddRequest struct {
	UserID string `param:"user_id" validate:"required,max=128"`
	Asset  string `json:"asset" validate:"required,symbol"`
}

type WatchlistRemoveRequest struct {
	UserID string `param:"user_id" validate:"required,max=128"`
	Asset  string `param:"asset" validate:"required,symbol"`
}

type ContactRequest struct {
	UserID         string `param:"user_id" validate:"required,max=128"`
	Email          string `json:"email" validate:"omitempty,email"`
	TelegramChatID int64  `json:"telegram_chat_id"`
}
