package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrGlobalRuleUndeletable = errors.New("global rule cannot be deleted, reset it instead")
	ErrInvalidRule           = errors.New("invalid rule")
)

// MalformedInputError rejects an observation at the boundary.
type MalformedInputError struct {
	Field  string
	Reason string
}

func (e *MalformedInputError) Error() string {
	if e.Field == "" {
		return "malformed input: " + e.Reason
	}
	return fmt.Sprintf("malformed input: %s: %s", e.Field, e.Reason)
}

// ResolutionTimeoutError means a rule lookup ran out of time.
type ResolutionTimeoutError struct {
	UserID  string
	Asset   string
	Timeout time.Duration
	Err     error
}

func (e *ResolutionTimeoutError) Error() string {
	return fmt.Sprintf("rule resolution for user %s asset %s timed out after %s: %v", e.UserID, e.Asset, e.Timeout, e.Err)
}

func (e *ResolutionTimeoutError) Unwrap() error { return e.Err }

// ThrottleConflictError means another admit won the window first.
type ThrottleConflictError struct {
	Key     WindowKey
	Version int64
}

func (e *ThrottleConflictError) Error() string {
	return fmt.Sprintf("throttle conflict on %s at version %d", e.Key, e.Version)
}

// DeliveryChannelError is one channel failing for one notification.
type DeliveryChannelError struct {
	Channel        string
	UserID         string
	NotificationID string
	Err            error
}

func (e *DeliveryChannelError) Error() string {
	return fmt.Sprintf("deliver %s to user %s via %s: %v", e.NotificationID, e.UserID, e.Channel, e.Err)
}

func (e *DeliveryChannelError) Unwrap() error { return e.Err }

func IsMalformed(err error) bool {
	var me *MalformedInputError
	return errors.As(err, &me)
}
