package models

import (
	"fmt"
	"time"
)

// WindowKey identifies one throttle window.
type WindowKey struct {
	UserID      string
	AssetSymbol string
	Kind        Kind
}

func (k WindowKey) String() string {
	return fmt.Sprintf("%s:%s:%s", k.UserID, k.AssetSymbol, k.Kind)
}

// DispatchWindow records the last permitted fire for a key. Version 0 means
// the window does not exist yet.
type DispatchWindow struct {
	Key         WindowKey `json:"-"`
	LastFiredAt time.Time `json:"last_fired_at"`
	WindowEnd   time.Time `json:"window_end"`
	Version     int64     `json:"version"`
}

// Open reports whether the window still suppresses fires at now.
func (w *DispatchWindow) Open(now time.Time) bool {
	return w != nil && now.Before(w.WindowEnd)
}

type Reason string

const (
	ReasonDisabled       Reason = "disabled"
	ReasonBelowThreshold Reason = "below_threshold"
	ReasonThresholdMet   Reason = "threshold_met"
)

type Decision struct {
	Fire   bool   `json:"fire"`
	Reason Reason `json:"reason"`
}

// UserOutcome is the per-watcher result of processing one signal.
type UserOutcome struct {
	UserID         string     `json:"user_id"`
	Origin         RuleOrigin `json:"origin,omitempty"`
	Reason         Reason     `json:"reason,omitempty"`
	Admitted       bool       `json:"admitted"`
	NotificationID string     `json:"notification_id,omitempty"`
	Err            error      `json:"-"`
	Error          string     `json:"error,omitempty"`
}

type ProcessResult struct {
	Signal   *Signal       `json:"signal"`
	Outcomes []UserOutcome `json:"outcomes"`
}

// Notified counts watchers that received a notification.
func (r *ProcessResult) Notified() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.NotificationID != "" {
			n++
		}
	}
	return n
}

// BatchReport keys item errors by "<index>:<ASSET>:<kind>".
type BatchReport struct {
	Processed int               `json:"processed"`
	Failed    int               `json:"failed"`
	Results   []*ProcessResult  `json:"results,omitempty"`
	Errors    map[string]string `json:"errors,omitempty"`
}

func BatchKey(index int, asset string, kind Kind) string {
	return fmt.Sprintf("%d:%s:%s", index, asset, kind)
}
