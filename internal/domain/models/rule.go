package models

import (
	"fmt"
	"math"
	"time"
)

type Frequency string

const (
	FrequencyImmediate Frequency = "immediate"
	FrequencyHourly    Frequency = "hourly"
	FrequencyDaily     Frequency = "daily"
	FrequencyWeekly    Frequency = "weekly"
)

// Window is the throttle window length. Immediate has none.
func (f Frequency) Window() time.Duration {
	switch f {
	case FrequencyHourly:
		return time.Hour
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	}
	return 0
}

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyImmediate, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

const (
	DefaultSentimentThreshold   = 20
	DefaultPriceChangeThreshold = 5.0

	MinSentimentThreshold   = 0
	MaxSentimentThreshold   = 100
	MinPriceChangeThreshold = 0.1
	MaxPriceChangeThreshold = 50.0
)

type EnabledKinds struct {
	Sentiment bool `json:"sentiment"`
	Price     bool `json:"price"`
	Narrative bool `json:"narrative"`
}

func (e EnabledKinds) For(k Kind) bool {
	switch k {
	case KindPrice:
		return e.Price
	case KindSentiment:
		return e.Sentiment
	case KindNarrative:
		return e.Narrative
	}
	return false
}

type Channels struct {
	Email bool `json:"email"`
	Push  bool `json:"push"`
}

// Names lists enabled channels in a stable order.
func (c Channels) Names() []string {
	out := make([]string, 0, 2)
	if c.Push {
		out = append(out, ChannelPush)
	}
	if c.Email {
		out = append(out, ChannelEmail)
	}
	return out
}

const (
	ChannelPush  = "push"
	ChannelEmail = "email"
)

// AlertRule gates notifications for a user. An empty AssetSymbol marks the
// user's global rule.
type AlertRule struct {
	OwnerUserID          string       `json:"owner_user_id"`
	AssetSymbol          string       `json:"asset_symbol,omitempty"`
	SentimentThreshold   int          `json:"sentiment_threshold"`
	PriceChangeThreshold float64      `json:"price_change_threshold"`
	Enabled              EnabledKinds `json:"enabled"`
	Frequency            Frequency    `json:"frequency"`
	Channels             Channels     `json:"channels"`
	UpdatedAt            time.Time    `json:"updated_at"`
}

func (r *AlertRule) IsGlobal() bool { return r.AssetSymbol == "" }

// DefaultAlertRule is what applies when a user has configured nothing.
func DefaultAlertRule(userID string) AlertRule {
	return AlertRule{
		OwnerUserID:          userID,
		SentimentThreshold:   DefaultSentimentThreshold,
		PriceChangeThreshold: DefaultPriceChangeThreshold,
		Enabled:              EnabledKinds{Sentiment: true, Price: true, Narrative: true},
		Frequency:            FrequencyImmediate,
		Channels:             Channels{Push: true},
	}
}

// Validate checks threshold ranges and the frequency. Errors wrap ErrInvalidRule.
func (r *AlertRule) Validate() error {
	if r.OwnerUserID == "" {
		return fmt.Errorf("%w: owner_user_id is required", ErrInvalidRule)
	}
	if r.SentimentThreshold < MinSentimentThreshold || r.SentimentThreshold > MaxSentimentThreshold {
		return fmt.Errorf("%w: sentiment_threshold must be within %d..%d", ErrInvalidRule, MinSentimentThreshold, MaxSentimentThreshold)
	}
	if math.IsNaN(r.PriceChangeThreshold) || r.PriceChangeThreshold < MinPriceChangeThreshold || r.PriceChangeThreshold > MaxPriceChangeThreshold {
		return fmt.Errorf("%w: price_change_threshold must be within %.1f..%.1f", ErrInvalidRule, MinPriceChangeThreshold, MaxPriceChangeThreshold)
	}
	if !r.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRule, r.Frequency)
	}
	return nil
}

// RulePatch carries a partial update; nil fields are left unchanged.
type RulePatch struct {
	SentimentThreshold   *int       `json:"sentiment_threshold" validate:"omitempty,gte=0,lte=100"`
	PriceChangeThreshold *float64   `json:"price_change_threshold" validate:"omitempty,gte=0.1,lte=50"`
	SentimentEnabled     *bool      `json:"sentiment_enabled"`
	PriceEnabled         *bool      `json:"price_enabled"`
	NarrativeEnabled     *bool      `json:"narrative_enabled"`
	Frequency            *Frequency `json:"frequency" validate:"omitempty,oneof=immediate hourly daily weekly"`
	EmailEnabled         *bool      `json:"email_enabled"`
	PushEnabled          *bool      `json:"push_enabled"`
}

func (p RulePatch) Apply(r *AlertRule) {
	if p.SentimentThreshold != nil {
		r.SentimentThreshold = *p.SentimentThreshold
	}
	if p.PriceChangeThreshold != nil {
		r.PriceChangeThreshold = *p.PriceChangeThreshold
	}
	if p.SentimentEnabled != nil {
		r.Enabled.Sentiment = *p.SentimentEnabled
	}
	if p.PriceEnabled != nil {
		r.Enabled.Price = *p.PriceEnabled
	}
	if p.NarrativeEnabled != nil {
		r.Enabled.Narrative = *p.NarrativeEnabled
	}
	if p.Frequency != nil {
		r.Frequency = *p.Frequency
	}
	if p.EmailEnabled != nil {
		r.Channels.Email = *p.EmailEnabled
	}
	if p.PushEnabled != nil {
		r.Channels.Push = *p.PushEnabled
	}
}

// RuleOrigin says which level a resolved rule came from.
type RuleOrigin string

const (
	OriginAsset   RuleOrigin = "asset"
	OriginGlobal  RuleOrigin = "global"
	OriginDefault RuleOrigin = "default"
)

type EffectiveRule struct {
	Rule   AlertRule  `json:"rule"`
	Origin RuleOrigin `json:"origin"`
}
