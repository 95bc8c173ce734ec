package models

import (
	"strconv"
	"time"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"CoinPulse/pkg/util"
)

// Kind is the signal category an observation belongs to.
type Kind string

const (
	KindPrice     Kind = "price"
	KindSentiment Kind = "sentiment"
	KindNarrative Kind = "narrative"
)

// Kinds lists every supported kind in evaluation order.
var Kinds = []Kind{KindPrice, KindSentiment, KindNarrative}

func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindPrice, KindSentiment, KindNarrative:
		return Kind(s), true
	}
	return "", false
}

func (k Kind) String() string { return string(k) }

type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Observation is a normalized feed reading. Magnitude is the 24h percent
// change for price, 0..100 for sentiment and relevance 0..1 for narrative.
type Observation struct {
	AssetSymbol string        `json:"asset_symbol"`
	Kind        Kind          `json:"kind"`
	Magnitude   float64       `json:"magnitude"`
	OccurredAt  time.Time     `json:"occurred_at"`
	Sources     []SourceCount `json:"sources,omitempty"`
	Headline    string        `json:"headline,omitempty"`
}

// Provider payloads, already normalized upstream.

type PriceTick struct {
	Symbol           string          `json:"symbol"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	PercentChange24h *float64        `json:"percent_change_24h"`
	AsOf             AsOf            `json:"as_of,omitempty"`
	Source           string          `json:"source,omitempty"`
}

type SentimentSample struct {
	Symbol         string   `json:"symbol"`
	SentimentScore *float64 `json:"sentiment_score"` // polarity -1..1
	SampleCount    int      `json:"sample_count"`
	AsOf           AsOf     `json:"as_of,omitempty"`
	Source         string   `json:"source,omitempty"`
}

type NarrativeItem struct {
	Symbol    string   `json:"symbol"`
	Relevance *float64 `json:"relevance"`
	Headline  string   `json:"headline"`
	AsOf      AsOf     `json:"as_of,omitempty"`
	Source    string   `json:"source,omitempty"`
}

// ObservationEnvelope is the wire format on the observations topic.
type ObservationEnvelope struct {
	Kind    Kind            `json:"kind"`
	Payload json.RawMessage `json:"payload"`
}

// AsOf accepts RFC3339 strings or unix seconds (or millis), quoted or not.
// A missing value stays zero.
type AsOf struct {
	time.Time
}

func (a *AsOf) UnmarshalJSON(b []byte) error {
	raw := string(b)
	if raw == "null" || raw == `""` {
		return nil
	}
	if unq, err := strconv.Unquote(raw); err == nil {
		raw = unq
	}
	t, ok := util.ParseTime(raw)
	if !ok {
		return &MalformedInputError{Field: "as_of", Reason: "unrecognized time " + strconv.Quote(raw)}
	}
	a.Time = t
	return nil
}

func (a AsOf) MarshalJSON() ([]byte, error) {
	if a.IsZero() {
		return []byte("null"), nil
	}
	return []byte(strconv.Quote(a.UTC().Format(time.RFC3339Nano))), nil
}
