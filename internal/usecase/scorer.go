package usecase

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"CoinPulse/internal/domain/models"
)

// Scorer turns observations into signals. It holds no policy.
type Scorer struct {
	now   func() time.Time
	newID func() string
}

func NewScorer() *Scorer {
	return &Scorer{now: time.Now, newID: uuid.NewString}
}

// Score computes strength and description. A zero OccurredAt is stamped
// with the scorer's clock.
func (s *Scorer) Score(o models.Observation) models.Signal {
	ts := o.OccurredAt
	if ts.IsZero() {
		ts = s.now().UTC()
	}
	return models.Signal{
		ID:          s.newID(),
		AssetSymbol: o.AssetSymbol,
		Type:        o.Kind,
		Strength:    Strength(o.Kind, o.Magnitude),
		Magnitude:   o.Magnitude,
		Description: Describe(o),
		Sources:     o.Sources,
		Timestamp:   ts,
	}
}

// Strength maps a magnitude onto 0..100 for its kind.
func Strength(kind models.Kind, m float64) int {
	var v float64
	switch kind {
	case models.KindPrice:
		v = math.Min(100, math.Round(math.Abs(m)*10))
	case models.KindSentiment:
		v = math.Round(clamp(m, 0, 100))
	case models.KindNarrative:
		v = math.Round(clamp(m, 0, 1) * 100)
	}
	return int(clamp(v, 0, 100))
}

func Describe(o models.Observation) string {
	m := decimal.NewFromFloat(o.Magnitude)
	switch o.Kind {
	case models.KindPrice:
		sign := "+"
		if m.IsNegative() && !m.Round(2).IsZero() {
			sign = "-"
		}
		return fmt.Sprintf("%s price %s%s%% over 24h", o.AssetSymbol, sign, m.Abs().StringFixed(2))
	case models.KindSentiment:
		return fmt.Sprintf("%s social sentiment at %s/100", o.AssetSymbol, m.StringFixed(1))
	case models.KindNarrative:
		d := fmt.Sprintf("%s narrative (relevance %s)", o.AssetSymbol, m.StringFixed(2))
		if o.Headline != "" {
			d += ": " + o.Headline
		}
		return d
	}
	return o.AssetSymbol
}
