package usecase

import (
	"math"

	"CoinPulse/internal/domain/models"
)

// Evaluate decides whether a signal fires under a rule. Comparisons are
// inclusive; price compares the original percent change, the other kinds
// compare strength.
func Evaluate(s models.Signal, rule models.AlertRule) models.Decision {
	if !rule.Enabled.For(s.Type) {
		return models.Decision{Reason: models.ReasonDisabled}
	}

	var met bool
	switch s.Type {
	case models.KindPrice:
		met = math.Abs(s.Magnitude) >= rule.PriceChangeThreshold
	case models.KindSentiment, models.KindNarrative:
		met = s.Strength >= rule.SentimentThreshold
	}

	if !met {
		return models.Decision{Reason: models.ReasonBelowThreshold}
	}
	return models.Decision{Fire: true, Reason: models.ReasonThresholdMet}
}
