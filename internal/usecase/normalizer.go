package usecase

import (
	"math"

	json "github.com/goccy/go-json"

	"CoinPulse/internal/domain/models"
	"CoinPulse/pkg/util"
)

// Normalize decodes a provider payload of the given kind into an Observation.
func Normalize(raw []byte, kind models.Kind) (models.Observation, error) {
	switch kind {
	case models.KindPrice:
		var tick models.PriceTick
		if err := decodePayload(raw, &tick); err != nil {
			return models.Observation{}, err
		}
		return NormalizePrice(tick)
	case models.KindSentiment:
		var sample models.SentimentSample
		if err := decodePayload(raw, &sample); err != nil {
			return models.Observation{}, err
		}
		return NormalizeSentiment(sample)
	case models.KindNarrative:
		var item models.NarrativeItem
		if err := decodePayload(raw, &item); err != nil {
			return models.Observation{}, err
		}
		return NormalizeNarrative(item)
	}
	return models.Observation{}, &models.MalformedInputError{Field: "kind", Reason: "unknown kind " + string(kind)}
}

func decodePayload(raw []byte, dest interface{}) error {
	if len(raw) == 0 {
		return &models.MalformedInputError{Reason: "empty payload"}
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		if models.IsMalformed(err) {
			return err
		}
		return &models.MalformedInputError{Reason: err.Error()}
	}
	return nil
}

func NormalizePrice(t models.PriceTick) (models.Observation, error) {
	sym, err := requireSymbol(t.Symbol)
	if err != nil {
		return models.Observation{}, err
	}
	m, err := requireMagnitude("percent_change_24h", t.PercentChange24h)
	if err != nil {
		return models.Observation{}, err
	}
	return models.Observation{
		AssetSymbol: sym,
		Kind:        models.KindPrice,
		Magnitude:   m,
		OccurredAt:  t.AsOf.Time,
		Sources:     sources(t.Source, 1),
	}, nil
}

// NormalizeSentiment maps polarity -1..1 onto 0..100.
func NormalizeSentiment(s models.SentimentSample) (models.Observation, error) {
	sym, err := requireSymbol(s.Symbol)
	if err != nil {
		return models.Observation{}, err
	}
	p, err := requireMagnitude("sentiment_score", s.SentimentScore)
	if err != nil {
		return models.Observation{}, err
	}
	p = clamp(p, -1, 1)
	return models.Observation{
		AssetSymbol: sym,
		Kind:        models.KindSentiment,
		Magnitude:   (p + 1) * 50,
		OccurredAt:  s.AsOf.Time,
		Sources:     sources(s.Source, s.SampleCount),
	}, nil
}

func NormalizeNarrative(n models.NarrativeItem) (models.Observation, error) {
	sym, err := requireSymbol(n.Symbol)
	if err != nil {
		return models.Observation{}, err
	}
	m, err := requireMagnitude("relevance", n.Relevance)
	if err != nil {
		return models.Observation{}, err
	}
	return models.Observation{
		AssetSymbol: sym,
		Kind:        models.KindNarrative,
		Magnitude:   m,
		OccurredAt:  n.AsOf.Time,
		Sources:     sources(n.Source, 1),
		Headline:    n.Headline,
	}, nil
}

// ValidateObservation applies the normalizer's rules to an already built
// observation.
func ValidateObservation(o models.Observation) error {
	if util.NormalizeSymbol(o.AssetSymbol) == "" {
		return &models.MalformedInputError{Field: "symbol", Reason: "missing"}
	}
	if _, ok := models.ParseKind(string(o.Kind)); !ok {
		return &models.MalformedInputError{Field: "kind", Reason: "unknown kind " + string(o.Kind)}
	}
	if math.IsNaN(o.Magnitude) || math.IsInf(o.Magnitude, 0) {
		return &models.MalformedInputError{Field: "magnitude", Reason: "not a finite number"}
	}
	return nil
}

func requireSymbol(s string) (string, error) {
	sym := util.NormalizeSymbol(s)
	if sym == "" {
		return "", &models.MalformedInputError{Field: "symbol", Reason: "missing"}
	}
	return sym, nil
}

func requireMagnitude(field string, v *float64) (float64, error) {
	if v == nil {
		return 0, &models.MalformedInputError{Field: field, Reason: "missing"}
	}
	if math.IsNaN(*v) || math.IsInf(*v, 0) {
		return 0, &models.MalformedInputError{Field: field, Reason: "not a finite number"}
	}
	return *v, nil
}

func sources(name string, count int) []models.SourceCount {
	if name == "" {
		return nil
	}
	if count <= 0 {
		count = 1
	}
	return []models.SourceCount{{Source: name, Count: count}}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
