package usecase

import (
	"context"

	json "github.com/goccy/go-json"

	"CoinPulse/internal/domain/models"
)

// Ingestor accepts normalized observations. Both the pipeline and the
// ingest gate in front of it satisfy it.
type Ingestor interface {
	Process(ctx context.Context, obs models.Observation) (*models.ProcessResult, error)
}

// IngestRaw normalizes and processes raw payloads of one kind independently.
func IngestRaw(ctx context.Context, ing Ingestor, kind models.Kind, items []json.RawMessage) *models.BatchReport {
	obs := make([]models.Observation, len(items))
	errs := make([]error, len(items))
	for i, raw := range items {
		obs[i], errs[i] = Normalize(raw, kind)
	}
	return ingestAll(ctx, ing, kind, obs, errs)
}

func ingestAll(ctx context.Context, ing Ingestor, kind models.Kind, obs []models.Observation, errs []error) *models.BatchReport {
	report := &models.BatchReport{Results: make([]*models.ProcessResult, 0, len(obs))}
	fail := func(i int, asset string, err error) {
		if report.Errors == nil {
			report.Errors = make(map[string]string)
		}
		report.Errors[models.BatchKey(i, asset, kind)] = err.Error()
		report.Failed++
	}

	for i := range obs {
		if errs[i] != nil {
			fail(i, obs[i].AssetSymbol, errs[i])
			continue
		}
		res, err := ing.Process(ctx, obs[i])
		if err != nil {
			fail(i, obs[i].AssetSymbol, err)
			continue
		}
		report.Processed++
		if res != nil {
			report.Results = append(report.Results, res)
		}
	}
	return report
}
