package usecase

import (
	"context"
	"errors"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/logger"
)

// Resolver picks the rule that governs a (user, asset) pair: the asset rule,
// else the user's global rule, else the defaults. Levels are never merged.
type Resolver struct {
	rules   domrepo.RuleStore
	timeout time.Duration
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewResolver(rules domrepo.RuleStore, timeout time.Duration, metrics domrepo.Metrics, log *logger.Logger) *Resolver {
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Resolver{rules: rules, timeout: timeout, metrics: metrics, log: log}
}

// Resolve never fails. Lookup errors, including timeouts, fall back to the
// default rule and are logged.
func (r *Resolver) Resolve(ctx context.Context, userID, asset string) (models.AlertRule, models.RuleOrigin) {
	start := time.Now()
	defer func() { r.metrics.RecordLatency("resolve", time.Since(start).Seconds()) }()

	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	rule, origin, err := r.lookup(lctx, userID, asset)
	if err == nil {
		return rule, origin
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(lctx.Err(), context.DeadlineExceeded) {
		err = &models.ResolutionTimeoutError{UserID: userID, Asset: asset, Timeout: r.timeout, Err: err}
		r.metrics.RecordError("resolve_timeout")
	} else {
		r.metrics.RecordError("resolve_store")
	}
	r.log.Warn("rule resolution failed, using defaults",
		logger.String("user_id", userID),
		logger.String("asset", asset),
		logger.Error(err))
	return models.DefaultAlertRule(userID), models.OriginDefault
}

func (r *Resolver) lookup(ctx context.Context, userID, asset string) (models.AlertRule, models.RuleOrigin, error) {
	if asset != "" {
		rule, err := r.rules.Get(ctx, userID, asset)
		switch {
		case err == nil:
			return *rule, models.OriginAsset, nil
		case !errors.Is(err, models.ErrNotFound):
			return models.AlertRule{}, "", err
		}
	}

	rule, err := r.rules.Get(ctx, userID, "")
	switch {
	case err == nil:
		return *rule, models.OriginGlobal, nil
	case errors.Is(err, models.ErrNotFound):
		return models.DefaultAlertRule(userID), models.OriginDefault, nil
	default:
		return models.AlertRule{}, "", err
	}
}
