package usecase

import (
	"context"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/domain/service"
	"CoinPulse/pkg/logger"
)

const pollLockKey = "feeds:poll-lock"

// Locker elects a single poller across replicas.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// FeedPoller pulls the configured symbols from the price, sentiment and
// narrative feeds on an interval and ingests every item independently.
type FeedPoller struct {
	prices     service.PriceFeed
	sentiment  service.SentimentFeed
	narratives service.NarrativeFeed
	ingest     Ingestor
	locker     Locker
	metrics    domrepo.Metrics
	log        *logger.Logger

	symbols  []string
	interval time.Duration
	timeout  time.Duration
}

type FeedPollerConfig struct {
	Symbols  []string
	Interval time.Duration
	Timeout  time.Duration
}

func NewFeedPoller(
	prices service.PriceFeed,
	sentiment service.SentimentFeed,
	narratives service.NarrativeFeed,
	ingest Ingestor,
	locker Locker,
	metrics domrepo.Metrics,
	log *logger.Logger,
	cfg FeedPollerConfig,
) *FeedPoller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &FeedPoller{
		prices:     prices,
		sentiment:  sentiment,
		narratives: narratives,
		ingest:     ingest,
		locker:     locker,
		metrics:    metrics,
		log:        log,
		symbols:    cfg.Symbols,
		interval:   cfg.Interval,
		timeout:    cfg.Timeout,
	}
}

// Run polls until ctx is cancelled.
func (p *FeedPoller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *FeedPoller) tick(ctx context.Context) {
	if p.locker != nil {
		// Held for most of the interval so only one replica polls per tick.
		ok, err := p.locker.TryLock(ctx, pollLockKey, p.interval*9/10)
		if err != nil {
			p.log.Warn("feed poll lock failed", logger.Error(err))
			return
		}
		if !ok {
			p.log.Debug("feed poll skipped, another replica holds the lock")
			return
		}
	}

	report := p.PollOnce(ctx)
	if report.Failed > 0 {
		p.log.Warn("feed poll finished with failures",
			logger.Int("processed", report.Processed),
			logger.Int("failed", report.Failed),
			logger.Any("errors", report.Errors))
		return
	}
	p.log.Debug("feed poll finished", logger.Int("processed", report.Processed))
}

// PollOnce fetches all feeds once. A failing feed does not stop the others
// and is reported under "feed:<kind>".
func (p *FeedPoller) PollOnce(ctx context.Context) *models.BatchReport {
	total := &models.BatchReport{}
	if len(p.symbols) == 0 {
		return total
	}

	if p.prices != nil {
		ticks, err := fetch(ctx, p, models.KindPrice, p.prices.FetchPrices)
		if err != nil {
			feedFailed(total, models.KindPrice, err)
		} else {
			obs, errs := normalizeEach(ticks, NormalizePrice)
			merge(total, ingestAll(ctx, p.ingest, models.KindPrice, obs, errs))
		}
	}
	if p.sentiment != nil {
		samples, err := fetch(ctx, p, models.KindSentiment, p.sentiment.FetchSentiment)
		if err != nil {
			feedFailed(total, models.KindSentiment, err)
		} else {
			obs, errs := normalizeEach(samples, NormalizeSentiment)
			merge(total, ingestAll(ctx, p.ingest, models.KindSentiment, obs, errs))
		}
	}
	if p.narratives != nil {
		items, err := fetch(ctx, p, models.KindNarrative, p.narratives.FetchNarratives)
		if err != nil {
			feedFailed(total, models.KindNarrative, err)
		} else {
			obs, errs := normalizeEach(items, NormalizeNarrative)
			merge(total, ingestAll(ctx, p.ingest, models.KindNarrative, obs, errs))
		}
	}
	return total
}

func feedFailed(report *models.BatchReport, kind models.Kind, err error) {
	if report.Errors == nil {
		report.Errors = make(map[string]string)
	}
	report.Errors["feed:"+string(kind)] = err.Error()
	report.Failed++
}

func fetch[T any](ctx context.Context, p *FeedPoller, kind models.Kind, fn func(context.Context, []string) ([]T, error)) ([]T, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	items, err := fn(ctx, p.symbols)
	p.metrics.RecordLatency("feed_"+string(kind), time.Since(start).Seconds())
	if err != nil {
		p.metrics.RecordError("feed_" + string(kind))
		p.log.Warn("feed fetch failed", logger.String("kind", string(kind)), logger.Error(err))
		return nil, err
	}
	return items, nil
}

func normalizeEach[T any](items []T, fn func(T) (models.Observation, error)) ([]models.Observation, []error) {
	obs := make([]models.Observation, len(items))
	errs := make([]error, len(items))
	for i, it := range items {
		obs[i], errs[i] = fn(it)
	}
	return obs, errs
}

func merge(dst, src *models.BatchReport) {
	dst.Processed += src.Processed
	dst.Failed += src.Failed
	dst.Results = append(dst.Results, src.Results...)
	for k, v := range src.Errors {
		if dst.Errors == nil {
			dst.Errors = make(map[string]string)
		}
		dst.Errors[k] = v
	}
}
