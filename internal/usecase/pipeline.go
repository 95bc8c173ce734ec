package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/util"
)

// Pipeline runs observations through scoring, rule resolution, evaluation,
// throttling and the sink for every watcher of the asset.
type Pipeline struct {
	scorer     *Scorer
	resolver   *Resolver
	throttler  *Throttler
	sink       *Sink
	signals    domrepo.SignalStore
	watchlists domrepo.WatchlistStore
	events     domrepo.EventPublisher
	metrics    domrepo.Metrics
	log        *logger.Logger

	workers      int
	storeTimeout time.Duration
	now          func() time.Time
}

type PipelineConfig struct {
	FanoutWorkers int
	StoreTimeout  time.Duration
}

func NewPipeline(
	scorer *Scorer,
	resolver *Resolver,
	throttler *Throttler,
	sink *Sink,
	signals domrepo.SignalStore,
	watchlists domrepo.WatchlistStore,
	events domrepo.EventPublisher,
	metrics domrepo.Metrics,
	log *logger.Logger,
	cfg PipelineConfig,
) *Pipeline {
	if cfg.FanoutWorkers <= 0 {
		cfg.FanoutWorkers = 8
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 2 * time.Second
	}
	return &Pipeline{
		scorer:       scorer,
		resolver:     resolver,
		throttler:    throttler,
		sink:         sink,
		signals:      signals,
		watchlists:   watchlists,
		events:       events,
		metrics:      metrics,
		log:          log,
		workers:      cfg.FanoutWorkers,
		storeTimeout: cfg.StoreTimeout,
		now:          time.Now,
	}
}

// Process scores one observation, appends the signal and fans it out to the
// asset's watchers. Only malformed input and the watcher load or signal
// append fail the call; per-user problems are reported in the outcomes.
func (p *Pipeline) Process(ctx context.Context, obs models.Observation) (*models.ProcessResult, error) {
	start := time.Now()
	defer func() { p.metrics.RecordLatency("process", time.Since(start).Seconds()) }()

	obs.AssetSymbol = util.NormalizeSymbol(obs.AssetSymbol)
	if err := ValidateObservation(obs); err != nil {
		p.metrics.RecordObservation(string(obs.Kind), "malformed")
		return nil, err
	}
	if obs.OccurredAt.IsZero() {
		obs.OccurredAt = p.now().UTC()
	}

	sctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	watchers, err := p.watchlists.Watchers(sctx, obs.AssetSymbol)
	cancel()
	if err != nil {
		p.metrics.RecordError("watchers_load")
		return nil, fmt.Errorf("load watchers for %s: %w", obs.AssetSymbol, err)
	}

	sig := p.scorer.Score(obs)

	sctx, cancel = context.WithTimeout(ctx, p.storeTimeout)
	err = p.signals.Append(sctx, &sig)
	cancel()
	if err != nil {
		p.metrics.RecordError("signal_append")
		return nil, fmt.Errorf("append signal: %w", err)
	}
	p.metrics.RecordObservation(string(obs.Kind), "processed")
	p.metrics.RecordSignal(string(sig.Type))

	if p.events != nil {
		if err := p.events.PublishSignal(ctx, &sig); err != nil {
			p.metrics.RecordError("signal_publish")
			p.log.Warn("publish signal event failed", logger.String("signal_id", sig.ID), logger.Error(err))
		}
	}

	return &models.ProcessResult{Signal: &sig, Outcomes: p.fanOut(ctx, sig, watchers)}, nil
}

// fanOut evaluates the signal for each watcher on a bounded pool. Outcomes
// keep the order of watchers.
func (p *Pipeline) fanOut(ctx context.Context, sig models.Signal, watchers []string) []models.UserOutcome {
	outcomes := make([]models.UserOutcome, len(watchers))
	if len(watchers) == 0 {
		return outcomes
	}

	workers := p.workers
	if workers > len(watchers) {
		workers = len(watchers)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = p.notifyUser(ctx, watchers[idx], sig)
			}
		}()
	}
	for i := range watchers {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return outcomes
}

func (p *Pipeline) notifyUser(ctx context.Context, userID string, sig models.Signal) (out models.UserOutcome) {
	out.UserID = userID
	defer func() {
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("notify user panic: %v", r)
		}
		if out.Err != nil {
			out.Error = out.Err.Error()
			p.metrics.RecordError("notify_user")
			p.log.Error("notify user failed",
				logger.String("user_id", userID),
				logger.String("signal_id", sig.ID),
				logger.Error(out.Err))
		}
	}()

	rule, origin := p.resolver.Resolve(ctx, userID, sig.AssetSymbol)
	out.Origin = origin

	decision := Evaluate(sig, rule)
	out.Reason = decision.Reason
	p.metrics.RecordDecision(string(sig.Type), string(decision.Reason))
	if !decision.Fire {
		return out
	}

	admitted, release, err := p.throttler.Reserve(ctx, userID, sig.AssetSymbol, sig.Type, rule.Frequency, p.now().UTC())
	if err != nil {
		out.Err = err
		return out
	}
	out.Admitted = admitted
	if !admitted {
		return out
	}

	n, err := p.sink.Dispatch(ctx, userID, sig, rule)
	if err != nil {
		out.Err = err
		if rerr := release(context.WithoutCancel(ctx)); rerr != nil {
			p.log.Warn("release dispatch window failed",
				logger.String("user_id", userID),
				logger.String("asset", sig.AssetSymbol),
				logger.Error(rerr))
		}
		return out
	}
	out.NotificationID = n.ID
	return out
}

// ProcessBatch processes each observation independently.
func (p *Pipeline) ProcessBatch(ctx context.Context, batch []models.Observation) *models.BatchReport {
	report := &models.BatchReport{Results: make([]*models.ProcessResult, 0, len(batch))}
	for i, obs := range batch {
		res, err := p.Process(ctx, obs)
		if err != nil {
			if report.Errors == nil {
				report.Errors = make(map[string]string)
			}
			report.Errors[models.BatchKey(i, obs.AssetSymbol, obs.Kind)] = err.Error()
			report.Failed++
			continue
		}
		report.Processed++
		report.Results = append(report.Results, res)
	}
	return report
}

// Signals returns persisted signals, newest first.
func (p *Pipeline) Signals(ctx context.Context, q models.SignalQuery) ([]models.Signal, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, p.storeTimeout)
	defer cancel()
	return p.signals.Query(ctx, q)
}
