package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/service/ratelimit"
	"CoinPulse/internal/usecase"
	"CoinPulse/pkg/logger"
)

// IngestGate sits between the intake paths (poller, Kafka, HTTP) and the
// pipeline. It validates observations and throttles bursts per (asset, kind).
// Through Retrying, it also buffers observations whose processing failed
// downstream and retries them with backoff.
type IngestGate struct {
	next    usecase.Ingestor
	metrics domrepo.Metrics
	log     *logger.Logger
	limiter *ratelimit.Limiter

	maxRPS  int
	bufSize int
	bufCh   chan models.Observation
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	started bool
}

type GateOption func(*IngestGate)

// WithMaxRPS caps accepted observations per second per (asset, kind).
func WithMaxRPS(n int) GateOption {
	return func(g *IngestGate) {
		if n > 0 {
			g.maxRPS = n
		}
	}
}

// WithBufferSize sets how many failed observations are held for retry.
func WithBufferSize(n int) GateOption {
	return func(g *IngestGate) {
		if n > 0 {
			g.bufSize = n
		}
	}
}

func NewIngestGate(next usecase.Ingestor, metrics domrepo.Metrics, log *logger.Logger, opts ...GateOption) *IngestGate {
	g := &IngestGate{
		next:    next,
		metrics: metrics,
		log:     log,
		maxRPS:  20,
		bufSize: 1000,
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.bufCh = make(chan models.Observation, g.bufSize)
	g.limiter = ratelimit.New(float64(g.maxRPS), g.maxRPS)
	return g
}

// Start launches the retry loop for buffered observations.
func (g *IngestGate) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	go g.retryLoop(ctx)
}

// Stop ends the retry loop. Observations still buffered are dropped.
func (g *IngestGate) Stop() {
	g.mu.Lock()
	if !g.started {
		g.mu.Unlock()
		return
	}
	g.started = false
	g.mu.Unlock()

	close(g.stopCh)
	<-g.doneCh
	if n := len(g.bufCh); n > 0 {
		g.log.Warn("ingest gate stopped with buffered observations", logger.Int("dropped", n))
	}
}

// Process validates, throttles and forwards obs. Throttled observations are
// dropped without error. Downstream failures are returned and not buffered,
// so a caller that resubmits is the only one retrying.
func (g *IngestGate) Process(ctx context.Context, obs models.Observation) (*models.ProcessResult, error) {
	if err := usecase.ValidateObservation(obs); err != nil {
		g.metrics.RecordObservation(string(obs.Kind), "malformed")
		return nil, err
	}

	if !g.limiter.Allow(obs.AssetSymbol + ":" + string(obs.Kind)) {
		g.metrics.RecordObservation(string(obs.Kind), "throttled")
		return nil, nil
	}

	res, err := g.next.Process(ctx, obs)
	if err != nil {
		if models.IsMalformed(err) {
			return nil, err
		}
		g.metrics.RecordError("gate_process")
		return nil, fmt.Errorf("ingest downstream: %w", err)
	}
	return res, nil
}

// Retrying returns the gate for callers that never resubmit, such as the feed
// poller. A downstream failure is buffered for the retry loop and reported as
// accepted with no result. It is only returned when the buffer is full.
func (g *IngestGate) Retrying() usecase.Ingestor {
	return retryingGate{g}
}

type retryingGate struct {
	*IngestGate
}

func (r retryingGate) Process(ctx context.Context, obs models.Observation) (*models.ProcessResult, error) {
	res, err := r.IngestGate.Process(ctx, obs)
	if err == nil || models.IsMalformed(err) {
		return res, err
	}
	select {
	case r.bufCh <- obs:
		r.metrics.RecordObservation(string(obs.Kind), "deferred")
		r.metrics.RecordLatency("gate_buffer_depth", float64(len(r.bufCh)))
		return nil, nil
	default:
		r.metrics.RecordError("gate_buffer_full")
		return nil, err
	}
}

func (g *IngestGate) retryLoop(ctx context.Context) {
	defer close(g.doneCh)

	const (
		minBackoff = 50 * time.Millisecond
		maxBackoff = 2 * time.Second
	)
	backoff := minBackoff

	for {
		select {
		case <-g.stopCh:
			return
		case <-ctx.Done():
			return
		case obs := <-g.bufCh:
			if _, err := g.next.Process(ctx, obs); err == nil || models.IsMalformed(err) {
				backoff = minBackoff
				continue
			}

			g.metrics.RecordError("gate_retry")
			if backoff < maxBackoff {
				backoff *= 2
			}
			select {
			case <-time.After(backoff):
			case <-g.stopCh:
				return
			case <-ctx.Done():
				return
			}
			select {
			case g.bufCh <- obs:
			default:
				g.metrics.RecordError("gate_buffer_drop")
			}
		}
	}
}

// Buffered reports how many observations wait for retry.
func (g *IngestGate) Buffered() int { return len(g.bufCh) }

var (
	_ usecase.Ingestor = (*IngestGate)(nil)
	_ usecase.Ingestor = retryingGate{}
)
