package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/domain/service"
	"CoinPulse/internal/repository"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/metrics"
)

var errStoreDown = errors.New("store unavailable")

type fakeChannel struct {
	name string
	err  error

	mu   sync.Mutex
	sent []models.DeliveryMessage
}

func (c *fakeChannel) Name() string { return c.name }

func (c *fakeChannel) Send(_ context.Context, _ string, msg models.DeliveryMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, msg)
	return c.err
}

func (c *fakeChannel) Sent() []models.DeliveryMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.DeliveryMessage(nil), c.sent...)
}

// slowRuleStore blocks every Get until the context expires.
type slowRuleStore struct {
	*repository.MemoryRuleStore
}

func (s slowRuleStore) Get(ctx context.Context, _, _ string) (*models.AlertRule, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type brokenRuleStore struct {
	*repository.MemoryRuleStore
}

func (brokenRuleStore) Get(context.Context, string, string) (*models.AlertRule, error) {
	return nil, errStoreDown
}

type brokenWindowStore struct{}

func (brokenWindowStore) Get(context.Context, models.WindowKey) (*models.DispatchWindow, error) {
	return nil, errStoreDown
}

func (brokenWindowStore) CompareAndSwap(context.Context, models.WindowKey, int64, models.DispatchWindow) (bool, error) {
	return false, errStoreDown
}

// flakySignalStore fails Append for the listed assets.
type flakySignalStore struct {
	*repository.MemorySignalStore
	failFor map[string]bool
}

func (s flakySignalStore) Append(ctx context.Context, sig *models.Signal) error {
	if s.failFor[sig.AssetSymbol] {
		return errStoreDown
	}
	return s.MemorySignalStore.Append(ctx, sig)
}

// flakyNotificationStore fails the next failures calls to Create.
type flakyNotificationStore struct {
	*repository.MemoryNotificationStore

	mu       sync.Mutex
	failures int
}

func (s *flakyNotificationStore) Create(ctx context.Context, n *models.Notification) error {
	s.mu.Lock()
	fail := s.failures > 0
	if fail {
		s.failures--
	}
	s.mu.Unlock()
	if fail {
		return errStoreDown
	}
	return s.MemoryNotificationStore.Create(ctx, n)
}

type recordingBroadcaster struct {
	mu  sync.Mutex
	got []*models.Notification
}

func (b *recordingBroadcaster) Broadcast(_ string, n *models.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.got = append(b.got, n)
}

type recordingIngestor struct {
	mu   sync.Mutex
	obs  []models.Observation
	errs map[string]error
}

func (r *recordingIngestor) Process(_ context.Context, obs models.Observation) (*models.ProcessResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.errs[obs.AssetSymbol]; err != nil {
		return nil, err
	}
	r.obs = append(r.obs, obs)
	return &models.ProcessResult{Signal: &models.Signal{AssetSymbol: obs.AssetSymbol, Type: obs.Kind}}, nil
}

func (r *recordingIngestor) Observations() []models.Observation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.Observation(nil), r.obs...)
}

type fixture struct {
	rules      *repository.MemoryRuleStore
	windows    *repository.MemoryWindowStore
	notes      *repository.MemoryNotificationStore
	watchlists *repository.MemoryWatchlistStore
	signals    *repository.MemorySignalStore
	push       *fakeChannel
	email      *fakeChannel
	sink       *Sink
	pipeline   *Pipeline
}

func newFixture() *fixture {
	f := &fixture{
		rules:      repository.NewMemoryRuleStore(),
		windows:    repository.NewMemoryWindowStore(),
		notes:      repository.NewMemoryNotificationStore(),
		watchlists: repository.NewMemoryWatchlistStore(),
		signals:    repository.NewMemorySignalStore(),
		push:       &fakeChannel{name: models.ChannelPush},
		email:      &fakeChannel{name: models.ChannelEmail},
	}
	f.build(f.signals)
	return f
}

func (f *fixture) build(signals domrepo.SignalStore) {
	m := metrics.Noop{}
	l := logger.NewNop()
	deliverer := NewDirectDeliverer([]service.Channel{f.push, f.email}, time.Second, m)
	f.sink = NewSink(f.notes, deliverer, m, l)
	f.pipeline = NewPipeline(
		NewScorer(),
		NewResolver(f.rules, time.Second, m, l),
		NewThrottler(f.windows, time.Second, m, l),
		f.sink,
		signals,
		f.watchlists,
		nil,
		m,
		l,
		PipelineConfig{FanoutWorkers: 4},
	)
}
