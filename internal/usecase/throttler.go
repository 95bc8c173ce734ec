package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/pkg/logger"
)

// Throttle results reported to metrics.
const (
	throttleImmediate  = "immediate"
	throttleAdmitted   = "admitted"
	throttleSuppressed = "suppressed"
	throttleConflict   = "conflict"
	throttleReleased   = "released"
	throttleError      = "error"
)

// Release undoes an admitted fire that never happened.
type Release func(ctx context.Context) error

func noRelease(context.Context) error { return nil }

// Throttler limits fires per (user, asset, kind) to one per frequency window.
// All coordination goes through the window store's compare-and-swap.
type Throttler struct {
	windows domrepo.WindowStore
	timeout time.Duration
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewThrottler(windows domrepo.WindowStore, timeout time.Duration, metrics domrepo.Metrics, log *logger.Logger) *Throttler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Throttler{windows: windows, timeout: timeout, metrics: metrics, log: log}
}

// Admit reports whether a fire at now may proceed. Store failures deny the
// fire and are returned; losing a race to another admit is not an error.
func (t *Throttler) Admit(ctx context.Context, userID, asset string, kind models.Kind, freq models.Frequency, now time.Time) (bool, error) {
	ok, _, err := t.Reserve(ctx, userID, asset, kind, freq, now)
	return ok, err
}

// Reserve is Admit for callers whose fire can still fail after admission.
// When admitted, the returned Release closes the window again so the next
// observation is not suppressed by a fire that was never recorded.
func (t *Throttler) Reserve(ctx context.Context, userID, asset string, kind models.Kind, freq models.Frequency, now time.Time) (bool, Release, error) {
	window := freq.Window()
	if window == 0 {
		t.metrics.RecordThrottle(throttleImmediate)
		return true, noRelease, nil
	}

	key := models.WindowKey{UserID: userID, AssetSymbol: asset, Kind: kind}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	current, err := t.windows.Get(ctx, key)
	if err != nil {
		t.metrics.RecordThrottle(throttleError)
		return false, nil, fmt.Errorf("read dispatch window %s: %w", key, err)
	}
	if current.Open(now) {
		t.metrics.RecordThrottle(throttleSuppressed)
		return false, nil, nil
	}

	var previous models.DispatchWindow
	if current != nil {
		previous = *current
	}
	next := models.DispatchWindow{
		Key:         key,
		LastFiredAt: now,
		WindowEnd:   now.Add(window),
		Version:     previous.Version + 1,
	}

	swapped, err := t.windows.CompareAndSwap(ctx, key, previous.Version, next)
	if err != nil {
		t.metrics.RecordThrottle(throttleError)
		return false, nil, fmt.Errorf("swap dispatch window %s: %w", key, err)
	}
	if !swapped {
		t.metrics.RecordThrottle(throttleConflict)
		t.log.Debug("throttle admit lost race", logger.Error(&models.ThrottleConflictError{Key: key, Version: previous.Version}))
		return false, nil, nil
	}

	t.metrics.RecordThrottle(throttleAdmitted)
	return true, func(ctx context.Context) error { return t.release(ctx, key, previous, next.Version) }, nil
}

// release restores the previous window bounds under a new version. Versions
// only grow, so an admit that read the reserved window cannot swap over the
// restored one by accident. If another admit already moved past the
// reservation, the window is left alone.
func (t *Throttler) release(ctx context.Context, key models.WindowKey, previous models.DispatchWindow, reserved int64) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	restored := models.DispatchWindow{
		Key:         key,
		LastFiredAt: previous.LastFiredAt,
		WindowEnd:   previous.WindowEnd,
		Version:     reserved + 1,
	}
	swapped, err := t.windows.CompareAndSwap(ctx, key, reserved, restored)
	if err != nil {
		return fmt.Errorf("release dispatch window %s: %w", key, err)
	}
	if swapped {
		t.metrics.RecordThrottle(throttleReleased)
	}
	return nil
}
