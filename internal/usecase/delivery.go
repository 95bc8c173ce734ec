package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	json "github.com/goccy/go-json"

	"CoinPulse/internal/domain/models"
	domrepo "CoinPulse/internal/domain/repository"
	"CoinPulse/internal/domain/service"
	"CoinPulse/pkg/logger"
	"CoinPulse/pkg/queue"
)

// DeliveryJobType is the queue message type for one channel send.
const DeliveryJobType = "notification.deliver"

// DirectDeliverer sends on every enabled channel concurrently, each under
// its own timeout.
type DirectDeliverer struct {
	channels map[string]service.Channel
	timeout  time.Duration
	metrics  domrepo.Metrics
}

func NewDirectDeliverer(channels []service.Channel, timeout time.Duration, metrics domrepo.Metrics) *DirectDeliverer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DirectDeliverer{channels: channelIndex(channels), timeout: timeout, metrics: metrics}
}

func (d *DirectDeliverer) Deliver(ctx context.Context, n *models.Notification, channels models.Channels) []error {
	msg := models.NewDeliveryMessage(n)

	var (
		mu   sync.Mutex
		errs []error
		wg   sync.WaitGroup
	)
	for _, name := range channels.Names() {
		ch, ok := d.channels[name]
		if !ok {
			d.metrics.RecordDelivery(name, "unconfigured")
			continue
		}
		wg.Add(1)
		go func(ch service.Channel) {
			defer wg.Done()
			if err := sendWithTimeout(ctx, ch, msg, d.timeout); err != nil {
				d.metrics.RecordDelivery(ch.Name(), "failed")
				mu.Lock()
				errs = append(errs, &models.DeliveryChannelError{Channel: ch.Name(), UserID: n.OwnerUserID, NotificationID: n.ID, Err: err})
				mu.Unlock()
				return
			}
			d.metrics.RecordDelivery(ch.Name(), "sent")
		}(ch)
	}
	wg.Wait()
	return errs
}

// Enqueuer is the producer side of a work queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, msgType string, payload interface{}) error
}

// DeliveryTask is the queued payload for one channel send.
type DeliveryTask struct {
	Channel string                 `json:"channel"`
	Message models.DeliveryMessage `json:"message"`
}

// QueueDeliverer enqueues one task per enabled channel. Sends happen later
// in DeliveryJob with the queue's retry and dead-letter handling.
type QueueDeliverer struct {
	queue   Enqueuer
	known   map[string]service.Channel
	metrics domrepo.Metrics
}

func NewQueueDeliverer(q Enqueuer, channels []service.Channel, metrics domrepo.Metrics) *QueueDeliverer {
	return &QueueDeliverer{queue: q, known: channelIndex(channels), metrics: metrics}
}

func (d *QueueDeliverer) Deliver(ctx context.Context, n *models.Notification, channels models.Channels) []error {
	msg := models.NewDeliveryMessage(n)

	var errs []error
	for _, name := range channels.Names() {
		if _, ok := d.known[name]; !ok {
			d.metrics.RecordDelivery(name, "unconfigured")
			continue
		}
		if err := d.queue.Enqueue(ctx, DeliveryJobType, DeliveryTask{Channel: name, Message: msg}); err != nil {
			d.metrics.RecordDelivery(name, "enqueue_failed")
			errs = append(errs, &models.DeliveryChannelError{Channel: name, UserID: n.OwnerUserID, NotificationID: n.ID, Err: err})
			continue
		}
		d.metrics.RecordDelivery(name, "queued")
	}
	return errs
}

// DeliveryJob performs queued sends.
type DeliveryJob struct {
	channels map[string]service.Channel
	timeout  time.Duration
	metrics  domrepo.Metrics
	log      *logger.Logger
}

func NewDeliveryJob(channels []service.Channel, timeout time.Duration, metrics domrepo.Metrics, log *logger.Logger) *DeliveryJob {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &DeliveryJob{channels: channelIndex(channels), timeout: timeout, metrics: metrics, log: log}
}

func (j *DeliveryJob) Name() string { return "notification-delivery" }
func (j *DeliveryJob) Type() string { return DeliveryJobType }

func (j *DeliveryJob) Handle(ctx context.Context, payload json.RawMessage) error {
	task, err := queue.ParsePayload[DeliveryTask](payload)
	if err != nil {
		// Unparseable tasks never succeed; drop instead of retrying.
		j.log.Error("drop delivery task", logger.Error(err))
		return nil
	}

	ch, ok := j.channels[task.Channel]
	if !ok {
		j.metrics.RecordDelivery(task.Channel, "unconfigured")
		return nil
	}
	if err := sendWithTimeout(ctx, ch, task.Message, j.timeout); err != nil {
		j.metrics.RecordDelivery(task.Channel, "failed")
		return &models.DeliveryChannelError{
			Channel:        task.Channel,
			UserID:         task.Message.UserID,
			NotificationID: task.Message.NotificationID,
			Err:            err,
		}
	}
	j.metrics.RecordDelivery(task.Channel, "sent")
	return nil
}

func sendWithTimeout(ctx context.Context, ch service.Channel, msg models.DeliveryMessage, timeout time.Duration) (err error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("channel %s panic: %v", ch.Name(), r)
		}
	}()
	return ch.Send(ctx, msg.UserID, msg)
}

func channelIndex(channels []service.Channel) map[string]service.Channel {
	out := make(map[string]service.Channel, len(channels))
	for _, ch := range channels {
		if ch != nil {
			out[ch.Name()] = ch
		}
	}
	return out
}

var (
	_ service.Deliverer = (*DirectDeliverer)(nil)
	_ service.Deliverer = (*QueueDeliverer)(nil)
	_ queue.Job         = (*DeliveryJob)(nil)
)
