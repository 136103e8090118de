package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/matheus3301/orderbot/internal/order"
	"github.com/matheus3301/orderbot/internal/store"
	"go.uber.org/zap"
)

const (
	// DefaultInterval is how often queued orders are retried.
	DefaultInterval = 30 * time.Second
	// DefaultMaxAttempts bounds retries per order before it is marked failed.
	DefaultMaxAttempts = 10

	batchSize = 20
)

// Mirror appends an order to the spreadsheet.
type Mirror interface {
	AppendOrder(ctx context.Context, a *order.Accepted) error
}

// Queue is the outbox storage.
type Queue interface {
	QueueMirror(ctx context.Context, orderID string, payload []byte) error
	PendingMirror(ctx context.Context, limit int) ([]store.OutboxEntry, error)
	MarkMirrorDone(ctx context.Context, orderID string) error
	MarkMirrorAttempt(ctx context.Context, orderID, errMsg string, maxAttempts int) error
}

// Sender re-sends orders whose spreadsheet append failed.
type Sender struct {
	queue       Queue
	mirror      Mirror
	logger      *zap.Logger
	Interval    time.Duration
	MaxAttempts int
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewSender creates a sender with the default interval and attempt limit.
func NewSender(q Queue, mirror Mirror, logger *zap.Logger) *Sender {
	return &Sender{
		queue:       q,
		mirror:      mirror,
		logger:      logger,
		Interval:    DefaultInterval,
		MaxAttempts: DefaultMaxAttempts,
	}
}

// Enqueue stores a for a later retry.
func (s *Sender) Enqueue(ctx context.Context, a *order.Accepted) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", a.ID, err)
	}
	if err := s.queue.QueueMirror(ctx, a.ID, payload); err != nil {
		return fmt.Errorf("queue order %s: %w", a.ID, err)
	}
	s.logger.Info("order queued for sheet retry", zap.String("order_id", a.ID))
	return nil
}

// Start begins polling the outbox.
func (s *Sender) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the loop and waits for the current batch.
func (s *Sender) Stop() {
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
}

func (s *Sender) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.ProcessPending(ctx)
		case <-ctx.Done():
			return
		}
	}
}

// ProcessPending retries one batch of queued orders.
func (s *Sender) ProcessPending(ctx context.Context) {
	pending, err := s.queue.PendingMirror(ctx, batchSize)
	if err != nil {
		s.logger.Error("failed to read mirror outbox", zap.Error(err))
		return
	}

	for _, entry := range pending {
		if ctx.Err() != nil {
			return
		}
		log := s.logger.With(zap.String("order_id", entry.OrderID), zap.Int("attempt", entry.Attempts+1))

		var a order.Accepted
		if err := json.Unmarshal(entry.Payload, &a); err != nil {
			log.Error("corrupt outbox payload, giving up", zap.Error(err))
			_ = s.queue.MarkMirrorAttempt(ctx, entry.OrderID, err.Error(), 0)
			continue
		}

		if err := s.mirror.AppendOrder(ctx, &a); err != nil {
			log.Warn("sheet retry failed", zap.Error(err))
			if err := s.queue.MarkMirrorAttempt(ctx, entry.OrderID, err.Error(), s.MaxAttempts); err != nil {
				log.Error("failed to record attempt", zap.Error(err))
			}
			continue
		}

		if err := s.queue.MarkMirrorDone(ctx, entry.OrderID); err != nil {
			log.Error("failed to mark outbox entry done", zap.Error(err))
			continue
		}
		log.Info("order added to sheet on retry")
	}
}
