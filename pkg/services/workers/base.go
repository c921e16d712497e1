package workers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

type Worker interface {
	Start(ctx context.Context) error
	Stop() error
	Name() string
}

// MessageHandler processes one message. A returned error naks the message
// so JetStream redelivers it until the consumer's MaxDeliver is reached.
type MessageHandler func(ctx context.Context, msg *nats.Msg) error

type BaseWorker struct {
	name     string
	js       nats.JetStreamContext
	mu       sync.Mutex
	sub      *nats.Subscription
	consumer string
	stream   string
	subject  string
	logger   *zap.Logger
}

func NewBaseWorker(name string, js nats.JetStreamContext, stream, consumer, subject string, logger *zap.Logger) *BaseWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BaseWorker{
		name:     name,
		js:       js,
		consumer: consumer,
		stream:   stream,
		subject:  subject,
		logger:   logger.Named("workers").With(zap.String("worker", name)),
	}
}

func (w *BaseWorker) Name() string {
	return w.name
}

func (w *BaseWorker) Stop() error {
	w.mu.Lock()
	sub := w.sub
	w.mu.Unlock()
	if sub != nil {
		return sub.Drain()
	}
	return nil
}

func (w *BaseWorker) processMessages(ctx context.Context, handler MessageHandler) error {
	sub, err := w.js.PullSubscribe(w.subject, w.consumer,
		nats.ManualAck(),
		nats.AckExplicit(),
		nats.DeliverAll(),
		nats.Bind(w.stream, w.consumer),
	)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.sub = sub
	w.mu.Unlock()

	w.logger.Info("Starting worker", zap.String("stream", w.stream), zap.String("consumer", w.consumer))

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping")
			return ctx.Err()
		default:
			msgs, err := sub.Fetch(10, nats.MaxWait(2*time.Second))
			if err != nil && !errors.Is(err, nats.ErrTimeout) {
				if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrBadSubscription) {
					return err
				}
				w.logger.Warn("Error fetching messages", zap.Error(err))
				continue
			}

			for _, msg := range msgs {
				if err := handler(ctx, msg); err != nil {
					w.logger.Error("Failed to handle message",
						zap.String("subject", msg.Subject), zap.Error(err))
					if nakErr := msg.Nak(); nakErr != nil {
						w.logger.Warn("Error rejecting message", zap.Error(nakErr))
					}
					continue
				}
				if err := msg.Ack(); err != nil {
					w.logger.Warn("Error acknowledging message", zap.Error(err))
				}
			}
		}
	}
}
