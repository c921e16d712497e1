package workers

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"tourist-overwatch/pkg/shared"
)

// Journal persists audit events.
type Journal interface {
	Publish(ctx context.Context, event shared.Event) error
}

type AuditWorker struct {
	*BaseWorker
	journal Journal
}

func NewAuditWorker(js nats.JetStreamContext, journal Journal, logger *zap.Logger) *AuditWorker {
	return &AuditWorker{
		BaseWorker: NewBaseWorker(
			"AuditWorker",
			js,
			shared.StreamAudit,
			shared.ConsumerAuditProcessor,
			shared.SubjectAuditAll,
			logger,
		),
		journal: journal,
	}
}

func (w *AuditWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, func(ctx context.Context, msg *nats.Msg) error {
		return w.handle(ctx, msg.Subject, msg.Data)
	})
}

func (w *AuditWorker) handle(ctx context.Context, subject string, data []byte) error {
	var event shared.Event
	if err := json.Unmarshal(data, &event); err != nil {
		w.logger.Warn("Dropping malformed audit event", zap.String("subject", subject), zap.Error(err))
		return nil
	}
	if event.Subject == "" {
		event.Subject = subject
	}

	if err := w.journal.Publish(ctx, event); err != nil {
		return err
	}
	w.logger.Debug("Audit event recorded", zap.String("type", event.Type), zap.String("event_id", event.ID))
	return nil
}
