package embeddednats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"
)

// Publisher puts session side effects on JetStream: rescue requests on the
// dispatch work queue and journal events on the audit stream.
type Publisher struct {
	nats *EmbeddedNATS
}

func NewPublisher(en *EmbeddedNATS) *Publisher {
	return &Publisher{nats: en}
}

func (p *Publisher) Dispatch(ctx context.Context, req ontology.DispatchRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode dispatch request: %w", err)
	}
	return p.nats.PublishWithDedup(ctx, shared.DispatchSubject(req.SessionID), data, uuid.New().String())
}

// Publish dedups on the event id so retried publishes are stored once.
func (p *Publisher) Publish(ctx context.Context, event shared.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	subject := event.Subject
	if subject == "" {
		subject = shared.AuditSubject(event.SessionID, event.Type)
	}
	return p.nats.PublishWithDedup(ctx, subject, data, event.ID)
}
