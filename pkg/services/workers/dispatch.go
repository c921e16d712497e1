package workers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"
)

// Ledger opens rescue operations for dispatched alerts.
type Ledger interface {
	RecordDispatch(ctx context.Context, req ontology.DispatchRequest) (ontology.RescueOperation, error)
}

type DispatchWorker struct {
	*BaseWorker
	ledger Ledger
}

func NewDispatchWorker(js nats.JetStreamContext, ledger Ledger, logger *zap.Logger) *DispatchWorker {
	return &DispatchWorker{
		BaseWorker: NewBaseWorker(
			"DispatchWorker",
			js,
			shared.StreamDispatch,
			shared.ConsumerDispatchProcessor,
			shared.SubjectDispatchAll,
			logger,
		),
		ledger: ledger,
	}
}

func (w *DispatchWorker) Start(ctx context.Context) error {
	return w.processMessages(ctx, func(ctx context.Context, msg *nats.Msg) error {
		return w.handle(ctx, msg.Data)
	})
}

func (w *DispatchWorker) handle(ctx context.Context, data []byte) error {
	var req ontology.DispatchRequest
	if err := json.Unmarshal(data, &req); err != nil {
		// redelivery cannot fix a malformed payload
		w.logger.Warn("Dropping malformed dispatch request", zap.Error(err))
		return nil
	}
	if req.AlertID == "" {
		w.logger.Warn("Dropping dispatch request without alert id")
		return nil
	}

	op, err := w.ledger.RecordDispatch(ctx, req)
	if err != nil {
		return fmt.Errorf("record dispatch for alert %s: %w", req.AlertID, err)
	}

	w.logger.Info("Rescue operation opened",
		zap.String("operation_id", op.ID),
		zap.String("alert_id", req.AlertID),
		zap.String("unit", op.UnitDispatched))
	return nil
}
