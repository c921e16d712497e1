package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	embeddednats "tourist-overwatch/pkg/services/embedded-nats"
	"tourist-overwatch/pkg/shared"
)

type Manager struct {
	workers []Worker
	wg      sync.WaitGroup
	ctx     context.Context
	cancel  context.CancelFunc
	logger  *zap.Logger
}

// NewManager wires the dispatch and audit workers against the embedded
// server's JetStream context.
func NewManager(natsClient *embeddednats.EmbeddedNATS, ledger Ledger, journal Journal, logger *zap.Logger) (*Manager, error) {
	if natsClient.Connection() == nil {
		return nil, fmt.Errorf("NATS connection not initialized")
	}

	js := natsClient.JetStream()
	if js == nil {
		return nil, fmt.Errorf("JetStream not initialized")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	consumers := []struct {
		stream   string
		consumer string
		filter   string
	}{
		{shared.StreamDispatch, shared.ConsumerDispatchProcessor, shared.SubjectDispatchAll},
		{shared.StreamAudit, shared.ConsumerAuditProcessor, shared.SubjectAuditAll},
	}
	for _, c := range consumers {
		if err := natsClient.CreateDurableConsumer(c.stream, c.consumer, c.filter); err != nil {
			return nil, err
		}
	}

	return NewManagerWith(logger,
		NewDispatchWorker(js, ledger, logger),
		NewAuditWorker(js, journal, logger),
	), nil
}

func NewManagerWith(logger *zap.Logger, workers ...Worker) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		workers: workers,
		ctx:     ctx,
		cancel:  cancel,
		logger:  logger.Named("workers"),
	}
}

func (m *Manager) Start() error {
	m.logger.Info("Starting NATS workers")

	for _, worker := range m.workers {
		m.wg.Add(1)
		go func(w Worker) {
			defer m.wg.Done()

			if err := w.Start(m.ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Error("Worker exited", zap.String("worker", w.Name()), zap.Error(err))
			}
			m.logger.Debug("Worker stopped", zap.String("worker", w.Name()))
		}(worker)
	}

	m.logger.Info("Started workers", zap.Int("count", len(m.workers)))
	return nil
}

func (m *Manager) Stop() error {
	m.logger.Info("Stopping NATS workers")

	m.cancel()

	var errs []error
	for _, worker := range m.workers {
		if err := worker.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", worker.Name(), err))
		}
	}

	m.wg.Wait()

	m.logger.Info("All workers stopped")
	return errors.Join(errs...)
}
