package main

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"tourist-overwatch/pkg/config"
	"tourist-overwatch/pkg/ontology"
	embeddednats "tourist-overwatch/pkg/services/embedded-nats"
	"tourist-overwatch/pkg/services/workers"
	"tourist-overwatch/pkg/shared"
)

type nopLedger struct{}

func (nopLedger) RecordDispatch(context.Context, ontology.DispatchRequest) (ontology.RescueOperation, error) {
	return ontology.RescueOperation{}, nil
}

type nopJournal struct{}

func (nopJournal) Publish(context.Context, shared.Event) error { return nil }

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("NATS_PORT", "-1")
	t.Setenv("NATS_DATA_DIR", t.TempDir())
	cfg, err := config.Parse()
	require.NoError(t, err)
	cfg.ShutdownTimeout = 5 * time.Second
	return cfg
}

func TestInitMessaging(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	cfg := testConfig(t)

	en, manager, err := initMessaging(cfg, nopLedger{}, nopJournal{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, en.HealthCheck())

	require.NoError(t, manager.Stop())
	require.NoError(t, en.Shutdown(context.Background()))
}

func TestInitMessagingShutsDownNATSOnWorkerFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("starts an embedded NATS server")
	}
	cfg := testConfig(t)

	var started *embeddednats.EmbeddedNATS
	orig := newWorkerManager
	newWorkerManager = func(en *embeddednats.EmbeddedNATS, _ workers.Ledger, _ workers.Journal, _ *zap.Logger) (*workers.Manager, error) {
		started = en
		return nil, errors.New("consumer unavailable")
	}
	t.Cleanup(func() { newWorkerManager = orig })

	en, manager, err := initMessaging(cfg, nopLedger{}, nopJournal{}, zap.NewNop())
	assert.ErrorContains(t, err, "consumer unavailable")
	assert.Nil(t, en)
	assert.Nil(t, manager)

	require.NotNil(t, started)
	assert.Error(t, started.HealthCheck(), "NATS must not be left running")
	assert.True(t, started.Connection().IsClosed())
}
