package embeddednats

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"
)

func startTestServer(t *testing.T) *EmbeddedNATS {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Port = -1
	cfg.DataDir = t.TempDir()

	en, err := New(cfg)
	require.NoError(t, err)
	require.NoError(t, en.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = en.Shutdown(ctx)
	})
	require.NoError(t, en.CreateOverwatchStreams())
	return en
}

func TestEmbeddedNATSStreams(t *testing.T) {
	en := startTestServer(t)
	require.NoError(t, en.HealthCheck())

	for _, name := range []string{shared.StreamDispatch, shared.StreamAudit} {
		info, err := en.JetStream().StreamInfo(name)
		require.NoError(t, err, name)
		assert.Equal(t, name, info.Config.Name)
	}

	// declaring again updates in place
	require.NoError(t, en.CreateOverwatchStreams())

	require.NoError(t, en.CreateDurableConsumer(shared.StreamAudit, shared.ConsumerAuditProcessor, shared.SubjectAuditAll))
	require.NoError(t, en.CreateDurableConsumer(shared.StreamAudit, shared.ConsumerAuditProcessor, shared.SubjectAuditAll))
}

func TestPublisher(t *testing.T) {
	en := startTestServer(t)
	pub := NewPublisher(en)
	ctx := context.Background()

	require.NoError(t, pub.Dispatch(ctx, ontology.DispatchRequest{SessionID: "s1", AlertID: "1"}))

	ev := shared.Event{ID: "e1", Type: shared.EventTypeAlertEmitted, SessionID: "s1"}
	require.NoError(t, pub.Publish(ctx, ev))
	require.NoError(t, pub.Publish(ctx, ev), "duplicate publish is accepted")

	dispatch, err := en.JetStream().StreamInfo(shared.StreamDispatch)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), dispatch.State.Msgs)

	audit, err := en.JetStream().StreamInfo(shared.StreamAudit)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), audit.State.Msgs, "same event id is stored once")
}

func TestNewRequiresDataDir(t *testing.T) {
	_, err := New(&Config{Port: -1})
	assert.Error(t, err)
}
