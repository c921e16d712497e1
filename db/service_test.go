package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourist-overwatch/pkg/shared"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	svc, err := New(&Config{DBPath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name)})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestNewInitializesSchema(t *testing.T) {
	svc := newTestService(t)
	assert.NoError(t, svc.VerifySchema())
	assert.NoError(t, svc.Health())

	// applying twice is harmless
	assert.NoError(t, svc.InitializeSchema())
}

func TestTransactionRollsBack(t *testing.T) {
	svc := newTestService(t)
	now := time.Now().UTC()

	boom := errors.New("boom")
	err := svc.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO rescue_operations
			(operation_id, tourist_name, location, sos_time, unit_dispatched, status, priority, created_at, updated_at)
			VALUES ('RO-X', 'n', 'l', ?, 'u', 'ongoing', 'high', ?, ?)`, now, now, now)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int
	require.NoError(t, svc.DB.QueryRow(`SELECT COUNT(*) FROM rescue_operations`).Scan(&n))
	assert.Zero(t, n)
}

func TestTransactionRejectsBadStatus(t *testing.T) {
	svc := newTestService(t)
	now := time.Now().UTC()

	err := svc.Transaction(func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO rescue_operations
			(operation_id, tourist_name, location, sos_time, unit_dispatched, status, priority, created_at, updated_at)
			VALUES ('RO-Y', 'n', 'l', ?, 'u', 'lost', 'high', ?, ?)`, now, now, now)
		return err
	})
	assert.Error(t, err)
}

func TestJournalPublishAndList(t *testing.T) {
	svc := newTestService(t)
	journal := NewJournal(svc)
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	events := []shared.Event{
		{ID: "e1", Type: shared.EventTypeSessionStarted, SessionID: "s1", Subject: shared.AuditSubject("s1", shared.EventTypeSessionStarted), Timestamp: base},
		{ID: "e2", Type: shared.EventTypeAlertEmitted, SessionID: "s1", Data: map[string]interface{}{"alert_id": "1"}, Timestamp: base.Add(time.Second)},
		{ID: "e3", Type: shared.EventTypeAlertEmitted, SessionID: "s2", Timestamp: base},
	}
	for _, ev := range events {
		require.NoError(t, journal.Publish(ctx, ev))
	}
	// redelivery of the same id
	require.NoError(t, journal.Publish(ctx, events[1]))

	got, err := journal.List(ctx, "s1", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "e1", got[0].ID)
	assert.Equal(t, "e2", got[1].ID)
	assert.Equal(t, "1", got[1].Data["alert_id"])
	assert.True(t, base.Add(time.Second).Equal(got[1].Timestamp))

	limited, err := journal.List(ctx, "s1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	n, err := journal.Count(ctx, "s1", shared.EventTypeAlertEmitted)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	empty, err := journal.List(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestJournalListFollowsEngineOrder(t *testing.T) {
	svc := newTestService(t)
	journal := NewJournal(svc)
	ctx := context.Background()
	at := time.Date(2025, 3, 1, 9, 0, 10, 0, time.UTC)

	// same timestamp, inserted out of order by concurrent publishers
	for _, seq := range []uint64{3, 1, 4, 2} {
		require.NoError(t, journal.Publish(ctx, shared.Event{
			ID:        fmt.Sprintf("e%d", seq),
			Type:      shared.EventTypeRibbonAction,
			SessionID: "s1",
			Timestamp: at,
			Sequence:  seq,
		}))
	}

	for i := 0; i < 3; i++ {
		got, err := journal.List(ctx, "s1", 0)
		require.NoError(t, err)
		ids := make([]string, len(got))
		for j, ev := range got {
			ids[j] = ev.ID
		}
		assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, ids)
		assert.Equal(t, uint64(4), got[3].Sequence)
	}
}
