package services

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tourist-overwatch/db"
	"tourist-overwatch/pkg/engine/session"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/registry"
	"tourist-overwatch/pkg/shared"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *db.Service {
	t.Helper()
	name := strings.ReplaceAll(t.Name(), "/", "_")
	svc, err := db.New(&db.Config{DBPath: fmt.Sprintf("file:%s?mode=memory&cache=shared", name)})
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func newTestSessions(t *testing.T) (*SessionService, *clockwork.FakeClock) {
	t.Helper()
	reg, err := registry.New(registry.SeedTourists())
	require.NoError(t, err)
	clk := clockwork.NewFakeClockAt(t0)

	svc := NewSessionService(func(id, role string) (*session.Session, error) {
		return session.New(session.Options{
			ID:       id,
			Role:     role,
			Registry: reg,
			Sequence: registry.SeedAlerts(),
			Clock:    clk,
		})
	}, nil)
	svc.now = clk.Now
	t.Cleanup(svc.StopAll)
	return svc, clk
}

// waitTimers blocks until n feed timers are armed on clk.
func waitTimers(t *testing.T, clk *clockwork.FakeClock, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clk.BlockUntilContext(ctx, n))
}

func requireNoTimer(t *testing.T, clk *clockwork.FakeClock) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, clk.BlockUntilContext(ctx, 1), context.DeadlineExceeded, "no timer may be armed")
}

func login(t *testing.T, svc *SessionService, role string) *LoginResult {
	t.Helper()
	challenge, err := svc.BeginLogin(&LoginRequest{Email: "officer@ne-police.in", Password: "secret", Role: role})
	require.NoError(t, err)
	result, err := svc.VerifyOTP(&VerifyOTPRequest{ChallengeID: challenge.ChallengeID, OTP: "123456"})
	require.NoError(t, err)
	return result
}

func TestBeginLoginValidation(t *testing.T) {
	svc, _ := newTestSessions(t)

	tests := []struct {
		name string
		req  LoginRequest
	}{
		{"missing email", LoginRequest{Password: "x", Role: shared.RolePolice}},
		{"bad email", LoginRequest{Email: "nope", Password: "x", Role: shared.RolePolice}},
		{"missing password", LoginRequest{Email: "a@b.in", Role: shared.RolePolice}},
		{"unknown role", LoginRequest{Email: "a@b.in", Password: "x", Role: "admin"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.BeginLogin(&tt.req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.NotErrorIs(t, err, ErrInvalidCredentials)
		})
	}

	challenge, err := svc.BeginLogin(&LoginRequest{Email: "a@b.in", Password: "x", Role: shared.RoleTourism})
	require.NoError(t, err)
	assert.NotEmpty(t, challenge.ChallengeID)
	assert.Equal(t, msgOTPSent, challenge.Message)
}

func TestVerifyOTP(t *testing.T) {
	svc, _ := newTestSessions(t)

	challenge, err := svc.BeginLogin(&LoginRequest{Email: "a@b.in", Password: "x", Role: shared.RolePolice})
	require.NoError(t, err)

	for _, otp := range []string{"", "12345", "1234567", "12a456"} {
		_, err := svc.VerifyOTP(&VerifyOTPRequest{ChallengeID: challenge.ChallengeID, OTP: otp})
		assert.ErrorIs(t, err, ErrInvalidOTP, otp)
	}

	result, err := svc.VerifyOTP(&VerifyOTPRequest{ChallengeID: challenge.ChallengeID, OTP: "000000"})
	require.NoError(t, err)
	assert.Equal(t, shared.RolePolice, result.Role)
	assert.Equal(t, 1, svc.Active())

	_, err = svc.VerifyOTP(&VerifyOTPRequest{ChallengeID: challenge.ChallengeID, OTP: "000000"})
	assert.ErrorIs(t, err, ErrChallengeNotFound, "a challenge verifies once")
}

func TestResendOTPExtendsChallenge(t *testing.T) {
	svc, clk := newTestSessions(t)

	challenge, err := svc.BeginLogin(&LoginRequest{Email: "a@b.in", Password: "x", Role: shared.RolePolice})
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	resent, err := svc.ResendOTP(&ResendOTPRequest{ChallengeID: challenge.ChallengeID})
	require.NoError(t, err)
	assert.True(t, resent.ExpiresAt.After(challenge.ExpiresAt))

	clk.Advance(4 * time.Minute)
	_, err = svc.VerifyOTP(&VerifyOTPRequest{ChallengeID: challenge.ChallengeID, OTP: "111111"})
	require.NoError(t, err)

	_, err = svc.ResendOTP(&ResendOTPRequest{ChallengeID: "missing"})
	assert.ErrorIs(t, err, ErrChallengeNotFound)

	_, err = svc.ResendOTP(&ResendOTPRequest{})
	assert.ErrorIs(t, err, ErrInvalidRequest)
	assert.NotErrorIs(t, err, ErrChallengeNotFound)

	_, err = svc.VerifyOTP(&VerifyOTPRequest{OTP: "123456"})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestChallengeExpires(t *testing.T) {
	svc, clk := newTestSessions(t)

	challenge, err := svc.BeginLogin(&LoginRequest{Email: "a@b.in", Password: "x", Role: shared.RolePolice})
	require.NoError(t, err)

	clk.Advance(challengeTTL + time.Second)
	_, err = svc.VerifyOTP(&VerifyOTPRequest{ChallengeID: challenge.ChallengeID, OTP: "111111"})
	assert.ErrorIs(t, err, ErrChallengeNotFound)
}

func TestLogoutStopsSession(t *testing.T) {
	svc, clk := newTestSessions(t)
	result := login(t, svc, shared.RolePolice)

	sess, err := svc.Session(result.Token)
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, sess.ID())
	waitTimers(t, clk, 1)

	require.NoError(t, svc.Logout(result.Token))
	requireNoTimer(t, clk)

	_, err = svc.Session(result.Token)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, svc.Logout(result.Token), ErrSessionNotFound)

	_, err = sess.Stats()
	assert.ErrorIs(t, err, session.ErrSessionClosed)
}

func TestSessionsAreIsolated(t *testing.T) {
	svc, clk := newTestSessions(t)
	a := login(t, svc, shared.RolePolice)
	b := login(t, svc, shared.RoleTourism)

	clk.Advance(10 * time.Second)
	waitTimers(t, clk, 2)

	sa, err := svc.Session(a.Token)
	require.NoError(t, err)
	sb, err := svc.Session(b.Token)
	require.NoError(t, err)

	_, err = sa.ResolveAlert("1")
	require.NoError(t, err)

	statsA, err := sa.Stats()
	require.NoError(t, err)
	statsB, err := sb.Stats()
	require.NoError(t, err)
	assert.Zero(t, statsA.TotalActive)
	assert.Equal(t, 1, statsB.TotalActive)

	svc.StopAll()
	assert.Zero(t, svc.Active())
	requireNoTimer(t, clk)
}

func newTestRescue(t *testing.T) *RescueService {
	t.Helper()
	svc := NewRescueService(newTestDB(t), nil)
	svc.now = func() time.Time { return t0 }
	require.NoError(t, svc.Seed(context.Background()))
	return svc
}

func TestRescueSeed(t *testing.T) {
	svc := newTestRescue(t)
	ctx := context.Background()

	// seeding twice keeps the ledger as is
	require.NoError(t, svc.Seed(ctx))

	ops, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, ops, 4)
	assert.Equal(t, "Raj Patel", ops[0].TouristName, "most recent SOS first")
	assert.Equal(t, "Emma Wilson", ops[3].TouristName)

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, ontology.OperationStats{Ongoing: 2, Rescued: 1, Closed: 1}, stats)
}

func TestRescueUpdateStatus(t *testing.T) {
	svc := newTestRescue(t)
	ctx := context.Background()

	op, err := svc.UpdateStatus(ctx, &ontology.UpdateOperationRequest{ID: "1", Status: ontology.OperationRescued})
	require.NoError(t, err)
	assert.Equal(t, ontology.OperationRescued, op.Status)
	assert.Equal(t, "Completed", op.EstimatedTime)

	_, err = svc.UpdateStatus(ctx, &ontology.UpdateOperationRequest{ID: "99", Status: ontology.OperationClosed})
	assert.ErrorIs(t, err, ErrOperationNotFound)

	_, err = svc.UpdateStatus(ctx, &ontology.UpdateOperationRequest{ID: "1", Status: "lost"})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Get(ctx, "99")
	assert.ErrorIs(t, err, ErrOperationNotFound)
}

func TestRescueRecordDispatch(t *testing.T) {
	svc := newTestRescue(t)
	ctx := context.Background()

	req := ontology.DispatchRequest{
		SessionID:     "s1",
		AlertID:       "1",
		TripReference: "TRIP-00124",
		TouristName:   "James Miller",
		Location:      "Kaziranga National Park, Assam",
		Severity:      ontology.SeverityHigh,
		RequestedAt:   t0,
	}
	op, err := svc.RecordDispatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, ontology.OperationOngoing, op.Status)
	assert.Equal(t, ontology.SeverityHigh, op.Priority)
	assert.NotEmpty(t, op.UnitDispatched)

	again, err := svc.RecordDispatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, op.ID, again.ID, "an ongoing operation is reused")

	require.NoError(t, svc.Dispatch(ctx, ontology.DispatchRequest{AlertID: "4", TouristName: "David Kim", Location: "Imphal", Severity: ontology.SeverityMedium}))

	stats, err := svc.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Ongoing)
}
