// Package session runs one operator's engine between login and logout.
//
// Timer emissions and operator intents are both funnelled into a single
// queue drained by one goroutine, so every mutation of the alert store,
// ribbon and router happens in the order it was queued. Public methods are
// synchronous: they queue their work and wait for the loop to run it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"tourist-overwatch/pkg/engine/alerts"
	"tourist-overwatch/pkg/engine/feed"
	"tourist-overwatch/pkg/engine/navigation"
	"tourist-overwatch/pkg/engine/ribbon"
	"tourist-overwatch/pkg/metrics"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/registry"
	"tourist-overwatch/pkg/shared"
)

var (
	ErrSessionClosed     = errors.New("session closed")
	ErrSessionNotStarted = errors.New("session not started")
	ErrSubjectNotFound   = errors.New("alert subject is not a registered tourist")
)

const (
	msgDispatchHelp   = "Alert sent to nearest police unit successfully"
	msgAcknowledged   = "Alert acknowledged"
	msgResolved       = "Alert marked as resolved"
	msgRescueDispatch = "Rescue unit dispatched"
	msgRibbonHidden   = "No alert to act on"
	msgRibbonStale    = "Alert was replaced by a newer one"

	// bound on fire-and-forget side effects
	sideEffectTimeout = 5 * time.Second
)

// Dispatcher forwards rescue requests. Calls are fire-and-forget.
type Dispatcher interface {
	Dispatch(ctx context.Context, req ontology.DispatchRequest) error
}

// Sink records journal events. Calls are fire-and-forget.
type Sink interface {
	Publish(ctx context.Context, event shared.Event) error
}

type Options struct {
	ID             string
	Role           string
	Registry       *registry.Registry
	Sequence       []ontology.AlertEvent
	Clock          clockwork.Clock
	Feed           *feed.Config
	NoticeCapacity int
	Dispatcher     Dispatcher
	Sink           Sink
	Metrics        *metrics.Collector
	Logger         *zap.Logger
}

type Session struct {
	id        string
	role      string
	clock     clockwork.Clock
	registry  *registry.Registry
	store     *alerts.Store
	ribbon    *ribbon.Controller
	router    *navigation.Router
	generator *feed.Generator
	notices   *noticeBoard

	dispatcher Dispatcher
	sink       Sink
	metrics    *metrics.Collector
	logger     *zap.Logger

	queue chan func()
	done  chan struct{}

	// numbers journal events in engine order
	eventSeq atomic.Uint64

	mu        sync.Mutex
	started   bool
	stopped   bool
	startedAt time.Time
	loopWG    sync.WaitGroup
	bgWG      sync.WaitGroup
}

// RibbonResult describes what a ribbon action did.
type RibbonResult struct {
	Outcome    ribbon.Outcome           `json:"outcome"`
	Ribbon     ontology.RibbonState     `json:"ribbon"`
	Navigation ontology.NavigationState `json:"navigation"`
	Navigated  bool                     `json:"navigated"`
}

// Snapshot is the read model a dashboard renders from.
type Snapshot struct {
	ID         string                   `json:"session_id"`
	Role       string                   `json:"role"`
	StartedAt  time.Time                `json:"started_at"`
	Navigation ontology.NavigationState `json:"navigation"`
	Ribbon     ontology.RibbonState     `json:"ribbon"`
	Stats      ontology.AlertStats      `json:"stats"`
}

func New(opts Options) (*Session, error) {
	if opts.Registry == nil {
		return nil, errors.New("session requires a tourist registry")
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ID == "" {
		opts.ID = uuid.New().String()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	log := opts.Logger.Named("session").With(zap.String("session_id", opts.ID))

	return &Session{
		id:         opts.ID,
		role:       opts.Role,
		clock:      opts.Clock,
		registry:   opts.Registry,
		store:      alerts.NewStore(opts.Clock),
		ribbon:     ribbon.NewController(),
		router:     navigation.NewRouter(opts.Registry),
		generator:  feed.New(opts.Clock, opts.Feed, opts.Sequence, log),
		notices:    newNoticeBoard(opts.NoticeCapacity),
		dispatcher: opts.Dispatcher,
		sink:       opts.Sink,
		metrics:    opts.Metrics,
		logger:     log,
		queue:      make(chan func()),
		done:       make(chan struct{}),
	}, nil
}

func (s *Session) ID() string   { return s.id }
func (s *Session) Role() string { return s.role }

// Start launches the intent loop and arms the alert feed.
func (s *Session) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrSessionClosed
	}
	if s.started {
		return nil
	}
	s.started = true
	s.startedAt = s.clock.Now()

	s.metrics.SessionStarted()
	s.record(shared.EventTypeSessionStarted, map[string]interface{}{"role": s.role})

	s.loopWG.Add(1)
	go s.loop()

	if !s.generator.Start(s.enqueueEmission) {
		s.logger.Info("Alert feed idle for this session")
	}

	s.logger.Info("Session started", zap.String("role", s.role))
	return nil
}

// Stop cancels the feed timers, drains the loop and waits for outstanding
// side effects. It is safe to call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	started := s.started
	s.mu.Unlock()

	s.generator.Stop()
	close(s.done)
	s.loopWG.Wait()

	if started {
		s.metrics.SessionEnded()
		s.record(shared.EventTypeSessionEnded, nil)
	}
	s.bgWG.Wait()

	s.logger.Info("Session stopped")
}

func (s *Session) loop() {
	defer s.loopWG.Done()
	for {
		select {
		case fn := <-s.queue:
			fn()
		case <-s.done:
			return
		}
	}
}

// call runs fn on the loop and waits for its result.
func call[T any](s *Session, fn func() (T, error)) (T, error) {
	var zero T

	s.mu.Lock()
	started, stopped := s.started, s.stopped
	s.mu.Unlock()
	if stopped {
		return zero, ErrSessionClosed
	}
	if !started {
		return zero, ErrSessionNotStarted
	}

	var (
		result T
		err    error
	)
	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		result, err = fn()
	}

	select {
	case s.queue <- task:
	case <-s.done:
		return zero, ErrSessionClosed
	}

	select {
	case <-finished:
		return result, err
	case <-s.done:
		select {
		case <-finished:
			return result, err
		default:
			return zero, ErrSessionClosed
		}
	}
}

// enqueueEmission runs on the feed's timer goroutine.
func (s *Session) enqueueEmission(ev ontology.AlertEvent) {
	select {
	case s.queue <- func() { s.handleEmission(ev) }:
	case <-s.done:
	}
}

func (s *Session) handleEmission(ev ontology.AlertEvent) {
	s.metrics.Emitted()
	log := s.logger.With(zap.String("alert_id", ev.ID))

	switch s.store.AddAlert(ev) {
	case alerts.Added:
		s.metrics.Added()
	case alerts.DuplicateActive:
		log.Debug("Alert already active, resurfacing on ribbon")
	case alerts.DuplicateResolved:
		log.Debug("Alert already resolved, emission suppressed")
		return
	}

	// the stored record keeps its original raise time
	if stored, ok := s.store.Active(ev.ID); ok {
		ev = stored
	}

	state := s.ribbon.Show(ev)
	s.record(shared.EventTypeAlertEmitted, map[string]interface{}{
		"alert_id": ev.ID,
		"kind":     ev.Kind,
		"severity": ev.Severity,
		"trip_ref": ev.SubjectTripRef,
		"instance": state.Instance,
	})
	log.Info("Alert surfaced on ribbon",
		zap.String("trip_ref", ev.SubjectTripRef),
		zap.Uint64("instance", state.Instance))
}

func (s *Session) SelectEntity(ref string) (ontology.NavigationState, error) {
	return call(s, func() (ontology.NavigationState, error) {
		return s.selectEntity(ref)
	})
}

func (s *Session) selectEntity(ref string) (ontology.NavigationState, error) {
	tourist, err := s.router.SelectEntity(ref)
	if err != nil {
		s.reject("not_found", fmt.Sprintf("Tourist %s not found", ref), err)
		return s.router.State(), err
	}
	s.record(shared.EventTypeSelected, map[string]interface{}{
		"tourist_id": tourist.ID,
		"trip_ref":   tourist.TripReference,
	})
	return s.router.State(), nil
}

func (s *Session) NavigateTo(view ontology.View) (ontology.NavigationState, error) {
	return call(s, func() (ontology.NavigationState, error) {
		state, err := s.router.NavigateTo(view)
		if err != nil {
			s.reject("invalid_transition", fmt.Sprintf("Cannot open %s", view), err)
			return s.router.State(), err
		}
		s.record(shared.EventTypeNavigated, map[string]interface{}{"view": view})
		return state, nil
	})
}

func (s *Session) Back() (ontology.NavigationState, error) {
	return call(s, func() (ontology.NavigationState, error) {
		state := s.router.Back()
		s.record(shared.EventTypeNavigated, map[string]interface{}{"view": state.ActiveView, "back": true})
		return state, nil
	})
}

func (s *Session) ResolveAlert(id string) (ontology.ResolvedAlert, error) {
	return call(s, func() (ontology.ResolvedAlert, error) {
		resolved, err := s.store.ResolveAlert(id)
		if err != nil {
			s.reject("not_found", fmt.Sprintf("Alert %s not found", id), err)
			return ontology.ResolvedAlert{}, err
		}
		s.metrics.Resolved()
		s.notices.success(msgResolved, s.clock.Now())
		s.record(shared.EventTypeAlertResolved, map[string]interface{}{"alert_id": id})
		return resolved, nil
	})
}

// RibbonAction applies one terminal action to the visible ribbon. Instance
// zero targets whatever is showing.
func (s *Session) RibbonAction(action ontology.RibbonAction, instance uint64) (RibbonResult, error) {
	return call(s, func() (RibbonResult, error) {
		out, err := s.ribbon.Act(action, instance)
		if err != nil {
			reason, message := "ribbon_hidden", msgRibbonHidden
			switch {
			case errors.Is(err, ribbon.ErrStaleRibbon):
				reason, message = "ribbon_stale", msgRibbonStale
			case errors.Is(err, ribbon.ErrUnknownAction):
				reason, message = "invalid_action", fmt.Sprintf("Unknown ribbon action %q", action)
			}
			s.reject(reason, message, err)
			return RibbonResult{Ribbon: s.ribbon.State(), Navigation: s.router.State()}, err
		}

		s.metrics.RibbonAction(string(action))
		s.record(shared.EventTypeRibbonAction, map[string]interface{}{
			"action":   action,
			"alert_id": out.Alert.ID,
			"instance": out.Instance,
		})

		result := RibbonResult{Outcome: out}
		var actErr error
		switch action {
		case ontology.RibbonView:
			actErr = s.viewSubject(out.Alert)
			result.Navigated = actErr == nil
		case ontology.RibbonDispatch:
			s.notices.success(msgDispatchHelp, s.clock.Now())
			s.dispatch(out.Alert)
		case ontology.RibbonAcknowledge:
			s.notices.success(msgAcknowledged, s.clock.Now())
		case ontology.RibbonDismiss:
		}

		result.Ribbon = s.ribbon.State()
		result.Navigation = s.router.State()
		return result, actErr
	})
}

func (s *Session) viewSubject(ev ontology.AlertEvent) error {
	tourist, err := s.registry.LookupByTripReference(ev.SubjectTripRef)
	if err != nil {
		err = fmt.Errorf("%w: %s", ErrSubjectNotFound, ev.SubjectTripRef)
		s.reject("not_found", fmt.Sprintf("Tourist %s is not registered", ev.SubjectTripRef), err)
		return err
	}
	_, err = s.selectEntity(tourist.ID)
	return err
}

// DispatchRescue requests a rescue unit for an active alert. The alert stays
// active.
func (s *Session) DispatchRescue(alertID string) error {
	_, err := call(s, func() (struct{}, error) {
		ev, ok := s.store.Active(alertID)
		if !ok {
			s.reject("not_found", fmt.Sprintf("Alert %s not found", alertID), alerts.ErrAlertNotFound)
			return struct{}{}, alerts.ErrAlertNotFound
		}
		s.notices.success(msgRescueDispatch, s.clock.Now())
		s.dispatch(ev)
		return struct{}{}, nil
	})
	return err
}

func (s *Session) QueryAlerts(filter ontology.AlertFilter) ([]ontology.AlertEvent, error) {
	return call(s, func() ([]ontology.AlertEvent, error) {
		return s.store.QueryActive(filter), nil
	})
}

func (s *Session) Stats() (ontology.AlertStats, error) {
	return call(s, func() (ontology.AlertStats, error) {
		return s.store.Stats(), nil
	})
}

func (s *Session) Resolved() ([]ontology.ResolvedAlert, error) {
	return call(s, func() ([]ontology.ResolvedAlert, error) {
		return s.store.Resolved(), nil
	})
}

func (s *Session) Navigation() (ontology.NavigationState, error) {
	return call(s, func() (ontology.NavigationState, error) {
		return s.router.State(), nil
	})
}

func (s *Session) Ribbon() (ontology.RibbonState, error) {
	return call(s, func() (ontology.RibbonState, error) {
		return s.ribbon.State(), nil
	})
}

func (s *Session) DrainNotices() ([]Notice, error) {
	return call(s, func() ([]Notice, error) {
		return s.notices.drain(), nil
	})
}

// Notify posts a success notice for an action handled outside the engine.
func (s *Session) Notify(message string) error {
	_, err := call(s, func() (Notice, error) {
		return s.notices.success(message, s.clock.Now()), nil
	})
	return err
}

func (s *Session) Snapshot() (Snapshot, error) {
	return call(s, func() (Snapshot, error) {
		return Snapshot{
			ID:         s.id,
			Role:       s.role,
			StartedAt:  s.startedAt,
			Navigation: s.router.State(),
			Ribbon:     s.ribbon.State(),
			Stats:      s.store.Stats(),
		}, nil
	})
}

func (s *Session) reject(reason, message string, err error) {
	s.metrics.Rejected(reason)
	s.notices.warning(message, s.clock.Now())
	s.logger.Info("Intent refused", zap.String("reason", reason), zap.Error(err))
}

func (s *Session) dispatch(ev ontology.AlertEvent) {
	req := ontology.DispatchRequest{
		SessionID:     s.id,
		AlertID:       ev.ID,
		TripReference: ev.SubjectTripRef,
		TouristName:   ev.SubjectName,
		Location:      ev.Location,
		Severity:      ev.Severity,
		RequestedAt:   s.clock.Now(),
	}
	s.record(shared.EventTypeDispatch, map[string]interface{}{
		"alert_id": ev.ID,
		"trip_ref": ev.SubjectTripRef,
	})

	if s.dispatcher == nil {
		return
	}
	s.background(func(ctx context.Context) {
		if err := s.dispatcher.Dispatch(ctx, req); err != nil {
			s.logger.Error("Failed to dispatch rescue", zap.String("alert_id", ev.ID), zap.Error(err))
		}
	})
}

func (s *Session) record(eventType string, data map[string]interface{}) {
	if s.sink == nil {
		return
	}
	if data == nil {
		data = map[string]interface{}{}
	}
	event := shared.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Subject:   shared.AuditSubject(s.id, eventType),
		SessionID: s.id,
		Data:      data,
		Timestamp: s.clock.Now().UTC(),
		Source:    "session",
		Sequence:  s.eventSeq.Add(1),
	}
	s.background(func(ctx context.Context) {
		if err := s.sink.Publish(ctx, event); err != nil {
			s.logger.Warn("Failed to record event", zap.String("type", eventType), zap.Error(err))
		}
	})
}

func (s *Session) background(fn func(ctx context.Context)) {
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), sideEffectTimeout)
		defer cancel()
		fn(ctx)
	}()
}
