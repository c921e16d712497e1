package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"tourist-overwatch/api/middleware"
	"tourist-overwatch/api/services"
	"tourist-overwatch/db"
	"tourist-overwatch/pkg/engine/alerts"
	"tourist-overwatch/pkg/engine/navigation"
	"tourist-overwatch/pkg/engine/ribbon"
	"tourist-overwatch/pkg/engine/session"
	"tourist-overwatch/pkg/metrics"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/registry"
	"tourist-overwatch/pkg/shared"
	embeddednats "tourist-overwatch/pkg/services/embedded-nats"
)

const serviceName = "tourist-overwatch"

type Deps struct {
	Sessions *services.SessionService
	Rescue   *services.RescueService
	Registry *registry.Registry
	Journal  *db.Journal
	DB       *db.Service
	// NATS is nil when the embedded server is disabled.
	NATS    *embeddednats.EmbeddedNATS
	Metrics *metrics.Collector
	Logger  *zap.Logger
}

type Handlers struct {
	sessions *services.SessionService
	rescue   *services.RescueService
	registry *registry.Registry
	journal  *db.Journal
	db       *db.Service
	nats     *embeddednats.EmbeddedNATS
	metrics  *metrics.Collector
	logger   *zap.Logger
	validate *validator.Validate
	started  time.Time
}

func NewHandlers(deps Deps) *Handlers {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		sessions: deps.Sessions,
		rescue:   deps.Rescue,
		registry: deps.Registry,
		journal:  deps.Journal,
		db:       deps.DB,
		nats:     deps.NATS,
		metrics:  deps.Metrics,
		logger:   logger.Named("api"),
		validate: validator.New(),
		started:  time.Now(),
	}
}

type resolveRequest struct {
	AlertID string `json:"alert_id" validate:"required"`
}

type selectRequest struct {
	Ref string `json:"ref" validate:"required"`
}

type gotoRequest struct {
	View ontology.View `json:"view" validate:"required"`
}

type ribbonActionRequest struct {
	Action   ontology.RibbonAction `json:"action" validate:"required"`
	Instance uint64                `json:"instance"`
}

type sessionView struct {
	session.Snapshot
	Tourists map[ontology.TouristStatus]int `json:"tourists"`
}

// Login handlers
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req services.LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	challenge, err := h.sessions.BeginLogin(&req)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusCreated, challenge)
}

func (h *Handlers) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req services.VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	result, err := h.sessions.VerifyOTP(&req)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusCreated, result)
}

func (h *Handlers) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req services.ResendOTPRequest
	if !h.decode(w, r, &req) {
		return
	}

	challenge, err := h.sessions.ResendOTP(&req)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, challenge)
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	token, _ := middleware.TokenFromContext(r.Context())
	if err := h.sessions.Logout(token); err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// Session handlers
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	sess := mustSession(r)
	snap, err := sess.Snapshot()
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, sessionView{Snapshot: snap, Tourists: h.registry.StatusCounts()})
}

func (h *Handlers) GetNotices(w http.ResponseWriter, r *http.Request) {
	notices, err := mustSession(r).DrainNotices()
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, notices)
}

// Tourist handlers
func (h *Handlers) ListTourists(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := ontology.TouristStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", fmt.Sprintf("unknown status %q", status))
		return
	}
	sendSuccess(w, http.StatusOK, h.registry.Search(q.Get("q"), status))
}

func (h *Handlers) GetTourist(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var (
		tourist ontology.Tourist
		err     error
	)
	if id := q.Get("id"); id != "" {
		tourist, err = h.registry.LookupByID(id)
	} else {
		tourist, err = h.registry.LookupByTripReference(q.Get("trip_ref"))
	}
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, tourist)
}

// Alert handlers
func (h *Handlers) ListAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ontology.AlertFilter{
		Query:    q.Get("q"),
		Kind:     ontology.AlertKind(q.Get("kind")),
		Severity: ontology.Severity(q.Get("severity")),
	}
	if err := h.validate.Struct(filter); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	active, err := mustSession(r).QueryAlerts(filter)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, active)
}

func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}

	resolved, err := mustSession(r).ResolveAlert(req.AlertID)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, resolved)
}

func (h *Handlers) DispatchRescue(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !h.decode(w, r, &req) {
		return
	}

	if err := mustSession(r).DispatchRescue(req.AlertID); err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusAccepted, map[string]string{"alert_id": req.AlertID, "message": "Rescue unit dispatched"})
}

func (h *Handlers) AlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := mustSession(r).Stats()
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, stats)
}

func (h *Handlers) ResolvedAlerts(w http.ResponseWriter, r *http.Request) {
	resolved, err := mustSession(r).Resolved()
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, resolved)
}

// Navigation handlers
func (h *Handlers) GetNavigation(w http.ResponseWriter, r *http.Request) {
	state, err := mustSession(r).Navigation()
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, state)
}

func (h *Handlers) SelectTourist(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !h.decode(w, r, &req) {
		return
	}

	state, err := mustSession(r).SelectEntity(req.Ref)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, state)
}

func (h *Handlers) Navigate(w http.ResponseWriter, r *http.Request) {
	var req gotoRequest
	if !h.decode(w, r, &req) {
		return
	}

	state, err := mustSession(r).NavigateTo(req.View)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, state)
}

func (h *Handlers) Back(w http.ResponseWriter, r *http.Request) {
	state, err := mustSession(r).Back()
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, state)
}

// Ribbon handlers
func (h *Handlers) GetRibbon(w http.ResponseWriter, r *http.Request) {
	state, err := mustSession(r).Ribbon()
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, state)
}

func (h *Handlers) RibbonAction(w http.ResponseWriter, r *http.Request) {
	var req ribbonActionRequest
	if !h.decode(w, r, &req) {
		return
	}

	result, err := mustSession(r).RibbonAction(req.Action, req.Instance)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, result)
}

// Rescue operation handlers
func (h *Handlers) ListRescueOperations(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("id"); id != "" {
		op, err := h.rescue.Get(r.Context(), id)
		if err != nil {
			h.sendFailure(w, err)
			return
		}
		sendSuccess(w, http.StatusOK, op)
		return
	}

	ops, err := h.rescue.List(r.Context())
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	stats, err := h.rescue.Stats(r.Context())
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, map[string]interface{}{"operations": ops, "stats": stats})
}

func (h *Handlers) UpdateRescueOperation(w http.ResponseWriter, r *http.Request) {
	var req ontology.UpdateOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return
	}

	op, err := h.rescue.UpdateStatus(r.Context(), &req)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	if err := mustSession(r).Notify(fmt.Sprintf("Operation status updated to %s", op.Status)); err != nil {
		h.logger.Warn("Failed to post notice", zap.Error(err))
	}
	sendSuccess(w, http.StatusOK, op)
}

// Audit handlers
func (h *Handlers) ListAudit(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			sendError(w, http.StatusBadRequest, "INVALID_REQUEST", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	events, err := h.journal.List(r.Context(), mustSession(r).ID(), limit)
	if err != nil {
		h.sendFailure(w, err)
		return
	}
	sendSuccess(w, http.StatusOK, events)
}

// Health check
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	health := shared.HealthStatus{
		Status:    "healthy",
		Service:   serviceName,
		Uptime:    time.Since(h.started),
		Timestamp: time.Now(),
		Details:   make(map[string]string),
	}

	if err := h.db.Health(); err != nil {
		health.Status = "unhealthy"
		health.Details["database"] = "unhealthy: " + err.Error()
	} else {
		health.Details["database"] = "healthy"
	}

	if h.nats == nil {
		health.Details["nats"] = "disabled"
	} else if err := h.nats.HealthCheck(); err != nil {
		health.Status = "unhealthy"
		health.Details["nats"] = "unhealthy: " + err.Error()
	} else {
		health.Details["nats"] = "healthy"
	}

	health.Details["sessions"] = strconv.Itoa(h.sessions.Active())

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	sendSuccess(w, statusCode, health)
}

// decode reads a JSON body and validates it, writing the error response
// itself when either fails.
func (h *Handlers) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	if err := h.validate.Struct(v); err != nil {
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
		return false
	}
	return true
}

// sendFailure maps engine and service errors onto the response envelope.
func (h *Handlers) sendFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, alerts.ErrAlertNotFound),
		errors.Is(err, registry.ErrTouristNotFound),
		errors.Is(err, session.ErrSubjectNotFound),
		errors.Is(err, services.ErrOperationNotFound),
		errors.Is(err, services.ErrChallengeNotFound):
		sendError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
	case errors.Is(err, navigation.ErrNoSelection),
		errors.Is(err, ribbon.ErrRibbonHidden),
		errors.Is(err, ribbon.ErrStaleRibbon):
		sendError(w, http.StatusConflict, "INVALID_TRANSITION", err.Error())
	case errors.Is(err, navigation.ErrUnknownView),
		errors.Is(err, ribbon.ErrUnknownAction),
		errors.Is(err, services.ErrInvalidRequest),
		errors.Is(err, services.ErrInvalidOTP):
		sendError(w, http.StatusBadRequest, "INVALID_REQUEST", err.Error())
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, session.ErrSessionClosed):
		sendError(w, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	default:
		h.logger.Error("Request failed", zap.Error(err))
		sendError(w, http.StatusInternalServerError, "INTERNAL_ERROR", err.Error())
	}
}

// mustSession is only called behind BearerAuth.
func mustSession(r *http.Request) *session.Session {
	sess, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		panic("api: handler registered without BearerAuth")
	}
	return sess
}

// Helper functions
func sendSuccess(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := shared.Response{
		Success: true,
		Data:    data,
	}

	json.NewEncoder(w).Encode(response)
}

func sendError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := shared.Response{
		Success: false,
		Error: &shared.Error{
			Code:    code,
			Message: message,
		},
	}

	json.NewEncoder(w).Encode(response)
}

func methodNotAllowed(w http.ResponseWriter) {
	sendError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
}

// RegisterRoutes sets up all API routes
func (h *Handlers) RegisterRoutes(mux *http.ServeMux) {
	auth := middleware.BearerAuth(h.sessions)

	// No auth required
	mux.HandleFunc("/health", h.HealthCheck)
	if h.metrics != nil {
		mux.Handle("/metrics", h.metrics.Handler())
	}

	post := func(path string, handler http.HandlerFunc) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w)
				return
			}
			handler(w, r)
		})
	}
	get := func(path string, handler http.HandlerFunc) {
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w)
				return
			}
			handler(w, r)
		})
	}

	post("/api/v1/login", h.Login)
	post("/api/v1/login/verify", h.VerifyOTP)
	post("/api/v1/login/resend", h.ResendOTP)
	post("/api/v1/logout", auth(h.Logout))

	get("/api/v1/session", auth(h.GetSession))
	get("/api/v1/notices", auth(h.GetNotices))
	get("/api/v1/audit", auth(h.ListAudit))

	mux.HandleFunc("/api/v1/tourists", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			q := r.URL.Query()
			if q.Get("id") != "" || q.Get("trip_ref") != "" {
				auth(h.GetTourist)(w, r)
			} else {
				auth(h.ListTourists)(w, r)
			}
		default:
			methodNotAllowed(w)
		}
	})

	get("/api/v1/alerts", auth(h.ListAlerts))
	post("/api/v1/alerts/resolve", auth(h.ResolveAlert))
	post("/api/v1/alerts/dispatch", auth(h.DispatchRescue))
	get("/api/v1/alerts/stats", auth(h.AlertStats))
	get("/api/v1/alerts/resolved", auth(h.ResolvedAlerts))

	get("/api/v1/navigation", auth(h.GetNavigation))
	post("/api/v1/navigation/select", auth(h.SelectTourist))
	post("/api/v1/navigation/goto", auth(h.Navigate))
	post("/api/v1/navigation/back", auth(h.Back))

	get("/api/v1/ribbon", auth(h.GetRibbon))
	post("/api/v1/ribbon/action", auth(h.RibbonAction))

	mux.HandleFunc("/api/v1/rescue-operations", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			auth(h.ListRescueOperations)(w, r)
		case http.MethodPut:
			auth(h.UpdateRescueOperation)(w, r)
		default:
			methodNotAllowed(w)
		}
	})
}
