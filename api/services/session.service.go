package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"tourist-overwatch/pkg/engine/session"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrChallengeNotFound  = errors.New("login challenge not found")
	ErrInvalidOTP         = errors.New("invalid OTP")
	ErrSessionNotFound    = errors.New("session not found")
)

const (
	msgOTPSent   = "OTP sent successfully"
	msgOTPResent = "OTP resent successfully"
	challengeTTL = 5 * time.Minute
	otpDigits    = 6
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=police tourism"`
}

type VerifyOTPRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required"`
	OTP         string `json:"otp" validate:"required,len=6,numeric"`
}

type ResendOTPRequest struct {
	ChallengeID string `json:"challenge_id" validate:"required"`
}

type LoginChallenge struct {
	ChallengeID string    `json:"challenge_id"`
	Role        string    `json:"role"`
	ExpiresAt   time.Time `json:"expires_at"`
	Message     string    `json:"message"`
}

type LoginResult struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Role      string `json:"role"`
}

// SessionFactory builds an unstarted engine session for a verified login.
type SessionFactory func(id, role string) (*session.Session, error)

type challenge struct {
	email     string
	role      string
	expiresAt time.Time
}

// SessionService is the login stub in front of the engine: any password is
// accepted and any six digit code verifies.
type SessionService struct {
	mu         sync.Mutex
	challenges map[string]*challenge
	sessions   map[string]*session.Session

	factory  SessionFactory
	validate *validator.Validate
	now      func() time.Time
	logger   *zap.Logger
}

func NewSessionService(factory SessionFactory, logger *zap.Logger) *SessionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionService{
		challenges: make(map[string]*challenge),
		sessions:   make(map[string]*session.Session),
		factory:    factory,
		validate:   validator.New(),
		now:        time.Now,
		logger:     logger.Named("sessions"),
	}
}

func (s *SessionService) BeginLogin(req *LoginRequest) (*LoginChallenge, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	id := uuid.New().String()
	c := &challenge{email: req.Email, role: req.Role, expiresAt: s.now().Add(challengeTTL)}
	s.challenges[id] = c

	s.logger.Info("Login challenge issued", zap.String("challenge_id", id), zap.String("role", req.Role))
	return &LoginChallenge{ChallengeID: id, Role: c.role, ExpiresAt: c.expiresAt, Message: msgOTPSent}, nil
}

func (s *SessionService) ResendOTP(req *ResendOTPRequest) (*LoginChallenge, error) {
	if err := s.validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pruneLocked()

	c, ok := s.challenges[req.ChallengeID]
	if !ok {
		return nil, ErrChallengeNotFound
	}
	c.expiresAt = s.now().Add(challengeTTL)
	return &LoginChallenge{ChallengeID: req.ChallengeID, Role: c.role, ExpiresAt: c.expiresAt, Message: msgOTPResent}, nil
}

// VerifyOTP consumes the challenge and starts a session for its role.
func (s *SessionService) VerifyOTP(req *VerifyOTPRequest) (*LoginResult, error) {
	if err := s.validate.Var(req.ChallengeID, "required"); err != nil {
		return nil, fmt.Errorf("%w: challenge_id is required", ErrInvalidRequest)
	}
	if err := s.validate.Var(req.OTP, fmt.Sprintf("required,len=%d,numeric", otpDigits)); err != nil {
		return nil, fmt.Errorf("%w: enter a %d digit code", ErrInvalidOTP, otpDigits)
	}

	s.mu.Lock()
	s.pruneLocked()
	c, ok := s.challenges[req.ChallengeID]
	if ok {
		delete(s.challenges, req.ChallengeID)
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrChallengeNotFound
	}

	sess, err := s.factory(uuid.New().String(), c.role)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	if err := sess.Start(); err != nil {
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	token := uuid.New().String()
	s.mu.Lock()
	s.sessions[token] = sess
	s.mu.Unlock()

	s.logger.Info("Session opened", zap.String("session_id", sess.ID()), zap.String("role", c.role))
	return &LoginResult{Token: token, SessionID: sess.ID(), Role: c.role}, nil
}

func (s *SessionService) Session(token string) (*session.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

// Logout stops the session's timers and forgets the token.
func (s *SessionService) Logout(token string) error {
	s.mu.Lock()
	sess, ok := s.sessions[token]
	delete(s.sessions, token)
	s.mu.Unlock()
	if !ok {
		return ErrSessionNotFound
	}

	sess.Stop()
	s.logger.Info("Session closed", zap.String("session_id", sess.ID()))
	return nil
}

func (s *SessionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// StopAll ends every open session; used on shutdown.
func (s *SessionService) StopAll() {
	s.mu.Lock()
	open := make([]*session.Session, 0, len(s.sessions))
	for token, sess := range s.sessions {
		open = append(open, sess)
		delete(s.sessions, token)
	}
	s.mu.Unlock()

	var wg sync.WaitGroup
	for _, sess := range open {
		wg.Add(1)
		go func(sess *session.Session) {
			defer wg.Done()
			sess.Stop()
		}(sess)
	}
	wg.Wait()
}

func (s *SessionService) pruneLocked() {
	now := s.now()
	for id, c := range s.challenges {
		if now.After(c.expiresAt) {
			delete(s.challenges, id)
		}
	}
}
