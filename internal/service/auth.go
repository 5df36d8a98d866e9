package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var authTracer = otel.Tracer("service/auth")

// AuthConfig configures guest sessions.
type AuthConfig struct {
	GuestEnabled bool
	GuestSecret  string
	GuestTTL     time.Duration
}

// AuthService signs users in and resolves bearer tokens into the request
// identity. It is the only place a guest identity is created.
type AuthService struct {
	provider     port.IdentityProvider
	verifier     port.TokenVerifier
	guestEnabled bool
	guestSecret  []byte
	guestTTL     time.Duration
	clock        Clock
	logger       *zap.Logger
}

// NewAuthService creates the auth service. provider and verifier may be nil
// when only guest sessions are offered.
func NewAuthService(provider port.IdentityProvider, verifier port.TokenVerifier, cfg AuthConfig, logger *zap.Logger) *AuthService {
	if cfg.GuestTTL <= 0 {
		cfg.GuestTTL = 24 * time.Hour
	}
	return &AuthService{
		provider:     provider,
		verifier:     verifier,
		guestEnabled: cfg.GuestEnabled,
		guestSecret:  []byte(cfg.GuestSecret),
		guestTTL:     cfg.GuestTTL,
		clock:        time.Now,
		logger:       logger,
	}
}

// WithClock overrides the time source.
func (s *AuthService) WithClock(c Clock) *AuthService {
	s.clock = c
	return s
}

var errNoProvider = errors.New("identity provider not configured")

// ============================================================
// SignIn / SignUp / SignOut
// ============================================================

func (s *AuthService) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.SignIn")
	defer span.End()

	if s.provider == nil {
		return nil, &domain.ErrExternalService{Service: "identity", Err: errNoProvider}
	}
	creds.Email = normalizeEmail(creds.Email)
	span.SetAttributes(attribute.String("user.email", creds.Email))

	sess, err := s.provider.SignIn(ctx, creds)
	if err != nil {
		s.logger.Warn("sign in failed", zap.String("email", creds.Email), zap.Error(err))
		return nil, fmt.Errorf("sign in: %w", err)
	}
	s.logger.Info("user signed in", zap.String("user_id", sess.UserID))
	return sess, nil
}

func (s *AuthService) SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "AuthService.SignUp")
	defer span.End()

	if s.provider == nil {
		return nil, &domain.ErrExternalService{Service: "identity", Err: errNoProvider}
	}
	creds.Email = normalizeEmail(creds.Email)

	sess, err := s.provider.SignUp(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sign up: %w", err)
	}
	s.logger.Info("user registered", zap.String("user_id", sess.UserID))
	return sess, nil
}

// SignOut ends the session at the provider. Guest sessions just expire.
func (s *AuthService) SignOut(ctx context.Context, id domain.Identity, accessToken string) error {
	ctx, span := authTracer.Start(ctx, "AuthService.SignOut")
	defer span.End()

	if id == nil || id.IsGuest() || s.provider == nil {
		return nil
	}
	if err := s.provider.SignOut(ctx, accessToken); err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	s.logger.Info("user signed out", zap.String("user_id", id.UserID()))
	return nil
}

// ============================================================
// Guest sessions
// ============================================================

// StartGuest issues a session for the shared guest identity.
func (s *AuthService) StartGuest(ctx context.Context) (*domain.Session, error) {
	_, span := authTracer.Start(ctx, "AuthService.StartGuest")
	defer span.End()

	if !s.guestEnabled || len(s.guestSecret) == 0 {
		return nil, &domain.ErrForbidden{Action: "modo visitante desativado"}
	}

	guest := domain.GuestUser{}
	token, err := signToken(s.guestSecret, guest.UserID(), guest.Email(), tokenTypeGuest, s.clock(), s.guestTTL)
	if err != nil {
		return nil, fmt.Errorf("sign guest token: %w", err)
	}
	return &domain.Session{
		AccessToken: token,
		ExpiresIn:   int(s.guestTTL.Seconds()),
		UserID:      guest.UserID(),
		Email:       guest.Email(),
		Guest:       true,
	}, nil
}

// ============================================================
// Resolve: used by the identity middleware
// ============================================================

// Resolve turns a bearer token into the request identity.
func (s *AuthService) Resolve(ctx context.Context, token string) (domain.Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" {
		return nil, &domain.ErrUnauthorized{Message: "Token ausente"}
	}

	if peekType(token) == tokenTypeGuest {
		if !s.guestEnabled {
			return nil, &domain.ErrUnauthorized{Message: "Modo visitante desativado"}
		}
		if _, err := parseToken(s.guestSecret, token, tokenTypeGuest, s.clock()); err != nil {
			return nil, err
		}
		return domain.GuestUser{}, nil
	}

	if s.verifier == nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	user, err := s.verifier.Verify(ctx, token)
	if err != nil {
		return nil, err
	}
	return user, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
