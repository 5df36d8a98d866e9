package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/port"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// LocalIdentity is the built-in identity provider for the SQL backends:
// accounts live in the user store with bcrypt hashes and access tokens are
// HS256 tokens signed by this service.
type LocalIdentity struct {
	users  port.UserStore
	secret []byte
	ttl    time.Duration
	cost   int
	clock  Clock
	logger *zap.Logger
}

// NewLocalIdentity creates the provider. It implements both
// port.IdentityProvider and port.TokenVerifier.
func NewLocalIdentity(users port.UserStore, secret string, ttl time.Duration, logger *zap.Logger) *LocalIdentity {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &LocalIdentity{
		users:  users,
		secret: []byte(secret),
		ttl:    ttl,
		cost:   bcrypt.DefaultCost,
		clock:  time.Now,
		logger: logger,
	}
}

// WithCost sets the bcrypt cost. Tests use bcrypt.MinCost.
func (l *LocalIdentity) WithCost(cost int) *LocalIdentity {
	l.cost = cost
	return l
}

var errInvalidCredentials = &domain.ErrUnauthorized{Message: "E-mail ou senha inválidos"}

func (l *LocalIdentity) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "LocalIdentity.SignIn")
	defer span.End()

	u, err := l.users.GetUserByEmail(ctx, creds.Email)
	if err != nil {
		var notFound *domain.ErrNotFound
		if errors.As(err, &notFound) {
			return nil, errInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(creds.Password)); err != nil {
		l.logger.Warn("local sign in: wrong password", zap.String("user_id", u.ID))
		return nil, errInvalidCredentials
	}
	return l.session(u)
}

// SignUp creates the account and signs it in.
func (l *LocalIdentity) SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := authTracer.Start(ctx, "LocalIdentity.SignUp")
	defer span.End()

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), l.cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	u, err := l.users.CreateUser(ctx, &domain.UserAccount{Email: creds.Email, PasswordHash: string(hash)})
	if err != nil {
		return nil, err
	}
	return l.session(u)
}

// SignOut is a no-op: local access tokens are stateless and expire.
func (l *LocalIdentity) SignOut(context.Context, string) error { return nil }

func (l *LocalIdentity) Verify(_ context.Context, token string) (domain.AuthenticatedUser, error) {
	claims, err := parseToken(l.secret, token, tokenTypeAccess, l.clock())
	if err != nil {
		return domain.AuthenticatedUser{}, err
	}
	return domain.AuthenticatedUser{ID: claims.Sub, Mail: claims.Email}, nil
}

func (l *LocalIdentity) session(u *domain.UserAccount) (*domain.Session, error) {
	token, err := signToken(l.secret, u.ID, u.Email, tokenTypeAccess, l.clock(), l.ttl)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	return &domain.Session{
		AccessToken: token,
		ExpiresIn:   int(l.ttl.Seconds()),
		UserID:      u.ID,
		Email:       u.Email,
	}, nil
}
