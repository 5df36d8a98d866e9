package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// GoTrue (Supabase Auth): email + password sessions
// ============================================================

// Auth implements port.IdentityProvider on top of Supabase Auth.
type Auth struct {
	client *Client
}

// NewAuth returns an identity provider backed by client.
func NewAuth(client *Client) *Auth {
	return &Auth{client: client}
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueSession struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	ExpiresIn    int        `json:"expires_in"`
	User         gotrueUser `json:"user"`

	// signup without auto-confirm returns the bare user
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueError struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
	Msg         string `json:"msg"`
	Message     string `json:"message"`
	Code        any    `json:"error_code"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.Description, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

// SignIn exchanges email and password for a session.
func (a *Auth) SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Auth.SignIn")
	defer span.End()

	s, err := a.post(ctx, "token?grant_type=password", creds, func(status int, msg string) error {
		return &domain.ErrUnauthorized{Message: "E-mail ou senha inválidos"}
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// SignUp creates an account. When the project requires email confirmation
// the returned session has no access token.
func (a *Auth) SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Auth.SignUp")
	defer span.End()

	s, err := a.post(ctx, "signup", creds, func(status int, msg string) error {
		if strings.Contains(strings.ToLower(msg), "already registered") {
			return &domain.ErrConflict{Message: "E-mail já cadastrado"}
		}
		return &domain.ErrValidation{Field: "password", Message: msg}
	})
	if err != nil {
		return nil, err
	}

	a.client.logger.Info("supabase: user registered", zap.String("user_id", s.UserID))
	return s, nil
}

// SignOut revokes the session behind accessToken.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Auth.SignOut")
	defer span.End()

	return a.client.call(ctx, "supabase/auth", func() error {
		req, err := a.client.newRequest(ctx, http.MethodPost, a.url("logout"), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+accessToken)
		_, status, err := a.client.send(req, "auth/logout")
		if status == http.StatusUnauthorized || status == http.StatusForbidden {
			// already expired or revoked
			return nil
		}
		return err
	})
}

func (a *Auth) url(path string) string {
	return fmt.Sprintf("%s/auth/v1/%s", a.client.baseURL, path)
}

func (a *Auth) post(ctx context.Context, path string, creds domain.Credentials, onClientError func(status int, msg string) error) (*domain.Session, error) {
	payload, err := json.Marshal(map[string]string{"email": creds.Email, "password": creds.Password})
	if err != nil {
		return nil, err
	}

	var session *domain.Session
	err = a.client.call(ctx, "supabase/auth", func() error {
		req, err := a.client.newRequest(ctx, http.MethodPost, a.url(path), bytes.NewReader(payload))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+a.client.apiKey)

		body, _, err := a.client.send(req, "auth/"+path)
		if err != nil {
			var serr *statusError
			if errors.As(err, &serr) && serr.Status < 500 && serr.Status != http.StatusTooManyRequests {
				var ge gotrueError
				_ = json.Unmarshal([]byte(serr.Body), &ge)
				return resilience.Permanent(onClientError(serr.Status, ge.text()))
			}
			return err
		}

		var gs gotrueSession
		if err := json.Unmarshal(body, &gs); err != nil {
			return resilience.Permanent(fmt.Errorf("decode auth session: %w", err))
		}
		session = &domain.Session{
			AccessToken:  gs.AccessToken,
			RefreshToken: gs.RefreshToken,
			ExpiresIn:    gs.ExpiresIn,
			UserID:       gs.User.ID,
			Email:        gs.User.Email,
		}
		if session.UserID == "" {
			session.UserID, session.Email = gs.ID, gs.Email
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return session, nil
}
