package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

const (
	tokenIssuer     = "proposta-facil"
	tokenTypeAccess = "access"
	tokenTypeGuest  = "guest"
)

// JWTClaims are the claims of tokens signed by this service.
type JWTClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Type  string `json:"type"`
	jwt.RegisteredClaims
}

func signToken(secret []byte, sub, email, typ string, now time.Time, ttl time.Duration) (string, error) {
	claims := JWTClaims{
		Sub:   sub,
		Email: email,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    tokenIssuer,
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func parseToken(secret []byte, tokenString, typ string, now time.Time) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Type != typ {
		return nil, &domain.ErrUnauthorized{Message: "Tipo de token inválido"}
	}
	return claims, nil
}

// peekType reads the type claim without verifying the signature; it only
// routes the token to the right verifier.
func peekType(tokenString string) string {
	var claims JWTClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return ""
	}
	return claims.Type
}

// ============================================================
// Supabase access tokens
// ============================================================

// SupabaseClaims are the claims of a Supabase GoTrue access token.
type SupabaseClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

func supabaseUser(token *jwt.Token, err error) (domain.AuthenticatedUser, error) {
	if err != nil {
		return domain.AuthenticatedUser{}, &domain.ErrUnauthorized{Message: "Token inválido ou expirado"}
	}
	claims, ok := token.Claims.(*SupabaseClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return domain.AuthenticatedUser{}, &domain.ErrUnauthorized{Message: "Token inválido"}
	}
	if claims.Role != "" && claims.Role != "authenticated" {
		return domain.AuthenticatedUser{}, &domain.ErrUnauthorized{Message: "Sessão não autenticada"}
	}
	return domain.AuthenticatedUser{ID: claims.Subject, Mail: claims.Email}, nil
}

// HS256Verifier checks Supabase tokens against the project's JWT secret.
type HS256Verifier struct {
	secret []byte
}

// NewHS256Verifier creates a shared-secret verifier.
func NewHS256Verifier(secret string) *HS256Verifier {
	return &HS256Verifier{secret: []byte(secret)}
}

func (v *HS256Verifier) Verify(_ context.Context, tokenString string) (domain.AuthenticatedUser, error) {
	return supabaseUser(jwt.ParseWithClaims(tokenString, &SupabaseClaims{}, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	))
}

// JWKSVerifier checks Supabase tokens signed with asymmetric keys published
// at the project's JWKS endpoint. Keys are refreshed in the background.
type JWKSVerifier struct {
	jwks keyfunc.Keyfunc
}

// NewJWKSVerifier loads the key set at url.
func NewJWKSVerifier(ctx context.Context, url string) (*JWKSVerifier, error) {
	jwks, err := keyfunc.NewDefaultCtx(ctx, []string{url})
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS from resource at %s: %w", url, err)
	}
	return &JWKSVerifier{jwks: jwks}, nil
}

func (v *JWKSVerifier) Verify(_ context.Context, tokenString string) (domain.AuthenticatedUser, error) {
	return supabaseUser(jwt.ParseWithClaims(tokenString, &SupabaseClaims{}, v.jwks.Keyfunc,
		jwt.WithValidMethods([]string{"RS256", "ES256"}),
		jwt.WithExpirationRequired(),
	))
}
