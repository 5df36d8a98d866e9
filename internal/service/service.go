// Package service orchestrates the stores, the pricing engine and the
// document composer behind the HTTP handlers.
package service

import (
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
)

// Clock returns the current time. Tests pin it.
type Clock func() time.Time

func requireIdentity(id domain.Identity) error {
	if id == nil || id.UserID() == "" {
		return &domain.ErrUnauthorized{Message: "Sessão não encontrada"}
	}
	return nil
}
