package domain

import (
	"errors"
	"fmt"
)

// Error types shared by services, stores and handlers. Messages are in
// Portuguese because handlers return them to the editor as-is.

// ErrNotFound indicates a proposal, company, user or asset does not exist
// or belongs to another identity.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s não encontrado(a)", e.Resource)
	}
	return fmt.Sprintf("%s não encontrado(a): %s", e.Resource, e.ID)
}

// ErrExternalService wraps a failure of a backing service (Supabase, S3,
// NATS, a logo host).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("falha no serviço externo [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline or gave up
// waiting for a free export slot.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("tempo esgotado: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker of a backing service is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("serviço temporariamente indisponível: %s", e.Service)
}

// ErrValidation is a rejected input field.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("operação não permitida: %s", e.Action)
}

// ErrUnauthorized indicates missing, invalid or expired credentials.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "não autorizado"
}

// ErrConflict indicates a resource already exists (e.g. e-mail already registered).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrPartialSave indicates that a proposal save failed after the proposal row
// was written, so its items may be missing or stale. Retrying the save is safe
// for the proposal row but the item set is only consistent after a success.
type ErrPartialSave struct {
	ProposalID string
	Stage      string
	Err        error
}

func (e *ErrPartialSave) Error() string {
	return fmt.Sprintf("proposta %s salva parcialmente (falha em %s): %v", e.ProposalID, e.Stage, e.Err)
}

func (e *ErrPartialSave) Unwrap() error {
	return e.Err
}

// ErrExport indicates the document could not be turned into a file.
type ErrExport struct {
	Err error
}

func (e *ErrExport) Error() string {
	return fmt.Sprintf("falha ao exportar documento: %v", e.Err)
}

func (e *ErrExport) Unwrap() error {
	return e.Err
}

// ErrRasterizerUnavailable is returned by the no-op rasterizer.
var ErrRasterizerUnavailable = errors.New("exportação de PDF indisponível neste ambiente")

// ErrNoColor is returned by color extractors that could not find a color.
var ErrNoColor = errors.New("nenhuma cor encontrada")
