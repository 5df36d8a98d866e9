// Package domain defines the core business entities for Proposta Fácil.
// These models are independent of external services and represent the
// canonical data structures used throughout the service.
package domain

import (
	"strings"
	"time"
)

// DefaultValidityDays is the validity applied to new drafts.
const DefaultValidityDays = 30

// ============================================================
// Proposal lifecycle
// ============================================================

// Status is the lifecycle status of a proposal.
type Status string

const (
	StatusPendente Status = "pendente"
	StatusAprovada Status = "aprovada"
	StatusRecusada Status = "recusada"
)

var statusLabels = map[Status]string{
	StatusPendente: "Pendente",
	StatusAprovada: "Aprovada",
	StatusRecusada: "Recusada",
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusLabels[s]
	return ok
}

// Label returns the human-readable label. Unknown values read as Pendente.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return statusLabels[StatusPendente]
}

// ParseStatus normalizes a raw status value. Empty input maps to pendente.
func ParseStatus(raw string) (Status, bool) {
	s := Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == "" {
		return StatusPendente, true
	}
	return s, s.Valid()
}

// ============================================================
// Proposal / Line items
// ============================================================

// LineItem is one priced row of a proposal (itens_proposta).
type LineItem struct {
	Descricao  string `json:"descricao"`
	Quantidade Number `json:"quantidade"`
	ValorUnit  Number `json:"valor_unit"`
}

// Proposal is the persisted proposal row (propostas) with its items.
// Itens is nil when the items were not loaded.
type Proposal struct {
	ID               string     `json:"id"`
	UserID           string     `json:"user_id"`
	Titulo           string     `json:"titulo"`
	ClienteNome      string     `json:"cliente_nome"`
	ClienteEmail     string     `json:"cliente_email,omitempty"`
	ClienteTelefone  string     `json:"cliente_telefone,omitempty"`
	Observacoes      string     `json:"observacoes,omitempty"`
	ValidadeDias     Number     `json:"validade_dias"`
	Status           Status     `json:"status"`
	ValorTotal       Number     `json:"valor_total"`
	NumeroSequencial *int64     `json:"numero_sequencial,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	Itens            []LineItem `json:"itens,omitempty"`
}

// Draft is the editable, not-yet-persisted form of a proposal. Both the
// editor and the document composer work on drafts.
//
// ID is empty for a new proposal. NumeroSequencial and ValorTotal are only
// carried when the draft was derived from a persisted proposal.
type Draft struct {
	ID               string     `json:"id,omitempty"`
	Titulo           string     `json:"titulo"`
	ClienteNome      string     `json:"cliente_nome"`
	ClienteEmail     string     `json:"cliente_email,omitempty"`
	ClienteTelefone  string     `json:"cliente_telefone,omitempty"`
	Observacoes      string     `json:"observacoes,omitempty"`
	ValidadeDias     Number     `json:"validade_dias"`
	Status           Status     `json:"status,omitempty"`
	NumeroSequencial *int64     `json:"numero_sequencial,omitempty"`
	ValorTotal       *Number    `json:"valor_total,omitempty"`
	Itens            []LineItem `json:"itens"`
}

// NewDraft returns the initial state of the proposal editor.
func NewDraft() Draft {
	return Draft{
		ValidadeDias: DefaultValidityDays,
		Status:       StatusPendente,
		Itens:        []LineItem{{Descricao: "", Quantidade: 1, ValorUnit: 0}},
	}
}

// Draft converts a persisted proposal back into an editable draft.
func (p *Proposal) Draft() Draft {
	total := p.ValorTotal
	d := Draft{
		ID:               p.ID,
		Titulo:           p.Titulo,
		ClienteNome:      p.ClienteNome,
		ClienteEmail:     p.ClienteEmail,
		ClienteTelefone:  p.ClienteTelefone,
		Observacoes:      p.Observacoes,
		ValidadeDias:     p.ValidadeDias,
		Status:           p.Status,
		NumeroSequencial: p.NumeroSequencial,
		ValorTotal:       &total,
	}
	if p.Itens != nil {
		d.Itens = make([]LineItem, len(p.Itens))
		copy(d.Itens, p.Itens)
	}
	return d
}

// ProposalSummary is the list projection of a proposal.
type ProposalSummary struct {
	ID               string    `json:"id"`
	Titulo           string    `json:"titulo"`
	ClienteNome      string    `json:"cliente_nome"`
	Status           Status    `json:"status"`
	StatusLabel      string    `json:"status_label"`
	ValorTotal       Number    `json:"valor_total"`
	NumeroSequencial *int64    `json:"numero_sequencial,omitempty"`
	CreatedAt        time.Time `json:"created_at"`
}

// Summary projects a proposal into its list form.
func (p *Proposal) Summary() ProposalSummary {
	return ProposalSummary{
		ID:               p.ID,
		Titulo:           p.Titulo,
		ClienteNome:      p.ClienteNome,
		Status:           p.Status,
		StatusLabel:      p.Status.Label(),
		ValorTotal:       p.ValorTotal,
		NumeroSequencial: p.NumeroSequencial,
		CreatedAt:        p.CreatedAt,
	}
}

// ListFilter narrows a proposal listing.
type ListFilter struct {
	Search string
	Limit  int
}

// Matches reports whether the summary matches a case-insensitive search over
// title and client name. An empty search matches everything.
func (f ListFilter) Matches(s ProposalSummary) bool {
	q := strings.ToLower(strings.TrimSpace(f.Search))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Titulo), q) ||
		strings.Contains(strings.ToLower(s.ClienteNome), q)
}

// ============================================================
// Dashboard
// ============================================================

// DashboardStats aggregates proposal counts for a user.
type DashboardStats struct {
	Total         int    `json:"total"`
	Aprovadas     int    `json:"aprovadas"`
	Pendentes     int    `json:"pendentes"`
	Recusadas     int    `json:"recusadas"`
	ValorAprovado string `json:"valor_aprovado"`
}

// Dashboard is the landing page payload.
type Dashboard struct {
	Stats    DashboardStats    `json:"stats"`
	Recentes []ProposalSummary `json:"recentes"`
}
