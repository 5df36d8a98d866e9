package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/resilience"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Propostas + itens_proposta via PostgREST
// ============================================================

type proposalRow struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	Titulo           string        `json:"titulo"`
	ClienteNome      string        `json:"cliente_nome"`
	ClienteEmail     string        `json:"cliente_email"`
	ClienteTelefone  string        `json:"cliente_telefone"`
	Observacoes      string        `json:"observacoes"`
	ValidadeDias     domain.Number `json:"validade_dias"`
	Status           string        `json:"status"`
	ValorTotal       domain.Number `json:"valor_total"`
	NumeroSequencial *int64        `json:"numero_sequencial"`
	CreatedAt        time.Time     `json:"created_at"`
	Itens            []itemRow     `json:"itens_proposta,omitempty"`
}

type itemRow struct {
	PropostaID string        `json:"proposta_id"`
	Descricao  string        `json:"descricao"`
	Quantidade domain.Number `json:"quantidade"`
	ValorUnit  domain.Number `json:"valor_unit"`
}

func (r *proposalRow) toDomain(withItems bool) domain.Proposal {
	status, ok := domain.ParseStatus(r.Status)
	if !ok {
		status = domain.StatusPendente
	}
	p := domain.Proposal{
		ID:               r.ID,
		UserID:           r.UserID,
		Titulo:           r.Titulo,
		ClienteNome:      r.ClienteNome,
		ClienteEmail:     r.ClienteEmail,
		ClienteTelefone:  r.ClienteTelefone,
		Observacoes:      r.Observacoes,
		ValidadeDias:     r.ValidadeDias,
		Status:           status,
		ValorTotal:       r.ValorTotal,
		NumeroSequencial: r.NumeroSequencial,
		CreatedAt:        r.CreatedAt,
	}
	if withItems {
		p.Itens = make([]domain.LineItem, 0, len(r.Itens))
		for _, it := range r.Itens {
			p.Itens = append(p.Itens, domain.LineItem{
				Descricao:  it.Descricao,
				Quantidade: it.Quantidade,
				ValorUnit:  it.ValorUnit,
			})
		}
	}
	return p
}

func decodeProposals(body []byte) ([]proposalRow, error) {
	if isEmpty(body) {
		return nil, nil
	}
	var rows []proposalRow
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, resilience.Permanent(fmt.Errorf("decode propostas: %w", err))
	}
	return rows, nil
}

// ListProposals returns the user's proposals newest first. The search is
// applied here with domain.ListFilter so every backend matches the same way.
func (c *Client) ListProposals(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProposals")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", userID))

	path := fmt.Sprintf("propostas?user_id=%s&select=*&order=created_at.desc", eq(userID))
	if filter.Search == "" && filter.Limit > 0 {
		path += fmt.Sprintf("&limit=%d", filter.Limit)
	}

	var rows []proposalRow
	err := c.call(ctx, "supabase/propostas", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows, err = decodeProposals(body)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.Proposal, 0, len(rows))
	for i := range rows {
		p := rows[i].toDomain(false)
		if !filter.Matches(p.Summary()) {
			continue
		}
		out = append(out, p)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}

func (c *Client) GetProposal(ctx context.Context, userID, id string) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProposal")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", id))

	path := fmt.Sprintf("propostas?id=%s&user_id=%s&select=*,itens_proposta(*)&limit=1", eq(id), eq(userID))

	var proposal *domain.Proposal
	err := c.call(ctx, "supabase/propostas", func() error {
		body, err := c.doRequest(ctx, http.MethodGet, path)
		if err != nil {
			return err
		}
		rows, err := decodeProposals(body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "proposta", ID: id})
		}
		p := rows[0].toDomain(true)
		proposal = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}

// SaveProposal writes the proposal row, then deletes and re-inserts its items.
// The three writes are independent requests: a failure after the first one
// returns *domain.ErrPartialSave and leaves the item set incomplete.
func (c *Client) SaveProposal(ctx context.Context, p *domain.Proposal) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.SaveProposal")
	defer span.End()

	payload := map[string]any{
		"user_id":          p.UserID,
		"titulo":           p.Titulo,
		"cliente_nome":     p.ClienteNome,
		"cliente_email":    nullable(p.ClienteEmail),
		"cliente_telefone": nullable(p.ClienteTelefone),
		"observacoes":      nullable(p.Observacoes),
		"validade_dias":    p.ValidadeDias,
		"status":           p.Status,
		"valor_total":      p.ValorTotal,
	}

	var row proposalRow
	err := c.call(ctx, "supabase/propostas", func() error {
		var (
			body []byte
			err  error
		)
		if p.ID != "" {
			body, err = c.doPatch(ctx, fmt.Sprintf("propostas?id=%s&user_id=%s", eq(p.ID), eq(p.UserID)), payload)
		} else {
			body, err = c.doPost(ctx, "propostas", payload, "")
		}
		if err != nil {
			return err
		}
		rows, err := decodeProposals(body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "proposta", ID: p.ID})
		}
		row = rows[0]
		return nil
	})
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("proposal.id", row.ID))

	err = c.call(ctx, "supabase/itens_proposta", func() error {
		return c.doDelete(ctx, fmt.Sprintf("itens_proposta?proposta_id=%s", eq(row.ID)))
	})
	if err != nil {
		c.logger.Error("supabase: proposal saved but items were not cleared",
			zap.String("proposal_id", row.ID), zap.Error(err))
		return nil, &domain.ErrPartialSave{ProposalID: row.ID, Stage: "delete_items", Err: err}
	}

	if len(p.Itens) > 0 {
		items := make([]itemRow, 0, len(p.Itens))
		for _, it := range p.Itens {
			items = append(items, itemRow{
				PropostaID: row.ID,
				Descricao:  it.Descricao,
				Quantidade: it.Quantidade,
				ValorUnit:  it.ValorUnit,
			})
		}
		err = c.call(ctx, "supabase/itens_proposta", func() error {
			_, err := c.doPost(ctx, "itens_proposta", items, "return=minimal")
			return err
		})
		if err != nil {
			c.logger.Error("supabase: proposal saved but items were not inserted",
				zap.String("proposal_id", row.ID), zap.Int("items", len(items)), zap.Error(err))
			return nil, &domain.ErrPartialSave{ProposalID: row.ID, Stage: "insert_items", Err: err}
		}
	}

	saved := row.toDomain(false)
	saved.Itens = append([]domain.LineItem{}, p.Itens...)

	c.logger.Info("supabase: proposal saved",
		zap.String("proposal_id", saved.ID),
		zap.Int("items", len(saved.Itens)),
	)
	return &saved, nil
}

// DeleteProposal removes the proposal row; its items go with the
// ON DELETE CASCADE foreign key.
func (c *Client) DeleteProposal(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteProposal")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", id))

	return c.call(ctx, "supabase/propostas", func() error {
		req, err := c.newRequest(ctx, http.MethodDelete,
			c.restURL(fmt.Sprintf("propostas?id=%s&user_id=%s", eq(id), eq(userID))), nil)
		if err != nil {
			return err
		}
		req.Header.Set("Prefer", "return=representation")
		body, _, err := c.send(req, "propostas")
		if err != nil {
			return err
		}
		if isEmpty(body) {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "proposta", ID: id})
		}
		return nil
	})
}

func (c *Client) UpdateProposalStatus(ctx context.Context, userID, id string, status domain.Status) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProposalStatus")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", id), attribute.String("status", string(status)))

	var proposal *domain.Proposal
	err := c.call(ctx, "supabase/propostas", func() error {
		body, err := c.doPatch(ctx, fmt.Sprintf("propostas?id=%s&user_id=%s", eq(id), eq(userID)),
			map[string]any{"status": status})
		if err != nil {
			return err
		}
		rows, err := decodeProposals(body)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return resilience.Permanent(&domain.ErrNotFound{Resource: "proposta", ID: id})
		}
		p := rows[0].toDomain(false)
		proposal = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return proposal, nil
}
