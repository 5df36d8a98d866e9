package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"
	"github.com/boddenberg/proposta-facil-go/internal/port"
	"github.com/boddenberg/proposta-facil-go/internal/pricing"
	"github.com/boddenberg/proposta-facil-go/internal/render"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/proposals")

// recentCount is the number of proposals shown on the dashboard.
const recentCount = 5

// ProposalService handles the proposal lifecycle for the current identity.
type ProposalService struct {
	store   port.ProposalStore
	events  port.EventPublisher
	locale  render.Locale
	clock   Clock
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewProposalService creates the proposal service.
func NewProposalService(
	store port.ProposalStore,
	events port.EventPublisher,
	locale render.Locale,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ProposalService {
	return &ProposalService{
		store:   store,
		events:  events,
		locale:  locale,
		clock:   time.Now,
		metrics: metrics,
		logger:  logger,
	}
}

// WithClock overrides the time source.
func (s *ProposalService) WithClock(c Clock) *ProposalService {
	s.clock = c
	return s
}

// NewDraft returns an empty editor state.
func (s *ProposalService) NewDraft() domain.Draft {
	return domain.NewDraft()
}

// List returns the identity's proposals newest first, filtered by a
// case-insensitive search over title and client name.
func (s *ProposalService) List(ctx context.Context, id domain.Identity, search string) ([]domain.ProposalSummary, error) {
	ctx, span := tracer.Start(ctx, "ProposalService.List")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", id.UserID()))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("proposals.list", time.Since(start)) }()

	props, err := s.store.ListProposals(ctx, id.UserID(), domain.ListFilter{Search: strings.TrimSpace(search)})
	if err != nil {
		return nil, fmt.Errorf("list proposals: %w", err)
	}
	out := make([]domain.ProposalSummary, 0, len(props))
	for i := range props {
		out = append(out, props[i].Summary())
	}
	return out, nil
}

// Get returns a proposal with its items.
func (s *ProposalService) Get(ctx context.Context, id domain.Identity, proposalID string) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "ProposalService.Get")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("proposal.id", proposalID))

	p, err := s.store.GetProposal(ctx, id.UserID(), proposalID)
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

// Save persists a draft. The stored total is always recomputed from the
// items, and an empty status defaults to pendente.
func (s *ProposalService) Save(ctx context.Context, id domain.Identity, d domain.Draft) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "ProposalService.Save")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("proposals.save", time.Since(start)) }()

	status, ok := domain.ParseStatus(string(d.Status))
	if !ok {
		return nil, &domain.ErrValidation{Field: "status", Message: "status inválido"}
	}
	if d.ValidadeDias.Float64() < 0 {
		return nil, &domain.ErrValidation{Field: "validade_dias", Message: "validade não pode ser negativa"}
	}

	items := make([]domain.LineItem, len(d.Itens))
	copy(items, d.Itens)
	total := pricing.ComputeTotal(items)

	p := &domain.Proposal{
		ID:              d.ID,
		UserID:          id.UserID(),
		Titulo:          strings.TrimSpace(d.Titulo),
		ClienteNome:     strings.TrimSpace(d.ClienteNome),
		ClienteEmail:    strings.TrimSpace(d.ClienteEmail),
		ClienteTelefone: strings.TrimSpace(d.ClienteTelefone),
		Observacoes:     d.Observacoes,
		ValidadeDias:    d.ValidadeDias,
		Status:          status,
		ValorTotal:      pricing.AsNumber(total),
		Itens:           items,
	}
	span.SetAttributes(
		attribute.String("proposal.id", p.ID),
		attribute.Int("items.count", len(items)),
	)

	saved, err := s.store.SaveProposal(ctx, p)
	if err != nil {
		var partial *domain.ErrPartialSave
		if errors.As(err, &partial) {
			s.logger.Error("proposal saved partially, items may be inconsistent",
				zap.String("user_id", id.UserID()),
				zap.String("proposal_id", partial.ProposalID),
				zap.String("stage", partial.Stage),
				zap.Error(partial.Err),
			)
		}
		return nil, fmt.Errorf("save proposal: %w", err)
	}

	s.logger.Info("proposal saved",
		zap.String("user_id", id.UserID()),
		zap.String("proposal_id", saved.ID),
		zap.String("valor_total", total.StringFixed(2)),
	)
	s.publish(ctx, domain.ProposalEvent{
		Type:       domain.EventProposalSaved,
		ProposalID: saved.ID,
		UserID:     saved.UserID,
		Status:     saved.Status,
		ValorTotal: saved.ValorTotal,
	})
	return saved, nil
}

// Delete removes a proposal and its items.
func (s *ProposalService) Delete(ctx context.Context, id domain.Identity, proposalID string) error {
	ctx, span := tracer.Start(ctx, "ProposalService.Delete")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return err
	}
	span.SetAttributes(attribute.String("proposal.id", proposalID))

	if err := s.store.DeleteProposal(ctx, id.UserID(), proposalID); err != nil {
		return fmt.Errorf("delete proposal: %w", err)
	}
	s.logger.Info("proposal deleted",
		zap.String("user_id", id.UserID()),
		zap.String("proposal_id", proposalID),
	)
	s.publish(ctx, domain.ProposalEvent{
		Type:       domain.EventProposalDeleted,
		ProposalID: proposalID,
		UserID:     id.UserID(),
	})
	return nil
}

// UpdateStatus moves a proposal to pendente, aprovada or recusada.
func (s *ProposalService) UpdateStatus(ctx context.Context, id domain.Identity, proposalID, raw string) (*domain.Proposal, error) {
	ctx, span := tracer.Start(ctx, "ProposalService.UpdateStatus")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	status, ok := domain.ParseStatus(raw)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, &domain.ErrValidation{Field: "status", Message: "status deve ser pendente, aprovada ou recusada"}
	}
	span.SetAttributes(
		attribute.String("proposal.id", proposalID),
		attribute.String("proposal.status", string(status)),
	)

	p, err := s.store.UpdateProposalStatus(ctx, id.UserID(), proposalID, status)
	if err != nil {
		return nil, fmt.Errorf("update status: %w", err)
	}
	s.publish(ctx, domain.ProposalEvent{
		Type:       domain.EventProposalStatusChanged,
		ProposalID: p.ID,
		UserID:     p.UserID,
		Status:     p.Status,
		ValorTotal: p.ValorTotal,
	})
	return p, nil
}

// Dashboard counts every proposal of the identity by status and lists the
// most recent ones.
func (s *ProposalService) Dashboard(ctx context.Context, id domain.Identity) (*domain.Dashboard, error) {
	ctx, span := tracer.Start(ctx, "ProposalService.Dashboard")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return nil, err
	}

	props, err := s.store.ListProposals(ctx, id.UserID(), domain.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("dashboard: %w", err)
	}

	approved := decimal.Zero
	d := &domain.Dashboard{Recentes: []domain.ProposalSummary{}}
	for i := range props {
		p := &props[i]
		d.Stats.Total++
		switch p.Status {
		case domain.StatusAprovada:
			d.Stats.Aprovadas++
			approved = approved.Add(pricing.Amount(p.ValorTotal))
		case domain.StatusRecusada:
			d.Stats.Recusadas++
		default:
			d.Stats.Pendentes++
		}
		if len(d.Recentes) < recentCount {
			d.Recentes = append(d.Recentes, p.Summary())
		}
	}
	d.Stats.ValorAprovado = s.locale.Money(approved)
	return d, nil
}

func (s *ProposalService) publish(ctx context.Context, ev domain.ProposalEvent) {
	if s.events == nil {
		return
	}
	ev.At = s.clock().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.metrics.IncrExternalError("events")
		s.logger.Warn("failed to publish proposal event",
			zap.String("type", string(ev.Type)),
			zap.String("proposal_id", ev.ProposalID),
			zap.Error(err),
		)
	}
}
