package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"
	"github.com/boddenberg/proposta-facil-go/internal/render"
	"github.com/boddenberg/proposta-facil-go/internal/service"

	"go.uber.org/zap"
)

var user = domain.AuthenticatedUser{ID: "user-1", Mail: "ana@example.com"}

func newProposalService(store *memStore, events *mockEvents) *service.ProposalService {
	return service.NewProposalService(store, events, render.DefaultLocale(), observability.NewMetrics(), zap.NewNop()).
		WithClock(func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) })
}

func scenarioDraft() domain.Draft {
	return domain.Draft{
		Titulo:       "Website",
		ClienteNome:  "Padaria Central",
		ValidadeDias: 30,
		Itens: []domain.LineItem{
			{Descricao: "A", Quantidade: 2, ValorUnit: 10},
			{Descricao: "B", Quantidade: 1, ValorUnit: 5.5},
			{Descricao: "C", Quantidade: 0, ValorUnit: 100},
		},
	}
}

func TestNewDraft(t *testing.T) {
	d := newProposalService(newMemStore(), &mockEvents{}).NewDraft()
	if len(d.Itens) != 1 || d.Itens[0].Quantidade != 1 || d.ValidadeDias != 30 || d.Status != domain.StatusPendente {
		t.Errorf("unexpected new draft %+v", d)
	}
}

func TestSave_ComputesTotalAndDefaults(t *testing.T) {
	store, events := newMemStore(), &mockEvents{}
	svc := newProposalService(store, events)

	d := scenarioDraft()
	bogus := domain.Number(999)
	d.ValorTotal = &bogus

	p, err := svc.Save(context.Background(), user, d)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if p.ValorTotal != 25.5 {
		t.Errorf("expected stored total 25.5, got %v", p.ValorTotal)
	}
	if p.Status != domain.StatusPendente {
		t.Errorf("expected default status pendente, got %q", p.Status)
	}
	if p.UserID != user.ID {
		t.Errorf("owner must come from the identity, got %q", p.UserID)
	}
	if got := events.types(); len(got) != 1 || got[0] != domain.EventProposalSaved {
		t.Errorf("expected one saved event, got %v", got)
	}
	if events.events[0].At.IsZero() {
		t.Error("expected event timestamp")
	}
}

func TestSave_ReplacesItemsOnEdit(t *testing.T) {
	store := newMemStore()
	svc := newProposalService(store, &mockEvents{})

	p, err := svc.Save(context.Background(), user, scenarioDraft())
	if err != nil {
		t.Fatal(err)
	}

	d := p.Draft()
	d.Itens = []domain.LineItem{{Descricao: "Único", Quantidade: 3, ValorUnit: 1.1}}
	edited, err := svc.Save(context.Background(), user, d)
	if err != nil {
		t.Fatal(err)
	}
	if edited.ID != p.ID || len(edited.Itens) != 1 {
		t.Fatalf("expected the same proposal with one item, got %+v", edited)
	}
	if edited.ValorTotal != 3.3 {
		t.Errorf("expected total 3.3, got %v", edited.ValorTotal)
	}
}

func TestSave_Validation(t *testing.T) {
	svc := newProposalService(newMemStore(), &mockEvents{})

	d := scenarioDraft()
	d.Status = "arquivada"
	_, err := svc.Save(context.Background(), user, d)
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) || validation.Field != "status" {
		t.Errorf("expected status validation error, got %v", err)
	}

	d = scenarioDraft()
	d.ValidadeDias = -1
	_, err = svc.Save(context.Background(), user, d)
	if !errors.As(err, &validation) || validation.Field != "validade_dias" {
		t.Errorf("expected validity validation error, got %v", err)
	}
}

func TestSave_RequiresIdentity(t *testing.T) {
	_, err := newProposalService(newMemStore(), &mockEvents{}).Save(context.Background(), nil, scenarioDraft())
	var unauthorized *domain.ErrUnauthorized
	if !errors.As(err, &unauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestSave_PartialSaveIsReported(t *testing.T) {
	store := newMemStore()
	store.saveErr = &domain.ErrPartialSave{ProposalID: "p1", Stage: "insert_items", Err: errors.New("boom")}
	events := &mockEvents{}

	_, err := newProposalService(store, events).Save(context.Background(), user, scenarioDraft())
	var partial *domain.ErrPartialSave
	if !errors.As(err, &partial) || partial.Stage != "insert_items" {
		t.Fatalf("expected ErrPartialSave, got %v", err)
	}
	if len(events.types()) != 0 {
		t.Error("no event must be published for a failed save")
	}
}

func TestSave_EventFailureDoesNotFailSave(t *testing.T) {
	events := &mockEvents{err: errors.New("nats down")}
	if _, err := newProposalService(newMemStore(), events).Save(context.Background(), user, scenarioDraft()); err != nil {
		t.Fatalf("expected save to succeed, got %v", err)
	}
}

func TestList_SearchAndOrder(t *testing.T) {
	store := newMemStore()
	svc := newProposalService(store, &mockEvents{})
	ctx := context.Background()

	for _, title := range []string{"Logo", "Website", "Cardápio"} {
		d := scenarioDraft()
		d.Titulo = title
		if _, err := svc.Save(ctx, user, d); err != nil {
			t.Fatal(err)
		}
	}
	other := domain.AuthenticatedUser{ID: "user-2"}
	if _, err := svc.Save(ctx, other, scenarioDraft()); err != nil {
		t.Fatal(err)
	}

	all, err := svc.List(ctx, user, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 || all[0].Titulo != "Cardápio" {
		t.Fatalf("expected 3 proposals newest first, got %+v", all)
	}
	if all[0].StatusLabel != "Pendente" {
		t.Errorf("expected status label, got %q", all[0].StatusLabel)
	}

	found, err := svc.List(ctx, user, "  WEB ")
	if err != nil {
		t.Fatal(err)
	}
	if len(found) != 1 || found[0].Titulo != "Website" {
		t.Errorf("expected search to match Website, got %+v", found)
	}

	byClient, _ := svc.List(ctx, user, "padaria")
	if len(byClient) != 3 {
		t.Errorf("expected client name search to match all, got %d", len(byClient))
	}
}

func TestUpdateStatusAndDelete(t *testing.T) {
	store, events := newMemStore(), &mockEvents{}
	svc := newProposalService(store, events)
	ctx := context.Background()

	p, _ := svc.Save(ctx, user, scenarioDraft())

	if _, err := svc.UpdateStatus(ctx, user, p.ID, ""); err == nil {
		t.Error("expected empty status to be rejected")
	}
	updated, err := svc.UpdateStatus(ctx, user, p.ID, "Aprovada")
	if err != nil {
		t.Fatal(err)
	}
	if updated.Status != domain.StatusAprovada {
		t.Errorf("expected aprovada, got %q", updated.Status)
	}

	if err := svc.Delete(ctx, domain.AuthenticatedUser{ID: "intruder"}, p.ID); err == nil {
		t.Error("expected other users to be unable to delete")
	}
	if err := svc.Delete(ctx, user, p.ID); err != nil {
		t.Fatal(err)
	}
	_, err = svc.Get(ctx, user, p.ID)
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}

	want := []domain.EventType{domain.EventProposalSaved, domain.EventProposalStatusChanged, domain.EventProposalDeleted}
	got := events.types()
	if len(got) != len(want) {
		t.Fatalf("expected events %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("event %d: expected %s, got %s", i, want[i], got[i])
		}
	}
}

func TestDashboard(t *testing.T) {
	store := newMemStore()
	svc := newProposalService(store, &mockEvents{})
	ctx := context.Background()

	var ids []string
	for i := 0; i < 7; i++ {
		p, err := svc.Save(ctx, user, scenarioDraft())
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, p.ID)
	}
	svc.UpdateStatus(ctx, user, ids[0], "aprovada")
	svc.UpdateStatus(ctx, user, ids[1], "aprovada")
	svc.UpdateStatus(ctx, user, ids[2], "recusada")

	dash, err := svc.Dashboard(ctx, user)
	if err != nil {
		t.Fatal(err)
	}
	s := dash.Stats
	if s.Total != 7 || s.Aprovadas != 2 || s.Recusadas != 1 || s.Pendentes != 4 {
		t.Errorf("unexpected stats %+v", s)
	}
	if s.ValorAprovado != "R$ 51,00" {
		t.Errorf("expected R$ 51,00, got %q", s.ValorAprovado)
	}
	if len(dash.Recentes) != 5 || dash.Recentes[0].ID != ids[6] {
		t.Errorf("expected 5 most recent, newest first, got %+v", dash.Recentes)
	}
}
