// Package storetest holds behavior tests shared by every CompanyStore and
// ProposalStore backend.
package storetest

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/port"
)

// Store is a backend implementing both ports.
type Store interface {
	port.CompanyStore
	port.ProposalStore
}

func isNotFound(err error) bool {
	var nf *domain.ErrNotFound
	return errors.As(err, &nf)
}

// Run exercises s. User ids are random so the suite can run against a shared
// database.
func Run(t *testing.T, s Store) {
	t.Run("company", func(t *testing.T) { testCompany(t, s) })
	t.Run("proposal lifecycle", func(t *testing.T) { testProposalLifecycle(t, s) })
	t.Run("proposal listing", func(t *testing.T) { testProposalListing(t, s) })
	t.Run("ownership", func(t *testing.T) { testOwnership(t, s) })
}

func testCompany(t *testing.T, s Store) {
	ctx := context.Background()
	user := uuid.NewString()

	_, err := s.GetCompany(ctx, user)
	assert.True(t, isNotFound(err), "expected not found, got %v", err)

	first, err := s.UpsertCompany(ctx, &domain.Company{UserID: user, Nome: "Acme", CorPrimaria: "#112233"})
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := s.UpsertCompany(ctx, &domain.Company{
		UserID: user, Nome: "Acme Design", CNPJ: "12.345.678/0001-90", LogoURL: "https://cdn/logo.png", CorPrimaria: "rgb(1,2,3)",
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "upsert must keep a single row per user")

	got, err := s.GetCompany(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "Acme Design", got.Nome)
	assert.Equal(t, "12.345.678/0001-90", got.CNPJ)
	assert.Equal(t, "https://cdn/logo.png", got.LogoURL)
	assert.Equal(t, "rgb(1,2,3)", got.CorPrimaria)
}

func testProposalLifecycle(t *testing.T, s Store) {
	ctx := context.Background()
	user := uuid.NewString()

	created, err := s.SaveProposal(ctx, &domain.Proposal{
		UserID:       user,
		Titulo:       "Site Institucional",
		ClienteNome:  "Padaria",
		ValidadeDias: 30,
		Status:       domain.StatusPendente,
		ValorTotal:   25.5,
		Itens: []domain.LineItem{
			{Descricao: "A", Quantidade: 2, ValorUnit: 10},
			{Descricao: "B", Quantidade: 1, ValorUnit: 5.5},
			{Descricao: "C", Quantidade: 0, ValorUnit: 100},
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.NotNil(t, created.NumeroSequencial)
	assert.Equal(t, int64(1), *created.NumeroSequencial)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.GetProposal(ctx, user, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Site Institucional", got.Titulo)
	assert.Equal(t, domain.Number(25.5), got.ValorTotal)
	assert.Equal(t, domain.Number(30), got.ValidadeDias)
	require.Len(t, got.Itens, 3)
	assert.Equal(t, "A", got.Itens[0].Descricao)
	assert.Equal(t, "B", got.Itens[1].Descricao)
	assert.Equal(t, "C", got.Itens[2].Descricao)

	got.Titulo = "Site Novo"
	got.ValorTotal = 7
	got.Itens = []domain.LineItem{{Descricao: "Z", Quantidade: 1, ValorUnit: 7}}
	updated, err := s.SaveProposal(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, *created.NumeroSequencial, *updated.NumeroSequencial)

	got, err = s.GetProposal(ctx, user, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Site Novo", got.Titulo)
	require.Len(t, got.Itens, 1)
	assert.Equal(t, "Z", got.Itens[0].Descricao)

	got.Itens = []domain.LineItem{}
	_, err = s.SaveProposal(ctx, got)
	require.NoError(t, err)
	got, err = s.GetProposal(ctx, user, created.ID)
	require.NoError(t, err)
	assert.NotNil(t, got.Itens)
	assert.Empty(t, got.Itens)

	second, err := s.SaveProposal(ctx, &domain.Proposal{UserID: user, Titulo: "Outra", Status: domain.StatusPendente})
	require.NoError(t, err)
	assert.Equal(t, int64(2), *second.NumeroSequencial)

	changed, err := s.UpdateProposalStatus(ctx, user, second.ID, domain.StatusAprovada)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAprovada, changed.Status)

	require.NoError(t, s.DeleteProposal(ctx, user, created.ID))
	_, err = s.GetProposal(ctx, user, created.ID)
	assert.True(t, isNotFound(err), "expected not found after delete, got %v", err)
	assert.True(t, isNotFound(s.DeleteProposal(ctx, user, created.ID)))
}

func testProposalListing(t *testing.T, s Store) {
	ctx := context.Background()
	user := uuid.NewString()

	for _, p := range []domain.Proposal{
		{Titulo: "Logo", ClienteNome: "Oficina Central"},
		{Titulo: "Site", ClienteNome: "Padaria Bom Pao"},
		{Titulo: "Cardapio da Padaria", ClienteNome: "Restaurante"},
	} {
		p.UserID = user
		p.Status = domain.StatusPendente
		p.Itens = []domain.LineItem{{Descricao: "x", Quantidade: 1, ValorUnit: 1}}
		_, err := s.SaveProposal(ctx, &p)
		require.NoError(t, err)
	}

	all, err := s.ListProposals(ctx, user, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Cardapio da Padaria", all[0].Titulo, "newest first")
	assert.Equal(t, "Logo", all[2].Titulo)
	for _, p := range all {
		assert.Nil(t, p.Itens, "listing must not load items")
	}

	found, err := s.ListProposals(ctx, user, domain.ListFilter{Search: "PADARIA"})
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Cardapio da Padaria", found[0].Titulo)
	assert.Equal(t, "Site", found[1].Titulo)

	limited, err := s.ListProposals(ctx, user, domain.ListFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := s.ListProposals(ctx, uuid.NewString(), domain.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testOwnership(t *testing.T, s Store) {
	ctx := context.Background()
	owner, other := uuid.NewString(), uuid.NewString()

	p, err := s.SaveProposal(ctx, &domain.Proposal{UserID: owner, Titulo: "Privada", Status: domain.StatusPendente})
	require.NoError(t, err)

	_, err = s.GetProposal(ctx, other, p.ID)
	assert.True(t, isNotFound(err))

	_, err = s.SaveProposal(ctx, &domain.Proposal{ID: p.ID, UserID: other, Titulo: "Roubada"})
	assert.True(t, isNotFound(err))

	_, err = s.UpdateProposalStatus(ctx, other, p.ID, domain.StatusRecusada)
	assert.True(t, isNotFound(err))

	assert.True(t, isNotFound(s.DeleteProposal(ctx, other, p.ID)))

	got, err := s.GetProposal(ctx, owner, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Privada", got.Titulo)
	assert.Equal(t, domain.StatusPendente, got.Status)
}

// RunUsers exercises a port.UserStore.
func RunUsers(t *testing.T, s port.UserStore) {
	ctx := context.Background()
	email := uuid.NewString() + "@Example.com"

	_, err := s.GetUserByEmail(ctx, email)
	assert.True(t, isNotFound(err), "expected not found, got %v", err)

	created, err := s.CreateUser(ctx, &domain.UserAccount{Email: "  " + email, PasswordHash: "hash"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.NotEmpty(t, created.Email)

	got, err := s.GetUserByEmail(ctx, strings.ToUpper(email))
	require.NoError(t, err, "lookup must ignore case")
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)

	_, err = s.CreateUser(ctx, &domain.UserAccount{Email: strings.ToLower(email), PasswordHash: "other"})
	var conflict *domain.ErrConflict
	assert.True(t, errors.As(err, &conflict), "expected conflict, got %v", err)
}
