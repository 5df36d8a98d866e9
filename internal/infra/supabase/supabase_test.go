package supabase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/resilience"
	"github.com/boddenberg/proposta-facil-go/internal/infra/supabase"

	"go.uber.org/zap"
)

type recorded struct {
	Method string
	Path   string
	Query  string
	Header http.Header
	Body   string
}

type fakeSupabase struct {
	mu       sync.Mutex
	requests []recorded
	handle   func(w http.ResponseWriter, r recorded)
}

func (f *fakeSupabase) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery, Header: r.Header.Clone(), Body: string(body)}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handle(w, rec)
}

func (f *fakeSupabase) calls() []recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recorded(nil), f.requests...)
}

func newClient(t *testing.T, handle func(w http.ResponseWriter, r recorded)) (*supabase.Client, *fakeSupabase) {
	t.Helper()
	fake := &fakeSupabase{handle: handle}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	cfg := resilience.Config{MaxRetries: 1, InitialBackoff: time.Millisecond, MaxConcurrency: 4}
	c := supabase.NewClient(srv.Client(), srv.URL+"/", "anon-key", "service-key",
		resilience.NewCircuitBreaker("supabase-test"), cfg, zap.NewNop())
	return c, fake
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestGetCompany_NotFound(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusOK, []any{})
	})

	_, err := c.GetCompany(context.Background(), "user-1")

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	calls := fake.calls()
	if len(calls) != 1 {
		t.Fatalf("expected a single request (no retry on not found), got %d", len(calls))
	}
	if calls[0].Path != "/rest/v1/empresas" || !strings.Contains(calls[0].Query, "user_id=eq.user-1") {
		t.Errorf("unexpected request %s?%s", calls[0].Path, calls[0].Query)
	}
	if calls[0].Header.Get("apikey") != "anon-key" || calls[0].Header.Get("Authorization") != "Bearer service-key" {
		t.Errorf("missing auth headers: %v", calls[0].Header)
	}
}

func TestUpsertCompany_MergesOnUserID(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		var row map[string]any
		_ = json.Unmarshal([]byte(r.Body), &row)
		row["id"] = "emp-1"
		writeJSON(w, http.StatusCreated, []any{row})
	})

	saved, err := c.UpsertCompany(context.Background(), &domain.Company{UserID: "user-1", Nome: "Acme", CorPrimaria: "#112233"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != "emp-1" || saved.Nome != "Acme" || saved.CorPrimaria != "#112233" {
		t.Errorf("unexpected company: %+v", saved)
	}

	call := fake.calls()[0]
	if call.Method != http.MethodPost || call.Query != "on_conflict=user_id" {
		t.Errorf("unexpected request %s ?%s", call.Method, call.Query)
	}
	if !strings.Contains(call.Header.Get("Prefer"), "resolution=merge-duplicates") {
		t.Errorf("expected merge-duplicates, got %q", call.Header.Get("Prefer"))
	}
	if !strings.Contains(call.Body, `"logo_url":null`) {
		t.Errorf("empty logo should be sent as null: %s", call.Body)
	}
}

func TestGetProposal_DecodesEmbeddedItems(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{
			"id": "p-1", "user_id": "user-1", "titulo": "Site", "cliente_nome": "Padaria",
			"cliente_email": null, "validade_dias": "15", "status": "aprovada",
			"valor_total": 25.5, "numero_sequencial": 12, "created_at": "2024-03-10T18:00:00.123456+00:00",
			"itens_proposta": [
				{"proposta_id": "p-1", "descricao": "A", "quantidade": 2, "valor_unit": "10"},
				{"proposta_id": "p-1", "descricao": "B", "quantidade": 1, "valor_unit": 5.5}
			]
		}]`)
	})

	p, err := c.GetProposal(context.Background(), "user-1", "p-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != domain.StatusAprovada || p.ValidadeDias != 15 || p.ValorTotal != 25.5 {
		t.Errorf("unexpected proposal: %+v", p)
	}
	if p.NumeroSequencial == nil || *p.NumeroSequencial != 12 {
		t.Errorf("expected numero_sequencial 12, got %v", p.NumeroSequencial)
	}
	if len(p.Itens) != 2 || p.Itens[0].ValorUnit != 10 || p.Itens[1].Descricao != "B" {
		t.Errorf("unexpected items: %+v", p.Itens)
	}
	if !strings.Contains(fake.calls()[0].Query, "itens_proposta") {
		t.Errorf("expected embedded select, got %s", fake.calls()[0].Query)
	}
}

func TestListProposals_FiltersAndLimits(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusOK, []map[string]any{
			{"id": "3", "titulo": "Logo", "cliente_nome": "Padaria Central", "status": "pendente"},
			{"id": "2", "titulo": "Site", "cliente_nome": "Oficina", "status": "aprovada"},
			{"id": "1", "titulo": "Cardápio", "cliente_nome": "padaria do bairro", "status": "bogus"},
		})
	})

	got, err := c.ListProposals(context.Background(), "user-1", domain.ListFilter{Search: "PADARIA", Limit: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "3" || got[1].ID != "1" {
		t.Fatalf("unexpected result: %+v", got)
	}
	if got[1].Status != domain.StatusPendente {
		t.Errorf("unknown status should fall back to pendente, got %s", got[1].Status)
	}
	if got[0].Itens != nil {
		t.Error("list must not load items")
	}
}

func TestSaveProposal_InsertReplacesItems(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		switch {
		case r.Method == http.MethodPost && r.Path == "/rest/v1/propostas":
			writeJSON(w, http.StatusCreated, []map[string]any{{"id": "p-new", "user_id": "user-1", "titulo": "Site", "status": "pendente", "valor_total": 25.5, "numero_sequencial": 4}})
		case r.Method == http.MethodDelete && r.Path == "/rest/v1/itens_proposta":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.Path == "/rest/v1/itens_proposta":
			w.WriteHeader(http.StatusCreated)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	})

	saved, err := c.SaveProposal(context.Background(), &domain.Proposal{
		UserID: "user-1", Titulo: "Site", Status: domain.StatusPendente, ValorTotal: 25.5,
		Itens: []domain.LineItem{{Descricao: "A", Quantidade: 2, ValorUnit: 10}, {Descricao: "B", Quantidade: 1, ValorUnit: 5.5}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved.ID != "p-new" || len(saved.Itens) != 2 || *saved.NumeroSequencial != 4 {
		t.Errorf("unexpected saved proposal: %+v", saved)
	}

	calls := fake.calls()
	if len(calls) != 3 {
		t.Fatalf("expected 3 requests, got %d", len(calls))
	}
	if !strings.Contains(calls[1].Query, "proposta_id=eq.p-new") {
		t.Errorf("delete should target the new id, got %s", calls[1].Query)
	}
	var items []map[string]any
	if err := json.Unmarshal([]byte(calls[2].Body), &items); err != nil || len(items) != 2 || items[0]["proposta_id"] != "p-new" {
		t.Errorf("unexpected items payload %s (%v)", calls[2].Body, err)
	}
}

func TestSaveProposal_PartialFailure(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r recorded) {
		switch {
		case r.Method == http.MethodPatch:
			writeJSON(w, http.StatusOK, []map[string]any{{"id": "p-1", "user_id": "user-1"}})
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"message": "invalid input syntax"})
		}
	})

	_, err := c.SaveProposal(context.Background(), &domain.Proposal{
		ID: "p-1", UserID: "user-1",
		Itens: []domain.LineItem{{Descricao: "A", Quantidade: 1, ValorUnit: 1}},
	})

	var partial *domain.ErrPartialSave
	if !errors.As(err, &partial) {
		t.Fatalf("expected ErrPartialSave, got %v", err)
	}
	if partial.ProposalID != "p-1" || partial.Stage != "insert_items" {
		t.Errorf("unexpected partial save: %+v", partial)
	}
}

func TestSaveProposal_UpdateOfForeignProposal(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusOK, []any{})
	})

	_, err := c.SaveProposal(context.Background(), &domain.Proposal{ID: "p-9", UserID: "user-1"})

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(fake.calls()) != 1 {
		t.Errorf("items must not be touched when the row update matched nothing")
	}
}

func TestDeleteProposal_NotFound(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusOK, []any{})
	})

	err := c.DeleteProposal(context.Background(), "user-1", "missing")

	var nf *domain.ErrNotFound
	if !errors.As(err, &nf) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateProposalStatus(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusOK, []map[string]any{{"id": "p-1", "status": "recusada"}})
	})

	p, err := c.UpdateProposalStatus(context.Background(), "user-1", "p-1", domain.StatusRecusada)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Status != domain.StatusRecusada {
		t.Errorf("expected recusada, got %s", p.Status)
	}
	if fake.calls()[0].Body != `{"status":"recusada"}` {
		t.Errorf("unexpected body %s", fake.calls()[0].Body)
	}
}

func TestServerErrorsAreRetriedAndWrapped(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.GetCompany(context.Background(), "user-1")

	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if len(fake.calls()) != 2 {
		t.Errorf("expected 1 retry, got %d calls", len(fake.calls()))
	}
}

func TestStorage_Upload(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusOK, map[string]string{"Key": "logos/user-1/logo.png"})
	})
	store := supabase.NewStorage(c, "logos")

	url, err := store.Upload(context.Background(), "user-1/logo.png", []byte("png-bytes"), "image/png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(url, "/storage/v1/object/public/logos/user-1/logo.png") {
		t.Errorf("unexpected public url %s", url)
	}

	call := fake.calls()[0]
	if call.Path != "/storage/v1/object/logos/user-1/logo.png" {
		t.Errorf("unexpected path %s", call.Path)
	}
	if call.Header.Get("x-upsert") != "true" || call.Header.Get("Content-Type") != "image/png" {
		t.Errorf("unexpected headers %v", call.Header)
	}
	if call.Body != "png-bytes" {
		t.Errorf("unexpected body %q", call.Body)
	}
}

func TestAuth_SignIn(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusOK, map[string]any{
			"access_token": "jwt", "refresh_token": "refresh", "expires_in": 3600,
			"user": map[string]string{"id": "user-1", "email": "ana@acme.com"},
		})
	})

	s, err := supabase.NewAuth(c).SignIn(context.Background(), domain.Credentials{Email: "ana@acme.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.AccessToken != "jwt" || s.UserID != "user-1" || s.ExpiresIn != 3600 {
		t.Errorf("unexpected session %+v", s)
	}
	call := fake.calls()[0]
	if call.Path != "/auth/v1/token" || call.Query != "grant_type=password" {
		t.Errorf("unexpected request %s?%s", call.Path, call.Query)
	}
}

func TestAuth_SignInInvalidCredentials(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_grant", "error_description": "Invalid login credentials"})
	})

	_, err := supabase.NewAuth(c).SignIn(context.Background(), domain.Credentials{Email: "ana@acme.com", Password: "wrong!"})

	var unauth *domain.ErrUnauthorized
	if !errors.As(err, &unauth) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if len(fake.calls()) != 1 {
		t.Errorf("client errors must not be retried")
	}
}

func TestAuth_SignUpAlreadyRegistered(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"code": 422, "msg": "User already registered"})
	})

	_, err := supabase.NewAuth(c).SignUp(context.Background(), domain.Credentials{Email: "ana@acme.com", Password: "secret1"})

	var conflict *domain.ErrConflict
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestAuth_SignUpPendingConfirmation(t *testing.T) {
	c, _ := newClient(t, func(w http.ResponseWriter, r recorded) {
		writeJSON(w, http.StatusOK, map[string]string{"id": "user-2", "email": "bia@acme.com"})
	})

	s, err := supabase.NewAuth(c).SignUp(context.Background(), domain.Credentials{Email: "bia@acme.com", Password: "secret1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.UserID != "user-2" || s.AccessToken != "" {
		t.Errorf("unexpected session %+v", s)
	}
}

func TestAuth_SignOutIgnoresExpiredToken(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	if err := supabase.NewAuth(c).SignOut(context.Background(), "expired"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fake.calls()[0].Header.Get("Authorization") != "Bearer expired" {
		t.Errorf("expected user token, got %q", fake.calls()[0].Header.Get("Authorization"))
	}
}

func TestPing(t *testing.T) {
	c, fake := newClient(t, func(w http.ResponseWriter, r recorded) {
		w.Write([]byte(`[]`))
	})
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	calls := fake.calls()
	if len(calls) != 1 || calls[0].Path != "/rest/v1/empresas" {
		t.Errorf("unexpected calls: %+v", calls)
	}
}
