package service_test

import (
	"context"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/port"
	"github.com/boddenberg/proposta-facil-go/internal/render"
)

// --- Stores ---

type memStore struct {
	mu        sync.Mutex
	proposals map[string]*domain.Proposal
	companies map[string]*domain.Company
	seq       map[string]int64
	next      int
	clock     time.Time

	saveErr    error
	companyErr error
	getDelay   time.Duration
}

func newMemStore() *memStore {
	return &memStore{
		proposals: map[string]*domain.Proposal{},
		companies: map[string]*domain.Company{},
		seq:       map[string]int64{},
		clock:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func clone(p *domain.Proposal) *domain.Proposal {
	c := *p
	if p.Itens != nil {
		c.Itens = append([]domain.LineItem{}, p.Itens...)
	}
	return &c
}

func (m *memStore) GetCompany(_ context.Context, userID string) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.companyErr != nil {
		return nil, m.companyErr
	}
	c, ok := m.companies[userID]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "empresa", ID: userID}
	}
	cp := *c
	return &cp, nil
}

func (m *memStore) UpsertCompany(_ context.Context, c *domain.Company) (*domain.Company, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *c
	if cp.ID == "" {
		cp.ID = "emp-" + c.UserID
	}
	m.companies[c.UserID] = &cp
	out := cp
	return &out, nil
}

func (m *memStore) ListProposals(_ context.Context, userID string, f domain.ListFilter) ([]domain.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Proposal
	for _, p := range m.proposals {
		if p.UserID != userID || !f.Matches(p.Summary()) {
			continue
		}
		c := clone(p)
		c.Itens = nil
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memStore) GetProposal(ctx context.Context, userID, id string) (*domain.Proposal, error) {
	if m.getDelay > 0 {
		select {
		case <-time.After(m.getDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok || p.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "proposta", ID: id}
	}
	return clone(p), nil
}

func (m *memStore) SaveProposal(_ context.Context, p *domain.Proposal) (*domain.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	c := clone(p)
	if c.ID == "" {
		m.next++
		c.ID = "prop-" + strconv.Itoa(m.next)
		m.seq[c.UserID]++
		n := m.seq[c.UserID]
		c.NumeroSequencial = &n
		c.CreatedAt = m.clock.Add(time.Duration(m.next) * time.Minute)
	} else {
		old, ok := m.proposals[c.ID]
		if !ok || old.UserID != c.UserID {
			return nil, &domain.ErrNotFound{Resource: "proposta", ID: c.ID}
		}
		c.NumeroSequencial = old.NumeroSequencial
		c.CreatedAt = old.CreatedAt
	}
	if c.Itens == nil {
		c.Itens = []domain.LineItem{}
	}
	m.proposals[c.ID] = c
	return clone(c), nil
}

func (m *memStore) DeleteProposal(_ context.Context, userID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok || p.UserID != userID {
		return &domain.ErrNotFound{Resource: "proposta", ID: id}
	}
	delete(m.proposals, id)
	return nil
}

func (m *memStore) UpdateProposalStatus(_ context.Context, userID, id string, status domain.Status) (*domain.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.proposals[id]
	if !ok || p.UserID != userID {
		return nil, &domain.ErrNotFound{Resource: "proposta", ID: id}
	}
	p.Status = status
	return clone(p), nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*domain.UserAccount
}

func newMemUsers() *memUsers { return &memUsers{users: map[string]*domain.UserAccount{}} }

func (m *memUsers) CreateUser(_ context.Context, u *domain.UserAccount) (*domain.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if _, ok := m.users[email]; ok {
		return nil, &domain.ErrConflict{Message: "E-mail já cadastrado"}
	}
	c := *u
	c.ID = "user-" + strconv.Itoa(len(m.users)+1)
	c.Email = email
	m.users[email] = &c
	out := c
	return &out, nil
}

func (m *memUsers) GetUserByEmail(_ context.Context, email string) (*domain.UserAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, &domain.ErrNotFound{Resource: "usuario", ID: email}
	}
	out := *u
	return &out, nil
}

// --- Collaborators ---

type mockEvents struct {
	mu     sync.Mutex
	events []domain.ProposalEvent
	err    error
}

func (m *mockEvents) Publish(_ context.Context, ev domain.ProposalEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return m.err
}

func (m *mockEvents) types() []domain.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventType, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

type mockBlobs struct {
	path        string
	contentType string
	size        int
	err         error
}

func (m *mockBlobs) Upload(_ context.Context, path string, data []byte, contentType string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.path, m.contentType, m.size = path, contentType, len(data)
	return "https://cdn.example.com/logos/" + path, nil
}

type mockColors struct {
	color string
	err   error
}

func (m *mockColors) ExtractColor(context.Context, []byte) (string, error) {
	return m.color, m.err
}

type mockRasterizer struct {
	mu     sync.Mutex
	calls  int
	docs   []*render.Document
	assets []port.RasterAssets
	err    error
	panics any
}

func (m *mockRasterizer) ContentType() string { return "application/pdf" }

func (m *mockRasterizer) Rasterize(_ context.Context, doc *render.Document, assets port.RasterAssets) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.docs = append(m.docs, doc)
	m.assets = append(m.assets, assets)
	if m.panics != nil {
		panic(m.panics)
	}
	if m.err != nil {
		return nil, m.err
	}
	return []byte("%PDF-1.3 " + doc.Project.Title.Value), nil
}

type mockAssets struct {
	data []byte
	err  error
	urls []string
}

func (m *mockAssets) Fetch(_ context.Context, url string) ([]byte, string, error) {
	m.urls = append(m.urls, url)
	if m.err != nil {
		return nil, "", m.err
	}
	return m.data, "image/png", nil
}
