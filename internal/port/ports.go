// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the domain/service
// layer from concrete implementations.
package port

import (
	"context"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/render"
)

// CompanyStore persists the single company profile of each user (empresas).
type CompanyStore interface {
	// GetCompany returns *domain.ErrNotFound when the user has no profile yet.
	GetCompany(ctx context.Context, userID string) (*domain.Company, error)
	// UpsertCompany inserts or replaces the profile keyed by c.UserID.
	UpsertCompany(ctx context.Context, c *domain.Company) (*domain.Company, error)
}

// ProposalStore persists proposals (propostas) and their items (itens_proposta).
type ProposalStore interface {
	// ListProposals returns the user's proposals newest first, without items.
	ListProposals(ctx context.Context, userID string, filter domain.ListFilter) ([]domain.Proposal, error)
	// GetProposal returns a proposal with its items loaded.
	GetProposal(ctx context.Context, userID, id string) (*domain.Proposal, error)
	// SaveProposal inserts (empty ID) or updates the proposal row and
	// replaces its whole item set.
	SaveProposal(ctx context.Context, p *domain.Proposal) (*domain.Proposal, error)
	DeleteProposal(ctx context.Context, userID, id string) error
	UpdateProposalStatus(ctx context.Context, userID, id string, status domain.Status) (*domain.Proposal, error)
}

// BlobStore uploads files, overwriting any previous object at path, and
// returns the object's public URL.
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte, contentType string) (string, error)
}

// ColorExtractor finds a representative color in an image. It returns
// domain.ErrNoColor when none could be determined.
type ColorExtractor interface {
	ExtractColor(ctx context.Context, image []byte) (string, error)
}

// RasterAssets are binary resources a rasterizer may embed.
type RasterAssets struct {
	Logo            []byte
	LogoContentType string
}

// DocumentRasterizer turns a print-mode document into a binary file.
type DocumentRasterizer interface {
	Rasterize(ctx context.Context, doc *render.Document, assets RasterAssets) ([]byte, error)
	ContentType() string
}

// AssetFetcher downloads a remote asset such as the company logo.
type AssetFetcher interface {
	Fetch(ctx context.Context, url string) (data []byte, contentType string, err error)
}

// IdentityProvider handles credentials. The rest of the system only ever
// sees the resolved domain.Identity.
type IdentityProvider interface {
	SignIn(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	SignUp(ctx context.Context, creds domain.Credentials) (*domain.Session, error)
	SignOut(ctx context.Context, accessToken string) error
}

// UserStore persists local accounts for the built-in identity provider.
type UserStore interface {
	// CreateUser returns *domain.ErrConflict when the e-mail is taken.
	CreateUser(ctx context.Context, u *domain.UserAccount) (*domain.UserAccount, error)
	// GetUserByEmail returns *domain.ErrNotFound for unknown e-mails.
	GetUserByEmail(ctx context.Context, email string) (*domain.UserAccount, error)
}

// TokenVerifier validates an access token issued by the identity provider.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.AuthenticatedUser, error)
}

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// EventPublisher emits proposal lifecycle events.
type EventPublisher interface {
	Publish(ctx context.Context, ev domain.ProposalEvent) error
}
