package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"
	"github.com/boddenberg/proposta-facil-go/internal/infra/resilience"
	"github.com/boddenberg/proposta-facil-go/internal/port"
	"github.com/boddenberg/proposta-facil-go/internal/render"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Export is a rasterized proposal ready to download.
type Export struct {
	Filename    string
	ContentType string
	Data        []byte
	ETag        string
}

// PreviewDeps are the collaborators of PreviewService. Assets and Cache are optional.
type PreviewDeps struct {
	Proposals  port.ProposalStore
	Companies  port.CompanyStore
	Rasterizer port.DocumentRasterizer
	Assets     port.AssetFetcher
	Cache      port.Cache[[]byte]
	Bulkhead   *resilience.Bulkhead
	Locale     render.Locale
}

// PreviewService composes documents for persisted proposals and drafts and
// exports them as files.
type PreviewService struct {
	deps    PreviewDeps
	clock   Clock
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewPreviewService creates the preview service.
func NewPreviewService(deps PreviewDeps, metrics *observability.Metrics, logger *zap.Logger) *PreviewService {
	if deps.Bulkhead == nil {
		deps.Bulkhead = resilience.NewBulkhead(2)
	}
	return &PreviewService{deps: deps, clock: time.Now, metrics: metrics, logger: logger}
}

// WithClock overrides the time source.
func (s *PreviewService) WithClock(c Clock) *PreviewService {
	s.clock = c
	return s
}

// Preview composes a persisted proposal. Company and proposal load
// concurrently; a company that fails to load renders as placeholders, a
// proposal failure is returned.
func (s *PreviewService) Preview(ctx context.Context, id domain.Identity, proposalID string, fullPage bool) (*render.Document, error) {
	ctx, span := tracer.Start(ctx, "PreviewService.Preview")
	defer span.End()
	span.SetAttributes(
		attribute.String("proposal.id", proposalID),
		attribute.Bool("full_page", fullPage),
	)

	p, company, err := s.load(ctx, id, proposalID)
	if err != nil {
		return nil, err
	}
	return s.compose(p.Draft(), company, fullPage), nil
}

// PreviewDraft composes an unsaved draft with the identity's company.
func (s *PreviewService) PreviewDraft(ctx context.Context, id domain.Identity, d domain.Draft, fullPage bool) (*render.Document, error) {
	ctx, span := tracer.Start(ctx, "PreviewService.PreviewDraft")
	defer span.End()
	if err := requireIdentity(id); err != nil {
		return nil, err
	}
	return s.compose(d, s.company(ctx, id.UserID()), fullPage), nil
}

// RenderHTML renders a persisted proposal as a standalone HTML page.
func (s *PreviewService) RenderHTML(ctx context.Context, id domain.Identity, proposalID string, fullPage bool) ([]byte, error) {
	doc, err := s.Preview(ctx, id, proposalID, fullPage)
	if err != nil {
		return nil, err
	}
	return render.HTML(doc)
}

// RenderMarkdown renders a persisted proposal as Markdown.
func (s *PreviewService) RenderMarkdown(ctx context.Context, id domain.Identity, proposalID string) (string, error) {
	doc, err := s.Preview(ctx, id, proposalID, true)
	if err != nil {
		return "", err
	}
	return render.RenderMarkdown(doc)
}

// Export rasterizes the print-mode document of a proposal. Identical
// documents are served from the cache. A rasterizer failure is returned as
// *domain.ErrExport and leaves no state behind.
func (s *PreviewService) Export(ctx context.Context, id domain.Identity, proposalID string) (*Export, error) {
	ctx, span := tracer.Start(ctx, "PreviewService.Export")
	defer span.End()
	span.SetAttributes(attribute.String("proposal.id", proposalID))

	start := time.Now()
	defer func() { s.metrics.RecordRequestDuration("proposals.export", time.Since(start)) }()

	p, company, err := s.load(ctx, id, proposalID)
	if err != nil {
		return nil, err
	}
	doc := s.compose(p.Draft(), company, true)
	assets := s.fetchLogo(ctx, doc)

	if len(assets.Logo) == 0 {
		doc.DropLogo()
	}

	key := "pdf:" + render.Fingerprint(doc, assets.Logo)
	out := &Export{
		Filename:    render.ExportFilename(doc.Project.Title.Value),
		ContentType: s.deps.Rasterizer.ContentType(),
		ETag:        `"` + key[len("pdf:"):] + `"`,
	}

	if s.deps.Cache != nil {
		if data, ok := s.deps.Cache.Get(key); ok {
			s.metrics.IncrCacheHit("pdf")
			s.metrics.IncrExport("cached")
			out.Data = data
			return out, nil
		}
		s.metrics.IncrCacheMiss("pdf")
	}

	if err := s.deps.Bulkhead.Acquire(ctx); err != nil {
		s.metrics.IncrExport("busy")
		return nil, &domain.ErrTimeout{Operation: "export"}
	}
	data, err := s.rasterize(ctx, doc, assets)
	if err != nil {
		s.metrics.IncrExport("error")
		s.logger.Error("export failed",
			zap.String("user_id", id.UserID()),
			zap.String("proposal_id", proposalID),
			zap.Error(err),
		)
		return nil, &domain.ErrExport{Err: err}
	}

	s.metrics.IncrExport("ok")
	if s.deps.Cache != nil {
		s.deps.Cache.Set(key, data)
	}
	out.Data = data
	return out, nil
}

// rasterize runs the rasterizer in an already acquired bulkhead slot and
// frees it on return. A rasterizer panic comes back as an error.
func (s *PreviewService) rasterize(ctx context.Context, doc *render.Document, assets port.RasterAssets) (data []byte, err error) {
	s.metrics.SetExportsInFlight(s.deps.Bulkhead.InFlight())
	defer func() {
		s.deps.Bulkhead.Release()
		s.metrics.SetExportsInFlight(s.deps.Bulkhead.InFlight())
	}()
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("rasterizer panic: %v", r)
		}
	}()
	return s.deps.Rasterizer.Rasterize(ctx, doc, assets)
}

func (s *PreviewService) load(ctx context.Context, id domain.Identity, proposalID string) (*domain.Proposal, *domain.Company, error) {
	if err := requireIdentity(id); err != nil {
		return nil, nil, err
	}

	var (
		proposal *domain.Proposal
		company  *domain.Company
	)

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		company = s.company(gCtx, id.UserID())
		return nil
	})

	g.Go(func() error {
		p, err := s.deps.Proposals.GetProposal(gCtx, id.UserID(), proposalID)
		if err != nil {
			return fmt.Errorf("get proposal: %w", err)
		}
		proposal = p
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return proposal, company, nil
}

// company returns nil when the profile is missing or failed to load.
func (s *PreviewService) company(ctx context.Context, userID string) *domain.Company {
	c, err := s.deps.Companies.GetCompany(ctx, userID)
	if err != nil {
		var notFound *domain.ErrNotFound
		if !errors.As(err, &notFound) && !errors.Is(err, context.Canceled) {
			s.metrics.IncrExternalError("company")
			s.logger.Warn("company unavailable, rendering placeholders",
				zap.String("user_id", userID),
				zap.Error(err),
			)
		}
		return nil
	}
	return c
}

func (s *PreviewService) compose(d domain.Draft, c *domain.Company, fullPage bool) *render.Document {
	now := s.clock()
	doc := render.Compose(render.Input{
		Draft:    d,
		Company:  c,
		FullPage: fullPage,
		Now:      now,
		Today:    now,
		Locale:   s.deps.Locale,
	})
	s.metrics.IncrDocument(string(doc.Mode))
	return doc
}

func (s *PreviewService) fetchLogo(ctx context.Context, doc *render.Document) port.RasterAssets {
	if doc.Header.Logo == nil || s.deps.Assets == nil {
		return port.RasterAssets{}
	}
	data, ct, err := s.deps.Assets.Fetch(ctx, doc.Header.Logo.URL)
	if err != nil {
		s.metrics.IncrExternalError("assets")
		s.logger.Warn("logo unavailable, exporting with badge",
			zap.String("url", doc.Header.Logo.URL),
			zap.Error(err),
		)
		return port.RasterAssets{}
	}
	return port.RasterAssets{Logo: data, LogoContentType: ct}
}
