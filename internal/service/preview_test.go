package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/cache"
	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"
	"github.com/boddenberg/proposta-facil-go/internal/infra/resilience"
	"github.com/boddenberg/proposta-facil-go/internal/render"
	"github.com/boddenberg/proposta-facil-go/internal/service"

	"go.uber.org/zap"
)

type previewFixture struct {
	store  *memStore
	raster *mockRasterizer
	assets *mockAssets
	svc    *service.PreviewService
	id     string
}

func newPreviewFixture(t *testing.T) *previewFixture {
	t.Helper()
	store := newMemStore()
	p, err := newProposalService(store, &mockEvents{}).Save(context.Background(), user, scenarioDraft())
	if err != nil {
		t.Fatal(err)
	}
	store.companies[user.ID] = &domain.Company{UserID: user.ID, Nome: "acme design", CorPrimaria: "#10B981"}

	f := &previewFixture{store: store, raster: &mockRasterizer{}, assets: &mockAssets{data: []byte("png")}, id: p.ID}
	pdfCache := cache.New[[]byte](time.Minute)
	t.Cleanup(pdfCache.Close)

	f.svc = service.NewPreviewService(service.PreviewDeps{
		Proposals:  store,
		Companies:  store,
		Rasterizer: f.raster,
		Assets:     f.assets,
		Cache:      pdfCache,
		Bulkhead:   resilience.NewBulkhead(1),
		Locale:     render.DefaultLocale(),
	}, observability.NewMetrics(), zap.NewNop()).
		WithClock(func() time.Time { return time.Date(2024, 3, 10, 18, 0, 0, 0, time.UTC) })
	return f
}

func TestPreview_PrintAndLive(t *testing.T) {
	f := newPreviewFixture(t)
	ctx := context.Background()

	printDoc, err := f.svc.Preview(ctx, user, f.id, true)
	if err != nil {
		t.Fatal(err)
	}
	liveDoc, err := f.svc.Preview(ctx, user, f.id, false)
	if err != nil {
		t.Fatal(err)
	}

	if printDoc.Mode != render.ModePrint || liveDoc.Mode != render.ModeLive {
		t.Errorf("unexpected modes %s/%s", printDoc.Mode, liveDoc.Mode)
	}
	if printDoc.Totals.Amount != "R$ 25,50" || liveDoc.Totals.Amount != printDoc.Totals.Amount {
		t.Errorf("expected R$ 25,50 in both modes, got %q / %q", printDoc.Totals.Amount, liveDoc.Totals.Amount)
	}
	if printDoc.Header.Number != "#001" {
		t.Errorf("expected #001, got %q", printDoc.Header.Number)
	}
	if printDoc.Header.Badge == nil || printDoc.Header.Badge.Letter != "A" {
		t.Errorf("expected badge A, got %+v", printDoc.Header.Badge)
	}
	if printDoc.Header.Date != "DATA: 10/03/2024" {
		t.Errorf("unexpected date %q", printDoc.Header.Date)
	}
}

func TestPreview_CompanyFailureDegradesToPlaceholders(t *testing.T) {
	f := newPreviewFixture(t)
	f.store.companyErr = &domain.ErrExternalService{Service: "supabase", Err: errors.New("503")}

	doc, err := f.svc.Preview(context.Background(), user, f.id, true)
	if err != nil {
		t.Fatalf("company failure must not fail the preview, got %v", err)
	}
	if doc.Header.CompanyName.Value != "Sua Empresa" || doc.BrandColor != domain.DefaultBrandColor {
		t.Errorf("expected placeholders, got %+v", doc.Header)
	}
}

func TestPreview_ProposalFailureIsReturned(t *testing.T) {
	f := newPreviewFixture(t)

	_, err := f.svc.Preview(context.Background(), user, "missing", true)
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_, err = f.svc.Preview(context.Background(), domain.AuthenticatedUser{ID: "user-2"}, f.id, true)
	if !errors.As(err, &notFound) {
		t.Fatalf("other users must not see the proposal, got %v", err)
	}
}

func TestPreviewDraft(t *testing.T) {
	f := newPreviewFixture(t)
	d := domain.NewDraft()

	doc, err := f.svc.PreviewDraft(context.Background(), user, d, false)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Mode != render.ModeLive || doc.Totals.Amount != "R$ 0,00" {
		t.Errorf("unexpected live draft %+v", doc.Totals)
	}
	if doc.Header.Number != "#000" {
		t.Errorf("unsaved draft must show #000, got %q", doc.Header.Number)
	}
	if doc.Header.CompanyName.Value != "acme design" {
		t.Errorf("expected company name, got %q", doc.Header.CompanyName.Value)
	}
}

func TestRenderHTMLAndMarkdown(t *testing.T) {
	f := newPreviewFixture(t)
	ctx := context.Background()

	html, err := f.svc.RenderHTML(ctx, user, f.id, true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(html), "R$ 25,50") || !strings.HasPrefix(strings.TrimSpace(string(html)), "<!DOCTYPE html>") {
		t.Errorf("unexpected html output")
	}

	md, err := f.svc.RenderMarkdown(ctx, user, f.id)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(md, "R$ 25,50") || !strings.Contains(md, "Website") {
		t.Errorf("unexpected markdown:\n%s", md)
	}
}

func TestExport_CachesByFingerprint(t *testing.T) {
	f := newPreviewFixture(t)
	ctx := context.Background()

	first, err := f.svc.Export(ctx, user, f.id)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.svc.Export(ctx, user, f.id)
	if err != nil {
		t.Fatal(err)
	}

	if f.raster.calls != 1 {
		t.Errorf("expected one rasterization, got %d", f.raster.calls)
	}
	if first.ETag == "" || first.ETag != second.ETag {
		t.Errorf("expected a stable ETag, got %q / %q", first.ETag, second.ETag)
	}
	if first.Filename != "proposta-website.pdf" || first.ContentType != "application/pdf" {
		t.Errorf("unexpected export metadata %+v", first)
	}
	if f.raster.docs[0].Mode != render.ModePrint {
		t.Error("export must rasterize the print document")
	}

	// Editing the proposal changes the document and the cache key.
	p, _ := f.store.GetProposal(ctx, user.ID, f.id)
	d := p.Draft()
	d.Titulo = "Website v2"
	if _, err := newProposalService(f.store, &mockEvents{}).Save(ctx, user, d); err != nil {
		t.Fatal(err)
	}
	third, err := f.svc.Export(ctx, user, f.id)
	if err != nil {
		t.Fatal(err)
	}
	if third.ETag == first.ETag || f.raster.calls != 2 {
		t.Errorf("expected a fresh export after an edit")
	}
}

func TestExport_LogoFetchedAndFallsBackToBadge(t *testing.T) {
	f := newPreviewFixture(t)
	f.store.companies[user.ID].LogoURL = "https://cdn.example.com/logo.png"
	ctx := context.Background()

	if _, err := f.svc.Export(ctx, user, f.id); err != nil {
		t.Fatal(err)
	}
	if string(f.raster.assets[0].Logo) != "png" || f.raster.docs[0].Header.Logo == nil {
		t.Errorf("expected logo bytes to be passed to the rasterizer")
	}

	f.assets.err = errors.New("cdn down")
	f.assets.data = nil
	f.svc.Export(ctx, user, f.id)

	last := f.raster.docs[len(f.raster.docs)-1]
	if last.Header.Logo != nil || last.Header.Badge == nil || last.Header.Badge.Letter != "A" {
		t.Errorf("expected badge fallback, got %+v", last.Header)
	}
}

func TestExport_RasterizerFailure(t *testing.T) {
	f := newPreviewFixture(t)
	f.raster.err = domain.ErrRasterizerUnavailable

	_, err := f.svc.Export(context.Background(), user, f.id)
	var exportErr *domain.ErrExport
	if !errors.As(err, &exportErr) || !errors.Is(err, domain.ErrRasterizerUnavailable) {
		t.Fatalf("expected ErrExport, got %v", err)
	}

	// Nothing was cached: the next attempt rasterizes again.
	f.raster.err = nil
	if _, err := f.svc.Export(context.Background(), user, f.id); err != nil {
		t.Fatal(err)
	}
	if f.raster.calls != 2 {
		t.Errorf("expected 2 rasterizations, got %d", f.raster.calls)
	}
}

func TestExport_RasterizerPanicFreesSlot(t *testing.T) {
	store := newMemStore()
	p, err := newProposalService(store, &mockEvents{}).Save(context.Background(), user, scenarioDraft())
	if err != nil {
		t.Fatal(err)
	}
	raster := &mockRasterizer{panics: "index out of range [65533] with length 256"}
	bulkhead := resilience.NewBulkhead(1)
	svc := service.NewPreviewService(service.PreviewDeps{
		Proposals:  store,
		Companies:  store,
		Rasterizer: raster,
		Bulkhead:   bulkhead,
		Locale:     render.DefaultLocale(),
	}, observability.NewMetrics(), zap.NewNop())

	for i := 0; i < 2; i++ {
		_, err := svc.Export(context.Background(), user, p.ID)
		var exportErr *domain.ErrExport
		if !errors.As(err, &exportErr) {
			t.Fatalf("attempt %d: expected ErrExport, got %v", i+1, err)
		}
		if bulkhead.InFlight() != 0 {
			t.Fatalf("attempt %d: expected free bulkhead, got %d in flight", i+1, bulkhead.InFlight())
		}
	}

	raster.panics = nil
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := svc.Export(ctx, user, p.ID); err != nil {
		t.Fatalf("export after panics should succeed, got %v", err)
	}
}

func TestExport_ConcurrentExportsAreBounded(t *testing.T) {
	f := newPreviewFixture(t)

	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Export(context.Background(), user, f.id)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("concurrent export failed: %v", err)
		}
	}
}

func TestExport_CanceledWhileWaiting(t *testing.T) {
	f := newPreviewFixture(t)
	f.store.getDelay = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()

	if _, err := f.svc.Export(ctx, user, f.id); err == nil {
		t.Fatal("expected an error for a canceled export")
	}
	if f.raster.calls != 0 {
		t.Error("canceled export must not rasterize")
	}
}
