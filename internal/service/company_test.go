package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"
	"github.com/boddenberg/proposta-facil-go/internal/service"

	"go.uber.org/zap"
)

func newCompanyService(store *memStore, blobs *mockBlobs, colors *mockColors) *service.CompanyService {
	return service.NewCompanyService(store, blobs, colors, observability.NewMetrics(), zap.NewNop())
}

func TestCompany_GetMissingReturnsDefaults(t *testing.T) {
	c, err := newCompanyService(newMemStore(), &mockBlobs{}, &mockColors{}).Get(context.Background(), user)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.UserID != user.ID || c.CorPrimaria != domain.DefaultBrandColor || c.Nome != "" {
		t.Errorf("unexpected default profile %+v", c)
	}
}

func TestCompany_GetPropagatesStoreErrors(t *testing.T) {
	store := newMemStore()
	store.companyErr = &domain.ErrTimeout{Operation: "supabase"}

	_, err := newCompanyService(store, &mockBlobs{}, &mockColors{}).Get(context.Background(), user)
	var timeout *domain.ErrTimeout
	if !errors.As(err, &timeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestCompany_Save(t *testing.T) {
	store := newMemStore()
	svc := newCompanyService(store, &mockBlobs{}, &mockColors{})

	saved, err := svc.Save(context.Background(), user, domain.Company{UserID: "someone-else", Nome: "Acme", CorPrimaria: " rgb(1, 2, 3) "})
	if err != nil {
		t.Fatal(err)
	}
	if saved.UserID != user.ID {
		t.Errorf("owner must come from the identity, got %q", saved.UserID)
	}
	if saved.CorPrimaria != "rgb(1, 2, 3)" {
		t.Errorf("unexpected color %q", saved.CorPrimaria)
	}

	_, err = svc.Save(context.Background(), user, domain.Company{Nome: "Acme", CorPrimaria: "blue"})
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) || validation.Field != "cor_primaria" {
		t.Errorf("expected color validation error, got %v", err)
	}
}

func TestCompany_UploadLogo(t *testing.T) {
	store := newMemStore()
	store.companies[user.ID] = &domain.Company{UserID: user.ID, Nome: "Acme", CorPrimaria: "#112233"}
	blobs := &mockBlobs{}
	svc := newCompanyService(store, blobs, &mockColors{color: "rgb(200,30,40)"})

	c, err := svc.UploadLogo(context.Background(), user, "Marca.PNG", []byte("\x89PNG\r\n\x1a\n"))
	if err != nil {
		t.Fatal(err)
	}
	if blobs.path != "user-1/logo.png" || blobs.contentType != "image/png" {
		t.Errorf("unexpected upload %q (%s)", blobs.path, blobs.contentType)
	}
	if c.LogoURL != "https://cdn.example.com/logos/user-1/logo.png" {
		t.Errorf("unexpected logo url %q", c.LogoURL)
	}
	if c.CorPrimaria != "rgb(200,30,40)" || c.Nome != "Acme" {
		t.Errorf("expected extracted color and kept name, got %+v", c)
	}
}

func TestCompany_UploadLogoKeepsColorWithoutExtraction(t *testing.T) {
	store := newMemStore()
	store.companies[user.ID] = &domain.Company{UserID: user.ID, CorPrimaria: "#112233"}
	svc := newCompanyService(store, &mockBlobs{}, &mockColors{err: domain.ErrNoColor})

	c, err := svc.UploadLogo(context.Background(), user, "logo.svg", []byte("<svg/>"))
	if err != nil {
		t.Fatal(err)
	}
	if c.CorPrimaria != "#112233" {
		t.Errorf("expected prior color to be kept, got %q", c.CorPrimaria)
	}
	if c.LogoURL == "" {
		t.Error("expected logo url")
	}
}

func TestCompany_UploadLogoValidation(t *testing.T) {
	svc := newCompanyService(newMemStore(), &mockBlobs{}, &mockColors{})
	tests := []struct {
		name     string
		filename string
		data     []byte
	}{
		{"empty", "logo.png", nil},
		{"unsupported", "logo.exe", []byte("MZ")},
		{"no extension", "logo", []byte("x")},
		{"too large", "logo.png", make([]byte, service.MaxLogoBytes+1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.UploadLogo(context.Background(), user, tt.filename, tt.data)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Errorf("expected ErrValidation, got %v", err)
			}
		})
	}
}

func TestCompany_UploadLogoBlobFailure(t *testing.T) {
	store := newMemStore()
	svc := newCompanyService(store, &mockBlobs{err: &domain.ErrExternalService{Service: "s3", Err: errors.New("denied")}}, &mockColors{})

	_, err := svc.UploadLogo(context.Background(), user, "logo.png", []byte("x"))
	var ext *domain.ErrExternalService
	if !errors.As(err, &ext) {
		t.Fatalf("expected ErrExternalService, got %v", err)
	}
	if _, ok := store.companies[user.ID]; ok {
		t.Error("profile must not change when the upload fails")
	}
}

func TestLogoPath(t *testing.T) {
	if got := service.LogoPath("u1", ".JPEG"); got != "u1/logo.jpeg" {
		t.Errorf("unexpected path %q", got)
	}
}

func TestCompany_UploadLogoWithoutBlobStore(t *testing.T) {
	svc := service.NewCompanyService(newMemStore(), nil, &mockColors{}, observability.NewMetrics(), zap.NewNop())

	_, err := svc.UploadLogo(context.Background(), user, "logo.png", []byte("png"))
	var forbidden *domain.ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
