package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/boddenberg/proposta-facil-go/internal/config"
	"github.com/boddenberg/proposta-facil-go/internal/domain"
	"github.com/boddenberg/proposta-facil-go/internal/infra/observability"
	"github.com/boddenberg/proposta-facil-go/internal/infra/pdf"
	"github.com/boddenberg/proposta-facil-go/internal/port"
	"github.com/boddenberg/proposta-facil-go/internal/render"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type renderOptions struct {
	draftPath   string
	companyPath string
	logoPath    string
	format      string
	out         string
	live        bool
}

func renderCmd() *cobra.Command {
	var opts renderOptions
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a proposal draft from a YAML or JSON file",
		Long: `Render composes a draft (and optionally a company profile) without any
store or network access and writes it as PDF, HTML, Markdown or document JSON.
The logo is embedded only when --logo points to a local image.`,
		Example: `  propostas render --draft reforma.yaml --company empresa.yaml --format pdf
  propostas render --draft reforma.yaml --format md --out -`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.draftPath, "draft", "", "draft file (YAML or JSON)")
	f.StringVar(&opts.companyPath, "company", "", "company profile file (YAML or JSON)")
	f.StringVar(&opts.logoPath, "logo", "", "local logo image embedded in PDF output")
	f.StringVarP(&opts.format, "format", "f", "pdf", "output format: pdf, html, md or json")
	f.StringVarP(&opts.out, "out", "o", "", `output file; "-" writes to stdout (default: derived from the title for pdf, stdout otherwise)`)
	f.BoolVar(&opts.live, "live", false, "use the inline preview layout instead of the A4 page")
	_ = cmd.MarkFlagRequired("draft")
	return cmd
}

func runRender(ctx context.Context, stdout io.Writer, opts renderOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var draft domain.Draft
	if err := readDocument(opts.draftPath, &draft); err != nil {
		return err
	}
	var company *domain.Company
	if opts.companyPath != "" {
		company = &domain.Company{}
		if err := readDocument(opts.companyPath, company); err != nil {
			return err
		}
	}

	cfg := config.Load()
	locale, err := render.NewLocale(cfg.Locale, cfg.CurrencySymbol, cfg.DateLayout, cfg.Timezone)
	if err != nil {
		return fmt.Errorf("locale: %w", err)
	}

	now := time.Now()
	doc := render.Compose(render.Input{
		Draft:    draft,
		Company:  company,
		FullPage: !opts.live,
		Now:      now,
		Today:    now,
		Locale:   locale,
	})

	format := strings.ToLower(opts.format)
	var data []byte
	switch format {
	case "pdf":
		assets, err := readLogo(opts.logoPath)
		if err != nil {
			return err
		}
		if len(assets.Logo) == 0 {
			doc.DropLogo()
		}
		logger := observability.NewLogger(cfg.LogLevel, cfg.ServiceName)
		defer logger.Sync()
		if data, err = pdf.New(logger).Rasterize(ctx, doc, assets); err != nil {
			return err
		}
	case "html":
		if data, err = render.HTML(doc); err != nil {
			return err
		}
	case "md", "markdown":
		md, err := render.RenderMarkdown(doc)
		if err != nil {
			return err
		}
		data = []byte(md)
	case "json":
		if data, err = json.MarshalIndent(doc, "", "  "); err != nil {
			return err
		}
		data = append(data, '\n')
	default:
		return fmt.Errorf("unknown format %q: use pdf, html, md or json", opts.format)
	}

	out := opts.out
	if out == "" && format == "pdf" {
		out = render.ExportFilename(doc.Project.Title.Value)
	}
	if out == "" || out == "-" {
		_, err := stdout.Write(data)
		return err
	}
	if err := os.WriteFile(out, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(stdout, "%s written (%d bytes)\n", out, len(data))
	return nil
}

// readDocument decodes a YAML (or JSON) file into dst through its JSON tags,
// so the lenient numeric parsing of the API applies to files as well.
func readDocument(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var tree any
	if err := yaml.Unmarshal(raw, &tree); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if tree == nil {
		return fmt.Errorf("parse %s: empty document", path)
	}
	js, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	if err := json.Unmarshal(js, dst); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

func readLogo(path string) (port.RasterAssets, error) {
	if path == "" {
		return port.RasterAssets{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return port.RasterAssets{}, fmt.Errorf("logo: %w", err)
	}
	return port.RasterAssets{Logo: data, LogoContentType: http.DetectContentType(data)}, nil
}
