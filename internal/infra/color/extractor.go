// Package color extracts the dominant color of an uploaded logo.
package color

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	"github.com/boddenberg/proposta-facil-go/internal/domain"

	"github.com/EdlinOrg/prominentcolor"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("color")

// Extractor picks the most prominent color with k-means clustering.
type Extractor struct{}

// NewExtractor creates an Extractor.
func NewExtractor() *Extractor { return &Extractor{} }

// ExtractColor returns the dominant color as "rgb(r,g,b)". Undecodable
// images and images without a usable color return an error wrapping
// domain.ErrNoColor.
func (e *Extractor) ExtractColor(ctx context.Context, data []byte) (string, error) {
	_, span := tracer.Start(ctx, "Extractor.ExtractColor")
	defer span.End()

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("decode image: %v: %w", err, domain.ErrNoColor)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	colors, err := prominentcolor.KmeansWithArgs(prominentcolor.ArgumentNoCropping, img)
	if err != nil {
		return "", fmt.Errorf("kmeans: %v: %w", err, domain.ErrNoColor)
	}
	if len(colors) == 0 {
		return "", domain.ErrNoColor
	}

	c := colors[0].Color
	return domain.FormatRGB(uint8(c.R), uint8(c.G), uint8(c.B)), nil
}

// Noop never finds a color.
type Noop struct{}

func (Noop) ExtractColor(context.Context, []byte) (string, error) {
	return "", domain.ErrNoColor
}
