package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// DefaultBrandColor is the indigo used when a company has no brand color.
const DefaultBrandColor = "#4F46E5"

var (
	hexColorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
	rgbColorRe = regexp.MustCompile(`^rgb\(\s*(\d{1,3})\s*,\s*(\d{1,3})\s*,\s*(\d{1,3})\s*\)$`)
)

// Company is the company profile of a user (empresas). At most one per user.
type Company struct {
	ID          string `json:"id,omitempty"`
	UserID      string `json:"user_id"`
	Nome        string `json:"nome"`
	CNPJ        string `json:"cnpj"`
	Telefone    string `json:"telefone"`
	Email       string `json:"email"`
	Endereco    string `json:"endereco"`
	CorPrimaria string `json:"cor_primaria,omitempty"`
	LogoURL     string `json:"logo_url,omitempty"`
}

// BrandColor returns the configured color or the default indigo.
func (c *Company) BrandColor() string {
	if c == nil || strings.TrimSpace(c.CorPrimaria) == "" {
		return DefaultBrandColor
	}
	return strings.TrimSpace(c.CorPrimaria)
}

// IsHexColor reports whether v is a 6-digit hex color (#rrggbb).
func IsHexColor(v string) bool {
	return hexColorRe.MatchString(strings.TrimSpace(v))
}

// IsRGBColor reports whether v is an rgb(r,g,b) color with 0..255 channels.
func IsRGBColor(v string) bool {
	_, _, _, ok := ParseRGB(v)
	return ok
}

// IsValidColor accepts both hex and rgb forms.
func IsValidColor(v string) bool {
	return IsHexColor(v) || IsRGBColor(v)
}

// EditableColor returns the value a plain color picker can show: hex values
// pass through, anything else (rgb or empty) falls back to the default.
func EditableColor(v string) string {
	if IsHexColor(v) {
		return strings.TrimSpace(v)
	}
	return DefaultBrandColor
}

// ParseRGB parses "rgb(r,g,b)".
func ParseRGB(v string) (r, g, b uint8, ok bool) {
	m := rgbColorRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return 0, 0, 0, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(m[i+1])
		if err != nil || n > 255 {
			return 0, 0, 0, false
		}
		ch[i] = uint8(n)
	}
	return ch[0], ch[1], ch[2], true
}

// ColorChannels resolves any supported color form to RGB channels. Invalid
// values resolve to the default brand color.
func ColorChannels(v string) (r, g, b uint8) {
	v = strings.TrimSpace(v)
	if r, g, b, ok := ParseRGB(v); ok {
		return r, g, b
	}
	if !IsHexColor(v) {
		v = DefaultBrandColor
	}
	n, _ := strconv.ParseUint(v[1:], 16, 32)
	return uint8(n >> 16), uint8(n >> 8), uint8(n)
}

// FormatRGB renders channels in the rgb(r,g,b) form produced by color extraction.
func FormatRGB(r, g, b uint8) string {
	return "rgb(" + strconv.Itoa(int(r)) + "," + strconv.Itoa(int(g)) + "," + strconv.Itoa(int(b)) + ")"
}
