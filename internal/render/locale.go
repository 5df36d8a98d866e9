package render

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Locale is the single locale/currency pair documents are rendered in.
type Locale struct {
	Tag            language.Tag
	CurrencySymbol string
	DateLayout     string
	Location       *time.Location
}

// DefaultLocale is pt-BR / BRL / dd/mm/yyyy in São Paulo time.
func DefaultLocale() Locale {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		loc = time.FixedZone("BRT", -3*60*60)
	}
	return Locale{
		Tag:            language.BrazilianPortuguese,
		CurrencySymbol: "R$",
		DateLayout:     "02/01/2006",
		Location:       loc,
	}
}

// NewLocale builds a locale from configuration values.
func NewLocale(tag, currencySymbol, dateLayout, timezone string) (Locale, error) {
	l := DefaultLocale()
	if tag != "" {
		t, err := language.Parse(tag)
		if err != nil {
			return Locale{}, fmt.Errorf("parse locale %q: %w", tag, err)
		}
		l.Tag = t
	}
	if currencySymbol != "" {
		l.CurrencySymbol = currencySymbol
	}
	if dateLayout != "" {
		l.DateLayout = dateLayout
	}
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return Locale{}, fmt.Errorf("load timezone %q: %w", timezone, err)
		}
		l.Location = loc
	}
	return l, nil
}

func (l Locale) orDefault() Locale {
	if l.CurrencySymbol == "" && l.DateLayout == "" && l.Location == nil {
		return DefaultLocale()
	}
	if l.Location == nil {
		l.Location = time.UTC
	}
	if l.DateLayout == "" {
		l.DateLayout = "02/01/2006"
	}
	return l
}

// Money formats an amount with two decimals, locale grouping and the currency symbol.
func (l Locale) Money(v decimal.Decimal) string {
	v = v.Round(2)
	sign := ""
	if v.IsNegative() {
		sign = "-"
		v = v.Neg()
	}
	f, _ := v.Float64()
	p := message.NewPrinter(l.Tag)
	return sign + l.CurrencySymbol + " " + p.Sprint(number.Decimal(f, number.Scale(2)))
}

// Quantity formats a plain number in the locale, without trailing zeros.
func (l Locale) Quantity(v float64) string {
	p := message.NewPrinter(l.Tag)
	return p.Sprint(number.Decimal(v, number.MaxFractionDigits(4)))
}

// Date formats t as a short date in the locale's time zone.
func (l Locale) Date(t time.Time) string {
	loc := l.Location
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(l.DateLayout)
}
