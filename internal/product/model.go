package product

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type Category struct {
	NameFR    string  `json:"name_fr"`
	NameEN    *string `json:"name_en,omitempty"`
	SortOrder int     `json:"sort_order"`
}

type Product struct {
	ID       string
	Slug     string
	NameFR   string
	NameEN   *string
	PriceEUR decimal.Decimal
	Unit     string
	Quantity int
	Active   bool
	Category *Category
}

// UnitAmountCents converts the decimal price to minor units, rounding half up.
func (p Product) UnitAmountCents() int64 {
	return p.PriceEUR.Mul(hundred).Round(0).IntPart()
}

// DisplayName returns the English name for English locales when one exists.
func (p Product) DisplayName(locale string) string {
	if IsEnglish(locale) && p.NameEN != nil && *p.NameEN != "" {
		return *p.NameEN
	}
	return p.NameFR
}

func IsEnglish(locale string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(locale)), "en")
}

// ListedProduct is the storefront view of an available product.
type ListedProduct struct {
	Slug     string          `json:"slug"`
	Name     string          `json:"name"`
	PriceEUR decimal.Decimal `json:"price_eur"`
	Unit     string          `json:"unit"`
	Quantity int             `json:"quantity"`
	Category string          `json:"category,omitempty"`
}
