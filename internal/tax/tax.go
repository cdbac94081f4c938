// Package tax maps a customer's country to a flat tax rate and computes
// the tax portion of an invoice amount.
package tax

import (
	"strings"

	"github.com/shopspring/decimal"
)

// spanishVAT is the only taxable bracket in v1.
var spanishVAT = decimal.NewFromFloat(0.21)

var spainAliases = []string{"es", "españa", "spain"}

// Rate returns the tax fraction for a country code or name. Unknown and
// empty countries are untaxed.
func Rate(country string) decimal.Decimal {
	normalized := strings.ToLower(strings.TrimSpace(country))
	for _, alias := range spainAliases {
		if normalized == alias {
			return spanishVAT
		}
	}
	return decimal.Zero
}

// Compute returns the tax on base for the given country, rounded half-up
// to 2 decimal places. There are no error cases: an unmatched country
// yields zero tax.
func Compute(country string, base decimal.Decimal) decimal.Decimal {
	rate := Rate(country)
	if rate.IsZero() {
		return decimal.Zero
	}
	return base.Mul(rate).Round(2)
}
