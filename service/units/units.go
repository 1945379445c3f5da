// Package units converts raw ATLAS base units to display strings.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// AtlasDecimals is the ATLAS mint's decimal scale.
const AtlasDecimals = 8

// FiatPlaces is the number of decimals fiat amounts are shown with.
const FiatPlaces = 3

// Atlas converts raw base units to a decimal token amount.
func Atlas(raw uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(raw), -AtlasDecimals)
}

// ParseAtlas converts a token amount such as "12.5" to raw base units.
// Amounts with more than AtlasDecimals places, negative amounts and
// amounts that overflow uint64 are rejected.
func ParseAtlas(s string) (uint64, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, fmt.Errorf("invalid ATLAS amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("invalid ATLAS amount %q: negative", s)
	}
	raw := d.Shift(AtlasDecimals)
	if !raw.Equal(raw.Truncate(0)) {
		return 0, fmt.Errorf("invalid ATLAS amount %q: more than %d decimals", s, AtlasDecimals)
	}
	n := raw.BigInt()
	if !n.IsUint64() {
		return 0, fmt.Errorf("invalid ATLAS amount %q: too large", s)
	}
	return n.Uint64(), nil
}

// FormatAtlas renders raw base units with thousands separators and
// trailing zeros trimmed, e.g. 123456789000000 -> "1,234,567.89".
func FormatAtlas(raw uint64) string {
	return Thousands(Atlas(raw).String())
}

// Fiat multiplies a raw amount by a unit price and renders it to FiatPlaces.
func Fiat(raw uint64, price decimal.Decimal) string {
	return Atlas(raw).Mul(price).StringFixed(FiatPlaces)
}

// Thousands inserts comma separators into the integer part of a decimal string.
func Thousands(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac, hasFrac := strings.Cut(s, ".")

	var b strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if hasFrac {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return sign + b.String()
}
