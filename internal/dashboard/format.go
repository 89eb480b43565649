package dashboard

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Placeholder is shown for any field that has not been received yet.
const Placeholder = "--"

// DefaultDecimals is the fixed fraction width used by Fmt callers that have no
// better idea.
const DefaultDecimals = 2

var printer = message.NewPrinter(language.English)

// float64 holds any decimal of up to 15 significant digits exactly.
const exactFloatDigits = 15

// Fmt renders v with exactly decimals fraction digits and locale digit
// grouping, e.g. 1234.5 -> "1,234.50". Unknown values render as Placeholder.
func Fmt(v decimal.NullDecimal, decimals int) string {
	if !v.Valid {
		return Placeholder
	}
	if decimals < 0 {
		decimals = 0
	}
	d := v.Decimal.Round(int32(decimals))
	if d.NumDigits() <= exactFloatDigits {
		f, _ := d.Float64()
		return printer.Sprint(number.Decimal(f, number.Scale(decimals)))
	}
	return groupFixed(d.StringFixed(int32(decimals)))
}

// groupFixed inserts English thousands separators into a fixed-point string.
func groupFixed(s string) string {
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}
	intPart, frac := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart, frac = s[:i], s[i:]
	}

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	b.WriteString(frac)
	return b.String()
}

// Change classes for the 24h percentage.
const (
	ClassPositive = "positive"
	ClassNegative = "negative"
	ClassNeutral  = "neutral"
)

// PctClass picks the color category of a percent change: zero counts as positive.
func PctClass(v decimal.NullDecimal) string {
	switch {
	case !v.Valid:
		return ClassNeutral
	case v.Decimal.IsNegative():
		return ClassNegative
	default:
		return ClassPositive
	}
}
