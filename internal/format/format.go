// Package format renders money and percentages the way the dashboard shows
// them: en-US grouping, two decimals, explicit sign where a change is shown.
package format

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Currency formats v as US dollars with two decimals, e.g. -$1,234.50.
func Currency(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	return sign + "$" + group(d.StringFixed(2))
}

// SignedCurrency is Currency with a leading + for non-negative values.
func SignedCurrency(v float64) string {
	if v >= 0 {
		return "+" + Currency(v)
	}
	return Currency(v)
}

// Percentage formats v (already in percent) with two decimals.
func Percentage(v float64) string {
	return decimal.NewFromFloat(v).Round(2).StringFixed(2) + "%"
}

// SignedPercentage is Percentage with a leading + for non-negative values.
func SignedPercentage(v float64) string {
	if v >= 0 {
		return "+" + Percentage(v)
	}
	return Percentage(v)
}

var units = []struct {
	limit  decimal.Decimal
	suffix string
}{
	{decimal.New(1, 12), "T"},
	{decimal.New(1, 9), "B"},
	{decimal.New(1, 6), "M"},
	{decimal.New(1, 3), "K"},
}

// LargeNumber abbreviates v with a T/B/M/K suffix and two decimals.
func LargeNumber(v float64) string {
	d := decimal.NewFromFloat(v)
	sign := ""
	if d.IsNegative() {
		sign = "-"
		d = d.Abs()
	}
	for _, u := range units {
		if d.GreaterThanOrEqual(u.limit) {
			return sign + d.Div(u.limit).Round(2).StringFixed(2) + u.suffix
		}
	}
	return sign + d.Round(2).StringFixed(2)
}

// CompactCurrency is LargeNumber with a dollar sign, e.g. $2.10T.
func CompactCurrency(v float64) string {
	s := LargeNumber(v)
	if strings.HasPrefix(s, "-") {
		return "-$" + s[1:]
	}
	return "$" + s
}

// Billions renders v as $X.YB with one decimal, as used by volume summaries.
func Billions(v float64) string {
	return "$" + decimal.NewFromFloat(v).Div(decimal.New(1, 9)).Round(1).StringFixed(1) + "B"
}

func group(fixed string) string {
	intPart, frac, _ := strings.Cut(fixed, ".")
	if len(intPart) <= 3 {
		return fixed
	}
	var b strings.Builder
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
	}
	for i := lead; i < len(intPart); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(intPart[i : i+3])
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}
