package core

import (
	"math"
	"strconv"
	"strings"
)

// PercentDecimals is the number of decimals FormatPercent renders.
const PercentDecimals = 1

var magnitudeSuffixes = []string{"", "K", "M", "B", "T"}

// HumanFormat renders v with three significant figures and a magnitude
// suffix: 999 -> "999", 1000 -> "1K", 1234567 -> "1.23M".
func HumanFormat(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return ""
	}
	v, _ = strconv.ParseFloat(strconv.FormatFloat(v, 'g', 3, 64), 64)

	magnitude := 0
	for math.Abs(v) >= 1000 && magnitude < len(magnitudeSuffixes)-1 {
		magnitude++
		v /= 1000
	}

	s := strconv.FormatFloat(v, 'f', 6, 64)
	s = strings.TrimRight(s, "0")
	s = strings.TrimRight(s, ".")
	if s == "-0" {
		s = "0"
	}
	return s + magnitudeSuffixes[magnitude]
}

// FormatPercent renders a fraction as a percentage, "" when undefined.
func FormatPercent(v NullFloat) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float64*100, 'f', PercentDecimals, 64) + "%"
}

// FormatCurrencyPMPM renders a PMPM amount as "$" plus HumanFormat, "" when undefined.
func FormatCurrencyPMPM(v NullFloat) string {
	if !v.Valid {
		return ""
	}
	return "$" + HumanFormat(v.Float64)
}
