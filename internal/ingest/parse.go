package ingest

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// ParseOutcome reports how a raw cell was interpreted.
type ParseOutcome int

const (
	Parsed   ParseOutcome = iota // value read as-is
	Missing                      // null or empty cell
	Degraded                     // present but unparseable; safe default used
)

func (o ParseOutcome) String() string {
	switch o {
	case Parsed:
		return "parsed"
	case Missing:
		return "missing"
	case Degraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// nullTokens are cell values treated as null, matching common CSV export
// conventions.
var nullTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
	"nat":  true,
}

// IsNull reports whether a raw cell is empty or one of the usual null
// markers ("NaN", "NULL", "N/A", ...).
func IsNull(s string) bool {
	return nullTokens[strings.ToLower(strings.TrimSpace(s))]
}

// Currency markers stripped from an upper-cased amount string. A marker may
// carry an abbreviation dot ("Ksh. 1,000"), which is stripped with it.
// "/=" only ever closes an amount.
var (
	currencyPrefix = regexp.MustCompile(`^(KSHS|KSH|KES)\.?`)
	currencySuffix = regexp.MustCompile(`(KSHS|KSH|KES)\.?$`)
)

// NormalizeAmount converts any scalar into a non-negative amount. It never
// fails: nil yields 0 (Missing), numbers pass through, strings go through
// ParseAmount. Negative, NaN and infinite values yield 0 (Degraded).
func NormalizeAmount(v any) (float64, ParseOutcome) {
	switch x := v.(type) {
	case nil:
		return 0, Missing
	case string:
		return ParseAmount(x)
	case *string:
		if x == nil {
			return 0, Missing
		}
		return ParseAmount(*x)
	case float64:
		return checkAmount(x)
	case float32:
		return checkAmount(float64(x))
	case int:
		return checkAmount(float64(x))
	case int8:
		return checkAmount(float64(x))
	case int16:
		return checkAmount(float64(x))
	case int32:
		return checkAmount(float64(x))
	case int64:
		return checkAmount(float64(x))
	case uint:
		return float64(x), Parsed
	case uint8:
		return float64(x), Parsed
	case uint16:
		return float64(x), Parsed
	case uint32:
		return float64(x), Parsed
	case uint64:
		return float64(x), Parsed
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return 0, Degraded
		}
		return checkAmount(f)
	default:
		return 0, Degraded
	}
}

// ParseAmount parses a currency-formatted string such as "KES 1,000,000",
// "Ksh. 250 000/=" or "1000000.0". Currency markers are matched
// case-insensitively at either end; thousands separators and all whitespace
// (including non-breaking spaces) are dropped.
func ParseAmount(s string) (float64, ParseOutcome) {
	if IsNull(s) {
		return 0, Missing
	}

	clean := strings.ToUpper(strings.TrimFunc(s, unicode.IsSpace))
	clean = currencyPrefix.ReplaceAllString(clean, "")
	clean = strings.TrimRightFunc(strings.TrimSuffix(clean, "/="), unicode.IsSpace)
	clean = currencySuffix.ReplaceAllString(clean, "")
	clean = strings.Map(func(r rune) rune {
		if r == ',' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, clean)

	if clean == "" {
		return 0, Degraded
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		return 0, Degraded
	}
	return checkAmount(f)
}

func checkAmount(f float64) (float64, ParseOutcome) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return 0, Degraded
	}
	return f, Parsed
}

// dateLayouts are tried in order. All are ISO-style; day/month ambiguous
// formats are deliberately absent.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
}

// ParseDate parses an ISO date or timestamp. Layouts without a zone are read
// as UTC.
func ParseDate(raw string) (*time.Time, ParseOutcome) {
	if IsNull(raw) {
		return nil, Missing
	}
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, Parsed
		}
	}
	return nil, Degraded
}
