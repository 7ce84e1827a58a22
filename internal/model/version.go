package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Version identifies a pipeline generation. Each version pins its own
// output columns, supplier identity scheme and scoring policy.
type Version int

const (
	V1 Version = iota + 1 // amount, method, round amount, completeness
	V2                    // + timing and name-keyed supplier history
	V3                    // + fingerprint-keyed supplier history
)

// Versions lists every known version in ascending order.
func Versions() []Version {
	return []Version{V1, V2, V3}
}

// String returns the short version tag ("v1", "v2", "v3").
func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2:
		return "v2"
	case V3:
		return "v3"
	default:
		return "unknown"
	}
}

// ParseVersion converts "v1", "2", "V3" etc. into a Version.
func ParseVersion(s string) (Version, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "v1", "1":
		return V1, nil
	case "v2", "2":
		return V2, nil
	case "v3", "3":
		return V3, nil
	default:
		return 0, eris.Errorf("unknown version: %q (valid: v1, v2, v3)", s)
	}
}

// MarshalText implements encoding.TextMarshaler so versions serialize as tags.
func (v Version) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Version) UnmarshalText(b []byte) error {
	parsed, err := ParseVersion(string(b))
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// HasTiming reports whether the version derives suspicious_timing and the
// supplier history features.
func (v Version) HasTiming() bool {
	return v == V2 || v == V3
}

// Output column names, shared by every persisted feature table.
const (
	ColAmount                = "amount"
	ColIsDirectProcurement   = "is_direct_procurement"
	ColIsRoundAmount         = "is_round_amount"
	ColMissingDataCount      = "missing_data_count"
	ColSuspiciousTiming      = "suspicious_timing"
	ColSupplierAwardCount    = "supplier_award_count"
	ColNewSupplierDirectDeal = "new_supplier_direct_deal"
	ColRiskScore             = "risk_score"
	ColRiskLabel             = "risk_label"
	ColSupplierID            = "supplier_id"
	ColSupplierName          = "supplier_name"
)

// FinalFeatures returns the ordered model input columns for a version.
// A trained classifier for the version must declare exactly this list.
func FinalFeatures(v Version) []string {
	switch v {
	case V1:
		return []string{ColAmount, ColIsDirectProcurement, ColIsRoundAmount, ColMissingDataCount}
	case V2, V3:
		return []string{
			ColAmount,
			ColIsDirectProcurement,
			ColIsRoundAmount,
			ColSuspiciousTiming,
			ColSupplierAwardCount,
			ColNewSupplierDirectDeal,
		}
	default:
		return nil
	}
}

// OutputColumns returns the persisted feature table columns for a version.
func OutputColumns(v Version) []string {
	cols := FinalFeatures(v)
	if cols == nil {
		return nil
	}
	cols = append(cols, ColRiskScore, ColRiskLabel)
	if v == V3 {
		cols = append(cols, ColSupplierID, ColSupplierName)
	}
	return cols
}
