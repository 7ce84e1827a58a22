package model

import (
	"strings"
	"time"
)

// ProcurementMethod is the normalized tender procurement method.
type ProcurementMethod string

const (
	MethodOpen   ProcurementMethod = "open"
	MethodDirect ProcurementMethod = "direct"
	MethodOther  ProcurementMethod = "other" // limited, selective, unknown, empty
)

// ParseMethod normalizes a raw procurement method string. Only an exact
// case-insensitive "direct" maps to MethodDirect; everything unrecognized,
// including empty input, maps to MethodOther.
func ParseMethod(raw string) ProcurementMethod {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "direct":
		return MethodDirect
	case "open":
		return MethodOpen
	default:
		return MethodOther
	}
}

// Label returns the display label used in dossier breakdowns.
func (m ProcurementMethod) Label() string {
	switch m {
	case MethodDirect:
		return "Direct"
	case MethodOpen:
		return "Open"
	default:
		return "Other"
	}
}

// Contract is one awarded (tender, award) pair after parsing.
type Contract struct {
	ContractKey       string            `json:"contract_key"`
	Method            ProcurementMethod `json:"method"`
	RawMethod         string            `json:"raw_method,omitempty"`
	AwardAmount       float64           `json:"award_amount"`
	DateSigned        *time.Time        `json:"date_signed,omitempty"`
	PeriodStart       *time.Time        `json:"period_start,omitempty"`
	MissingFieldCount int               `json:"missing_field_count"`
}

// SupplierReference is the contract → supplier edge as loaded from the
// supplier table. Name and ID are raw; resolution happens in package resolve.
type SupplierReference struct {
	ContractKey string `json:"contract_key"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
}

// IdentityKind tags which identity scheme produced a SupplierIdentity.
type IdentityKind string

const (
	NameIdentity        IdentityKind = "name"
	FingerprintIdentity IdentityKind = "fingerprint"
)

// SupplierIdentity is a resolved supplier. Key is the grouping key for
// award counts; DisplayName is presentation-only.
type SupplierIdentity struct {
	Kind        IdentityKind `json:"kind"`
	Key         string       `json:"key"`
	DisplayName string       `json:"display_name,omitempty"`
}

// LinkedRecord is one contract-level row produced by the linkage engine,
// before any parsing. Timing and supplier fields may be empty when the left
// joins found no match.
type LinkedRecord struct {
	ContractKey    string             `json:"contract_key"`
	RawMethod      string             `json:"raw_method"`
	RawAmount      string             `json:"raw_amount"`
	RawDateSigned  string             `json:"raw_date_signed,omitempty"`
	RawPeriodStart string             `json:"raw_period_start,omitempty"`
	Supplier       *SupplierReference `json:"supplier,omitempty"`
	MissingFields  int                `json:"missing_fields"`
}

// PartyDirectoryEntry maps a supplier fingerprint to its official name.
// Used for presentation only, never for features.
type PartyDirectoryEntry struct {
	ID           string `json:"id"`
	OfficialName string `json:"official_name"`
}
