// Package resolve maps supplier references to supplier identities and counts
// awards per identity.
package resolve

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/niruguard/niruguard/internal/ingest"
	"github.com/niruguard/niruguard/internal/model"
)

// Resolver turns a raw supplier reference into an identity. Each
// implementation is one identity scheme; a run uses exactly one.
type Resolver interface {
	// Kind names the identity scheme.
	Kind() model.IdentityKind
	// Columns lists the supplier-table columns the scheme reads.
	Columns() []string
	// Resolve returns the identity for ref. ok is false when ref carries no
	// usable key for this scheme.
	Resolve(ref model.SupplierReference) (id model.SupplierIdentity, ok bool)
}

// ForVersion returns the resolver a pipeline version uses: names for v1 and
// v2, fingerprints for v3.
func ForVersion(v model.Version) Resolver {
	if v == model.V3 {
		return FingerprintResolver{}
	}
	return NameResolver{}
}

var upper = cases.Upper(language.Und)

// NormalizeName trims and upper-cases a supplier name. Nothing else is
// folded: "ACME LTD" and "ACME LIMITED" stay distinct.
func NormalizeName(name string) string {
	return upper.String(strings.TrimSpace(name))
}

// NameResolver keys suppliers by normalized free-text name.
type NameResolver struct{}

func (NameResolver) Kind() model.IdentityKind { return model.NameIdentity }

func (NameResolver) Columns() []string { return []string{ingest.ColSupplierName} }

func (NameResolver) Resolve(ref model.SupplierReference) (model.SupplierIdentity, bool) {
	if ingest.IsNull(ref.Name) {
		return model.SupplierIdentity{}, false
	}
	key := NormalizeName(ref.Name)
	return model.SupplierIdentity{
		Kind:        model.NameIdentity,
		Key:         key,
		DisplayName: key,
	}, true
}

// FingerprintResolver keys suppliers by their stable external id. The name
// rides along for display only.
type FingerprintResolver struct{}

func (FingerprintResolver) Kind() model.IdentityKind { return model.FingerprintIdentity }

func (FingerprintResolver) Columns() []string {
	return []string{ingest.ColSupplierID, ingest.ColSupplierName}
}

func (FingerprintResolver) Resolve(ref model.SupplierReference) (model.SupplierIdentity, bool) {
	if ingest.IsNull(ref.ID) {
		return model.SupplierIdentity{}, false
	}
	display := strings.TrimSpace(ref.Name)
	if ingest.IsNull(display) {
		display = ""
	}
	return model.SupplierIdentity{
		Kind:        model.FingerprintIdentity,
		Key:         strings.TrimSpace(ref.ID),
		DisplayName: display,
	}, true
}
