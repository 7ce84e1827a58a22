package resolve

import (
	"github.com/rotisserie/eris"

	"github.com/niruguard/niruguard/internal/model"
)

// ErrMixedIdentitySchemes is returned when identities from two schemes meet
// in one CountIndex.
var ErrMixedIdentitySchemes = eris.New("resolve: mixed supplier identity schemes")

// DefaultAwardCount is assigned to contracts whose supplier could not be
// resolved: they are treated as brand-new suppliers.
const DefaultAwardCount = 1

// CountIndex counts contracts per supplier identity over a whole
// population. It is bound to one identity kind.
type CountIndex struct {
	kind   model.IdentityKind
	counts map[string]int
}

// NewCountIndex creates an empty index for kind.
func NewCountIndex(kind model.IdentityKind) *CountIndex {
	return &CountIndex{kind: kind, counts: make(map[string]int)}
}

// Kind returns the identity kind the index accepts.
func (c *CountIndex) Kind() model.IdentityKind {
	return c.kind
}

func (c *CountIndex) check(id model.SupplierIdentity) error {
	if id.Kind != c.kind {
		return eris.Wrapf(ErrMixedIdentitySchemes, "index holds %s identities, got %s", c.kind, id.Kind)
	}
	return nil
}

// Add counts one contract for id.
func (c *CountIndex) Add(id model.SupplierIdentity) error {
	if err := c.check(id); err != nil {
		return err
	}
	c.counts[id.Key]++
	return nil
}

// Count returns the number of contracts attributed to id. An identity never
// added counts as DefaultAwardCount.
func (c *CountIndex) Count(id model.SupplierIdentity) (int, error) {
	if err := c.check(id); err != nil {
		return 0, err
	}
	if n, ok := c.counts[id.Key]; ok {
		return n, nil
	}
	return DefaultAwardCount, nil
}

// Len returns the number of distinct identities.
func (c *CountIndex) Len() int {
	return len(c.counts)
}

// Build resolves every reference and counts the resolved identities. nil
// references and references the resolver rejects are skipped; the number
// skipped is returned.
func Build(r Resolver, refs []*model.SupplierReference) (*CountIndex, int, error) {
	idx := NewCountIndex(r.Kind())
	unresolved := 0
	for _, ref := range refs {
		if ref == nil {
			unresolved++
			continue
		}
		id, ok := r.Resolve(*ref)
		if !ok {
			unresolved++
			continue
		}
		if err := idx.Add(id); err != nil {
			return nil, unresolved, err
		}
	}
	return idx, unresolved, nil
}
