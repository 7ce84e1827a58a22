package resolve

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niruguard/niruguard/internal/model"
)

func TestForVersion(t *testing.T) {
	assert.Equal(t, model.NameIdentity, ForVersion(model.V1).Kind())
	assert.Equal(t, model.NameIdentity, ForVersion(model.V2).Kind())
	assert.Equal(t, model.FingerprintIdentity, ForVersion(model.V3).Kind())
}

func TestResolverColumns(t *testing.T) {
	assert.Equal(t, []string{"name"}, NameResolver{}.Columns())
	assert.Equal(t, []string{"id", "name"}, FingerprintResolver{}.Columns())
}

func TestNormalizeName(t *testing.T) {
	assert.Equal(t, "ACME SUPPLIES LTD", NormalizeName("  Acme Supplies Ltd "))
	assert.Equal(t, "ÉLAN TRADERS", NormalizeName("élan traders"))
	// Near-duplicates are not merged.
	assert.NotEqual(t, NormalizeName("Acme Ltd"), NormalizeName("Acme Limited"))
}

func TestNameResolver(t *testing.T) {
	r := NameResolver{}

	a, ok := r.Resolve(model.SupplierReference{Name: " acme ltd"})
	require.True(t, ok)
	b, ok := r.Resolve(model.SupplierReference{Name: "ACME LTD ", ID: "S9"})
	require.True(t, ok)
	assert.Equal(t, a, b)
	assert.Equal(t, model.NameIdentity, a.Kind)
	assert.Equal(t, "ACME LTD", a.Key)

	_, ok = r.Resolve(model.SupplierReference{ID: "S1"})
	assert.False(t, ok)
	_, ok = r.Resolve(model.SupplierReference{Name: "NaN"})
	assert.False(t, ok)
}

func TestFingerprintResolver(t *testing.T) {
	r := FingerprintResolver{}

	a, ok := r.Resolve(model.SupplierReference{ID: " KE-PPRA-S1 ", Name: "Acme Ltd"})
	require.True(t, ok)
	assert.Equal(t, model.SupplierIdentity{Kind: model.FingerprintIdentity, Key: "KE-PPRA-S1", DisplayName: "Acme Ltd"}, a)

	// Display name never participates in the key.
	b, ok := r.Resolve(model.SupplierReference{ID: "KE-PPRA-S1", Name: "ACME LIMITED"})
	require.True(t, ok)
	assert.Equal(t, a.Key, b.Key)

	_, ok = r.Resolve(model.SupplierReference{Name: "Acme Ltd"})
	assert.False(t, ok)
}

func TestCountIndex(t *testing.T) {
	idx := NewCountIndex(model.FingerprintIdentity)
	s1 := model.SupplierIdentity{Kind: model.FingerprintIdentity, Key: "S1"}
	s2 := model.SupplierIdentity{Kind: model.FingerprintIdentity, Key: "S2"}

	require.NoError(t, idx.Add(s1))
	require.NoError(t, idx.Add(s1))
	require.NoError(t, idx.Add(s2))

	n, err := idx.Count(s1)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = idx.Count(model.SupplierIdentity{Kind: model.FingerprintIdentity, Key: "unseen"})
	require.NoError(t, err)
	assert.Equal(t, DefaultAwardCount, n)
	assert.Equal(t, 2, idx.Len())
}

func TestCountIndex_RejectsMixedSchemes(t *testing.T) {
	idx := NewCountIndex(model.FingerprintIdentity)
	name := model.SupplierIdentity{Kind: model.NameIdentity, Key: "ACME"}

	err := idx.Add(name)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMixedIdentitySchemes))

	_, err = idx.Count(name)
	assert.True(t, errors.Is(err, ErrMixedIdentitySchemes))
}

func TestBuild_EveryContractOfOneSupplierCountsN(t *testing.T) {
	const n = 7
	refs := make([]*model.SupplierReference, 0, n+2)
	for range n {
		refs = append(refs, &model.SupplierReference{ID: "S1", Name: "Acme"})
	}
	refs = append(refs, nil, &model.SupplierReference{Name: "No Id"})

	idx, unresolved, err := Build(FingerprintResolver{}, refs)
	require.NoError(t, err)
	assert.Equal(t, 2, unresolved)

	for _, ref := range refs[:n] {
		id, ok := FingerprintResolver{}.Resolve(*ref)
		require.True(t, ok)
		got, err := idx.Count(id)
		require.NoError(t, err)
		assert.Equal(t, n, got)
	}
}
