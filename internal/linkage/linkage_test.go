package linkage

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niruguard/niruguard/internal/ingest"
	"github.com/niruguard/niruguard/internal/model"
)

func table(name, key string, cols []string, rows ...[]string) *ingest.Table {
	t := &ingest.Table{Source: name, Columns: cols, Key: key}
	for _, r := range rows {
		row := ingest.Row{}
		for i, c := range cols {
			row[c] = r[i]
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

func tenders(rows ...[]string) *ingest.Table {
	return table("tenders", ingest.ColTenderLink, []string{ingest.ColTenderLink, ingest.ColProcurementMethod}, rows...)
}

func awards(rows ...[]string) *ingest.Table {
	return table("awards", ingest.ColParentLink, []string{ingest.ColParentLink, ingest.ColValueAmount}, rows...)
}

func timing(rows ...[]string) *ingest.Table {
	return table("contracts", ingest.ColParentLink,
		[]string{ingest.ColParentLink, ingest.ColDateSigned, ingest.ColPeriodStart}, rows...)
}

func suppliers(rows ...[]string) *ingest.Table {
	return table("suppliers", ingest.ColParentLink,
		[]string{ingest.ColParentLink, ingest.ColSupplierID, ingest.ColSupplierName}, rows...)
}

func TestLink_InnerJoinExcludesUnawarded(t *testing.T) {
	in := Inputs{
		Tenders: tenders(
			[]string{"ocds-1", "direct"},
			[]string{"ocds-2", "open"},
			[]string{"ocds-3", "limited"},
		),
		Awards: awards(
			[]string{"ocds-3", "500"},
			[]string{"ocds-1", "KES 1,000,000"},
			[]string{"ocds-9", "42"},
		),
	}

	got, stats, err := Link(in)
	require.NoError(t, err)

	want := []model.LinkedRecord{
		{ContractKey: "ocds-1", RawMethod: "direct", RawAmount: "KES 1,000,000"},
		{ContractKey: "ocds-3", RawMethod: "limited", RawAmount: "500"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Link() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Stats{Tenders: 3, Awards: 3, Linked: 2, DroppedNoAward: 1}, stats)
}

func TestLink_LeftJoinsNullFill(t *testing.T) {
	in := Inputs{
		Tenders:   tenders([]string{"ocds-1", "direct"}, []string{"ocds-2", "open"}),
		Awards:    awards([]string{"ocds-1", "1000"}, []string{"ocds-2", "2000"}),
		Timing:    timing([]string{"ocds-1", "2021-02-01", "2021-01-15"}),
		Suppliers: suppliers([]string{"ocds-2", "S2", "Beta Ltd"}),
	}

	got, stats, err := Link(in)
	require.NoError(t, err)

	want := []model.LinkedRecord{
		{
			ContractKey:    "ocds-1",
			RawMethod:      "direct",
			RawAmount:      "1000",
			RawDateSigned:  "2021-02-01",
			RawPeriodStart: "2021-01-15",
			// id and name null-filled by the supplier left join.
			MissingFields: 2,
		},
		{
			ContractKey: "ocds-2",
			RawMethod:   "open",
			RawAmount:   "2000",
			Supplier:    &model.SupplierReference{ContractKey: "ocds-2", ID: "S2", Name: "Beta Ltd"},
			// both dates null-filled by the timing left join.
			MissingFields: 2,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Link() mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, stats.WithTiming)
	assert.Equal(t, 1, stats.WithSupplier)
}

func TestLink_MissingFieldsCountsEmptyCells(t *testing.T) {
	in := Inputs{
		Tenders: tenders([]string{"ocds-1", ""}),
		Awards:  awards([]string{"ocds-1", "NaN"}),
	}
	got, _, err := Link(in)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].MissingFields)
}

func TestLink_OutputCardinalityMatchesInnerJoin(t *testing.T) {
	var tRows, aRows [][]string
	for _, k := range []string{"a", "b", "c", "d", "e"} {
		tRows = append(tRows, []string{k, "open"})
	}
	for _, k := range []string{"b", "d", "z"} {
		aRows = append(aRows, []string{k, "1"})
	}
	got, stats, err := Link(Inputs{Tenders: tenders(tRows...), Awards: awards(aRows...)})
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 3, stats.DroppedNoAward)
}

func TestLink_RequiresTables(t *testing.T) {
	_, _, err := Link(Inputs{Awards: awards()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tenders table is required")

	_, _, err = Link(Inputs{Tenders: tenders()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "awards table is required")
}

func TestLink_RequiresDeduplicatedRightTables(t *testing.T) {
	unkeyed := awards([]string{"ocds-1", "1"})
	unkeyed.Key = ""

	_, _, err := Link(Inputs{Tenders: tenders([]string{"ocds-1", "open"}), Awards: unkeyed})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be deduplicated")
}
