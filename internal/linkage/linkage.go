// Package linkage joins the loaded procurement tables into one record per
// awarded contract.
package linkage

import (
	"github.com/rotisserie/eris"

	"github.com/niruguard/niruguard/internal/ingest"
	"github.com/niruguard/niruguard/internal/model"
)

// Inputs are the tables to join. Tenders and Awards are required; Timing
// and Suppliers are optional and left-joined when present.
type Inputs struct {
	Tenders   *ingest.Table
	Awards    *ingest.Table
	Timing    *ingest.Table
	Suppliers *ingest.Table
}

// Stats summarizes one Link call.
type Stats struct {
	Tenders        int `json:"tenders" yaml:"tenders"`
	Awards         int `json:"awards" yaml:"awards"`
	Linked         int `json:"linked" yaml:"linked"`
	DroppedNoAward int `json:"dropped_no_award" yaml:"dropped_no_award"`
	WithTiming     int `json:"with_timing" yaml:"with_timing"`
	WithSupplier   int `json:"with_supplier" yaml:"with_supplier"`
}

// Link inner-joins tenders to awards on tender _link = award _link_main,
// then left-joins timing and supplier rows on _link_main. Output follows
// tender file order. Because every right-hand table is keyed by one row per
// link, the output has exactly one record per awarded tender.
func Link(in Inputs) ([]model.LinkedRecord, Stats, error) {
	if err := checkKeyed(in.Tenders, "tenders", ingest.ColTenderLink, true); err != nil {
		return nil, Stats{}, err
	}
	if err := checkKeyed(in.Awards, "awards", ingest.ColParentLink, true); err != nil {
		return nil, Stats{}, err
	}
	if err := checkKeyed(in.Timing, "timing", ingest.ColParentLink, false); err != nil {
		return nil, Stats{}, err
	}
	if err := checkKeyed(in.Suppliers, "suppliers", ingest.ColParentLink, false); err != nil {
		return nil, Stats{}, err
	}

	awards := in.Awards.Index()
	timing := in.Timing.Index()
	suppliers := in.Suppliers.Index()

	stats := Stats{Tenders: in.Tenders.Len(), Awards: in.Awards.Len()}
	out := make([]model.LinkedRecord, 0, min(stats.Tenders, stats.Awards))

	for _, tender := range in.Tenders.Rows {
		key := tender.Get(ingest.ColTenderLink)
		award, ok := awards[key]
		if !ok {
			stats.DroppedNoAward++
			continue
		}

		rec := model.LinkedRecord{
			ContractKey: key,
			RawMethod:   tender.Get(ingest.ColProcurementMethod),
			RawAmount:   award.Get(ingest.ColValueAmount),
		}
		missing := countNull(tender, in.Tenders.Columns) + countNull(award, in.Awards.Columns)

		if in.Timing != nil {
			row, ok := timing[key]
			if ok {
				stats.WithTiming++
				rec.RawDateSigned = row.Get(ingest.ColDateSigned)
				rec.RawPeriodStart = row.Get(ingest.ColPeriodStart)
			}
			missing += countNull(row, rightColumns(in.Timing))
		}

		if in.Suppliers != nil {
			row, ok := suppliers[key]
			if ok {
				stats.WithSupplier++
				rec.Supplier = &model.SupplierReference{
					ContractKey: key,
					Name:        row.Get(ingest.ColSupplierName),
					ID:          row.Get(ingest.ColSupplierID),
				}
			}
			missing += countNull(row, rightColumns(in.Suppliers))
		}

		rec.MissingFields = missing
		out = append(out, rec)
	}

	stats.Linked = len(out)
	return out, stats, nil
}

func checkKeyed(t *ingest.Table, name, key string, required bool) error {
	if t == nil {
		if required {
			return eris.Errorf("linkage: %s table is required", name)
		}
		return nil
	}
	if t.Key != key {
		return eris.Errorf("linkage: %s table must be deduplicated on %q, got %q", name, key, t.Key)
	}
	return nil
}

// rightColumns are the columns a left join contributes: the shared link key
// is not repeated.
func rightColumns(t *ingest.Table) []string {
	cols := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		if c != ingest.ColParentLink {
			cols = append(cols, c)
		}
	}
	return cols
}

// countNull counts null cells of row over cols. A nil row (no join match)
// counts every column.
func countNull(row ingest.Row, cols []string) int {
	n := 0
	for _, c := range cols {
		if ingest.IsNull(row[c]) {
			n++
		}
	}
	return n
}
