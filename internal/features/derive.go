// Package features derives the per-contract red-flag indicators from linked
// procurement records.
package features

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/niruguard/niruguard/internal/ingest"
	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/resolve"
)

// Report summarizes one Derive call.
type Report struct {
	Version             model.Version  `json:"version" yaml:"version"`
	Contracts           int            `json:"contracts" yaml:"contracts"`
	DistinctSuppliers   int            `json:"distinct_suppliers" yaml:"distinct_suppliers"`
	UnresolvedSuppliers int            `json:"unresolved_suppliers" yaml:"unresolved_suppliers"`
	Degraded            map[string]int `json:"degraded" yaml:"degraded"`
}

// Derive computes the feature rows for v, one per linked record and in the
// same order. It runs in two phases: the first parses every record and
// counts contracts per supplier over the whole population, the second
// annotates each row from those counts. deg may be nil.
//
// Risk score and label are left zero; see package scorer.
func Derive(records []model.LinkedRecord, v model.Version, r resolve.Resolver, deg *ingest.Degradation) ([]model.FeatureRecord, Report, error) {
	if model.FinalFeatures(v) == nil {
		return nil, Report{}, eris.Errorf("features: unknown version %d", int(v))
	}
	if r == nil {
		return nil, Report{}, eris.New("features: resolver is required")
	}
	if want := resolve.ForVersion(v).Kind(); r.Kind() != want {
		return nil, Report{}, eris.Wrapf(resolve.ErrMixedIdentitySchemes,
			"features: version %s uses %s identities, resolver is %s", v, want, r.Kind())
	}

	log := zap.L().With(zap.String("component", "features"), zap.String("version", v.String()))

	// Phase 1: parse every record, then count contracts per supplier over
	// the whole population.
	contracts := make([]model.Contract, len(records))
	report := Report{Version: v, Contracts: len(records)}

	for i, rec := range records {
		c := &contracts[i]
		c.ContractKey = rec.ContractKey
		c.RawMethod = rec.RawMethod
		c.Method = model.ParseMethod(rec.RawMethod)
		c.MissingFieldCount = rec.MissingFields

		amount, outcome := ingest.ParseAmount(rec.RawAmount)
		deg.Observe(outcome, ingest.ColValueAmount, rec.ContractKey, rec.RawAmount)
		c.AwardAmount = amount

		if !v.HasTiming() {
			continue
		}

		var so, po ingest.ParseOutcome
		c.DateSigned, so = ingest.ParseDate(rec.RawDateSigned)
		deg.Observe(so, ingest.ColDateSigned, rec.ContractKey, rec.RawDateSigned)
		c.PeriodStart, po = ingest.ParseDate(rec.RawPeriodStart)
		deg.Observe(po, ingest.ColPeriodStart, rec.ContractKey, rec.RawPeriodStart)
	}

	var idx *resolve.CountIndex
	if v.HasTiming() {
		refs := make([]*model.SupplierReference, len(records))
		for i, rec := range records {
			refs[i] = rec.Supplier
		}
		var err error
		idx, report.UnresolvedSuppliers, err = resolve.Build(r, refs)
		if err != nil {
			return nil, Report{}, eris.Wrap(err, "features: count suppliers")
		}
		report.DistinctSuppliers = idx.Len()
	}

	// Phase 2: annotate.
	out := make([]model.FeatureRecord, len(records))
	for i, rec := range records {
		c := contracts[i]
		direct := c.Method == model.MethodDirect
		f := model.FeatureRecord{
			ContractKey:         c.ContractKey,
			Amount:              c.AwardAmount,
			IsDirectProcurement: model.BoolInt(direct),
			IsRoundAmount:       model.BoolInt(IsRoundAmount(c.AwardAmount)),
		}

		if !v.HasTiming() {
			f.MissingDataCount = c.MissingFieldCount
			out[i] = f
			continue
		}

		var (
			identity model.SupplierIdentity
			resolved bool
		)
		if rec.Supplier != nil {
			identity, resolved = r.Resolve(*rec.Supplier)
		}

		count := resolve.DefaultAwardCount
		if resolved {
			n, err := idx.Count(identity)
			if err != nil {
				return nil, Report{}, eris.Wrapf(err, "features: contract %s", rec.ContractKey)
			}
			count = n
		}
		f.SuspiciousTiming = model.BoolInt(SuspiciousTiming(c.DateSigned, c.PeriodStart))
		f.SupplierAwardCount = count
		f.NewSupplierDirectDeal = model.BoolInt(NewSupplierDirectDeal(count, direct))

		if v == model.V3 && rec.Supplier != nil {
			if resolved {
				f.SupplierID = identity.Key
			}
			if name := strings.TrimSpace(rec.Supplier.Name); !ingest.IsNull(name) {
				f.SupplierName = name
			}
		}
		out[i] = f
	}

	report.Degraded = deg.Counts()
	log.Info("features: derived",
		zap.Int("contracts", report.Contracts),
		zap.Int("distinct_suppliers", report.DistinctSuppliers),
		zap.Int("unresolved_suppliers", report.UnresolvedSuppliers),
	)
	return out, report, nil
}
