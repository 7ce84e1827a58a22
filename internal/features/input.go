package features

import (
	"github.com/niruguard/niruguard/internal/ingest"
	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/resolve"
)

// Input is a single contract entered by an analyst rather than loaded from
// the raw tables.
type Input struct {
	Amount             float64 `json:"amount"`
	Method             string  `json:"method"`
	SupplierAwardCount int     `json:"supplier_award_count"`
	SuspiciousTiming   bool    `json:"suspicious_timing"`
	MissingDataCount   int     `json:"missing_data_count"`
}

// FromInput applies the same indicator rules as Derive to one analyst
// input. The award count is taken as given; values below 1 mean unknown and
// fall back to the new-supplier default.
func FromInput(in Input, v model.Version) model.FeatureRecord {
	amount, _ := ingest.NormalizeAmount(in.Amount)
	direct := IsDirect(in.Method)

	f := model.FeatureRecord{
		Amount:              amount,
		IsDirectProcurement: model.BoolInt(direct),
		IsRoundAmount:       model.BoolInt(IsRoundAmount(amount)),
	}
	if !v.HasTiming() {
		f.MissingDataCount = max(in.MissingDataCount, 0)
		return f
	}

	count := in.SupplierAwardCount
	if count < 1 {
		count = resolve.DefaultAwardCount
	}
	f.SuspiciousTiming = model.BoolInt(in.SuspiciousTiming)
	f.SupplierAwardCount = count
	f.NewSupplierDirectDeal = model.BoolInt(NewSupplierDirectDeal(count, direct))
	return f
}
