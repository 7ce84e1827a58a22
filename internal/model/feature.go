package model

// FeatureRecord is the per-contract output of one pipeline run. Indicators
// are stored as 0/1 ints to match the persisted table and model input.
type FeatureRecord struct {
	ContractKey string `json:"contract_key"`

	Amount              float64 `json:"amount"`
	IsDirectProcurement int     `json:"is_direct_procurement"`
	IsRoundAmount       int     `json:"is_round_amount"`

	// v1 only.
	MissingDataCount int `json:"missing_data_count"`

	// v2/v3 only.
	SuspiciousTiming      int `json:"suspicious_timing"`
	SupplierAwardCount    int `json:"supplier_award_count"`
	NewSupplierDirectDeal int `json:"new_supplier_direct_deal"`

	RiskScore float64 `json:"risk_score"`
	RiskLabel int     `json:"risk_label"`

	// v3 only.
	SupplierID   string `json:"supplier_id,omitempty"`
	SupplierName string `json:"supplier_name,omitempty"`
}

// FeatureVector returns the model inputs for the version keyed by their
// FinalFeatures column names.
func (r FeatureRecord) FeatureVector(v Version) map[string]float64 {
	all := map[string]float64{
		ColAmount:                r.Amount,
		ColIsDirectProcurement:   float64(r.IsDirectProcurement),
		ColIsRoundAmount:         float64(r.IsRoundAmount),
		ColMissingDataCount:      float64(r.MissingDataCount),
		ColSuspiciousTiming:      float64(r.SuspiciousTiming),
		ColSupplierAwardCount:    float64(r.SupplierAwardCount),
		ColNewSupplierDirectDeal: float64(r.NewSupplierDirectDeal),
	}
	out := make(map[string]float64, len(all))
	for _, col := range FinalFeatures(v) {
		out[col] = all[col]
	}
	return out
}

// HighRisk reports whether the synthetic label flagged the contract.
func (r FeatureRecord) HighRisk() bool {
	return r.RiskLabel == 1
}

// BoolInt converts a flag into the 0/1 encoding used by feature tables.
func BoolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
