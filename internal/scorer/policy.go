// Package scorer turns red-flag indicators into the synthetic risk score and
// label used as a training target. The weights are a hand-tuned heuristic,
// not a measure of actual wrongdoing.
package scorer

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/niruguard/niruguard/internal/model"
)

// Weights holds the points each indicator contributes when set. A zero
// weight means the version does not use the indicator.
type Weights struct {
	Direct            float64 `json:"direct" yaml:"direct"`
	Round             float64 `json:"round" yaml:"round"`
	MissingAny        float64 `json:"missing_any" yaml:"missing_any"`
	Timing            float64 `json:"timing" yaml:"timing"`
	NewSupplierDirect float64 `json:"new_supplier_direct" yaml:"new_supplier_direct"`
}

// Policy is the scoring rule of one pipeline version. Policies are values;
// changing a weight means defining a new version, never editing one.
type Policy struct {
	Version   model.Version `json:"version" yaml:"version"`
	Weights   Weights       `json:"weights" yaml:"weights"`
	Threshold float64       `json:"threshold" yaml:"threshold"`
}

var policies = [...]Policy{
	{
		Version:   model.V1,
		Weights:   Weights{Direct: 2.0, Round: 1.5, MissingAny: 1.0},
		Threshold: 1.5,
	},
	{
		Version:   model.V2,
		Weights:   Weights{Direct: 1.5, Round: 1.0, Timing: 2.0, NewSupplierDirect: 2.5},
		Threshold: 2.0,
	},
	{
		Version:   model.V3,
		Weights:   Weights{Direct: 1.5, Round: 1.0, Timing: 2.0, NewSupplierDirect: 2.5},
		Threshold: 2.0,
	},
}

// PolicyFor returns the policy pinned to v. A pinned policy that fails
// ValidatePolicy is never handed out.
func PolicyFor(v model.Version) (Policy, error) {
	return lookupPolicy(policies[:], v)
}

func lookupPolicy(all []Policy, v model.Version) (Policy, error) {
	for _, p := range all {
		if p.Version != v {
			continue
		}
		if err := ValidatePolicy(p); err != nil {
			return Policy{}, eris.Wrapf(err, "scorer: pinned policy %s", v)
		}
		return p, nil
	}
	return Policy{}, eris.Errorf("scorer: no policy for version %s", v)
}

// Policies returns every pinned policy in version order.
func Policies() []Policy {
	return append([]Policy(nil), policies[:]...)
}

// Indicators are the 0/1 inputs of a score.
type Indicators struct {
	Direct            int `json:"direct"`
	Round             int `json:"round"`
	MissingAny        int `json:"missing_any"`
	Timing            int `json:"timing"`
	NewSupplierDirect int `json:"new_supplier_direct"`
}

// IndicatorsOf extracts the scoring inputs of r for version v. MissingAny
// saturates: any missing field counts once.
func IndicatorsOf(r model.FeatureRecord, v model.Version) Indicators {
	ind := Indicators{
		Direct: r.IsDirectProcurement,
		Round:  r.IsRoundAmount,
	}
	if v.HasTiming() {
		ind.Timing = r.SuspiciousTiming
		ind.NewSupplierDirect = r.NewSupplierDirectDeal
	} else {
		ind.MissingAny = model.BoolInt(r.MissingDataCount >= 1)
	}
	return ind
}

// Score returns the weighted sum of the indicators.
func (p Policy) Score(ind Indicators) float64 {
	w := p.Weights
	return float64(ind.Direct)*w.Direct +
		float64(ind.Round)*w.Round +
		float64(ind.MissingAny)*w.MissingAny +
		float64(ind.Timing)*w.Timing +
		float64(ind.NewSupplierDirect)*w.NewSupplierDirect
}

// Label returns 1 when score reaches the threshold.
func (p Policy) Label(score float64) int {
	return model.BoolInt(score >= p.Threshold)
}

// Apply sets the risk score and label of r.
func (p Policy) Apply(r *model.FeatureRecord) {
	r.RiskScore = p.Score(IndicatorsOf(*r, p.Version))
	r.RiskLabel = p.Label(r.RiskScore)
}

// Contribution is one indicator's share of a score.
type Contribution struct {
	Indicator string  `json:"indicator"`
	Value     int     `json:"value"`
	Weight    float64 `json:"weight"`
	Points    float64 `json:"points"`
}

// Breakdown lists the contribution of every indicator the policy weighs.
func (p Policy) Breakdown(ind Indicators) []Contribution {
	w := p.Weights
	all := []Contribution{
		{Indicator: model.ColIsDirectProcurement, Value: ind.Direct, Weight: w.Direct},
		{Indicator: model.ColIsRoundAmount, Value: ind.Round, Weight: w.Round},
		{Indicator: "missing_any", Value: ind.MissingAny, Weight: w.MissingAny},
		{Indicator: model.ColSuspiciousTiming, Value: ind.Timing, Weight: w.Timing},
		{Indicator: model.ColNewSupplierDirectDeal, Value: ind.NewSupplierDirect, Weight: w.NewSupplierDirect},
	}
	out := make([]Contribution, 0, len(all))
	for _, c := range all {
		if c.Weight == 0 {
			continue
		}
		c.Points = float64(c.Value) * c.Weight
		out = append(out, c)
	}
	return out
}

// ValidatePolicy checks that a policy is internally consistent.
func ValidatePolicy(p Policy) error {
	var errs []string

	if model.FinalFeatures(p.Version) == nil {
		errs = append(errs, fmt.Sprintf("unknown version %d", int(p.Version)))
	}

	weights := map[string]float64{
		"direct":              p.Weights.Direct,
		"round":               p.Weights.Round,
		"missing_any":         p.Weights.MissingAny,
		"timing":              p.Weights.Timing,
		"new_supplier_direct": p.Weights.NewSupplierDirect,
	}
	for name, w := range weights {
		if w < 0 {
			errs = append(errs, fmt.Sprintf("%s weight must be >= 0", name))
		}
	}

	if p.Threshold <= 0 {
		errs = append(errs, "threshold must be > 0")
	}

	if len(errs) > 0 {
		return eris.Errorf("scorer: policy validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
