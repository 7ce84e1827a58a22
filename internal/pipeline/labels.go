package pipeline

import (
	"fmt"
	"strings"

	"github.com/niruguard/niruguard/internal/model"
)

// LabelDistribution counts the synthetic labels of a feature table.
type LabelDistribution struct {
	Total    int `json:"total"`
	HighRisk int `json:"high_risk"`
}

// Distribution tallies the risk labels of records.
func Distribution(records []model.FeatureRecord) LabelDistribution {
	d := LabelDistribution{Total: len(records)}
	for _, r := range records {
		if r.HighRisk() {
			d.HighRisk++
		}
	}
	return d
}

// Share returns the fraction of rows carrying label (0 or 1). An empty
// table has a share of 0 for both labels.
func (d LabelDistribution) Share(label int) float64 {
	if d.Total == 0 {
		return 0
	}
	n := d.HighRisk
	if label == 0 {
		n = d.Total - d.HighRisk
	}
	return float64(n) / float64(d.Total)
}

// String renders the normalized distribution, e.g. "0: 0.6667, 1: 0.3333".
func (d LabelDistribution) String() string {
	var sb strings.Builder
	for _, label := range []int{0, 1} {
		if label > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%d: %.4f", label, d.Share(label))
	}
	return sb.String()
}
