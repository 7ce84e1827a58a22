// Package artifact loads trained risk classifiers and scores single
// contracts with them.
package artifact

import (
	"encoding/json"
	"errors"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/niruguard/niruguard/internal/model"
)

// ErrModelArtifactMissing is returned when no trained artifact exists for a
// version.
var ErrModelArtifactMissing = eris.New("artifact: model artifact missing")

// FeatureVector maps model input column names to values.
type FeatureVector map[string]float64

// Classifier predicts class probabilities for one feature vector. The
// returned slice is indexed by label: [P(0), P(1)].
type Classifier interface {
	PredictProbability(x FeatureVector) ([]float64, error)
}

// Path returns the artifact location of version v under dir:
// corruption_risk_model.json for v1, corruption_risk_model_vN.json after.
func Path(dir string, v model.Version) string {
	name := "corruption_risk_model"
	if v != model.V1 {
		name += "_" + v.String()
	}
	return filepath.Join(dir, name+".json")
}

// Logistic is a binary logistic regression exported by the training job.
type Logistic struct {
	Version      model.Version      `json:"version"`
	Features     []string           `json:"features"`
	Classes      []int              `json:"classes"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
}

// Load reads the artifact at path and checks it was trained for v: the
// declared features must equal model.FinalFeatures(v) in order.
func Load(path string, v model.Version) (*Logistic, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrapf(ErrModelArtifactMissing, "artifact: %s", path)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "artifact: read %s", path)
	}

	var m Logistic
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "artifact: parse %s", path)
	}
	if err := m.validate(v); err != nil {
		return nil, eris.Wrapf(err, "artifact: %s", path)
	}
	return &m, nil
}

func (m *Logistic) validate(v model.Version) error {
	if m.Version != v {
		return eris.Errorf("trained for %s, want %s", m.Version, v)
	}
	if want := model.FinalFeatures(v); !slices.Equal(m.Features, want) {
		return eris.Errorf("features %v do not match %s inputs %v", m.Features, v, want)
	}
	if !slices.Equal(m.Classes, []int{0, 1}) {
		return eris.Errorf("classes must be [0 1], got %v", m.Classes)
	}
	for _, f := range m.Features {
		w, ok := m.Coefficients[f]
		if !ok {
			return eris.Errorf("no coefficient for feature %q", f)
		}
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return eris.Errorf("coefficient for %q is not finite", f)
		}
	}
	return nil
}

// PredictProbability returns [P(label 0), P(label 1)].
func (m *Logistic) PredictProbability(x FeatureVector) ([]float64, error) {
	z := m.Intercept
	for _, f := range m.Features {
		val, ok := x[f]
		if !ok {
			return nil, eris.Errorf("artifact: feature %q missing from input", f)
		}
		z += m.Coefficients[f] * val
	}
	p := 1 / (1 + math.Exp(-z))
	return []float64{1 - p, p}, nil
}

var _ Classifier = (*Logistic)(nil)
