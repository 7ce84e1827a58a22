package artifact

import (
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/niruguard/niruguard/internal/features"
	"github.com/niruguard/niruguard/internal/metrics"
	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/scorer"
)

// PredictionState says whether a classifier produced the prediction.
type PredictionState string

const (
	StateScored      PredictionState = "scored"
	StateUnavailable PredictionState = "unavailable"
)

// Prediction is the classifier's verdict on one contract. Label,
// Confidence and Probabilities are only set when State is StateScored.
type Prediction struct {
	State         PredictionState `json:"state"`
	Label         int             `json:"label"`
	Confidence    float64         `json:"confidence"`
	Probabilities []float64       `json:"probabilities,omitempty"`
	Reason        string          `json:"reason,omitempty"`
}

// Heuristic is the rule-based score of the contract, returned alongside
// every prediction so the red flags behind it are visible.
type Heuristic struct {
	Score     float64               `json:"score"`
	Label     int                   `json:"label"`
	Threshold float64               `json:"threshold"`
	Breakdown []scorer.Contribution `json:"breakdown"`
}

// Analysis is the result of scoring one analyst-entered contract.
type Analysis struct {
	Version    model.Version `json:"version"`
	Features   FeatureVector `json:"features"`
	Prediction Prediction    `json:"prediction"`
	Heuristic  Heuristic     `json:"heuristic"`
}

// Analyzer scores single contracts for one version. Without a trained
// artifact it still answers, with an unavailable prediction.
type Analyzer struct {
	version    model.Version
	policy     scorer.Policy
	classifier Classifier
	reason     string
	metrics    *metrics.Metrics
}

// NewAnalyzer loads the artifact of v from dir. A missing artifact is not
// an error; any other load failure is. m may be nil.
func NewAnalyzer(dir string, v model.Version, m *metrics.Metrics) (*Analyzer, error) {
	pol, err := scorer.PolicyFor(v)
	if err != nil {
		return nil, err
	}
	a := &Analyzer{version: v, policy: pol, metrics: m}

	path := Path(dir, v)
	clf, err := Load(path, v)
	switch {
	case errors.Is(err, ErrModelArtifactMissing):
		a.reason = "no trained model at " + path
		zap.L().Warn("artifact: model unavailable, serving heuristic only",
			zap.String("version", v.String()),
			zap.String("path", path),
		)
	case err != nil:
		return nil, err
	default:
		a.classifier = clf
	}
	return a, nil
}

// NewAnalyzerWith wraps an already loaded classifier. clf may be nil.
func NewAnalyzerWith(v model.Version, clf Classifier, m *metrics.Metrics) (*Analyzer, error) {
	pol, err := scorer.PolicyFor(v)
	if err != nil {
		return nil, err
	}
	a := &Analyzer{version: v, policy: pol, classifier: clf, metrics: m}
	if clf == nil {
		a.reason = "no classifier configured"
	}
	return a, nil
}

// Version returns the version the analyzer scores for.
func (a *Analyzer) Version() model.Version {
	return a.version
}

// Available reports whether a classifier is loaded.
func (a *Analyzer) Available() bool {
	return a.classifier != nil
}

// Analyze derives the indicators of in, scores them with the heuristic
// policy and, when available, the classifier.
func (a *Analyzer) Analyze(in features.Input) (*Analysis, error) {
	if in.Amount < 0 {
		return nil, eris.New("artifact: amount must be >= 0")
	}

	rec := features.FromInput(in, a.version)
	a.policy.Apply(&rec)

	out := &Analysis{
		Version:  a.version,
		Features: FeatureVector(rec.FeatureVector(a.version)),
		Heuristic: Heuristic{
			Score:     rec.RiskScore,
			Label:     rec.RiskLabel,
			Threshold: a.policy.Threshold,
			Breakdown: a.policy.Breakdown(scorer.IndicatorsOf(rec, a.version)),
		},
	}

	if a.classifier == nil {
		out.Prediction = Prediction{State: StateUnavailable, Reason: a.reason}
		a.metrics.IncrementAnalyze(a.version, string(StateUnavailable))
		return out, nil
	}

	probs, err := a.classifier.PredictProbability(out.Features)
	if err != nil {
		return nil, eris.Wrap(err, "artifact: predict")
	}
	if len(probs) != 2 {
		return nil, eris.Errorf("artifact: classifier returned %d probabilities, want 2", len(probs))
	}
	label := 0
	if probs[1] > probs[0] {
		label = 1
	}
	out.Prediction = Prediction{
		State:         StateScored,
		Label:         label,
		Confidence:    probs[label],
		Probabilities: probs,
	}
	a.metrics.IncrementAnalyze(a.version, string(StateScored))
	return out, nil
}
