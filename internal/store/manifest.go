package store

import (
	"io"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/scorer"
)

// Manifest describes how a feature table was produced. It is written next
// to the CSV snapshot as <file>.manifest.yaml.
type Manifest struct {
	RunID       string            `yaml:"run_id"`
	Version     model.Version     `yaml:"version"`
	Policy      scorer.Policy     `yaml:"policy"`
	Columns     []string          `yaml:"columns"`
	Rows        ManifestRows      `yaml:"rows"`
	Degraded    map[string]int    `yaml:"degraded,omitempty"`
	Sources     map[string]string `yaml:"sources"`
	GeneratedAt time.Time         `yaml:"generated_at"`
}

// ManifestRows holds the row accounting of a run. Duplicates and EmptyKeys
// count, per source, the rows dropped at load for a repeated or a null key.
type ManifestRows struct {
	Written             int            `yaml:"written"`
	HighRisk            int            `yaml:"high_risk"`
	DroppedNoAward      int            `yaml:"dropped_no_award"`
	UnresolvedSuppliers int            `yaml:"unresolved_suppliers"`
	Duplicates          map[string]int `yaml:"duplicates,omitempty"`
	EmptyKeys           map[string]int `yaml:"empty_keys,omitempty"`
}

// ManifestPath returns the sidecar path of a snapshot.
func ManifestPath(csvPath string) string {
	return csvPath + ".manifest.yaml"
}

// StageManifest encodes m into a temp file beside the sidecar of csvPath.
func StageManifest(csvPath string, m Manifest) (*Staged, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "store: marshal manifest")
	}
	path := ManifestPath(csvPath)
	return stage(path, func(w io.Writer) error {
		if _, err := w.Write(data); err != nil {
			return eris.Wrapf(err, "store: write manifest %s", path)
		}
		return nil
	})
}

// ReadManifest loads the sidecar of csvPath.
func ReadManifest(csvPath string) (*Manifest, error) {
	path := ManifestPath(csvPath)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "store: read manifest %s", path)
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrapf(err, "store: parse manifest %s", path)
	}
	return &m, nil
}
