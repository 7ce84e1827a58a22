// Package dossier is the supplier 360 read path over the v3 feature table:
// supplier search, KPIs and the high-risk contract list of one supplier.
package dossier

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/niruguard/niruguard/internal/ingest"
	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/resolve"
	"github.com/niruguard/niruguard/internal/store"
)

// ErrSupplierNotFound is returned by Get for an unknown supplier id.
var ErrSupplierNotFound = eris.New("dossier: supplier not found")

// Supplier is one entry of the supplier list.
type Supplier struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Display   string `json:"display"`
	Contracts int    `json:"contracts"`
	HighRisk  int    `json:"high_risk"`
}

// KPIs are the headline figures of a dossier.
type KPIs struct {
	TotalContracts int     `json:"total_contracts"`
	TotalValue     float64 `json:"total_value"`
	HighRiskCount  int     `json:"high_risk_count"`
	HighRiskValue  float64 `json:"high_risk_value"`
}

// Bucket is one bar of a breakdown chart.
type Bucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// ContractRow is one high-risk contract as shown in the dossier table.
type ContractRow struct {
	Amount                float64 `json:"amount"`
	IsDirectProcurement   int     `json:"is_direct_procurement"`
	IsRoundAmount         int     `json:"is_round_amount"`
	SuspiciousTiming      int     `json:"suspicious_timing"`
	NewSupplierDirectDeal int     `json:"new_supplier_direct_deal"`
	RiskScore             float64 `json:"risk_score"`
}

// Dossier is the full profile of one supplier.
type Dossier struct {
	Supplier        Supplier      `json:"supplier"`
	KPIs            KPIs          `json:"kpis"`
	RiskBreakdown   []Bucket      `json:"risk_breakdown"`
	MethodBreakdown []Bucket      `json:"method_breakdown"`
	HighRisk        []ContractRow `json:"high_risk_contracts"`
}

// Snapshot is the v3 feature table joined with the party directory, read
// once and shared read-only by every request of a process.
type Snapshot struct {
	Path      string
	Manifest  *store.Manifest
	records   []model.FeatureRecord
	directory map[string]model.PartyDirectoryEntry
	suppliers []Supplier
	byID      map[string][]int
}

// Options locate the inputs of a snapshot.
type Options struct {
	OutputDir   string
	PartiesPath string
	Charset     string
}

// Load reads the v3 feature table from opts.OutputDir and the party
// directory from opts.PartiesPath. A missing or unreadable party file is
// not fatal: names then come from the feature table alone.
func Load(ctx context.Context, opts Options) (*Snapshot, error) {
	path := filepath.Join(opts.OutputDir, store.FileName(model.V3))
	records, err := store.ReadCSV(path, model.V3)
	if err != nil {
		return nil, eris.Wrap(err, "dossier: load feature table")
	}

	log := zap.L().With(zap.String("component", "dossier"))

	var dir []model.PartyDirectoryEntry
	if opts.PartiesPath != "" {
		dir, err = LoadDirectory(ctx, ingest.NewLoader(opts.Charset), opts.PartiesPath)
		if err != nil {
			log.Warn("dossier: party directory unavailable, using feature table names",
				zap.String("path", opts.PartiesPath), zap.Error(err))
		}
	}

	s := New(records, dir)
	s.Path = path
	if m, err := store.ReadManifest(path); err == nil {
		s.Manifest = m
	} else {
		log.Debug("dossier: no manifest", zap.Error(err))
	}

	log.Info("dossier: snapshot loaded",
		zap.String("path", path),
		zap.Int("contracts", len(records)),
		zap.Int("suppliers", len(s.suppliers)),
		zap.Int("directory", len(s.directory)),
	)
	return s, nil
}

// LoadDirectory reads the party directory, keeping the first name seen
// for each id.
func LoadDirectory(ctx context.Context, loader *ingest.Loader, path string) ([]model.PartyDirectoryEntry, error) {
	t, err := loader.Load(ctx, ingest.PartySource(path))
	if err != nil {
		return nil, err
	}
	out := make([]model.PartyDirectoryEntry, 0, t.Len())
	for _, row := range t.Rows {
		name := row.Get(ingest.ColPartyName)
		if ingest.IsNull(name) {
			continue
		}
		out = append(out, model.PartyDirectoryEntry{ID: row.Get(ingest.ColPartyID), OfficialName: name})
	}
	return out, nil
}

// New builds a snapshot from feature records and directory entries. Earlier
// directory entries win over later ones with the same id.
func New(records []model.FeatureRecord, dir []model.PartyDirectoryEntry) *Snapshot {
	s := &Snapshot{
		records:   records,
		directory: make(map[string]model.PartyDirectoryEntry, len(dir)),
		byID:      make(map[string][]int),
	}
	for _, e := range dir {
		if _, ok := s.directory[e.ID]; !ok {
			s.directory[e.ID] = e
		}
	}

	var order []string
	for i, r := range records {
		if r.SupplierID == "" {
			continue
		}
		if _, ok := s.byID[r.SupplierID]; !ok {
			order = append(order, r.SupplierID)
		}
		s.byID[r.SupplierID] = append(s.byID[r.SupplierID], i)
	}

	for _, id := range order {
		name := s.nameOf(id)
		if name == "" {
			continue
		}
		sup := Supplier{ID: id, Name: name, Display: displayName(name, id)}
		for _, i := range s.byID[id] {
			sup.Contracts++
			if s.records[i].HighRisk() {
				sup.HighRisk++
			}
		}
		s.suppliers = append(s.suppliers, sup)
	}

	slices.SortFunc(s.suppliers, func(a, b Supplier) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return s
}

// nameOf prefers the directory name of id and falls back to the first
// name recorded on its contracts.
func (s *Snapshot) nameOf(id string) string {
	if e, ok := s.directory[id]; ok && e.OfficialName != "" {
		return e.OfficialName
	}
	for _, i := range s.byID[id] {
		if name := s.records[i].SupplierName; name != "" {
			return name
		}
	}
	return ""
}

func displayName(name, id string) string {
	return fmt.Sprintf("%s (ID: %s)", name, id)
}

// Contracts returns the number of contracts in the snapshot.
func (s *Snapshot) Contracts() int {
	return len(s.records)
}

// Suppliers lists every named supplier, sorted by name.
func (s *Snapshot) Suppliers() []Supplier {
	return slices.Clone(s.suppliers)
}

// Search returns the suppliers whose id starts with query or whose name
// contains it after search normalization. limit <= 0 means no limit.
func (s *Snapshot) Search(query string, limit int) []Supplier {
	out := make([]Supplier, 0)
	for _, sup := range s.suppliers {
		if !resolve.Matches(query, sup.ID, sup.Name) {
			continue
		}
		out = append(out, sup)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Get builds the dossier of supplier id.
func (s *Snapshot) Get(id string) (*Dossier, error) {
	idxs, ok := s.byID[id]
	if !ok {
		return nil, eris.Wrapf(ErrSupplierNotFound, "dossier: id %q", id)
	}

	name := s.nameOf(id)
	d := &Dossier{Supplier: Supplier{ID: id, Name: name, Display: displayName(name, id)}}
	var low, direct, open int
	for _, i := range idxs {
		r := s.records[i]
		d.KPIs.TotalContracts++
		d.KPIs.TotalValue += r.Amount
		if r.IsDirectProcurement == 1 {
			direct++
		} else {
			open++
		}
		if !r.HighRisk() {
			low++
			continue
		}
		d.KPIs.HighRiskCount++
		d.KPIs.HighRiskValue += r.Amount
		d.HighRisk = append(d.HighRisk, ContractRow{
			Amount:                r.Amount,
			IsDirectProcurement:   r.IsDirectProcurement,
			IsRoundAmount:         r.IsRoundAmount,
			SuspiciousTiming:      r.SuspiciousTiming,
			NewSupplierDirectDeal: r.NewSupplierDirectDeal,
			RiskScore:             r.RiskScore,
		})
	}

	d.RiskBreakdown = []Bucket{
		{Label: "Low Risk", Count: low},
		{Label: "High Risk", Count: d.KPIs.HighRiskCount},
	}
	d.MethodBreakdown = []Bucket{
		{Label: model.MethodOpen.Label(), Count: open},
		{Label: model.MethodDirect.Label(), Count: direct},
	}
	d.Supplier.Contracts = d.KPIs.TotalContracts
	d.Supplier.HighRisk = d.KPIs.HighRiskCount
	return d, nil
}

// IsNotFound reports whether err means the supplier does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrSupplierNotFound)
}
