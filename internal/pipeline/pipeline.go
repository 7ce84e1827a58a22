// Package pipeline builds the versioned feature tables: load the raw
// tables, link them, derive indicators, score, and persist.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/niruguard/niruguard/internal/config"
	"github.com/niruguard/niruguard/internal/features"
	"github.com/niruguard/niruguard/internal/ingest"
	"github.com/niruguard/niruguard/internal/linkage"
	"github.com/niruguard/niruguard/internal/metrics"
	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/resolve"
	"github.com/niruguard/niruguard/internal/scorer"
	"github.com/niruguard/niruguard/internal/store"
)

// Phase names recorded on every run.
const (
	PhaseLoad   = "load"
	PhaseLink   = "link"
	PhaseDerive = "derive"
	PhaseScore  = "score"
	PhaseWrite  = "write"
	PhaseMirror = "mirror"
	PhaseCommit = "commit"
)

// Pipeline orchestrates one or more version builds.
type Pipeline struct {
	cfg     *config.Config
	mirror  store.Store
	metrics *metrics.Metrics
}

// New creates a Pipeline. mirror and m may be nil.
func New(cfg *config.Config, mirror store.Store, m *metrics.Metrics) *Pipeline {
	return &Pipeline{cfg: cfg, mirror: mirror, metrics: m}
}

// Result is the outcome of one version build.
type Result struct {
	Run          *model.Run            `json:"run"`
	Policy       scorer.Policy         `json:"policy"`
	Linkage      linkage.Stats         `json:"linkage"`
	Report       features.Report       `json:"report"`
	Labels       LabelDistribution     `json:"labels"`
	Sources      map[string]string     `json:"sources"`
	Duplicates   map[string]int        `json:"duplicates,omitempty"`
	EmptyKeys    map[string]int        `json:"empty_keys,omitempty"`
	OutputPath   string                `json:"output_path"`
	ManifestPath string                `json:"manifest_path"`
	Records      []model.FeatureRecord `json:"-"`
}

// Run builds the feature table of one version.
func (p *Pipeline) Run(ctx context.Context, v model.Version) (*Result, error) {
	results, err := p.RunAll(ctx, []model.Version{v})
	if err != nil {
		return nil, err
	}
	return results[0], nil
}

// RunAll builds every version in versions. Source tables are read once and
// shared between the versions of this call. All tables are computed, and
// every CSV snapshot and manifest is staged under a temp name, before
// anything is replaced. A failure up to that point leaves all outputs as
// they were. Mirrors are replaced next, one transaction per version, and
// the staged files are renamed into place last.
func (p *Pipeline) RunAll(ctx context.Context, versions []model.Version) ([]*Result, error) {
	if len(versions) == 0 {
		return nil, eris.New("pipeline: no versions requested")
	}
	loader := ingest.NewLoader(p.cfg.Sources.Charset)

	builds := make([]*build, 0, len(versions))
	for _, v := range versions {
		b := p.newBuild(ctx, v)
		if err := b.compute(ctx, loader); err != nil {
			b.fail(ctx, err)
			for _, done := range builds {
				done.fail(ctx, eris.Wrapf(err, "pipeline: aborted with %s", v))
			}
			return nil, err
		}
		builds = append(builds, b)
	}

	outputs := make([]*output, 0, len(builds))
	// abort discards every staged file. Builds before committed keep their
	// renamed outputs and complete; the rest fail.
	abort := func(failed *build, committed int, err error) error {
		for _, o := range outputs {
			o.discard()
		}
		for i, b := range builds {
			switch {
			case i < committed:
				b.complete(ctx)
			case b == failed:
				b.fail(ctx, err)
			default:
				b.fail(ctx, eris.Wrapf(err, "pipeline: aborted with %s", failed.version))
			}
		}
		return err
	}

	for _, b := range builds {
		o, err := b.stage(ctx)
		if err != nil {
			return nil, abort(b, 0, err)
		}
		outputs = append(outputs, o)
	}
	for _, b := range builds {
		if err := b.mirrorTable(ctx); err != nil {
			return nil, abort(b, 0, err)
		}
	}
	for i, b := range builds {
		if err := b.commit(outputs[i]); err != nil {
			return nil, abort(b, i, err)
		}
	}

	results := make([]*Result, 0, len(builds))
	for _, b := range builds {
		b.complete(ctx)
		results = append(results, b.result)
	}
	return results, nil
}

// output holds the staged files of one build.
type output struct {
	csv      *store.Staged
	manifest *store.Staged
}

func (o *output) discard() {
	o.csv.Discard()
	o.manifest.Discard()
}

// build carries the state of one version through the phases.
type build struct {
	p       *Pipeline
	version model.Version
	run     *model.Run
	result  *Result
	deg     *ingest.Degradation
	log     *zap.Logger
}

func (p *Pipeline) newBuild(ctx context.Context, v model.Version) *build {
	now := time.Now().UTC()
	run := &model.Run{
		ID:        uuid.New().String(),
		Version:   v,
		Status:    model.RunStatusQueued,
		Result:    &model.RunResult{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	b := &build{
		p:       p,
		version: v,
		run:     run,
		result: &Result{
			Run:        run,
			Sources:    map[string]string{},
			Duplicates: map[string]int{},
			EmptyKeys:  map[string]int{},
		},
		deg: ingest.NewDegradation(p.cfg.Pipeline.WarnSample),
		log: zap.L().With(
			zap.String("component", "pipeline"),
			zap.String("version", v.String()),
			zap.String("run_id", run.ID),
		),
	}
	b.log.Info("pipeline: starting build")
	b.setStatus(ctx, model.RunStatusQueued)
	return b
}

// setStatus updates the run status and mirrors the run record when a
// store is configured. Mirror failures are logged, not fatal.
func (b *build) setStatus(ctx context.Context, status model.RunStatus) {
	b.run.Status = status
	b.run.UpdatedAt = time.Now().UTC()
	if b.p.mirror == nil {
		return
	}
	if err := b.p.mirror.SaveRun(ctx, b.run); err != nil {
		b.log.Warn("pipeline: failed to save run", zap.String("status", string(status)), zap.Error(err))
	}
}

// trackPhase runs fn, records its timing and outcome on the run, and
// returns fn's error.
func (b *build) trackPhase(name string, fn func() (map[string]any, error)) error {
	start := time.Now()
	meta, err := fn()
	elapsed := time.Since(start)

	pr := model.PhaseResult{
		Name:     name,
		Duration: elapsed.Milliseconds(),
		Metadata: meta,
	}
	if err != nil {
		pr.Status = model.PhaseStatusFailed
		pr.Error = err.Error()
		b.log.Error("pipeline: phase failed",
			zap.String("phase", name),
			zap.Int64("duration_ms", pr.Duration),
			zap.Error(err),
		)
	} else {
		pr.Status = model.PhaseStatusComplete
		b.log.Info("pipeline: phase complete",
			zap.String("phase", name),
			zap.Int64("duration_ms", pr.Duration),
		)
	}
	b.run.Result.Phases = append(b.run.Result.Phases, pr)
	b.p.metrics.ObservePhase(b.version, name, elapsed)
	return err
}

// sources returns the raw tables version v reads.
func (b *build) sources(r resolve.Resolver) []ingest.Source {
	sc := b.p.cfg.Sources
	srcs := []ingest.Source{
		ingest.TenderSource(sc.Path(sc.Tenders)),
		ingest.AwardSource(sc.Path(sc.Awards)),
	}
	if b.version.HasTiming() {
		srcs = append(srcs,
			ingest.TimingSource(sc.Path(sc.Contracts)),
			ingest.SupplierSource(sc.Path(sc.Suppliers), r.Columns()),
		)
	}
	return srcs
}

// compute runs every phase up to, but excluding, persistence.
func (b *build) compute(ctx context.Context, loader *ingest.Loader) error {
	r := resolve.ForVersion(b.version)
	res := b.result

	pol, err := scorer.PolicyFor(b.version)
	if err != nil {
		return err
	}
	res.Policy = pol

	b.setStatus(ctx, model.RunStatusLoading)
	var in linkage.Inputs
	err = b.trackPhase(PhaseLoad, func() (map[string]any, error) {
		srcs := b.sources(r)
		tables, err := loader.LoadAll(ctx, srcs...)
		if err != nil {
			return nil, err
		}
		meta := map[string]any{}
		for i, src := range srcs {
			res.Sources[src.Name] = src.Path
			meta[src.Name+"_rows"] = tables[i].Len()
			meta[src.Name+"_duplicates"] = tables[i].Duplicates
			meta[src.Name+"_empty_keys"] = tables[i].EmptyKeys
			if n := tables[i].Duplicates; n > 0 {
				res.Duplicates[src.Name] = n
			}
			if n := tables[i].EmptyKeys; n > 0 {
				res.EmptyKeys[src.Name] = n
			}
		}
		in.Tenders, in.Awards = tables[0], tables[1]
		if len(tables) == 4 {
			in.Timing, in.Suppliers = tables[2], tables[3]
		}
		return meta, nil
	})
	if err != nil {
		return err
	}

	b.setStatus(ctx, model.RunStatusLinking)
	var linked []model.LinkedRecord
	err = b.trackPhase(PhaseLink, func() (map[string]any, error) {
		var err error
		linked, res.Linkage, err = linkage.Link(in)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"linked":           res.Linkage.Linked,
			"dropped_no_award": res.Linkage.DroppedNoAward,
			"with_timing":      res.Linkage.WithTiming,
			"with_supplier":    res.Linkage.WithSupplier,
		}, nil
	})
	if err != nil {
		return err
	}

	b.setStatus(ctx, model.RunStatusDeriving)
	err = b.trackPhase(PhaseDerive, func() (map[string]any, error) {
		var err error
		res.Records, res.Report, err = features.Derive(linked, b.version, r, b.deg)
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"contracts":            res.Report.Contracts,
			"distinct_suppliers":   res.Report.DistinctSuppliers,
			"unresolved_suppliers": res.Report.UnresolvedSuppliers,
			"degraded":             b.deg.Total(),
		}, nil
	})
	if err != nil {
		return err
	}

	return b.trackPhase(PhaseScore, func() (map[string]any, error) {
		for i := range res.Records {
			pol.Apply(&res.Records[i])
		}
		res.Labels = Distribution(res.Records)
		return map[string]any{
			"high_risk": res.Labels.HighRisk,
			"total":     res.Labels.Total,
		}, nil
	})
}

// stage encodes the CSV snapshot and its manifest into temp files beside
// their targets.
func (b *build) stage(ctx context.Context) (*output, error) {
	b.setStatus(ctx, model.RunStatusWriting)
	o := &output{}
	err := b.trackPhase(PhaseWrite, func() (map[string]any, error) {
		var err error
		if o.csv, err = store.StageCSV(b.p.cfg.Output.Dir, b.version, b.result.Records); err != nil {
			return nil, err
		}
		if o.manifest, err = store.StageManifest(o.csv.Path, b.manifest()); err != nil {
			o.discard()
			return nil, err
		}
		return map[string]any{"rows": len(b.result.Records)}, nil
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// mirrorTable replaces the database copy of the table when a store is
// configured.
func (b *build) mirrorTable(ctx context.Context) error {
	if b.p.mirror == nil {
		return nil
	}
	return b.trackPhase(PhaseMirror, func() (map[string]any, error) {
		n, err := b.p.mirror.ReplaceFeatures(ctx, b.version, b.result.Records)
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: mirror feature table")
		}
		return map[string]any{"mirrored_rows": n}, nil
	})
}

// commit renames the staged snapshot, then its manifest, into place.
func (b *build) commit(o *output) error {
	return b.trackPhase(PhaseCommit, func() (map[string]any, error) {
		if err := o.csv.Commit(); err != nil {
			return nil, err
		}
		if err := o.manifest.Commit(); err != nil {
			return nil, err
		}
		b.result.OutputPath = o.csv.Path
		b.result.ManifestPath = o.manifest.Path
		b.run.Result.OutputPath = o.csv.Path
		return map[string]any{
			"output_path":   o.csv.Path,
			"manifest_path": o.manifest.Path,
		}, nil
	})
}

func (b *build) manifest() store.Manifest {
	res := b.result
	return store.Manifest{
		RunID:   b.run.ID,
		Version: b.version,
		Policy:  res.Policy,
		Columns: model.OutputColumns(b.version),
		Rows: store.ManifestRows{
			Written:             len(res.Records),
			HighRisk:            res.Labels.HighRisk,
			DroppedNoAward:      res.Linkage.DroppedNoAward,
			UnresolvedSuppliers: res.Report.UnresolvedSuppliers,
			Duplicates:          res.Duplicates,
			EmptyKeys:           res.EmptyKeys,
		},
		Degraded:    b.deg.Counts(),
		Sources:     res.Sources,
		GeneratedAt: time.Now().UTC(),
	}
}

func (b *build) fillResult() {
	rr := b.run.Result
	rr.ContractsLinked = b.result.Linkage.Linked
	rr.DroppedNoAward = b.result.Linkage.DroppedNoAward
	rr.HighRisk = b.result.Labels.HighRisk
	rr.UnresolvedSuppliers = b.result.Report.UnresolvedSuppliers
	rr.DegradedFields = b.deg.Counts()
}

func (b *build) complete(ctx context.Context) {
	b.fillResult()
	b.setStatus(ctx, model.RunStatusComplete)
	b.p.metrics.ObserveRun(b.run)
	b.log.Info("pipeline: build complete",
		zap.Int("contracts", b.run.Result.ContractsLinked),
		zap.Int("dropped_no_award", b.run.Result.DroppedNoAward),
		zap.Int("high_risk", b.run.Result.HighRisk),
		zap.Int("degraded", b.deg.Total()),
		zap.String("output", b.run.Result.OutputPath),
	)
}

func (b *build) fail(ctx context.Context, err error) {
	b.fillResult()
	b.run.Result.Error = err.Error()
	b.setStatus(ctx, model.RunStatusFailed)
	b.p.metrics.ObserveRun(b.run)
	b.log.Error("pipeline: build failed", zap.Error(err))
}
