package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niruguard/niruguard/internal/config"
	"github.com/niruguard/niruguard/internal/ingest"
	"github.com/niruguard/niruguard/internal/metrics"
	"github.com/niruguard/niruguard/internal/model"
	"github.com/niruguard/niruguard/internal/store"
)

const (
	tendersCSV = `_link,tender_procurementMethod,title
T1,direct,Office chairs
T2,open,Road works
T3,Direct,Laptops
T4,open,Never awarded
T1,open,Repeated tender row
`
	awardsCSV = `_link_main,value_amount,status
T1,"5,000",active
T1,99999,duplicate award ignored
T2,KES 20000,active
T3,7000,active
`
	contractsCSV = `_link_main,dateSigned,period_startDate
T1,2024-01-10,2024-02-01
T3,2024-03-10,2024-03-01
`
	suppliersCSV = `_link_main,name,id
T1,Acme Ltd,KE-001
T2,ACME LTD.,KE-001
T3,Baraka Traders,KE-002
`
)

func writeFixtures(t *testing.T, files map[string]string) *config.Config {
	t.Helper()
	raw := t.TempDir()
	for name, body := range files {
		require.NoError(t, os.WriteFile(filepath.Join(raw, name), []byte(body), 0o644))
	}
	return &config.Config{
		Sources: config.SourcesConfig{
			Dir:       raw,
			Tenders:   "main.csv",
			Awards:    "awards.csv",
			Contracts: "contracts.csv",
			Suppliers: "awards_suppliers.csv",
		},
		Output:   config.OutputConfig{Dir: filepath.Join(t.TempDir(), "processed")},
		Pipeline: config.PipelineConfig{WarnSample: 2},
		Store:    config.StoreConfig{Driver: store.DriverCSV, TablePrefix: "training_data"},
	}
}

func allFixtures() map[string]string {
	return map[string]string{
		"main.csv":             tendersCSV,
		"awards.csv":           awardsCSV,
		"contracts.csv":        contractsCSV,
		"awards_suppliers.csv": suppliersCSV,
	}
}

func TestRun_V3Scenario(t *testing.T) {
	cfg := writeFixtures(t, allFixtures())
	p := New(cfg, nil, nil)

	res, err := p.Run(context.Background(), model.V3)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Linkage.DroppedNoAward)
	require.Len(t, res.Records, 3)

	t1, t2, t3 := res.Records[0], res.Records[1], res.Records[2]
	assert.Equal(t, "T1", t1.ContractKey)
	assert.Equal(t, 5000.0, t1.Amount)
	assert.Equal(t, 1, t1.IsDirectProcurement)
	assert.Equal(t, 1, t1.IsRoundAmount)
	assert.Equal(t, 0, t1.SuspiciousTiming)
	assert.Equal(t, 2, t1.SupplierAwardCount)
	assert.Equal(t, 1, t1.NewSupplierDirectDeal)
	assert.Equal(t, 5.0, t1.RiskScore)
	assert.Equal(t, 1, t1.RiskLabel)
	assert.Equal(t, "KE-001", t1.SupplierID)
	assert.Equal(t, "Acme Ltd", t1.SupplierName)

	assert.Equal(t, 0, t2.IsDirectProcurement)
	assert.Equal(t, 2, t2.SupplierAwardCount)
	assert.Equal(t, 1.0, t2.RiskScore)
	assert.Equal(t, 0, t2.RiskLabel)
	assert.Equal(t, "ACME LTD.", t2.SupplierName)

	assert.Equal(t, 1, t3.SuspiciousTiming)
	assert.Equal(t, 1, t3.SupplierAwardCount)
	assert.Equal(t, 7.0, t3.RiskScore)
	assert.Equal(t, 1, t3.RiskLabel)

	assert.Equal(t, LabelDistribution{Total: 3, HighRisk: 2}, res.Labels)
	assert.Equal(t, model.RunStatusComplete, res.Run.Status)
	assert.Len(t, res.Run.Result.Phases, 5)
}

func TestRun_V2UsesNameIdentity(t *testing.T) {
	cfg := writeFixtures(t, allFixtures())
	res, err := New(cfg, nil, nil).Run(context.Background(), model.V2)
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	// "Acme Ltd" and "ACME LTD." differ after trim and upper-case.
	assert.Equal(t, 1, res.Records[0].SupplierAwardCount)
	assert.Equal(t, 1, res.Records[1].SupplierAwardCount)
	assert.Empty(t, res.Records[0].SupplierID)
}

func TestRun_V1ReadsOnlyTendersAndAwards(t *testing.T) {
	files := allFixtures()
	delete(files, "contracts.csv")
	delete(files, "awards_suppliers.csv")
	cfg := writeFixtures(t, files)

	res, err := New(cfg, nil, nil).Run(context.Background(), model.V1)
	require.NoError(t, err)
	require.Len(t, res.Records, 3)

	assert.Equal(t, 0, res.Records[0].MissingDataCount)
	assert.Equal(t, 3.5, res.Records[0].RiskScore)
	assert.Equal(t, 1, res.Records[0].RiskLabel)
	assert.Equal(t, 1.5, res.Records[1].RiskScore)
	assert.Equal(t, 1, res.Records[1].RiskLabel)
	assert.NotContains(t, res.Sources, ingest.SourceContracts)
}

func TestRun_WritesSnapshotAndManifest(t *testing.T) {
	cfg := writeFixtures(t, allFixtures())
	res, err := New(cfg, nil, nil).Run(context.Background(), model.V3)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cfg.Output.Dir, "training_data_v3.csv"), res.OutputPath)
	got, err := store.ReadCSV(res.OutputPath, model.V3)
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, res.Records[0].RiskScore, got[0].RiskScore)

	m, err := store.ReadManifest(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, res.Run.ID, m.RunID)
	assert.Equal(t, model.V3, m.Version)
	assert.Equal(t, 3, m.Rows.Written)
	assert.Equal(t, 2, m.Rows.HighRisk)
	assert.Equal(t, 1, m.Rows.DroppedNoAward)
	assert.Equal(t, 2.0, m.Policy.Threshold)
	assert.Equal(t, filepath.Join(cfg.Sources.Dir, "main.csv"), m.Sources[ingest.SourceTenders])
}

func TestRun_ManifestCountsDroppedKeys(t *testing.T) {
	files := allFixtures()
	files["main.csv"] = tendersCSV + ",open,No link\n"
	files["awards.csv"] = awardsCSV + "NaN,100,active\n,200,active\n"
	cfg := writeFixtures(t, files)

	res, err := New(cfg, nil, nil).Run(context.Background(), model.V1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.EmptyKeys[ingest.SourceTenders])
	assert.Equal(t, 2, res.EmptyKeys[ingest.SourceAwards])

	m, err := store.ReadManifest(res.OutputPath)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{ingest.SourceTenders: 1, ingest.SourceAwards: 2}, m.Rows.EmptyKeys)
	assert.Equal(t, map[string]int{ingest.SourceTenders: 1, ingest.SourceAwards: 1}, m.Rows.Duplicates)
}

func TestRun_Idempotent(t *testing.T) {
	cfg := writeFixtures(t, allFixtures())
	p := New(cfg, nil, nil)

	first, err := p.Run(context.Background(), model.V3)
	require.NoError(t, err)
	firstBytes, err := os.ReadFile(first.OutputPath)
	require.NoError(t, err)

	second, err := p.Run(context.Background(), model.V3)
	require.NoError(t, err)
	secondBytes, err := os.ReadFile(second.OutputPath)
	require.NoError(t, err)

	assert.Equal(t, first.Records, second.Records)
	assert.Equal(t, string(firstBytes), string(secondBytes))
	assert.NotEqual(t, first.Run.ID, second.Run.ID)
}

func TestRun_DegradedAmountsCounted(t *testing.T) {
	files := allFixtures()
	files["awards.csv"] = "_link_main,value_amount\nT1,five thousand\nT2,20000\nT3,\n"
	cfg := writeFixtures(t, files)

	res, err := New(cfg, nil, nil).Run(context.Background(), model.V2)
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.Records[0].Amount)
	assert.Equal(t, map[string]int{ingest.ColValueAmount: 1}, res.Run.Result.DegradedFields)
}

func TestRun_MissingSourceWritesNothing(t *testing.T) {
	files := allFixtures()
	delete(files, "awards_suppliers.csv")
	cfg := writeFixtures(t, files)

	res, err := New(cfg, nil, nil).Run(context.Background(), model.V3)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ingest.ErrSourceUnavailable)
	assert.Contains(t, err.Error(), "awards_suppliers.csv")

	_, statErr := os.Stat(cfg.Output.Dir)
	assert.True(t, os.IsNotExist(statErr), "no output may be written on failure")
}

func TestRun_SchemaMismatch(t *testing.T) {
	files := allFixtures()
	files["awards.csv"] = "_link_main,amount\nT1,5000\n"
	cfg := writeFixtures(t, files)

	_, err := New(cfg, nil, nil).Run(context.Background(), model.V1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ingest.ErrSchemaMismatch)
	assert.Contains(t, err.Error(), "value_amount")
}

func TestRunAll_FailureInLaterVersionComputeWritesNothing(t *testing.T) {
	files := allFixtures()
	delete(files, "contracts.csv")
	cfg := writeFixtures(t, files)

	_, err := New(cfg, nil, nil).RunAll(context.Background(), model.Versions())
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(cfg.Output.Dir, store.FileName(model.V1)))
	assert.True(t, os.IsNotExist(statErr))
}

// failingMirror replaces feature tables through the embedded store except
// for one version.
type failingMirror struct {
	store.Store
	failOn model.Version
}

func (f failingMirror) ReplaceFeatures(ctx context.Context, v model.Version, records []model.FeatureRecord) (int64, error) {
	if v == f.failOn {
		return 0, errors.New("disk full")
	}
	return f.Store.ReplaceFeatures(ctx, v, records)
}

func TestRunAll_WriteFailureKeepsPreviousOutputs(t *testing.T) {
	cfg := writeFixtures(t, allFixtures())
	sqlite, err := store.NewSQLite(filepath.Join(t.TempDir(), "mirror.db"), "training_data")
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() }) //nolint:errcheck
	require.NoError(t, sqlite.Migrate(context.Background()))

	first, err := New(cfg, sqlite, nil).RunAll(context.Background(), model.Versions())
	require.NoError(t, err)

	snapshot := func() map[string]string {
		out := map[string]string{}
		entries, err := os.ReadDir(cfg.Output.Dir)
		require.NoError(t, err)
		for _, e := range entries {
			data, err := os.ReadFile(filepath.Join(cfg.Output.Dir, e.Name()))
			require.NoError(t, err)
			out[e.Name()] = string(data)
		}
		return out
	}
	before := snapshot()
	require.Len(t, before, 6)

	files := allFixtures()
	files["awards.csv"] = "_link_main,value_amount\nT1,1\nT2,2\nT3,3\n"
	cfg2 := writeFixtures(t, files)
	cfg2.Output.Dir = cfg.Output.Dir

	_, err = New(cfg2, failingMirror{Store: sqlite, failOn: model.V3}, nil).RunAll(context.Background(), model.Versions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	assert.Equal(t, before, snapshot(), "snapshots, manifests and temp files must be unchanged")

	m, err := store.ReadManifest(filepath.Join(cfg.Output.Dir, store.FileName(model.V3)))
	require.NoError(t, err)
	assert.Equal(t, first[2].Run.ID, m.RunID)

	failed, err := sqlite.ListRuns(context.Background(), store.RunFilter{Status: model.RunStatusFailed})
	require.NoError(t, err)
	assert.Len(t, failed, 3)
}

func TestRunAll_AllVersions(t *testing.T) {
	cfg := writeFixtures(t, allFixtures())
	m := metrics.New()

	results, err := New(cfg, nil, m).RunAll(context.Background(), model.Versions())
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, v := range model.Versions() {
		assert.Equal(t, v, results[i].Run.Version)
		_, err := os.Stat(filepath.Join(cfg.Output.Dir, store.FileName(v)))
		assert.NoError(t, err)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("v3", "complete")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.ContractsLinked.WithLabelValues("v1")))
}

func TestRunAll_NoVersions(t *testing.T) {
	_, err := New(&config.Config{}, nil, nil).RunAll(context.Background(), nil)
	require.Error(t, err)
}

func TestRun_SQLiteMirror(t *testing.T) {
	cfg := writeFixtures(t, allFixtures())
	mirror, err := store.NewSQLite(filepath.Join(t.TempDir(), "mirror.db"), "training_data")
	require.NoError(t, err)
	t.Cleanup(func() { mirror.Close() }) //nolint:errcheck
	require.NoError(t, mirror.Migrate(context.Background()))

	res, err := New(cfg, mirror, nil).Run(context.Background(), model.V3)
	require.NoError(t, err)

	n, err := mirror.CountRows(context.Background(), model.V3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	run, err := mirror.GetRun(context.Background(), res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Result)
	assert.Equal(t, 2, run.Result.HighRisk)
}
