package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niruguard/niruguard/internal/model"
)

func sampleRecords() []model.FeatureRecord {
	return []model.FeatureRecord{
		{
			Amount:                5000,
			IsDirectProcurement:   1,
			IsRoundAmount:         1,
			SupplierAwardCount:    2,
			NewSupplierDirectDeal: 1,
			RiskScore:             5,
			RiskLabel:             1,
			SupplierID:            "KE-PPRA-001",
			SupplierName:          "Acme Ltd",
		},
		{
			Amount:             1234567.5,
			SupplierAwardCount: 7,
			SupplierID:         "KE-PPRA-002",
			SupplierName:       "Baraka, Traders",
		},
	}
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "training_data.csv", FileName(model.V1))
	assert.Equal(t, "training_data_v2.csv", FileName(model.V2))
	assert.Equal(t, "training_data_v3.csv", FileName(model.V3))
}

func TestStageCSV_Header(t *testing.T) {
	for _, v := range model.Versions() {
		t.Run(v.String(), func(t *testing.T) {
			dir := t.TempDir()
			path, err := writeCSV(dir, v, sampleRecords())
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, FileName(v)), path)

			data, err := os.ReadFile(path)
			require.NoError(t, err)
			lines := strings.Split(strings.TrimSpace(string(data)), "\n")
			require.Len(t, lines, 3)
			assert.Equal(t, strings.Join(model.OutputColumns(v), ","), lines[0])
		})
	}
}

func TestStageCSV_PlainFloats(t *testing.T) {
	dir := t.TempDir()
	path, err := writeCSV(dir, model.V2, sampleRecords())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "1234567.5,")
	assert.NotContains(t, string(data), "E+")
}

func TestStageCSV_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path, err := writeCSV(dir, model.V3, sampleRecords())
	require.NoError(t, err)

	got, err := ReadCSV(path, model.V3)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), got)
}

func TestStageCSV_V1DropsSupplierColumns(t *testing.T) {
	dir := t.TempDir()
	recs := []model.FeatureRecord{{Amount: 10, MissingDataCount: 2, RiskScore: 1, SupplierID: "x"}}
	path, err := writeCSV(dir, model.V1, recs)
	require.NoError(t, err)

	got, err := ReadCSV(path, model.V1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 2, got[0].MissingDataCount)
	assert.Empty(t, got[0].SupplierID)
}

func TestStageCSV_Overwrites(t *testing.T) {
	dir := t.TempDir()
	_, err := writeCSV(dir, model.V2, sampleRecords())
	require.NoError(t, err)
	path, err := writeCSV(dir, model.V2, sampleRecords()[:1])
	require.NoError(t, err)

	got, err := ReadCSV(path, model.V2)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestStageCSV_EmptyTable(t *testing.T) {
	dir := t.TempDir()
	path, err := writeCSV(dir, model.V1, nil)
	require.NoError(t, err)

	got, err := ReadCSV(path, model.V1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStageCSV_UnknownVersion(t *testing.T) {
	dir := t.TempDir()
	_, err := writeCSV(dir, model.Version(9), sampleRecords())
	require.Error(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestReadCSV_MissingColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data_v3.csv")
	require.NoError(t, os.WriteFile(path, []byte("amount,risk_label\n10,1\n"), 0o644))

	_, err := ReadCSV(path, model.V3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store: decode")
}

func TestReadCSV_Empty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "training_data.csv")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	_, err := ReadCSV(path, model.V1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "is empty")
}

func TestReadCSV_NotFound(t *testing.T) {
	_, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"), model.V1)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
