package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/niruguard/niruguard/internal/config"
	"github.com/niruguard/niruguard/internal/model"
)

func TestTableName(t *testing.T) {
	tests := []struct {
		prefix string
		v      model.Version
		want   string
	}{
		{"training_data", model.V1, "training_data"},
		{"training_data", model.V2, "training_data_v2"},
		{"features", model.V3, "features_v3"},
		{"", model.V3, "training_data_v3"},
		{"analytics.features", model.V2, "analytics.features_v2"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, TableName(tt.prefix, tt.v))
		})
	}
}

func TestFeatureRows_FollowOutputColumns(t *testing.T) {
	rec := sampleRecords()[0]
	rows := featureRows(model.V3, []model.FeatureRecord{rec})
	require.Len(t, rows, 1)
	require.Len(t, rows[0], len(model.OutputColumns(model.V3)))

	assert.Equal(t, 5000.0, rows[0][0])
	assert.Equal(t, "KE-PPRA-001", rows[0][len(rows[0])-2])
	assert.Equal(t, "Acme Ltd", rows[0][len(rows[0])-1])
}

func TestFeatureColumns_Types(t *testing.T) {
	cols := featureColumns(model.V1, dialectPostgres)
	require.Len(t, cols, 6)
	assert.Equal(t, "DOUBLE PRECISION", cols[0].Type)
	assert.Equal(t, "INTEGER", cols[1].Type)

	cols = featureColumns(model.V3, dialectSQLite)
	assert.Equal(t, "REAL", cols[0].Type)
	assert.Equal(t, "TEXT", cols[len(cols)-1].Type)
}

func TestOpen_CSVHasNoMirror(t *testing.T) {
	st, err := Open(context.Background(), config.StoreConfig{Driver: DriverCSV}, t.TempDir())
	require.NoError(t, err)
	assert.Nil(t, st)
}

func TestOpen_SQLiteDefaultsIntoOutputDir(t *testing.T) {
	out := filepath.Join(t.TempDir(), "processed")
	st, err := Open(context.Background(), config.StoreConfig{Driver: DriverSQLite, TablePrefix: "training_data"}, out)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck

	_, err = os.Stat(filepath.Join(out, DefaultSQLiteFile))
	assert.NoError(t, err)

	_, err = st.ReplaceFeatures(context.Background(), model.V1, sampleRecords())
	assert.NoError(t, err)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: "mongo"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported driver")
}

func TestOpen_PostgresBadURL(t *testing.T) {
	_, err := Open(context.Background(), config.StoreConfig{Driver: DriverPostgres, DatabaseURL: "postgres://localhost:notaport/db"}, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: parse config")
}
