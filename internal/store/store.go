// Package store persists feature tables and run records. The CSV snapshot
// under the output directory is the table of record; SQLite and Postgres
// stores mirror it for SQL consumers.
package store

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/niruguard/niruguard/internal/db"
	"github.com/niruguard/niruguard/internal/model"
)

// Store drivers accepted by store.driver.
const (
	DriverCSV      = "csv"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store mirrors feature tables into a database.
type Store interface {
	// ReplaceFeatures overwrites the feature table of v with records in one
	// transaction and returns the number of rows written.
	ReplaceFeatures(ctx context.Context, v model.Version, records []model.FeatureRecord) (int64, error)

	// SaveRun inserts or updates a run record.
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}

// ErrRunNotFound is returned by GetRun for an unknown run id.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter narrows ListRuns. Zero fields match everything; Limit <= 0
// uses DefaultRunLimit.
type RunFilter struct {
	Version model.Version
	Status  model.RunStatus
	Limit   int
}

// DefaultRunLimit caps ListRuns when the filter sets no limit.
const DefaultRunLimit = 50

func (f RunFilter) limit() int {
	if f.Limit <= 0 {
		return DefaultRunLimit
	}
	return f.Limit
}

// TableName returns the mirror table of a version: prefix for v1 and
// prefix_v2 / prefix_v3 after that, matching the CSV file names.
func TableName(prefix string, v model.Version) string {
	if prefix == "" {
		prefix = "training_data"
	}
	if v == model.V1 {
		return prefix
	}
	return fmt.Sprintf("%s_%s", prefix, v)
}

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// featureColumns returns the typed mirror columns of version v in output
// order.
func featureColumns(v model.Version, d dialect) []db.Column {
	names := model.OutputColumns(v)
	cols := make([]db.Column, len(names))
	for i, name := range names {
		cols[i] = db.Column{Name: name, Type: columnType(name, d)}
	}
	return cols
}

func columnType(name string, d dialect) string {
	switch name {
	case model.ColAmount, model.ColRiskScore:
		if d == dialectPostgres {
			return "DOUBLE PRECISION"
		}
		return "REAL"
	case model.ColSupplierID, model.ColSupplierName:
		return "TEXT"
	default:
		return "INTEGER"
	}
}

// featureRows flattens records into column-ordered value rows.
func featureRows(v model.Version, records []model.FeatureRecord) [][]any {
	names := model.OutputColumns(v)
	rows := make([][]any, len(records))
	for i, r := range records {
		row := make([]any, len(names))
		for j, name := range names {
			row[j] = columnValue(r, name)
		}
		rows[i] = row
	}
	return rows
}

func columnValue(r model.FeatureRecord, name string) any {
	switch name {
	case model.ColAmount:
		return r.Amount
	case model.ColIsDirectProcurement:
		return r.IsDirectProcurement
	case model.ColIsRoundAmount:
		return r.IsRoundAmount
	case model.ColMissingDataCount:
		return r.MissingDataCount
	case model.ColSuspiciousTiming:
		return r.SuspiciousTiming
	case model.ColSupplierAwardCount:
		return r.SupplierAwardCount
	case model.ColNewSupplierDirectDeal:
		return r.NewSupplierDirectDeal
	case model.ColRiskScore:
		return r.RiskScore
	case model.ColRiskLabel:
		return r.RiskLabel
	case model.ColSupplierID:
		return r.SupplierID
	case model.ColSupplierName:
		return r.SupplierName
	default:
		return nil
	}
}
