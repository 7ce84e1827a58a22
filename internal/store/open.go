package store

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/niruguard/niruguard/internal/config"
)

// DefaultSQLiteFile is the database file used when store.database_url is
// empty for the sqlite driver.
const DefaultSQLiteFile = "niruguard.db"

// Open returns the migrated mirror store selected by cfg.Driver. The csv
// driver has no mirror: Open returns a nil Store and no error.
func Open(ctx context.Context, cfg config.StoreConfig, outputDir string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", DriverCSV:
		return nil, nil
	case DriverSQLite:
		dsn := cfg.DatabaseURL
		if dsn == "" {
			if err := os.MkdirAll(outputDir, 0o755); err != nil {
				return nil, eris.Wrapf(err, "store: create output dir %s", outputDir)
			}
			dsn = filepath.Join(outputDir, DefaultSQLiteFile)
		}
		st, err = NewSQLite(dsn, cfg.TablePrefix)
	case DriverPostgres:
		st, err = NewPostgres(ctx, cfg.DatabaseURL, cfg.TablePrefix, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}
