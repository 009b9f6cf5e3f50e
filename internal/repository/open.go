package repository

import (
	"context"
	"fmt"

	"github.com/mr1hm/fixr/internal/config"
)

// Open returns the store selected by cfg.Driver.
func Open(ctx context.Context, cfg config.StoreConfig) (ReportRepository, error) {
	switch cfg.Driver {
	case config.StoreMongo:
		store, err := NewMongoStore(ctx, cfg.MongoURI, cfg.MongoDB, cfg.ReportsCollection)
		if err != nil {
			return nil, err
		}
		return store, nil
	case config.StoreSQLite, "":
		db, err := NewSQLiteDB(cfg.Path)
		if err != nil {
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown store driver: %s", cfg.Driver)
	}
}
