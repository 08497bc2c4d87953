package database

import (
	"context"

	"refledger/internal/config"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var log = config.InitLogger()

// Postgres owns the ledger's connection pool. Open it with Connect, then
// Migrate before handing Db to the repositories.
type Postgres struct {
	Db *sqlx.DB
}

// Connect opens the pool described by cfg and waits until the server
// answers. The pool limits come from the same config.
func Connect(ctx context.Context, cfg *config.PostgresConfig) (*Postgres, error) {
	db, err := sqlx.Open("postgres", cfg.DSN())
	if err != nil {
		log.Error("Failed to open database: ", err)
		return nil, err
	}
	configurePool(db, cfg)

	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := db.PingContext(ctx); err != nil {
		log.Errorf("Database %s@%s:%s is unreachable: %v", cfg.DBName, cfg.Host, cfg.Port, err)
		_ = db.Close()
		return nil, err
	}

	return &Postgres{Db: db}, nil
}

func configurePool(db *sqlx.DB, cfg *config.PostgresConfig) {
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
}

func (p *Postgres) Close() error {
	if err := p.Db.Close(); err != nil {
		log.Error("Error closing database: ", err)
		return err
	}
	return nil
}
