// Package reindexio maintains the PostgreSQL search index over answer
// text and the cached per-question statistics. Both are dropped and
// rebuilt around heavy loads instead of being kept current row by row.
package reindexio

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/civicdata/survload/internal/ent/reindex"
	"github.com/civicdata/survload/pkg/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

type reindexio struct {
	cfg config.Config
	db  *pgxpool.Pool
}

// New creates a Reindexer connected to the configured database.
func New(cfg config.Config) (reindex.Reindexer, error) {
	db, err := pgxConn(cfg)
	if err != nil {
		return nil, err
	}
	return &reindexio{cfg: cfg, db: db}, nil
}

// Drop removes the full-text index so bulk inserts do not pay for index
// maintenance.
func (r *reindexio) Drop() error {
	ctx := context.Background()
	slog.Info("Dropping answers full-text index")
	_, err := r.db.Exec(ctx, `DROP INDEX IF EXISTS answers_text_fts_idx`)
	if err != nil {
		slog.Error("Cannot drop full-text index", "error", err)
	}
	return err
}

// Reindex recreates the full-text index and refreshes question_stats from
// the answers table.
func (r *reindexio) Reindex() error {
	ctx := context.Background()

	slog.Info("Creating answers full-text index")
	_, err := r.db.Exec(ctx,
		`CREATE INDEX IF NOT EXISTS answers_text_fts_idx
		   ON answers USING gin(to_tsvector('french', coalesce(text, '')))`)
	if err != nil {
		slog.Error("Cannot create full-text index", "error", err)
		return err
	}

	slog.Info("Refreshing question statistics")
	_, err = r.db.Exec(ctx,
		`INSERT INTO question_stats (question_id, answers_count)
		 SELECT q.id,
		        (SELECT count(*) FROM answers a WHERE a.question_id = q.id)
		   FROM questions q
		 ON CONFLICT (question_id)
		   DO UPDATE SET answers_count = EXCLUDED.answers_count`)
	if err != nil {
		slog.Error("Cannot refresh question statistics", "error", err)
		return err
	}
	return nil
}

func pgxConn(cfg config.Config) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.PgHost, cfg.PgUser, cfg.PgPass, cfg.PgDB)
	pgxCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		slog.Error("Cannot parse pgx config", "error", err)
		return nil, err
	}
	pgxCfg.MaxConns = 5
	db, err := pgxpool.NewWithConfig(context.Background(), pgxCfg)
	if err != nil {
		slog.Error("Cannot connect to database", "error", err)
		return nil, err
	}
	return db, nil
}
