// Package ingestio is the PostgreSQL-backed implementation of the
// ingestion pipeline. It streams CSV records through the projection
// engine inside batched transactions and keeps a per-run key-value cache
// of contribution fingerprints.
package ingestio

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/civicdata/survload/internal/ent/ingest"
	"github.com/civicdata/survload/internal/ent/kv"
	"github.com/civicdata/survload/internal/ent/mapping"
	"github.com/civicdata/survload/internal/ent/row"
	"github.com/civicdata/survload/internal/io/csvio"
	"github.com/civicdata/survload/pkg/config"
	"github.com/civicdata/survload/pkg/io/modelio"
	"github.com/dustin/go-humanize"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"
)

type ingestio struct {
	cfg       config.Config
	m         *mapping.Mapping
	files     []string
	batch     string
	delimiter rune
	kv        kv.KeyVal

	db *pgxpool.Pool
	tx pgx.Tx
}

// New creates an Ingester for one mapping and a list of CSV files. It
// migrates the schema and connects to the database.
func New(
	cfg config.Config,
	m *mapping.Mapping,
	files []string,
	batch string,
	delimiter rune,
	kvStore kv.KeyVal,
) (ingest.Ingester, error) {
	res := ingestio{
		cfg:       cfg,
		m:         m,
		files:     files,
		batch:     batch,
		delimiter: delimiter,
		kv:        kvStore,
	}

	gdb, err := gormConn(cfg)
	if err != nil {
		return nil, err
	}
	if err = modelio.New(gdb).Migrate(); err != nil {
		slog.Error("Cannot migrate database schema", "error", err)
		return nil, err
	}
	if err = gdb.Close(); err != nil {
		return nil, err
	}

	db, err := pgxConn(cfg)
	if err != nil {
		return nil, err
	}
	res.db = db
	return &res, nil
}

// Ingest runs the pipeline: preload the vocabulary, then stream every
// file through the engine with a commit every CommitEvery kept rows. A
// row error rolls back the open batch and aborts the run; batches
// committed earlier stay.
func (l *ingestio) Ingest() error {
	ctx := context.Background()
	defer l.db.Close()

	if err := l.kv.Open(); err != nil {
		slog.Error("Cannot open key-value store", "error", err)
		return err
	}
	defer l.kv.Close()

	eng := ingest.NewEngine(l, l.m, l.batch,
		l.cfg.WarnOptions, l.cfg.MaxOptions)

	if err := l.Begin(ctx); err != nil {
		return err
	}
	if err := eng.Preload(ctx); err != nil {
		_ = l.Rollback(ctx)
		return err
	}

	var kept, skipped int
	for _, path := range l.files {
		k, s, err := l.ingestFile(ctx, eng, path, kept)
		if err != nil {
			_ = l.Rollback(ctx)
			return err
		}
		kept += k
		skipped += s
	}

	if err := l.Commit(ctx); err != nil {
		return err
	}
	slog.Info("Ingestion finished",
		"kept", kept, "skipped", skipped, "batch", l.batch)
	return nil
}

// ingestFile streams one file. The reader goroutine feeds a single
// projector goroutine, so rows are processed in file order and the text
// merge rules stay deterministic.
func (l *ingestio) ingestFile(
	ctx context.Context,
	eng *ingest.Engine,
	path string,
	keptBefore int,
) (int, int, error) {
	src, err := csvio.Open(path, l.delimiter)
	if err != nil {
		return 0, 0, err
	}
	defer src.Close()
	slog.Info("Ingesting file",
		"path", path, "delimiter", string(src.Delimiter()))

	headers := src.Headers()
	chRec := make(chan []string, 100)
	var kept, skipped int

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(chRec)
		return src.Read(ctx, chRec)
	})

	g.Go(func() error {
		for rec := range chRec {
			ok, err := eng.ProcessRow(ctx, row.New(headers, rec))
			if err != nil {
				slog.Error("Cannot process row",
					"path", path, "row", kept+skipped+1, "error", err)
				return err
			}
			if !ok {
				skipped++
				continue
			}
			kept++

			total := keptBefore + kept
			if total%l.cfg.LogEvery == 0 {
				fmt.Printf("\r%s", strings.Repeat(" ", 47))
				fmt.Printf("\rProcessed %s rows", humanize.Comma(int64(total)))
			}
			if total%l.cfg.CommitEvery == 0 {
				if err = l.Commit(ctx); err != nil {
					return err
				}
				if err = l.Begin(ctx); err != nil {
					return err
				}
			}
		}
		return nil
	})

	if err = g.Wait(); err != nil {
		return kept, skipped, err
	}
	fmt.Println()
	return kept, skipped, nil
}
