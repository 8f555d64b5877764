package cmd

import (
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/civicdata/survload/internal/ent/mapping"
	"github.com/civicdata/survload/internal/ent/reindex"
	"github.com/civicdata/survload/internal/io/csvio"
	"github.com/civicdata/survload/internal/io/ingestio"
	"github.com/civicdata/survload/internal/io/kvio"
	"github.com/civicdata/survload/internal/io/reindexio"
	survload "github.com/civicdata/survload/pkg"
	"github.com/civicdata/survload/pkg/config"
	"github.com/spf13/cobra"
)

// ingestCmd represents the ingest command
var ingestCmd = &cobra.Command{
	Use:   "ingest [flags] file ...",
	Short: "Loads CSV survey exports into PostgreSQL using a mapping file",
	Long: `Ingest streams one or more CSV exports (plain, .gz or .zip) through
the mapping-driven projection engine into PostgreSQL. File arguments may
be glob patterns. Re-ingesting the same rows is idempotent.`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg := config.New(opts...)

		mappingPath, _ := cmd.Flags().GetString("mapping")
		batch, _ := cmd.Flags().GetString("batch")
		delimStr, _ := cmd.Flags().GetString("delimiter")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		deferIndex, _ := cmd.Flags().GetBool("defer-index")

		m, err := mapping.FromFile(mappingPath)
		if err != nil {
			slog.Error("Cannot read mapping file", "path", mappingPath, "error", err)
			os.Exit(1)
		}
		v := m.Validate()
		for _, w := range v.Warnings {
			slog.Warn("Mapping warning", "warning", w)
		}
		if !v.OK() {
			for _, e := range v.Errors {
				slog.Error("Mapping error", "error", e)
			}
			os.Exit(1)
		}

		files := expandGlobs(args)
		if len(files) == 0 {
			slog.Error("No input files match the given patterns", "patterns", args)
			os.Exit(1)
		}

		var delimiter rune
		if delimStr != "" {
			delimiter = []rune(delimStr)[0]
		}
		if batch == "" {
			batch = defaultBatch()
		}

		if dryRun {
			checkSources(files, delimiter)
			return
		}

		kvStore, err := kvio.New(filepath.Join(cfg.CacheDir, "fingerprints"))
		if err != nil {
			slog.Error("Cannot create key-value store", "error", err)
			os.Exit(1)
		}

		sl := survload.New(cfg)

		var rx reindex.Reindexer
		if deferIndex {
			rx, err = reindexio.New(cfg)
			if err != nil {
				slog.Error("Cannot create Reindexer", "error", err)
				os.Exit(1)
			}
			if err = rx.Drop(); err != nil {
				os.Exit(1)
			}
		}

		ing, err := ingestio.New(cfg, m, files, batch, delimiter, kvStore)
		if err != nil {
			slog.Error("Cannot create Ingester", "error", err)
			os.Exit(1)
		}
		if err = sl.Ingest(ing); err != nil {
			slog.Error("Cannot ingest files", "error", err)
			os.Exit(1)
		}

		if rx != nil {
			if err = sl.Reindex(rx); err != nil {
				slog.Error("Cannot rebuild indexes", "error", err)
				os.Exit(1)
			}
		}
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().StringP("mapping", "m", "",
		"Path to the YAML mapping file (required)")
	_ = ingestCmd.MarkFlagRequired("mapping")
	ingestCmd.Flags().StringP("batch", "b", "",
		"Import batch label, default import_<user>")
	ingestCmd.Flags().StringP("delimiter", "d", "",
		"CSV delimiter, detected per file when empty")
	ingestCmd.Flags().Bool("dry-run", false,
		"Validate the mapping and input files without touching the database")
	ingestCmd.Flags().Bool("defer-index", false,
		"Drop the full-text index before the load, rebuild it after")
}

// expandGlobs resolves glob patterns to a sorted, deduplicated file list.
// A pattern without glob metacharacters passes through as-is.
func expandGlobs(patterns []string) []string {
	seen := make(map[string]struct{})
	var res []string
	for _, p := range patterns {
		matches, err := filepath.Glob(p)
		if err != nil || len(matches) == 0 {
			matches = []string{p}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			res = append(res, m)
		}
	}
	sort.Strings(res)
	return res
}

func defaultBatch() string {
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}
	return "import_" + user
}

// checkSources opens every input file and reads its header, so a dry run
// surfaces unreadable files and delimiter problems without a database.
func checkSources(files []string, delimiter rune) {
	for _, path := range files {
		src, err := csvio.Open(path, delimiter)
		if err != nil {
			slog.Error("Cannot open input file", "path", path, "error", err)
			os.Exit(1)
		}
		slog.Info("Input file looks readable", "path", path,
			"columns", len(src.Headers()),
			"delimiter", string(src.Delimiter()))
		src.Close()
	}
	slog.Info("Dry run complete, nothing was written")
}
