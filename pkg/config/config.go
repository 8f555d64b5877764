package config

import (
	"os"
	"path/filepath"
)

// Config is a struct that holds configuration parameters for the package.
type Config struct {
	// CacheDir is a directory for the per-run fingerprint key-value store.
	CacheDir string

	// PgHost is a host name for PostgreSQL.
	PgHost string

	// PgUser is a user name for PostgreSQL.
	PgUser string

	// PgPass is a password for PostgreSQL.
	PgPass string

	// PgDB is a database name for PostgreSQL.
	PgDB string

	// CommitEvery is a number of projected rows per transaction.
	CommitEvery int

	// LogEvery is a number of rows between progress lines.
	LogEvery int

	// WarnOptions is the option count per question above which dynamic
	// option creation starts to warn.
	WarnOptions int

	// MaxOptions is the option count per question at which dynamic option
	// creation aborts the run.
	MaxOptions int
}

// Option type allows to change settings for Config.
type Option func(*Config)

// OptCacheDir sets a directory for the fingerprint key-value store.
func OptCacheDir(d string) Option {
	return func(cfg *Config) {
		cfg.CacheDir = d
	}
}

// OptPgHost sets host name for PostgreSQL
func OptPgHost(h string) Option {
	return func(cfg *Config) {
		cfg.PgHost = h
	}
}

// OptPgUser sets user for PostgreSQL
func OptPgUser(u string) Option {
	return func(cfg *Config) {
		cfg.PgUser = u
	}
}

// OptPgPass sets password for PostgreSQL
func OptPgPass(p string) Option {
	return func(cfg *Config) {
		cfg.PgPass = p
	}
}

// OptPgDB sets database name for PostgreSQL
func OptPgDB(d string) Option {
	return func(cfg *Config) {
		cfg.PgDB = d
	}
}

// OptCommitEvery sets the transactional batch size.
func OptCommitEvery(n int) Option {
	return func(cfg *Config) {
		cfg.CommitEvery = n
	}
}

// OptLogEvery sets the progress reporting interval.
func OptLogEvery(n int) Option {
	return func(cfg *Config) {
		cfg.LogEvery = n
	}
}

// OptWarnOptions sets the per-question option count warning threshold.
func OptWarnOptions(n int) Option {
	return func(cfg *Config) {
		cfg.WarnOptions = n
	}
}

// OptMaxOptions sets the per-question option count hard ceiling.
func OptMaxOptions(n int) Option {
	return func(cfg *Config) {
		cfg.MaxOptions = n
	}
}

func New(opts ...Option) Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		cacheDir = os.TempDir()
	}
	cacheDir = filepath.Join(cacheDir, "survload")

	res := Config{
		CacheDir:    cacheDir,
		PgHost:      "0.0.0.0",
		PgUser:      "postgres",
		PgPass:      "postgres",
		PgDB:        "survey",
		CommitEvery: 10_000,
		LogEvery:    2_000,
		WarnOptions: 50,
		MaxOptions:  500,
	}

	for _, opt := range opts {
		opt(&res)
	}

	return res
}
