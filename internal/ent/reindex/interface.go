package reindex

// Reindexer maintains the search indexes and cached statistics that are
// rebuilt around ingestion rather than during it.
type Reindexer interface {
	// Drop removes the answers full-text index before a heavy load.
	Drop() error

	// Reindex recreates the answers full-text index and refreshes cached
	// per-question statistics.
	Reindex() error
}
