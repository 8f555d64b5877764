package survload

import (
	"github.com/civicdata/survload/internal/ent/ingest"
	"github.com/civicdata/survload/internal/ent/reindex"
)

// SurvLoad is an interface for loading survey exports and maintaining
// their search indexes.
type SurvLoad interface {
	// Ingest loads CSV survey exports into PostgreSQL.
	Ingest(ingest.Ingester) error

	// Reindex rebuilds the full-text index and cached statistics.
	Reindex(reindex.Reindexer) error
}
