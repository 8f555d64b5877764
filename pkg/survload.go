package survload

import (
	"github.com/civicdata/survload/internal/ent/ingest"
	"github.com/civicdata/survload/internal/ent/reindex"
	"github.com/civicdata/survload/pkg/config"
)

// Version and Build are set during compilation.
var (
	Version = "v0.1.0"
	Build   string
)

// survload is an implementation of SurvLoad interface.
type survload struct {
	cfg config.Config
}

// New creates a new instance of SurvLoad.
func New(
	cfg config.Config,
) SurvLoad {
	res := survload{
		cfg: cfg}
	return &res
}

// Ingest loads CSV survey exports into PostgreSQL.
func (s *survload) Ingest(i ingest.Ingester) error {
	return i.Ingest()
}

// Reindex rebuilds the full-text index and cached statistics.
func (s *survload) Reindex(r reindex.Reindexer) error {
	return r.Reindex()
}
