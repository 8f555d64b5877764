package ingest

// Ingester is the interface that wraps the Ingest method.
type Ingester interface {
	// Ingest loads the configured CSV files into the database.
	Ingest() error
}
