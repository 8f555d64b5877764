package modelio

import (
	"github.com/civicdata/survload/pkg/ent/model"
	"github.com/jinzhu/gorm"
)

type modelio struct {
	db *gorm.DB
}

// New returns a new instance of Model
func New(db *gorm.DB) model.Model {
	res := modelio{db: db}
	return &res
}

// Migrate creates tables and indices in the database. Ingestion is
// additive, so existing tables are never dropped or reset.
func (m *modelio) Migrate() error {
	m.db.AutoMigrate(
		&model.Form{},
		&model.Question{},
		&model.Option{},
		&model.Author{},
		&model.Contribution{},
		&model.Answer{},
		&model.AnswerOption{},
		&model.QuestionStats{},
	)
	if m.db.Error != nil {
		return m.db.Error
	}

	// Author uniqueness is conditional: email hash when present, else the
	// exporter's author id. Partial unique indexes are the arbiter when
	// two runs race against the same store.
	qs := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS authors_email_hash_uq
		   ON authors (email_hash) WHERE email_hash IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS authors_source_id_uq
		   ON authors (source_author_id)
		   WHERE source_author_id IS NOT NULL AND email_hash IS NULL`,
	}
	for _, q := range qs {
		if err := m.db.Exec(q).Error; err != nil {
			return err
		}
	}

	return nil
}
