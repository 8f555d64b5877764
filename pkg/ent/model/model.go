package model

import (
	"database/sql"
)

// Form is one survey/questionnaire definition. A form is identified by its
// (name, version, source) triple; missing version or source is stored as an
// empty string so the triple stays comparable.
type Form struct {
	ID int64 `gorm:"primary_key;auto_increment"`

	// Name is the title of the form as given by the mapping.
	Name string `gorm:"type:varchar(255);not null"`

	// Version distinguishes revisions of the same questionnaire.
	Version string `gorm:"type:varchar(50);not null;default:''"`

	// Source is the provenance tag of the form (for example the platform
	// the export came from).
	Source string `gorm:"type:varchar(255);not null;default:''"`
}

// Question is one addressable field of a form. Questions are created during
// preload from the mapping and never mutated by row processing.
type Question struct {
	ID     int64 `gorm:"primary_key;auto_increment"`
	FormID int64 `gorm:"not null;unique_index:questions_form_code_idx"`

	// QuestionCode is the operator-chosen stable code, unique within a form.
	QuestionCode string `gorm:"type:varchar(100);not null;unique_index:questions_form_code_idx"`

	// Prompt is the question text shown to respondents.
	Prompt string `gorm:"type:text;not null"`

	// Section groups questions of the original questionnaire.
	Section sql.NullString `gorm:"type:varchar(255)"`

	// Position is the question's ordinal inside the form.
	Position sql.NullInt32

	// Type is the question kind: text, free_text, number, scale, date,
	// single_choice or multi_choice.
	Type string `gorm:"type:varchar(20);not null"`

	// MetaJSON keeps unstructured metadata from the mapping.
	MetaJSON sql.NullString `gorm:"type:text"`
}

// Option is one enumerated value of a question, either declared statically
// in the mapping or minted dynamically from observed data. The code is
// stable; label and position may be refreshed on re-declaration.
type Option struct {
	ID         int64 `gorm:"primary_key;auto_increment"`
	QuestionID int64 `gorm:"not null;unique_index:options_question_code_idx"`

	// Code is a slug derived from the label, unique within a question.
	Code string `gorm:"type:varchar(64);not null;unique_index:options_question_code_idx"`

	// Label is the human-readable value as it appears in the data.
	Label string `gorm:"type:text;not null"`

	// Position is the option's ordinal inside the question.
	Position sql.NullInt32

	// MetaJSON keeps unstructured metadata from the mapping.
	MetaJSON sql.NullString `gorm:"type:text"`
}

// Author is a respondent. Authors are matched by email hash when present,
// otherwise by the exporter's author identifier. Fields are filled only
// where previously null; an existing value is never overwritten.
type Author struct {
	ID int64 `gorm:"primary_key;auto_increment"`

	// SourceAuthorID is the author identifier from the export.
	SourceAuthorID sql.NullString `gorm:"type:varchar(255);index:authors_source_id"`

	Name sql.NullString `gorm:"type:varchar(255)"`

	// EmailHash is a hash of the author's email computed upstream; the raw
	// address never reaches this system.
	EmailHash sql.NullString `gorm:"type:varchar(255);index:authors_email_hash"`

	Zipcode  sql.NullString `gorm:"type:varchar(20)"`
	City     sql.NullString `gorm:"type:varchar(255)"`
	AgeRange sql.NullString `gorm:"type:varchar(50)"`
	Gender   sql.NullString `gorm:"type:varchar(50)"`
}

// Contribution is one ingested respondent submission. Its identity is the
// fingerprint of the full normalized row content, which makes re-ingestion
// of the same row a no-op.
type Contribution struct {
	ID int64 `gorm:"primary_key;auto_increment"`

	// SourceContributionID is the submission identifier from the export.
	SourceContributionID sql.NullString `gorm:"type:varchar(255);index:contributions_source_id"`

	AuthorID sql.NullInt64 `gorm:"index:contributions_author"`
	FormID   int64         `gorm:"not null;index:contributions_form"`

	// Source is a provenance tag taken verbatim from the mapping defaults.
	Source sql.NullString `gorm:"type:varchar(255)"`

	// SubmittedAt is kept as an opaque string; no date parsing happens
	// during ingestion.
	SubmittedAt sql.NullString `gorm:"type:varchar(100)"`

	Title sql.NullString `gorm:"type:varchar(500)"`

	// ImportBatchID labels the ingestion run that created the record.
	ImportBatchID sql.NullString `gorm:"type:varchar(255);index:contributions_batch"`

	// RawHash is the content fingerprint of the normalized row.
	RawHash string `gorm:"type:uuid;not null;unique_index:contributions_raw_hash_idx"`

	// RawJSON is the canonical snapshot of the row for audit.
	RawJSON string `gorm:"type:text;not null"`
}

// Answer is the materialized response to one question within one
// contribution. There is at most one answer per (contribution, question).
type Answer struct {
	ID             int64 `gorm:"primary_key;auto_increment"`
	ContributionID int64 `gorm:"not null;unique_index:answers_slot_idx"`
	QuestionID     int64 `gorm:"not null;unique_index:answers_slot_idx"`

	Position int32 `gorm:"not null;default:1"`

	// Text holds textual answers, possibly merged from several source
	// columns.
	Text sql.NullString `gorm:"type:text"`

	// ValueJSON holds opaque scalar answers (number, scale, date) as a
	// single-field JSON envelope.
	ValueJSON sql.NullString `gorm:"type:text"`
}

// AnswerOption links an answer to one selected option.
type AnswerOption struct {
	AnswerID int64 `gorm:"primary_key;auto_increment:false"`
	OptionID int64 `gorm:"primary_key;auto_increment:false"`
}

// QuestionStats caches per-question answer counts for the read side. It is
// refreshed by the reindex step, never during row processing.
type QuestionStats struct {
	QuestionID   int64 `gorm:"primary_key;auto_increment:false"`
	AnswersCount int64 `gorm:"not null;default:0"`
}

// Model is an interface for database migrations.
type Model interface {
	// Migrate creates tables and indices in the database.
	Migrate() error
}
