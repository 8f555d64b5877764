package ingest

import (
	"context"
	"database/sql"

	"github.com/civicdata/survload/internal/ent/mapping"
	"github.com/civicdata/survload/pkg/ent/model"
)

// Store is the schema contract the projection engine runs against. Every
// Ensure method is an atomic "insert, or fetch existing on conflict" over
// the entity's unique key; MergeAuthor is an atomic "fill fields that are
// still null". Begin, Commit and Rollback delimit the transactional unit
// the batch controller manages.
type Store interface {
	// Begin opens a new transactional unit.
	Begin(ctx context.Context) error

	// Commit finalizes the current transactional unit.
	Commit(ctx context.Context) error

	// Rollback discards the current transactional unit.
	Rollback(ctx context.Context) error

	// EnsureForm resolves a form identity triple, creating the form when
	// absent.
	EnsureForm(ctx context.Context, f mapping.FormInfo) (int64, error)

	// EnsureQuestion resolves a (form, code) question, creating it when
	// absent.
	EnsureQuestion(ctx context.Context, formID int64, q *mapping.QuestionMap) (int64, error)

	// EnsureOption upserts a (question, code) option, refreshing label and
	// position. It reports whether the option was created.
	EnsureOption(ctx context.Context, questionID int64, code, label string,
		position sql.NullInt32) (int64, bool, error)

	// OptionByLabel finds an option of a question by its label.
	OptionByLabel(ctx context.Context, questionID int64, label string) (int64, bool, error)

	// CountOptions returns the number of options a question has.
	CountOptions(ctx context.Context, questionID int64) (int, error)

	// AuthorByEmailHash finds an author by hashed email.
	AuthorByEmailHash(ctx context.Context, hash string) (int64, bool, error)

	// AuthorBySourceID finds an author by the exporter's identifier.
	AuthorBySourceID(ctx context.Context, srcID string) (int64, bool, error)

	// InsertAuthor creates a new author record.
	InsertAuthor(ctx context.Context, a model.Author) (int64, error)

	// MergeAuthor fills only the previously-null fields of an existing
	// author; populated fields are never overwritten.
	MergeAuthor(ctx context.Context, id int64, a model.Author) error

	// ContributionByFingerprint finds a contribution by its content
	// fingerprint.
	ContributionByFingerprint(ctx context.Context, fp string) (int64, bool, error)

	// InsertContribution creates a contribution, resolving to the existing
	// identity if the fingerprint is already present.
	InsertContribution(ctx context.Context, c model.Contribution) (int64, error)

	// AnswerText returns the current text of the (contribution, question)
	// answer slot.
	AnswerText(ctx context.Context, contributionID, questionID int64) (string, bool, error)

	// UpsertAnswerText sets the text of the answer slot.
	UpsertAnswerText(ctx context.Context, contributionID, questionID int64, text string) error

	// UpsertAnswerValue sets the opaque structured value of the answer
	// slot, replacing any previous value.
	UpsertAnswerValue(ctx context.Context, contributionID, questionID int64, value string) error

	// EnsureAnswer resolves the answer slot identity, creating an empty
	// slot when absent.
	EnsureAnswer(ctx context.Context, contributionID, questionID int64) (int64, error)

	// ReplaceAnswerOption makes optionID the only selected option of the
	// answer.
	ReplaceAnswerOption(ctx context.Context, answerID, optionID int64) error

	// AddAnswerOptions links options to the answer, keeping existing links.
	AddAnswerOptions(ctx context.Context, answerID int64, optionIDs []int64) error
}
