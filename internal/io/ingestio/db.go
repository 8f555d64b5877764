package ingestio

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/civicdata/survload/internal/ent/mapping"
	"github.com/civicdata/survload/pkg/ent/model"
	"github.com/gnames/gnfmt"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// querier is satisfied by both the pool and an open transaction, so row
// processing transparently happens inside the current batch.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (l *ingestio) q() querier {
	if l.tx != nil {
		return l.tx
	}
	return l.db
}

// Begin opens a new transactional unit.
func (l *ingestio) Begin(ctx context.Context) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return err
	}
	l.tx = tx
	return nil
}

// Commit finalizes the current transactional unit.
func (l *ingestio) Commit(ctx context.Context) error {
	if l.tx == nil {
		return nil
	}
	err := l.tx.Commit(ctx)
	l.tx = nil
	return err
}

// Rollback discards the current transactional unit.
func (l *ingestio) Rollback(ctx context.Context) error {
	if l.tx == nil {
		return nil
	}
	err := l.tx.Rollback(ctx)
	l.tx = nil
	return err
}

// EnsureForm resolves the form identity triple, creating the form on
// first sight. Missing version and source compare as empty strings.
func (l *ingestio) EnsureForm(
	ctx context.Context, f mapping.FormInfo,
) (int64, error) {
	var id int64
	err := l.q().QueryRow(ctx,
		`SELECT id FROM forms WHERE name = $1 AND version = $2 AND source = $3`,
		f.Name, f.Version, f.Source).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != pgx.ErrNoRows {
		return 0, err
	}
	err = l.q().QueryRow(ctx,
		`INSERT INTO forms (name, version, source) VALUES ($1, $2, $3) RETURNING id`,
		f.Name, f.Version, f.Source).Scan(&id)
	return id, err
}

// EnsureQuestion upserts a question on its (form, code) key.
func (l *ingestio) EnsureQuestion(
	ctx context.Context, formID int64, q *mapping.QuestionMap,
) (int64, error) {
	prompt := q.Prompt
	if prompt == "" {
		prompt = q.Code
	}
	var meta sql.NullString
	if len(q.Meta) > 0 {
		bs, err := gnfmt.GNjson{}.Encode(q.Meta)
		if err != nil {
			return 0, err
		}
		meta = sql.NullString{String: string(bs), Valid: true}
	}
	section := sql.NullString{String: q.Section, Valid: q.Section != ""}
	position := sql.NullInt32{Int32: int32(q.Position), Valid: q.Position != 0}

	var id int64
	err := l.q().QueryRow(ctx,
		`INSERT INTO questions
		   (form_id, question_code, prompt, section, position, type, meta_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (form_id, question_code)
		   DO UPDATE SET prompt = EXCLUDED.prompt
		 RETURNING id`,
		formID, q.Code, prompt, section, position, q.Type.String(), meta).
		Scan(&id)
	return id, err
}

// EnsureOption upserts an option on its (question, code) key, refreshing
// the label and keeping the first known position. The xmax trick tells an
// insert apart from a conflict-update.
func (l *ingestio) EnsureOption(
	ctx context.Context, questionID int64, code, label string,
	position sql.NullInt32,
) (int64, bool, error) {
	var id int64
	var created bool
	err := l.q().QueryRow(ctx,
		`INSERT INTO options (question_id, code, label, position)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (question_id, code) DO UPDATE SET
		   label = EXCLUDED.label,
		   position = COALESCE(EXCLUDED.position, options.position)
		 RETURNING id, (xmax = 0)`,
		questionID, code, label, position).Scan(&id, &created)
	return id, created, err
}

// OptionByLabel finds an option of a question by its exact label.
func (l *ingestio) OptionByLabel(
	ctx context.Context, questionID int64, label string,
) (int64, bool, error) {
	var id int64
	err := l.q().QueryRow(ctx,
		`SELECT id FROM options
		  WHERE question_id = $1 AND label = $2
		  ORDER BY id LIMIT 1`,
		questionID, label).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	return id, err == nil, err
}

// CountOptions returns the number of options a question has.
func (l *ingestio) CountOptions(
	ctx context.Context, questionID int64,
) (int, error) {
	var n int
	err := l.q().QueryRow(ctx,
		`SELECT count(*) FROM options WHERE question_id = $1`,
		questionID).Scan(&n)
	return n, err
}

// AuthorByEmailHash finds an author by hashed email.
func (l *ingestio) AuthorByEmailHash(
	ctx context.Context, hash string,
) (int64, bool, error) {
	return l.authorBy(ctx,
		`SELECT id FROM authors WHERE email_hash = $1 ORDER BY id LIMIT 1`, hash)
}

// AuthorBySourceID finds an author by the exporter's identifier.
func (l *ingestio) AuthorBySourceID(
	ctx context.Context, srcID string,
) (int64, bool, error) {
	return l.authorBy(ctx,
		`SELECT id FROM authors WHERE source_author_id = $1 ORDER BY id LIMIT 1`,
		srcID)
}

func (l *ingestio) authorBy(
	ctx context.Context, query, key string,
) (int64, bool, error) {
	var id int64
	err := l.q().QueryRow(ctx, query, key).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	return id, err == nil, err
}

// InsertAuthor creates a new author record.
func (l *ingestio) InsertAuthor(
	ctx context.Context, a model.Author,
) (int64, error) {
	var id int64
	err := l.q().QueryRow(ctx,
		`INSERT INTO authors
		   (source_author_id, name, email_hash, zipcode, city, age_range, gender)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		a.SourceAuthorID, a.Name, a.EmailHash, a.Zipcode, a.City,
		a.AgeRange, a.Gender).Scan(&id)
	return id, err
}

// MergeAuthor fills only the fields of an existing author that are still
// null; first write wins per field.
func (l *ingestio) MergeAuthor(
	ctx context.Context, id int64, a model.Author,
) error {
	_, err := l.q().Exec(ctx,
		`UPDATE authors SET
		   source_author_id = COALESCE(source_author_id, $2),
		   name = COALESCE(name, $3),
		   email_hash = COALESCE(email_hash, $4),
		   zipcode = COALESCE(zipcode, $5),
		   city = COALESCE(city, $6),
		   age_range = COALESCE(age_range, $7),
		   gender = COALESCE(gender, $8)
		 WHERE id = $1`,
		id, a.SourceAuthorID, a.Name, a.EmailHash, a.Zipcode, a.City,
		a.AgeRange, a.Gender)
	return err
}

// ContributionByFingerprint finds a contribution by its content
// fingerprint, consulting the per-run cache first.
func (l *ingestio) ContributionByFingerprint(
	ctx context.Context, fp string,
) (int64, bool, error) {
	if l.kv != nil {
		if bs, err := l.kv.GetValue([]byte(fp)); err == nil && bs != nil {
			id, err := strconv.ParseInt(string(bs), 10, 64)
			if err == nil {
				return id, true, nil
			}
		}
	}

	var id int64
	err := l.q().QueryRow(ctx,
		`SELECT id FROM contributions WHERE raw_hash = $1`, fp).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	l.cacheFingerprint(fp, id)
	return id, true, nil
}

// InsertContribution creates a contribution; an identical fingerprint
// created by a concurrent run resolves to the existing identity.
func (l *ingestio) InsertContribution(
	ctx context.Context, c model.Contribution,
) (int64, error) {
	var id int64
	err := l.q().QueryRow(ctx,
		`INSERT INTO contributions
		   (source_contribution_id, author_id, form_id, source, submitted_at,
		    title, import_batch_id, raw_hash, raw_json)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (raw_hash) DO UPDATE SET raw_hash = EXCLUDED.raw_hash
		 RETURNING id`,
		c.SourceContributionID, c.AuthorID, c.FormID, c.Source, c.SubmittedAt,
		c.Title, c.ImportBatchID, c.RawHash, c.RawJSON).Scan(&id)
	if err != nil {
		return 0, err
	}
	l.cacheFingerprint(c.RawHash, id)
	return id, nil
}

func (l *ingestio) cacheFingerprint(fp string, id int64) {
	if l.kv == nil {
		return
	}
	// best effort; the cache only saves lookups
	_ = l.kv.SetValue([]byte(fp), []byte(strconv.FormatInt(id, 10)))
}

// AnswerText returns the current text of the answer slot.
func (l *ingestio) AnswerText(
	ctx context.Context, contributionID, questionID int64,
) (string, bool, error) {
	var text string
	err := l.q().QueryRow(ctx,
		`SELECT COALESCE(text, '') FROM answers
		  WHERE contribution_id = $1 AND question_id = $2`,
		contributionID, questionID).Scan(&text)
	if err == pgx.ErrNoRows {
		return "", false, nil
	}
	return text, err == nil, err
}

// UpsertAnswerText sets the text of the answer slot.
func (l *ingestio) UpsertAnswerText(
	ctx context.Context, contributionID, questionID int64, text string,
) error {
	_, err := l.q().Exec(ctx,
		`INSERT INTO answers (contribution_id, question_id, position, text)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (contribution_id, question_id)
		   DO UPDATE SET text = EXCLUDED.text`,
		contributionID, questionID, text)
	return err
}

// UpsertAnswerValue replaces the opaque structured value of the slot.
func (l *ingestio) UpsertAnswerValue(
	ctx context.Context, contributionID, questionID int64, value string,
) error {
	_, err := l.q().Exec(ctx,
		`INSERT INTO answers (contribution_id, question_id, position, value_json)
		 VALUES ($1, $2, 1, $3)
		 ON CONFLICT (contribution_id, question_id)
		   DO UPDATE SET value_json = EXCLUDED.value_json`,
		contributionID, questionID, value)
	return err
}

// EnsureAnswer resolves the answer slot identity, creating an empty slot
// when absent.
func (l *ingestio) EnsureAnswer(
	ctx context.Context, contributionID, questionID int64,
) (int64, error) {
	var id int64
	err := l.q().QueryRow(ctx,
		`INSERT INTO answers (contribution_id, question_id, position)
		 VALUES ($1, $2, 1)
		 ON CONFLICT (contribution_id, question_id)
		   DO UPDATE SET position = answers.position
		 RETURNING id`,
		contributionID, questionID).Scan(&id)
	return id, err
}

// ReplaceAnswerOption makes optionID the only selection of the answer.
func (l *ingestio) ReplaceAnswerOption(
	ctx context.Context, answerID, optionID int64,
) error {
	_, err := l.q().Exec(ctx,
		`DELETE FROM answer_options WHERE answer_id = $1 AND option_id <> $2`,
		answerID, optionID)
	if err != nil {
		return err
	}
	_, err = l.q().Exec(ctx,
		`INSERT INTO answer_options (answer_id, option_id)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		answerID, optionID)
	return err
}

// AddAnswerOptions links options to the answer; existing links persist.
func (l *ingestio) AddAnswerOptions(
	ctx context.Context, answerID int64, optionIDs []int64,
) error {
	for _, oid := range optionIDs {
		_, err := l.q().Exec(ctx,
			`INSERT INTO answer_options (answer_id, option_id)
			 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			answerID, oid)
		if err != nil {
			return err
		}
	}
	return nil
}
