// Package ingest contains the mapping-driven row projection engine: the
// logic that turns one normalized CSV row into a content-addressed
// contribution, typed answers and, where needed, dynamically minted
// options. The engine is storage-agnostic; it talks to a Store that
// enforces the schema's unique keys.
package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/civicdata/survload/internal/ent/mapping"
	"github.com/civicdata/survload/internal/ent/row"
	"github.com/civicdata/survload/internal/str"
	"github.com/civicdata/survload/pkg/ent/model"
	"github.com/gnames/gnfmt"
)

// Engine projects rows of one form according to its mapping. It is not
// safe for concurrent use; rows are processed one at a time in input
// order, which keeps the merge rules deterministic.
type Engine struct {
	st         Store
	m          *mapping.Mapping
	vocab      *Vocab
	batch      string
	warnLimit  int
	maxOptions int
	enc        gnfmt.Encoder
}

// NewEngine creates an Engine over a store and a validated mapping. The
// batch label is attached to every contribution the run creates.
func NewEngine(st Store, m *mapping.Mapping, batch string,
	warnLimit, maxOptions int) *Engine {
	return &Engine{
		st:         st,
		m:          m,
		vocab:      NewVocab(),
		batch:      batch,
		warnLimit:  warnLimit,
		maxOptions: maxOptions,
		enc:        gnfmt.GNjson{},
	}
}

// Vocab exposes the engine's vocabulary cache.
func (e *Engine) Vocab() *Vocab {
	return e.vocab
}

// Preload makes one pass over the mapping, ensuring the form, every
// question and every static option exist in storage, and fills the
// vocabulary cache. It runs before the first row and before the first
// transactional unit is opened.
func (e *Engine) Preload(ctx context.Context) error {
	formID, err := e.st.EnsureForm(ctx, e.m.Form)
	if err != nil {
		slog.Error("Cannot ensure form", "form", e.m.Form.Name, "error", err)
		return err
	}
	e.vocab.setForm(formID)

	for i := range e.m.Questions {
		q := &e.m.Questions[i]
		qid, err := e.st.EnsureQuestion(ctx, formID, q)
		if err != nil {
			slog.Error("Cannot ensure question", "question", q.Code, "error", err)
			return err
		}
		e.vocab.addQuestion(q.Code, qid)

		for _, opt := range q.Options {
			oid, _, err := e.st.EnsureOption(ctx, qid, opt.Code, opt.Label,
				nullInt32(opt.Position))
			if err != nil {
				slog.Error("Cannot ensure option",
					"question", q.Code, "option", opt.Code, "error", err)
				return err
			}
			e.vocab.addOption(qid, opt.Label, oid)
		}

		// Seed the guard with options that survive from earlier runs.
		count, err := e.st.CountOptions(ctx, qid)
		if err != nil {
			return err
		}
		e.vocab.setOptionCount(qid, count)
	}
	return nil
}

// ProcessRow projects one document: row filter, author and contribution
// identity, then one answer slot per mapped question. It reports false
// when the filter discarded the row.
func (e *Engine) ProcessRow(ctx context.Context, doc row.Doc) (bool, error) {
	if doc.Trashed(e.m.Filter) {
		return false, nil
	}

	authorID, err := e.resolveAuthor(ctx, doc)
	if err != nil {
		return false, err
	}
	contribID, err := e.resolveContribution(ctx, doc, authorID)
	if err != nil {
		return false, err
	}

	for i := range e.m.Questions {
		q := &e.m.Questions[i]
		qid, ok := e.vocab.QuestionID(q.Code)
		if !ok {
			return false, fmt.Errorf("question %q missing from vocabulary cache", q.Code)
		}
		if err = e.project(ctx, doc, q, qid, contribID); err != nil {
			return false, err
		}
	}
	return true, nil
}

// resolveAuthor looks an author up by hashed email, then by the external
// identifier, merge-filling null fields of an existing record; a new
// author is inserted when neither key matches. Without any author binding
// in the mapping no author is associated at all.
func (e *Engine) resolveAuthor(ctx context.Context, doc row.Doc) (sql.NullInt64, error) {
	var res sql.NullInt64
	amap := e.m.Defaults.Author
	if amap.Empty() {
		return res, nil
	}

	emailHash := colVal(doc, amap.EmailHash)
	srcID := colVal(doc, amap.SourceAuthorID)

	var id int64
	var found bool
	var err error
	if emailHash != "" {
		id, found, err = e.st.AuthorByEmailHash(ctx, emailHash)
	} else if srcID != "" {
		id, found, err = e.st.AuthorBySourceID(ctx, srcID)
	}
	if err != nil {
		return res, err
	}

	a := model.Author{
		SourceAuthorID: nullStr(srcID),
		Name:           nullStr(colVal(doc, amap.Name)),
		EmailHash:      nullStr(emailHash),
		Zipcode:        nullStr(colVal(doc, amap.Zipcode)),
		City:           nullStr(colVal(doc, amap.City)),
		AgeRange:       nullStr(colVal(doc, amap.AgeRange)),
		Gender:         nullStr(colVal(doc, amap.Gender)),
	}
	if found {
		if err = e.st.MergeAuthor(ctx, id, a); err != nil {
			return res, err
		}
	} else {
		if id, err = e.st.InsertAuthor(ctx, a); err != nil {
			return res, err
		}
	}
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

// resolveContribution resolves the row to its content-addressed
// contribution. An existing fingerprint resolves to the existing identity
// without mutation, which is what makes re-ingestion idempotent.
func (e *Engine) resolveContribution(
	ctx context.Context, doc row.Doc, authorID sql.NullInt64,
) (int64, error) {
	fp, err := doc.Fingerprint()
	if err != nil {
		return 0, err
	}
	if id, found, err := e.st.ContributionByFingerprint(ctx, fp); err != nil {
		return 0, err
	} else if found {
		return id, nil
	}

	snapshot, err := doc.CanonicalJSON()
	if err != nil {
		return 0, err
	}
	cmap := e.m.Defaults.Contribution
	c := model.Contribution{
		SourceContributionID: nullStr(colVal(doc, cmap.SourceContributionID)),
		AuthorID:             authorID,
		FormID:               e.vocab.FormID(),
		Source:               nullStr(cmap.Source),
		SubmittedAt:          nullStr(colVal(doc, cmap.SubmittedAt)),
		Title:                nullStr(colVal(doc, cmap.Title)),
		ImportBatchID:        nullStr(e.batch),
		RawHash:              fp,
		RawJSON:              string(snapshot),
	}
	return e.st.InsertContribution(ctx, c)
}

// project dispatches on the question type. The switch is exhaustive over
// the closed QuestionType set.
func (e *Engine) project(
	ctx context.Context,
	doc row.Doc,
	q *mapping.QuestionMap,
	questionID, contribID int64,
) error {
	switch q.Type {
	case mapping.Text:
		return e.mergeText(ctx, contribID, questionID,
			colVal(doc, q.SourceColumn), mapping.DefaultJoiner)

	case mapping.FreeText:
		joiner := q.Joiner()
		var parts []string
		for _, col := range q.Source.Columns {
			if v := colVal(doc, col); v != "" {
				parts = append(parts, v)
			}
		}
		return e.mergeText(ctx, contribID, questionID,
			strings.Join(parts, joiner), joiner)

	case mapping.Number, mapping.Scale, mapping.Date:
		val := colVal(doc, q.SourceColumn)
		if val == "" {
			return nil
		}
		// Opaque scalar: a single-field envelope, no parsing or
		// validation, last write replaces.
		bs, err := e.enc.Encode(map[string]string{"value": val})
		if err != nil {
			return err
		}
		return e.st.UpsertAnswerValue(ctx, contribID, questionID, string(bs))

	case mapping.SingleChoice:
		return e.projectSingleChoice(ctx, doc, q, questionID, contribID)

	case mapping.MultiChoice:
		return e.projectMultiChoice(ctx, doc, q, questionID, contribID)
	}
	return fmt.Errorf("question %q: unknown type %d", q.Code, q.Type)
}

// mergeText upserts the single text slot of an answer. A non-empty slot
// that does not already contain the new value as a substring gets the new
// value appended after the joiner. This containment check is a coarse
// dedup heuristic; reordered or partially overlapping duplicates are not
// detected.
func (e *Engine) mergeText(
	ctx context.Context, contribID, questionID int64, val, joiner string,
) error {
	if val == "" {
		return nil
	}
	existing, found, err := e.st.AnswerText(ctx, contribID, questionID)
	if err != nil {
		return err
	}
	switch {
	case !found || existing == "":
		return e.st.UpsertAnswerText(ctx, contribID, questionID, val)
	case strings.Contains(existing, val):
		return nil
	default:
		return e.st.UpsertAnswerText(ctx, contribID, questionID, existing+joiner+val)
	}
}

// projectSingleChoice resolves the cell to exactly one option and makes it
// the answer's entire selection. An unknown label under a static
// vocabulary degrades to dynamic creation with a warning instead of
// failing the row.
func (e *Engine) projectSingleChoice(
	ctx context.Context,
	doc row.Doc,
	q *mapping.QuestionMap,
	questionID, contribID int64,
) error {
	raw := colVal(doc, q.SourceColumn)
	if raw == "" {
		return nil
	}

	var optionID int64
	var err error
	if q.OptionsFromValues {
		optionID, err = e.ensureDynamicOption(ctx, questionID, q.Code, raw)
	} else if id, ok := e.vocab.OptionID(questionID, raw); ok {
		optionID = id
	} else {
		slog.Warn("Value not in predefined options, creating dynamically",
			"question", q.Code, "value", raw)
		optionID, err = e.ensureDynamicOption(ctx, questionID, q.Code, raw)
	}
	if err != nil {
		return err
	}

	answerID, err := e.st.EnsureAnswer(ctx, contribID, questionID)
	if err != nil {
		return err
	}
	return e.st.ReplaceAnswerOption(ctx, answerID, optionID)
}

// projectMultiChoice unions two mechanisms over the same row: boolean
// indicator columns of statically declared options, and a delimited
// dynamic column. The selection is inserted, never removed.
func (e *Engine) projectMultiChoice(
	ctx context.Context,
	doc row.Doc,
	q *mapping.QuestionMap,
	questionID, contribID int64,
) error {
	var selected []int64

	for _, opt := range q.Options {
		if opt.SourceColumn == "" || !str.Truthy(doc.Get(opt.SourceColumn)) {
			continue
		}
		id, ok := e.vocab.OptionID(questionID, opt.Label)
		if !ok {
			var err error
			id, _, err = e.st.EnsureOption(ctx, questionID, opt.Code, opt.Label,
				nullInt32(opt.Position))
			if err != nil {
				return err
			}
			e.vocab.addOption(questionID, opt.Label, id)
		}
		selected = append(selected, id)
	}

	if q.OptionsFromValues && q.SourceColumn != "" {
		raw := colVal(doc, q.SourceColumn)
		if raw != "" {
			for _, part := range strings.Split(raw, q.SplitDelimiter()) {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				id, err := e.ensureDynamicOption(ctx, questionID, q.Code, part)
				if err != nil {
					return err
				}
				selected = append(selected, id)
			}
		}
	}

	if len(selected) == 0 {
		return nil
	}
	answerID, err := e.st.EnsureAnswer(ctx, contribID, questionID)
	if err != nil {
		return err
	}
	return e.st.AddAnswerOptions(ctx, answerID, selected)
}

// ensureDynamicOption resolves a label to an option, minting it when
// needed. Minting is guarded: past the warning threshold the run warns
// once per question, at the ceiling it fails with a diagnostic. The
// count lives in the vocabulary cache and moves together with creation.
func (e *Engine) ensureDynamicOption(
	ctx context.Context, questionID int64, questionCode, label string,
) (int64, error) {
	if e.vocab.seenDynamic(questionID, label) {
		if id, ok := e.vocab.OptionID(questionID, label); ok {
			return id, nil
		}
	}

	// A label already persisted by an earlier run is a resolution, not a
	// mint; it must not trip the guard.
	if id, found, err := e.st.OptionByLabel(ctx, questionID, label); err != nil {
		return 0, err
	} else if found {
		e.vocab.addOption(questionID, label, id)
		e.vocab.markDynamic(questionID, label)
		return id, nil
	}

	count := e.vocab.OptionCount(questionID)
	if count >= e.maxOptions {
		return 0, fmt.Errorf(
			"question %q already has %d options (limit %d); "+
				"likely a misconfigured dynamic choice question, "+
				"declare predefined options or disable options_from_values",
			questionCode, count, e.maxOptions)
	}
	if count > e.warnLimit && e.vocab.warnOnce(questionID) {
		slog.Warn("Question accumulates many dynamic options",
			"question", questionCode, "count", count, "limit", e.maxOptions)
	}

	id, created, err := e.st.EnsureOption(ctx, questionID,
		str.OptionCode(label), label, sql.NullInt32{})
	if err != nil {
		return 0, err
	}
	if created {
		e.vocab.incOptionCount(questionID)
	}
	e.vocab.addOption(questionID, label, id)
	e.vocab.markDynamic(questionID, label)
	return id, nil
}

func colVal(doc row.Doc, col string) string {
	if col == "" {
		return ""
	}
	return doc.Get(col)
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt32(n int) sql.NullInt32 {
	return sql.NullInt32{Int32: int32(n), Valid: n != 0}
}
