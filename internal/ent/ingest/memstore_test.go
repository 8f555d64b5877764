package ingest_test

import (
	"context"
	"database/sql"

	"github.com/civicdata/survload/internal/ent/mapping"
	"github.com/civicdata/survload/pkg/ent/model"
)

// memStore is an in-memory Store with the same conflict semantics as the
// PostgreSQL implementation. It backs the engine specs, which exercise
// projection rules without a database.
type memStore struct {
	nextID int64

	forms     map[mapping.FormInfo]int64
	questions map[questionKey]int64

	options   map[optionKey]*memOption
	optByQ    map[int64][]*memOption
	authors   map[int64]*model.Author
	authEmail map[string]int64
	authSrc   map[string]int64

	contribs   map[int64]model.Contribution
	contribFP  map[string]int64
	answers    map[answerKey]*memAnswer
	selections map[int64]map[int64]struct{}

	// snap holds the state taken at Begin; Rollback restores it, Commit
	// discards it, mirroring the transactional unit of the SQL store.
	snap *memStore
}

type questionKey struct {
	formID int64
	code   string
}

type optionKey struct {
	questionID int64
	code       string
}

type answerKey struct {
	contributionID int64
	questionID     int64
}

type memOption struct {
	id    int64
	code  string
	label string
}

type memAnswer struct {
	id        int64
	text      string
	valueJSON string
}

func newMemStore() *memStore {
	return &memStore{
		forms:      make(map[mapping.FormInfo]int64),
		questions:  make(map[questionKey]int64),
		options:    make(map[optionKey]*memOption),
		optByQ:     make(map[int64][]*memOption),
		authors:    make(map[int64]*model.Author),
		authEmail:  make(map[string]int64),
		authSrc:    make(map[string]int64),
		contribs:   make(map[int64]model.Contribution),
		contribFP:  make(map[string]int64),
		answers:    make(map[answerKey]*memAnswer),
		selections: make(map[int64]map[int64]struct{}),
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) Begin(_ context.Context) error {
	s.snap = s.clone()
	return nil
}

func (s *memStore) Commit(_ context.Context) error {
	s.snap = nil
	return nil
}

func (s *memStore) Rollback(_ context.Context) error {
	if s.snap != nil {
		*s = *s.snap
	}
	return nil
}

func (s *memStore) clone() *memStore {
	c := newMemStore()
	c.nextID = s.nextID
	for k, v := range s.forms {
		c.forms[k] = v
	}
	for k, v := range s.questions {
		c.questions[k] = v
	}
	optOf := make(map[*memOption]*memOption, len(s.options))
	for k, v := range s.options {
		cp := *v
		c.options[k] = &cp
		optOf[v] = &cp
	}
	for qid, opts := range s.optByQ {
		cl := make([]*memOption, len(opts))
		for i, opt := range opts {
			cl[i] = optOf[opt]
		}
		c.optByQ[qid] = cl
	}
	for id, a := range s.authors {
		cp := *a
		c.authors[id] = &cp
	}
	for k, v := range s.authEmail {
		c.authEmail[k] = v
	}
	for k, v := range s.authSrc {
		c.authSrc[k] = v
	}
	for id, cb := range s.contribs {
		c.contribs[id] = cb
	}
	for k, v := range s.contribFP {
		c.contribFP[k] = v
	}
	for k, a := range s.answers {
		cp := *a
		c.answers[k] = &cp
	}
	for aid, sel := range s.selections {
		cl := make(map[int64]struct{}, len(sel))
		for oid := range sel {
			cl[oid] = struct{}{}
		}
		c.selections[aid] = cl
	}
	return c
}

func (s *memStore) EnsureForm(
	_ context.Context, f mapping.FormInfo,
) (int64, error) {
	if id, ok := s.forms[f]; ok {
		return id, nil
	}
	id := s.id()
	s.forms[f] = id
	return id, nil
}

func (s *memStore) EnsureQuestion(
	_ context.Context, formID int64, q *mapping.QuestionMap,
) (int64, error) {
	k := questionKey{formID, q.Code}
	if id, ok := s.questions[k]; ok {
		return id, nil
	}
	id := s.id()
	s.questions[k] = id
	return id, nil
}

func (s *memStore) EnsureOption(
	_ context.Context, questionID int64, code, label string,
	_ sql.NullInt32,
) (int64, bool, error) {
	k := optionKey{questionID, code}
	if opt, ok := s.options[k]; ok {
		opt.label = label
		return opt.id, false, nil
	}
	opt := &memOption{id: s.id(), code: code, label: label}
	s.options[k] = opt
	s.optByQ[questionID] = append(s.optByQ[questionID], opt)
	return opt.id, true, nil
}

func (s *memStore) OptionByLabel(
	_ context.Context, questionID int64, label string,
) (int64, bool, error) {
	for _, opt := range s.optByQ[questionID] {
		if opt.label == label {
			return opt.id, true, nil
		}
	}
	return 0, false, nil
}

func (s *memStore) CountOptions(
	_ context.Context, questionID int64,
) (int, error) {
	return len(s.optByQ[questionID]), nil
}

func (s *memStore) AuthorByEmailHash(
	_ context.Context, hash string,
) (int64, bool, error) {
	id, ok := s.authEmail[hash]
	return id, ok, nil
}

func (s *memStore) AuthorBySourceID(
	_ context.Context, srcID string,
) (int64, bool, error) {
	id, ok := s.authSrc[srcID]
	return id, ok, nil
}

func (s *memStore) InsertAuthor(
	_ context.Context, a model.Author,
) (int64, error) {
	id := s.id()
	cp := a
	s.authors[id] = &cp
	if a.EmailHash.Valid {
		s.authEmail[a.EmailHash.String] = id
	}
	if a.SourceAuthorID.Valid {
		s.authSrc[a.SourceAuthorID.String] = id
	}
	return id, nil
}

func (s *memStore) MergeAuthor(
	_ context.Context, id int64, a model.Author,
) error {
	cur := s.authors[id]
	fill := func(dst *sql.NullString, src sql.NullString) {
		if !dst.Valid && src.Valid {
			*dst = src
		}
	}
	fill(&cur.SourceAuthorID, a.SourceAuthorID)
	fill(&cur.Name, a.Name)
	fill(&cur.EmailHash, a.EmailHash)
	fill(&cur.Zipcode, a.Zipcode)
	fill(&cur.City, a.City)
	fill(&cur.AgeRange, a.AgeRange)
	fill(&cur.Gender, a.Gender)
	return nil
}

func (s *memStore) ContributionByFingerprint(
	_ context.Context, fp string,
) (int64, bool, error) {
	id, ok := s.contribFP[fp]
	return id, ok, nil
}

func (s *memStore) InsertContribution(
	_ context.Context, c model.Contribution,
) (int64, error) {
	if id, ok := s.contribFP[c.RawHash]; ok {
		return id, nil
	}
	id := s.id()
	s.contribs[id] = c
	s.contribFP[c.RawHash] = id
	return id, nil
}

func (s *memStore) AnswerText(
	_ context.Context, contributionID, questionID int64,
) (string, bool, error) {
	a, ok := s.answers[answerKey{contributionID, questionID}]
	if !ok {
		return "", false, nil
	}
	return a.text, true, nil
}

func (s *memStore) UpsertAnswerText(
	_ context.Context, contributionID, questionID int64, text string,
) error {
	a := s.ensureAnswer(contributionID, questionID)
	a.text = text
	return nil
}

func (s *memStore) UpsertAnswerValue(
	_ context.Context, contributionID, questionID int64, value string,
) error {
	a := s.ensureAnswer(contributionID, questionID)
	a.valueJSON = value
	return nil
}

func (s *memStore) EnsureAnswer(
	_ context.Context, contributionID, questionID int64,
) (int64, error) {
	return s.ensureAnswer(contributionID, questionID).id, nil
}

func (s *memStore) ensureAnswer(contributionID, questionID int64) *memAnswer {
	k := answerKey{contributionID, questionID}
	if a, ok := s.answers[k]; ok {
		return a
	}
	a := &memAnswer{id: s.id()}
	s.answers[k] = a
	return a
}

func (s *memStore) ReplaceAnswerOption(
	_ context.Context, answerID, optionID int64,
) error {
	s.selections[answerID] = map[int64]struct{}{optionID: {}}
	return nil
}

func (s *memStore) AddAnswerOptions(
	_ context.Context, answerID int64, optionIDs []int64,
) error {
	sel, ok := s.selections[answerID]
	if !ok {
		sel = make(map[int64]struct{})
		s.selections[answerID] = sel
	}
	for _, id := range optionIDs {
		sel[id] = struct{}{}
	}
	return nil
}

// selectedLabels returns the labels of the options selected on the answer
// slot of (contribution, question), sorted by insertion id.
func (s *memStore) selectedLabels(contributionID, questionID int64) []string {
	a, ok := s.answers[answerKey{contributionID, questionID}]
	if !ok {
		return nil
	}
	byID := make(map[int64]string)
	for _, opts := range s.optByQ {
		for _, opt := range opts {
			byID[opt.id] = opt.label
		}
	}
	var res []string
	for id := int64(1); id <= s.nextID; id++ {
		if _, ok := s.selections[a.id][id]; ok {
			res = append(res, byID[id])
		}
	}
	return res
}

func (s *memStore) answer(contributionID, questionID int64) *memAnswer {
	return s.answers[answerKey{contributionID, questionID}]
}
