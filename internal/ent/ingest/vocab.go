package ingest

// optKey addresses an option by question identity and label.
type optKey struct {
	questionID int64
	label      string
}

// Vocab is the in-memory mirror of persisted form, question and option
// identities. It is populated once per run during preload, extended when
// dynamic options are minted, and never invalidated mid-run.
type Vocab struct {
	formID     int64
	qidByCode  map[string]int64
	optByLabel map[optKey]int64
	dynSeen    map[optKey]struct{}
	optCount   map[int64]int
	warned     map[int64]struct{}
}

// NewVocab returns an empty vocabulary cache.
func NewVocab() *Vocab {
	return &Vocab{
		qidByCode:  make(map[string]int64),
		optByLabel: make(map[optKey]int64),
		dynSeen:    make(map[optKey]struct{}),
		optCount:   make(map[int64]int),
		warned:     make(map[int64]struct{}),
	}
}

// FormID returns the identity of the run's form.
func (v *Vocab) FormID() int64 {
	return v.formID
}

func (v *Vocab) setForm(id int64) {
	v.formID = id
}

func (v *Vocab) addQuestion(code string, id int64) {
	v.qidByCode[code] = id
}

// QuestionID resolves a question code to its identity.
func (v *Vocab) QuestionID(code string) (int64, bool) {
	id, ok := v.qidByCode[code]
	return id, ok
}

func (v *Vocab) addOption(questionID int64, label string, id int64) {
	v.optByLabel[optKey{questionID, label}] = id
}

// OptionID resolves a (question, label) pair to an option identity.
func (v *Vocab) OptionID(questionID int64, label string) (int64, bool) {
	id, ok := v.optByLabel[optKey{questionID, label}]
	return id, ok
}

func (v *Vocab) markDynamic(questionID int64, label string) {
	v.dynSeen[optKey{questionID, label}] = struct{}{}
}

func (v *Vocab) seenDynamic(questionID int64, label string) bool {
	_, ok := v.dynSeen[optKey{questionID, label}]
	return ok
}

// OptionCount returns the known option count of a question.
func (v *Vocab) OptionCount(questionID int64) int {
	return v.optCount[questionID]
}

func (v *Vocab) setOptionCount(questionID int64, n int) {
	v.optCount[questionID] = n
}

func (v *Vocab) incOptionCount(questionID int64) {
	v.optCount[questionID]++
}

// warnOnce reports true the first time a question crosses the warning
// threshold during this run.
func (v *Vocab) warnOnce(questionID int64) bool {
	if _, ok := v.warned[questionID]; ok {
		return false
	}
	v.warned[questionID] = struct{}{}
	return true
}
