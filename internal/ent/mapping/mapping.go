// Package mapping describes one form's ingestion contract: the questions,
// their source-column bindings, static option vocabularies and the default
// bindings for author and contribution fields. A mapping is loaded once per
// run and treated as immutable input afterwards.
package mapping

import (
	"fmt"
	"os"

	"github.com/civicdata/survload/internal/ent/row"
	"gopkg.in/yaml.v3"
)

// DefaultJoiner separates merged text fragments unless the mapping says
// otherwise.
const DefaultJoiner = "\n\n"

// DefaultDelimiter splits multi-valued single columns unless the mapping
// says otherwise.
const DefaultDelimiter = ";"

// QuestionType is a closed set of question kinds. Dispatch on it is
// exhaustive; an unknown tag is rejected while the mapping is parsed, not
// during row processing.
type QuestionType int

const (
	Unknown QuestionType = iota
	Text
	FreeText
	Number
	Scale
	Date
	SingleChoice
	MultiChoice
)

var typeNames = map[QuestionType]string{
	Text:         "text",
	FreeText:     "free_text",
	Number:       "number",
	Scale:        "scale",
	Date:         "date",
	SingleChoice: "single_choice",
	MultiChoice:  "multi_choice",
}

var typeTags = func() map[string]QuestionType {
	res := make(map[string]QuestionType, len(typeNames))
	for qt, tag := range typeNames {
		res[tag] = qt
	}
	return res
}()

func (qt QuestionType) String() string {
	if s, ok := typeNames[qt]; ok {
		return s
	}
	return "unknown"
}

// UnmarshalYAML decodes the mapping's type tag into a QuestionType.
func (qt *QuestionType) UnmarshalYAML(value *yaml.Node) error {
	var tag string
	if err := value.Decode(&tag); err != nil {
		return err
	}
	res, ok := typeTags[tag]
	if !ok {
		return fmt.Errorf("unknown question type %q", tag)
	}
	*qt = res
	return nil
}

// Mapping is the parsed ingestion contract for one form.
type Mapping struct {
	Form      FormInfo      `yaml:"form"`
	Defaults  Defaults      `yaml:"defaults"`
	Filter    row.Filter    `yaml:"filter"`
	Questions []QuestionMap `yaml:"questions"`
}

// FormInfo identifies the form. Version and source may be empty; together
// with the name they form the form's identity triple.
type FormInfo struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Source  string `yaml:"source"`
}

// Defaults binds author and contribution fields to source columns.
type Defaults struct {
	Author       AuthorMap       `yaml:"author"`
	Contribution ContributionMap `yaml:"contribution"`
}

// AuthorMap names the source columns that carry author fields. Every field
// is optional; a zero AuthorMap disables author resolution entirely.
type AuthorMap struct {
	SourceAuthorID string `yaml:"source_author_id"`
	Name           string `yaml:"name"`
	EmailHash      string `yaml:"email_hash"`
	Zipcode        string `yaml:"zipcode"`
	City           string `yaml:"city"`
	AgeRange       string `yaml:"age_range"`
	Gender         string `yaml:"gender"`
}

// Empty reports whether no author field is bound at all.
func (a AuthorMap) Empty() bool {
	return a == AuthorMap{}
}

// ContributionMap names the source columns that carry contribution-level
// fields. Source is a literal provenance tag, not a column name.
type ContributionMap struct {
	SourceContributionID string `yaml:"source_contribution_id"`
	SubmittedAt          string `yaml:"submitted_at"`
	Title                string `yaml:"title"`
	Source               string `yaml:"source"`
}

// QuestionMap is the ingestion contract for one question.
type QuestionMap struct {
	// Code is the stable question code, unique within the form.
	Code string `yaml:"code"`

	// Prompt is the question text; falls back to the code when absent.
	Prompt string `yaml:"prompt"`

	// Type selects the projection rule.
	Type QuestionType `yaml:"type"`

	Section  string         `yaml:"section"`
	Position int            `yaml:"position"`
	Meta     map[string]any `yaml:"meta"`

	// SourceColumn is the single source column for text, number, scale,
	// date, single_choice and the delimited column of multi_choice.
	SourceColumn string `yaml:"source_column"`

	// Source binds free_text questions to several columns.
	Source *FreeTextSource `yaml:"source"`

	// Options is the static vocabulary of choice questions.
	Options []OptionSpec `yaml:"options"`

	// OptionsFromValues allows options to be minted from observed values.
	OptionsFromValues bool `yaml:"options_from_values"`

	// Delimiter splits the multi-valued column of a dynamic multi_choice.
	Delimiter string `yaml:"delimiter"`
}

// FreeTextSource lists the columns whose non-empty values are concatenated
// into one free-text answer.
type FreeTextSource struct {
	Columns []string `yaml:"columns"`
	Joiner  string   `yaml:"joiner"`
}

// OptionSpec declares one static option. SourceColumn, when set, is the
// boolean indicator column of a multi_choice question.
type OptionSpec struct {
	Code         string         `yaml:"code"`
	Label        string         `yaml:"label"`
	Position     int            `yaml:"position"`
	Meta         map[string]any `yaml:"meta"`
	SourceColumn string         `yaml:"source_column"`
}

// Joiner returns the configured text joiner of a question, or the default.
func (q *QuestionMap) Joiner() string {
	if q.Source != nil && q.Source.Joiner != "" {
		return q.Source.Joiner
	}
	return DefaultJoiner
}

// SplitDelimiter returns the configured delimiter of a multi-valued
// column, or the default.
func (q *QuestionMap) SplitDelimiter() string {
	if q.Delimiter != "" {
		return q.Delimiter
	}
	return DefaultDelimiter
}

// FromFile reads and parses a YAML mapping document.
func FromFile(path string) (*Mapping, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromBytes(bs)
}

// FromBytes parses a YAML mapping document.
func FromBytes(bs []byte) (*Mapping, error) {
	var res Mapping
	if err := yaml.Unmarshal(bs, &res); err != nil {
		return nil, fmt.Errorf("cannot parse mapping: %w", err)
	}
	return &res, nil
}
