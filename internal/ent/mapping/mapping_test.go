package mapping_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/civicdata/survload/internal/ent/mapping"
)

const mappingYAML = `
form:
  name: transition-ecologique
  version: v1
  source: grand-debat
defaults:
  author:
    source_author_id: authorId
    email_hash: authorEmailHash
    zipcode: authorZipCode
  contribution:
    source_contribution_id: reference
    submitted_at: publishedAt
    title: title
    source: grand-debat
filter:
  trash_column: trashed
  status_column: trashedStatus
  kept_value: kept
questions:
  - code: about
    prompt: Dites-nous en plus
    type: text
    source_column: about
  - code: details
    type: free_text
    source:
      columns: [q1, q2]
      joiner: " | "
  - code: mood
    type: single_choice
    source_column: mood
    options:
      - code: agree
        label: D'accord
        position: 1
      - code: disagree
        label: Pas d'accord
        position: 2
  - code: themes
    type: multi_choice
    source_column: extra_themes
    options_from_values: true
    delimiter: ";"
    options:
      - code: air
        label: Qualité de l'air
        source_column: opt_a
  - code: rating
    type: scale
    source_column: rating
`

var _ = Describe("Mapping", func() {
	Describe("FromBytes", func() {
		It("parses a complete mapping document", func() {
			m, err := mapping.FromBytes([]byte(mappingYAML))
			Expect(err).ToNot(HaveOccurred())

			Expect(m.Form.Name).To(Equal("transition-ecologique"))
			Expect(m.Defaults.Author.EmailHash).To(Equal("authorEmailHash"))
			Expect(m.Defaults.Contribution.Source).To(Equal("grand-debat"))
			Expect(m.Filter.KeptValue).To(Equal("kept"))
			Expect(m.Questions).To(HaveLen(5))

			Expect(m.Questions[0].Type).To(Equal(mapping.Text))
			Expect(m.Questions[1].Type).To(Equal(mapping.FreeText))
			Expect(m.Questions[1].Joiner()).To(Equal(" | "))
			Expect(m.Questions[2].Options).To(HaveLen(2))
			Expect(m.Questions[3].OptionsFromValues).To(BeTrue())
			Expect(m.Questions[3].SplitDelimiter()).To(Equal(";"))
			Expect(m.Questions[4].Type).To(Equal(mapping.Scale))
		})

		It("rejects unknown question types", func() {
			bad := `
form:
  name: f
questions:
  - code: q1
    type: matrix
    source_column: c1
`
			_, err := mapping.FromBytes([]byte(bad))
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unknown question type"))
		})

		It("falls back to default joiner and delimiter", func() {
			m, err := mapping.FromBytes([]byte(`
form:
  name: f
questions:
  - code: q1
    type: free_text
    source:
      columns: [a, b]
  - code: q2
    type: multi_choice
    source_column: c
    options_from_values: true
`))
			Expect(err).ToNot(HaveOccurred())
			Expect(m.Questions[0].Joiner()).To(Equal(mapping.DefaultJoiner))
			Expect(m.Questions[1].SplitDelimiter()).To(Equal(mapping.DefaultDelimiter))
		})
	})

	Describe("Validate", func() {
		var m *mapping.Mapping

		BeforeEach(func() {
			var err error
			m, err = mapping.FromBytes([]byte(mappingYAML))
			Expect(err).ToNot(HaveOccurred())
		})

		It("accepts a complete mapping", func() {
			v := m.Validate()
			Expect(v.OK()).To(BeTrue())
		})

		It("requires a form name and at least one question", func() {
			empty := &mapping.Mapping{}
			v := empty.Validate()
			Expect(v.OK()).To(BeFalse())
			Expect(v.Errors).To(ContainElement(
				ContainSubstring("name is required")))
			Expect(v.Errors).To(ContainElement(
				ContainSubstring("at least one question")))
		})

		It("rejects duplicate question codes", func() {
			m.Questions = append(m.Questions, m.Questions[0])
			v := m.Validate()
			Expect(v.Errors).To(ContainElement(
				ContainSubstring("duplicate question code")))
		})

		It("rejects single_choice without source_column", func() {
			m.Questions[2].SourceColumn = ""
			v := m.Validate()
			Expect(v.Errors).To(ContainElement(
				ContainSubstring("single_choice requires source_column")))
		})

		It("rejects unconstrained dynamic single_choice", func() {
			m.Questions[2].OptionsFromValues = true
			m.Questions[2].Options = nil
			v := m.Validate()
			Expect(v.OK()).To(BeFalse())
		})

		It("warns about dynamic single_choice with a vocabulary", func() {
			m.Questions[2].OptionsFromValues = true
			v := m.Validate()
			Expect(v.OK()).To(BeTrue())
			Expect(v.Warnings).ToNot(BeEmpty())
		})

		It("rejects multi_choice with no option source at all", func() {
			m.Questions[3].Options = nil
			m.Questions[3].OptionsFromValues = false
			v := m.Validate()
			Expect(v.Errors).To(ContainElement(
				ContainSubstring("multi_choice requires options")))
		})

		It("rejects free_text without columns", func() {
			m.Questions[1].Source = nil
			v := m.Validate()
			Expect(v.Errors).To(ContainElement(
				ContainSubstring("free_text requires source.columns")))
		})

		It("rejects scalar questions without source_column", func() {
			m.Questions[4].SourceColumn = ""
			v := m.Validate()
			Expect(v.Errors).To(ContainElement(
				ContainSubstring("scale requires source_column")))
		})
	})
})
