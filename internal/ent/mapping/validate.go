package mapping

import "fmt"

// Validation is the outcome of the static pre-flight check of a mapping.
// Errors abort the run before any storage access; warnings are surfaced
// and the run proceeds.
type Validation struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the mapping is safe to ingest with.
func (v Validation) OK() bool {
	return len(v.Errors) == 0
}

// Validate checks a mapping for unsafe or incomplete configurations. It is
// a pure function over the mapping and never touches storage.
func (m *Mapping) Validate() Validation {
	var v Validation

	if m.Form.Name == "" {
		v.Errors = append(v.Errors, "form: name is required")
	}
	if len(m.Questions) == 0 {
		v.Errors = append(v.Errors, "questions: at least one question is required")
	}

	seen := make(map[string]struct{}, len(m.Questions))
	for i := range m.Questions {
		q := &m.Questions[i]
		pos := fmt.Sprintf("question[%d] %q (%s)", i, q.Code, q.Type)

		if q.Code == "" {
			v.Errors = append(v.Errors, pos+": code is required")
		} else if _, ok := seen[q.Code]; ok {
			v.Errors = append(v.Errors, pos+": duplicate question code")
		} else {
			seen[q.Code] = struct{}{}
		}

		switch q.Type {
		case SingleChoice:
			if q.SourceColumn == "" {
				v.Errors = append(v.Errors, pos+": single_choice requires source_column")
			}
			if q.OptionsFromValues && len(q.Options) == 0 {
				// Without a predefined vocabulary every distinct observed
				// value mints a new option, with no ceiling visible to the
				// operator.
				v.Errors = append(v.Errors,
					pos+": single_choice with options_from_values and no predefined options; "+
						"every distinct value would create an option")
			} else if q.OptionsFromValues {
				v.Warnings = append(v.Warnings, fmt.Sprintf(
					"%s: options_from_values with %d predefined options",
					pos, len(q.Options)))
			}
		case MultiChoice:
			if !q.OptionsFromValues && len(q.Options) == 0 {
				v.Errors = append(v.Errors,
					pos+": multi_choice requires options or options_from_values")
			}
			if q.OptionsFromValues && q.SourceColumn == "" {
				v.Warnings = append(v.Warnings,
					pos+": options_from_values without source_column, no dynamic values will be read")
			}
		case FreeText:
			if q.Source == nil || len(q.Source.Columns) == 0 {
				v.Errors = append(v.Errors, pos+": free_text requires source.columns")
			}
		case Text, Number, Scale, Date:
			if q.SourceColumn == "" {
				v.Errors = append(v.Errors,
					fmt.Sprintf("%s: %s requires source_column", pos, q.Type))
			}
		default:
			v.Errors = append(v.Errors, pos+": unknown question type")
		}
	}

	return v
}
