// Package assessment holds the assessment document model, its structural
// rules, conditional question visibility and response validation.
package assessment

import (
	"errors"
	"fmt"
)

// QuestionType enumerates the supported question kinds.
type QuestionType string

const (
	SingleChoice QuestionType = "single-choice"
	MultiChoice  QuestionType = "multi-choice"
	ShortText    QuestionType = "short-text"
	LongText     QuestionType = "long-text"
	Numeric      QuestionType = "numeric"
	FileUpload   QuestionType = "file-upload-stub"
)

// QuestionTypes lists every supported type.
var QuestionTypes = []QuestionType{SingleChoice, MultiChoice, ShortText, LongText, Numeric, FileUpload}

// Valid reports enum membership.
func (t QuestionType) Valid() bool {
	for _, known := range QuestionTypes {
		if t == known {
			return true
		}
	}
	return false
}

func (t QuestionType) isChoice() bool { return t == SingleChoice || t == MultiChoice }

func (t QuestionType) isText() bool { return t == ShortText || t == LongText }

// Range bounds a numeric answer, inclusive.
type Range struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// Conditional shows a question only when an earlier answer matches exactly.
type Conditional struct {
	TargetQuestionID string `json:"targetQuestionId"`
	TargetValue      string `json:"targetValue"`
}

// Question is one prompt of a section.
type Question struct {
	ID          string       `json:"id"`
	Type        QuestionType `json:"type"`
	Text        string       `json:"text"`
	Required    bool         `json:"required"`
	Options     []string     `json:"options,omitempty"`
	Range       *Range       `json:"range,omitempty"`
	MaxLength   int          `json:"maxLength,omitempty"`
	Conditional *Conditional `json:"conditional,omitempty"`
}

// Section groups questions under a title.
type Section struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// Document is the full assessment attached to one job.
type Document struct {
	Sections []Section `json:"sections"`
}

// ErrInvalidDocument wraps every structural problem reported by Validate.
var ErrInvalidDocument = errors.New("invalid assessment")

// Validate checks the structural rules a stored document must satisfy:
// unique ids, known question types, options on choice questions, ordered
// numeric ranges, and conditionals that point at an earlier question.
func (d Document) Validate() error {
	sectionIDs := make(map[string]struct{}, len(d.Sections))
	seen := make(map[string]struct{})

	for si, s := range d.Sections {
		if s.ID == "" {
			return fmt.Errorf("%w: section %d has no id", ErrInvalidDocument, si+1)
		}
		if _, dup := sectionIDs[s.ID]; dup {
			return fmt.Errorf("%w: duplicate section id %q", ErrInvalidDocument, s.ID)
		}
		sectionIDs[s.ID] = struct{}{}

		for _, q := range s.Questions {
			if q.ID == "" {
				return fmt.Errorf("%w: question without id in section %q", ErrInvalidDocument, s.ID)
			}
			if _, dup := seen[q.ID]; dup {
				return fmt.Errorf("%w: duplicate question id %q", ErrInvalidDocument, q.ID)
			}
			if !q.Type.Valid() {
				return fmt.Errorf("%w: question %q has unknown type %q", ErrInvalidDocument, q.ID, q.Type)
			}
			if q.Type.isChoice() && len(q.Options) == 0 {
				return fmt.Errorf("%w: choice question %q has no options", ErrInvalidDocument, q.ID)
			}
			if q.Range != nil && q.Range.Min > q.Range.Max {
				return fmt.Errorf("%w: question %q range min exceeds max", ErrInvalidDocument, q.ID)
			}
			if q.MaxLength < 0 {
				return fmt.Errorf("%w: question %q has negative max length", ErrInvalidDocument, q.ID)
			}
			if c := q.Conditional; c != nil {
				if _, ok := seen[c.TargetQuestionID]; !ok {
					return fmt.Errorf("%w: question %q depends on %q which does not precede it", ErrInvalidDocument, q.ID, c.TargetQuestionID)
				}
			}
			seen[q.ID] = struct{}{}
		}
	}
	return nil
}

// Questions flattens every question in document order.
func (d Document) Questions() []Question {
	var out []Question
	for _, s := range d.Sections {
		out = append(out, s.Questions...)
	}
	return out
}

// QuestionCount returns the number of questions across all sections.
func (d Document) QuestionCount() int {
	n := 0
	for _, s := range d.Sections {
		n += len(s.Questions)
	}
	return n
}
