package assessment

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Responses maps question id to the decoded JSON answer: string, float64,
// []any of strings, or nil.
type Responses map[string]any

// Text returns the answer for id when it is a JSON string.
func (r Responses) Text(id string) (string, bool) {
	v, ok := r[id]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Visible reports whether q is shown for the given responses. A conditional
// question is visible only when the target answer is a string exactly equal
// to the target value.
func Visible(q Question, responses Responses) bool {
	if q.Conditional == nil {
		return true
	}
	got, ok := responses.Text(q.Conditional.TargetQuestionID)
	return ok && got == q.Conditional.TargetValue
}

// VisibleQuestions returns the questions shown for responses, in document order.
func (d Document) VisibleQuestions(responses Responses) []Question {
	var out []Question
	for _, q := range d.Questions() {
		if Visible(q, responses) {
			out = append(out, q)
		}
	}
	return out
}

// Issue is one validation problem with a response.
type Issue struct {
	QuestionID string `json:"questionId"`
	Message    string `json:"message"`
}

// ValidateResponses checks responses against the visible questions only.
// Hidden questions are never required and their answers are ignored.
func (d Document) ValidateResponses(responses Responses) []Issue {
	var issues []Issue
	for _, q := range d.VisibleQuestions(responses) {
		if msg := validateAnswer(q, responses[q.ID]); msg != "" {
			issues = append(issues, Issue{QuestionID: q.ID, Message: msg})
		}
	}
	return issues
}

func validateAnswer(q Question, answer any) string {
	if isBlank(answer) {
		if q.Required {
			return "answer is required"
		}
		return ""
	}

	switch q.Type {
	case SingleChoice:
		s, ok := answer.(string)
		if !ok {
			return "expected a single option"
		}
		if !contains(q.Options, s) {
			return fmt.Sprintf("%q is not one of the options", s)
		}
	case MultiChoice:
		values, ok := stringList(answer)
		if !ok {
			return "expected a list of options"
		}
		for _, v := range values {
			if !contains(q.Options, v) {
				return fmt.Sprintf("%q is not one of the options", v)
			}
		}
	case Numeric:
		n, ok := number(answer)
		if !ok {
			return "expected a number"
		}
		if q.Range != nil && (n < q.Range.Min || n > q.Range.Max) {
			return fmt.Sprintf("must be between %s and %s", formatFloat(q.Range.Min), formatFloat(q.Range.Max))
		}
	case ShortText, LongText:
		s, ok := answer.(string)
		if !ok {
			return "expected text"
		}
		if q.MaxLength > 0 && utf8.RuneCountInString(s) > q.MaxLength {
			return fmt.Sprintf("must be at most %d characters", q.MaxLength)
		}
	case FileUpload:
		if _, ok := answer.(string); !ok {
			return "expected an uploaded object key"
		}
	}
	return ""
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case []any:
		return len(t) == 0
	case []string:
		return len(t) == 0
	}
	return false
}

func stringList(v any) ([]string, bool) {
	switch t := v.(type) {
	case []string:
		return t, true
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func number(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case int:
		return float64(t), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f, err == nil && !math.IsNaN(f) && !math.IsInf(f, 0)
	}
	return 0, false
}

func contains(options []string, v string) bool {
	for _, o := range options {
		if o == v {
			return true
		}
	}
	return false
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
