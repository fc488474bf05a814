// Package parser turns raw model output into validated canonical types.
// Model output is untrusted external input: it is fully validated
// against the canonical schema, with no coercion and no guessing of
// missing fields. Any violation fails with a ParseError carrying the
// raw text for diagnostics.
package parser

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/provagen/provagen/internal/model"
)

// stripCodeFences removes enclosing markdown fences. The instructions
// forbid them, but models add them anyway often enough to defend against.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// rawDocument mirrors the document wire format the model is asked for.
type rawDocument struct {
	Title     string                 `json:"title"`
	Level     string                 `json:"level"`
	Type      string                 `json:"type"`
	Questions []model.Question       `json:"questions"`
	AnswerKey []model.AnswerKeyEntry `json:"answerKey"`
}

// ParseDocument decodes a generation or extraction response into an
// assessment document. The returned document carries only the fields
// the model produced (title, optional level/type, questions, answer
// key); the caller fills in id, ownership and request parameters.
func ParseDocument(raw string) (*model.AssessmentDocument, error) {
	clean := stripCodeFences(raw)

	var rd rawDocument
	if err := json.Unmarshal([]byte(clean), &rd); err != nil {
		return nil, &model.ParseError{Raw: raw, Err: fmt.Errorf("decode document: %w", err)}
	}
	if err := validateDocument(&rd); err != nil {
		return nil, &model.ParseError{Raw: raw, Err: err}
	}

	return &model.AssessmentDocument{
		Title:          rd.Title,
		EducationLevel: rd.Level,
		DocumentType:   rd.Type,
		Questions:      rd.Questions,
		AnswerKey:      rd.AnswerKey,
	}, nil
}

func validateDocument(rd *rawDocument) error {
	if len(rd.Questions) == 0 {
		return fmt.Errorf("document has no questions")
	}
	if len(rd.AnswerKey) != len(rd.Questions) {
		return fmt.Errorf("answer key has %d entries for %d questions", len(rd.AnswerKey), len(rd.Questions))
	}
	for i, q := range rd.Questions {
		if strings.TrimSpace(q.Text) == "" {
			return fmt.Errorf("question %d: empty text", i)
		}
		if !q.Kind.Valid() {
			return fmt.Errorf("question %d: unknown kind %q", i, q.Kind)
		}
		switch q.Kind {
		case model.KindMultipleChoice:
			if len(q.Choices) < 2 {
				return fmt.Errorf("question %d: multiple choice needs at least 2 options, got %d", i, len(q.Choices))
			}
		case model.KindDiscursive:
			if len(q.Choices) > 0 {
				return fmt.Errorf("question %d: discursive question must not have options", i)
			}
		}
	}
	return nil
}

// ParseCorrection decodes a correction response. Item indexes beyond
// the document's bounds are accepted here and flagged as orphans by the
// grading reconciler; negative indexes and unknown statuses are
// malformed output and rejected.
func ParseCorrection(raw string) (*model.CorrectionResult, error) {
	clean := stripCodeFences(raw)

	var cr model.CorrectionResult
	if err := json.Unmarshal([]byte(clean), &cr); err != nil {
		return nil, &model.ParseError{Raw: raw, Err: fmt.Errorf("decode correction: %w", err)}
	}
	for i, item := range cr.Items {
		if item.QuestionIndex < 0 {
			return nil, &model.ParseError{Raw: raw, Err: fmt.Errorf("correction %d: negative question index %d", i, item.QuestionIndex)}
		}
		if !item.Status.Valid() {
			return nil, &model.ParseError{Raw: raw, Err: fmt.Errorf("correction %d: unknown status %q", i, item.Status)}
		}
	}
	return &cr, nil
}
