// Package editor applies in-place edits to one question of an
// assessment document while keeping the paired answer-key entry
// aligned. Documents are never mutated; callers persist the returned
// copy (questions and answer key only, other fields are untouched).
package editor

import (
	"strings"

	"github.com/provagen/provagen/internal/grading"
	"github.com/provagen/provagen/internal/model"
)

// ApplyEdit replaces questions[index] in full with newQuestion and
// reconciles answerKey[index]:
//
//   - referenceText is unconditionally overwritten with the new
//     question text (it is derived, never independently edited);
//   - a missing entry (sparse key from a partial import) is synthesized
//     with an empty expected answer;
//   - when designatedCorrect is non-nil it replaces the expected
//     answer outright; otherwise a designation that named a renamed
//     choice by text migrates to the new text at the same position.
//
// The only failure is an out-of-range index, which signals a stale
// client view.
func ApplyEdit(doc *model.AssessmentDocument, index int, newQuestion model.Question, designatedCorrect *string) (*model.AssessmentDocument, error) {
	if index < 0 || index >= len(doc.Questions) {
		return nil, &model.IndexOutOfRangeError{Index: index, Len: len(doc.Questions)}
	}

	out := *doc
	out.Questions = append([]model.Question(nil), doc.Questions...)
	out.AnswerKey = append([]model.AnswerKeyEntry(nil), doc.AnswerKey...)

	oldQuestion := doc.Questions[index]
	out.Questions[index] = newQuestion

	for len(out.AnswerKey) <= index {
		out.AnswerKey = append(out.AnswerKey, model.AnswerKeyEntry{})
	}
	entry := &out.AnswerKey[index]

	if designatedCorrect != nil {
		entry.ExpectedAnswer = *designatedCorrect
	} else {
		entry.ExpectedAnswer = migrateDesignation(entry.ExpectedAnswer, oldQuestion, newQuestion)
	}
	entry.ReferenceText = newQuestion.Text

	return &out, nil
}

// migrateDesignation keeps the "correct" marking attached to its choice
// position across a single edit: if the choice text at some position
// changed and the designation named the old text, the designation
// follows the position. A designation that still resolves against the
// new text (letter and "Opção X" forms address the position itself)
// needs no migration.
func migrateDesignation(expected string, oldQ, newQ model.Question) string {
	if oldQ.Kind != model.KindMultipleChoice || newQ.Kind != model.KindMultipleChoice {
		return expected
	}
	e := strings.TrimSpace(expected)
	if e == "" {
		return expected
	}
	n := min(len(oldQ.Choices), len(newQ.Choices))
	for i := 0; i < n; i++ {
		if oldQ.Choices[i] == newQ.Choices[i] {
			continue
		}
		if grading.MatchesChoice(e, newQ.Choices[i], i) {
			continue
		}
		if grading.MatchesChoice(e, oldQ.Choices[i], i) {
			return newQ.Choices[i]
		}
	}
	return expected
}
