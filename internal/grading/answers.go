package grading

import (
	"strings"

	"github.com/provagen/provagen/internal/model"
)

// Answer keys designate the correct choice of a multiple-choice
// question in one of three forms, mixed freely by the model: the exact
// choice text, the "Opção X" prefix convention, or a bare letter label.
// This is fuzzy string matching, not a grammar; the functions below
// implement the three accepted forms explicitly.

// MatchesChoice reports whether expected designates the choice at
// position pos (0-based).
func MatchesChoice(expected, choice string, pos int) bool {
	e := strings.TrimSpace(expected)
	c := strings.TrimSpace(choice)
	if e == "" {
		return false
	}

	// Exact choice text, or the full text embedded in a longer answer
	// ("A resposta correta é Paris").
	if c != "" && strings.Contains(strings.ToLower(e), strings.ToLower(c)) {
		return true
	}

	letter := choiceLetter(pos)
	if letter == "" {
		return false
	}

	// "Opção X" convention, accent optional.
	le := strings.ToLower(e)
	if strings.Contains(le, "opção "+strings.ToLower(letter)) ||
		strings.Contains(le, "opcao "+strings.ToLower(letter)) {
		return true
	}

	// Bare letter label, possibly with a closing parenthesis ("C" / "c)").
	return strings.EqualFold(e, letter) || strings.EqualFold(e, letter+")")
}

// CorrectChoiceIndex resolves the designated correct choice of a
// multiple-choice question, or -1 when nothing matches. When several
// forms could apply, the most specific wins: exact text first, then the
// "Opção X" convention, then a bare letter (a lone "A" can occur inside
// choice text by accident).
func CorrectChoiceIndex(q model.Question, expected string) int {
	if q.Kind != model.KindMultipleChoice {
		return -1
	}
	e := strings.TrimSpace(expected)
	if e == "" {
		return -1
	}

	for i, c := range q.Choices {
		if strings.EqualFold(strings.TrimSpace(c), e) {
			return i
		}
	}
	le := strings.ToLower(e)
	for i := range q.Choices {
		letter := strings.ToLower(choiceLetter(i))
		if strings.Contains(le, "opção "+letter) || strings.Contains(le, "opcao "+letter) {
			return i
		}
	}
	for i := range q.Choices {
		letter := choiceLetter(i)
		if strings.EqualFold(e, letter) || strings.EqualFold(e, letter+")") {
			return i
		}
	}
	// Last resort: embedded choice text.
	for i, c := range q.Choices {
		ct := strings.TrimSpace(c)
		if ct != "" && strings.Contains(le, strings.ToLower(ct)) {
			return i
		}
	}
	return -1
}

// choiceLetter returns the letter label for a choice position, "A"
// through "E"; positions beyond the practical 2-5 choice range get no
// label.
func choiceLetter(pos int) string {
	if pos < 0 || pos > 4 {
		return ""
	}
	return string(rune('A' + pos))
}
