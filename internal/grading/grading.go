// Package grading reconciles a model-produced correction report against
// the stored assessment document. The report's final grade and statuses
// are trusted; scores are only clamped and out-of-range items are
// flagged, never dropped.
package grading

import (
	"strings"

	"github.com/provagen/provagen/internal/model"
)

// MaxGrade is the fixed grading scale ceiling.
const MaxGrade = 10.0

// Outcome is one displayable per-question result.
type Outcome struct {
	Item model.CorrectionItem `json:"item"`
	// QuestionText is the stored question text for audit display;
	// empty when the item is orphaned.
	QuestionText string `json:"questionText,omitempty"`
	// Orphaned marks an item whose index does not resolve to a real
	// question. The model may emit an extra or miscounted item; that is
	// not a failure of the whole report.
	Orphaned bool `json:"orphaned,omitempty"`
	// CorrectChoice is the answer key's designated choice index for a
	// multiple-choice question, resolved through the three accepted
	// designation forms; -1 for discursive questions, orphaned items and
	// designations that match no choice.
	CorrectChoice int `json:"correctChoice"`
}

// Result is the reconciled grading outcome for one submission.
type Result struct {
	StudentLabel string    `json:"studentName"`
	FinalGrade   float64   `json:"finalGrade"`
	Outcomes     []Outcome `json:"outcomes"`
}

// Reconcile maps the report's items onto the document's questions and
// clamps grades into range. FinalGrade is authoritative from the report
// (not recomputed) but clamped to [0, MaxGrade]; each item's score is
// clamped to its per-question share of the scale.
func Reconcile(doc *model.AssessmentDocument, report *model.CorrectionResult) Result {
	res := Result{
		StudentLabel: report.StudentLabel,
		FinalGrade:   clamp(report.FinalGrade, 0, MaxGrade),
		Outcomes:     make([]Outcome, 0, len(report.Items)),
	}
	if strings.TrimSpace(res.StudentLabel) == "" {
		res.StudentLabel = "Aluno"
	}

	share := MaxGrade
	if len(doc.Questions) > 0 {
		share = MaxGrade / float64(len(doc.Questions))
	}

	for _, item := range report.Items {
		o := Outcome{Item: item, CorrectChoice: -1}
		if item.QuestionIndex >= 0 && item.QuestionIndex < len(doc.Questions) {
			q := doc.Questions[item.QuestionIndex]
			o.QuestionText = q.Text
			o.Item.Score = clamp(item.Score, 0, share)
			if item.QuestionIndex < len(doc.AnswerKey) {
				o.CorrectChoice = CorrectChoiceIndex(q, doc.AnswerKey[item.QuestionIndex].ExpectedAnswer)
			}
		} else {
			o.Orphaned = true
		}
		res.Outcomes = append(res.Outcomes, o)
	}
	return res
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
