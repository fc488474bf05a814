package model

import "time"

// QuestionKind distinguishes the two supported question variants.
type QuestionKind string

const (
	// KindMultipleChoice is a question answered by picking one choice.
	KindMultipleChoice QuestionKind = "multiple_choice"
	// KindDiscursive is a free-text question.
	KindDiscursive QuestionKind = "discursive"
)

// Valid reports whether the kind is one of the known variants.
func (k QuestionKind) Valid() bool {
	return k == KindMultipleChoice || k == KindDiscursive
}

// Difficulty represents the requested difficulty level of an assessment.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is a single assessment item. Choices must be present (2-5
// entries) for multiple_choice questions and empty for discursive ones.
// The JSON field names match the wire format the model is instructed
// to produce.
type Question struct {
	Text    string       `json:"question"`
	Kind    QuestionKind `json:"type"`
	Choices []string     `json:"options,omitempty"`
}

// AnswerKeyEntry is the expected answer for the question at the same
// ordinal position. ReferenceText mirrors the question text for human
// auditing; it is derived and re-synchronized on every edit, never
// authored independently.
//
// For multiple choice, ExpectedAnswer designates the correct choice in
// one of three accepted forms, mixed freely by the model:
//   - the exact choice text ("Lyon");
//   - the "Opção X" prefix convention ("Opção C"), case-insensitive;
//   - a bare letter label ("A".."E"), case-insensitive.
//
// For discursive questions it is free-text guidance; empty means no
// reference answer was defined.
type AnswerKeyEntry struct {
	ReferenceText  string `json:"question"`
	ExpectedAnswer string `json:"answer"`
}

// GenerationMetadata records the requested question totals for audit.
type GenerationMetadata struct {
	TotalQuestions  int `json:"totalQuestions"`
	ObjectiveCount  int `json:"objectiveCount"`
	DiscursiveCount int `json:"discursiveCount"`
}

// AssessmentDocument is the aggregate persisted entity. Questions and
// AnswerKey always have equal length while the document is valid, and
// are mutated only through the edit synchronizer.
type AssessmentDocument struct {
	ID             string              `json:"id"`
	Title          string              `json:"title"`
	DocumentType   string              `json:"type"`
	EducationLevel string              `json:"level"`
	GradeTrack     string              `json:"series,omitempty"`
	Topics         []string            `json:"topics"`
	Difficulty     Difficulty          `json:"difficulty,omitempty"`
	Questions      []Question          `json:"questions"`
	AnswerKey      []AnswerKeyEntry    `json:"answerKey"`
	CreatedAt      time.Time           `json:"createdAt"`
	Metadata       *GenerationMetadata `json:"generationMetadata,omitempty"`
}

// CorrectionStatus classifies one graded outcome. It is a three-way
// enum, not a boolean: partial credit is distinct from both extremes.
type CorrectionStatus string

const (
	StatusCorrect CorrectionStatus = "correct"
	StatusPartial CorrectionStatus = "partial"
	StatusWrong   CorrectionStatus = "wrong"
)

// Valid reports whether the status is one of the known values.
func (s CorrectionStatus) Valid() bool {
	return s == StatusCorrect || s == StatusPartial || s == StatusWrong
}

// CorrectionItem is one graded outcome from a correction report.
type CorrectionItem struct {
	QuestionIndex int              `json:"questionIndex"`
	Status        CorrectionStatus `json:"status"`
	Score         float64          `json:"score"`
	Feedback      string           `json:"teacherFeedback"`
}

// CorrectionResult is the aggregate outcome of one grading request.
// It is ephemeral model output; persistence is the caller's concern.
type CorrectionResult struct {
	StudentLabel string           `json:"studentName"`
	FinalGrade   float64          `json:"finalGrade"`
	Items        []CorrectionItem `json:"corrections"`
}

// GenerationParams are the fully explicit inputs to the generation
// prompt builder. ObjectiveCount + DiscursiveCount must equal
// TotalQuestions; the service validates this before building a prompt.
type GenerationParams struct {
	EducationLevel  string     `json:"level"`
	GradeTrack      string     `json:"series"`
	DocumentType    string     `json:"type"`
	Topics          []string   `json:"topics"`
	Difficulty      Difficulty `json:"difficulty,omitempty"`
	TotalQuestions  int        `json:"totalQuestions"`
	ObjectiveCount  int        `json:"objectiveCount"`
	DiscursiveCount int        `json:"discursiveCount"`
}

// Attachment is one binary page or image submitted to the model.
// Order is semantic: pages are submitted in the order supplied.
type Attachment struct {
	MIMEType string
	Data     []byte
}
