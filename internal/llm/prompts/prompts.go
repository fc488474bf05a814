// Package prompts renders model instructions from typed parameters.
// Templates are plain text files embedded at build time; every input is
// explicit, nothing is defaulted inside a template.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"text/template"

	"github.com/provagen/provagen/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[string]*template.Template
)

func load() error {
	loadOnce.Do(func() {
		templates = make(map[string]*template.Template)
		for _, name := range []string{"generation", "extraction", "correction"} {
			file := "templates/" + name + ".txt"
			content, err := templateFS.ReadFile(file)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", file, err)
				return
			}
			tmpl, err := template.New(name).Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", file, err)
				return
			}
			templates[name] = tmpl
		}
	})
	return loadErr
}

func render(name string, data any) (string, error) {
	if err := load(); err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := templates[name].Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", name, err)
	}
	return buf.String(), nil
}

// generationData holds template data for the generation prompt.
type generationData struct {
	EducationLevel string
	GradeTrack     string
	DocumentType   string
	TopicsList     string
	Difficulty     string
	Total          int
	Objective      int
	Discursive     int
}

// extractionData holds template data for the extraction prompt.
type extractionData struct {
	PageCount int
}

// correctionData holds template data for the correction prompt.
type correctionData struct {
	PageCount     int
	QuestionsJSON string
	AnswerKeyJSON string
}

// BuildGeneration renders the generation instruction: exact total count,
// exact split by kind, topic restriction and the strict JSON output
// contract. Precondition (not re-checked here): ObjectiveCount +
// DiscursiveCount == TotalQuestions, enforced by the validation layer.
func BuildGeneration(p model.GenerationParams) (string, error) {
	return render("generation", generationData{
		EducationLevel: p.EducationLevel,
		GradeTrack:     p.GradeTrack,
		DocumentType:   p.DocumentType,
		TopicsList:     strings.Join(p.Topics, ", "),
		Difficulty:     string(p.Difficulty),
		Total:          p.TotalQuestions,
		Objective:      p.ObjectiveCount,
		Discursive:     p.DiscursiveCount,
	})
}

// BuildExtraction renders the import instruction for pageCount scan
// attachments: transcribe every question in order, classify kind, solve
// the paper to synthesize the answer key, emit the canonical schema.
func BuildExtraction(pageCount int) (string, error) {
	return render("extraction", extractionData{PageCount: pageCount})
}

// BuildCorrection renders the grading instruction for a completed
// submission, embedding the stored questions and answer key as JSON so
// the model compares against the authoritative data.
func BuildCorrection(doc *model.AssessmentDocument, pageCount int) (string, error) {
	questionsJSON, err := json.Marshal(doc.Questions)
	if err != nil {
		return "", fmt.Errorf("marshal questions: %w", err)
	}
	answerKeyJSON, err := json.Marshal(doc.AnswerKey)
	if err != nil {
		return "", fmt.Errorf("marshal answer key: %w", err)
	}
	return render("correction", correctionData{
		PageCount:     pageCount,
		QuestionsJSON: string(questionsJSON),
		AnswerKeyJSON: string(answerKeyJSON),
	})
}
