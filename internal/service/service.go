// Package service implements the assessment pipeline operations on top
// of the store and the model provider: generation, scan import, grading
// and question editing. All tier gating happens here; handlers only
// translate transport concerns.
package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/provagen/provagen/internal/editor"
	"github.com/provagen/provagen/internal/grading"
	"github.com/provagen/provagen/internal/llm"
	"github.com/provagen/provagen/internal/llm/prompts"
	"github.com/provagen/provagen/internal/model"
	"github.com/provagen/provagen/internal/parser"
	"github.com/provagen/provagen/internal/plan"
	"github.com/provagen/provagen/internal/store"
)

// externalDocumentType labels documents imported from scans rather than
// generated, so history views can tell the two apart.
const externalDocumentType = "Prova Externa"

type Service struct {
	store  *store.Store
	model  llm.Invoker
	logger *slog.Logger
}

func New(st *store.Store, invoker llm.Invoker, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: st, model: invoker, logger: logger}
}

// DefaultCounts suggests question totals for a document type: a full
// exam gets 10 questions, a practice simulado 20, anything else 5. The
// split is 60% objective, remainder discursive.
func DefaultCounts(documentType string) (total, objective, discursive int) {
	switch strings.ToLower(strings.TrimSpace(documentType)) {
	case "prova":
		total = 10
	case "simulado":
		total = 20
	default:
		total = 5
	}
	objective = total * 60 / 100
	discursive = total - objective
	return total, objective, discursive
}

// Generate runs the full generation pipeline: validate the request,
// gate on the account's monthly quota, prompt the model, validate its
// output and persist the document.
func (s *Service) Generate(ctx context.Context, accountID string, tier plan.Tier, params model.GenerationParams) (model.AssessmentDocument, error) {
	if err := validateGeneration(params); err != nil {
		return model.AssessmentDocument{}, err
	}
	if err := s.gateQuota(accountID, tier); err != nil {
		return model.AssessmentDocument{}, err
	}

	prompt, err := prompts.BuildGeneration(params)
	if err != nil {
		return model.AssessmentDocument{}, fmt.Errorf("build generation prompt: %w", err)
	}

	s.logger.Info("generating assessment",
		"account", accountID,
		"type", params.DocumentType,
		"topics", params.Topics,
		"total", params.TotalQuestions)

	raw, err := s.model.Invoke(ctx, prompt, nil)
	if err != nil {
		return model.AssessmentDocument{}, fmt.Errorf("model request: %w", err)
	}
	doc, err := parser.ParseDocument(raw)
	if err != nil {
		return model.AssessmentDocument{}, err
	}

	doc.DocumentType = params.DocumentType
	doc.EducationLevel = params.EducationLevel
	doc.GradeTrack = params.GradeTrack
	doc.Topics = params.Topics
	doc.Difficulty = params.Difficulty
	doc.Metadata = &model.GenerationMetadata{
		TotalQuestions:  params.TotalQuestions,
		ObjectiveCount:  params.ObjectiveCount,
		DiscursiveCount: params.DiscursiveCount,
	}
	if strings.TrimSpace(doc.Title) == "" {
		doc.Title = params.DocumentType
	}

	created, err := s.store.CreateDocument(accountID, *doc)
	if err != nil {
		return model.AssessmentDocument{}, fmt.Errorf("persist document: %w", err)
	}
	return created, nil
}

// Extract transcribes a scanned assessment into the canonical document
// shape without persisting it. It is not quota gated: nothing is stored
// and the caller may just be previewing.
func (s *Service) Extract(ctx context.Context, attachments []model.Attachment) (*model.AssessmentDocument, error) {
	if err := validateAttachments(attachments); err != nil {
		return nil, err
	}

	prompt, err := prompts.BuildExtraction(len(attachments))
	if err != nil {
		return nil, fmt.Errorf("build extraction prompt: %w", err)
	}

	s.logger.Info("extracting assessment from scan", "pages", len(attachments))

	raw, err := s.model.Invoke(ctx, prompt, attachments)
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	return parser.ParseDocument(raw)
}

// Import extracts a scanned assessment and persists it under the
// account, consuming one document from the monthly quota. Imported
// documents are labeled as external unless the scan carried a type.
func (s *Service) Import(ctx context.Context, accountID string, tier plan.Tier, attachments []model.Attachment) (model.AssessmentDocument, error) {
	if err := validateAttachments(attachments); err != nil {
		return model.AssessmentDocument{}, err
	}
	if err := s.gateQuota(accountID, tier); err != nil {
		return model.AssessmentDocument{}, err
	}

	doc, err := s.Extract(ctx, attachments)
	if err != nil {
		return model.AssessmentDocument{}, err
	}
	if strings.TrimSpace(doc.DocumentType) == "" {
		doc.DocumentType = externalDocumentType
	}

	created, err := s.store.CreateDocument(accountID, *doc)
	if err != nil {
		return model.AssessmentDocument{}, fmt.Errorf("persist document: %w", err)
	}
	return created, nil
}

// Correct grades a student's completed submission against a stored
// document: the scan pages go to the model together with the
// authoritative questions and answer key, and the model's report is
// reconciled into a bounded grading result.
func (s *Service) Correct(ctx context.Context, accountID string, tier plan.Tier, documentID string, attachments []model.Attachment) (*grading.Result, error) {
	if !plan.ForTier(tier).AllowsOCRCorrection {
		return nil, &model.ValidationError{Field: "plan", Reason: "current plan does not include scan correction"}
	}
	if err := validateAttachments(attachments); err != nil {
		return nil, err
	}

	doc, err := s.Get(accountID, documentID)
	if err != nil {
		return nil, err
	}

	prompt, err := prompts.BuildCorrection(&doc, len(attachments))
	if err != nil {
		return nil, fmt.Errorf("build correction prompt: %w", err)
	}

	s.logger.Info("correcting submission",
		"account", accountID,
		"document", documentID,
		"pages", len(attachments))

	raw, err := s.model.Invoke(ctx, prompt, attachments)
	if err != nil {
		return nil, fmt.Errorf("model request: %w", err)
	}
	report, err := parser.ParseCorrection(raw)
	if err != nil {
		return nil, err
	}
	res := grading.Reconcile(&doc, report)
	return &res, nil
}

// ApplyEdit replaces one question of a stored document and persists the
// synchronized questions and answer key.
func (s *Service) ApplyEdit(accountID, documentID string, index int, question model.Question, designatedCorrect *string) (model.AssessmentDocument, error) {
	if strings.TrimSpace(question.Text) == "" {
		return model.AssessmentDocument{}, &model.ValidationError{Field: "question", Reason: "text must not be empty"}
	}
	if !question.Kind.Valid() {
		return model.AssessmentDocument{}, &model.ValidationError{Field: "type", Reason: fmt.Sprintf("unknown question kind %q", question.Kind)}
	}

	doc, err := s.Get(accountID, documentID)
	if err != nil {
		return model.AssessmentDocument{}, err
	}

	updated, err := editor.ApplyEdit(&doc, index, question, designatedCorrect)
	if err != nil {
		return model.AssessmentDocument{}, err
	}

	if err := s.store.UpdateQuestions(accountID, documentID, updated.Questions, updated.AnswerKey); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AssessmentDocument{}, &model.NotFoundError{Kind: "document", ID: documentID}
		}
		return model.AssessmentDocument{}, fmt.Errorf("persist edit: %w", err)
	}
	return *updated, nil
}

// Get returns one of the account's documents.
func (s *Service) Get(accountID, documentID string) (model.AssessmentDocument, error) {
	doc, err := s.store.GetDocument(accountID, documentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.AssessmentDocument{}, &model.NotFoundError{Kind: "document", ID: documentID}
		}
		return model.AssessmentDocument{}, fmt.Errorf("load document: %w", err)
	}
	return doc, nil
}

// List returns the account's documents, newest first.
func (s *Service) List(accountID string) ([]model.AssessmentDocument, error) {
	return s.store.ListDocuments(accountID)
}

// Delete removes one of the account's documents.
func (s *Service) Delete(accountID, documentID string) error {
	if err := s.store.DeleteDocument(accountID, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &model.NotFoundError{Kind: "document", ID: documentID}
		}
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// gateQuota counts the account's documents in the current calendar
// month and applies the tier limit. The count and the later insert are
// separate statements, so the limit is soft under concurrency.
func (s *Service) gateQuota(accountID string, tier plan.Tier) error {
	usage, err := s.store.CountCreatedSince(accountID, plan.PeriodStart(time.Now().UTC()))
	if err != nil {
		return fmt.Errorf("count period usage: %w", err)
	}
	return plan.CheckQuota(tier, usage)
}

func validateGeneration(p model.GenerationParams) error {
	if strings.TrimSpace(p.EducationLevel) == "" {
		return &model.ValidationError{Field: "level", Reason: "education level is required"}
	}
	if strings.TrimSpace(p.DocumentType) == "" {
		return &model.ValidationError{Field: "type", Reason: "document type is required"}
	}
	if len(p.Topics) == 0 {
		return &model.ValidationError{Field: "topics", Reason: "at least one topic is required"}
	}
	for _, topic := range p.Topics {
		if strings.TrimSpace(topic) == "" {
			return &model.ValidationError{Field: "topics", Reason: "topics must not be empty"}
		}
	}
	if p.TotalQuestions <= 0 {
		return &model.ValidationError{Field: "totalQuestions", Reason: "must be positive"}
	}
	if p.ObjectiveCount < 0 || p.DiscursiveCount < 0 {
		return &model.ValidationError{Field: "totalQuestions", Reason: "question counts must not be negative"}
	}
	if p.ObjectiveCount+p.DiscursiveCount != p.TotalQuestions {
		return &model.ValidationError{
			Field:  "totalQuestions",
			Reason: fmt.Sprintf("objective (%d) + discursive (%d) must equal total (%d)", p.ObjectiveCount, p.DiscursiveCount, p.TotalQuestions),
		}
	}
	if p.Difficulty != "" {
		switch p.Difficulty {
		case model.DifficultyEasy, model.DifficultyMedium, model.DifficultyHard:
		default:
			return &model.ValidationError{Field: "difficulty", Reason: fmt.Sprintf("unknown difficulty %q", p.Difficulty)}
		}
	}
	return nil
}

func validateAttachments(attachments []model.Attachment) error {
	if len(attachments) == 0 {
		return &model.ValidationError{Field: "files", Reason: "at least one page is required"}
	}
	for i, a := range attachments {
		if len(a.Data) == 0 {
			return &model.ValidationError{Field: "files", Reason: fmt.Sprintf("page %d is empty", i+1)}
		}
		if strings.TrimSpace(a.MIMEType) == "" {
			return &model.ValidationError{Field: "files", Reason: fmt.Sprintf("page %d has no content type", i+1)}
		}
	}
	return nil
}
