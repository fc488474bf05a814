// Package handler exposes the assessment pipeline as a JSON API. It
// translates transport concerns only: multipart pages into attachments,
// headers into account and tier, and the pipeline's error taxonomy into
// status codes with localized messages.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/provagen/provagen/internal/i18n"
	"github.com/provagen/provagen/internal/model"
	"github.com/provagen/provagen/internal/plan"
	"github.com/provagen/provagen/internal/service"
)

// maxUploadBytes bounds one multipart submission (all pages together).
const maxUploadBytes = 32 << 20

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	service *service.Service
	logger  *slog.Logger
}

// New creates a new Handler.
func New(svc *service.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{service: svc, logger: logger}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/generate", h.handleGenerate)
	r.Post("/api/extract", h.handleExtract)
	r.Post("/api/import", h.handleImport)
	r.Get("/api/documents", h.handleList)
	r.Get("/api/documents/{documentID}", h.handleGet)
	r.Delete("/api/documents/{documentID}", h.handleDelete)
	r.Patch("/api/documents/{documentID}/questions/{index}", h.handleEditQuestion)
	r.Post("/api/documents/{documentID}/correct", h.handleCorrect)
}

// accountID identifies the caller. There is no authentication layer
// here; the header is trusted and expected to be set by the gateway in
// front of this service.
func accountID(r *http.Request) string {
	if id := r.Header.Get("X-Account-ID"); id != "" {
		return id
	}
	return "anonymous"
}

func tier(r *http.Request) plan.Tier {
	return plan.Resolve(r.Header.Get("X-Plan"))
}

// generateRequest is the generation payload. Counts may be omitted
// together, in which case the document type's defaults apply.
type generateRequest struct {
	EducationLevel  string           `json:"level"`
	GradeTrack      string           `json:"series"`
	DocumentType    string           `json:"type"`
	Topics          []string         `json:"topics"`
	Difficulty      model.Difficulty `json:"difficulty"`
	TotalQuestions  int              `json:"totalQuestions"`
	ObjectiveCount  int              `json:"objectiveCount"`
	DiscursiveCount int              `json:"discursiveCount"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, &model.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	params := model.GenerationParams{
		EducationLevel:  req.EducationLevel,
		GradeTrack:      req.GradeTrack,
		DocumentType:    req.DocumentType,
		Topics:          req.Topics,
		Difficulty:      req.Difficulty,
		TotalQuestions:  req.TotalQuestions,
		ObjectiveCount:  req.ObjectiveCount,
		DiscursiveCount: req.DiscursiveCount,
	}
	if params.TotalQuestions == 0 && params.ObjectiveCount == 0 && params.DiscursiveCount == 0 {
		params.TotalQuestions, params.ObjectiveCount, params.DiscursiveCount = service.DefaultCounts(req.DocumentType)
	}

	doc, err := h.service.Generate(r.Context(), accountID(r), tier(r), params)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleExtract(w http.ResponseWriter, r *http.Request) {
	pages, err := h.readPages(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	doc, err := h.service.Extract(r.Context(), pages)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	pages, err := h.readPages(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	doc, err := h.service.Import(r.Context(), accountID(r), tier(r), pages)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, doc)
}

func (h *Handler) handleCorrect(w http.ResponseWriter, r *http.Request) {
	pages, err := h.readPages(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	res, err := h.service.Correct(r.Context(), accountID(r), tier(r), chi.URLParam(r, "documentID"), pages)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	docs, err := h.service.List(accountID(r))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []model.AssessmentDocument{}
	}
	h.writeJSON(w, http.StatusOK, docs)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.service.Get(accountID(r), chi.URLParam(r, "documentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(accountID(r), chi.URLParam(r, "documentID")); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// editRequest replaces one question in full. A non-nil correctAnswer
// overrides the answer-key designation for that question.
type editRequest struct {
	Question      model.Question `json:"question"`
	CorrectAnswer *string        `json:"correctAnswer"`
}

func (h *Handler) handleEditQuestion(w http.ResponseWriter, r *http.Request) {
	index, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		h.writeError(w, r, &model.ValidationError{Field: "index", Reason: "question index must be an integer"})
		return
	}

	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, &model.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}

	doc, err := h.service.ApplyEdit(accountID(r), chi.URLParam(r, "documentID"), index, req.Question, req.CorrectAnswer)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, doc)
}

// readPages collects the multipart "files" parts, in submission order,
// as model attachments. The content type comes from the part header,
// falling back to content sniffing.
func (h *Handler) readPages(r *http.Request) ([]model.Attachment, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, &model.ValidationError{Field: "files", Reason: "expected multipart form data"}
	}
	if r.MultipartForm == nil || len(r.MultipartForm.File["files"]) == 0 {
		return nil, &model.ValidationError{Field: "files", Reason: "at least one page is required"}
	}

	var pages []model.Attachment
	for _, header := range r.MultipartForm.File["files"] {
		file, err := header.Open()
		if err != nil {
			return nil, &model.ValidationError{Field: "files", Reason: "unreadable upload: " + header.Filename}
		}
		data := make([]byte, header.Size)
		if _, err := io.ReadFull(file, data); err != nil {
			file.Close()
			return nil, &model.ValidationError{Field: "files", Reason: "unreadable upload: " + header.Filename}
		}
		file.Close()

		mimeType := header.Header.Get("Content-Type")
		if mimeType == "" || mimeType == "application/octet-stream" {
			mimeType = http.DetectContentType(data)
		}
		pages = append(pages, model.Attachment{MIMEType: mimeType, Data: data})
	}
	return pages, nil
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("encode response", "error", err)
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// writeError maps the pipeline's error taxonomy onto status codes. The
// response message is localized; the log line keeps the raw error.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	var (
		verr *model.ValidationError
		qerr *model.QuotaExceededError
		nerr *model.NotFoundError
		oerr *model.IndexOutOfRangeError
		perr *model.ParseError
	)
	var status int
	var msg string

	switch {
	case errors.As(err, &verr):
		status = http.StatusBadRequest
		msg = i18n.Td(ctx, "ErrValidation", map[string]any{"Reason": verr.Reason})
	case errors.As(err, &qerr):
		status = http.StatusTooManyRequests
		msg = i18n.Td(ctx, "ErrQuotaExceeded", map[string]any{"Plan": qerr.Label, "Limit": qerr.Limit})
	case errors.As(err, &nerr):
		status = http.StatusNotFound
		msg = i18n.T(ctx, "ErrDocumentNotFound")
	case errors.As(err, &oerr):
		status = http.StatusConflict
		msg = i18n.T(ctx, "ErrQuestionOutOfRange")
	case errors.As(err, &perr):
		status = http.StatusBadGateway
		msg = i18n.T(ctx, "ErrModelOutput")
	default:
		status = http.StatusInternalServerError
		msg = i18n.T(ctx, "ErrInternal")
	}

	if status >= 500 {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	} else {
		h.logger.Info("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}

	h.writeJSON(w, status, errorResponse{Error: msg})
}
