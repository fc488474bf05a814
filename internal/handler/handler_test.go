package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/provagen/provagen/internal/i18n"
	"github.com/provagen/provagen/internal/llm"
	"github.com/provagen/provagen/internal/model"
	"github.com/provagen/provagen/internal/service"
	"github.com/provagen/provagen/internal/store"
)

type stubInvoker struct {
	response string
}

func (s *stubInvoker) Invoke(context.Context, string, []model.Attachment) (string, error) {
	return s.response, nil
}

const documentJSON = `{
	"title": "Prova de Matemática",
	"questions": [
		{"question": "Quanto é 7 x 8?", "type": "multiple_choice", "options": ["54", "56", "64"]},
		{"question": "Explique o que é um número primo.", "type": "discursive"}
	],
	"answerKey": [
		{"question": "Quanto é 7 x 8?", "answer": "Opção B"},
		{"question": "Explique o que é um número primo.", "answer": "Divisível apenas por 1 e por ele mesmo."}
	]
}`

func newTestServer(t *testing.T, invoker llm.Invoker) *httptest.Server {
	t.Helper()
	if err := i18n.Init("en"); err != nil {
		t.Fatalf("i18n.Init: %v", err)
	}

	st, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(st, invoker, logger)
	h := New(svc, logger)

	r := chi.NewRouter()
	r.Use(i18n.Middleware("en"))
	h.Routes(r)

	ts := httptest.NewServer(r)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, ts *httptest.Server, method, path string, body string, headers map[string]string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, ts.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeDocument(t *testing.T, r io.Reader) model.AssessmentDocument {
	t.Helper()
	var doc model.AssessmentDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		t.Fatalf("decode document: %v", err)
	}
	return doc
}

func TestGenerateEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: documentJSON})

	body := `{"level":"Ensino Fundamental II","series":"6º ano","type":"Prova",
		"topics":["Multiplicação"],"totalQuestions":2,"objectiveCount":1,"discursiveCount":1}`
	resp := doJSON(t, ts, http.MethodPost, "/api/generate", body,
		map[string]string{"X-Account-ID": "acct-1", "X-Plan": "professor"})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	doc := decodeDocument(t, resp.Body)
	if doc.ID == "" {
		t.Error("expected persisted id in response")
	}
	if doc.Title != "Prova de Matemática" {
		t.Errorf("title = %q", doc.Title)
	}
	if len(doc.Questions) != 2 {
		t.Errorf("questions = %d", len(doc.Questions))
	}
}

func TestGenerateAppliesDefaultCounts(t *testing.T) {
	// A 10-question response matching the Prova default.
	var sb strings.Builder
	sb.WriteString(`{"title":"Prova","questions":[`)
	for i := 0; i < 10; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"question":"Pergunta?","type":"discursive"}`)
	}
	sb.WriteString(`],"answerKey":[`)
	for i := 0; i < 10; i++ {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(`{"question":"Pergunta?","answer":"Resposta."}`)
	}
	sb.WriteString(`]}`)
	ts := newTestServer(t, &stubInvoker{response: sb.String()})

	body := `{"level":"Ensino Médio","type":"Prova","topics":["Funções"]}`
	resp := doJSON(t, ts, http.MethodPost, "/api/generate", body,
		map[string]string{"X-Account-ID": "acct-1", "X-Plan": "expert"})

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want 201", resp.StatusCode)
	}
	doc := decodeDocument(t, resp.Body)
	if doc.Metadata == nil || doc.Metadata.TotalQuestions != 10 {
		t.Errorf("metadata = %+v, want defaulted total of 10", doc.Metadata)
	}
}

func TestGenerateValidationStatus(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: documentJSON})

	body := `{"type":"Prova","topics":["Multiplicação"],"totalQuestions":2,"objectiveCount":1,"discursiveCount":1}`
	resp := doJSON(t, ts, http.MethodPost, "/api/generate", body, nil)

	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
	var er struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if !strings.Contains(er.Error, "Invalid request") {
		t.Errorf("error message = %q, want localized validation message", er.Error)
	}
}

func TestGenerateQuotaStatus(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: documentJSON})
	headers := map[string]string{"X-Account-ID": "acct-free", "X-Plan": "free"}
	body := `{"level":"Ensino Médio","type":"Prova","topics":["Funções"],
		"totalQuestions":2,"objectiveCount":1,"discursiveCount":1}`

	if resp := doJSON(t, ts, http.MethodPost, "/api/generate", body, headers); resp.StatusCode != http.StatusCreated {
		t.Fatalf("first request status = %d", resp.StatusCode)
	}
	resp := doJSON(t, ts, http.MethodPost, "/api/generate", body, headers)
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", resp.StatusCode)
	}
}

func TestGenerateUnusableModelOutputStatus(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: "sorry, I cannot help with that"})

	body := `{"level":"Ensino Médio","type":"Prova","topics":["Funções"],
		"totalQuestions":2,"objectiveCount":1,"discursiveCount":1}`
	resp := doJSON(t, ts, http.MethodPost, "/api/generate", body,
		map[string]string{"X-Account-ID": "acct-1", "X-Plan": "expert"})

	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", resp.StatusCode)
	}
}

func TestGetAndDeleteEndpoints(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: documentJSON})
	headers := map[string]string{"X-Account-ID": "acct-1", "X-Plan": "professor"}
	body := `{"level":"Ensino Fundamental II","type":"Prova","topics":["Multiplicação"],
		"totalQuestions":2,"objectiveCount":1,"discursiveCount":1}`

	resp := doJSON(t, ts, http.MethodPost, "/api/generate", body, headers)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}
	doc := decodeDocument(t, resp.Body)

	resp = doJSON(t, ts, http.MethodGet, "/api/documents/"+doc.ID, "", headers)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get status = %d, want 200", resp.StatusCode)
	}

	// Another account must not see it.
	resp = doJSON(t, ts, http.MethodGet, "/api/documents/"+doc.ID, "",
		map[string]string{"X-Account-ID": "acct-2"})
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("cross-account get status = %d, want 404", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodDelete, "/api/documents/"+doc.ID, "", headers)
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("delete status = %d, want 204", resp.StatusCode)
	}
	resp = doJSON(t, ts, http.MethodGet, "/api/documents/"+doc.ID, "", headers)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete status = %d, want 404", resp.StatusCode)
	}
}

func TestEditQuestionEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: documentJSON})
	headers := map[string]string{"X-Account-ID": "acct-1", "X-Plan": "professor"}
	body := `{"level":"Ensino Fundamental II","type":"Prova","topics":["Multiplicação"],
		"totalQuestions":2,"objectiveCount":1,"discursiveCount":1}`

	resp := doJSON(t, ts, http.MethodPost, "/api/generate", body, headers)
	doc := decodeDocument(t, resp.Body)

	edit := `{"question":{"question":"Quanto é 9 x 8?","type":"multiple_choice","options":["72","81","64"]},
		"correctAnswer":"72"}`
	resp = doJSON(t, ts, http.MethodPatch, "/api/documents/"+doc.ID+"/questions/0", edit, headers)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("edit status = %d, want 200", resp.StatusCode)
	}
	updated := decodeDocument(t, resp.Body)
	if updated.Questions[0].Text != "Quanto é 9 x 8?" {
		t.Errorf("question text = %q", updated.Questions[0].Text)
	}
	if updated.AnswerKey[0].ReferenceText != "Quanto é 9 x 8?" {
		t.Errorf("referenceText = %q", updated.AnswerKey[0].ReferenceText)
	}
	if updated.AnswerKey[0].ExpectedAnswer != "72" {
		t.Errorf("expectedAnswer = %q", updated.AnswerKey[0].ExpectedAnswer)
	}

	// Stale index from an outdated client view.
	resp = doJSON(t, ts, http.MethodPatch, "/api/documents/"+doc.ID+"/questions/9", edit, headers)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("stale index status = %d, want 409", resp.StatusCode)
	}

	resp = doJSON(t, ts, http.MethodPatch, "/api/documents/"+doc.ID+"/questions/abc", edit, headers)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("non-integer index status = %d, want 400", resp.StatusCode)
	}
}

func multipartPages(t *testing.T, pages map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, data := range pages {
		part, err := mw.CreateFormFile("files", name)
		if err != nil {
			t.Fatalf("CreateFormFile: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestExtractEndpoint(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: documentJSON})

	buf, contentType := multipartPages(t, map[string][]byte{"page1.png": []byte("\x89PNG\r\n\x1a\n0000")})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/extract", buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	doc := decodeDocument(t, resp.Body)
	if doc.ID != "" {
		t.Error("extract must not persist, response carried an id")
	}
	if len(doc.Questions) != 2 {
		t.Errorf("questions = %d", len(doc.Questions))
	}
}

func TestExtractWithoutFiles(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: documentJSON})

	buf, contentType := multipartPages(t, nil)
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/extract", buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCorrectRequiresPlanEntitlement(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: documentJSON})

	buf, contentType := multipartPages(t, map[string][]byte{"page1.jpg": {0xff, 0xd8, 0xff}})
	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/documents/any/correct", buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Account-ID", "acct-1")
	req.Header.Set("X-Plan", "free")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400 for free tier", resp.StatusCode)
	}
}

func TestListEndpointEmpty(t *testing.T) {
	ts := newTestServer(t, &stubInvoker{response: documentJSON})

	resp := doJSON(t, ts, http.MethodGet, "/api/documents", "",
		map[string]string{"X-Account-ID": "acct-empty"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("empty history body = %q, want []", string(body))
	}
}
