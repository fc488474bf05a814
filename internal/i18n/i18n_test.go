package i18n

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func initLang(t *testing.T, lang string) context.Context {
	t.Helper()
	if err := Init(lang); err != nil {
		t.Fatalf("Init(%q): %v", lang, err)
	}
	loc := NewLocalizer(lang)
	return WithLocalizer(context.Background(), loc)
}

func TestTranslateEnglish(t *testing.T) {
	ctx := initLang(t, "en")

	got := T(ctx, "ErrDocumentNotFound")
	if got != "Document not found." {
		t.Errorf("T(ErrDocumentNotFound) = %q", got)
	}
}

func TestTranslatePortuguese(t *testing.T) {
	ctx := initLang(t, "pt-BR")

	got := T(ctx, "ErrDocumentNotFound")
	if got != "Documento não encontrado." {
		t.Errorf("T(ErrDocumentNotFound) = %q", got)
	}
}

func TestTemplateDataTranslation(t *testing.T) {
	ctx := initLang(t, "pt-BR")

	got := Td(ctx, "ErrQuotaExceeded", map[string]any{"Plan": "Visitante", "Limit": 1})
	want := "Limite mensal atingido: o plano Visitante permite 1 documentos por mês."
	if got != want {
		t.Errorf("Td(ErrQuotaExceeded) = %q, want %q", got, want)
	}
}

func TestMiddlewareHonorsAcceptLanguage(t *testing.T) {
	if err := Init("pt-BR"); err != nil {
		t.Fatalf("Init: %v", err)
	}

	var got string
	h := Middleware("pt-BR")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = T(r.Context(), "ErrDocumentNotFound")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Language", "en")
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Document not found." {
		t.Errorf("with Accept-Language en, message = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)
	if got != "Documento não encontrado." {
		t.Errorf("without Accept-Language, message = %q", got)
	}
}

func TestMissingTranslationFallsBackToID(t *testing.T) {
	ctx := initLang(t, "en")

	if got := T(ctx, "NoSuchMessage"); got != "NoSuchMessage" {
		t.Errorf("missing id should fall back to the id itself, got %q", got)
	}
}
