package view

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gramy/gramy/internal/shared"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	engine, err := NewEngine()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRenderer(engine, shared.NewCSRFManager("test-secret"), nil, logger)
}

func requestWithSession(t *testing.T, target string) (*http.Request, *shared.Session) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	sess, err := shared.NewSessionManager(nil, "gramy_session", time.Hour, false).Load(req.Context(), req)
	require.NoError(t, err)
	return req.WithContext(shared.ContextWithSession(req.Context(), sess)), sess
}

func TestRendererLoginCarriesCSRFAndNext(t *testing.T) {
	rd := newTestRenderer(t)
	req, sess := requestWithSession(t, "/auth/login?next=%2Fgame%2F7")
	rec := httptest.NewRecorder()

	rd.Page(rec, req, http.StatusOK, "pages/login.html", "Sign in", map[string]any{
		"Email":  "ada@example.com",
		"Errors": map[string]string{"general": "Invalid email or password"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)

	form := doc.Find(`form[action="/auth/login"]`)
	require.Equal(t, 1, form.Length())
	token, ok := form.Find(`input[name="csrf_token"]`).Attr("value")
	require.True(t, ok)
	assert.Equal(t, sess.Get(shared.CSRFSessionKey), token)
	next, _ := form.Find(`input[name="next"]`).Attr("value")
	assert.Equal(t, "/game/7", next)
	email, _ := form.Find(`input[name="email"]`).Attr("value")
	assert.Equal(t, "ada@example.com", email)
	assert.Equal(t, "Invalid email or password", strings.TrimSpace(doc.Find("p.error").First().Text()))
	assert.Equal(t, "Sign in · Gramy", doc.Find("title").Text())
	assert.Equal(t, 2, doc.Find(`a[href="/auth/register"]`).Length())
}

func TestRendererNotFoundShowsFlash(t *testing.T) {
	rd := newTestRenderer(t)
	req, sess := requestWithSession(t, "/game/999")
	sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Game not found"})
	rec := httptest.NewRecorder()

	rd.NotFound(rec, req, "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
	doc, err := goquery.NewDocumentFromReader(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, "Not found", doc.Find("main h1").Text())
	assert.Equal(t, "Game not found", doc.Find(".flash-error").Text())
	assert.Nil(t, sess.PopFlash(), "flash is consumed by the render")
}

func TestRendererTemplateErrorWritesNothingPartial(t *testing.T) {
	rd := newTestRenderer(t)
	req, _ := requestWithSession(t, "/")
	rec := httptest.NewRecorder()

	rd.Page(rec, req, http.StatusOK, "pages/missing.html", "Missing", nil)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "<html")
}

func TestPageLinkKeepsFilters(t *testing.T) {
	q := map[string][]string{"q": {"zelda"}, "genre": {"1", "4"}, "page": {"2"}}
	link := pageLink("/search", q, 3)
	assert.Equal(t, "/search?genre=1&genre=4&page=3&q=zelda", link)
}
