package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/mcp-pdf-redactor/internal/redaction"
)

type stubRasterizer struct {
	err error
}

func (s *stubRasterizer) Rasterize(_ context.Context, _ []byte, progress redaction.ProgressFunc) (*redaction.LoadedDocument, error) {
	if s.err != nil {
		return nil, s.err
	}
	pages := []redaction.PageRaster{
		{PageNumber: 1, ImageData: []byte("page-one"), PixelWidth: 800, PixelHeight: 600},
		{PageNumber: 2, ImageData: []byte("page-two"), PixelWidth: 600, PixelHeight: 800},
	}
	for _, p := range pages {
		progress(p.PageNumber, len(pages))
	}
	return &redaction.LoadedDocument{Pages: pages, TextLayer: true}, nil
}

type stubDetector struct {
	err error
}

func (s *stubDetector) Detect(_ context.Context, page redaction.PageRaster, _ redaction.Settings) ([]redaction.Detection, error) {
	if s.err != nil {
		return nil, s.err
	}
	if page.PageNumber != 1 {
		return nil, nil
	}
	return []redaction.Detection{
		{Text: "Jan", Category: redaction.CategoryName, Box: redaction.NormalizedBox{YMin: 100, XMin: 200, YMax: 300, XMax: 400}},
		{Text: "jan@example.com", Category: redaction.CategoryEmail, Box: redaction.NormalizedBox{YMin: 500, XMin: 100, YMax: 550, XMax: 600}},
	}, nil
}

type stubWriter struct {
	err error
}

func (s *stubWriter) Write(_ context.Context, w io.Writer, pages []redaction.PageLayout) error {
	if s.err != nil {
		return s.err
	}
	_, err := io.WriteString(w, "%PDF-1.7 stub")
	return err
}

type fixture struct {
	api      *API
	detector *stubDetector
	raster   *stubRasterizer
	writer   *stubWriter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	f := &fixture{detector: &stubDetector{}, raster: &stubRasterizer{}, writer: &stubWriter{}}
	session := redaction.NewSession(f.raster, f.detector, f.writer, redaction.Options{Logger: logger})
	f.api = New(session, 1024, logger)
	return f
}

func (f *fixture) do(t *testing.T, method, target string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	f.api.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) upload(t *testing.T, name string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return f.do(t, http.MethodPost, "/api/document", &buf, mw.FormDataContentType())
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestUnknownRouteReturnsJSON(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "the requested API endpoint does not exist", resp.Error)
}

func TestUploadDocument(t *testing.T) {
	f := newFixture(t)
	rec := f.upload(t, "umowa.pdf", []byte("%PDF-1.4"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loadResponse
	decode(t, rec, &resp)
	assert.Equal(t, "umowa.pdf", resp.Source)
	assert.Equal(t, 2, resp.Pages)
	assert.True(t, resp.TextLayer)
}

func TestUploadDocumentErrors(t *testing.T) {
	t.Run("missing field", func(t *testing.T) {
		f := newFixture(t)
		rec := f.do(t, http.MethodPost, "/api/document", strings.NewReader("x"), "text/plain")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too large", func(t *testing.T) {
		f := newFixture(t)
		rec := f.upload(t, "big.pdf", bytes.Repeat([]byte("a"), 2048))
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("unreadable document", func(t *testing.T) {
		f := newFixture(t)
		f.raster.err = errors.New("not a pdf")
		rec := f.upload(t, "broken.pdf", []byte("garbage"))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var resp errorResponse
		decode(t, rec, &resp)
		assert.Equal(t, "LOAD", resp.Kind)
		assert.False(t, resp.Retryable)
	})
}

func TestGetPage(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.upload(t, "a.pdf", []byte("%PDF")).Code)

	rec := f.do(t, http.MethodGet, "/api/pages/2", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "600", rec.Header().Get("X-Page-Width"))
	assert.Equal(t, "page-two", rec.Body.String())

	rec = f.do(t, http.MethodGet, "/api/pages/3", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var missing errorResponse
	decode(t, rec, &missing)
	assert.Equal(t, "page 3 not loaded", missing.Error)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/pages/zero", nil, "").Code)
}

func TestSettingsRoundTrip(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/settings", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var initial settingsResponse
	decode(t, rec, &initial)
	assert.Equal(t, redaction.DefaultCategories, initial.Categories)
	assert.Empty(t, initial.CustomKeywords)
	assert.Len(t, initial.Available, len(redaction.AllCategories))

	body := `{"categories":["phone","PESEL"],"custom_keywords":["  ACME  ",""]}`
	rec = f.do(t, http.MethodPut, "/api/settings", strings.NewReader(body), "application/json")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var updated settingsResponse
	decode(t, rec, &updated)
	assert.Equal(t, []redaction.Category{redaction.CategoryNationalID, redaction.CategoryPhone}, updated.Categories)
	assert.Equal(t, []string{"ACME"}, updated.CustomKeywords)

	rec = f.do(t, http.MethodPut, "/api/settings", strings.NewReader(`{"categories":["SHOE_SIZE"]}`), "application/json")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunListAndRemoveMarks(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.upload(t, "umowa.pdf", []byte("%PDF")).Code)

	rec := f.do(t, http.MethodPost, "/api/run", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var run redaction.RunResult
	decode(t, rec, &run)
	assert.Equal(t, 2, run.Pages)
	assert.Equal(t, 2, run.Marks)

	rec = f.do(t, http.MethodGet, "/api/marks?page=1&category=EMAIL", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var listed marksResponse
	decode(t, rec, &listed)
	require.Len(t, listed.Marks, 1)
	assert.Equal(t, redaction.HiddenText, listed.Marks[0].SourceText)
	assert.Equal(t, 1, listed.ByCategory[redaction.CategoryEmail])

	rec = f.do(t, http.MethodGet, "/api/marks?reveal=true", nil, "")
	var revealed marksResponse
	decode(t, rec, &revealed)
	require.Len(t, revealed.Marks, 2)
	assert.Equal(t, "Jan", revealed.Marks[0].SourceText)
	assert.InDelta(t, 160, revealed.Marks[0].Rect.X, 0.001)
	assert.InDelta(t, 20, revealed.Marks[0].Overlay.LeftPct, 0.001)

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/api/marks?category=SHOE_SIZE", nil, "").Code)

	id := revealed.Marks[0].ID
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/marks/"+id, nil, "").Code)
	// A repeated delete is harmless
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/marks/"+id, nil, "").Code)
	assert.Equal(t, http.StatusNoContent, f.do(t, http.MethodDelete, "/api/marks/never-existed", nil, "").Code)

	rec = f.do(t, http.MethodDelete, "/api/marks", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"removed":1}`, rec.Body.String())
}

func TestRunFailureKeepsPreviousMarks(t *testing.T) {
	f := newFixture(t)
	require.Equal(t, http.StatusOK, f.upload(t, "umowa.pdf", []byte("%PDF")).Code)
	require.Equal(t, http.StatusOK, f.do(t, http.MethodPost, "/api/run", nil, "").Code)

	f.detector.err = redaction.NewError(redaction.KindRateLimit, "detect", errors.New("quota exceeded"))
	rec := f.do(t, http.MethodPost, "/api/run", nil, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "RATE_LIMIT", resp.Kind)
	assert.True(t, resp.Retryable)

	rec = f.do(t, http.MethodGet, "/api/status", nil, "")
	var status statusResponse
	decode(t, rec, &status)
	assert.Equal(t, redaction.PhaseFailed, status.State.Phase)
	assert.Equal(t, redaction.KindRateLimit, status.ErrorKind)
	assert.Equal(t, 2, status.Marks)
	assert.Equal(t, 1, status.ByCategory[redaction.CategoryName])

	f.detector.err = redaction.ErrMissingAPIKey
	assert.Equal(t, http.StatusPreconditionFailed, f.do(t, http.MethodPost, "/api/run", nil, "").Code)
}

func TestAbortWithoutRun(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodPost, "/api/run/abort", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"aborted":false}`, rec.Body.String())
}

func TestExport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/export", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, f.upload(t, "umowa.pdf", []byte("%PDF")).Code)
	rec = f.do(t, http.MethodGet, "/api/export", nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "umowa_anonimizowany.pdf")
	assert.Equal(t, "%PDF-1.7 stub", rec.Body.String())

	f.writer.err = errors.New("disk full")
	rec = f.do(t, http.MethodGet, "/api/export", nil, "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp errorResponse
	decode(t, rec, &resp)
	assert.Equal(t, "EXPORT", resp.Kind)
}

func TestMount(t *testing.T) {
	f := newFixture(t)
	f.api.Mount("/mcp", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	assert.Equal(t, http.StatusAccepted, f.do(t, http.MethodPost, "/mcp", nil, "").Code)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, statusFor(redaction.ErrNoDocument))
	assert.Equal(t, http.StatusConflict, statusFor(redaction.ErrBusy))
	assert.Equal(t, http.StatusConflict, statusFor(redaction.ErrRunAborted))
	assert.Equal(t, http.StatusInternalServerError, statusFor(errors.New("boom")))
}

func TestServeStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.api.Serve(ctx, "127.0.0.1:0") }()
	cancel()
	assert.NoError(t, <-done)
}
