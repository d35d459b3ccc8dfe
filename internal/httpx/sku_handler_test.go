package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-image-orders/internal/apperr"
	"github.com/ariefcatur/go-image-orders/internal/ingest"
	"github.com/ariefcatur/go-image-orders/internal/orders"
)

type fakeIngester struct {
	res ingest.Result
	err error
	got *multipart.Form
}

func (f *fakeIngester) Ingest(_ context.Context, form *multipart.Form) (ingest.Result, error) {
	f.got = form
	return f.res, f.err
}

type fakeSubmitter struct {
	id      string
	err     error
	drafts  []orders.SKUDraft
	webhook string
}

func (f *fakeSubmitter) Submit(_ context.Context, drafts []orders.SKUDraft, webhookURL string) (string, error) {
	f.drafts, f.webhook = drafts, webhookURL
	return f.id, f.err
}

type fakeQuerier struct {
	views map[string]orders.StatusView
	err   error
}

func (f *fakeQuerier) Status(_ context.Context, id string) (orders.StatusView, error) {
	if f.err != nil {
		return orders.StatusView{}, f.err
	}
	v, ok := f.views[id]
	if !ok {
		return orders.StatusView{}, orders.ErrOrderNotFound
	}
	return v, nil
}

func newTestRouter(h *SKUHandler) http.Handler {
	log, _ := test.NewNullLogger()
	h.Log = log
	r := NewRouter(log, nil)
	h.Register(r)
	return r
}

func multipartBody(t *testing.T, fields map[string]string, files map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(ingest.FileField, name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) (Response, map[string]any) {
	t.Helper()
	var raw struct {
		Response
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	return raw.Response, raw.Data
}

func TestUploadSKUReturnsOrderID(t *testing.T) {
	drafts := []orders.SKUDraft{{SNO: 1, ProductName: "Shirt", InputImageURL: []string{"https://img/a.jpg"}, RequestID: "req-1"}}
	ing := &fakeIngester{res: ingest.Result{RequestID: "req-1", Drafts: drafts}}
	sub := &fakeSubmitter{id: "order-1"}
	r := newTestRouter(&SKUHandler{Ingest: ing, Submit: sub, Query: &fakeQuerier{}})

	body, ct := multipartBody(t,
		map[string]string{"webhookUrl": "https://hooks.example.com/done"},
		map[string]string{"skus.csv": "S. No.,Product Name,Input Image Urls\n1,Shirt,https://img/a.jpg\n"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload-sku", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp, data := decode(t, rec)
	assert.True(t, resp.Success)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "order-1", data["orderId"])
	assert.Equal(t, drafts, sub.drafts)
	assert.Equal(t, "https://hooks.example.com/done", sub.webhook)
	require.NotNil(t, ing.got)
	assert.Len(t, ing.got.File[ingest.FileField], 1)
}

func TestUploadSKUWithoutMultipart(t *testing.T) {
	r := newTestRouter(&SKUHandler{Ingest: &fakeIngester{}, Submit: &fakeSubmitter{}, Query: &fakeQuerier{}})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload-sku", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	resp, _ := decode(t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, apperr.CodeNoFiles, resp.Code)
	assert.Equal(t, "No files were uploaded", resp.Message)
}

func TestUploadSKUTooLarge(t *testing.T) {
	r := newTestRouter(&SKUHandler{Ingest: &fakeIngester{}, Submit: &fakeSubmitter{}, Query: &fakeQuerier{}, MaxUploadBytes: 64})

	body, ct := multipartBody(t, nil, map[string]string{"skus.csv": strings.Repeat("x", 4096)})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/upload-sku", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadSKUErrorMapping(t *testing.T) {
	cases := []struct {
		name     string
		ingErr   error
		subErr   error
		wantCode int
		wantMsg  string
		wantApp  string
	}{
		{
			name:     "validation from ingest",
			ingErr:   apperr.Validation(apperr.CodeNotCSV, "File must be a CSV", nil),
			wantCode: http.StatusBadRequest,
			wantMsg:  "File must be a CSV",
			wantApp:  apperr.CodeNotCSV,
		},
		{
			name:     "validation from submit",
			subErr:   apperr.Validation(apperr.CodeInvalidWebhookURL, "Invalid webhook URL", nil),
			wantCode: http.StatusBadRequest,
			wantMsg:  "Invalid webhook URL",
			wantApp:  apperr.CodeInvalidWebhookURL,
		},
		{
			name:     "skus not saved",
			subErr:   fmt.Errorf("%w: copy failed", orders.ErrSKUsNotSaved),
			wantCode: http.StatusInternalServerError,
			wantMsg:  msgSKUsNotSaved,
			wantApp:  "SKUS_NOT_SAVED",
		},
		{
			name:     "spool failure",
			ingErr:   errors.New("open upload: disk full"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  msgInternal,
			wantApp:  "INTERNAL",
		},
		{
			name:     "enqueue failure",
			subErr:   errors.New("broker down"),
			wantCode: http.StatusInternalServerError,
			wantMsg:  msgSKUsNotSaved,
			wantApp:  "INTERNAL",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ing := &fakeIngester{err: tc.ingErr}
			sub := &fakeSubmitter{id: "order-1", err: tc.subErr}
			r := newTestRouter(&SKUHandler{Ingest: ing, Submit: sub, Query: &fakeQuerier{}})

			body, ct := multipartBody(t, nil, map[string]string{"skus.csv": "a,b\n"})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/upload-sku", body)
			req.Header.Set("Content-Type", ct)
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)

			require.Equal(t, tc.wantCode, rec.Code)
			resp, _ := decode(t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, tc.wantMsg, resp.Message)
			assert.Equal(t, tc.wantApp, resp.Code)
		})
	}
}

func TestGetSKU(t *testing.T) {
	q := &fakeQuerier{views: map[string]orders.StatusView{
		"o-1": {OrderID: "o-1", Status: orders.StatusCompleted, ResultFileURL: "https://cdn/csv/x.csv"},
		"o-2": {OrderID: "o-2", Status: orders.StatusPending},
	}}
	r := newTestRouter(&SKUHandler{Ingest: &fakeIngester{}, Submit: &fakeSubmitter{}, Query: q})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/get-sku?orderId=o-1", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	_, data := decode(t, rec)
	assert.Equal(t, "completed", data["status"])
	assert.Equal(t, "https://cdn/csv/x.csv", data["resultFileUrl"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/orders/o-2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	_, data = decode(t, rec)
	assert.Equal(t, "pending", data["status"])
	assert.NotContains(t, data, "resultFileUrl")
}

func TestGetSKUNotFoundAndMissingID(t *testing.T) {
	r := newTestRouter(&SKUHandler{Ingest: &fakeIngester{}, Submit: &fakeSubmitter{}, Query: &fakeQuerier{}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/get-sku?orderId=nope", nil))
	require.Equal(t, http.StatusNotFound, rec.Code)
	resp, _ := decode(t, rec)
	assert.Equal(t, msgOrderNotFound, resp.Message)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/get-sku", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSKUStoreFailure(t *testing.T) {
	r := newTestRouter(&SKUHandler{Ingest: &fakeIngester{}, Submit: &fakeSubmitter{}, Query: &fakeQuerier{err: errors.New("conn reset")}})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/get-sku?orderId=o-1", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	resp, _ := decode(t, rec)
	assert.Equal(t, msgInternal, resp.Message)
	assert.Equal(t, "INTERNAL", resp.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	log, _ := test.NewNullLogger()
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) })
	r := NewRouter(log, metrics)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, "# metrics", rec.Body.String())
}

func TestRequestLoggerRecordsStatus(t *testing.T) {
	log, hook := test.NewNullLogger()
	r := NewRouter(log, nil)
	r.Get("/boom", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusBadGateway) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, http.StatusBadGateway, hook.LastEntry().Data["status_code"])
	assert.NotEmpty(t, hook.LastEntry().Data["request_id"])
}
