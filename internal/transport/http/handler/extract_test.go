package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalboard/internal/ai"
	"evalboard/internal/app"
	"evalboard/internal/cache"
	"evalboard/internal/pkg/contenthash"
)

const rowsJSON = `[
  {"pdf":"r.pdf","dimension_number":1,"dimension_title":"PLANNING","dimension_mean":4.5,"item_code":null,"item_text":null,"item_score":null},
  {"pdf":"r.pdf","dimension_number":1,"dimension_title":null,"dimension_mean":null,"item_code":"1.1","item_text":"The plan covers all stages.","item_score":5.0}
]`

type stubClient struct {
	calls    int
	response string
	err      error
}

func (s *stubClient) Extract(_ context.Context, _ ai.ExtractRequest) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func newExtractRouter(client app.ExtractionClient) *gin.Engine {
	gin.SetMode(gin.TestMode)
	svc := app.NewExtractService(cache.NewMemoryResultCache(), nil, nil, client, app.ExtractServiceOptions{
		MaxAttempts: 1,
	})
	router := gin.New()
	router.POST("/extract", NewExtractHandler(svc).Extract)
	return router
}

func multipartBody(t *testing.T, fileName string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", fileName)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, writer.Close())
	return &buf, writer.FormDataContentType()
}

func TestExtract_MultipartSuccess(t *testing.T) {
	client := &stubClient{response: rowsJSON}
	router := newExtractRouter(client)

	data := []byte("%PDF-1.7 fake report")
	body, contentType := multipartBody(t, "r.pdf", data)
	req := httptest.NewRequest(http.MethodPost, "/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Rows      []json.RawMessage `json:"rows"`
		FromCache bool              `json:"fromCache"`
		Hash      string            `json:"hash"`
		FileName  string            `json:"fileName"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp.Rows, 2)
	assert.False(t, resp.FromCache)
	assert.Equal(t, contenthash.Sum(data), resp.Hash)
	assert.Equal(t, "r.pdf", resp.FileName)
}

func TestExtract_HashOnlyCacheMissIs404(t *testing.T) {
	router := newExtractRouter(&stubClient{response: rowsJSON})

	payload := `{"hash":"` + contenthash.Sum([]byte("never seen")) + `","fileName":"r.pdf"}`
	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"error"`)
}

func TestExtract_MissingInputIs400(t *testing.T) {
	router := newExtractRouter(&stubClient{response: rowsJSON})

	req := httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(`{"fileName":"r.pdf"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestExtract_OverloadMessageIsDistinct(t *testing.T) {
	client := &stubClient{err: &ai.OverloadError{StatusCode: 503, Message: "busy"}}
	router := newExtractRouter(client)

	data := []byte("%PDF-1.7 fake report")
	body, contentType := multipartBody(t, "r.pdf", data)
	req := httptest.NewRequest(http.MethodPost, "/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "overloaded")
}

func TestExtract_SecondCallServedFromCache(t *testing.T) {
	client := &stubClient{response: rowsJSON}
	router := newExtractRouter(client)

	data := []byte("%PDF-1.7 fake report")
	body, contentType := multipartBody(t, "r.pdf", data)
	req := httptest.NewRequest(http.MethodPost, "/extract", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	payload := `{"hash":"` + contenthash.Sum(data) + `","fileName":"r.pdf"}`
	req = httptest.NewRequest(http.MethodPost, "/extract", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fromCache":true`)
	assert.Equal(t, 1, client.calls)
}
