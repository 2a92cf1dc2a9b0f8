package app

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evalboard/internal/ai"
	"evalboard/internal/cache"
	"evalboard/internal/model"
	"evalboard/internal/pkg/contenthash"
)

const rowsJSON = `[
  {"pdf":"r.pdf","dimension_number":1,"dimension_title":"PLANNING","dimension_mean":4.5,"item_code":null,"item_text":null,"item_score":null},
  {"pdf":"r.pdf","dimension_number":1,"dimension_title":null,"dimension_mean":null,"item_code":"1.1","item_text":"The plan covers all stages.","item_score":5.0}
]`

type fakeClient struct {
	calls int
	fn    func(call int) (string, error)
}

func (f *fakeClient) Extract(_ context.Context, _ ai.ExtractRequest) (string, error) {
	f.calls++
	return f.fn(f.calls)
}

type fakeFetcher struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _ string) ([]byte, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.data, nil
}

type spyCache struct {
	*cache.MemoryResultCache
	sets    int
	lastTTL time.Duration
}

func (s *spyCache) Set(ctx context.Context, fileHash string, rows []model.Row, ttl time.Duration) {
	s.sets++
	s.lastTTL = ttl
	s.MemoryResultCache.Set(ctx, fileHash, rows, ttl)
}

var errBlobMissing = errors.New("blob missing")

func newTestService(client ExtractionClient, resultCache cache.ResultCache, fetcher BlobFetcher) (*ExtractService, *[]time.Duration) {
	if resultCache == nil {
		resultCache = cache.NewMemoryResultCache()
	}
	svc := NewExtractService(resultCache, fetcher, errBlobMissing, client, ExtractServiceOptions{})
	slept := &[]time.Duration{}
	svc.sleep = func(d time.Duration) { *slept = append(*slept, d) }
	return svc, slept
}

func alwaysOverloaded(int) (string, error) {
	return "", &ai.OverloadError{StatusCode: 503, Message: "try later"}
}

func TestHandle_RetryBoundAndBackoff(t *testing.T) {
	client := &fakeClient{fn: alwaysOverloaded}
	svc, slept := newTestService(client, nil, nil)

	_, err := svc.Handle(context.Background(), ExtractInput{
		Data:     []byte("%PDF-1.7 fake"),
		FileName: "r.pdf",
	})
	require.ErrorIs(t, err, ErrOverloaded)
	assert.Equal(t, 3, client.calls)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, *slept)
}

func TestHandle_OverloadThenSuccess(t *testing.T) {
	client := &fakeClient{fn: func(call int) (string, error) {
		if call == 1 {
			return alwaysOverloaded(call)
		}
		return rowsJSON, nil
	}}
	svc, slept := newTestService(client, nil, nil)

	data := []byte("%PDF-1.7 fake")
	result, err := svc.Handle(context.Background(), ExtractInput{Data: data, FileName: "r.pdf"})
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls)
	assert.Equal(t, []time.Duration{2 * time.Second}, *slept)
	assert.False(t, result.FromCache)
	assert.Equal(t, contenthash.Sum(data), result.Hash)
	assert.Len(t, result.Rows, 2)
}

func TestHandle_PermanentFailureNotRetried(t *testing.T) {
	client := &fakeClient{fn: func(int) (string, error) {
		return "", fmt.Errorf("invalid api key")
	}}
	svc, slept := newTestService(client, nil, nil)

	_, err := svc.Handle(context.Background(), ExtractInput{Data: []byte("x"), FileName: "r.pdf"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrOverloaded)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, *slept)
}

func TestHandle_ParseFailureNotRetried(t *testing.T) {
	client := &fakeClient{fn: func(int) (string, error) {
		return "no json here", nil
	}}
	svc, slept := newTestService(client, nil, nil)

	_, err := svc.Handle(context.Background(), ExtractInput{Data: []byte("x"), FileName: "r.pdf"})
	require.ErrorIs(t, err, ErrParse)
	assert.Equal(t, 1, client.calls)
	assert.Empty(t, *slept)
}

func TestHandle_EndToEndCacheFlow(t *testing.T) {
	ctx := context.Background()
	client := &fakeClient{fn: func(int) (string, error) { return rowsJSON, nil }}
	resultCache := &spyCache{MemoryResultCache: cache.NewMemoryResultCache()}
	svc, _ := newTestService(client, resultCache, nil)

	data := []byte("%PDF-1.7 fake")
	hash := contenthash.Sum(data)

	first, err := svc.Handle(ctx, ExtractInput{Data: data, FileName: "r.pdf"})
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Equal(t, hash, first.Hash)
	assert.Len(t, first.Rows, 2)
	assert.Equal(t, 1, resultCache.sets)
	assert.Equal(t, cache.DefaultResultTTL, resultCache.lastTTL)

	// second call by bare hash: no bytes, no model invocation
	second, err := svc.Handle(ctx, ExtractInput{Hash: hash, FileName: "r.pdf"})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, 1, client.calls)
}

func TestHandle_MissingInput(t *testing.T) {
	svc, _ := newTestService(&fakeClient{fn: alwaysOverloaded}, nil, nil)

	_, err := svc.Handle(context.Background(), ExtractInput{FileName: "r.pdf"})
	require.ErrorIs(t, err, ErrMissingInput)

	_, err = svc.Handle(context.Background(), ExtractInput{Hash: "not-a-digest", FileName: "r.pdf"})
	require.ErrorIs(t, err, ErrMissingInput)
}

func TestHandle_HashOnlyCacheMiss(t *testing.T) {
	svc, _ := newTestService(&fakeClient{fn: alwaysOverloaded}, nil, nil)

	_, err := svc.Handle(context.Background(), ExtractInput{
		Hash:     contenthash.Sum([]byte("never cached")),
		FileName: "r.pdf",
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestHandle_MissingCredential(t *testing.T) {
	ctx := context.Background()
	resultCache := cache.NewMemoryResultCache()
	svc, _ := newTestService(nil, resultCache, nil)

	data := []byte("%PDF-1.7 fake")
	_, err := svc.Handle(ctx, ExtractInput{Data: data, FileName: "r.pdf"})
	require.ErrorIs(t, err, ErrLLMConfig)

	// cache hits still work without a credential
	hash := contenthash.Sum(data)
	resultCache.Set(ctx, hash, []model.Row{{PDF: "r.pdf"}}, time.Minute)
	result, err := svc.Handle(ctx, ExtractInput{Hash: hash, FileName: "r.pdf"})
	require.NoError(t, err)
	assert.True(t, result.FromCache)
}

func TestHandle_BlobURLPath(t *testing.T) {
	data := []byte("%PDF-1.7 from blob")
	client := &fakeClient{fn: func(int) (string, error) { return rowsJSON, nil }}
	fetcher := &fakeFetcher{data: data}
	svc, _ := newTestService(client, nil, fetcher)

	result, err := svc.Handle(context.Background(), ExtractInput{
		BlobURL:  "https://storage.googleapis.com/bucket/uploads/r-abc.pdf",
		FileName: "r.pdf",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
	assert.Equal(t, contenthash.Sum(data), result.Hash)
}

func TestHandle_BlobMissingMapsToNotFound(t *testing.T) {
	fetcher := &fakeFetcher{err: fmt.Errorf("%w: object gone", errBlobMissing)}
	svc, _ := newTestService(&fakeClient{fn: alwaysOverloaded}, nil, fetcher)

	_, err := svc.Handle(context.Background(), ExtractInput{
		BlobURL:  "https://storage.googleapis.com/bucket/uploads/r-abc.pdf",
		FileName: "r.pdf",
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestParseRows_DropsMalformedRows(t *testing.T) {
	raw := `[
	  {"pdf":"r.pdf","dimension_number":1,"dimension_title":"PLANNING","dimension_mean":4.5,"item_code":null,"item_text":null,"item_score":null},
	  {"pdf":"r.pdf","dimension_title":"MIXED","item_code":"1.1"},
	  {"pdf":"r.pdf","dimension_number":1,"item_code":"1.2","item_text":"kept","item_score":3.0}
	]`

	rows, err := parseRows(raw, "r.pdf")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].IsDimension())
	require.NotNil(t, rows[1].ItemCode)
	assert.Equal(t, "1.2", *rows[1].ItemCode)
}

func TestParseRows_AllMalformedIsParseError(t *testing.T) {
	raw := `[{"pdf":"r.pdf","dimension_title":"MIXED","item_code":"1.1"}]`

	_, err := parseRows(raw, "r.pdf")
	require.ErrorIs(t, err, ErrParse)
}

func TestParseRows_FillsFileNameAndClampsScores(t *testing.T) {
	raw := `[{"dimension_number":1,"dimension_title":"T","dimension_mean":9.9,"item_code":null,"item_text":null,"item_score":null}]`

	rows, err := parseRows(raw, "report.pdf")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "report.pdf", rows[0].PDF)
	assert.Nil(t, rows[0].DimensionMean)
}

func TestClassifyTransient(t *testing.T) {
	assert.True(t, classifyTransient(&ai.OverloadError{StatusCode: 503}))
	assert.True(t, classifyTransient(fmt.Errorf("wrapped: %w", &ai.OverloadError{StatusCode: 429})))
	assert.False(t, classifyTransient(errors.New("bad request")))
}
