package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"evalboard/internal/ai"
	"evalboard/internal/cache"
	"evalboard/internal/model"
	"evalboard/internal/pkg/contenthash"
	"evalboard/internal/pkg/llmjson"
	"evalboard/internal/pkg/pdfextract"
)

var (
	ErrMissingInput = errors.New("no file content or file hash supplied")
	ErrNotFound     = errors.New("no cached result for this hash and no file content to re-extract from")
	ErrOverloaded   = errors.New("model service is overloaded")
	ErrParse        = errors.New("model output could not be parsed")
	ErrLLMConfig    = errors.New("LLM_API_KEY is not configured")
)

const (
	// SendModeInline attaches the raw PDF bytes to the model call.
	SendModeInline = "inline"
	// SendModeText pre-extracts the PDF text and sends it as prompt text.
	SendModeText = "text"

	defaultMaxAttempts = 3
	defaultBackoffSeed = 2000 * time.Millisecond
)

// ExtractionClient is the opaque model boundary. Implementations classify
// transient overload by returning an *ai.OverloadError.
type ExtractionClient interface {
	Extract(ctx context.Context, req ai.ExtractRequest) (string, error)
}

// BlobFetcher downloads the bytes behind a blob URL.
type BlobFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type ExtractInput struct {
	Data     []byte
	MimeType string
	BlobURL  string
	Hash     string
	FileName string
}

type ExtractResult struct {
	Rows      []model.Row `json:"rows"`
	FromCache bool        `json:"fromCache"`
	Hash      string      `json:"hash"`
	FileName  string      `json:"fileName"`
}

// ExtractService runs the pipeline: hash, cache lookup, on miss a retried
// model call, tolerant parse, cache write.
type ExtractService struct {
	cache       cache.ResultCache
	blobs       BlobFetcher
	client      ExtractionClient
	blobMissing error

	sendMode    string
	maxAttempts int
	backoffSeed time.Duration
	resultTTL   time.Duration

	// sleep is swapped for a recorder in tests.
	sleep func(time.Duration)
}

type ExtractServiceOptions struct {
	SendMode    string
	MaxAttempts int
	BackoffSeed time.Duration
	ResultTTL   time.Duration
}

// NewExtractService wires the pipeline. client may be nil when the LLM
// credential is missing; the cache-hit path still works and misses fail
// with ErrLLMConfig. blobMissing is the sentinel the fetcher uses for a
// vanished object, so the service can map it without importing the adapter.
func NewExtractService(
	resultCache cache.ResultCache,
	blobs BlobFetcher,
	blobMissing error,
	client ExtractionClient,
	opts ExtractServiceOptions,
) *ExtractService {
	if opts.SendMode == "" {
		opts.SendMode = SendModeInline
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = defaultMaxAttempts
	}
	if opts.BackoffSeed <= 0 {
		opts.BackoffSeed = defaultBackoffSeed
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = cache.DefaultResultTTL
	}
	return &ExtractService{
		cache:       resultCache,
		blobs:       blobs,
		blobMissing: blobMissing,
		client:      client,
		sendMode:    opts.SendMode,
		maxAttempts: opts.MaxAttempts,
		backoffSeed: opts.BackoffSeed,
		resultTTL:   opts.ResultTTL,
		sleep:       time.Sleep,
	}
}

// Handle resolves the file hash, serves from cache when possible, and
// otherwise extracts, parses and caches. The cache write happens strictly
// after a successful parse; a failed write is swallowed by the cache layer
// and the result is still returned.
func (s *ExtractService) Handle(ctx context.Context, input ExtractInput) (*ExtractResult, error) {
	data := input.Data
	if len(data) == 0 && input.BlobURL != "" {
		if s.blobs == nil {
			return nil, fmt.Errorf("blob fetching is not configured")
		}
		fetched, err := s.blobs.Fetch(ctx, input.BlobURL)
		if err != nil {
			if s.blobMissing != nil && errors.Is(err, s.blobMissing) {
				return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
			}
			return nil, fmt.Errorf("download blob failed: %w", err)
		}
		data = fetched
	}

	fileHash := strings.ToLower(strings.TrimSpace(input.Hash))
	if len(data) > 0 {
		fileHash = contenthash.Sum(data)
	} else if !contenthash.Valid(fileHash) {
		return nil, ErrMissingInput
	}

	if rows, ok := s.cache.Get(ctx, fileHash); ok {
		return &ExtractResult{
			Rows:      rows,
			FromCache: true,
			Hash:      fileHash,
			FileName:  input.FileName,
		}, nil
	}

	if len(data) == 0 {
		return nil, ErrNotFound
	}
	if s.client == nil {
		return nil, ErrLLMConfig
	}

	req, err := s.buildRequest(input.FileName, data, input.MimeType)
	if err != nil {
		return nil, err
	}

	rawText, err := s.callWithRetry(ctx, req)
	if err != nil {
		return nil, err
	}

	rows, err := parseRows(rawText, input.FileName)
	if err != nil {
		return nil, err
	}

	s.cache.Set(ctx, fileHash, rows, s.resultTTL)

	return &ExtractResult{
		Rows:      rows,
		FromCache: false,
		Hash:      fileHash,
		FileName:  input.FileName,
	}, nil
}

func (s *ExtractService) buildRequest(fileName string, data []byte, mimeType string) (ai.ExtractRequest, error) {
	req := ai.ExtractRequest{
		Prompt:   ai.BuildExtractionPrompt(fileName),
		FileName: fileName,
	}
	if s.sendMode == SendModeText {
		text, err := pdfextract.ExtractText(data)
		if err != nil {
			return ai.ExtractRequest{}, fmt.Errorf("extract pdf text failed: %w", err)
		}
		if strings.TrimSpace(text) == "" {
			return ai.ExtractRequest{}, fmt.Errorf("%w: pdf contains no extractable text", ErrParse)
		}
		req.Text = text
		return req, nil
	}
	if mimeType == "" {
		mimeType = "application/pdf"
	}
	req.Data = data
	req.MimeType = mimeType
	return req, nil
}

// callWithRetry is the bounded-retry loop around the model call: transient
// overload retries with exponentially growing delay, everything else (and
// overload on the final attempt) propagates immediately.
func (s *ExtractService) callWithRetry(ctx context.Context, req ai.ExtractRequest) (string, error) {
	delay := s.backoffSeed
	for attempt := 1; ; attempt++ {
		rawText, err := s.client.Extract(ctx, req)
		if err == nil {
			return rawText, nil
		}
		if !classifyTransient(err) {
			return "", fmt.Errorf("model call failed: %w", err)
		}
		if attempt >= s.maxAttempts {
			return "", fmt.Errorf("%w: %v", ErrOverloaded, err)
		}
		log.Printf("model overloaded on attempt %d/%d, retrying in %s", attempt, s.maxAttempts, delay)
		s.sleep(delay)
		delay *= 2
	}
}

// classifyTransient decides retryability in one place. Only upstream
// overload is transient; parse failures and everything else are permanent.
func classifyTransient(err error) bool {
	return ai.IsOverload(err)
}

// parseRows recovers the row array from raw model output. Elements that do
// not decode or that mix dimension and item fields are dropped; a non-empty
// array that filters down to nothing is a parse failure.
func parseRows(rawText, fileName string) ([]model.Row, error) {
	elems, err := llmjson.ExtractArray(rawText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}

	rows := make([]model.Row, 0, len(elems))
	for _, elem := range elems {
		var row model.Row
		if err := json.Unmarshal(elem, &row); err != nil {
			log.Printf("extract: dropping undecodable row: %v", err)
			continue
		}
		if err := row.Validate(); err != nil {
			log.Printf("extract: dropping malformed row in %s: %v", fileName, err)
			continue
		}
		if row.PDF == "" {
			row.PDF = fileName
		}
		row.Normalize()
		rows = append(rows, row)
	}
	if len(elems) > 0 && len(rows) == 0 {
		return nil, fmt.Errorf("%w: no structurally valid rows in model output", ErrParse)
	}
	return rows, nil
}
