package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
)

// ErrNotFound signals that the backing object for a blob URL no longer
// exists. Callers distinguish it from transport failures.
var ErrNotFound = errors.New("blob not found")

// Descriptor is what /upload returns to the client: a target it can write
// to plus the URL the extraction path fetches back from.
type Descriptor struct {
	URL         string `json:"url"`
	DownloadURL string `json:"downloadUrl"`
	Pathname    string `json:"pathname"`
}

// Fetcher downloads bytes behind a blob URL. It needs no storage
// credentials, so the extraction path can resolve blob URLs even when
// upload allocation is unconfigured.
type Fetcher struct {
	httpClient *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{httpClient: &http.Client{Timeout: 60 * time.Second}}
}

// Fetch downloads the bytes behind a previously produced blob URL.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build blob fetch request failed: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch blob failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch blob status %d for %s", resp.StatusCode, url)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob body failed: %w", err)
	}
	return data, nil
}

// Store adapts Google Cloud Storage to the two operations the pipeline
// needs: allocate an upload target for a filename, and fetch bytes back
// from a previously produced URL. No business logic lives here.
type Store struct {
	client       *storage.Client
	bucket       string
	fetcher      *Fetcher
	signedURLTTL time.Duration
}

func NewStore(client *storage.Client, bucket string, signedURLTTL time.Duration) *Store {
	if signedURLTTL <= 0 {
		signedURLTTL = 15 * time.Minute
	}
	return &Store{
		client:       client,
		bucket:       bucket,
		fetcher:      NewFetcher(),
		signedURLTTL: signedURLTTL,
	}
}

// CreateUploadURL allocates an object name for filename and returns a
// signed PUT URL the client writes to directly, bypassing this server.
func (s *Store) CreateUploadURL(ctx context.Context, filename, contentType string) (*Descriptor, error) {
	object := objectName(filename)
	signed, err := s.client.Bucket(s.bucket).SignedURL(object, &storage.SignedURLOptions{
		Method:      http.MethodPut,
		Expires:     time.Now().Add(s.signedURLTTL),
		ContentType: contentType,
	})
	if err != nil {
		return nil, fmt.Errorf("sign upload url failed: %w", err)
	}
	return &Descriptor{
		URL:         signed,
		DownloadURL: s.downloadURL(object),
		Pathname:    object,
	}, nil
}

// Put uploads bytes server side and returns the descriptor for them. Used
// by the multipart /upload variant where the client sends the file through
// this server instead of writing to a signed URL.
func (s *Store) Put(ctx context.Context, filename string, data []byte, contentType string) (*Descriptor, error) {
	object := objectName(filename)
	writer := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	writer.ContentType = contentType
	if _, err := writer.Write(data); err != nil {
		_ = writer.Close()
		return nil, fmt.Errorf("write blob %s failed: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finalize blob %s failed: %w", object, err)
	}
	url := s.downloadURL(object)
	return &Descriptor{
		URL:         url,
		DownloadURL: url,
		Pathname:    object,
	}, nil
}

// Fetch downloads the bytes behind a previously produced blob URL.
func (s *Store) Fetch(ctx context.Context, url string) ([]byte, error) {
	return s.fetcher.Fetch(ctx, url)
}

func (s *Store) downloadURL(object string) string {
	return fmt.Sprintf("https://storage.googleapis.com/%s/%s", s.bucket, object)
}

// objectName appends a random suffix so repeated uploads of the same
// filename never collide.
func objectName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	if stem == "" {
		stem = "upload"
	}
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("uploads/%s-%s%s", stem, suffix, ext)
}
