// Package fetch opens manifests and audio by URL: http(s), file URLs or plain
// paths, and gs://bucket/object for Google Cloud Storage.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

var (
	ErrUnsupportedScheme = errors.New("unsupported URL scheme")
	ErrInvalidGCSURL     = errors.New("gs URL must be gs://bucket/object")
)

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d", e.URL, e.Status)
}

// Object is an opened resource. Size is -1 when unknown.
type Object struct {
	io.ReadCloser
	Size int64
}

// Options configures a Fetcher.
type Options struct {
	// HTTPClient is used for http(s) URLs. Defaults to a client with Timeout.
	HTTPClient *http.Client
	// Timeout bounds a whole HTTP request including the body (default: 30s).
	Timeout time.Duration
	// GCSCredentialsFile selects a service account for gs:// URLs. Application
	// default credentials are used when empty.
	GCSCredentialsFile string
}

// Fetcher opens resources by URL. It is safe for concurrent use.
type Fetcher struct {
	http            *http.Client
	credentialsFile string

	gcsMu     sync.Mutex
	gcsClient *storage.Client
}

// New creates a Fetcher.
func New(opts Options) *Fetcher {
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		http:            client,
		credentialsFile: opts.GCSCredentialsFile,
	}
}

// Open returns a reader for ref. The caller must close it.
func (f *Fetcher) Open(ctx context.Context, ref string) (*Object, error) {
	u, err := url.Parse(ref)
	if err != nil || len(u.Scheme) <= 1 {
		// Plain path, possibly a Windows drive letter
		return openFile(ref)
	}

	switch u.Scheme {
	case "http", "https":
		return f.openHTTP(ctx, ref)
	case "file":
		return openFile(u.Path)
	case "gs":
		return f.openGCS(ctx, u)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, u.Scheme)
	}
}

// ReadAll opens ref and reads it fully.
func (f *Fetcher) ReadAll(ctx context.Context, ref string) ([]byte, error) {
	obj, err := f.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer obj.Close()
	return io.ReadAll(obj)
}

// LocalPath returns the filesystem path for file URLs and plain paths.
func LocalPath(ref string) (string, bool) {
	u, err := url.Parse(ref)
	if err != nil || len(u.Scheme) <= 1 {
		return ref, true
	}
	if u.Scheme == "file" {
		return u.Path, true
	}
	return "", false
}

// Close releases the storage client, if one was created.
func (f *Fetcher) Close() error {
	f.gcsMu.Lock()
	defer f.gcsMu.Unlock()
	if f.gcsClient == nil {
		return nil
	}
	err := f.gcsClient.Close()
	f.gcsClient = nil
	return err
}

func openFile(path string) (*Object, error) {
	file, err := os.Open(path) //nolint:gosec // user-configured media path
	if err != nil {
		return nil, err
	}
	size := int64(-1)
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}
	return &Object{ReadCloser: file, Size: size}, nil
}

func (f *Fetcher) openHTTP(ctx context.Context, ref string) (*Object, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := f.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", ref, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, &StatusError{URL: ref, Status: resp.StatusCode}
	}
	return &Object{ReadCloser: resp.Body, Size: resp.ContentLength}, nil
}

func (f *Fetcher) openGCS(ctx context.Context, u *url.URL) (*Object, error) {
	bucket := u.Host
	object := strings.TrimPrefix(u.Path, "/")
	if bucket == "" || object == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidGCSURL, u.String())
	}

	client, err := f.storageClient(ctx)
	if err != nil {
		return nil, err
	}
	r, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", bucket, object, err)
	}
	return &Object{ReadCloser: r, Size: r.Attrs.Size}, nil
}

func (f *Fetcher) storageClient(ctx context.Context) (*storage.Client, error) {
	f.gcsMu.Lock()
	defer f.gcsMu.Unlock()
	if f.gcsClient != nil {
		return f.gcsClient, nil
	}

	var opts []option.ClientOption
	if f.credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(f.credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS client: %w", err)
	}
	f.gcsClient = client
	return client, nil
}
