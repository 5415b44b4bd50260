// Package attachment validates, downloads, and encodes inbound chat
// attachments, and merges the result into ticket HTML.
package attachment

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// MaxFileSize is the per-file ceiling for attachments.
const MaxFileSize = 5 * 1024 * 1024 // 5 MiB

// mimeTypes maps allowed extensions to their media type. The allow-list
// is exactly the key set; anything absent is rejected before download.
var mimeTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
	"bmp":  "image/bmp",
	"webp": "image/webp",
}

// Descriptor identifies one raw inbound attachment. Header carries any
// auth the download URL needs (Slack file URLs require the bot token).
type Descriptor struct {
	Filename string
	URL      string
	Header   http.Header
}

// File is a normalized attachment: validated, downloaded, and encoded.
type File struct {
	Filename string `json:"filename"`
	Content  string `json:"content"` // base64
	MimeType string `json:"mime_type"`
}

// UserError is a validation or download failure whose message is meant
// to be relayed to the user verbatim.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// Fetcher downloads attachment content.
type Fetcher interface {
	Fetch(ctx context.Context, d Descriptor) ([]byte, error)
}

// HTTPFetcher downloads attachments over HTTP, applying any headers set
// on the descriptor.
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a fetcher with a sane download timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 60 * time.Second}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, d Descriptor) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("attachment: create request: %w", err)
	}
	for k, vs := range d.Header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("attachment: download %s: %w", d.Filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("attachment: download %s: status %d", d.Filename, resp.StatusCode)
	}

	// Read one byte past the cap so oversized files are detected
	// without buffering the whole body.
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("attachment: read %s: %w", d.Filename, err)
	}
	return data, nil
}
