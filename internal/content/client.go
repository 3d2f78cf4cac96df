// Package content stores raw transaction documents in a content-addressed
// store. The returned locator goes into both the local record and the ledger
// entry; when the store is down, a deterministic fallback locator derived
// from the content hash keeps the pipeline moving.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Client stores an immutable blob and returns its locator.
type Client interface {
	Put(ctx context.Context, data []byte, filename string) (string, error)
}

// HTTPClient talks to an IPFS-compatible HTTP API.
type HTTPClient struct {
	baseURL string
	httpc   *http.Client
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   &http.Client{Timeout: timeout},
	}
}

type addResponse struct {
	Name string `json:"Name"`
	Hash string `json:"Hash"`
	Size string `json:"Size"`
}

// Put uploads data via the add endpoint and returns the content identifier.
func (c *HTTPClient) Put(ctx context.Context, data []byte, filename string) (string, error) {
	if filename == "" {
		filename = "file"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("build multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v0/add", &body)
	if err != nil {
		return "", fmt.Errorf("build add request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("content store add: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("content store add: status %d: %s", resp.StatusCode, snippet)
	}

	var added addResponse
	if err := json.NewDecoder(resp.Body).Decode(&added); err != nil {
		return "", fmt.Errorf("decode add response: %w", err)
	}
	if added.Hash == "" {
		return "", fmt.Errorf("content store add: empty hash in response")
	}
	return added.Hash, nil
}

// FallbackLocator derives a local pseudo-locator from a content hash for use
// when the store is unreachable. The record still carries the real hash, so
// the document can be re-pinned later.
func FallbackLocator(contentHash string) string {
	h := strings.TrimPrefix(contentHash, "0x")
	if len(h) > 16 {
		h = h[:16]
	}
	return "local_storage_" + h
}
