// Package faceid talks to the face inference sidecar, which runs the
// detection and embedding models. One round trip returns every face found in
// an image together with its embedding vector.
package faceid

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Engine is the capability the face service depends on.
type Engine interface {
	DetectFaces(ctx context.Context, image []byte) ([]Face, error)
}

// Face is one detected face: bounding box in original-image pixel
// coordinates plus the recognition embedding.
type Face struct {
	X         int       `json:"x"`
	Y         int       `json:"y"`
	W         int       `json:"w"`
	H         int       `json:"h"`
	Score     float64   `json:"score"`
	Embedding []float32 `json:"embedding"`
}

type Options struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
}

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("baseURL required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL:    baseURL,
		apiKey:     opts.APIKey,
		timeout:    timeout,
		maxRetries: maxRetries,
		httpClient: hc,
	}, nil
}

type detectRequest struct {
	ImageB64 string `json:"image_b64"`
}

type detectResponse struct {
	Faces []Face `json:"faces"`
	Error string `json:"error,omitempty"`
}

func (c *Client) DetectFaces(ctx context.Context, image []byte) ([]Face, error) {
	if len(image) == 0 {
		return nil, errors.New("empty image")
	}
	body, err := json.Marshal(detectRequest{ImageB64: base64.StdEncoding.EncodeToString(image)})
	if err != nil {
		return nil, fmt.Errorf("marshal detect request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
			}
		}
		faces, retryable, err := c.detectOnce(ctx, body)
		if err == nil {
			return faces, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, lastErr
}

func (c *Client) detectOnce(ctx context.Context, body []byte) ([]Face, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/faces/detect", bytes.NewReader(body))
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("faceid request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, true, fmt.Errorf("faceid read response: %w", err)
	}
	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("faceid status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("faceid status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out detectResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, false, fmt.Errorf("faceid decode response: %w", err)
	}
	if out.Error != "" {
		return nil, false, fmt.Errorf("faceid: %s", out.Error)
	}
	return out.Faces, false, nil
}
