// Package ocr wraps the external OCR provider's extraction API.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	apperrors "lending-workers/internal/common/errors"
	"lending-workers/internal/common/httpclient"
)

// Client calls the OCR provider. Transient failures (network errors, 5xx,
// 429) are retried with exponential backoff; a 4xx response is treated as a
// permanent rejection of the document and returned without retrying.
type Client struct {
	baseURL     string
	apiKey      string
	httpClient  *httpclient.Client
	maxRetries  int
	backoffBase time.Duration
}

// ExtractRequest asks the provider to OCR one stored document. DocumentURL
// is a presigned, time-limited link the provider fetches directly.
type ExtractRequest struct {
	DocumentURL  string `json:"documentUrl"`
	DocumentType string `json:"documentType"`
}

// ExtractResult is the provider's extraction output.
type ExtractResult struct {
	Text       string            `json:"text"`
	Fields     map[string]string `json:"fields,omitempty"`
	Confidence float64           `json:"confidence"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration, maxRetries int) *Client {
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      apiKey,
		httpClient:  httpclient.NewClient(timeout),
		maxRetries:  maxRetries,
		backoffBase: time.Second,
	}
}

// Extract submits the document for text extraction. The context bounds the
// whole call including retries.
func (c *Client) Extract(ctx context.Context, req *ExtractRequest) (*ExtractResult, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal extract request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.backoffBase * time.Duration(1<<(attempt-1))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, apperrors.NewTimeoutError("ocr", ctx.Err())
			}
		}

		result, retryable, err := c.attempt(ctx, payload)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, apperrors.NewOCRExtractionFailedError(
		fmt.Errorf("all %d attempts failed: %w", c.maxRetries, lastErr))
}

// attempt performs one request. The second return value reports whether the
// failure is worth retrying.
func (c *Client) attempt(ctx context.Context, payload []byte) (*ExtractResult, bool, error) {
	url := fmt.Sprintf("%s/v1/extract", c.baseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, apperrors.NewTimeoutError("ocr", ctx.Err())
		}
		return nil, true, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("read response body: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		var result ExtractResult
		if err := json.Unmarshal(body, &result); err != nil {
			return nil, false, apperrors.NewOCRExtractionFailedError(
				fmt.Errorf("unmarshal response: %w", err))
		}
		return &result, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body))
	default:
		return nil, false, apperrors.NewOCRRejectedError(resp.StatusCode, string(body))
	}
}
