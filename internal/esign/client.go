// Package esign wraps the e-signature provider's document invite API.
package esign

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

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *httpclient.Client
}

// SigningRequest describes one agreement to send for signature. Fields are
// merged into the template before the invite goes out.
type SigningRequest struct {
	ApplicationID string            `json:"applicationId"`
	TemplateID    string            `json:"templateId"`
	SignerEmail   string            `json:"signerEmail"`
	SignerName    string            `json:"signerName"`
	Fields        map[string]string `json:"fields,omitempty"`
}

// SigningResponse is the provider's accepted-invite payload.
type SigningResponse struct {
	RequestID  string `json:"requestId"`
	SigningURL string `json:"signingUrl"`
	ExpiresAt  string `json:"expiresAt,omitempty"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpclient.NewClient(timeout),
	}
}

// CreateSigningRequest sends the invite and returns the signer-facing URL.
// Provider 5xx responses and network failures come back retryable; a 4xx
// means the request itself is bad and is returned as permanent. Retry
// scheduling is the job engine's concern, not the client's.
func (c *Client) CreateSigningRequest(ctx context.Context, req *SigningRequest) (*SigningResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal signing request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/signing-requests", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, apperrors.NewTimeoutError("esign", ctx.Err())
		}
		return nil, apperrors.NewSigningRequestFailedError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewSigningRequestFailedError(fmt.Errorf("read response body: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return nil, apperrors.NewSigningRequestFailedError(
			fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(body)))
	default:
		return nil, apperrors.NewSigningRejectedError(resp.StatusCode, string(body))
	}

	var result SigningResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, apperrors.NewSigningRequestFailedError(fmt.Errorf("unmarshal response: %w", err))
	}
	if result.SigningURL == "" {
		return nil, apperrors.NewSigningRequestFailedError(fmt.Errorf("response is missing signingUrl"))
	}
	return &result, nil
}
