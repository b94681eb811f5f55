package esign

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "lending-workers/internal/common/errors"
)

func TestCreateSigningRequest_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/signing-requests", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req SigningRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "app-1", req.ApplicationID)
		assert.Equal(t, "jane@acme.test", req.SignerEmail)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"requestId":"sr-42","signingUrl":"https://sign.example.com/sr-42"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", 5*time.Second)
	resp, err := client.CreateSigningRequest(context.Background(), &SigningRequest{
		ApplicationID: "app-1",
		TemplateID:    "tpl-loan-agreement",
		SignerEmail:   "jane@acme.test",
		SignerName:    "Jane Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "sr-42", resp.RequestID)
	assert.Equal(t, "https://sign.example.com/sr-42", resp.SigningURL)
}

func TestCreateSigningRequest_ServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", 5*time.Second)
	_, err := client.CreateSigningRequest(context.Background(), &SigningRequest{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSigningRequestFailed, apperrors.CodeOf(err))
	assert.True(t, apperrors.IsRetryable(err))
}

func TestCreateSigningRequest_BadRequestIsPermanent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"unknown template"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", 5*time.Second)
	_, err := client.CreateSigningRequest(context.Background(), &SigningRequest{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSigningRequestFailed, apperrors.CodeOf(err))
	assert.False(t, apperrors.IsRetryable(err))
}

func TestCreateSigningRequest_MissingURLIsAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"requestId":"sr-43"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "sk-test", 5*time.Second)
	_, err := client.CreateSigningRequest(context.Background(), &SigningRequest{})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSigningRequestFailed, apperrors.CodeOf(err))
}
