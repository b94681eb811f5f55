package crm

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertContact_CreatesWhenEmailUnknown(t *testing.T) {
	var created bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/Contacts/search":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodPost && r.URL.Path == "/Contacts":
			created = true
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"data":[{"code":"SUCCESS","details":{"id":"crm-1"},"status":"success"}]}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	id, err := client.UpsertContact(context.Background(), &Contact{
		Email:     "jane@acme.test",
		FirstName: "Jane",
		LastName:  "Doe",
	})
	require.NoError(t, err)
	assert.Equal(t, "crm-1", id)
	assert.True(t, created)
}

func TestUpsertContact_UpdatesWhenEmailExists(t *testing.T) {
	var updatedID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/Contacts/search":
			assert.Equal(t, "jane@acme.test", r.URL.Query().Get("email"))
			w.Write([]byte(`{"data":[{"id":"crm-7","Email":"jane@acme.test"}]}`))
		case r.Method == http.MethodPut && r.URL.Path == "/Contacts/crm-7":
			updatedID = "crm-7"
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	id, err := client.UpsertContact(context.Background(), &Contact{Email: "jane@acme.test"})
	require.NoError(t, err)
	assert.Equal(t, "crm-7", id)
	assert.Equal(t, "crm-7", updatedID)
}

func TestCreateContact_ProviderLevelFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":[{"code":"DUPLICATE_DATA","status":"error","message":"duplicate data"}]}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "token")
	_, err := client.CreateContact(context.Background(), &Contact{Email: "jane@acme.test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate data")
}
