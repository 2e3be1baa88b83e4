package chat

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplete(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req completionRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":" Te faltan 2 documentos. "}}]}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(nil, "sk-test", srv.URL, "gpt-4o-mini")
	reply, err := client.Complete(context.Background(), []Message{
		{Role: "system", Content: "Eres MarIA."},
		{Role: "user", Content: "¿cuánto falta?"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Te faltan 2 documentos.", reply)
}

func TestCompleteAPIError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"error":{"message":"invalid api key"}}`)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(nil, "bad", srv.URL, "gpt-4o-mini")
	_, err := client.Complete(context.Background(), []Message{{Role: "user", Content: "hola"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid api key")
}

func TestCompleteEmptyHistory(t *testing.T) {
	t.Parallel()
	client := NewClient(nil, "sk", "http://unused", "m")
	_, err := client.Complete(context.Background(), nil)
	require.Error(t, err)
}
