package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rag_chat/internal/generation"
	"rag_chat/internal/shared"
)

func TestGenerateReadsOutputText(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/responses", r.URL.Path)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-model", body["model"])
		assert.Equal(t, "answer from context", body["instructions"])
		assert.Equal(t, "What color is the sky?", body["input"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id":"resp_1","object":"response","created_at":1,"status":"completed","model":"test-model",
			"output":[{"type":"message","id":"msg_1","status":"completed","role":"assistant",
				"content":[{"type":"output_text","text":"Blue.","annotations":[]}]}]
		}`))
	}))
	defer srv.Close()

	c, err := New(generation.Options{APIKey: "k", BaseURL: srv.URL, Model: "test-model"}, 0)
	require.NoError(t, err)

	got, err := c.Generate(context.Background(), generation.Prompt{System: "answer from context", User: "What color is the sky?"})
	require.NoError(t, err)
	assert.Equal(t, "Blue.", got)
}

func TestGenerateAPIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"bad","type":"invalid_request_error"}}`))
	}))
	defer srv.Close()

	c, err := New(generation.Options{APIKey: "k", BaseURL: srv.URL, Model: "m"}, 0)
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), generation.Prompt{User: "q"})
	require.Error(t, err)

	var pe *shared.ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, http.StatusBadRequest, pe.StatusCode)
	assert.False(t, pe.Retryable)
}
