package chat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompleteRequestShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req chatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.Equal(t, 0.7, req.Temperature)
		assert.Equal(t, 128, req.MaxTokens)
		require.Len(t, req.Messages, 3)
		assert.Equal(t, RoleSystem, req.Messages[0].Role)
		assert.Equal(t, RoleAssistant, req.Messages[1].Role)
		assert.Equal(t, RoleUser, req.Messages[2].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"Tell me more."}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "test-key", "", 0.7, 128)
	reply, err := p.Complete(context.Background(), []Message{
		{Role: RoleSystem, Content: "You are a host."},
		{Role: RoleAssistant, Content: "Go on."},
		{Role: RoleUser, Content: "I built a cache."},
	})
	require.NoError(t, err)
	assert.Equal(t, "Tell me more.", reply)
}

func TestOpenAICompleteEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "k", "m", 0, 10)
	_, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty choices")
}

func TestOpenAICompleteErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("upstream broken"))
	}))
	defer srv.Close()

	p := NewOpenAI(srv.URL, "k", "m", 0, 10)
	_, err := p.Complete(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 500")
	assert.Contains(t, err.Error(), "upstream broken")
}
