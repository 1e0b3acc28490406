package mistral

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agenda/internal/llm"
)

func TestChatStream_StreamsEvents(t *testing.T) {
	bodies := make(chan map[string]any, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		bodies <- body

		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"4\"}}]}\n\n")
		w.(http.Flusher).Flush()
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()

	c := NewClient("secret", "", WithBaseURL(srv.URL+"/v1/"))
	stream, err := c.ChatStream(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "What is 2+2?"}},
	})
	require.NoError(t, err)
	defer stream.Close()

	ev, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "4", ev.Content)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, io.EOF)

	body := <-bodies
	assert.Equal(t, DefaultModel, body["model"])
	assert.Equal(t, true, body["stream"])
}

func TestChatStream_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"internal"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient("secret", "mistral-large-latest", WithBaseURL(srv.URL))
	stream, err := c.ChatStream(context.Background(), &llm.ChatRequest{})

	require.Error(t, err)
	assert.Nil(t, stream)

	var apiErr *llm.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "internal")
}

func TestChatStream_MissingKey(t *testing.T) {
	_, err := NewClient("", "").ChatStream(context.Background(), &llm.ChatRequest{})
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}
