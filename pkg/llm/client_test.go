package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) Client {
	return NewClient(config.LLMConfig{
		BaseURL:         srv.URL + "/v1beta/",
		Model:           "gemini-test",
		TimeoutSeconds:  5,
		MaxOutputTokens: 2048,
	})
}

func TestChatSendsHistoryAndKey(t *testing.T) {
	var got generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models/gemini-test:generateContent", r.URL.Path)
		assert.Equal(t, "school-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"role":"model","parts":[{"text":"Hello "},{"text":"parent"}]}}]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv).Chat(context.Background(), "school-key",
		[]Message{{Role: "user", Content: "system"}}, "hi", nil)
	require.NoError(t, err)
	assert.Equal(t, "Hello parent", out)

	require.Len(t, got.Contents, 2)
	assert.Equal(t, "user", got.Contents[0].Role)
	assert.Equal(t, "system", got.Contents[0].Parts[0].Text)
	assert.Equal(t, "hi", got.Contents[1].Parts[0].Text)
	require.NotNil(t, got.GenerationConfig)
	assert.Equal(t, 2048, *got.GenerationConfig.MaxOutputTokens)
}

func TestChatNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Chat(context.Background(), "bad", nil, "hi", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestChatEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv).Chat(context.Background(), "k", nil, "hi", nil)
	assert.ErrorIs(t, err, ErrEmptyResponse)
}

func TestChatEmptyKey(t *testing.T) {
	_, err := NewClient(config.LLMConfig{}).Chat(context.Background(), "", nil, "hi", nil)
	assert.Error(t, err)
}

func TestChatHonoursContextDeadline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := newTestClient(srv).Chat(ctx, "k", nil, "hi", nil)
	assert.Error(t, err)
}
