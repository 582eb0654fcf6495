package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Vinay-K-Rajith/SchoolChatbot/internal/config"
	"github.com/Vinay-K-Rajith/SchoolChatbot/pkg/llm"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	testLLMConfig  = config.LLMConfig{Model: "gemini-test", MaxOutputTokens: 2048}
	testChatConfig = config.ChatConfig{DefaultSchoolCode: "SXSBT"}
)

// stubLLM 总是返回固定回复。
type stubLLM struct {
	reply string
	err   error
}

func (s *stubLLM) Chat(context.Context, string, []llm.Message, string, *llm.GenerationParams) (string, error) {
	return s.reply, s.err
}

func doJSON(t *testing.T, r http.Handler, method, path string, body interface{}, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, r, method, path, body, nil, cookies...)
}

// doTenant 发送带 X-API-Key 的请求。
func doTenant(t *testing.T, r http.Handler, method, path, apiKey string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return doRequest(t, r, method, path, body, map[string]string{"X-API-Key": apiKey})
}

func doRequest(t *testing.T, r http.Handler, method, path string, body interface{}, headers map[string]string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
