package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/llm"
	"github.com/BaSui01/wikiagent/llm/providers"
)

func testConfig(baseURL string) providers.GeminiConfig {
	cfg := providers.DefaultGeminiConfig()
	cfg.APIKey = "test-key"
	cfg.BaseURL = baseURL
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestGeminiProvider_Name(t *testing.T) {
	provider := NewGeminiProvider(providers.GeminiConfig{}, zap.NewNop())
	assert.Equal(t, "gemini", provider.Name())
}

func TestGeminiProvider_DefaultBaseURL(t *testing.T) {
	provider := NewGeminiProvider(providers.GeminiConfig{}, nil)
	assert.Equal(t, defaultBaseURL, provider.cfg.BaseURL)
}

func TestGeminiProvider_DefaultModel(t *testing.T) {
	model := providers.ChooseModel(nil, "", defaultModel)
	assert.Equal(t, "gemini-2.0-flash", model)
}

// ---------------------------------------------------------------------------
// Completion
// ---------------------------------------------------------------------------

func TestGeminiProvider_Completion(t *testing.T) {
	var (
		gotPath string
		gotKey  string
		gotBody geminiRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"candidates": [{"content": {"role": "model", "parts": [{"text": "Gunung Agung "}, {"text": "terletak di Bali."}]}, "finishReason": "STOP", "index": 0}],
			"usageMetadata": {"promptTokenCount": 12, "candidatesTokenCount": 6, "totalTokenCount": 18},
			"responseId": "resp-1"
		}`))
	}))
	defer srv.Close()

	provider := NewGeminiProvider(testConfig(srv.URL), zap.NewNop())
	resp, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "Jawab dalam bahasa Indonesia."},
			{Role: llm.RoleUser, Content: "Dimana Gunung Agung?"},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)

	require.NotNil(t, gotBody.SystemInstruction)
	assert.Equal(t, "Jawab dalam bahasa Indonesia.", gotBody.SystemInstruction.Parts[0].Text)
	require.Len(t, gotBody.Contents, 1)
	assert.Equal(t, "user", gotBody.Contents[0].Role)

	require.NotNil(t, gotBody.GenerationConfig)
	assert.InDelta(t, 0.1, gotBody.GenerationConfig.Temperature, 1e-6)
	assert.InDelta(t, 0.8, gotBody.GenerationConfig.TopP, 1e-6)
	assert.Equal(t, 40, gotBody.GenerationConfig.TopK)
	assert.Equal(t, 8192, gotBody.GenerationConfig.MaxOutputTokens)

	text, err := llm.FirstContent(resp)
	require.NoError(t, err)
	assert.Equal(t, "Gunung Agung terletak di Bali.", text)
	assert.Equal(t, "resp-1", resp.ID)
	assert.Equal(t, 18, resp.Usage.TotalTokens)
}

func TestGeminiProvider_RequestOverridesDefaults(t *testing.T) {
	var gotBody geminiRequest
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"{}"}]}}]}`))
	}))
	defer srv.Close()

	provider := NewGeminiProvider(testConfig(srv.URL), nil)
	_, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Model:       "gemini-1.5-pro",
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: "x"}},
		Temperature: 0.5,
		TopK:        8,
		MaxTokens:   256,
	})
	require.NoError(t, err)

	assert.Equal(t, "/v1beta/models/gemini-1.5-pro:generateContent", gotPath)
	assert.InDelta(t, 0.5, gotBody.GenerationConfig.Temperature, 1e-6)
	assert.InDelta(t, 0.8, gotBody.GenerationConfig.TopP, 1e-6)
	assert.Equal(t, 8, gotBody.GenerationConfig.TopK)
	assert.Equal(t, 256, gotBody.GenerationConfig.MaxOutputTokens)
}

func TestGeminiProvider_ErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		code      llm.ErrorCode
		retryable bool
	}{
		{name: "bad key", status: http.StatusUnauthorized, body: `{"error":{"code":401,"message":"API key not valid","status":"UNAUTHENTICATED"}}`, code: llm.ErrUnauthorized},
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"error":{"message":"Resource exhausted"}}`, code: llm.ErrRateLimited, retryable: true},
		{name: "quota", status: http.StatusBadRequest, body: `{"error":{"message":"quota exceeded"}}`, code: llm.ErrQuotaExceeded},
		{name: "server error", status: http.StatusInternalServerError, body: "boom", code: llm.ErrUpstreamError, retryable: true},
		{name: "gateway timeout", status: http.StatusGatewayTimeout, body: "", code: llm.ErrUpstreamTimeout, retryable: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			provider := NewGeminiProvider(testConfig(srv.URL), nil)
			_, err := provider.Completion(context.Background(), &llm.ChatRequest{
				Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
			})

			var e *llm.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.retryable, e.Retryable)
			assert.Equal(t, tt.status, e.HTTPStatus)
			assert.Equal(t, "gemini", e.Provider)
		})
	}
}

func TestGeminiProvider_BlockedPrompt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[],"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	provider := NewGeminiProvider(testConfig(srv.URL), nil)
	_, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})

	var e *llm.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, llm.ErrContentFiltered, e.Code)
}

func TestGeminiProvider_MissingAPIKey(t *testing.T) {
	provider := NewGeminiProvider(providers.GeminiConfig{}, nil)

	_, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
	})
	var e *llm.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, llm.ErrProviderUnavailable, e.Code)

	status, err := provider.HealthCheck(context.Background())
	require.Error(t, err)
	assert.False(t, status.Healthy)
}

func TestGeminiProvider_EmptyRequest(t *testing.T) {
	provider := NewGeminiProvider(testConfig("http://127.0.0.1:1"), nil)

	_, err := provider.Completion(context.Background(), &llm.ChatRequest{})
	var e *llm.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, llm.ErrInvalidRequest, e.Code)
}

func TestGeminiProvider_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	provider := NewGeminiProvider(testConfig(srv.URL), nil)
	_, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "x"}},
		Timeout:  50 * time.Millisecond,
	})

	var e *llm.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, llm.ErrUpstreamTimeout, e.Code)
	assert.True(t, e.Retryable)
}

func TestGeminiProvider_HealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1beta/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"models":[]}`))
	}))
	defer srv.Close()

	status, err := NewGeminiProvider(testConfig(srv.URL), nil).HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestGeminiProvider_Integration(t *testing.T) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		t.Skip("GOOGLE_API_KEY not set, skipping integration test")
	}

	cfg := providers.DefaultGeminiConfig()
	cfg.APIKey = apiKey
	provider := NewGeminiProvider(cfg, zap.NewNop())

	resp, err := provider.Completion(context.Background(), &llm.ChatRequest{
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: "Say 'test' only"}},
		MaxTokens: 10,
	})
	require.NoError(t, err)
	text, err := llm.FirstContent(resp)
	require.NoError(t, err)
	assert.NotEmpty(t, text)
}
