package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/internal/ctxkeys"
	"github.com/BaSui01/wikiagent/llm"
	"github.com/BaSui01/wikiagent/rag"
	"github.com/BaSui01/wikiagent/testutil"
	"github.com/BaSui01/wikiagent/testutil/mocks"
	"github.com/BaSui01/wikiagent/types"
)

func sampleContext() SynthesisContext {
	return SynthesisContext{
		Complexity: rag.ComplexitySimple,
		Query:      "Gunung Agung lokasinya ada dimana",
		Entities:   []string{"gunung agung"},
		Sources: []SourceExcerpt{{
			URL:     wikiBase + "/gunung/gunung-agung",
			Title:   "Gunung Agung",
			Excerpt: "Terletak di Provinsi Bali.",
		}},
		SiteName: "Ambisius Wiki",
	}
}

// ---------------------------------------------------------------------------
// LLMSynthesizer
// ---------------------------------------------------------------------------

func TestLLMSynthesizer_BuildsRequest(t *testing.T) {
	t.Parallel()

	provider := mocks.NewSuccessProvider("  # Gunung Agung\n\nDi Bali.  ")
	s := NewLLMSynthesizer(provider, SynthesizerConfig{Model: "gemini-2.0-flash"}, DefaultSystemPrompt("Ambisius Wiki"), zap.NewNop())

	ctx := ctxkeys.WithQueryID(context.Background(), "q-42")
	answer, err := s.Synthesize(ctx, sampleContext())

	require.NoError(t, err)
	assert.Equal(t, "# Gunung Agung\n\nDi Bali.", answer)

	call := provider.GetLastCall()
	require.NotNil(t, call)
	req := call.Request
	assert.Equal(t, "gemini-2.0-flash", req.Model)
	assert.Equal(t, "q-42", req.TraceID)
	assert.Equal(t, 60*time.Second, req.Timeout)
	assert.Equal(t, "simple", req.Metadata["complexity"])
	assert.Contains(t, req.Messages[0].Content, "Ambisius Wiki")
	testutil.AssertMessagesEqual(t, []llm.Message{
		{Role: llm.RoleSystem, Content: DefaultSystemPrompt("Ambisius Wiki").Render()},
		{Role: llm.RoleUser, Content: BuildPrompt(sampleContext())},
	}, req.Messages)
}

func TestLLMSynthesizer_ModelFromContext(t *testing.T) {
	t.Parallel()

	provider := mocks.NewSuccessProvider("ok")
	s := NewLLMSynthesizer(provider, SynthesizerConfig{Model: "configured"}, SystemPrompt{}, nil)

	_, err := s.Synthesize(ctxkeys.WithLLMModel(context.Background(), "override"), sampleContext())
	require.NoError(t, err)

	req := provider.GetLastCall().Request
	assert.Equal(t, "override", req.Model)
	// 空系统提示词不发送 system 消息
	require.Len(t, req.Messages, 1)
	assert.Equal(t, llm.RoleUser, req.Messages[0].Role)
}

func TestLLMSynthesizer_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		provider  llm.Provider
		code      types.ErrorCode
		retryable bool
	}{
		{
			name:     "nil provider",
			provider: nil,
			code:     types.ErrSynthesisUnavailable,
		},
		{
			name:      "retryable upstream error",
			provider:  mocks.NewErrorProvider(&llm.Error{Code: llm.ErrRateLimited, Message: "slow down", Retryable: true}),
			code:      types.ErrSynthesisFailed,
			retryable: true,
		},
		{
			name:     "content filtered",
			provider: mocks.NewErrorProvider(&llm.Error{Code: llm.ErrContentFiltered, Message: "blocked"}),
			code:     types.ErrSynthesisFailed,
		},
		{
			name:     "plain error",
			provider: mocks.NewErrorProvider(errors.New("connection reset")),
			code:     types.ErrSynthesisFailed,
		},
		{
			name:     "empty answer",
			provider: mocks.NewSuccessProvider("   "),
			code:     types.ErrSynthesisFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			s := NewLLMSynthesizer(tt.provider, DefaultSynthesizerConfig(), SystemPrompt{}, nil)
			_, err := s.Synthesize(context.Background(), sampleContext())

			require.Error(t, err)
			assert.Equal(t, tt.code, types.GetErrorCode(err))
			assert.Equal(t, tt.retryable, types.IsRetryable(err))
		})
	}
}

func TestLLMSynthesizer_NoChoices(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().WithCompletionFunc(func(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
		return &llm.ChatResponse{Provider: "mock", Model: req.Model}, nil
	})
	s := NewLLMSynthesizer(provider, DefaultSynthesizerConfig(), SystemPrompt{}, nil)

	_, err := s.Synthesize(context.Background(), sampleContext())
	require.Error(t, err)
	assert.Equal(t, types.ErrSynthesisFailed, types.GetErrorCode(err))

	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrEmptyResponse, llmErr.Code)
	assert.Equal(t, 1, provider.GetCallCount())
}

func TestLLMSynthesizer_ContextCancelled(t *testing.T) {
	t.Parallel()

	provider := mocks.NewMockProvider().WithDelay(time.Second)
	s := NewLLMSynthesizer(provider, DefaultSynthesizerConfig(), SystemPrompt{}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := s.Synthesize(ctx, sampleContext())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// ---------------------------------------------------------------------------
// ProviderCompleter
// ---------------------------------------------------------------------------

func TestProviderCompleter(t *testing.T) {
	t.Parallel()

	provider := mocks.NewSuccessProvider(`{"intent":"x"}`)
	c := NewProviderCompleter(provider, "gemini-1.5-flash", 5*time.Second)

	out, err := c.Complete(ctxkeys.WithQueryID(context.Background(), "q-7"), "analyse this")
	require.NoError(t, err)
	assert.Equal(t, `{"intent":"x"}`, out)

	req := provider.GetLastCall().Request
	assert.Equal(t, "gemini-1.5-flash", req.Model)
	assert.Equal(t, "q-7", req.TraceID)
	assert.Equal(t, 5*time.Second, req.Timeout)
	require.Len(t, req.Messages, 1)
	assert.Equal(t, "analyse this", req.Messages[0].Content)
}

func TestProviderCompleter_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewProviderCompleter(nil, "", 0).Complete(context.Background(), "p")
	assert.Equal(t, types.ErrClassificationFailed, types.GetErrorCode(err))

	_, err = NewProviderCompleter(mocks.NewErrorProvider(errors.New("down")), "", 0).Complete(context.Background(), "p")
	assert.Equal(t, types.ErrClassificationFailed, types.GetErrorCode(err))

	_, err = NewProviderCompleter(mocks.NewSuccessProvider(""), "", 0).Complete(context.Background(), "p")
	var llmErr *llm.Error
	require.ErrorAs(t, err, &llmErr)
	assert.Equal(t, llm.ErrEmptyResponse, llmErr.Code)
}
