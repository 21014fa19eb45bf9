package observability

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/llm"
	"github.com/BaSui01/wikiagent/testutil/mocks"
)

type stubProvider struct {
	resp *llm.ChatResponse
	err  error
}

func (s *stubProvider) Completion(context.Context, *llm.ChatRequest) (*llm.ChatResponse, error) {
	return s.resp, s.err
}

func (s *stubProvider) HealthCheck(context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (s *stubProvider) Name() string { return "stub" }

type recordedCall struct {
	provider, model, status string
	prompt, completion      int
}

type captureRecorder struct {
	mu    sync.Mutex
	calls []recordedCall
}

func (c *captureRecorder) RecordLLMRequest(provider, model, status string, _ time.Duration, prompt, completion int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, recordedCall{provider, model, status, prompt, completion})
}

func TestInstrumentedProvider_Success(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	inner := &stubProvider{resp: &llm.ChatResponse{
		Model:   "gemini-2.0-flash-001",
		Choices: []llm.ChatChoice{{Message: llm.Message{Content: "ok"}}},
		Usage:   llm.ChatUsage{PromptTokens: 10, CompletionTokens: 3},
	}}
	p := NewInstrumentedProvider(inner, rec, zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "gemini-2.0-flash"})
	require.NoError(t, err)
	assert.Same(t, inner.resp, resp)
	assert.Equal(t, "stub", p.Name())

	require.Len(t, rec.calls, 1)
	assert.Equal(t, recordedCall{"stub", "gemini-2.0-flash-001", "success", 10, 3}, rec.calls[0])
}

func TestInstrumentedProvider_Error(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	boom := errors.New("boom")
	p := NewInstrumentedProvider(&stubProvider{err: boom}, rec, nil)

	_, err := p.Completion(context.Background(), &llm.ChatRequest{Model: "m"})
	assert.ErrorIs(t, err, boom)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, "error", rec.calls[0].status)
	assert.Equal(t, "m", rec.calls[0].model)
}

func TestInstrumentedProvider_NilRecorder(t *testing.T) {
	t.Parallel()

	p := NewInstrumentedProvider(&stubProvider{resp: &llm.ChatResponse{}}, nil, nil)
	_, err := p.Completion(context.Background(), nil)
	assert.NoError(t, err)

	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}

func TestInstrumentedProvider_RecordsTokenUsage(t *testing.T) {
	t.Parallel()

	rec := &captureRecorder{}
	inner := mocks.NewMockProvider().WithResponse("Gunung Agung berada di Bali.").WithTokenUsage(420, 37)
	p := NewInstrumentedProvider(inner, rec, zap.NewNop())

	resp, err := p.Completion(context.Background(), &llm.ChatRequest{
		Model:    "gemini-2.0-flash",
		Messages: []llm.Message{{Role: llm.RoleUser, Content: "Gunung Agung lokasinya ada dimana"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 457, resp.Usage.TotalTokens)

	require.Len(t, rec.calls, 1)
	assert.Equal(t, recordedCall{"mock", "gemini-2.0-flash", "success", 420, 37}, rec.calls[0])
}

func TestInstrumentedProvider_HealthCheckPassesThrough(t *testing.T) {
	t.Parallel()

	p := NewInstrumentedProvider(mocks.NewMockProvider().WithUnhealthy(), nil, nil)

	status, err := p.HealthCheck(context.Background())
	require.Error(t, err)
	require.NotNil(t, status)
	assert.False(t, status.Healthy)
}
