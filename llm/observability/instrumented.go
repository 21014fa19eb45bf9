package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/llm"
)

const instrumentationName = "github.com/BaSui01/wikiagent/llm"

// Recorder 接收每次补全调用的结果，internal/metrics.Collector 实现了该接口
type Recorder interface {
	RecordLLMRequest(provider, model, status string, duration time.Duration, promptTokens, completionTokens int)
}

// InstrumentedProvider 为 Provider 增加 span、指标与日志
type InstrumentedProvider struct {
	inner    llm.Provider
	recorder Recorder
	tracer   trace.Tracer
	logger   *zap.Logger
}

// 编译期接口检查
var _ llm.Provider = (*InstrumentedProvider)(nil)

// NewInstrumentedProvider 包装 Provider，recorder 为 nil 时只记录 span
func NewInstrumentedProvider(inner llm.Provider, recorder Recorder, logger *zap.Logger) *InstrumentedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedProvider{
		inner:    inner,
		recorder: recorder,
		tracer:   otel.Tracer(instrumentationName),
		logger:   logger.With(zap.String("component", "llm_observability"), zap.String("provider", inner.Name())),
	}
}

func (p *InstrumentedProvider) Name() string { return p.inner.Name() }

func (p *InstrumentedProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return p.inner.HealthCheck(ctx)
}

// Completion 调用内部 Provider 并记录耗时、token 用量与状态
func (p *InstrumentedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	model := ""
	if req != nil {
		model = req.Model
	}
	ctx, span := p.tracer.Start(ctx, "llm.completion", trace.WithAttributes(
		attribute.String("llm.provider", p.inner.Name()),
		attribute.String("llm.model", model),
	))
	defer span.End()

	start := time.Now()
	resp, err := p.inner.Completion(ctx, req)
	duration := time.Since(start)

	status := "success"
	var promptTokens, completionTokens int
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.logger.Debug("completion failed", zap.Duration("duration", duration), zap.Error(err))
	} else if resp != nil {
		if resp.Model != "" {
			model = resp.Model
		}
		promptTokens = resp.Usage.PromptTokens
		completionTokens = resp.Usage.CompletionTokens
		span.SetAttributes(
			attribute.Int("llm.tokens.prompt", promptTokens),
			attribute.Int("llm.tokens.completion", completionTokens),
		)
	}

	if p.recorder != nil {
		p.recorder.RecordLLMRequest(p.inner.Name(), model, status, duration, promptTokens, completionTokens)
	}
	return resp, err
}
