package ctxkeys

import "context"

// contextKey 用于在 context 中存储值的键类型
type contextKey string

const (
	traceIDKey  contextKey = "trace_id"
	queryIDKey  contextKey = "query_id"
	llmModelKey contextKey = "llm_model"
)

// WithTraceID 设置 TraceID（HTTP 请求 ID）
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// TraceID 获取 TraceID
func TraceID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(traceIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithQueryID 设置 QueryID，与返回的 ResultEnvelope.ID 一致
func WithQueryID(ctx context.Context, queryID string) context.Context {
	return context.WithValue(ctx, queryIDKey, queryID)
}

// QueryID 获取 QueryID
func QueryID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(queryIDKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

// WithLLMModel 设置 LLM 模型（用于覆盖默认合成模型）
func WithLLMModel(ctx context.Context, model string) context.Context {
	return context.WithValue(ctx, llmModelKey, model)
}

// LLMModel 获取 LLM 模型
func LLMModel(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(llmModelKey).(string)
	if !ok || v == "" {
		return "", false
	}
	return v, true
}
