package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/internal/ctxkeys"
	"github.com/BaSui01/wikiagent/llm"
	"github.com/BaSui01/wikiagent/rag"
	"github.com/BaSui01/wikiagent/types"
)

// Synthesizer 根据检索上下文生成 markdown 答案。
// 返回错误或空文本时由 ResponseAssembler 使用本地模板兜底。
type Synthesizer interface {
	Synthesize(ctx context.Context, sc SynthesisContext) (string, error)
}

// SynthesizerConfig LLM 合成配置
type SynthesizerConfig struct {
	Model   string        `json:"model,omitempty"`
	Timeout time.Duration `json:"timeout"`
}

// DefaultSynthesizerConfig 返回默认合成配置
func DefaultSynthesizerConfig() SynthesizerConfig {
	return SynthesizerConfig{Timeout: 60 * time.Second}
}

// LLMSynthesizer 通过 llm.Provider 生成答案
type LLMSynthesizer struct {
	provider llm.Provider
	config   SynthesizerConfig
	system   SystemPrompt
	logger   *zap.Logger
}

// 编译期接口检查
var _ Synthesizer = (*LLMSynthesizer)(nil)

// NewLLMSynthesizer 创建 LLM 合成器
func NewLLMSynthesizer(provider llm.Provider, config SynthesizerConfig, system SystemPrompt, logger *zap.Logger) *LLMSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = DefaultSynthesizerConfig().Timeout
	}
	return &LLMSynthesizer{
		provider: provider,
		config:   config,
		system:   system,
		logger:   logger.With(zap.String("component", "synthesizer")),
	}
}

// Synthesize 组装提示词并调用模型
func (s *LLMSynthesizer) Synthesize(ctx context.Context, sc SynthesisContext) (string, error) {
	if s.provider == nil {
		return "", types.NewError(types.ErrSynthesisUnavailable, "no llm provider configured")
	}

	messages := make([]llm.Message, 0, 2)
	if !s.system.IsZero() {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: s.system.Render()})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: BuildPrompt(sc)})

	model := s.config.Model
	if m, ok := ctxkeys.LLMModel(ctx); ok {
		model = m
	}
	req := &llm.ChatRequest{
		Model:    model,
		Messages: messages,
		Timeout:  s.config.Timeout,
		Metadata: map[string]string{"complexity": string(sc.Complexity)},
	}
	if id, ok := ctxkeys.QueryID(ctx); ok {
		req.TraceID = id
	}

	resp, err := s.provider.Completion(ctx, req)
	if err != nil {
		return "", types.NewError(types.ErrSynthesisFailed, "llm completion failed").
			WithCause(err).
			WithRetryable(llm.IsRetryable(err))
	}
	text, err := llm.FirstContent(resp)
	if err != nil {
		return "", types.NewError(types.ErrSynthesisFailed, "llm returned no answer").WithCause(err)
	}
	return text, nil
}

// ============================================================================
// 分类器适配
// ============================================================================

// ProviderCompleter 把 llm.Provider 适配为 rag.QueryLLMProvider
type ProviderCompleter struct {
	provider llm.Provider
	model    string
	timeout  time.Duration
}

// 编译期接口检查
var _ rag.QueryLLMProvider = (*ProviderCompleter)(nil)

// NewProviderCompleter 创建分类器使用的补全适配器，model 为空时使用 Provider 默认模型
func NewProviderCompleter(provider llm.Provider, model string, timeout time.Duration) *ProviderCompleter {
	return &ProviderCompleter{provider: provider, model: model, timeout: timeout}
}

// Complete 发送单条用户消息并返回首个候选文本
func (c *ProviderCompleter) Complete(ctx context.Context, prompt string) (string, error) {
	if c.provider == nil {
		return "", types.NewError(types.ErrClassificationFailed, "no llm provider configured")
	}
	req := &llm.ChatRequest{
		Model:    c.model,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Timeout:  c.timeout,
	}
	if id, ok := ctxkeys.QueryID(ctx); ok {
		req.TraceID = id
	}
	resp, err := c.provider.Completion(ctx, req)
	if err != nil {
		return "", types.NewError(types.ErrClassificationFailed, "llm completion failed").WithCause(err)
	}
	return llm.FirstContent(resp)
}
