package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/internal/ctxkeys"
	"github.com/BaSui01/wikiagent/llm"
	"github.com/BaSui01/wikiagent/rag"
	"github.com/BaSui01/wikiagent/types"
)

var tracer = otel.Tracer("github.com/BaSui01/wikiagent/agent")

// Classifier 判断查询复杂度，从不失败
type Classifier interface {
	Classify(ctx context.Context, query string) *rag.ProcessedQuery
}

// Extender 在第一轮文档之外追加第二轮检索结果
type Extender interface {
	Extend(ctx context.Context, pq *rag.ProcessedQuery, docs []rag.PageContent) []rag.PageContent
}

// WikiAgent 编排完整的检索流水线：
// 分类 → 检索 →（零结果则返回未找到）→ 抓取页面 →（complex_analysis 时多跳）→ 组装答案。
// 构建完成后不可变，可被多个 goroutine 并发调用。
type WikiAgent struct {
	classifier Classifier
	search     rag.Searcher
	fetcher    rag.PageFetcher
	multiHop   Extender
	assembler  *ResponseAssembler
	metrics    MetricsRecorder
	logger     *zap.Logger
}

// ProcessQuery 处理一次用户查询。任何内部失败（包括 panic）都转为错误信封，不会向调用方抛出。
func (a *WikiAgent) ProcessQuery(ctx context.Context, query string) (env ResultEnvelope) {
	id := uuid.NewString()
	ctx = ctxkeys.WithQueryID(ctx, id)

	ctx, span := tracer.Start(ctx, "agent.process_query")
	defer span.End()
	span.SetAttributes(attribute.String("query.id", id))

	start := time.Now()
	logger := a.logger.With(zap.String("query_id", id))
	if traceID, ok := ctxkeys.TraceID(ctx); ok {
		logger = logger.With(zap.String("trace_id", traceID))
	}

	defer func() {
		if r := recover(); r != nil {
			err := types.NewError(types.ErrInternalError, fmt.Sprintf("panic: %v", r))
			logger.Error("query processing panicked", zap.Any("panic", r))
			span.SetStatus(codes.Error, err.Error())
			env = a.assembler.ErrorEnvelope(ctx, query, err)
		}
		a.metrics.RecordQuery(string(env.Complexity), env.Found, time.Since(start))
		span.SetAttributes(
			attribute.Bool("query.found", env.Found),
			attribute.Int("query.sources", len(env.Sources)))
	}()

	if strings.TrimSpace(query) == "" {
		err := types.NewError(types.ErrInvalidQuery, "query must not be empty")
		span.SetStatus(codes.Error, err.Error())
		return a.assembler.ErrorEnvelope(ctx, query, err)
	}

	logger.Info("processing query", zap.String("query", query))

	pq := a.classifier.Classify(ctx, query)
	span.SetAttributes(attribute.String("query.complexity", string(pq.Complexity)))
	logger.Info("query classified",
		zap.String("complexity", string(pq.Complexity)),
		zap.String("source", string(pq.Source)),
		zap.Strings("entities", pq.Entities))

	results := a.search.Search(ctx, query)
	logger.Info("search completed", zap.Int("results", len(results.Results)), zap.Int("total", results.TotalResults))
	if len(results.Results) == 0 {
		return a.assembler.NotFound(ctx, query, pq.Complexity)
	}

	docs := a.fetcher.FetchAll(ctx, results.Results)
	logger.Info("pages fetched", zap.Int("requested", len(results.Results)), zap.Int("fetched", len(docs)))

	if pq.Complexity == rag.ComplexityComplexAnalysis && a.multiHop != nil {
		added := a.multiHop.Extend(ctx, pq, docs)
		if len(added) > 0 {
			logger.Info("multi-hop round", zap.Int("added", len(added)))
			docs = append(docs, added...)
		}
	}

	return a.assembler.Assemble(ctx, pq, docs)
}

// ============================================================================
// 构建器
// ============================================================================

// WikiAgentBuilder 提供流式构建 WikiAgent 的能力
// 未设置的组件按站点数据表使用默认实现
type WikiAgentBuilder struct {
	profile     *rag.SiteProfile
	client      *rag.SiteClient
	provider    llm.Provider
	synth       Synthesizer
	metrics     MetricsRecorder
	logger      *zap.Logger
	retrieval   rag.RetrievalConfig
	extractor   rag.ExtractorConfig
	classifier  rag.ClassifierConfig
	multiHop    rag.MultiHopConfig
	assembler   AssemblerConfig
	synthConfig SynthesizerConfig
	classModel  string

	errors []error
}

// NewWikiAgentBuilder 创建构建器
func NewWikiAgentBuilder() *WikiAgentBuilder {
	return &WikiAgentBuilder{
		retrieval:   rag.DefaultRetrievalConfig(),
		extractor:   rag.DefaultExtractorConfig(),
		classifier:  rag.DefaultClassifierConfig(),
		multiHop:    rag.DefaultMultiHopConfig(),
		assembler:   DefaultAssemblerConfig(),
		synthConfig: DefaultSynthesizerConfig(),
		errors:      make([]error, 0),
	}
}

// WithProfile 设置站点数据表
func (b *WikiAgentBuilder) WithProfile(profile *rag.SiteProfile) *WikiAgentBuilder {
	if profile == nil {
		b.errors = append(b.errors, fmt.Errorf("%w: nil", ErrProfileInvalid))
		return b
	}
	if err := profile.Validate(); err != nil {
		b.errors = append(b.errors, fmt.Errorf("%w: %w", ErrProfileInvalid, err))
		return b
	}
	b.profile = profile
	return b
}

// WithSiteClient 设置共享的站点 HTTP 客户端
func (b *WikiAgentBuilder) WithSiteClient(client *rag.SiteClient) *WikiAgentBuilder {
	b.client = client
	return b
}

// WithProvider 设置 LLM Provider，同时用于查询分类与答案合成
func (b *WikiAgentBuilder) WithProvider(provider llm.Provider) *WikiAgentBuilder {
	b.provider = provider
	return b
}

// WithClassifierModel 设置分类使用的模型，为空时使用 Provider 默认模型
func (b *WikiAgentBuilder) WithClassifierModel(model string) *WikiAgentBuilder {
	b.classModel = model
	return b
}

// WithSynthesizer 设置自定义合成器，优先于 WithProvider 生成的 LLMSynthesizer
func (b *WikiAgentBuilder) WithSynthesizer(synth Synthesizer) *WikiAgentBuilder {
	b.synth = synth
	return b
}

// WithMetrics 设置指标记录器
func (b *WikiAgentBuilder) WithMetrics(metrics MetricsRecorder) *WikiAgentBuilder {
	b.metrics = metrics
	return b
}

// WithLogger 设置日志器
func (b *WikiAgentBuilder) WithLogger(logger *zap.Logger) *WikiAgentBuilder {
	b.logger = logger
	return b
}

// WithRetrievalConfig 设置检索配置
func (b *WikiAgentBuilder) WithRetrievalConfig(cfg rag.RetrievalConfig) *WikiAgentBuilder {
	b.retrieval = cfg
	return b
}

// WithExtractorConfig 设置内容提取配置
func (b *WikiAgentBuilder) WithExtractorConfig(cfg rag.ExtractorConfig) *WikiAgentBuilder {
	b.extractor = cfg
	return b
}

// WithClassifierConfig 设置分类配置
func (b *WikiAgentBuilder) WithClassifierConfig(cfg rag.ClassifierConfig) *WikiAgentBuilder {
	b.classifier = cfg
	return b
}

// WithMultiHopConfig 设置多跳配置
func (b *WikiAgentBuilder) WithMultiHopConfig(cfg rag.MultiHopConfig) *WikiAgentBuilder {
	b.multiHop = cfg
	return b
}

// WithAssemblerConfig 设置摘录长度配置
func (b *WikiAgentBuilder) WithAssemblerConfig(cfg AssemblerConfig) *WikiAgentBuilder {
	b.assembler = cfg
	return b
}

// WithSynthesizerConfig 设置合成配置
func (b *WikiAgentBuilder) WithSynthesizerConfig(cfg SynthesizerConfig) *WikiAgentBuilder {
	b.synthConfig = cfg
	return b
}

// Build 构建 WikiAgent
func (b *WikiAgentBuilder) Build() (*WikiAgent, error) {
	if len(b.errors) > 0 {
		return nil, fmt.Errorf("build wiki agent: %w", errors.Join(b.errors...))
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	profile := b.profile
	if profile == nil {
		profile = rag.DefaultSiteProfile()
	}
	client := b.client
	if client == nil {
		client = rag.NewSiteClient(rag.DefaultSiteClientConfig(), logger)
	}
	metrics := metricsOrNop(b.metrics)

	var queryLLM rag.QueryLLMProvider
	synth := b.synth
	if b.provider != nil {
		queryLLM = NewProviderCompleter(b.provider, b.classModel, b.classifier.Timeout)
		if synth == nil {
			synth = NewLLMSynthesizer(b.provider, b.synthConfig, DefaultSystemPrompt(profile.Messages.SiteName), logger)
		}
	}

	engine := rag.NewRetrievalEngine(b.retrieval, profile, client, metrics, logger)
	extractor := rag.NewContentExtractor(b.extractor, profile, client, metrics, logger)

	return &WikiAgent{
		classifier: rag.NewQueryClassifier(b.classifier, profile, queryLLM, metrics, logger),
		search:     engine,
		fetcher:    extractor,
		multiHop:   rag.NewMultiHopAnalyzer(b.multiHop, profile, engine, extractor, metrics, logger),
		assembler:  NewResponseAssembler(b.assembler, profile, synth, metrics, logger),
		metrics:    metrics,
		logger:     logger.With(zap.String("component", "wiki_agent")),
	}, nil
}
