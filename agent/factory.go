package agent

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/config"
	"github.com/BaSui01/wikiagent/llm"
	llmfactory "github.com/BaSui01/wikiagent/llm/factory"
	"github.com/BaSui01/wikiagent/llm/observability"
	"github.com/BaSui01/wikiagent/rag"
)

// NewFromConfig 根据配置组装 WikiAgent。
// 未配置 API Key 时不创建 Provider：分类走启发式，答案走本地兜底。
// metrics 若同时实现 observability.Recorder，LLM 调用也会被计量。
func NewFromConfig(cfg *config.Config, metrics MetricsRecorder, logger *zap.Logger) (*WikiAgent, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	profile, err := ProfileFromConfig(cfg.Site)
	if err != nil {
		return nil, err
	}

	client := rag.NewSiteClient(rag.SiteClientConfig{
		UserAgent:         cfg.Site.UserAgent,
		Timeout:           cfg.Site.Timeout,
		MaxBodyBytes:      rag.DefaultSiteClientConfig().MaxBodyBytes,
		RequestsPerSecond: cfg.Site.RequestsPerSecond,
		MaxRedirects:      rag.DefaultSiteClientConfig().MaxRedirects,
	}, logger)

	provider, err := ProviderFromConfig(cfg.LLM, metrics, logger)
	if err != nil {
		return nil, err
	}

	b := NewWikiAgentBuilder().
		WithProfile(profile).
		WithSiteClient(client).
		WithMetrics(metrics).
		WithLogger(logger).
		WithRetrievalConfig(rag.RetrievalConfig{
			MaxResults:       cfg.Site.MaxResults,
			SnippetLength:    cfg.Site.SnippetLength,
			SearchTimeout:    cfg.Site.Timeout,
			ProbeTimeout:     cfg.Site.ProbeTimeout,
			EnableDirectURLs: cfg.Site.EnableDirectURLs,
			EnableVariations: cfg.Site.EnableVariations,
		}).
		WithExtractorConfig(rag.ExtractorConfig{
			MaxContentLength: cfg.Site.MaxContentLength,
			MinContentLength: rag.DefaultExtractorConfig().MinContentLength,
			Timeout:          cfg.Site.Timeout,
		}).
		WithClassifierConfig(rag.ClassifierConfig{
			UseModel: cfg.LLM.UseModelClassifier,
			Timeout:  cfg.LLM.ClassifierTimeout,
		}).
		WithMultiHopConfig(rag.MultiHopConfig{
			Enabled:        cfg.Site.EnableMultiHop,
			FetchCanonical: rag.DefaultMultiHopConfig().FetchCanonical,
		}).
		WithAssemblerConfig(AssemblerConfig{
			ContextExcerptLength:  cfg.Site.ContextExcerptLength,
			FallbackExcerptLength: cfg.Site.FallbackExcerptLength,
		}).
		WithSynthesizerConfig(SynthesizerConfig{
			Model:   cfg.LLM.Model,
			Timeout: cfg.LLM.Timeout,
		})

	if provider != nil {
		classifierModel := cfg.LLM.ClassifierModel
		if classifierModel == "" {
			classifierModel = cfg.LLM.Model
		}
		b = b.WithProvider(provider).WithClassifierModel(classifierModel)
	}

	return b.Build()
}

// ProfileFromConfig 解析站点数据表：自定义文件优先，其次内置数据表；
// 配置中的 BaseURL / SearchEndpoint 覆盖数据表中的值。
func ProfileFromConfig(cfg config.SiteConfig) (*rag.SiteProfile, error) {
	var (
		profile *rag.SiteProfile
		err     error
	)
	if cfg.ProfilePath != "" {
		profile, err = rag.LoadSiteProfile(cfg.ProfilePath)
		if err != nil {
			return nil, err
		}
	} else {
		profile = rag.DefaultSiteProfile()
	}

	if cfg.BaseURL != "" {
		profile = profile.WithBaseURL(cfg.BaseURL)
	}
	if cfg.SearchEndpoint != "" {
		cp := *profile
		cp.SearchEndpoint = cfg.SearchEndpoint
		profile = &cp
	}
	if err := profile.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileInvalid, err)
	}
	return profile, nil
}

// ProviderFromConfig 创建 LLM Provider。API Key 为空时返回 (nil, nil)。
func ProviderFromConfig(cfg config.LLMConfig, metrics MetricsRecorder, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKey == "" {
		logger.Info("no llm api key configured, using heuristic classification and local fallback answers")
		return nil, nil
	}

	provider, err := llmfactory.NewProviderFromConfig(cfg.Provider, llmfactory.ProviderConfig{
		APIKey:      cfg.APIKey,
		BaseURL:     cfg.BaseURL,
		Model:       cfg.Model,
		Timeout:     cfg.Timeout,
		Temperature: float32(cfg.Temperature),
		TopP:        float32(cfg.TopP),
		TopK:        cfg.TopK,
		MaxTokens:   cfg.MaxTokens,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("create llm provider: %w", err)
	}

	recorder, _ := metrics.(observability.Recorder)
	return observability.NewInstrumentedProvider(provider, recorder, logger), nil
}
