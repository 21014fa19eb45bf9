package rag

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RetrievalConfig 配置级联检索引擎.
type RetrievalConfig struct {
	MaxResults    int           `json:"max_results"`    // results returned per Search call
	SnippetLength int           `json:"snippet_length"` // characters kept from the enclosing block
	SearchTimeout time.Duration `json:"search_timeout"` // endpoint request timeout
	ProbeTimeout  time.Duration `json:"probe_timeout"`  // HEAD probe timeout

	// 级联阶段开关
	EnableDirectURLs bool `json:"enable_direct_urls"`
	EnableVariations bool `json:"enable_variations"`
}

// DefaultRetrievalConfig 返回合理的默认值 。
func DefaultRetrievalConfig() RetrievalConfig {
	return RetrievalConfig{
		MaxResults:       5,
		SnippetLength:    200,
		SearchTimeout:    10 * time.Second,
		ProbeTimeout:     5 * time.Second,
		EnableDirectURLs: true,
		EnableVariations: true,
	}
}

// RetrievalEngine 将查询转换为去重、截断的搜索结果列表。
// 三个阶段依次执行，只有前一阶段恰好返回零个结果时才进入下一阶段：
// 站点搜索端点 → 关键词直达 URL 探测 → 查询变体重试。
type RetrievalEngine struct {
	config  RetrievalConfig
	profile *SiteProfile
	client  *SiteClient
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewRetrievalEngine 创建检索引擎.
func NewRetrievalEngine(
	config RetrievalConfig,
	profile *SiteProfile,
	client *SiteClient,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *RetrievalEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxResults <= 0 {
		config.MaxResults = 5
	}
	if config.SnippetLength <= 0 {
		config.SnippetLength = 200
	}
	if config.SearchTimeout <= 0 {
		config.SearchTimeout = 10 * time.Second
	}
	if config.ProbeTimeout <= 0 {
		config.ProbeTimeout = 5 * time.Second
	}
	return &RetrievalEngine{
		config:  config,
		profile: profile,
		client:  client,
		metrics: recorderOrNop(metrics),
		logger:  logger.With(zap.String("component", "retrieval_engine")),
	}
}

// Search 执行级联检索。从不返回错误：所有阶段都失败时返回零结果。
func (re *RetrievalEngine) Search(ctx context.Context, query string) SearchResponse {
	ctx, span := tracer.Start(ctx, "rag.search", trace.WithAttributes(attribute.String("query", query)))
	defer span.End()

	resp := re.runStage(ctx, StageEndpoint, query, re.searchEndpoint)

	if len(resp.Results) == 0 && re.config.EnableDirectURLs {
		resp = re.runStage(ctx, StageDirectURL, query, re.probeDirectURLs)
	}

	if len(resp.Results) == 0 && re.config.EnableVariations {
		resp = re.runStage(ctx, StageVariation, query, re.searchVariations)
	}

	span.SetAttributes(
		attribute.Int("results", len(resp.Results)),
		attribute.Int("total_results", resp.TotalResults))
	return resp
}

func (re *RetrievalEngine) runStage(
	ctx context.Context,
	stage string,
	query string,
	fn func(context.Context, string) []SearchResult,
) SearchResponse {
	start := time.Now()
	re.logger.Debug("search stage started",
		zap.String("stage", stage),
		zap.String("query", truncateStr(query, 80)))

	resp := re.finalize(fn(ctx, query))

	re.metrics.RecordSearchStage(stage, len(resp.Results), time.Since(start))
	re.logger.Info("search stage completed",
		zap.String("stage", stage),
		zap.Int("results", len(resp.Results)),
		zap.Int("total_results", resp.TotalResults),
		zap.Duration("duration", time.Since(start)))
	return resp
}

// finalize 记录截断前的数量并截断到 MaxResults。
func (re *RetrievalEngine) finalize(results []SearchResult) SearchResponse {
	total := len(results)
	if total > re.config.MaxResults {
		results = results[:re.config.MaxResults]
	}
	if results == nil {
		results = []SearchResult{}
	}
	return SearchResponse{Results: results, TotalResults: total}
}

// ============================================================================
// 阶段 1：站点搜索端点
// ============================================================================

func (re *RetrievalEngine) searchEndpoint(ctx context.Context, query string) []SearchResult {
	searchURL, err := re.profile.SearchURL(query)
	if err != nil {
		re.logger.Warn("failed to build search url", zap.Error(err))
		return nil
	}

	body, err := re.client.GetWithTimeout(ctx, searchURL, re.config.SearchTimeout)
	if err != nil {
		re.logger.Warn("search endpoint request failed",
			zap.String("url", searchURL),
			zap.Error(err))
		return nil
	}

	results, err := re.parseResults(body)
	if err != nil {
		re.logger.Warn("failed to parse search results", zap.Error(err))
		return nil
	}
	return results
}

// parseResults 按顺序尝试结果选择器，第一个产出至少一个合格链接的选择器胜出，
// 不再继续尝试后续选择器。
func (re *RetrievalEngine) parseResults(body []byte) ([]SearchResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse search page: %w", err)
	}

	host := re.profile.Host()
	for _, sel := range re.profile.ResultSelectors {
		var found []SearchResult
		seen := make(map[string]bool)

		doc.Find(sel).Each(func(_ int, a *goquery.Selection) {
			href, ok := a.Attr("href")
			title := collapseSpace(a.Text())
			if !ok || strings.TrimSpace(href) == "" || title == "" {
				return
			}

			abs, err := re.profile.Resolve(href)
			if err != nil {
				return
			}
			u, err := url.Parse(abs)
			if err != nil || !strings.EqualFold(u.Host, host) {
				return
			}
			if seen[abs] {
				return
			}
			seen[abs] = true

			found = append(found, SearchResult{
				Title:   title,
				URL:     abs,
				Snippet: re.snippet(a),
			})
		})

		if len(found) > 0 {
			re.logger.Debug("result selector matched",
				zap.String("selector", sel),
				zap.Int("matches", len(found)))
			return found, nil
		}
	}
	return nil, nil
}

// snippet 取最近的块级祖先的文本作为预览.
func (re *RetrievalEngine) snippet(a *goquery.Selection) string {
	container := re.profile.SnippetContainer
	if container == "" {
		return ""
	}
	text := collapseSpace(a.Closest(container).Text())
	if utf8.RuneCountInString(text) > re.config.SnippetLength {
		return truncateRunes(text, re.config.SnippetLength) + "..."
	}
	return text
}

// ============================================================================
// 阶段 2：直达 URL 探测
// ============================================================================

func (re *RetrievalEngine) probeDirectURLs(ctx context.Context, query string) []SearchResult {
	lower := strings.ToLower(query)
	probed := make(map[string]bool)

	var results []SearchResult
	for _, m := range re.profile.DirectURLs {
		keyword, ok := firstContained(lower, m.Keywords)
		if !ok {
			continue
		}

		pageURL, err := re.profile.Resolve(m.Path)
		if err != nil || probed[pageURL] {
			continue
		}
		probed[pageURL] = true

		status, err := re.client.Head(ctx, pageURL, re.config.ProbeTimeout)
		if err != nil {
			re.logger.Debug("direct url probe failed",
				zap.String("url", pageURL),
				zap.Error(err))
			continue
		}
		if status < 200 || status >= 300 {
			re.logger.Debug("direct url probe rejected",
				zap.String("url", pageURL),
				zap.Int("status", status))
			continue
		}

		results = append(results, SearchResult{
			Title:   keyword,
			URL:     pageURL,
			Snippet: fmt.Sprintf("Direct link to %s", keyword),
		})
	}
	return results
}

// ============================================================================
// 阶段 3：查询变体
// ============================================================================

func (re *RetrievalEngine) searchVariations(ctx context.Context, query string) []SearchResult {
	for _, v := range QueryVariations(query) {
		if ctx.Err() != nil {
			return nil
		}
		re.logger.Debug("trying query variation", zap.String("variation", v))
		if results := re.searchEndpoint(ctx, v); len(results) > 0 {
			return results
		}
	}
	return nil
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	punctuation   = regexp.MustCompile(`[^\w\s]`)
)

// QueryVariations 返回查询的改写形式：空白换成 "+"、空白换成 "-"、小写、去标点。
// 与原查询相同或重复的变体被跳过。
func QueryVariations(query string) []string {
	candidates := []string{
		whitespaceRun.ReplaceAllString(query, "+"),
		whitespaceRun.ReplaceAllString(query, "-"),
		strings.ToLower(query),
		strings.TrimSpace(punctuation.ReplaceAllString(query, "")),
	}

	seen := map[string]bool{query: true}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// firstContained 返回第一个作为子串出现在 s 中的关键词.
func firstContained(s string, keywords []string) (string, bool) {
	for _, k := range keywords {
		if k != "" && strings.Contains(s, strings.ToLower(k)) {
			return k, true
		}
	}
	return "", false
}
