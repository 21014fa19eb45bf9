package rag

import (
	"context"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Searcher 是多跳分析依赖的检索能力，由 RetrievalEngine 实现.
type Searcher interface {
	Search(ctx context.Context, query string) SearchResponse
}

// PageFetcher 是多跳分析依赖的页面获取能力，由 ContentExtractor 实现.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (*PageContent, error)
	FetchAll(ctx context.Context, results []SearchResult) []PageContent
}

// MultiHopConfig 配置多跳分析.
type MultiHopConfig struct {
	Enabled        bool `json:"enabled"`
	FetchCanonical bool `json:"fetch_canonical"` // also fetch the target's canonical page directly
}

// DefaultMultiHopConfig 返回默认配置
func DefaultMultiHopConfig() MultiHopConfig {
	return MultiHopConfig{
		Enabled:        true,
		FetchCanonical: true,
	}
}

// Hop 记录一次被触发的第二轮检索。
type Hop struct {
	Relation   string `json:"relation"`    // rule name, e.g. "province"
	Subject    string `json:"subject"`     // entity whose page carried the fact
	SubjectURL string `json:"subject_url"` // first-round document that matched
	Target     string `json:"target"`      // related entity found in that document
	Query      string `json:"query"`       // second-round search query
	TargetURL  string `json:"target_url"`  // canonical page of the target
}

// MultiHopAnalyzer 在第一轮文档中寻找关系事实（例如某座山所在的省份），
// 找到后以关系另一端的实体发起第二轮检索。规则全部来自站点数据表。
type MultiHopAnalyzer struct {
	config  MultiHopConfig
	profile *SiteProfile
	search  Searcher
	fetcher PageFetcher
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewMultiHopAnalyzer 创建多跳分析器.
func NewMultiHopAnalyzer(
	config MultiHopConfig,
	profile *SiteProfile,
	search Searcher,
	fetcher PageFetcher,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *MultiHopAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MultiHopAnalyzer{
		config:  config,
		profile: profile,
		search:  search,
		fetcher: fetcher,
		metrics: recorderOrNop(metrics),
		logger:  logger.With(zap.String("component", "multi_hop")),
	}
}

// Extend 返回第二轮检索新增的文档（按 URL 对已有文档和彼此去重，保持检索顺序）。
// 只对 complex_analysis 查询生效；没有合格的第一轮文档时返回空，不是错误。
func (m *MultiHopAnalyzer) Extend(ctx context.Context, pq *ProcessedQuery, docs []PageContent) []PageContent {
	if !m.config.Enabled {
		return nil
	}
	hop, ok := m.Detect(pq, docs)
	if !ok {
		m.logger.Debug("no qualifying document for multi-hop")
		return nil
	}

	ctx, span := tracer.Start(ctx, "rag.multi_hop")
	defer span.End()
	span.SetAttributes(
		attribute.String("relation", hop.Relation),
		attribute.String("subject", hop.Subject),
		attribute.String("target", hop.Target))

	start := time.Now()
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		seen[d.URL] = true
	}

	var pending []SearchResult
	for _, r := range m.search.Search(ctx, hop.Query).Results {
		if !seen[r.URL] {
			pending = append(pending, r)
		}
	}

	var added []PageContent
	for _, page := range m.fetcher.FetchAll(ctx, pending) {
		if seen[page.URL] {
			continue
		}
		seen[page.URL] = true
		added = append(added, page)
	}

	if m.config.FetchCanonical && hop.TargetURL != "" && !seen[hop.TargetURL] {
		page, err := m.fetcher.Fetch(ctx, hop.TargetURL)
		if err != nil {
			m.logger.Warn("page fetch failed",
				zap.String("url", hop.TargetURL),
				zap.Error(err))
		} else if !seen[page.URL] {
			seen[page.URL] = true
			added = append(added, *page)
		}
	}

	m.metrics.RecordMultiHop(hop.Relation, len(added))
	span.SetAttributes(attribute.Int("added", len(added)))
	m.logger.Info("multi-hop round",
		zap.String("relation", hop.Relation),
		zap.String("subject", hop.Subject),
		zap.String("target", hop.Target),
		zap.Int("added", len(added)),
		zap.Duration("duration", time.Since(start)))
	return added
}

// Detect 判断是否需要第二轮检索，并返回触发它的关系事实。
func (m *MultiHopAnalyzer) Detect(pq *ProcessedQuery, docs []PageContent) (*Hop, bool) {
	if pq == nil || pq.Complexity != ComplexityComplexAnalysis {
		return nil, false
	}

	lower := strings.ToLower(pq.OriginalQuery)
	var rules []RelationRule
	for _, r := range m.profile.Relations {
		if containsAny(lower, r.Markers) {
			rules = append(rules, r)
		}
	}
	if len(rules) == 0 {
		return nil, false
	}

	subjects := m.subjects(pq)
	if len(subjects) == 0 {
		return nil, false
	}

	for _, doc := range docs {
		subject, ok := matchSubject(doc, subjects)
		if !ok {
			continue
		}
		if hop, ok := m.findTarget(doc, rules); ok {
			hop.Subject = subject
			return hop, true
		}
	}
	return nil, false
}

// subjects 收集查询中的主题实体（小写，长者优先），排除关系和地点标记词.
func (m *MultiHopAnalyzer) subjects(pq *ProcessedQuery) []string {
	excluded := make(map[string]bool)
	for _, w := range m.profile.RelationMarkers() {
		excluded[strings.ToLower(w)] = true
	}
	for _, w := range m.profile.Vocabulary.LocationMarkers {
		excluded[strings.ToLower(w)] = true
	}

	lowerQuery := strings.ToLower(pq.OriginalQuery)
	var out []string
	for _, e := range pq.Entities {
		if e = strings.ToLower(strings.TrimSpace(e)); e != "" && !excluded[e] {
			out = append(out, e)
		}
	}
	for _, mapping := range m.profile.DirectURLs {
		for _, k := range mapping.Keywords {
			if k = strings.ToLower(k); strings.Contains(lowerQuery, k) && !excluded[k] {
				out = append(out, k)
			}
		}
	}

	out = dedupeStrings(out)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// matchSubject: 文档 URL 包含主题的 slug，或标题包含主题.
func matchSubject(doc PageContent, subjects []string) (string, bool) {
	lowerURL := strings.ToLower(doc.URL)
	lowerTitle := strings.ToLower(doc.Title)
	for _, s := range subjects {
		slug := strings.Join(strings.Fields(s), "-")
		if strings.Contains(lowerURL, slug) || strings.Contains(lowerTitle, s) {
			return s, true
		}
	}
	return "", false
}

// findTarget 在文档正文中寻找最早出现的关系目标。指向文档自身的目标被忽略。
func (m *MultiHopAnalyzer) findTarget(doc PageContent, rules []RelationRule) (*Hop, bool) {
	content := strings.ToLower(doc.Content)

	var best *Hop
	bestPos := -1
	for _, rule := range rules {
		for _, target := range rule.Targets {
			targetURL := ""
			if target.Path != "" {
				if u, err := m.profile.Resolve(target.Path); err == nil {
					targetURL = u
				}
			}
			if targetURL != "" && targetURL == doc.URL {
				continue
			}

			for _, alias := range target.Aliases {
				pos := strings.Index(content, strings.ToLower(alias))
				if alias == "" || pos < 0 || (bestPos >= 0 && pos >= bestPos) {
					continue
				}
				query := target.Query
				if query == "" {
					query = target.Name
				}
				bestPos = pos
				best = &Hop{
					Relation:   rule.Name,
					SubjectURL: doc.URL,
					Target:     target.Name,
					Query:      query,
					TargetURL:  targetURL,
				}
			}
		}
	}
	return best, best != nil
}
