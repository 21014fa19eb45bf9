package rag

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// ============================================================================
// 检索结果
// ============================================================================

// SearchResult 代表内容站点上的一个候选页面。URL 在一次 Search 调用内唯一。
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// SearchResponse 是 RetrievalEngine.Search 的输出。
// TotalResults 是截断到 MaxResults 之前的去重结果数。
type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
}

// ============================================================================
// 页面内容
// ============================================================================

// Section 是页面中的一个标题及其下方捕获的文本.
type Section struct {
	Heading string `json:"heading"`
	Level   int    `json:"level"`
	Text    string `json:"text"`
}

// PageContent 代表一个已获取并提取的页面。创建后不再修改。
type PageContent struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	Sections []Section `json:"sections,omitempty"`
}

// Section 按标题查找章节文本.
func (p *PageContent) Section(heading string) (string, bool) {
	for _, s := range p.Sections {
		if s.Heading == heading {
			return s.Text, true
		}
	}
	return "", false
}

// ============================================================================
// 查询分类
// ============================================================================

// QueryComplexity 决定下游检索深度和合成上下文的形状.
type QueryComplexity string

const (
	ComplexitySimple          QueryComplexity = "simple"
	ComplexityComparison      QueryComplexity = "comparison"
	ComplexityReport          QueryComplexity = "report"
	ComplexityComplexAnalysis QueryComplexity = "complex_analysis"
)

// Valid reports whether c is one of the four known complexities.
func (c QueryComplexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityComparison, ComplexityReport, ComplexityComplexAnalysis:
		return true
	}
	return false
}

// ClassificationSource 标记分类结果来自模型还是启发式规则.
type ClassificationSource string

const (
	SourceModel     ClassificationSource = "model"
	SourceHeuristic ClassificationSource = "heuristic"
)

// ProcessedQuery 是 QueryClassifier 的输出。创建后只读。
type ProcessedQuery struct {
	OriginalQuery         string               `json:"originalQuery"`
	Intent                string               `json:"intent"`
	Entities              []string             `json:"entities"`
	Complexity            QueryComplexity      `json:"complexity"`
	RequiresMultiplePages bool                 `json:"requiresMultiplePages"`
	Source                ClassificationSource `json:"source"`
}

// Fingerprint 返回分类结果的 RFC 8785 规范化 JSON 摘要，
// 相同输入必须得到相同的指纹.
func (q *ProcessedQuery) Fingerprint() (string, error) {
	raw, err := json.Marshal(q)
	if err != nil {
		return "", fmt.Errorf("marshal processed query: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize processed query: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
