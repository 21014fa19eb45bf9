package rag

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/BaSui01/wikiagent/types"
)

// UntitledPage 是无法找到标题时使用的占位标题.
const UntitledPage = "Untitled"

// ExtractorConfig 配置页面内容提取.
type ExtractorConfig struct {
	MaxContentLength int           `json:"max_content_length"` // hard cut, in characters
	MinContentLength int           `json:"min_content_length"` // below this the body fallback kicks in
	Timeout          time.Duration `json:"timeout"`
}

// DefaultExtractorConfig 返回合理的默认值 。
func DefaultExtractorConfig() ExtractorConfig {
	return ExtractorConfig{
		MaxContentLength: 8000,
		MinContentLength: 100,
		Timeout:          10 * time.Second,
	}
}

// ContentExtractor 获取单个页面并提取标题、正文和章节.
type ContentExtractor struct {
	config  ExtractorConfig
	profile *SiteProfile
	client  *SiteClient
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewContentExtractor 创建内容提取器.
func NewContentExtractor(
	config ExtractorConfig,
	profile *SiteProfile,
	client *SiteClient,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *ContentExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxContentLength <= 0 {
		config.MaxContentLength = 8000
	}
	if config.MinContentLength <= 0 {
		config.MinContentLength = 100
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}
	return &ContentExtractor{
		config:  config,
		profile: profile,
		client:  client,
		metrics: recorderOrNop(metrics),
		logger:  logger.With(zap.String("component", "content_extractor")),
	}
}

// Fetch 获取并提取一个页面。网络错误、超时和非 2xx 状态都作为错误返回。
func (e *ContentExtractor) Fetch(ctx context.Context, pageURL string) (*PageContent, error) {
	ctx, span := tracer.Start(ctx, "rag.fetch_page", trace.WithAttributes(attribute.String("url", pageURL)))
	defer span.End()

	start := time.Now()
	body, err := e.client.GetWithTimeout(ctx, pageURL, e.config.Timeout)
	if err != nil {
		e.metrics.RecordPageFetch("error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, err
	}

	page, err := e.Extract(pageURL, bytes.NewReader(body))
	if err != nil {
		e.metrics.RecordPageFetch("parse_error", time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract failed")
		return nil, err
	}

	e.metrics.RecordPageFetch("ok", time.Since(start))
	span.SetAttributes(
		attribute.String("title", page.Title),
		attribute.Int("content_length", len(page.Content)),
		attribute.Int("sections", len(page.Sections)))
	return page, nil
}

// FetchAll 依次获取每个搜索结果的页面。失败的页面记录日志后被忽略，
// 返回的文档保持搜索结果的顺序。
func (e *ContentExtractor) FetchAll(ctx context.Context, results []SearchResult) []PageContent {
	pages := make([]PageContent, 0, len(results))
	for _, r := range results {
		page, err := e.Fetch(ctx, r.URL)
		if err != nil {
			e.logger.Warn("page fetch failed",
				zap.String("url", r.URL),
				zap.Error(err))
			continue
		}
		pages = append(pages, *page)
	}
	return pages
}

// Extract 从 HTML 中提取页面内容，不发起网络请求.
func (e *ContentExtractor) Extract(pageURL string, r io.Reader) (*PageContent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, types.NewError(types.ErrParseFailed, "failed to parse page html").WithURL(pageURL).WithCause(err)
	}

	if len(e.profile.StripSelectors) > 0 {
		doc.Find(strings.Join(e.profile.StripSelectors, ", ")).Remove()
	}

	title := extractTitle(doc)
	content := e.mainContent(doc)
	sections := extractSections(doc)

	return &PageContent{
		URL:      pageURL,
		Title:    title,
		Content:  truncateRunes(content, e.config.MaxContentLength),
		Sections: sections,
	}, nil
}

// extractTitle: 第一个 h1；否则 <title> 中第一个 " - " 之前的部分；否则 Untitled.
func extractTitle(doc *goquery.Document) string {
	if h1 := collapseSpace(doc.Find("h1").First().Text()); h1 != "" {
		return h1
	}
	raw := doc.Find("title").First().Text()
	if before, _, found := strings.Cut(raw, " - "); found {
		raw = before
	}
	if t := collapseSpace(raw); t != "" {
		return t
	}
	return UntitledPage
}

// mainContent 对每个内容选择器按提取文本长度打分，最长者胜出（平局取先者）。
// 最长文本仍不足 MinContentLength 时，去掉页眉导航等外壳后使用 body 文本。
func (e *ContentExtractor) mainContent(doc *goquery.Document) string {
	best := ""
	bestLen := 0
	for _, sel := range e.profile.ContentSelectors {
		text := blockText(doc.Find(sel))
		if n := len([]rune(text)); n > bestLen {
			best, bestLen = text, n
		}
	}

	if bestLen < e.config.MinContentLength {
		if len(e.profile.ChromeSelectors) > 0 {
			doc.Find(strings.Join(e.profile.ChromeSelectors, ", ")).Remove()
		}
		best = blockText(doc.Find("body"))
	}
	return best
}

// extractSections 按文档顺序遍历 h1-h6，捕获到下一个同级或更高级标题为止的兄弟节点文本。
// 重复标题保留第一次出现的位置，文本取最后一次出现。
func extractSections(doc *goquery.Document) []Section {
	var sections []Section
	index := make(map[string]int)

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		heading := collapseSpace(s.Text())
		level := headingLevel(s.Get(0))
		if heading == "" || level == 0 {
			return
		}

		text := blockText(s.NextUntil(headingStopSelector(level)))
		if text == "" {
			return
		}

		if i, ok := index[heading]; ok {
			sections[i].Text = text
			sections[i].Level = level
			return
		}
		index[heading] = len(sections)
		sections = append(sections, Section{Heading: heading, Level: level, Text: text})
	})
	return sections
}

func headingLevel(n *html.Node) int {
	if n == nil || n.Type != html.ElementNode || len(n.Data) != 2 || n.Data[0] != 'h' {
		return 0
	}
	level := int(n.Data[1] - '0')
	if level < 1 || level > 6 {
		return 0
	}
	return level
}

// headingStopSelector 返回同级或更高级标题的选择器，如 level 2 → "h1, h2".
func headingStopSelector(level int) string {
	tags := make([]string, 0, level)
	for i := 1; i <= level; i++ {
		tags = append(tags, fmt.Sprintf("h%d", i))
	}
	return strings.Join(tags, ", ")
}

// ============================================================================
// 文本提取
// ============================================================================

var blockElements = map[string]bool{
	"address": true, "article": true, "aside": true, "blockquote": true, "br": true,
	"dd": true, "div": true, "dl": true, "dt": true, "figcaption": true, "figure": true,
	"footer": true, "form": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "header": true, "hr": true, "li": true, "main": true,
	"nav": true, "ol": true, "p": true, "pre": true, "section": true, "table": true,
	"td": true, "th": true, "tr": true, "ul": true,
}

// blockText 提取选择集中所有节点的文本，块级元素边界处换行，然后规范化空白.
func blockText(sel *goquery.Selection) string {
	var b strings.Builder
	for _, n := range sel.Nodes {
		writeNodeText(&b, n)
		b.WriteByte('\n')
	}
	return normalizeText(b.String())
}

func writeNodeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	}

	block := n.Type == html.ElementNode && blockElements[n.Data]
	if block {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNodeText(b, c)
	}
	if block {
		b.WriteByte('\n')
	}
}
