package rag

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed profiles/*.yaml
var builtinProfiles embed.FS

// DefaultSiteHost 是默认部署的内容站点.
const DefaultSiteHost = "wiki.ambisius.com"

// SiteProfile 是每个部署站点的数据表：选择器、关键词到 URL 的映射、
// 分类词表、多跳关系规则以及回退文案。管线代码本身不包含任何站点名称。
type SiteProfile struct {
	Name           string `yaml:"name" json:"name"`
	BaseURL        string `yaml:"base_url" json:"base_url"`
	SearchEndpoint string `yaml:"search_endpoint" json:"search_endpoint"` // relative or absolute; "{query}" placeholder optional

	// 搜索结果解析
	ResultSelectors  []string `yaml:"result_selectors" json:"result_selectors"`
	SnippetContainer string   `yaml:"snippet_container" json:"snippet_container"`

	// 内容提取
	StripSelectors   []string `yaml:"strip_selectors" json:"strip_selectors"`
	ContentSelectors []string `yaml:"content_selectors" json:"content_selectors"`
	ChromeSelectors  []string `yaml:"chrome_selectors" json:"chrome_selectors"`

	DirectURLs []URLMapping    `yaml:"direct_urls" json:"direct_urls"`
	Vocabulary Vocabulary      `yaml:"vocabulary" json:"vocabulary"`
	Relations  []RelationRule  `yaml:"relations" json:"relations"`
	Messages   ProfileMessages `yaml:"messages" json:"messages"`
}

// URLMapping 将查询关键词映射到站点上的规范页面.
type URLMapping struct {
	Keywords []string `yaml:"keywords" json:"keywords"`
	Path     string   `yaml:"path" json:"path"`
}

// Vocabulary 驱动启发式分类器.
type Vocabulary struct {
	Entities          []string `yaml:"entities" json:"entities"`
	ComparisonMarkers []string `yaml:"comparison_markers" json:"comparison_markers"`
	Conjunctions      []string `yaml:"conjunctions" json:"conjunctions"` // matched as whole words
	DomainKeywords    []string `yaml:"domain_keywords" json:"domain_keywords"`
	ReportMarkers     []string `yaml:"report_markers" json:"report_markers"`
	LocationMarkers   []string `yaml:"location_markers" json:"location_markers"`
	IntentTemplate    string   `yaml:"intent_template" json:"intent_template"`
	GenericIntent     string   `yaml:"generic_intent" json:"generic_intent"`
}

// RelationRule 描述一种可以触发第二轮检索的关系，例如“所在省份”。
type RelationRule struct {
	Name    string           `yaml:"name" json:"name"`
	Markers []string         `yaml:"markers" json:"markers"`
	Targets []RelationTarget `yaml:"targets" json:"targets"`
}

// RelationTarget 是关系另一端的实体及其检索方式.
type RelationTarget struct {
	Name    string   `yaml:"name" json:"name"`
	Aliases []string `yaml:"aliases" json:"aliases"`
	Query   string   `yaml:"query" json:"query"`
	Path    string   `yaml:"path" json:"path"`
}

// ProfileMessages 是本地回退、未找到和错误信封使用的文案。
// 支持占位符 {query}、{site}、{entity}。
type ProfileMessages struct {
	SiteName        string   `yaml:"site_name" json:"site_name"`
	NotFoundTitle   string   `yaml:"not_found_title" json:"not_found_title"`
	NotFound        string   `yaml:"not_found" json:"not_found"`
	CausesHeading   string   `yaml:"causes_heading" json:"causes_heading"`
	NotFoundCauses  []string `yaml:"not_found_causes" json:"not_found_causes"`
	SuggestHeading  string   `yaml:"suggestions_heading" json:"suggestions_heading"`
	Suggestions     []string `yaml:"suggestions" json:"suggestions"`
	AnswerTitle     string   `yaml:"answer_title" json:"answer_title"`
	FallbackIntro   string   `yaml:"fallback_intro" json:"fallback_intro"`
	SourceLabel     string   `yaml:"source_label" json:"source_label"`
	MissingHeading  string   `yaml:"missing_heading" json:"missing_heading"`
	NotAvailable    string   `yaml:"not_available" json:"not_available"`
	NoDocuments     string   `yaml:"no_documents" json:"no_documents"`
	ErrorTitle      string   `yaml:"error_title" json:"error_title"`
	ErrorBody       string   `yaml:"error_body" json:"error_body"`
	ErrorLabel      string   `yaml:"error_label" json:"error_label"`
	TroubleHeading  string   `yaml:"troubleshooting_heading" json:"troubleshooting_heading"`
	Troubleshooting []string `yaml:"troubleshooting" json:"troubleshooting"`
	Contact         string   `yaml:"contact" json:"contact"`
	SourcesHeading  string   `yaml:"sources_heading" json:"sources_heading"`
}

// Render 替换文案中的占位符.
func (m ProfileMessages) Render(text, query, entity string) string {
	return strings.NewReplacer(
		"{query}", query,
		"{site}", m.SiteName,
		"{entity}", entity,
	).Replace(text)
}

// ============================================================================
// 加载
// ============================================================================

// DefaultSiteProfile 返回内置的默认站点数据表。
// 内置 YAML 随二进制一起编译，解析失败属于构建缺陷，因此直接 panic。
func DefaultSiteProfile() *SiteProfile {
	p, err := BuiltinSiteProfile(DefaultSiteHost)
	if err != nil {
		panic(fmt.Sprintf("rag: builtin site profile: %v", err))
	}
	return p
}

// BuiltinSiteProfile 按主机名查找内置站点数据表.
func BuiltinSiteProfile(host string) (*SiteProfile, error) {
	entries, err := builtinProfiles.ReadDir("profiles")
	if err != nil {
		return nil, fmt.Errorf("read builtin profiles: %w", err)
	}
	for _, e := range entries {
		data, err := builtinProfiles.ReadFile(path.Join("profiles", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read builtin profile %s: %w", e.Name(), err)
		}
		var p SiteProfile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse builtin profile %s: %w", e.Name(), err)
		}
		if p.Host() == host {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("no builtin site profile for host %q", host)
}

// LoadSiteProfile 从 YAML 文件加载站点数据表，未设置的字段沿用默认数据表.
func LoadSiteProfile(filePath string) (*SiteProfile, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read site profile: %w", err)
	}
	return ParseSiteProfile(data)
}

// ParseSiteProfile 解析 YAML 数据并覆盖到默认数据表上.
func ParseSiteProfile(data []byte) (*SiteProfile, error) {
	p := DefaultSiteProfile()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, fmt.Errorf("failed to parse site profile: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// WithBaseURL 返回替换了基础源站的副本。相对路径会随之解析到新源站。
func (p *SiteProfile) WithBaseURL(baseURL string) *SiteProfile {
	cp := *p
	cp.BaseURL = strings.TrimRight(baseURL, "/")
	return &cp
}

// Validate 校验数据表的必填字段.
func (p *SiteProfile) Validate() error {
	u, err := url.Parse(p.BaseURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("site profile %q: invalid base_url %q", p.Name, p.BaseURL)
	}
	if p.SearchEndpoint == "" {
		return fmt.Errorf("site profile %q: search_endpoint is required", p.Name)
	}
	if len(p.ResultSelectors) == 0 {
		return fmt.Errorf("site profile %q: result_selectors must not be empty", p.Name)
	}
	if len(p.ContentSelectors) == 0 {
		return fmt.Errorf("site profile %q: content_selectors must not be empty", p.Name)
	}
	for i, m := range p.DirectURLs {
		if len(m.Keywords) == 0 || m.Path == "" {
			return fmt.Errorf("site profile %q: direct_urls[%d] needs keywords and path", p.Name, i)
		}
	}
	return nil
}

// Host 返回站点主机名（含端口）。
func (p *SiteProfile) Host() string {
	u, err := url.Parse(p.BaseURL)
	if err != nil {
		return ""
	}
	return u.Host
}

// Resolve 将相对路径解析为站点上的绝对 URL。绝对 URL 原样返回。
func (p *SiteProfile) Resolve(ref string) (string, error) {
	base, err := url.Parse(p.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("parse reference %q: %w", ref, err)
	}
	return base.ResolveReference(r).String(), nil
}

// SearchURL 构造站点搜索请求地址。
// 端点包含 {query} 时替换占位符；以 "=" 结尾时按查询参数转义；否则按路径段转义后追加。
func (p *SiteProfile) SearchURL(query string) (string, error) {
	endpoint, err := p.Resolve(p.SearchEndpoint)
	if err != nil {
		return "", err
	}
	switch {
	case strings.Contains(p.SearchEndpoint, "{query}"):
		// Resolve 会把花括号转义
		endpoint, err = p.Resolve(strings.ReplaceAll(p.SearchEndpoint, "{query}", url.PathEscape(query)))
		if err != nil {
			return "", err
		}
		return endpoint, nil
	case strings.HasSuffix(endpoint, "="):
		return endpoint + url.QueryEscape(query), nil
	default:
		return endpoint + url.PathEscape(query), nil
	}
}

// RelationMarkers 汇总所有关系规则的触发词.
func (p *SiteProfile) RelationMarkers() []string {
	var out []string
	for _, r := range p.Relations {
		out = append(out, r.Markers...)
	}
	return out
}
