package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/internal/ctxkeys"
	"github.com/BaSui01/wikiagent/rag"
)

// 合成结果标签
const (
	SynthesisSuccess     = "success"
	SynthesisFallback    = "fallback"
	SynthesisUnavailable = "unavailable"
)

// AssemblerConfig 摘录长度配置
type AssemblerConfig struct {
	ContextExcerptLength  int `json:"context_excerpt_length"`  // 每页交给合成器的最大字符数
	FallbackExcerptLength int `json:"fallback_excerpt_length"` // 本地兜底答案中每页的最大字符数
}

// DefaultAssemblerConfig 返回默认配置
func DefaultAssemblerConfig() AssemblerConfig {
	return AssemblerConfig{
		ContextExcerptLength:  3000,
		FallbackExcerptLength: 800,
	}
}

// ResponseAssembler 构建合成上下文、调用合成器并生成 ResultEnvelope
type ResponseAssembler struct {
	config  AssemblerConfig
	profile *rag.SiteProfile
	synth   Synthesizer
	metrics MetricsRecorder
	logger  *zap.Logger
	now     func() time.Time
}

// NewResponseAssembler 创建组装器。synth 为 nil 时总是使用本地兜底答案。
func NewResponseAssembler(config AssemblerConfig, profile *rag.SiteProfile, synth Synthesizer, metrics MetricsRecorder, logger *zap.Logger) *ResponseAssembler {
	defaults := DefaultAssemblerConfig()
	if config.ContextExcerptLength <= 0 {
		config.ContextExcerptLength = defaults.ContextExcerptLength
	}
	if config.FallbackExcerptLength <= 0 {
		config.FallbackExcerptLength = defaults.FallbackExcerptLength
	}
	if profile == nil {
		profile = rag.DefaultSiteProfile()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResponseAssembler{
		config:  config,
		profile: profile,
		synth:   synth,
		metrics: metricsOrNop(metrics),
		logger:  logger.With(zap.String("component", "response_assembler")),
		now:     time.Now,
	}
}

// BuildContext 生成合成上下文，每页摘录不超过 ContextExcerptLength
func (a *ResponseAssembler) BuildContext(pq *rag.ProcessedQuery, docs []rag.PageContent) SynthesisContext {
	sc := SynthesisContext{
		Complexity:      pq.Complexity,
		Query:           pq.OriginalQuery,
		Entities:        pq.Entities,
		MissingEntities: a.MissingEntities(pq, docs),
		Sources:         make([]SourceExcerpt, 0, len(docs)),
		SiteName:        a.profile.Messages.SiteName,
	}
	for _, d := range docs {
		sc.Sources = append(sc.Sources, SourceExcerpt{
			URL:     d.URL,
			Title:   d.Title,
			Excerpt: rag.TruncateRunes(d.Content, a.config.ContextExcerptLength),
		})
	}
	return sc
}

// MissingEntities 返回在任何文档标题、URL、正文中都没有出现的实体。
// 关系触发词（如 "provinsi"）不算实体；被更长实体包含的实体只报告较长者。
func (a *ResponseAssembler) MissingEntities(pq *rag.ProcessedQuery, docs []rag.PageContent) []string {
	if pq == nil {
		return nil
	}
	markers := make(map[string]struct{})
	for _, m := range a.profile.RelationMarkers() {
		markers[strings.ToLower(m)] = struct{}{}
	}

	corpus := make([]string, 0, len(docs))
	for _, d := range docs {
		corpus = append(corpus, strings.ToLower(d.Title+"\n"+d.URL+"\n"+d.Content))
	}
	covered := func(entity string) bool {
		slug := strings.ReplaceAll(entity, " ", "-")
		for _, c := range corpus {
			if strings.Contains(c, entity) || strings.Contains(c, slug) {
				return true
			}
		}
		return false
	}

	entities := make([]string, 0, len(pq.Entities))
	for _, e := range pq.Entities {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if _, ok := markers[e]; ok {
			continue
		}
		entities = append(entities, e)
	}

	var missing []string
	for _, e := range entities {
		if covered(e) || containedInLonger(e, entities) {
			continue
		}
		missing = append(missing, e)
	}
	return missing
}

func containedInLonger(e string, all []string) bool {
	for _, other := range all {
		if len(other) > len(e) && strings.Contains(other, e) {
			return true
		}
	}
	return false
}

// Assemble 调用合成器生成答案，失败时使用本地兜底答案
func (a *ResponseAssembler) Assemble(ctx context.Context, pq *rag.ProcessedQuery, docs []rag.PageContent) ResultEnvelope {
	sc := a.BuildContext(pq, docs)

	answer, outcome := a.synthesize(ctx, sc)
	if outcome != SynthesisSuccess {
		answer = a.Fallback(sc)
	}

	env := newEnvelope(a.envelopeID(ctx), pq.OriginalQuery, a.now())
	env.Found = len(docs) > 0
	env.Complexity = pq.Complexity
	for _, d := range docs {
		env.Sources = append(env.Sources, d.URL)
	}
	env.Answer = answer
	return env
}

func (a *ResponseAssembler) synthesize(ctx context.Context, sc SynthesisContext) (string, string) {
	if a.synth == nil {
		a.metrics.RecordSynthesis(SynthesisUnavailable, 0)
		return "", SynthesisUnavailable
	}
	start := time.Now()
	answer, err := a.synth.Synthesize(ctx, sc)
	duration := time.Since(start)
	if err == nil && strings.TrimSpace(answer) == "" {
		err = fmt.Errorf("synthesizer returned empty answer")
	}
	if err != nil {
		a.logger.Warn("synthesis failed",
			zap.String("complexity", string(sc.Complexity)),
			zap.Duration("duration", duration),
			zap.Error(err))
		a.metrics.RecordSynthesis(SynthesisFallback, duration)
		return "", SynthesisFallback
	}
	a.metrics.RecordSynthesis(SynthesisSuccess, duration)
	return answer, SynthesisSuccess
}

// Fallback 生成确定性的本地答案
func (a *ResponseAssembler) Fallback(sc SynthesisContext) string {
	msg := a.profile.Messages
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", msg.Render(msg.AnswerTitle, sc.Query, ""))
	if len(sc.Sources) > 0 {
		fmt.Fprintf(&b, "%s\n\n", msg.Render(msg.FallbackIntro, sc.Query, ""))
	}

	for _, s := range sc.Sources {
		fmt.Fprintf(&b, "## %s\n", s.Title)
		excerpt := rag.TruncateRunes(s.Excerpt, a.config.FallbackExcerptLength)
		if excerpt != s.Excerpt {
			excerpt += "..."
		}
		fmt.Fprintf(&b, "%s\n\n**%s:** %s\n\n", excerpt, msg.SourceLabel, s.URL)
	}

	if len(sc.MissingEntities) > 0 {
		fmt.Fprintf(&b, "## %s\n\n", msg.MissingHeading)
		for _, e := range sc.MissingEntities {
			fmt.Fprintf(&b, "- %s\n", msg.Render(msg.NotAvailable, sc.Query, e))
		}
		b.WriteString("\n")
	}

	if len(sc.Sources) == 0 {
		fmt.Fprintf(&b, "**%s**\n\n", msg.Render(msg.NoDocuments, sc.Query, ""))
	}

	fmt.Fprintf(&b, "## %s\n", msg.SourcesHeading)
	for _, s := range sc.Sources {
		fmt.Fprintf(&b, "- [%s](%s)\n", s.Title, s.URL)
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// NotFound 生成检索零结果时的信封
func (a *ResponseAssembler) NotFound(ctx context.Context, query string, complexity rag.QueryComplexity) ResultEnvelope {
	msg := a.profile.Messages
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n%s\n\n", msg.NotFoundTitle, msg.Render(msg.NotFound, query, ""))
	writeBullets(&b, msg.CausesHeading, msg.NotFoundCauses, msg, query)
	writeBullets(&b, msg.SuggestHeading, msg.Suggestions, msg, query)

	env := newEnvelope(a.envelopeID(ctx), query, a.now())
	env.Complexity = complexity
	env.Answer = strings.TrimRight(b.String(), "\n") + "\n"
	return env
}

// ErrorEnvelope 生成处理失败时的信封
func (a *ResponseAssembler) ErrorEnvelope(ctx context.Context, query string, err error) ResultEnvelope {
	msg := a.profile.Messages
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n%s\n\n", msg.ErrorTitle, msg.Render(msg.ErrorBody, query, ""))
	if err != nil {
		fmt.Fprintf(&b, "**%s:** %s\n\n", msg.ErrorLabel, err.Error())
	}
	writeBullets(&b, msg.TroubleHeading, msg.Troubleshooting, msg, query)
	if msg.Contact != "" {
		fmt.Fprintf(&b, "%s\n", msg.Render(msg.Contact, query, ""))
	}

	env := newEnvelope(a.envelopeID(ctx), query, a.now())
	env.Answer = strings.TrimRight(b.String(), "\n") + "\n"
	return env
}

func writeBullets(b *strings.Builder, heading string, items []string, msg rag.ProfileMessages, query string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "## %s\n", heading)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", msg.Render(it, query, ""))
	}
	b.WriteString("\n")
}

func (a *ResponseAssembler) envelopeID(ctx context.Context) string {
	if id, ok := ctxkeys.QueryID(ctx); ok {
		return id
	}
	return uuid.NewString()
}
