package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/kaptinlin/jsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/types"
)

// QueryLLMProvider 基于 LLM 的查询处理接口.
type QueryLLMProvider interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClassifierConfig 配置查询分类器.
type ClassifierConfig struct {
	UseModel bool          `json:"use_model"` // false = heuristic only
	Timeout  time.Duration `json:"timeout"`   // model call timeout
}

// DefaultClassifierConfig 返回合理的默认值 。
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		UseModel: true,
		Timeout:  30 * time.Second,
	}
}

// classificationSchemaJSON 约束模型返回的分析对象.
const classificationSchemaJSON = `{
  "type": "object",
  "required": ["intent", "entities", "complexity", "requiresMultiplePages"],
  "properties": {
    "originalQuery": {"type": "string"},
    "intent": {"type": "string"},
    "entities": {"type": "array", "items": {"type": "string"}},
    "complexity": {"enum": ["simple", "comparison", "report", "complex_analysis"]},
    "requiresMultiplePages": {"type": "boolean"}
  }
}`

var classificationSchema = mustCompileSchema(classificationSchemaJSON)

func mustCompileSchema(src string) *jsonschema.Schema {
	schema, err := jsonschema.NewCompiler().Compile([]byte(src))
	if err != nil {
		panic(fmt.Sprintf("rag: compile classification schema: %v", err))
	}
	return schema
}

// QueryClassifier 判断查询的意图、实体和复杂度。
// 优先调用模型；任何失败（无模型、调用错误、无 JSON、校验失败、panic）都回退到确定性启发式规则。
type QueryClassifier struct {
	config  ClassifierConfig
	profile *SiteProfile
	llm     QueryLLMProvider
	metrics MetricsRecorder
	logger  *zap.Logger
}

// NewQueryClassifier 创建查询分类器。llm 为 nil 时只使用启发式规则。
func NewQueryClassifier(
	config ClassifierConfig,
	profile *SiteProfile,
	llm QueryLLMProvider,
	metrics MetricsRecorder,
	logger *zap.Logger,
) *QueryClassifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &QueryClassifier{
		config:  config,
		profile: profile,
		llm:     llm,
		metrics: recorderOrNop(metrics),
		logger:  logger.With(zap.String("component", "query_classifier")),
	}
}

// Classify 分类查询。从不失败，总是返回四种复杂度之一。
func (c *QueryClassifier) Classify(ctx context.Context, query string) *ProcessedQuery {
	ctx, span := tracer.Start(ctx, "rag.classify")
	defer span.End()

	var pq *ProcessedQuery
	if c.llm != nil && c.config.UseModel {
		var err error
		pq, err = c.classifyWithModel(ctx, query)
		if err != nil {
			c.logger.Warn("model classification failed, using heuristic", zap.Error(err))
			pq = nil
		}
	}
	if pq == nil {
		pq = ClassifyHeuristic(c.profile, query)
	}

	c.metrics.RecordClassification(string(pq.Source), string(pq.Complexity))
	span.SetAttributes(
		attribute.String("complexity", string(pq.Complexity)),
		attribute.String("source", string(pq.Source)))
	c.logger.Info("query classified",
		zap.String("query", truncateStr(query, 80)),
		zap.String("complexity", string(pq.Complexity)),
		zap.String("source", string(pq.Source)),
		zap.Strings("entities", pq.Entities))
	return pq
}

func (c *QueryClassifier) classifyWithModel(ctx context.Context, query string) (pq *ProcessedQuery, err error) {
	defer func() {
		if r := recover(); r != nil {
			pq, err = nil, types.NewError(types.ErrClassificationFailed, fmt.Sprintf("classifier panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	raw, err := c.llm.Complete(ctx, classificationPrompt(query))
	if err != nil {
		return nil, types.NewError(types.ErrClassificationFailed, "model call failed").WithCause(err)
	}
	return ParseClassification(query, raw)
}

func classificationPrompt(query string) string {
	return fmt.Sprintf(`Analyze the following question about a wiki and respond with JSON only.

Question: %s

Respond in JSON format:
{
  "originalQuery": "the question",
  "intent": "what the user wants to know",
  "entities": ["entity names mentioned in the question"],
  "complexity": "simple | comparison | report | complex_analysis",
  "requiresMultiplePages": true
}

Guidelines:
- simple: one fact about one entity
- comparison: differences or similarities between entities
- report: a structured report or history about one or more entities
- complex_analysis: needs a fact found on one page to look up another page`, query)
}

// ParseClassification 从模型输出中提取第一个完整的 JSON 对象，按 schema 校验后解码.
func ParseClassification(query, raw string) (*ProcessedQuery, error) {
	obj, ok := ExtractJSONObject(raw)
	if !ok {
		return nil, types.NewError(types.ErrClassificationFailed, "no JSON object in model output")
	}

	result := classificationSchema.ValidateJSON([]byte(obj))
	if !result.IsValid() {
		return nil, types.NewError(types.ErrClassificationFailed, fmt.Sprintf("schema validation failed: %v", result.Errors))
	}

	var payload struct {
		Intent                string   `json:"intent"`
		Entities              []string `json:"entities"`
		Complexity            string   `json:"complexity"`
		RequiresMultiplePages bool     `json:"requiresMultiplePages"`
	}
	if err := json.Unmarshal([]byte(obj), &payload); err != nil {
		return nil, types.NewError(types.ErrClassificationFailed, "invalid JSON").WithCause(err)
	}

	complexity := QueryComplexity(payload.Complexity)
	if !complexity.Valid() {
		return nil, types.NewError(types.ErrClassificationFailed, fmt.Sprintf("unknown complexity %q", payload.Complexity))
	}

	return &ProcessedQuery{
		OriginalQuery:         query,
		Intent:                strings.TrimSpace(payload.Intent),
		Entities:              dedupeStrings(payload.Entities),
		Complexity:            complexity,
		RequiresMultiplePages: payload.RequiresMultiplePages,
		Source:                SourceModel,
	}, nil
}

// ExtractJSONObject 返回 s 中从第一个 '{' 开始的第一个括号平衡的子串。
// 字符串字面量中的括号不计入深度。
func ExtractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

// ============================================================================
// 启发式规则
// ============================================================================

// ClassifyHeuristic 是查询的纯函数：同一数据表和查询总是得到相同结果。
// 规则按顺序匹配，第一个命中者胜出：对比 → 报告 → 关系推理 → 简单。
func ClassifyHeuristic(profile *SiteProfile, query string) *ProcessedQuery {
	lower := strings.ToLower(query)
	v := profile.Vocabulary

	complexity := ComplexitySimple
	switch {
	case containsAny(lower, v.ComparisonMarkers) ||
		(containsWord(lower, v.Conjunctions) && containsAny(lower, v.DomainKeywords)):
		complexity = ComplexityComparison
	case containsAny(lower, v.ReportMarkers):
		complexity = ComplexityReport
	case containsAny(lower, profile.RelationMarkers()) && containsAny(lower, v.LocationMarkers):
		complexity = ComplexityComplexAnalysis
	}

	var entities []string
	for _, e := range v.Entities {
		if e != "" && strings.Contains(lower, strings.ToLower(e)) {
			entities = append(entities, e)
		}
	}
	entities = dedupeStrings(entities)

	intent := v.GenericIntent
	if len(entities) > 0 {
		intent = strings.ReplaceAll(v.IntentTemplate, "{entities}", strings.Join(entities, ", "))
	}

	return &ProcessedQuery{
		OriginalQuery:         query,
		Intent:                intent,
		Entities:              entities,
		Complexity:            complexity,
		RequiresMultiplePages: complexity != ComplexitySimple,
		Source:                SourceHeuristic,
	}
}

// containsAny 判断 s 是否包含任一标记（子串匹配）.
func containsAny(s string, markers []string) bool {
	_, ok := firstContained(s, markers)
	return ok
}

// containsWord 判断 s 是否包含任一整词.
func containsWord(s string, words []string) bool {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, t := range tokens {
		for _, w := range words {
			if t == strings.ToLower(w) {
				return true
			}
		}
	}
	return false
}

// dedupeStrings 去掉空串和重复项，保持首次出现的顺序.
func dedupeStrings(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
