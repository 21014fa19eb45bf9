// Package evaluation runs the wiki agent against a suite of evaluation cases
// and produces a scored report.
package evaluation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/gowebpki/jcs"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/agent"
)

// NoteLevel 检查结论级别
type NoteLevel string

const (
	NotePass NoteLevel = "pass"
	NoteFail NoteLevel = "fail"
	NoteWarn NoteLevel = "warn"
)

// Note 单条检查结论
type Note struct {
	Level   NoteLevel `json:"level"`
	Message string    `json:"message"`
}

// EvalResult 单个用例的评估结果
type EvalResult struct {
	Case     EvalCase             `json:"case"`
	Response agent.ResultEnvelope `json:"response"`
	Success  bool                 `json:"success"`
	// Score 为通过的检查占比（0.0 - 1.0）
	Score    float64       `json:"score"`
	Notes    []Note        `json:"notes"`
	Duration time.Duration `json:"duration"`
}

// EvalReport 完整评估报告
type EvalReport struct {
	SuiteName string       `json:"suite_name"`
	Version   string       `json:"version"`
	Results   []EvalResult `json:"results"`
	Summary   EvalSummary  `json:"summary"`
	StartTime time.Time    `json:"start_time"`
	EndTime   time.Time    `json:"end_time"`
	// Digest 为 (query, found, sources) 的规范化 JSON 摘要，用于比较两次运行的检索结果
	Digest string `json:"digest"`
}

// EvalSummary 汇总统计
type EvalSummary struct {
	TotalCases    int                `json:"total_cases"`
	PassedCases   int                `json:"passed_cases"`
	FailedCases   int                `json:"failed_cases"`
	PassRate      float64            `json:"pass_rate"`
	AverageScore  float64            `json:"average_score"`
	ScoreStdDev   float64            `json:"score_std_dev"`
	TotalDuration time.Duration      `json:"total_duration"`
	AvgDuration   time.Duration      `json:"avg_duration"`
	Percentiles   map[string]float64 `json:"latency_percentiles_ms,omitempty"` // p50, p90, p99
}

// EvaluatorConfig 评估器配置
type EvaluatorConfig struct {
	// 用例之间的间隔，避免对站点与模型造成突发压力
	Delay time.Duration `json:"delay"`
	// 单个用例超时
	CaseTimeout   time.Duration `json:"case_timeout"`
	StopOnFailure bool          `json:"stop_on_failure"`
}

// DefaultEvaluatorConfig returns sensible defaults.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Delay:       2 * time.Second,
		CaseTimeout: 2 * time.Minute,
	}
}

// QueryRunner 执行一次查询
type QueryRunner interface {
	ProcessQuery(ctx context.Context, query string) agent.ResultEnvelope
}

// Evaluator 顺序执行用例集
type Evaluator struct {
	config EvaluatorConfig
	logger *zap.Logger
	// OnResult 在每个用例完成后调用（CLI 用于实时输出）
	OnResult func(index, total int, result EvalResult)
}

// NewEvaluator creates a new evaluator.
func NewEvaluator(config EvaluatorConfig, logger *zap.Logger) *Evaluator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Evaluator{
		config: config,
		logger: logger.With(zap.String("component", "evaluator")),
	}
}

// Evaluate 按顺序执行用例。ctx 取消时停止并返回已完成部分的报告与 ctx 错误。
func (e *Evaluator) Evaluate(ctx context.Context, suite *EvalSuite, runner QueryRunner) (*EvalReport, error) {
	report := &EvalReport{
		SuiteName: suite.Name,
		Version:   suite.Version,
		StartTime: time.Now(),
		Results:   make([]EvalResult, 0, len(suite.Cases)),
	}

	var runErr error
	for i, c := range suite.Cases {
		if i > 0 && e.config.Delay > 0 {
			if err := sleepCtx(ctx, e.config.Delay); err != nil {
				runErr = err
				break
			}
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		result := e.evaluateCase(ctx, c, runner)
		report.Results = append(report.Results, result)

		e.logger.Info("case evaluated",
			zap.String("case_id", c.ID),
			zap.Bool("success", result.Success),
			zap.Float64("score", result.Score),
			zap.Duration("duration", result.Duration))
		if e.OnResult != nil {
			e.OnResult(i, len(suite.Cases), result)
		}

		if !result.Success && e.config.StopOnFailure {
			break
		}
	}

	report.EndTime = time.Now()
	report.Summary = calculateSummary(report.Results)

	digest, err := resultsDigest(report.Results)
	if err != nil {
		e.logger.Warn("failed to compute report digest", zap.Error(err))
	}
	report.Digest = digest

	return report, runErr
}

func (e *Evaluator) evaluateCase(ctx context.Context, c EvalCase, runner QueryRunner) EvalResult {
	if e.config.CaseTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.CaseTimeout)
		defer cancel()
	}

	start := time.Now()
	env := runner.ProcessQuery(ctx, c.Query)
	duration := time.Since(start)

	notes, success, score := Score(c, env)
	return EvalResult{
		Case:     c,
		Response: env,
		Success:  success,
		Score:    score,
		Notes:    notes,
		Duration: duration,
	}
}

// Score 对一次响应执行用例的全部检查。
// 响应结构（query 与 answer 非空）与 ExpectedSources 中的每个页面始终作为必需检查；
// 来源按 URL 路径比较，部署在其他主机（如测试站点）上的运行同样适用。
func Score(c EvalCase, env agent.ResultEnvelope) (notes []Note, success bool, score float64) {
	success = true
	passed, total := 0, 0

	record := func(ok, required bool, message string) {
		total++
		switch {
		case ok:
			passed++
			notes = append(notes, Note{Level: NotePass, Message: message})
		case required:
			success = false
			notes = append(notes, Note{Level: NoteFail, Message: message})
		default:
			notes = append(notes, Note{Level: NoteWarn, Message: message})
		}
	}

	record(env.Query != "" && env.Answer != "", true, "response has query and answer")

	for _, expected := range c.ExpectedSources {
		record(hasSourcePath(env.Sources, expected), true, "retrieved expected source "+sourcePath(expected))
	}

	answer := strings.ToLower(env.Answer)
	for _, chk := range c.Checks {
		record(runCheck(chk, env, answer), chk.Required, chk.Message)
	}

	if total > 0 {
		score = float64(passed) / float64(total)
	}
	return notes, success, score
}

func runCheck(chk Check, env agent.ResultEnvelope, answer string) bool {
	switch chk.Kind {
	case CheckFound:
		return env.Found
	case CheckNotFound:
		return !env.Found
	case CheckHeading:
		return strings.Contains(env.Answer, "# ")
	case CheckAnswer:
		for _, v := range chk.All {
			if !strings.Contains(answer, strings.ToLower(v)) {
				return false
			}
		}
		return len(chk.Any) == 0 || containsAny(answer, chk.Any)
	case CheckSource:
		for _, src := range env.Sources {
			if containsAny(strings.ToLower(src), chk.Any) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// hasSourcePath 判断 sources 中是否有与 expected 路径相同的 URL
func hasSourcePath(sources []string, expected string) bool {
	want := sourcePath(expected)
	for _, src := range sources {
		if sourcePath(src) == want {
			return true
		}
	}
	return false
}

// sourcePath 返回 URL 的规范化路径；无法解析时按原文比较
func sourcePath(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimSpace(raw)
	}
	p := strings.TrimRight(u.Path, "/")
	if p == "" {
		p = "/"
	}
	return strings.ToLower(p)
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, strings.ToLower(n)) {
			return true
		}
	}
	return false
}

func calculateSummary(results []EvalResult) EvalSummary {
	summary := EvalSummary{
		TotalCases:  len(results),
		Percentiles: make(map[string]float64),
	}
	if len(results) == 0 {
		return summary
	}

	var totalScore float64
	scores := make([]float64, 0, len(results))
	latencies := make([]float64, 0, len(results))
	for _, r := range results {
		if r.Success {
			summary.PassedCases++
		} else {
			summary.FailedCases++
		}
		totalScore += r.Score
		scores = append(scores, r.Score)
		latencies = append(latencies, float64(r.Duration.Milliseconds()))
		summary.TotalDuration += r.Duration
	}

	summary.PassRate = float64(summary.PassedCases) / float64(summary.TotalCases)
	summary.AverageScore = totalScore / float64(summary.TotalCases)
	summary.ScoreStdDev = calculateStdDev(scores, summary.AverageScore)
	summary.AvgDuration = summary.TotalDuration / time.Duration(summary.TotalCases)

	sort.Float64s(latencies)
	summary.Percentiles["p50"] = calculatePercentile(latencies, 50)
	summary.Percentiles["p90"] = calculatePercentile(latencies, 90)
	summary.Percentiles["p99"] = calculatePercentile(latencies, 99)

	return summary
}

// resultsDigest 对检索结果做 RFC 8785 规范化后取 sha256
func resultsDigest(results []EvalResult) (string, error) {
	type entry struct {
		ID      string   `json:"id"`
		Query   string   `json:"query"`
		Found   bool     `json:"found"`
		Sources []string `json:"sources"`
	}
	entries := make([]entry, 0, len(results))
	for _, r := range results {
		entries = append(entries, entry{
			ID:      r.Case.ID,
			Query:   r.Response.Query,
			Found:   r.Response.Found,
			Sources: r.Response.Sources,
		})
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return "", fmt.Errorf("marshal results: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("canonicalize results: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

// calculatePercentile calculates the p-th percentile of sorted values.
func calculatePercentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	index := (p / 100) * float64(len(sorted)-1)
	lower := int(math.Floor(index))
	upper := int(math.Ceil(index))

	if lower == upper {
		return sorted[lower]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// calculateStdDev calculates standard deviation.
func calculateStdDev(values []float64, mean float64) float64 {
	if len(values) == 0 {
		return 0
	}

	var sumSquares float64
	for _, v := range values {
		diff := v - mean
		sumSquares += diff * diff
	}

	return math.Sqrt(sumSquares / float64(len(values)))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
