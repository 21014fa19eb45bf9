package rag

import (
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
)

// tracer 为检索管线各阶段创建 span。未配置全局 TracerProvider 时为 no-op。
var tracer = otel.Tracer("github.com/BaSui01/wikiagent/rag")

// 搜索阶段名称，用于日志、指标和 span 属性.
const (
	StageEndpoint  = "endpoint"
	StageDirectURL = "direct_url"
	StageVariation = "variation"
)

// MetricsRecorder 接收检索管线的指标事件。
// internal/metrics.Collector 实现了该接口。
type MetricsRecorder interface {
	RecordSearchStage(stage string, results int, duration time.Duration)
	RecordPageFetch(status string, duration time.Duration)
	RecordClassification(source string, complexity string)
	RecordMultiHop(relation string, added int)
}

type nopRecorder struct{}

func (nopRecorder) RecordSearchStage(string, int, time.Duration) {}
func (nopRecorder) RecordPageFetch(string, time.Duration)        {}
func (nopRecorder) RecordClassification(string, string)         {}
func (nopRecorder) RecordMultiHop(string, int)                   {}

func recorderOrNop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return nopRecorder{}
	}
	return m
}

// ============================================================================
// 帮助者
// ============================================================================

// truncateRunes 按字符（rune）硬截断，不追加省略号.
func truncateRunes(s string, maxLen int) string {
	if maxLen <= 0 || utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// truncateStr 截断用于日志的字符串.
func truncateStr(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return truncateRunes(s, maxLen) + "..."
}

// normalizeText 逐行去除首尾空白，丢弃空行，用换行连接.
func normalizeText(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}

// collapseSpace 将所有空白压缩为单个空格.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TruncateRunes 是 truncateRunes 的导出版本，供上层组装合成上下文使用.
func TruncateRunes(s string, maxLen int) string { return truncateRunes(s, maxLen) }
