package agent

import (
	"time"

	"github.com/BaSui01/wikiagent/rag"
)

// MetricsRecorder 汇总检索与编排两层的指标，internal/metrics.Collector 实现了该接口
type MetricsRecorder interface {
	rag.MetricsRecorder
	RecordQuery(complexity string, found bool, duration time.Duration)
	RecordSynthesis(outcome string, duration time.Duration)
}

type nopMetrics struct{}

func (nopMetrics) RecordSearchStage(string, int, time.Duration) {}
func (nopMetrics) RecordPageFetch(string, time.Duration)        {}
func (nopMetrics) RecordClassification(string, string)          {}
func (nopMetrics) RecordMultiHop(string, int)                   {}
func (nopMetrics) RecordQuery(string, bool, time.Duration)      {}
func (nopMetrics) RecordSynthesis(string, time.Duration)        {}

func metricsOrNop(m MetricsRecorder) MetricsRecorder {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
