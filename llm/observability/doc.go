// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 observability 为 LLM 调用提供可观测性包装。

# 概述

[InstrumentedProvider] 包装任意 [llm.Provider]，每次 Completion 调用
都会开启一个 OpenTelemetry span（llm.completion），记录 Provider、模型
与 token 用量，并把结果交给 [Recorder]（通常是 internal/metrics.Collector）。

查询分类与答案合成共用同一个包装后的 Provider，因此两条路径的延迟与
错误率都能在 Prometheus 中按 provider/model/status 维度观察。
*/
package observability
