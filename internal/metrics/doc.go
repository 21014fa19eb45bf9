// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、LLM、查询编排、检索级联与答案合成。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。

# 核心类型

  - Collector：指标收集器，同时实现 agent.MetricsRecorder 与
    observability.Recorder，可直接注入 WikiAgent 与 LLM Provider 包装器。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - LLM 指标：请求总数、请求耗时、Token 用量（prompt/completion）。
  - 查询指标：按复杂度与是否找到分组的查询数与端到端耗时。
  - 检索指标：级联各阶段的命中/未命中与耗时、页面抓取结果、
    分类来源、多跳追加页面数。
  - 合成指标：success / fallback / unavailable 三种结果的次数与耗时。
*/
package metrics
