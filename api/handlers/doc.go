// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 wikiagent HTTP API 的请求处理器实现。

# 核心类型

  - QueryHandler     — POST /api/v1/query，运行检索流水线并返回结果信封
  - HealthHandler    — /health（存活）、/ready（依赖检查）、/version
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp + request_id）
  - ErrorInfo        — 结构化错误信息，含 code、message、retryable 标记
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码与响应大小
  - HealthCheck      — 可插拔健康检查接口；NewSiteHealthCheck 探测 wiki 站点

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON
  - 请求验证：DecodeJSONBody（1 MB 上限 + 拒绝未知字段）、ValidateContentType
  - types.ErrorCode → HTTP 状态码映射
  - 未找到内容不是错误：found=false 的信封同样以 200 返回
*/
package handlers
