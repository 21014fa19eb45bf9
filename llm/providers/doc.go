// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

包 providers 提供跨模型服务商的通用适配与辅助能力，是具体 Provider
实现（目前为 gemini 子包）的公共基础层。

# 核心类型

  - BaseProviderConfig — 所有 Provider 共享的基础配置（APIKey、BaseURL、Model、Timeout）
  - GeminiConfig — Gemini 配置与默认生成参数（temperature 0.1、topP 0.8、topK 40）

# 核心函数

  - MapHTTPError — 将 HTTP 状态码映射为语义化的 llm.Error（含 Retryable 标记）
  - ReadErrorMessage — 解析上游错误响应体，失败时回退为原始文本
  - ChooseModel — 请求模型 > 配置模型 > 内置默认模型
*/
package providers
