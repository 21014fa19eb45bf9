// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 wikiagent 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 rag、agent、llm 和 cmd
提供统一的错误契约，以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误，含站点 URL、HTTP 状态码与 Retryable 标记

# 主要能力

  - 错误工具链：WithCause / WithURL / GetErrorCode / IsErrorCode / IsRetryable
*/
package types
