// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 wikiagent 命令行与服务端程序入口。

# 概述

cmd/wikiagent 将 agent 检索流水线包装为可执行程序：ask 回答单个问题，
eval 运行评估用例集并生成 markdown 报告，serve 启动 HTTP 查询 API，
health 与 version 用于运维。程序支持 YAML 配置与 WIKIAGENT_ 环境变量、
结构化日志（zap）、Prometheus 指标以及可选的 OpenTelemetry 导出。

# 核心类型

  - Server      — 查询 API 与 Metrics 双端口服务器，基于 internal/server.Manager
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：ask、eval、serve、health、version
  - 中间件链：Recovery、RequestID、OTelTracing、SecurityHeaders、
    RequestLogger、MetricsMiddleware、RateLimiter（基于 IP）
  - 就绪检查：/ready 探测 wiki 站点首页
  - 优雅关闭：信号或任一服务器异常退出 → 关闭全部服务器 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
