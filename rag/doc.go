// Copyright 2025-2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by the project license.

/*
# 概述

Package rag 实现 wiki 问答的检索管线：查询分类、级联检索、页面内容提取
和条件多跳检索。管线面向单个内容站点，站点相关的一切（选择器、关键词直达表、
分类词表、关系规则、回退文案）都来自 SiteProfile 数据表。

# 核心接口/类型

  - SiteProfile — 站点数据表，内置 YAML 按主机名索引，也可从文件加载
  - SiteClient — 共享 HTTP 客户端（User-Agent、单次超时、可选限速）
  - QueryClassifier — 模型优先、启发式兜底的查询分类器
  - RetrievalEngine — 三阶段级联检索（搜索端点 / 直达 URL / 查询变体）
  - ContentExtractor — 标题、正文、章节提取
  - MultiHopAnalyzer — 由关系事实触发的第二轮检索
  - QueryLLMProvider — 基于 LLM 的查询处理接口
  - MetricsRecorder — 指标事件接口，由 internal/metrics 实现

# 主要能力

  - 选择器级联：第一个产出结果的选择器胜出；正文选择：最长文本胜出
  - 结果按 URL 去重并截断到 MaxResults，TotalResults 保留截断前数量
  - 分类结果的 RFC 8785 指纹，用于验证启发式规则的确定性
  - 所有阶段严格顺序执行，每个网络调用有独立超时
*/
package rag
