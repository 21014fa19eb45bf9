// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供统一的大语言模型接入层：Provider 抽象、请求/响应模型与错误语义。

# 概述

上层只依赖 [Provider] 接口完成同步补全，模型服务商在接口、鉴权与
错误语义上的差异由 providers 子包屏蔽。wikiagent 用它完成两件事：

  - 查询分类：把用户问题交给模型，要求返回 JSON 结构的意图与复杂度。
  - 答案合成：把检索到的页面摘录交给模型，生成 markdown 答案。

两条路径都允许失败：分类失败回退到启发式规则，合成失败回退到本地模板。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name
  - [Error]：统一错误类型，携带 [ErrorCode]、HTTP 状态与可重试标记
  - [FirstContent]：取首个候选的文本，空文本视为 [ErrEmptyResponse]
*/
package llm
