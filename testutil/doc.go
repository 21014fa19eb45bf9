// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 wikiagent 测试的共享工具和辅助函数。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 断言工具: AssertMessagesEqual / AssertJSONEqual /
    AssertContainsAll / AssertInOrder
  - 数据工具: MustJSON

# 子包

  - testutil/mocks: MockProvider（LLM Provider），支持 Builder 模式、
    按提示词路由响应与错误注入
  - testutil/fixtures: 基于 httptest 的模拟 wiki 站点（搜索端点与
    Gunung Agung / Gunung Tambora / Provinsi Bali 三个页面）

# 使用示例

	site := fixtures.NewWikiSite(t)
	provider := mocks.NewMockProvider().WithResponse("Gunung Agung terletak di Bali.")
	ctx := testutil.TestContext(t)
*/
package testutil
