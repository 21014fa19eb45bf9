// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。wikiagent 的 serve 命令用它同时运行
查询 API 与 Prometheus 指标两个服务器。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/Errors/Addr 等生命周期方法。
  - Config：监听地址、读写与空闲超时、最大请求头、关闭超时、
    可选 TLS 证书。ConfigFromServer 由 config.ServerConfig 派生。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务；配置证书时使用
    tlsutil 的加固 TLS 配置启动 HTTPS。
  - 优雅关闭：Shutdown 在配置的超时内排空请求，重复调用无副作用。
  - 统一等待：WaitForShutdown 监听 ctx、SIGINT/SIGTERM 与任一服务器的
    异常退出，然后关闭全部服务器并汇总错误。
*/
package server
