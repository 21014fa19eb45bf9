// Package config 提供 wikiagent 的配置管理功能。
//
// 配置按「默认值 → YAML 文件 → WIKIAGENT_* 环境变量」的顺序叠加，
// 覆盖 HTTP 服务、内容站点、LLM、评估、日志与遥测。
// 未显式配置 LLM 凭证时回退读取 GOOGLE_API_KEY。
package config
