// Package factory 按名称创建 LLM Provider，供 agent 在装配时使用，
// 避免 llm 包直接依赖各 provider 子包。目前支持 "gemini"（默认）。
package factory
