package providers

import "time"

// BaseProviderConfig 所有 Provider 共享的基础配置字段。
// 通过嵌入此结构体，各 Provider 的 Config 自动获得 APIKey、BaseURL、Model、Timeout 四个字段。
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// GeminiConfig Gemini Provider 配置
// 采样参数在请求未指定时作为默认值使用。
type GeminiConfig struct {
	BaseProviderConfig `yaml:",inline"`
	Temperature        float32 `json:"temperature,omitempty" yaml:"temperature,omitempty"`
	TopP               float32 `json:"top_p,omitempty" yaml:"top_p,omitempty"`
	TopK               int     `json:"top_k,omitempty" yaml:"top_k,omitempty"`
	MaxOutputTokens    int     `json:"max_output_tokens,omitempty" yaml:"max_output_tokens,omitempty"`
}

// DefaultGeminiConfig 返回答案合成使用的默认生成参数
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		BaseProviderConfig: BaseProviderConfig{
			BaseURL: "https://generativelanguage.googleapis.com",
			Model:   "gemini-2.0-flash",
			Timeout: 60 * time.Second,
		},
		Temperature:     0.1,
		TopP:            0.8,
		TopK:            40,
		MaxOutputTokens: 8192,
	}
}
