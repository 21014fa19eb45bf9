// =============================================================================
// 📦 wikiagent 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Site:      DefaultSiteConfig(),
		LLM:       DefaultLLMConfig(),
		Eval:      DefaultEvalConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		MetricsPort:     9091,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    3 * time.Minute,
		QueryTimeout:    2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultSiteConfig 返回默认站点配置
// BaseURL 与 SearchEndpoint 留空，沿用内置站点数据表
func DefaultSiteConfig() SiteConfig {
	return SiteConfig{
		Timeout:               10 * time.Second,
		ProbeTimeout:          5 * time.Second,
		MaxResults:            5,
		SnippetLength:         200,
		MaxContentLength:      8000,
		ContextExcerptLength:  3000,
		FallbackExcerptLength: 800,
		RequestsPerSecond:     0,
		UserAgent:             "Ambisius-Wiki-Agent/1.0",
		EnableDirectURLs:      true,
		EnableVariations:      true,
		EnableMultiHop:        true,
	}
}

// DefaultLLMConfig 返回默认 LLM 配置
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		Provider:           "gemini",
		APIKey:             "",
		BaseURL:            "",
		Model:              "gemini-2.0-flash",
		ClassifierModel:    "",
		UseModelClassifier: true,
		Timeout:            60 * time.Second,
		ClassifierTimeout:  30 * time.Second,
		Temperature:        0.1,
		TopP:               0.8,
		TopK:               40,
		MaxTokens:          8192,
	}
}

// DefaultEvalConfig 返回默认评估配置
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		CasesPath:  "",
		Delay:      2 * time.Second,
		ReportPath: "EVALUATION_RESULTS.md",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "console",
		OutputPaths:      []string{"stderr"},
		EnableCaller:     false,
		EnableStacktrace: false,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "wikiagent",
		SampleRate:   0.1,
	}
}
