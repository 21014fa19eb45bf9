// =============================================================================
// 📦 wikiagent 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("WIKIAGENT").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"net/url"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// FallbackAPIKeyEnv 未配置 LLM 凭证时读取的环境变量
const FallbackAPIKeyEnv = "GOOGLE_API_KEY"

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 wikiagent 的完整配置结构
type Config struct {
	// Server HTTP 服务配置（serve 子命令）
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Site 内容站点与检索配置
	Site SiteConfig `yaml:"site" env:"SITE"`

	// LLM 大语言模型配置
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// Eval 评估配置（eval 子命令）
	Eval EvalConfig `yaml:"eval" env:"EVAL"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// Metrics 端口
	MetricsPort int `yaml:"metrics_port" env:"METRICS_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 单次查询超时
	QueryTimeout time.Duration `yaml:"query_timeout" env:"QUERY_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// 每秒请求数限制
	RateLimitRPS int `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	// 突发请求数
	RateLimitBurst int `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	// TLS 证书与私钥，两者都设置时以 HTTPS 启动
	TLSCertFile string `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// TLSEnabled 证书与私钥都已配置
func (c ServerConfig) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// SiteConfig 内容站点配置。BaseURL/SearchEndpoint 非空时覆盖站点数据表中的值。
type SiteConfig struct {
	// 站点源站，例如 https://wiki.ambisius.com
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 搜索端点
	SearchEndpoint string `yaml:"search_endpoint" env:"SEARCH_ENDPOINT"`
	// 自定义站点数据表（YAML），为空时按主机名使用内置数据表
	ProfilePath string `yaml:"profile_path" env:"PROFILE_PATH"`
	// 搜索与页面请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 直接 URL 探测超时
	ProbeTimeout time.Duration `yaml:"probe_timeout" env:"PROBE_TIMEOUT"`
	// 最大结果数
	MaxResults int `yaml:"max_results" env:"MAX_RESULTS"`
	// 搜索摘要长度
	SnippetLength int `yaml:"snippet_length" env:"SNIPPET_LENGTH"`
	// 页面正文上限（字符）
	MaxContentLength int `yaml:"max_content_length" env:"MAX_CONTENT_LENGTH"`
	// 合成上下文中每页摘录上限
	ContextExcerptLength int `yaml:"context_excerpt_length" env:"CONTEXT_EXCERPT_LENGTH"`
	// 本地兜底答案中每页摘录上限
	FallbackExcerptLength int `yaml:"fallback_excerpt_length" env:"FALLBACK_EXCERPT_LENGTH"`
	// 礼貌限速，0 表示不限
	RequestsPerSecond float64 `yaml:"requests_per_second" env:"REQUESTS_PER_SECOND"`
	// User-Agent
	UserAgent string `yaml:"user_agent" env:"USER_AGENT"`
	// 是否启用直接 URL 探测
	EnableDirectURLs bool `yaml:"enable_direct_urls" env:"ENABLE_DIRECT_URLS"`
	// 是否启用查询变体重试
	EnableVariations bool `yaml:"enable_variations" env:"ENABLE_VARIATIONS"`
	// 是否启用多跳检索
	EnableMultiHop bool `yaml:"enable_multi_hop" env:"ENABLE_MULTI_HOP"`
}

// LLMConfig LLM 配置
type LLMConfig struct {
	// Provider 名称
	Provider string `yaml:"provider" env:"PROVIDER"`
	// API Key，为空时读取 GOOGLE_API_KEY
	APIKey string `yaml:"api_key" env:"API_KEY"`
	// 基础 URL（可选）
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 答案合成模型
	Model string `yaml:"model" env:"MODEL"`
	// 查询分类模型，为空时与 Model 相同
	ClassifierModel string `yaml:"classifier_model" env:"CLASSIFIER_MODEL"`
	// 是否使用模型分类
	UseModelClassifier bool `yaml:"use_model_classifier" env:"USE_MODEL_CLASSIFIER"`
	// 合成请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 分类请求超时
	ClassifierTimeout time.Duration `yaml:"classifier_timeout" env:"CLASSIFIER_TIMEOUT"`
	// 采样参数
	Temperature float64 `yaml:"temperature" env:"TEMPERATURE"`
	TopP        float64 `yaml:"top_p" env:"TOP_P"`
	TopK        int     `yaml:"top_k" env:"TOP_K"`
	// 最大输出 Token 数
	MaxTokens int `yaml:"max_tokens" env:"MAX_TOKENS"`
}

// EvalConfig 评估配置
type EvalConfig struct {
	// 评估用例文件，为空时使用内置用例
	CasesPath string `yaml:"cases_path" env:"CASES_PATH"`
	// 用例之间的间隔
	Delay time.Duration `yaml:"delay" env:"DELAY"`
	// markdown 报告输出路径
	ReportPath string `yaml:"report_path" env:"REPORT_PATH"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "WIKIAGENT",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}
	if cfg.LLM.APIKey == "" {
		cfg.LLM.APIKey = os.Getenv(FallbackAPIKeyEnv)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	// 验证服务器配置
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Server.MetricsPort < 0 || c.Server.MetricsPort > 65535 {
		errs = append(errs, "invalid metrics port")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "tls_cert_file and tls_key_file must be set together")
	}

	// 验证站点配置
	if c.Site.BaseURL != "" {
		if u, err := url.Parse(c.Site.BaseURL); err != nil || u.Host == "" {
			errs = append(errs, fmt.Sprintf("invalid site base_url %q", c.Site.BaseURL))
		}
	}
	if c.Site.MaxResults <= 0 {
		errs = append(errs, "max_results must be positive")
	}
	if c.Site.SnippetLength <= 0 {
		errs = append(errs, "snippet_length must be positive")
	}
	if c.Site.MaxContentLength <= 0 || c.Site.ContextExcerptLength <= 0 || c.Site.FallbackExcerptLength <= 0 {
		errs = append(errs, "content lengths must be positive")
	}
	if c.Site.RequestsPerSecond < 0 {
		errs = append(errs, "requests_per_second must not be negative")
	}

	// 验证 LLM 配置
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		errs = append(errs, "temperature must be between 0 and 2")
	}
	if c.LLM.TopP < 0 || c.LLM.TopP > 1 {
		errs = append(errs, "top_p must be between 0 and 1")
	}

	// 验证日志配置
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level %q", c.Log.Level))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "sample_rate must be between 0 and 1")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
