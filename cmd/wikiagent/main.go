// =============================================================================
// wikiagent 主入口
// =============================================================================
// 命令行与服务入口：单次问答、评估用例集、HTTP 查询服务、健康检查
//
// 使用方法:
//
//	wikiagent ask "Gunung Agung lokasinya ada dimana"   # 单次查询
//	wikiagent ask --json "Perbedaan gunung agung dan gunung tambora apa?"
//	wikiagent eval                                      # 运行内置 TC001-TC005
//	wikiagent eval --only TC001,TC005 --delay 0s        # 运行部分用例
//	wikiagent serve --config config.yaml                # 启动 HTTP 服务
//	wikiagent health --addr http://localhost:8080       # 健康检查
//	wikiagent version                                   # 显示版本信息
// =============================================================================

// @title wikiagent API
// @version 1.0.0
// @description Retrieval-augmented question answering over wiki.ambisius.com.

// @license.name MIT
// @license.url https://opensource.org/licenses/MIT

// @host localhost:8080
// @BasePath /
// @schemes http https

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/wikiagent/agent"
	"github.com/BaSui01/wikiagent/config"
	"github.com/BaSui01/wikiagent/internal/ctxkeys"
	"github.com/BaSui01/wikiagent/internal/metrics"
	"github.com/BaSui01/wikiagent/internal/telemetry"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// defaultQuery 未提供查询时 ask 使用的示例问题
const defaultQuery = "Gunung Agung lokasinya ada dimana"

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var code int
	switch os.Args[1] {
	case "ask":
		code = runAsk(os.Args[2:], os.Stdout)
	case "eval":
		code = runEval(os.Args[2:], os.Stdout)
	case "serve":
		code = runServe(os.Args[2:])
	case "version":
		printVersion()
	case "health":
		code = runHealthCheck(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		code = 1
	}
	os.Exit(code)
}

// =============================================================================
// 🧱 公共装配
// =============================================================================

// app 是各子命令共享的已装配组件
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	telemetry *telemetry.Providers
	collector *metrics.Collector
	agent     *agent.WikiAgent
}

// loadConfig 加载并校验配置
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	if path != "" {
		loader = loader.WithConfigPath(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// bootstrap 初始化日志、遥测、指标与 agent
func bootstrap(cfg *config.Config) (*app, error) {
	logger := initLogger(cfg.Log)

	providers, err := telemetry.Init(cfg.Telemetry, Version, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}

	collector := metrics.NewCollector("wikiagent", logger)

	wa, err := agent.NewFromConfig(cfg, collector, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build agent: %w", err)
	}

	return &app{
		cfg:       cfg,
		logger:    logger,
		telemetry: providers,
		collector: collector,
		agent:     wa,
	}, nil
}

// close 刷新遥测与日志
func (rt *app) close() {
	if rt.telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rt.telemetry.Shutdown(ctx); err != nil {
			rt.logger.Warn("telemetry shutdown error", zap.Error(err))
		}
	}
	_ = rt.logger.Sync()
}

// =============================================================================
// 💬 ask 命令
// =============================================================================

func runAsk(args []string, out io.Writer) int {
	fs := flag.NewFlagSet("ask", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	asJSON := fs.Bool("json", false, "Print the full result envelope as JSON")
	model := fs.String("model", "", "Override the synthesis model for this query")
	timeout := fs.Duration("timeout", 0, "Overall query timeout (0 uses server.query_timeout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		query = defaultQuery
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	rt, err := bootstrap(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.close()

	ctx := context.Background()
	d := *timeout
	if d <= 0 {
		d = cfg.Server.QueryTimeout
	}
	if d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	if *model != "" {
		ctx = ctxkeys.WithLLMModel(ctx, *model)
	}

	env := rt.agent.ProcessQuery(ctx, query)
	if err := printEnvelope(out, env, *asJSON); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}

// printEnvelope 输出查询结果：JSON 模式输出完整信封，否则输出答案与来源
func printEnvelope(out io.Writer, env agent.ResultEnvelope, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(env)
	}

	fmt.Fprintln(out, env.Answer)
	if len(env.Sources) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Sources:")
		for _, src := range env.Sources {
			fmt.Fprintf(out, "  - %s\n", src)
		}
	}
	return nil
}

// =============================================================================
// 🖥️ serve 命令
// =============================================================================

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	rt, err := bootstrap(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.close()

	rt.logger.Info("Starting wikiagent",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	srv := NewServer(rt)
	if err := srv.Start(); err != nil {
		rt.logger.Error("Failed to start server", zap.Error(err))
		return 1
	}

	if err := srv.WaitForShutdown(context.Background()); err != nil {
		rt.logger.Error("Server stopped with error", zap.Error(err))
		return 1
	}

	rt.logger.Info("wikiagent stopped")
	return 0
}

// =============================================================================
// 🏥 健康检查命令
// =============================================================================

func runHealthCheck(args []string) int {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	addr := fs.String("addr", "http://localhost:8080", "Server address")
	ready := fs.Bool("ready", false, "Check /ready (includes the wiki site probe) instead of /health")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	path := "/health"
	if *ready {
		path = "/ready"
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(strings.TrimRight(*addr, "/") + path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Health check failed: %v\n", err)
		return 1
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Fprintf(os.Stderr, "Health check failed: status %d\n", resp.StatusCode)
		return 1
	}

	fmt.Println("OK")
	return 0
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion() {
	fmt.Printf("wikiagent %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`wikiagent - question answering over wiki.ambisius.com

Usage:
  wikiagent <command> [options]

Commands:
  ask       Answer a single query and print the result
  eval      Run the evaluation suite and write a markdown report
  serve     Start the HTTP query API
  health    Check server health
  version   Show version information
  help      Show this help message

Options for 'ask':
  --config <path>     Path to configuration file (YAML)
  --json              Print the full result envelope as JSON
  --model <name>      Override the synthesis model
  --timeout <dur>     Overall query timeout

Options for 'eval':
  --config <path>     Path to configuration file (YAML)
  --cases <path>      Evaluation cases file (defaults to the built-in suite)
  --report <path>     Markdown report output path
  --delay <dur>       Delay between cases
  --only <ids>        Comma separated case IDs to run

Options for 'serve':
  --config <path>     Path to configuration file (YAML)

Environment:
  WIKIAGENT_LLM_API_KEY or GOOGLE_API_KEY enables model classification and synthesis.
  Without a key, queries use heuristic classification and extractive answers.

Examples:
  wikiagent ask "Gunung Agung lokasinya ada dimana"
  wikiagent eval --only TC003
  wikiagent serve --config /etc/wikiagent/config.yaml
  wikiagent health --addr http://localhost:8080 --ready`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	// 解析日志级别
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	// 配置编码器
	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:             zap.NewAtomicLevelAt(level),
		Development:       cfg.Format == "console",
		Encoding:          encoding,
		EncoderConfig:     encoderConfig,
		OutputPaths:       outputs,
		ErrorOutputPaths:  []string{"stderr"},
		DisableCaller:     !cfg.EnableCaller,
		DisableStacktrace: !cfg.EnableStacktrace,
	}

	var opts []zap.Option
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
