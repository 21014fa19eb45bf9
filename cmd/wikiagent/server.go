package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/agent"
	"github.com/BaSui01/wikiagent/api/handlers"
	"github.com/BaSui01/wikiagent/internal/server"
	"github.com/BaSui01/wikiagent/rag"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 同时运行查询 API 与 Prometheus 指标两个 HTTP 服务
type Server struct {
	app    *app
	logger *zap.Logger

	// 服务器管理器
	httpManager    *server.Manager
	metricsManager *server.Manager

	// Handlers
	healthHandler *handlers.HealthHandler
	queryHandler  *handlers.QueryHandler

	// Rate limiter 生命周期管理
	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(a *app) *Server {
	return &Server{
		app:    a,
		logger: a.logger,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	// 1. 初始化 Handlers
	if err := s.initHandlers(); err != nil {
		return fmt.Errorf("failed to init handlers: %w", err)
	}

	// 2. 启动 HTTP 服务器
	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	// 3. 启动 Metrics 服务器
	if err := s.startMetricsServer(); err != nil {
		_ = s.httpManager.Shutdown(context.Background())
		return fmt.Errorf("failed to start metrics server: %w", err)
	}

	s.logger.Info("All servers started",
		zap.String("http_addr", s.httpManager.Addr()),
		zap.String("metrics_addr", s.metricsManager.Addr()),
		zap.Bool("tls", s.app.cfg.Server.TLSEnabled()),
		zap.Bool("telemetry", s.app.telemetry != nil && s.app.telemetry.Enabled()),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// initHandlers 初始化所有 handlers
func (s *Server) initHandlers() error {
	cfg := s.app.cfg

	s.healthHandler = handlers.NewHealthHandler(s.logger)

	// 就绪检查：探测 wiki 站点首页
	profile, err := agent.ProfileFromConfig(cfg.Site)
	if err != nil {
		return err
	}
	probe := rag.NewSiteClient(rag.SiteClientConfig{
		UserAgent:    cfg.Site.UserAgent,
		Timeout:      cfg.Site.ProbeTimeout,
		MaxBodyBytes: rag.DefaultSiteClientConfig().MaxBodyBytes,
		MaxRedirects: rag.DefaultSiteClientConfig().MaxRedirects,
	}, s.logger)
	s.healthHandler.RegisterCheck(handlers.NewSiteHealthCheck(probe, profile.BaseURL, cfg.Site.ProbeTimeout))

	s.queryHandler = handlers.NewQueryHandler(s.app.agent, cfg.Server.QueryTimeout, s.logger)

	s.logger.Info("Handlers initialized", zap.String("site", profile.BaseURL))
	return nil
}

// routes 注册全部路由
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// 健康检查端点
	mux.HandleFunc("/health", s.healthHandler.HandleHealth)
	mux.HandleFunc("/healthz", s.healthHandler.HandleHealth)
	mux.HandleFunc("/ready", s.healthHandler.HandleReady)
	mux.HandleFunc("/readyz", s.healthHandler.HandleReady)

	// 版本信息端点
	mux.HandleFunc("/version", s.healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// 查询 API
	mux.HandleFunc("/api/v1/query", s.queryHandler.HandleQuery)

	return mux
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

// startHTTPServer 启动查询 API 服务器
func (s *Server) startHTTPServer() error {
	cfg := s.app.cfg.Server

	rateLimiterCtx, rateLimiterCancel := context.WithCancel(context.Background())
	s.rateLimiterCancel = rateLimiterCancel

	handler := Chain(s.routes(),
		Recovery(s.logger),
		RequestID(),
		OTelTracing(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		MetricsMiddleware(s.app.collector),
		RateLimiter(rateLimiterCtx, float64(cfg.RateLimitRPS), cfg.RateLimitBurst, s.logger),
	)

	s.httpManager = server.NewManager(handler, server.ConfigFromServer("http", cfg.HTTPPort, cfg), s.logger)

	// 启动服务器（非阻塞）
	if err := s.httpManager.Start(); err != nil {
		rateLimiterCancel()
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", cfg.HTTPPort))
	return nil
}

// =============================================================================
// 📊 Metrics 服务器
// =============================================================================

// startMetricsServer 启动 Metrics 服务器（始终为明文 HTTP）
func (s *Server) startMetricsServer() error {
	cfg := s.app.cfg.Server
	cfg.TLSCertFile, cfg.TLSKeyFile = "", ""

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	s.metricsManager = server.NewManager(mux, server.ConfigFromServer("metrics", cfg.MetricsPort, cfg), s.logger)

	// 启动服务器（非阻塞）
	if err := s.metricsManager.Start(); err != nil {
		return err
	}

	s.logger.Info("Metrics server started", zap.Int("port", cfg.MetricsPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待信号或任一服务器异常退出，然后优雅关闭
func (s *Server) WaitForShutdown(ctx context.Context) error {
	err := server.WaitForShutdown(ctx, s.logger, s.httpManager, s.metricsManager)

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	s.logger.Info("Graceful shutdown completed")
	return err
}
