package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/wikiagent/internal/tlsutil"
	"github.com/BaSui01/wikiagent/types"
)

const (
	// DefaultUserAgent 标识本客户端的 User-Agent.
	DefaultUserAgent = "Ambisius-Wiki-Agent/1.0"
	// DefaultAccept 是请求 HTML 页面时使用的 Accept 头.
	DefaultAccept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
)

// SiteClientConfig 配置访问内容站点的 HTTP 客户端.
type SiteClientConfig struct {
	UserAgent         string        `json:"user_agent"`
	Timeout           time.Duration `json:"timeout"`             // per GET request
	MaxBodyBytes      int64         `json:"max_body_bytes"`      // 0 = unlimited
	RequestsPerSecond float64       `json:"requests_per_second"` // 0 = unlimited
	MaxRedirects      int           `json:"max_redirects"`
}

// DefaultSiteClientConfig 返回合理的默认值 。
func DefaultSiteClientConfig() SiteClientConfig {
	return SiteClientConfig{
		UserAgent:         DefaultUserAgent,
		Timeout:           10 * time.Second,
		MaxBodyBytes:      5 << 20,
		RequestsPerSecond: 0,
		MaxRedirects:      5,
	}
}

// SiteClient 是检索引擎和内容提取器共享的站点 HTTP 客户端。
// 每次调用都有独立的超时，可选的限速器对所有调用生效。
type SiteClient struct {
	config  SiteClientConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewSiteClient 创建站点客户端.
func NewSiteClient(config SiteClientConfig, logger *zap.Logger) *SiteClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.Timeout <= 0 {
		config.Timeout = 10 * time.Second
	}

	sc := &SiteClient{
		config: config,
		// 超时由每次调用的 context 控制
		client: tlsutil.SecureHTTPClientWithRedirects(0, config.MaxRedirects),
		logger: logger.With(zap.String("component", "site_client")),
	}
	if config.RequestsPerSecond > 0 {
		sc.limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return sc
}

// Get 以默认超时获取页面，非 2xx 状态返回 SITE_BAD_STATUS 错误.
func (c *SiteClient) Get(ctx context.Context, pageURL string) ([]byte, error) {
	return c.GetWithTimeout(ctx, pageURL, c.config.Timeout)
}

// GetWithTimeout 以指定超时获取页面.
func (c *SiteClient) GetWithTimeout(ctx context.Context, pageURL string, timeout time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodGet, pageURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewError(types.ErrSiteBadStatus, fmt.Sprintf("unexpected status %d", resp.StatusCode)).
			WithURL(pageURL).
			WithHTTPStatus(resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if c.config.MaxBodyBytes > 0 {
		body = io.LimitReader(resp.Body, c.config.MaxBodyBytes)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, c.wrapTransportError(ctx, pageURL, fmt.Errorf("failed to read response body: %w", err))
	}
	return data, nil
}

// Head 以指定超时探测页面是否存在，返回 HTTP 状态码.
func (c *SiteClient) Head(ctx context.Context, pageURL string, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	resp, err := c.do(ctx, http.MethodHead, pageURL)
	if err != nil {
		return 0, err
	}
	resp.Body.Close()
	return resp.StatusCode, nil
}

func (c *SiteClient) do(ctx context.Context, method, pageURL string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, c.wrapTransportError(ctx, pageURL, fmt.Errorf("rate limiter: %w", err))
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, pageURL, nil)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidQuery, "failed to create request").WithURL(pageURL).WithCause(err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", DefaultAccept)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, c.wrapTransportError(ctx, pageURL, err)
	}
	return resp, nil
}

func (c *SiteClient) wrapTransportError(ctx context.Context, pageURL string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return types.NewError(types.ErrTimeout, "request timed out").WithURL(pageURL).WithCause(err).WithRetryable(true)
	}
	return types.NewError(types.ErrSiteUnavailable, "request failed").WithURL(pageURL).WithCause(err).WithRetryable(true)
}
