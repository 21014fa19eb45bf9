package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/agent"
	"github.com/BaSui01/wikiagent/api"
	"github.com/BaSui01/wikiagent/internal/ctxkeys"
	"github.com/BaSui01/wikiagent/types"
)

// =============================================================================
// 🔎 查询 Handler
// =============================================================================

// QueryProcessor 处理单次查询，始终返回结果信封
type QueryProcessor interface {
	ProcessQuery(ctx context.Context, query string) agent.ResultEnvelope
}

// QueryHandler 处理 POST /api/v1/query
type QueryHandler struct {
	processor QueryProcessor
	timeout   time.Duration
	logger    *zap.Logger
}

// NewQueryHandler 创建查询处理器。timeout <= 0 表示只受请求上下文约束。
func NewQueryHandler(processor QueryProcessor, timeout time.Duration, logger *zap.Logger) *QueryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryHandler{
		processor: processor,
		timeout:   timeout,
		logger:    logger.With(zap.String("handler", "query")),
	}
}

// HandleQuery 运行检索流水线并返回结果信封。
// 未找到内容同样返回 200（found=false），只有请求本身无效时返回 4xx。
// @Summary 查询 wiki
// @Tags 查询
// @Accept json
// @Produce json
// @Param request body api.QueryRequest true "查询请求"
// @Success 200 {object} Response "结果信封"
// @Failure 400 {object} Response "请求无效"
// @Router /api/v1/query [post]
func (h *QueryHandler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		WriteError(w, r, types.NewError(types.ErrMethodNotAllowed, "only POST is supported"), h.logger)
		return
	}
	if !ValidateContentType(w, r, h.logger) {
		return
	}

	var req api.QueryRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if err := req.Validate(); err != nil {
		WriteError(w, r, err, h.logger)
		return
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}
	if req.Model != "" {
		ctx = ctxkeys.WithLLMModel(ctx, req.Model)
	}

	env := h.processor.ProcessQuery(ctx, req.Query)

	h.logger.Info("query answered",
		zap.String("query_id", env.ID),
		zap.Bool("found", env.Found),
		zap.Int("sources", len(env.Sources)),
	)
	WriteSuccess(w, r, env)
}
