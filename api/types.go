package api

import (
	"strings"
	"unicode/utf8"

	"github.com/BaSui01/wikiagent/agent"
	"github.com/BaSui01/wikiagent/types"
)

// MaxQueryLength 单次查询允许的最大字符数
const MaxQueryLength = 1000

// =============================================================================
// 查询类型
// =============================================================================

// QueryRequest 表示一次 wiki 查询请求。
// @Description 查询请求结构
type QueryRequest struct {
	// 用户的自然语言问题
	Query string `json:"query" example:"Gunung Agung lokasinya ada dimana" binding:"required"`
	// 覆盖默认合成模型（可选）
	Model string `json:"model,omitempty" example:"gemini-2.0-flash"`
}

// Validate 校验请求字段
func (r *QueryRequest) Validate() *types.Error {
	q := strings.TrimSpace(r.Query)
	if q == "" {
		return types.NewError(types.ErrInvalidQuery, "query must not be empty")
	}
	if utf8.RuneCountInString(q) > MaxQueryLength {
		return types.NewError(types.ErrInvalidQuery, "query is too long")
	}
	return nil
}

// QueryResponse 即流水线返回的结果信封
// @Description 查询结果信封
type QueryResponse = agent.ResultEnvelope
