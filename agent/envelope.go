package agent

import (
	"time"

	"github.com/BaSui01/wikiagent/rag"
)

// FormatMarkdown 是所有答案的输出格式
const FormatMarkdown = "markdown"

// ResultEnvelope 是 ProcessQuery 的唯一返回值。
// Found 为 true 当且仅当至少检索到一个页面；Sources 按检索顺序排列。
type ResultEnvelope struct {
	ID         string              `json:"id"`
	Query      string              `json:"query"`
	Found      bool                `json:"found"`
	Sources    []string            `json:"sources"`
	Answer     string              `json:"answer"`
	Format     string              `json:"format"`
	Complexity rag.QueryComplexity `json:"complexity,omitempty"`
	Timestamp  string              `json:"timestamp"`
}

// newEnvelope 统一填充格式与时间戳
func newEnvelope(id, query string, now time.Time) ResultEnvelope {
	return ResultEnvelope{
		ID:        id,
		Query:     query,
		Sources:   []string{},
		Format:    FormatMarkdown,
		Timestamp: now.UTC().Format(time.RFC3339),
	}
}
