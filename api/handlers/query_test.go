package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/agent"
	"github.com/BaSui01/wikiagent/api"
	"github.com/BaSui01/wikiagent/internal/ctxkeys"
	"github.com/BaSui01/wikiagent/rag"
	"github.com/BaSui01/wikiagent/testutil"
	"github.com/BaSui01/wikiagent/testutil/fixtures"
)

// fakeProcessor 记录调用参数
type fakeProcessor struct {
	mu       sync.Mutex
	queries  []string
	model    string
	deadline bool
	env      agent.ResultEnvelope
}

func (f *fakeProcessor) ProcessQuery(ctx context.Context, query string) agent.ResultEnvelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	f.model, _ = ctxkeys.LLMModel(ctx)
	_, f.deadline = ctx.Deadline()
	env := f.env
	env.Query = query
	return env
}

func postQuery(t *testing.T, h *QueryHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.HandleQuery(w, r)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) agent.ResultEnvelope {
	t.Helper()
	var resp struct {
		Success bool                 `json:"success"`
		Data    agent.ResultEnvelope `json:"data"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	require.True(t, resp.Success)
	return resp.Data
}

// =============================================================================
// 🧪 QueryHandler
// =============================================================================

func TestQueryHandler_Success(t *testing.T) {
	t.Parallel()

	p := &fakeProcessor{env: agent.ResultEnvelope{ID: "q-1", Found: true, Sources: []string{"https://wiki.ambisius.com/gunung/gunung-agung"}, Format: agent.FormatMarkdown}}
	h := NewQueryHandler(p, time.Minute, zap.NewNop())

	w := postQuery(t, h, testutil.MustJSON(api.QueryRequest{Query: "Gunung Agung lokasinya ada dimana", Model: "gemini-2.5-pro"}))

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	want := p.env
	want.Query = "Gunung Agung lokasinya ada dimana"
	testutil.AssertJSONEqual(t, want, env)

	assert.Equal(t, []string{"Gunung Agung lokasinya ada dimana"}, p.queries)
	assert.Equal(t, "gemini-2.5-pro", p.model)
	assert.True(t, p.deadline)
}

func TestQueryHandler_NotFoundIsStillOK(t *testing.T) {
	t.Parallel()

	p := &fakeProcessor{env: agent.ResultEnvelope{ID: "q-2", Found: false, Sources: []string{}}}
	h := NewQueryHandler(p, 0, nil)

	w := postQuery(t, h, `{"query":"Gunung Sahari lokasi nya dimana?"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.False(t, env.Found)
	assert.False(t, p.deadline)
	assert.Empty(t, p.model)
}

func TestQueryHandler_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		method      string
		contentType string
		body        string
		wantStatus  int
		wantCode    string
	}{
		{name: "wrong method", method: http.MethodGet, contentType: "application/json", wantStatus: http.StatusMethodNotAllowed, wantCode: "METHOD_NOT_ALLOWED"},
		{name: "wrong content type", method: http.MethodPost, contentType: "text/plain", body: `{"query":"x"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "malformed json", method: http.MethodPost, contentType: "application/json", body: `{"query":`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_REQUEST"},
		{name: "blank query", method: http.MethodPost, contentType: "application/json", body: `{"query":"   "}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_QUERY"},
		{name: "query too long", method: http.MethodPost, contentType: "application/json", body: `{"query":"` + strings.Repeat("a", 1001) + `"}`, wantStatus: http.StatusBadRequest, wantCode: "INVALID_QUERY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &fakeProcessor{}
			h := NewQueryHandler(p, time.Second, zap.NewNop())

			r := httptest.NewRequest(tt.method, "/api/v1/query", strings.NewReader(tt.body))
			r.Header.Set("Content-Type", tt.contentType)
			w := httptest.NewRecorder()
			h.HandleQuery(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			var resp Response
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Empty(t, p.queries, "pipeline must not run for rejected requests")
		})
	}
}

func TestQueryHandler_AgainstWikiSite(t *testing.T) {
	t.Parallel()

	site := fixtures.NewWikiSite(t)
	a, err := agent.NewWikiAgentBuilder().
		WithProfile(rag.DefaultSiteProfile().WithBaseURL(site.URL())).
		WithLogger(zap.NewNop()).
		Build()
	require.NoError(t, err)

	h := NewQueryHandler(a, 30*time.Second, zap.NewNop())
	w := postQuery(t, h, `{"query":"Gunung Agung lokasinya ada dimana"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.True(t, env.Found)
	assert.Equal(t, []string{site.URL() + fixtures.AgungPath}, env.Sources)
	assert.Equal(t, agent.FormatMarkdown, env.Format)
	assert.NotEmpty(t, env.ID)
}
