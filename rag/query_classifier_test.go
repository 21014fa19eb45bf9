package rag

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"
)

// fakeQueryLLM 实现 QueryLLMProvider
type fakeQueryLLM struct {
	mu       sync.Mutex
	response string
	err      error
	panicMsg string
	calls    int
}

func (f *fakeQueryLLM) Complete(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return f.response, f.err
}

func newTestClassifier(llm QueryLLMProvider) *QueryClassifier {
	return NewQueryClassifier(DefaultClassifierConfig(), DefaultSiteProfile(), llm, nil, zap.NewNop())
}

// ---------------------------------------------------------------------------
// Heuristic
// ---------------------------------------------------------------------------

func TestClassifyHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		query      string
		complexity QueryComplexity
		entities   []string
	}{
		{
			name:       "simple location question",
			query:      "Gunung Agung lokasinya ada dimana",
			complexity: ComplexitySimple,
			entities:   []string{"gunung agung", "agung"},
		},
		{
			name:       "unknown mountain",
			query:      "Gunung Sahari lokasi nya dimana?",
			complexity: ComplexitySimple,
			entities:   []string{"gunung sahari", "sahari"},
		},
		{
			name:       "comparison marker",
			query:      "Perbedaan gunung agung dan gunung tambora apa?",
			complexity: ComplexityComparison,
			entities:   []string{"gunung agung", "gunung tambora", "agung", "tambora"},
		},
		{
			name:       "conjunction with domain keyword wins over report",
			query:      "Buatkan laporan tentang sejarah gunung agung, tambora dan sahari",
			complexity: ComplexityComparison,
			entities:   []string{"gunung agung", "agung", "tambora", "sahari"},
		},
		{
			name:       "report marker",
			query:      "Buatkan laporan tentang sejarah gunung agung, tambora, sahari",
			complexity: ComplexityReport,
			entities:   []string{"gunung agung", "agung", "tambora", "sahari"},
		},
		{
			name:       "report wins over relation inference",
			query:      "Buatkan laporan tentang sejarah provinsi dimana Gunung Agung berlokasi",
			complexity: ComplexityReport,
			entities:   []string{"gunung agung", "agung", "provinsi"},
		},
		{
			name:       "relation inference",
			query:      "Di provinsi mana Gunung Agung berada, dimana lokasinya?",
			complexity: ComplexityComplexAnalysis,
			entities:   []string{"gunung agung", "agung", "provinsi"},
		},
		{
			name:       "english comparison",
			query:      "Mount Agung vs Mount Tambora",
			complexity: ComplexityComparison,
			entities:   []string{"agung", "tambora"},
		},
		{
			name:       "conjunction without domain keyword",
			query:      "Sahari and Agung",
			complexity: ComplexitySimple,
			entities:   []string{"agung", "sahari"},
		},
		{
			name:       "conjunction inside a longer word is not a comparison",
			query:      "Pemandangan dari puncak Gunung Agung",
			complexity: ComplexitySimple,
			entities:   []string{"gunung agung", "agung"},
		},
		{
			name:       "nothing recognised",
			query:      "Tell me about volcanoes",
			complexity: ComplexitySimple,
			entities:   []string{},
		},
	}

	profile := DefaultSiteProfile()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			pq := ClassifyHeuristic(profile, tt.query)

			assert.Equal(t, tt.query, pq.OriginalQuery)
			assert.Equal(t, tt.complexity, pq.Complexity)
			assert.Equal(t, tt.entities, pq.Entities)
			assert.Equal(t, tt.complexity != ComplexitySimple, pq.RequiresMultiplePages)
			assert.Equal(t, SourceHeuristic, pq.Source)
		})
	}
}

func TestClassifyHeuristic_Intent(t *testing.T) {
	t.Parallel()

	profile := DefaultSiteProfile()

	pq := ClassifyHeuristic(profile, "Gunung Agung lokasinya ada dimana")
	assert.Equal(t, "User wants information about: gunung agung, agung", pq.Intent)

	pq = ClassifyHeuristic(profile, "apa kabar")
	assert.Equal(t, "general query", pq.Intent)
}

func TestClassifyHeuristic_PropertyTotalAndDeterministic(t *testing.T) {
	profile := DefaultSiteProfile()

	rapid.Check(t, func(rt *rapid.T) {
		query := rapid.String().Draw(rt, "query")

		a := ClassifyHeuristic(profile, query)
		b := ClassifyHeuristic(profile, query)

		if !a.Complexity.Valid() {
			rt.Fatalf("invalid complexity %q", a.Complexity)
		}
		if a.RequiresMultiplePages != (a.Complexity != ComplexitySimple) {
			rt.Fatalf("requiresMultiplePages mismatch for %q", query)
		}
		fa, err := a.Fingerprint()
		if err != nil {
			rt.Fatalf("fingerprint: %v", err)
		}
		fb, _ := b.Fingerprint()
		if fa != fb {
			rt.Fatalf("non-deterministic classification for %q", query)
		}
	})
}

// ---------------------------------------------------------------------------
// Model path
// ---------------------------------------------------------------------------

func TestClassify_ModelPath(t *testing.T) {
	t.Parallel()

	llm := &fakeQueryLLM{response: "Here is the analysis:\n```json\n" + `{
  "originalQuery": "ignored",
  "intent": "Find the province {of} Gunung Agung",
  "entities": ["Gunung Agung", "Gunung Agung", "provinsi"],
  "complexity": "complex_analysis",
  "requiresMultiplePages": true
}` + "\n```\nDone."}

	pq := newTestClassifier(llm).Classify(context.Background(), "Provinsi mana tempat Gunung Agung?")

	assert.Equal(t, 1, llm.calls)
	assert.Equal(t, SourceModel, pq.Source)
	assert.Equal(t, ComplexityComplexAnalysis, pq.Complexity)
	assert.Equal(t, "Provinsi mana tempat Gunung Agung?", pq.OriginalQuery)
	assert.Equal(t, "Find the province {of} Gunung Agung", pq.Intent)
	assert.Equal(t, []string{"Gunung Agung", "provinsi"}, pq.Entities)
	assert.True(t, pq.RequiresMultiplePages)
}

func TestClassify_ModelFailuresFallBackToHeuristic(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		llm  *fakeQueryLLM
	}{
		{name: "call error", llm: &fakeQueryLLM{err: errors.New("quota exceeded")}},
		{name: "no json", llm: &fakeQueryLLM{response: "I cannot help with that."}},
		{name: "invalid json", llm: &fakeQueryLLM{response: `{"intent": "x", "entities": [,]}`}},
		{name: "unknown complexity", llm: &fakeQueryLLM{response: `{"intent":"x","entities":[],"complexity":"weird","requiresMultiplePages":false}`}},
		{name: "missing field", llm: &fakeQueryLLM{response: `{"intent":"x","complexity":"simple","requiresMultiplePages":false}`}},
		{name: "wrong type", llm: &fakeQueryLLM{response: `{"intent":"x","entities":"agung","complexity":"simple","requiresMultiplePages":false}`}},
		{name: "unbalanced", llm: &fakeQueryLLM{response: `{"intent":"x"`}},
		{name: "panic", llm: &fakeQueryLLM{panicMsg: "boom"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var pq *ProcessedQuery
			require.NotPanics(t, func() {
				pq = newTestClassifier(tt.llm).Classify(context.Background(), "Perbedaan gunung agung dan gunung tambora apa?")
			})
			assert.Equal(t, SourceHeuristic, pq.Source)
			assert.Equal(t, ComplexityComparison, pq.Complexity)
			assert.Equal(t, 1, tt.llm.calls)
		})
	}
}

func TestClassify_UseModelDisabled(t *testing.T) {
	t.Parallel()

	llm := &fakeQueryLLM{response: `{"intent":"x","entities":[],"complexity":"report","requiresMultiplePages":true}`}
	cfg := DefaultClassifierConfig()
	cfg.UseModel = false

	pq := NewQueryClassifier(cfg, DefaultSiteProfile(), llm, nil, nil).Classify(context.Background(), "gunung agung")

	assert.Zero(t, llm.calls)
	assert.Equal(t, SourceHeuristic, pq.Source)
	assert.Equal(t, ComplexitySimple, pq.Complexity)
}

func TestClassify_NilProvider(t *testing.T) {
	t.Parallel()

	pq := newTestClassifier(nil).Classify(context.Background(), "laporan sejarah tambora")
	assert.Equal(t, ComplexityReport, pq.Complexity)
}

// ---------------------------------------------------------------------------
// ExtractJSONObject
// ---------------------------------------------------------------------------

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "plain", input: `{"a":1}`, want: `{"a":1}`, ok: true},
		{name: "surrounding prose", input: "text {\"a\":{\"b\":2}} more {\"c\":3}", want: `{"a":{"b":2}}`, ok: true},
		{name: "braces in strings", input: `x {"a":"}{","b":"\"}"} y`, want: `{"a":"}{","b":"\"}"}`, ok: true},
		{name: "no object", input: "nothing here", ok: false},
		{name: "unbalanced", input: `{"a":{"b":1}`, ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ExtractJSONObject(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProcessedQuery_Fingerprint(t *testing.T) {
	t.Parallel()

	a := &ProcessedQuery{OriginalQuery: "q", Intent: "i", Entities: []string{"x"}, Complexity: ComplexitySimple, Source: SourceHeuristic}
	b := *a
	c := *a
	c.Complexity = ComplexityReport

	fa, err := a.Fingerprint()
	require.NoError(t, err)
	fb, _ := b.Fingerprint()
	fc, _ := c.Fingerprint()

	assert.Len(t, fa, 64)
	assert.Equal(t, fa, fb)
	assert.NotEqual(t, fa, fc)
}
