package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/wikiagent/rag"
	"github.com/BaSui01/wikiagent/testutil"
)

func TestBuildPrompt_ShapePerComplexity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		complexity rag.QueryComplexity
		markers    []string
	}{
		{complexity: rag.ComplexitySimple, markers: []string{"**Pertanyaan:**", "Sertakan informasi lokasi"}},
		{complexity: rag.ComplexityComparison, markers: []string{"tabel markdown", "| Aspek |", "## Perbedaan Utama"}},
		{complexity: rag.ComplexityReport, markers: []string{"**Permintaan:**", "**WAJIB:", "tidak tersedia di Ambisius Wiki", "## Kesimpulan"}},
		{complexity: rag.ComplexityComplexAnalysis, markers: []string{"multi-langkah", "**Langkah 1:**", "## Metodologi Analisis"}},
		{complexity: rag.QueryComplexity("unknown"), markers: []string{"**Pertanyaan:**", "Sertakan informasi lokasi"}},
	}

	for _, tt := range tests {
		t.Run(string(tt.complexity), func(t *testing.T) {
			t.Parallel()

			sc := sampleContext()
			sc.Complexity = tt.complexity
			prompt := BuildPrompt(sc)

			testutil.AssertContainsAll(t, prompt, tt.markers...)
			testutil.AssertContainsAll(t, prompt,
				sc.Query,
				"**Sumber:** "+sc.Sources[0].URL,
				"**Judul:** Gunung Agung",
				"**Konten:** Terletak di Provinsi Bali.")
		})
	}
}

func TestBuildPrompt_MissingEntities(t *testing.T) {
	t.Parallel()

	sc := sampleContext()
	assert.NotContains(t, BuildPrompt(sc), "Topik tanpa sumber")

	sc.Complexity = rag.ComplexityReport
	sc.MissingEntities = []string{"sahari", "rinjani"}
	assert.Contains(t, BuildPrompt(sc), "**Topik tanpa sumber:** sahari, rinjani")
}

func TestBuildPrompt_SourcesInOrder(t *testing.T) {
	t.Parallel()

	sc := sampleContext()
	sc.Sources = append(sc.Sources, SourceExcerpt{URL: wikiBase + "/provinsi/bali", Title: "Provinsi Bali", Excerpt: "Ibu kota Denpasar."})

	testutil.AssertInOrder(t, BuildPrompt(sc), "/gunung/gunung-agung", "/provinsi/bali")
}

func TestSystemPrompt_Render(t *testing.T) {
	t.Parallel()

	assert.True(t, SystemPrompt{}.IsZero())
	assert.Empty(t, SystemPrompt{}.Render())

	p := DefaultSystemPrompt("Ambisius Wiki")
	assert.False(t, p.IsZero())

	out := p.Render()
	testutil.AssertInOrder(t, out, "Ambisius Wiki", "bahasa Indonesia", "Kebijakan:", "- Gunakan hanya", "Aturan keluaran:", "Dilarang:")
	assert.False(t, strings.HasSuffix(out, "\n"))

	blank := SystemPrompt{Role: "r", Policies: []string{" ", ""}}
	assert.Equal(t, "r", blank.Render())
}
