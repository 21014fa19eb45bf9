package agent

import (
	"fmt"
	"strings"

	"github.com/BaSui01/wikiagent/rag"
)

// SourceExcerpt 是交给合成器的单页摘录
type SourceExcerpt struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Excerpt string `json:"excerpt"`
}

// SynthesisContext 是合成器的全部输入。Complexity 决定提示词形态。
type SynthesisContext struct {
	Complexity      rag.QueryComplexity `json:"complexity"`
	Query           string              `json:"query"`
	Entities        []string            `json:"entities"`
	MissingEntities []string            `json:"missing_entities,omitempty"`
	Sources         []SourceExcerpt     `json:"sources"`
	SiteName        string              `json:"site_name"`
}

// SystemPrompt 模块化的系统提示词
type SystemPrompt struct {
	Role        string   `json:"role,omitempty"`
	Identity    string   `json:"identity,omitempty"`
	Policies    []string `json:"policies,omitempty"`
	OutputRules []string `json:"output_rules,omitempty"`
	Prohibits   []string `json:"prohibits,omitempty"`
}

// DefaultSystemPrompt 返回面向站点的默认系统提示词
func DefaultSystemPrompt(siteName string) SystemPrompt {
	return SystemPrompt{
		Role:     fmt.Sprintf("Anda adalah asisten AI yang ahli dalam memberikan informasi dari %s.", siteName),
		Identity: "Jawab selalu dalam bahasa Indonesia.",
		Policies: []string{
			"Gunakan hanya informasi dari sumber yang diberikan",
			"Jika informasi tidak ditemukan, nyatakan dengan jelas",
		},
		OutputRules: []string{
			"Gunakan format markdown yang rapi",
			"Akhiri jawaban dengan daftar sumber yang digunakan",
		},
		Prohibits: []string{
			"Mengarang fakta yang tidak ada di sumber",
		},
	}
}

func (s SystemPrompt) IsZero() bool {
	return strings.TrimSpace(s.Role) == "" && strings.TrimSpace(s.Identity) == "" && len(s.Policies) == 0 && len(s.OutputRules) == 0 && len(s.Prohibits) == 0
}

func (s SystemPrompt) Render() string {
	var parts []string
	if v := strings.TrimSpace(s.Role); v != "" {
		parts = append(parts, v)
	}
	if v := strings.TrimSpace(s.Identity); v != "" {
		parts = append(parts, v)
	}
	if v := formatBulletSection("Kebijakan:", s.Policies); v != "" {
		parts = append(parts, v)
	}
	if v := formatBulletSection("Aturan keluaran:", s.OutputRules); v != "" {
		parts = append(parts, v)
	}
	if v := formatBulletSection("Dilarang:", s.Prohibits); v != "" {
		parts = append(parts, v)
	}
	return strings.Join(parts, "\n\n")
}

func formatBulletSection(title string, items []string) string {
	var cleaned []string
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it != "" {
			cleaned = append(cleaned, "- "+it)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	return title + "\n" + strings.Join(cleaned, "\n")
}

// ============================================================================
// 用户提示词：四种形态
// ============================================================================

// BuildPrompt 按复杂度选择提示词形态。未知复杂度按 simple 处理。
func BuildPrompt(sc SynthesisContext) string {
	switch sc.Complexity {
	case rag.ComplexityComparison:
		return comparisonPrompt(sc)
	case rag.ComplexityReport:
		return reportPrompt(sc)
	case rag.ComplexityComplexAnalysis:
		return complexAnalysisPrompt(sc)
	default:
		return simplePrompt(sc)
	}
}

func writeSources(b *strings.Builder, sources []SourceExcerpt) {
	for _, s := range sources {
		b.WriteString("---\n")
		fmt.Fprintf(b, "**Sumber:** %s\n", s.URL)
		fmt.Fprintf(b, "**Judul:** %s\n", s.Title)
		fmt.Fprintf(b, "**Konten:** %s\n", s.Excerpt)
		b.WriteString("---\n\n")
	}
}

func writeNumbered(b *strings.Builder, items []string) {
	for i, it := range items {
		fmt.Fprintf(b, "%d. %s\n", i+1, it)
	}
}

func writeMissing(b *strings.Builder, missing []string) {
	if len(missing) == 0 {
		return
	}
	b.WriteString("\n**Topik tanpa sumber:** ")
	b.WriteString(strings.Join(missing, ", "))
	b.WriteString("\n")
}

func simplePrompt(sc SynthesisContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Berikan jawaban yang akurat dan informatif untuk pertanyaan berikut dalam bahasa Indonesia:\n\n")
	fmt.Fprintf(&b, "**Pertanyaan:** %s\n\n**Sumber informasi yang tersedia:**\n\n", sc.Query)
	writeSources(&b, sc.Sources)
	writeMissing(&b, sc.MissingEntities)
	b.WriteString("\n**Instruksi:**\n")
	writeNumbered(&b, []string{
		"Berikan jawaban yang langsung menjawab pertanyaan",
		"Gunakan format markdown yang rapi",
		"Sertakan informasi lokasi yang spesifik jika ditanya tentang lokasi",
		"Jika informasi tidak ditemukan, jelaskan dengan jelas",
		"Akhiri dengan daftar sumber yang digunakan",
	})
	b.WriteString("\n**Format jawaban:**\n# [Judul Jawaban]\n\n[Isi jawaban]\n\n## Sumber\n- [daftar sumber]\n")
	return b.String()
}

func comparisonPrompt(sc SynthesisContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Buat perbandingan yang detail dan terstruktur untuk pertanyaan berikut:\n\n")
	fmt.Fprintf(&b, "**Pertanyaan:** %s\n\n**Sumber informasi:**\n\n", sc.Query)
	writeSources(&b, sc.Sources)
	writeMissing(&b, sc.MissingEntities)
	b.WriteString("\n**Instruksi:**\n")
	writeNumbered(&b, []string{
		"Buat perbandingan dalam bentuk tabel markdown",
		"Jelaskan perbedaan utama dalam paragraf setelah tabel",
		"Fokus pada aspek-aspek yang paling relevan",
		"Jika ada informasi yang tidak lengkap, sebutkan dengan jelas",
	})
	b.WriteString("\n**Format yang diharapkan:**\n\n# Perbandingan [Topik A] dan [Topik B]\n\n## Tabel Perbandingan\n\n")
	b.WriteString("| Aspek | [Topik A] | [Topik B] |\n|-------|-----------|-----------|\n")
	b.WriteString("| Lokasi | ... | ... |\n| Ketinggian | ... | ... |\n| Sejarah | ... | ... |\n| Karakteristik | ... | ... |\n")
	b.WriteString("\n## Perbedaan Utama\n\n[Penjelasan detail perbedaan]\n\n## Sumber\n- [daftar sumber]\n")
	return b.String()
}

func reportPrompt(sc SynthesisContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Buat laporan yang komprehensif untuk permintaan berikut:\n\n")
	fmt.Fprintf(&b, "**Permintaan:** %s\n\n**Data yang tersedia:**\n\n", sc.Query)
	writeSources(&b, sc.Sources)
	writeMissing(&b, sc.MissingEntities)
	b.WriteString("\n**Instruksi:**\n")
	writeNumbered(&b, []string{
		"Buat laporan yang terstruktur dengan heading yang jelas",
		"Fokus pada aspek yang diminta dalam permintaan",
		"**WAJIB: untuk setiap topik tanpa sumber, buat section khusus yang menyatakan bahwa informasi tidak tersedia di " + sc.SiteName + "**",
		"Gunakan format laporan formal",
		"Sebutkan secara eksplisit topik mana yang ditemukan dan mana yang tidak",
	})
	b.WriteString("\n**Format laporan:**\n\n# Laporan [Daftar Topik]\n\n## Ringkasan Eksekutif\n[Ringkasan singkat]\n\n")
	b.WriteString("## [Topik - DITEMUKAN]\n[Detail topik]\n\n")
	b.WriteString("## [Topik yang TIDAK DITEMUKAN]\n**INFORMASI TIDAK TERSEDIA:** Informasi tentang [topik] tidak ditemukan di " + sc.SiteName + ".\n\n")
	b.WriteString("## Kesimpulan\n[Kesimpulan laporan]\n\n## Sumber Referensi\n- [daftar sumber]\n")
	return b.String()
}

func complexAnalysisPrompt(sc SynthesisContext) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lakukan analisis untuk menjawab pertanyaan berikut yang memerlukan inferensi multi-langkah:\n\n")
	fmt.Fprintf(&b, "**Pertanyaan:** %s\n\n**Sumber informasi:**\n\n", sc.Query)
	writeSources(&b, sc.Sources)
	writeMissing(&b, sc.MissingEntities)
	b.WriteString("\n**Instruksi untuk analisis:**\n")
	writeNumbered(&b, []string{
		"**Langkah 1:** Identifikasi fakta penghubung (misalnya lokasi atau provinsi) dari sumber yang tersedia",
		"**Langkah 2:** Gunakan fakta tersebut untuk menjawab bagian pertanyaan berikutnya",
		"**Langkah 3:** Struktur jawaban dengan penalaran yang jelas",
		"Jika informasi tidak lengkap, jelaskan langkah yang tidak bisa diselesaikan",
	})
	b.WriteString("\n**Format analisis:**\n\n# [Judul Analisis]\n\n## Analisis Lokasi\nBerdasarkan informasi dari [sumber], [objek] berlokasi di [tempat].\n\n")
	b.WriteString("## [Jawaban Langkah Berikutnya]\n[Detail]\n\n## Kesimpulan\n[Kesimpulan analisis]\n\n")
	b.WriteString("## Metodologi Analisis\n1. [Langkah analisis yang dilakukan]\n2. [Sumber yang digunakan]\n\n## Sumber Referensi\n- [daftar sumber]\n")
	return b.String()
}
