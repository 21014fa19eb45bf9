package rag

import (
	"context"
	"fmt"
	"html"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"pgregory.net/rapid"

	"github.com/BaSui01/wikiagent/testutil"
	"github.com/BaSui01/wikiagent/testutil/fixtures"
	"github.com/BaSui01/wikiagent/types"
)

func newTestExtractor(t *testing.T, baseURL string) *ContentExtractor {
	t.Helper()
	profile := DefaultSiteProfile().WithBaseURL(baseURL)
	client := NewSiteClient(DefaultSiteClientConfig(), zap.NewNop())
	return NewContentExtractor(DefaultExtractorConfig(), profile, client, nil, zap.NewNop())
}

func extract(t *testing.T, page string) *PageContent {
	t.Helper()
	e := newTestExtractor(t, "https://wiki.ambisius.com")
	pc, err := e.Extract("https://wiki.ambisius.com/test", strings.NewReader(page))
	require.NoError(t, err)
	return pc
}

// ---------------------------------------------------------------------------
// Title
// ---------------------------------------------------------------------------

func TestExtract_TitleFromH1(t *testing.T) {
	t.Parallel()

	pc := extract(t, `<html><head><title>Other - Wiki</title></head><body><h1> Gunung  Agung </h1></body></html>`)
	assert.Equal(t, "Gunung Agung", pc.Title)
}

func TestExtract_TitleFromDocumentTitle(t *testing.T) {
	t.Parallel()

	pc := extract(t, `<html><head><title>Gunung Tambora - Ambisius Wiki</title></head><body><p>x</p></body></html>`)
	assert.Equal(t, "Gunung Tambora", pc.Title)
}

func TestExtract_Untitled(t *testing.T) {
	t.Parallel()

	pc := extract(t, `<html><body><p>no title anywhere</p></body></html>`)
	assert.Equal(t, UntitledPage, pc.Title)
}

// ---------------------------------------------------------------------------
// Main content
// ---------------------------------------------------------------------------

func TestExtract_LongestSelectorWins(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("Gunung Agung terletak di Bali. ", 6)
	page := fmt.Sprintf(`<html><body>
<article>short text</article>
<div class="main-content"><p>%s</p></div>
</body></html>`, long)

	pc := extract(t, page)
	assert.Equal(t, strings.TrimSpace(long), pc.Content)
}

func TestExtract_BodyFallbackRemovesChrome(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<header>Site Header</header>
<div class="menu">Menu Items</div>
<div id="wrap"><p>Hello world paragraph.</p></div>
<footer>Footer text</footer>
</body></html>`

	pc := extract(t, page)
	assert.Equal(t, "Hello world paragraph.", pc.Content)
}

func TestExtract_StripsScriptsAndNavigation(t *testing.T) {
	t.Parallel()

	page := `<html><head><style>.a{color:red}</style></head><body>
<div class="main-content"><p>Visible</p><script>var x = 1;</script><nav>Nav link</nav></div>
<div class="sidebar">Sidebar</div>
</body></html>`

	pc := extract(t, page)
	assert.Contains(t, pc.Content, "Visible")
	assert.NotContains(t, pc.Content, "var x")
	assert.NotContains(t, pc.Content, "Nav link")
	assert.NotContains(t, pc.Content, "Sidebar")
	assert.NotContains(t, pc.Content, "color:red")
}

func TestExtract_BlockElementsSeparatedByNewline(t *testing.T) {
	t.Parallel()

	long := strings.Repeat("x", 120)
	pc := extract(t, fmt.Sprintf(`<html><body><article><p>first</p><p>second</p><p>%s</p></article></body></html>`, long))
	assert.Equal(t, "first\nsecond\n"+long, pc.Content)
}

func TestExtract_TruncatesContent(t *testing.T) {
	t.Parallel()

	pc := extract(t, fmt.Sprintf(`<html><body><div class="main-content"><p>%s</p></div></body></html>`, strings.Repeat("a", 10000)))
	assert.Equal(t, 8000, utf8.RuneCountInString(pc.Content))
}

func TestExtract_ZeroConfigKeepsCeiling(t *testing.T) {
	t.Parallel()

	e := NewContentExtractor(ExtractorConfig{}, DefaultSiteProfile(), nil, nil, nil)
	assert.Equal(t, 8000, e.config.MaxContentLength)
	assert.Equal(t, 100, e.config.MinContentLength)

	page := fmt.Sprintf(`<html><body><main><p>%s</p></main></body></html>`, strings.Repeat("z", 20000))
	pc, err := e.Extract("https://wiki.ambisius.com/test", strings.NewReader(page))
	require.NoError(t, err)
	assert.Equal(t, 8000, utf8.RuneCountInString(pc.Content))
}

func TestExtract_TruncatesOnRuneBoundary(t *testing.T) {
	t.Parallel()

	pc := extract(t, fmt.Sprintf(`<html><body><div class="main-content"><p>%s</p></div></body></html>`, strings.Repeat("é", 9000)))
	assert.Equal(t, 8000, utf8.RuneCountInString(pc.Content))
	assert.True(t, utf8.ValidString(pc.Content))
}

// ---------------------------------------------------------------------------
// Sections
// ---------------------------------------------------------------------------

func TestExtract_Sections(t *testing.T) {
	t.Parallel()

	page := `<html><body><div class="main-content">
<h1>Gunung Agung</h1>
<p>Intro paragraph.</p>
<h2>Lokasi</h2>
<p>Di Bali.</p>
<h3>Koordinat</h3>
<p>8.34 LS</p>
<h2>Kosong</h2>
<h2>Sejarah</h2>
<p>Meletus 1963.</p>
</div></body></html>`

	pc := extract(t, page)

	headings := make([]string, 0, len(pc.Sections))
	for _, s := range pc.Sections {
		headings = append(headings, s.Heading)
	}
	assert.Equal(t, []string{"Gunung Agung", "Lokasi", "Koordinat", "Sejarah"}, headings)

	lokasi, ok := pc.Section("Lokasi")
	require.True(t, ok)
	assert.Equal(t, "Di Bali.\nKoordinat\n8.34 LS", lokasi)

	koordinat, ok := pc.Section("Koordinat")
	require.True(t, ok)
	assert.Equal(t, "8.34 LS", koordinat)

	sejarah, _ := pc.Section("Sejarah")
	assert.Equal(t, "Meletus 1963.", sejarah)

	_, ok = pc.Section("Kosong")
	assert.False(t, ok, "empty sections are discarded")

	assert.Equal(t, 1, pc.Sections[0].Level)
	assert.Equal(t, 3, pc.Sections[2].Level)
}

func TestExtract_DuplicateHeadingKeepsFirstPosition(t *testing.T) {
	t.Parallel()

	page := `<html><body>
<h2>Catatan</h2><p>pertama</p>
<h2>Lokasi</h2><p>Bali</p>
<h2>Catatan</h2><p>kedua</p>
</body></html>`

	pc := extract(t, page)
	require.Len(t, pc.Sections, 2)
	assert.Equal(t, "Catatan", pc.Sections[0].Heading)
	assert.Equal(t, "kedua", pc.Sections[0].Text)
}

func TestExtract_PropertyBoundedAndNoEmptySections(t *testing.T) {
	e := newTestExtractor(t, "https://wiki.ambisius.com")
	e.config.MaxContentLength = 300

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(0, 8).Draw(rt, "sections")
		var b strings.Builder
		b.WriteString("<html><body><article>")
		for i := 0; i < n; i++ {
			level := rapid.IntRange(1, 6).Draw(rt, "level")
			heading := rapid.StringMatching(`[A-Za-z ]{0,12}`).Draw(rt, "heading")
			body := rapid.StringMatching(`[a-z .]{0,80}`).Draw(rt, "body")
			fmt.Fprintf(&b, "<h%d>%s</h%d><p>%s</p>", level, html.EscapeString(heading), level, html.EscapeString(body))
		}
		b.WriteString("</article></body></html>")

		pc, err := e.Extract("https://wiki.ambisius.com/p", strings.NewReader(b.String()))
		if err != nil {
			rt.Fatalf("extract: %v", err)
		}
		if utf8.RuneCountInString(pc.Content) > 300 {
			rt.Fatalf("content length %d exceeds ceiling", utf8.RuneCountInString(pc.Content))
		}
		for _, s := range pc.Sections {
			if s.Text == "" || s.Heading == "" {
				rt.Fatalf("empty section %+v", s)
			}
		}
	})
}

// ---------------------------------------------------------------------------
// Fetch / FetchAll
// ---------------------------------------------------------------------------

func TestContentExtractor_Fetch(t *testing.T) {
	t.Parallel()

	site := fixtures.NewWikiSite(t)
	e := newTestExtractor(t, site.URL())

	pc, err := e.Fetch(context.Background(), site.URL()+fixtures.AgungPath)
	require.NoError(t, err)

	assert.Equal(t, "Gunung Agung", pc.Title)
	assert.Contains(t, pc.Content, "Provinsi Bali")
	assert.NotContains(t, pc.Content, "Beranda", "navigation is stripped")
	assert.NotContains(t, pc.Content, "Artikel terkait", "sidebar is stripped")
	assert.NotContains(t, pc.Content, "tracking")

	lokasi, ok := pc.Section("Lokasi")
	require.True(t, ok)
	assert.Contains(t, lokasi, "Karangasem")
}

func TestContentExtractor_FetchNotFound(t *testing.T) {
	t.Parallel()

	site := fixtures.NewWikiSite(t)
	e := newTestExtractor(t, site.URL())

	_, err := e.Fetch(context.Background(), site.URL()+"/gunung/gunung-sahari")
	require.Error(t, err)
	assert.Equal(t, types.ErrSiteBadStatus, types.GetErrorCode(err))
}

func TestContentExtractor_FetchAllSkipsFailures(t *testing.T) {
	t.Parallel()

	site := fixtures.NewWikiSite(t)
	e := newTestExtractor(t, site.URL())

	pages := e.FetchAll(context.Background(), []SearchResult{
		{Title: "Agung", URL: site.URL() + fixtures.AgungPath},
		{Title: "Sahari", URL: site.URL() + "/gunung/gunung-sahari"},
		{Title: "Tambora", URL: site.URL() + fixtures.TamboraPath},
	})

	require.Len(t, pages, 2)
	assert.Equal(t, site.URL()+fixtures.AgungPath, pages[0].URL)
	assert.Equal(t, site.URL()+fixtures.TamboraPath, pages[1].URL)
}

func TestContentExtractor_FetchAllCancelled(t *testing.T) {
	t.Parallel()

	site := fixtures.NewWikiSite(t)
	e := newTestExtractor(t, site.URL())

	pages := e.FetchAll(testutil.CancelledContext(), []SearchResult{
		{Title: "Agung", URL: site.URL() + fixtures.AgungPath},
	})

	assert.Empty(t, pages)
	assert.Zero(t, site.RequestCount("GET", fixtures.AgungPath))
}
