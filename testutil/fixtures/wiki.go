// =============================================================================
// 📦 测试数据工厂 - 模拟 Wiki 站点
// =============================================================================
// 提供基于 httptest 的内容站点，包含搜索端点和三个默认页面
// =============================================================================
package fixtures

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

// 默认页面路径
const (
	AgungPath   = "/gunung/gunung-agung"
	TamboraPath = "/gunung/gunung-tambora"
	BaliPath    = "/provinsi/bali"
	SearchPath  = "/find/"
)

// =============================================================================
// 🎯 WikiSite
// =============================================================================

// WikiSite 是一个模拟的 wiki 站点。
// 搜索端点 /find/{query} 默认返回没有结果的页面；未注册的页面返回 404。
type WikiSite struct {
	Server *httptest.Server

	mu         sync.Mutex
	pages      map[string]string
	searches   map[string]string
	failSearch bool
	requests   []string
	searchHits []string
}

// NewWikiSite 创建站点并在测试结束时关闭
func NewWikiSite(t testing.TB) *WikiSite {
	t.Helper()

	w := &WikiSite{
		pages: map[string]string{
			AgungPath:   AgungPage(),
			TamboraPath: TamboraPage(),
			BaliPath:    BaliPage(),
		},
		searches: make(map[string]string),
	}
	w.Server = httptest.NewServer(http.HandlerFunc(w.handle))
	t.Cleanup(w.Server.Close)
	return w
}

// URL 返回站点源站，如 http://127.0.0.1:port
func (w *WikiSite) URL() string { return w.Server.URL }

// SetPage 注册或覆盖页面
func (w *WikiSite) SetPage(path, body string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pages[path] = body
}

// RemovePage 删除页面，之后访问返回 404
func (w *WikiSite) RemovePage(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.pages, path)
}

// SetSearch 为某个（解码后的）查询注册搜索结果页
func (w *WikiSite) SetSearch(query, body string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.searches[query] = body
}

// FailSearch 让搜索端点返回 500
func (w *WikiSite) FailSearch(fail bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failSearch = fail
}

// Requests 返回按顺序记录的请求，格式 "METHOD /path"
func (w *WikiSite) Requests() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.requests...)
}

// SearchQueries 返回搜索端点收到的查询（解码后）
func (w *WikiSite) SearchQueries() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.searchHits...)
}

// RequestCount 统计某个方法和路径的请求次数
func (w *WikiSite) RequestCount(method, path string) int {
	key := method + " " + path
	n := 0
	for _, r := range w.Requests() {
		if r == key {
			n++
		}
	}
	return n
}

func (w *WikiSite) handle(rw http.ResponseWriter, r *http.Request) {
	w.mu.Lock()
	w.requests = append(w.requests, r.Method+" "+r.URL.Path)
	w.mu.Unlock()

	if strings.HasPrefix(r.URL.Path, SearchPath) {
		query := strings.TrimPrefix(r.URL.Path, SearchPath)
		w.mu.Lock()
		w.searchHits = append(w.searchHits, query)
		body, ok := w.searches[query]
		fail := w.failSearch
		w.mu.Unlock()

		if fail {
			http.Error(rw, "search unavailable", http.StatusInternalServerError)
			return
		}
		if !ok {
			body = EmptySearchPage(query)
		}
		writeHTML(rw, body)
		return
	}

	w.mu.Lock()
	body, ok := w.pages[r.URL.Path]
	w.mu.Unlock()
	if !ok {
		http.NotFound(rw, r)
		return
	}
	writeHTML(rw, body)
}

func writeHTML(rw http.ResponseWriter, body string) {
	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte(body))
}

// =============================================================================
// 🎯 页面工厂
// =============================================================================

// Link 是搜索结果页中的一个链接
type Link struct {
	Href  string
	Title string
	Blurb string
}

// SearchPage 构造搜索结果页，每个链接放在一个 li 中
func SearchPage(links ...Link) string {
	var b strings.Builder
	b.WriteString(`<html><head><title>Search - Ambisius Wiki</title></head><body><main><ul class="results">`)
	for _, l := range links {
		fmt.Fprintf(&b, `<li><a href="%s">%s</a> %s</li>`,
			html.EscapeString(l.Href), html.EscapeString(l.Title), html.EscapeString(l.Blurb))
	}
	b.WriteString(`</ul></main></body></html>`)
	return b.String()
}

// EmptySearchPage 构造没有结果的搜索页
func EmptySearchPage(query string) string {
	return fmt.Sprintf(`<html><head><title>Search - Ambisius Wiki</title></head><body><main><p>No results for %s</p></main></body></html>`,
		html.EscapeString(query))
}

// ArticlePage 构造一个带导航、侧栏和页脚的文章页
func ArticlePage(title string, sections map[string]string, order []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<html><head><title>%s - Ambisius Wiki</title><script>var tracking = true;</script></head><body>`, html.EscapeString(title))
	b.WriteString(`<nav><a href="/">Beranda</a> <a href="/gunung/">Gunung</a></nav>`)
	b.WriteString(`<div class="sidebar">Artikel terkait</div>`)
	fmt.Fprintf(&b, `<main><div class="content"><h1>%s</h1>`, html.EscapeString(title))
	for _, heading := range order {
		fmt.Fprintf(&b, `<h2>%s</h2><p>%s</p>`, html.EscapeString(heading), html.EscapeString(sections[heading]))
	}
	b.WriteString(`</div></main><footer>© Ambisius Wiki</footer></body></html>`)
	return b.String()
}

// AgungPage 是 Gunung Agung 的文章页，正文提到 Bali
func AgungPage() string {
	return ArticlePage("Gunung Agung", map[string]string{
		"Lokasi":  "Gunung Agung adalah gunung berapi tertinggi di pulau Bali dengan ketinggian 3.031 meter. Gunung ini terletak di Kabupaten Karangasem, Provinsi Bali, Indonesia.",
		"Sejarah": "Letusan besar Gunung Agung terjadi pada tahun 1963 dan menewaskan lebih dari seribu orang. Aktivitas vulkanik kembali meningkat pada tahun 2017.",
	}, []string{"Lokasi", "Sejarah"})
}

// TamboraPage 是 Gunung Tambora 的文章页
func TamboraPage() string {
	return ArticlePage("Gunung Tambora", map[string]string{
		"Lokasi":  "Gunung Tambora adalah stratovolcano aktif di pulau Sumbawa, Provinsi Nusa Tenggara Barat, Indonesia, dengan ketinggian 2.850 meter.",
		"Sejarah": "Letusan Gunung Tambora pada tahun 1815 merupakan letusan terbesar dalam sejarah modern dan menyebabkan tahun tanpa musim panas.",
	}, []string{"Lokasi", "Sejarah"})
}

// BaliPage 是 Provinsi Bali 的文章页
func BaliPage() string {
	return ArticlePage("Provinsi Bali", map[string]string{
		"Geografi": "Provinsi Bali terdiri dari pulau Bali dan beberapa pulau kecil. Ibu kotanya adalah Denpasar dan titik tertingginya adalah Gunung Agung.",
		"Sejarah":  "Bali menjadi provinsi tersendiri pada tahun 1958 setelah pemekaran Provinsi Sunda Kecil.",
	}, []string{"Geografi", "Sejarah"})
}
