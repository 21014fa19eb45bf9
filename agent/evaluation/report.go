package evaluation

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// previewLength 报告中答案预览的最大字符数
const previewLength = 200

// WriteMarkdownFile 将报告写入 markdown 文件，必要时创建父目录
func WriteMarkdownFile(path string, report *EvalReport) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create report dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := WriteMarkdown(f, report); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// WriteMarkdown 渲染评估报告
func WriteMarkdown(w io.Writer, report *EvalReport) error {
	bw := bufio.NewWriter(w)
	s := report.Summary

	fmt.Fprintf(bw, "# Evaluation Results: %s\n\n", report.SuiteName)
	fmt.Fprintf(bw, "- **Generated:** %s\n", report.EndTime.UTC().Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(bw, "- **Suite version:** %s\n", report.Version)
	if report.Digest != "" {
		fmt.Fprintf(bw, "- **Retrieval digest:** `%s`\n", report.Digest)
	}
	bw.WriteString("\n## Summary\n\n")
	bw.WriteString("| Metric | Value |\n|--------|-------|\n")
	fmt.Fprintf(bw, "| Total cases | %d |\n", s.TotalCases)
	fmt.Fprintf(bw, "| Passed | %d |\n", s.PassedCases)
	fmt.Fprintf(bw, "| Failed | %d |\n", s.FailedCases)
	fmt.Fprintf(bw, "| Pass rate | %.1f%% |\n", s.PassRate*100)
	fmt.Fprintf(bw, "| Average score | %.2f |\n", s.AverageScore)
	fmt.Fprintf(bw, "| Average time | %d ms |\n", s.AvgDuration.Milliseconds())
	if p, ok := s.Percentiles["p90"]; ok {
		fmt.Fprintf(bw, "| p90 time | %.0f ms |\n", p)
	}

	bw.WriteString("\n## Cases\n\n")
	bw.WriteString("| # | Case | Difficulty | Status | Found | Sources | Time |\n")
	bw.WriteString("|---|------|------------|--------|-------|---------|------|\n")
	for i, r := range report.Results {
		fmt.Fprintf(bw, "| %d | %s | %s | %s | %t | %d | %d ms |\n",
			i+1, r.Case.ID, r.Case.Difficulty, statusLabel(r.Success),
			r.Response.Found, len(r.Response.Sources), r.Duration.Milliseconds())
	}

	for _, r := range report.Results {
		writeCase(bw, r)
	}

	return bw.Flush()
}

func writeCase(bw *bufio.Writer, r EvalResult) {
	fmt.Fprintf(bw, "\n---\n\n### %s: %s\n\n", r.Case.ID, r.Case.Description)
	fmt.Fprintf(bw, "- **Query:** %s\n", r.Case.Query)
	fmt.Fprintf(bw, "- **Status:** %s (score %.2f)\n", statusLabel(r.Success), r.Score)
	if r.Response.Complexity != "" {
		fmt.Fprintf(bw, "- **Complexity:** %s\n", r.Response.Complexity)
	}

	if len(r.Case.ExpectedBehavior) > 0 {
		bw.WriteString("\n**Expected behavior**\n\n")
		for _, b := range r.Case.ExpectedBehavior {
			fmt.Fprintf(bw, "- %s\n", b)
		}
	}

	if len(r.Response.Sources) > 0 {
		bw.WriteString("\n**Sources**\n\n")
		for _, src := range r.Response.Sources {
			fmt.Fprintf(bw, "- %s\n", src)
		}
	}

	bw.WriteString("\n**Checks**\n\n")
	for _, n := range r.Notes {
		fmt.Fprintf(bw, "- %s %s\n", noteMarker(n.Level), n.Message)
	}

	bw.WriteString("\n**Answer preview**\n\n")
	for _, line := range strings.Split(Preview(r.Response.Answer, previewLength), "\n") {
		fmt.Fprintf(bw, "> %s\n", line)
	}
}

// Preview 截断答案用于展示，按字符而非字节计数
func Preview(answer string, n int) string {
	answer = strings.TrimSpace(answer)
	if utf8.RuneCountInString(answer) <= n {
		return answer
	}
	runes := []rune(answer)
	return string(runes[:n]) + "..."
}

func statusLabel(ok bool) string {
	if ok {
		return "PASSED"
	}
	return "FAILED"
}

func noteMarker(level NoteLevel) string {
	switch level {
	case NotePass:
		return "[pass]"
	case NoteFail:
		return "[FAIL]"
	default:
		return "[warn]"
	}
}
