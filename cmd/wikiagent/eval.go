package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/wikiagent/agent/evaluation"
)

// =============================================================================
// 🧪 eval 命令
// =============================================================================

// evalOptions eval 子命令参数，未设置的字段回落到配置文件
type evalOptions struct {
	configPath string
	casesPath  string
	reportPath string
	delay      time.Duration
	only       string
	failFast   bool
}

func parseEvalFlags(args []string) (*evalOptions, error) {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	opts := &evalOptions{delay: -1}
	fs.StringVar(&opts.configPath, "config", "", "Path to config file")
	fs.StringVar(&opts.casesPath, "cases", "", "Evaluation cases file (YAML)")
	fs.StringVar(&opts.reportPath, "report", "", "Markdown report output path")
	fs.DurationVar(&opts.delay, "delay", -1, "Delay between cases (negative uses eval.delay)")
	fs.StringVar(&opts.only, "only", "", "Comma separated case IDs to run")
	fs.BoolVar(&opts.failFast, "fail-fast", false, "Stop after the first failing case")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return opts, nil
}

// splitIDs 解析逗号分隔的用例 ID 列表
func splitIDs(s string) []string {
	var ids []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

func runEval(args []string, out io.Writer) int {
	opts, err := parseEvalFlags(args)
	if err != nil {
		return 2
	}

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if opts.casesPath != "" {
		cfg.Eval.CasesPath = opts.casesPath
	}
	if opts.reportPath != "" {
		cfg.Eval.ReportPath = opts.reportPath
	}
	if opts.delay >= 0 {
		cfg.Eval.Delay = opts.delay
	}

	suite, err := evaluation.LoadSuite(cfg.Eval.CasesPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	suite, err = suite.Filter(splitIDs(opts.only)...)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	rt, err := bootstrap(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	defer rt.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	evalCfg := evaluation.DefaultEvaluatorConfig()
	evalCfg.Delay = cfg.Eval.Delay
	evalCfg.StopOnFailure = opts.failFast
	if cfg.Server.QueryTimeout > 0 {
		evalCfg.CaseTimeout = cfg.Server.QueryTimeout
	}

	report, runErr := runSuite(ctx, evaluation.NewEvaluator(evalCfg, rt.logger), suite, rt.agent, out)
	if runErr != nil {
		rt.logger.Warn("evaluation interrupted", zap.Error(runErr))
	}

	if cfg.Eval.ReportPath != "" {
		if err := evaluation.WriteMarkdownFile(cfg.Eval.ReportPath, report); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Fprintf(out, "\nReport written to %s\n", cfg.Eval.ReportPath)
	}

	if runErr != nil || report.Summary.FailedCases > 0 {
		return 1
	}
	return 0
}

// runSuite 执行用例集并输出逐条进度与汇总
func runSuite(ctx context.Context, ev *evaluation.Evaluator, suite *evaluation.EvalSuite, runner evaluation.QueryRunner, out io.Writer) (*evaluation.EvalReport, error) {
	fmt.Fprintf(out, "Running %d evaluation cases from %s\n\n", len(suite.Cases), suite.Name)

	ev.OnResult = func(index, total int, result evaluation.EvalResult) {
		status := "PASS"
		if !result.Success {
			status = "FAIL"
		}
		fmt.Fprintf(out, "[%d/%d] %s %s (%s, found=%t, sources=%d)\n",
			index+1, total, status, result.Case.ID,
			result.Duration.Round(time.Millisecond), result.Response.Found, len(result.Response.Sources))
		for _, n := range result.Notes {
			if n.Level != evaluation.NotePass {
				fmt.Fprintf(out, "      %s: %s\n", n.Level, n.Message)
			}
		}
	}

	report, err := ev.Evaluate(ctx, suite, runner)
	printSummary(out, report)
	return report, err
}

func printSummary(out io.Writer, report *evaluation.EvalReport) {
	s := report.Summary
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Total: %d  Passed: %d  Failed: %d  Pass rate: %.1f%%\n",
		s.TotalCases, s.PassedCases, s.FailedCases, s.PassRate*100)
	fmt.Fprintf(out, "Average time: %s  Digest: %s\n", s.AvgDuration.Round(time.Millisecond), report.Digest)
}
