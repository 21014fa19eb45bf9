package evaluation

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed testcases.yaml
var builtinSuite []byte

// Difficulty 用例难度
type Difficulty string

const (
	DifficultyEasy   Difficulty = "Easy"
	DifficultyMedium Difficulty = "Medium"
	DifficultyHard   Difficulty = "Hard"
)

// CheckKind 检查类型
type CheckKind string

const (
	// CheckFound 要求 found=true
	CheckFound CheckKind = "found"
	// CheckNotFound 要求 found=false
	CheckNotFound CheckKind = "not_found"
	// CheckAnswer 对小写后的答案做包含判断：All 全部出现且 Any 至少出现一个
	CheckAnswer CheckKind = "answer"
	// CheckSource 至少一个来源 URL 包含 Any 中的任一片段
	CheckSource CheckKind = "source"
	// CheckHeading 答案包含 markdown 标题
	CheckHeading CheckKind = "heading"
)

// Check 单条检查。Required 的检查失败使用例失败，其余只产生警告。
type Check struct {
	Kind     CheckKind `yaml:"kind" json:"kind"`
	All      []string  `yaml:"all,omitempty" json:"all,omitempty"`
	Any      []string  `yaml:"any,omitempty" json:"any,omitempty"`
	Required bool      `yaml:"required,omitempty" json:"required,omitempty"`
	Message  string    `yaml:"message" json:"message"`
}

// EvalCase 一个评估用例
type EvalCase struct {
	ID               string     `yaml:"id" json:"id"`
	Difficulty       Difficulty `yaml:"difficulty" json:"difficulty"`
	Query            string     `yaml:"query" json:"query"`
	Description      string     `yaml:"description" json:"description"`
	ExpectedBehavior []string   `yaml:"expected_behavior,omitempty" json:"expected_behavior,omitempty"`
	ExpectedSources  []string   `yaml:"expected_sources,omitempty" json:"expected_sources,omitempty"`
	Checks           []Check    `yaml:"checks" json:"checks"`
}

// EvalSuite 用例集合，按声明顺序执行
type EvalSuite struct {
	Name    string     `yaml:"name" json:"name"`
	Version string     `yaml:"version" json:"version"`
	Cases   []EvalCase `yaml:"cases" json:"cases"`
}

// BuiltinSuite 返回内置的 TC001–TC005 用例集
func BuiltinSuite() (*EvalSuite, error) {
	return ParseSuite(builtinSuite)
}

// LoadSuite 从 YAML 文件加载用例集；path 为空时返回内置用例集
func LoadSuite(path string) (*EvalSuite, error) {
	if path == "" {
		return BuiltinSuite()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read eval cases: %w", err)
	}
	return ParseSuite(data)
}

// ParseSuite 解析并校验 YAML 用例集
func ParseSuite(data []byte) (*EvalSuite, error) {
	var suite EvalSuite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse eval cases: %w", err)
	}
	if err := suite.Validate(); err != nil {
		return nil, err
	}
	return &suite, nil
}

// Filter 返回只包含指定 ID 的副本；ids 为空时原样返回
func (s *EvalSuite) Filter(ids ...string) (*EvalSuite, error) {
	if len(ids) == 0 {
		return s, nil
	}
	byID := make(map[string]EvalCase, len(s.Cases))
	for _, c := range s.Cases {
		byID[strings.ToUpper(c.ID)] = c
	}

	out := &EvalSuite{Name: s.Name, Version: s.Version}
	for _, id := range ids {
		c, ok := byID[strings.ToUpper(strings.TrimSpace(id))]
		if !ok {
			return nil, fmt.Errorf("unknown eval case %q", id)
		}
		out.Cases = append(out.Cases, c)
	}
	return out, nil
}

// Validate 校验用例集
func (s *EvalSuite) Validate() error {
	if len(s.Cases) == 0 {
		return errors.New("eval suite has no cases")
	}

	var errs []error
	seen := make(map[string]bool, len(s.Cases))
	for i, c := range s.Cases {
		if c.ID == "" {
			errs = append(errs, fmt.Errorf("case %d: missing id", i))
		} else if seen[c.ID] {
			errs = append(errs, fmt.Errorf("case %s: duplicate id", c.ID))
		}
		seen[c.ID] = true

		if strings.TrimSpace(c.Query) == "" {
			errs = append(errs, fmt.Errorf("case %s: empty query", c.ID))
		}
		for j, chk := range c.Checks {
			if err := chk.validate(); err != nil {
				errs = append(errs, fmt.Errorf("case %s check %d: %w", c.ID, j, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (c Check) validate() error {
	switch c.Kind {
	case CheckFound, CheckNotFound, CheckHeading:
		return nil
	case CheckAnswer:
		if len(c.All) == 0 && len(c.Any) == 0 {
			return errors.New("answer check needs all or any")
		}
		return nil
	case CheckSource:
		if len(c.Any) == 0 {
			return errors.New("source check needs any")
		}
		return nil
	default:
		return fmt.Errorf("unknown check kind %q", c.Kind)
	}
}
