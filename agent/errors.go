package agent

import "errors"

var (
	// ErrConfigRequired 未提供配置
	ErrConfigRequired = errors.New("config is required")

	// ErrProfileInvalid 站点数据表无效
	ErrProfileInvalid = errors.New("invalid site profile")
)
