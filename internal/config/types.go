package config

import (
	"encoding/json"

	"dsgen/internal/clean"
	"dsgen/internal/quality"
)

// Config: 运行期只读配置（一次解析，运行期不变）。
// JSON 使用 snake_case；未知字段在解析期失败。
type Config struct {
	ProjectDir string `json:"project_dir"`
	// OutputDir 数据集输出目录；为空则取 project_dir/dataset。
	OutputDir string  `json:"output_dir"`
	Mode      string  `json:"mode"`
	Model     string  `json:"model"`
	Logging   Logging `json:"logging"`

	// Endpoint 生成端点选择与定义。
	Endpoint Endpoint `json:"endpoint"`

	// 各阶段参数子树。
	Clean   clean.Options  `json:"clean"`
	Quality quality.Config `json:"quality"`
}

// Logging: 仅保留日志等级可配置；输出路径与轮转策略为固定默认。
type Logging struct {
	Level string `json:"level"`
}

// Endpoint: 生成端点定义（client 实现名 + 原样 JSON options）。
type Endpoint struct {
	Client  string          `json:"client"`
	Options json.RawMessage `json:"options"`
}
