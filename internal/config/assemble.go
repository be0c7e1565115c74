package config

import (
	"errors"
	"fmt"
	"strings"

	"dsgen/pkg/contract"
	"dsgen/pkg/registry"
)

// Validate 对最小必要边界做静态校验。
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.ProjectDir) == "" {
		return errors.New("config: project_dir empty")
	}
	if !contract.Mode(cfg.Mode).Valid() {
		return fmt.Errorf("config: unknown mode %q", cfg.Mode)
	}
	if strings.TrimSpace(cfg.Endpoint.Client) == "" {
		return errors.New("config: endpoint client not set")
	}
	return nil
}

// ValidateGenerate 生成阶段的额外校验：必须有模型名。
func ValidateGenerate(cfg Config) error {
	if err := Validate(cfg); err != nil {
		return err
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return errors.New("config: model not set")
	}
	return nil
}

// AssembleGenClient 构造生成端点客户端。
// 严格 Options 解析在 registry（工厂）层进行；此处只传 raw JSON。
func AssembleGenClient(cfg Config) (contract.GenClient, error) {
	return registry.NewGenClient(cfg.Endpoint.Client, cfg.Endpoint.Options)
}
