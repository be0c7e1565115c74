package config

import (
	"strings"
	"testing"
)

func TestLoadJSONStrict(t *testing.T) {
	raw := []byte(`{"project_dir": "p", "mode": "qa", "unknown_key": 1}`)
	if _, err := LoadJSON("", raw); err == nil {
		t.Fatal("未知字段应在解析期失败")
	}
	raw = []byte(`{"project_dir": "p", "model": "m", "endpoint": {"client": "ollama"}}`)
	cfg, err := LoadJSON("", raw)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if cfg.ProjectDir != "p" || cfg.Endpoint.Client != "ollama" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

// 合并优先级：后者覆盖前者，零值不覆盖。
func TestMergePrecedence(t *testing.T) {
	base := Defaults()
	base.ProjectDir = "base"
	base.Model = "base-model"
	base.Quality.SimilarityMax = 0.5

	var over Config
	over.Model = "over-model"
	out := Merge(base, over)
	if out.Model != "over-model" {
		t.Fatalf("Model = %q", out.Model)
	}
	if out.ProjectDir != "base" || out.Quality.SimilarityMax != 0.5 {
		t.Fatalf("零值覆盖了既有配置: %+v", out)
	}
	// 端点 options 原样替换
	over = Config{}
	over.Endpoint.Options = []byte(`{"base_url": "http://other:11434"}`)
	out = Merge(out, over)
	if !strings.Contains(string(out.Endpoint.Options), "other") {
		t.Fatalf("Options = %s", out.Endpoint.Options)
	}
}

func TestEnvOverlay(t *testing.T) {
	environ := []string{
		"DSGEN_PROJECT_DIR=/data/proj",
		"DSGEN_MODE=chat",
		"DSGEN_MODEL=qwen3:8b",
		"DSGEN_ENDPOINT_OPTIONS_JSON={\"timeout_seconds\": 60}",
		"OTHER_VAR=ignored",
		"DSGEN_UNKNOWN=ignored",
	}
	over, err := EnvOverlay(environ)
	if err != nil {
		t.Fatalf("err = %v", err)
	}
	if over.ProjectDir != "/data/proj" || over.Mode != "chat" || over.Model != "qwen3:8b" {
		t.Fatalf("over = %+v", over)
	}
	if len(over.Endpoint.Options) == 0 {
		t.Fatal("Options 未解析")
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := Validate(cfg); err == nil {
		t.Fatal("缺 project_dir 应失败")
	}
	cfg.ProjectDir = "p"
	if err := Validate(cfg); err != nil {
		t.Fatalf("err = %v", err)
	}
	cfg.Mode = "unknown"
	if err := Validate(cfg); err == nil {
		t.Fatal("未知模式应失败")
	}
	// 生成阶段必须有模型名
	cfg.Mode = "qa"
	if err := ValidateGenerate(cfg); err == nil {
		t.Fatal("缺模型名应失败")
	}
	cfg.Model = "m"
	if err := ValidateGenerate(cfg); err != nil {
		t.Fatalf("err = %v", err)
	}
}

func TestDefaultTemplateRoundTrip(t *testing.T) {
	cfg := DefaultTemplateConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("模板配置应可通过校验: %v", err)
	}
	if cfg.Endpoint.Client != "ollama" {
		t.Fatalf("cfg = %+v", cfg)
	}
}
