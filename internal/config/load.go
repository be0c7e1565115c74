package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"strings"
)

// Defaults 返回带有安全默认值的 Config 雏形。
// 注意：Model 不设默认（必须由 JSON/ENV/CLI 提供）。
func Defaults() Config {
	return Config{
		Mode:     "qa",
		Logging:  Logging{Level: "info"},
		Endpoint: Endpoint{Client: "ollama"},
	}
}

// LoadJSON 从文件路径或原始 JSON 解析 Config（严格拒绝未知字段）。
func LoadJSON(path string, raw []byte) (Config, error) {
	var cfg Config
	var r io.Reader
	switch {
	case len(raw) > 0:
		r = bytes.NewReader(raw)
	case path != "":
		f, err := os.Open(path)
		if err != nil {
			return cfg, err
		}
		defer f.Close()
		r = f
	default:
		return cfg, errors.New("no config source provided")
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Merge 按优先级合并（后者覆盖前者）。
// 仅标量/字符串/原样 JSON 为“替换”；不做深度合并。
func Merge(base, over Config) Config {
	out := base
	if strings.TrimSpace(over.ProjectDir) != "" {
		out.ProjectDir = strings.TrimSpace(over.ProjectDir)
	}
	if strings.TrimSpace(over.OutputDir) != "" {
		out.OutputDir = strings.TrimSpace(over.OutputDir)
	}
	if strings.TrimSpace(over.Mode) != "" {
		out.Mode = strings.TrimSpace(over.Mode)
	}
	if strings.TrimSpace(over.Model) != "" {
		out.Model = strings.TrimSpace(over.Model)
	}
	// Logging（仅 level）
	if strings.TrimSpace(over.Logging.Level) != "" {
		out.Logging.Level = strings.TrimSpace(over.Logging.Level)
	}
	// Endpoint（client 名与 options 各自独立覆盖）
	if strings.TrimSpace(over.Endpoint.Client) != "" {
		out.Endpoint.Client = strings.TrimSpace(over.Endpoint.Client)
	}
	if len(over.Endpoint.Options) > 0 {
		out.Endpoint.Options = cloneRaw(over.Endpoint.Options)
	}
	// 阶段参数：零值不覆盖
	if over.Clean.MinParagraphChars > 0 {
		out.Clean.MinParagraphChars = over.Clean.MinParagraphChars
	}
	if over.Clean.Segment.MaxTokens > 0 {
		out.Clean.Segment.MaxTokens = over.Clean.Segment.MaxTokens
	}
	if over.Clean.Segment.CharsPerToken > 0 {
		out.Clean.Segment.CharsPerToken = over.Clean.Segment.CharsPerToken
	}
	if over.Clean.Segment.OverlapRatio > 0 {
		out.Clean.Segment.OverlapRatio = over.Clean.Segment.OverlapRatio
	}
	if over.Clean.Segment.MinSegmentChars > 0 {
		out.Clean.Segment.MinSegmentChars = over.Clean.Segment.MinSegmentChars
	}
	if over.Quality.SimilarityMax > 0 {
		out.Quality.SimilarityMax = over.Quality.SimilarityMax
	}
	if over.Quality.CJKMin > 0 {
		out.Quality.CJKMin = over.Quality.CJKMin
	}
	if over.Quality.LatinMin > 0 {
		out.Quality.LatinMin = over.Quality.LatinMin
	}
	if over.Quality.SmallBatchMax > 0 {
		out.Quality.SmallBatchMax = over.Quality.SmallBatchMax
	}
	return out
}

// EnvOverlay 从环境变量构建一个 Config 覆盖（仅解析有限键集合）。
// 规则：前缀 DSGEN_；集合之外的键忽略。
// 支持：PROJECT_DIR, OUTPUT_DIR, MODE, MODEL, LOG_LEVEL,
// ENDPOINT_CLIENT, ENDPOINT_OPTIONS_JSON
func EnvOverlay(environ []string) (Config, error) {
	var over Config
	for _, kv := range environ {
		if !strings.HasPrefix(kv, "DSGEN_") {
			continue
		}
		eq := strings.IndexByte(kv, '=')
		if eq <= len("DSGEN_") {
			continue
		}
		key := kv[:eq]
		val := kv[eq+1:]
		switch strings.TrimPrefix(key, "DSGEN_") {
		case "PROJECT_DIR":
			over.ProjectDir = strings.TrimSpace(val)
		case "OUTPUT_DIR":
			over.OutputDir = strings.TrimSpace(val)
		case "MODE":
			over.Mode = strings.TrimSpace(val)
		case "MODEL":
			over.Model = strings.TrimSpace(val)
		case "LOG_LEVEL":
			over.Logging.Level = strings.TrimSpace(val)
		case "ENDPOINT_CLIENT":
			over.Endpoint.Client = strings.TrimSpace(val)
		case "ENDPOINT_OPTIONS_JSON":
			// 原样 JSON；空值视为未设置，避免清空现有配置
			if strings.TrimSpace(val) != "" {
				over.Endpoint.Options = json.RawMessage(val)
			}
		}
	}
	return over, nil
}

func cloneRaw(in json.RawMessage) json.RawMessage {
	if len(in) == 0 {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
