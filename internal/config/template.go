package config

import "encoding/json"

// DefaultTemplateConfig 返回一个“可运行”的默认配置模板：
// - 端点指向本机默认的 ollama 服务；
// - 各阶段参数给出安全中性默认值；
// - 所有键齐备，便于照着改。
func DefaultTemplateConfig() Config {
	cfg := Defaults()
	cfg.ProjectDir = "."
	cfg.Model = ""
	cfg.Endpoint.Options = json.RawMessage(`{
  "base_url": "http://localhost:11434",
  "endpoint_path": "",
  "timeout_seconds": 300
}`)
	cfg.Clean.MinParagraphChars = 20
	cfg.Clean.Segment.MaxTokens = 1024
	cfg.Clean.Segment.CharsPerToken = 2.5
	cfg.Clean.Segment.OverlapRatio = 0.12
	cfg.Clean.Segment.MinSegmentChars = 20
	cfg.Quality.SimilarityMax = 0.6
	cfg.Quality.CJKMin = 20
	cfg.Quality.LatinMin = 40
	cfg.Quality.SmallBatchMax = 3
	return cfg
}
