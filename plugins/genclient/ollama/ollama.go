package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"dsgen/pkg/contract"
)

// Options: 最小必需配置。
type Options struct {
	BaseURL        string `json:"base_url"`        // 例如 http://localhost:11434
	EndpointPath   string `json:"endpoint_path"`   // 覆盖默认 /api/chat；可为完整 URL（以 http 开头）
	TimeoutSeconds int    `json:"timeout_seconds"` // 单次请求超时（秒），本地推理较慢需放宽
}

func (o *Options) defaults() {
	if o.BaseURL == "" {
		o.BaseURL = "http://localhost:11434"
	}
	if o.EndpointPath == "" {
		o.EndpointPath = "/api/chat"
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = 300
	}
}

type Client struct {
	hc  *http.Client
	url string
	do  func(*http.Request) (*http.Response, error)
}

// New 从原样 JSON 选项构造客户端。
func New(raw json.RawMessage) (contract.GenClient, error) {
	var opts Options
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, fmt.Errorf("ollama options: %v: %w", err, contract.ErrInvalidInput)
		}
	}
	opts.defaults()
	hc := &http.Client{Timeout: time.Duration(opts.TimeoutSeconds) * time.Second}
	// 解析 URL：允许 endpoint_path 为完整 URL
	fullURL := opts.EndpointPath
	if !(strings.HasPrefix(fullURL, "http://") || strings.HasPrefix(fullURL, "https://")) {
		base := strings.TrimRight(opts.BaseURL, "/")
		path := strings.TrimLeft(opts.EndpointPath, "/")
		fullURL = base + "/" + path
	}
	return &Client{hc: hc, url: fullURL, do: hc.Do}, nil
}

type olMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
type olOptions struct {
	NumPredict  int     `json:"num_predict,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}
type olReq struct {
	Model    string      `json:"model"`
	Messages []olMessage `json:"messages"`
	Stream   bool        `json:"stream"`
	Think    bool        `json:"think"`
	Options  olOptions   `json:"options"`
}
type olResp struct {
	Message struct {
		Content  string `json:"content"`
		Thinking string `json:"thinking"`
	} `json:"message"`
	DoneReason string `json:"done_reason"`
}

// upstreamError 实现 net.Error，用于将 HTTP 上游 5xx/408 映射为网络类错误，便于分类。
type upstreamError struct {
	status int
	msg    string
}

func (e upstreamError) Error() string           { return fmt.Sprintf("ollama upstream %d: %s", e.status, e.msg) }
func (e upstreamError) Timeout() bool           { return e.status == http.StatusRequestTimeout }
func (e upstreamError) Temporary() bool         { return e.status/100 == 5 }
func (e upstreamError) UpstreamStatus() int     { return e.status }
func (e upstreamError) UpstreamMessage() string { return e.msg }

// Invoke: 单次调用，同步返回。流式与思考链均关闭，换取完整单体响应。
func (c *Client) Invoke(ctx context.Context, r contract.GenRequest) (contract.GenResponse, error) {
	if r.Model == "" {
		return contract.GenResponse{}, fmt.Errorf("ollama: 缺少模型名: %w", contract.ErrInvalidInput)
	}
	body, err := json.Marshal(&olReq{
		Model: r.Model,
		Messages: []olMessage{
			{Role: "system", Content: r.SystemPrompt},
			{Role: "user", Content: r.UserMessage},
		},
		Stream: false,
		Think:  false,
		Options: olOptions{
			NumPredict:  r.MaxOutputTokens,
			Temperature: r.Temperature,
		},
	})
	if err != nil {
		return contract.GenResponse{}, fmt.Errorf("encode: %v: %w", err, contract.ErrInvalidInput)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return contract.GenResponse{}, fmt.Errorf("new request: %v: %w", err, contract.ErrInvalidInput)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		// http.Client 自身超时也会匹配 DeadlineExceeded，但此时 ctx.Err()
		// 为 nil；只有调用方 ctx 真正出错时才替换为 ctx.Err()。
		if cerr := ctx.Err(); cerr != nil &&
			(errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return contract.GenResponse{}, cerr
		}
		return contract.GenResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return contract.GenResponse{}, contract.ErrRateLimited
	}
	if resp.StatusCode/100 != 2 {
		// 读取少量响应体辅助定位
		slurp, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		msg := strings.TrimSpace(string(slurp))
		// 分类：404 为模型未知；408/5xx 为网络/上游问题；其余 4xx 视为输入无效
		if resp.StatusCode == http.StatusNotFound {
			return contract.GenResponse{}, fmt.Errorf("ollama upstream 404: %s: %w", msg, contract.ErrModelUnknown)
		}
		if resp.StatusCode == http.StatusRequestTimeout || resp.StatusCode/100 == 5 {
			return contract.GenResponse{}, upstreamError{status: resp.StatusCode, msg: msg}
		}
		return contract.GenResponse{}, fmt.Errorf("ollama upstream %d: %w", resp.StatusCode, contract.ErrInvalidInput)
	}
	var or olResp
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&or); err != nil {
		return contract.GenResponse{}, fmt.Errorf("decode: %w", contract.ErrResponseInvalid)
	}
	return contract.GenResponse{
		Content:    or.Message.Content,
		Thinking:   or.Message.Thinking,
		DoneReason: or.DoneReason,
	}, nil
}
