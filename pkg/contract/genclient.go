package contract

import (
	"context"
	"errors"
	"strings"
)

// GenRequest: 对生成端点的单次请求（与具体实现解耦的最小形状）。
type GenRequest struct {
	Model           string
	SystemPrompt    string
	UserMessage     string
	Temperature     float64
	MaxOutputTokens int
}

// GenResponse: 生成端点的原始响应载荷。
// Content 为空时 Thinking 可作为结构化输出的后备来源。
type GenResponse struct {
	Content    string
	Thinking   string
	DoneReason string
}

// Text 返回可用于解析的响应文本：优先 Content，其次 Thinking。
func (r GenResponse) Text() string {
	if s := strings.TrimSpace(r.Content); s != "" {
		return s
	}
	return strings.TrimSpace(r.Thinking)
}

// GenClient: 与生成端点交互的最小契约。
// 单次调用、同步返回；应尊重 ctx 取消/超时并及时释放资源。
type GenClient interface {
	Invoke(ctx context.Context, req GenRequest) (GenResponse, error)
}

// UpstreamError 承载 HTTP 上游错误的最小诊断信息。
type UpstreamError interface {
	error
	UpstreamStatus() int
	UpstreamMessage() string
}

// 最小错误分类（用于上层策略判定）。
var (
	ErrRateLimited     = errors.New("rate limited")
	ErrResponseInvalid = errors.New("response invalid")
	ErrInvalidInput    = errors.New("invalid input")
	// ErrModelUnknown: 端点不认识所请求的模型（404 类）。
	// 与一般网络错误区分：它指示模型路径/身份配置不匹配，而非服务暂不可达。
	ErrModelUnknown = errors.New("model unknown to endpoint")
	// ErrNoRecovery: 所有恢复层级均未能从响应中提取结构化对象。
	ErrNoRecovery = errors.New("no structured object recovered")
	// ErrNoSegments: 清单中没有任何符合最小长度要求的片段。
	ErrNoSegments = errors.New("no qualifying segments")
	// ErrNoAccepted: 运行结束时没有任何样本被接受。
	ErrNoAccepted = errors.New("no accepted examples")
)
