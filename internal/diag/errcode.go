package diag

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"dsgen/pkg/contract"
)

// Code 是最小错误分类代码。
// 仅用于日志/指标汇总，与退出码解耦。
type Code string

const (
	CodeUnknown   Code = "unknown"
	CodeNetwork   Code = "network"
	CodeProtocol  Code = "protocol"
	CodeInvariant Code = "invariant"
	CodeBudget    Code = "budget"
	CodeCancel    Code = "cancel"
	CodeIO        Code = "io"
	// CodeModel: 端点不认识所请求模型（404 类）。单列以便上层给出针对性指引。
	CodeModel Code = "model"
)

// Classify 将错误归为最小分类。
// 说明：仅依赖哨兵错误与标准库错误类型，不做字符串匹配。
func Classify(err error) Code {
	if err == nil {
		return CodeUnknown
	}
	// 取消/超时优先
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return CodeCancel
	}
	// 模型身份不匹配优先于一般网络分类
	if errors.Is(err, contract.ErrModelUnknown) {
		return CodeModel
	}
	if errors.Is(err, contract.ErrRateLimited) {
		return CodeBudget
	}
	// 协议/解码/恢复失败
	if errors.Is(err, contract.ErrResponseInvalid) || errors.Is(err, contract.ErrNoRecovery) {
		return CodeProtocol
	}
	// 不变量/输入
	if errors.Is(err, contract.ErrInvalidInput) ||
		errors.Is(err, contract.ErrNoSegments) ||
		errors.Is(err, contract.ErrNoAccepted) {
		return CodeInvariant
	}
	// I/O
	var perr *os.PathError
	if errors.As(err, &perr) {
		return CodeIO
	}
	// 网络（连接/超时等）
	var nerr net.Error
	if errors.As(err, &nerr) {
		return CodeNetwork
	}
	return CodeUnknown
}

// NowUTC 返回 RFC3339 UTC 时间字符串（用于结构化日志字段 ts）。
func NowUTC() string { return time.Now().UTC().Format(time.RFC3339) }
