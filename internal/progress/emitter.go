// Package progress 实现与宿主外壳（桌面端/CLI 包装层）的事件协议：
// 每行一个 JSON 对象写入给定 Writer（约定为 stdout），逐行即时刷新。
// 事件类型：progress / log / warning / error / complete。
package progress

import (
	"encoding/json"
	"io"
	"sync"
)

// Emitter 是协议的唯一出口。并发安全；写失败后静默降级为 no-op，
// 不得因宿主断开而中断流水线本身。
type Emitter struct {
	mu       sync.Mutex
	enc      *json.Encoder
	disabled bool
}

func NewEmitter(w io.Writer) *Emitter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &Emitter{enc: enc}
}

func (e *Emitter) emit(ev any) {
	if e == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.disabled {
		return
	}
	if err := e.enc.Encode(ev); err != nil {
		e.disabled = true
	}
}

// Progress 报告步进：step/total 为片段计数，desc 为人读状态行。
// step 允许为 0（运行起点），因此不做 omitempty。
func (e *Emitter) Progress(step, total int, desc string) {
	e.emit(struct {
		Type  string `json:"type"`
		Step  int    `json:"step"`
		Total int    `json:"total"`
		Desc  string `json:"desc"`
	}{"progress", step, total, desc})
}

func (e *Emitter) Log(msg string) {
	e.emit(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"log", msg})
}

func (e *Emitter) Warning(msg string) {
	e.emit(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{"warning", msg})
}

// Error 发出致命错误事件。pathMismatch 仅在模型身份（404 类）失败时为 true。
func (e *Emitter) Error(msg string, pathMismatch bool) {
	e.emit(struct {
		Type           string `json:"type"`
		Message        string `json:"message"`
		IsPathMismatch bool   `json:"is_path_mismatch,omitempty"`
	}{"error", msg, pathMismatch})
}

// Complete 发出终态汇总；counts 的键按调用方约定（train_count/failed/segments 等）。
func (e *Emitter) Complete(counts map[string]int) {
	payload := make(map[string]any, len(counts)+1)
	payload["type"] = "complete"
	for k, v := range counts {
		payload[k] = v
	}
	e.emit(payload)
}
