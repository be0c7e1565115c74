// Package mock 是离线演练用的生成端点：按配置的响应序列循环返回，
// 不发任何网络请求。
package mock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"dsgen/pkg/contract"
)

// Options: 预置响应序列，循环使用；为空则返回内置问答样例。
type Options struct {
	Responses []string `json:"responses"`
}

const defaultResponse = `{"question": "这段文本的核心内容是什么？", "answer": "它描述了离线演练端点返回的固定样例。"}`

type Client struct {
	mu        sync.Mutex
	responses []string
	next      int
}

// New 从原样 JSON 选项构造客户端。
func New(raw json.RawMessage) (contract.GenClient, error) {
	var opts Options
	if len(raw) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&opts); err != nil {
			return nil, fmt.Errorf("mock options: %v: %w", err, contract.ErrInvalidInput)
		}
	}
	if len(opts.Responses) == 0 {
		opts.Responses = []string{defaultResponse}
	}
	return &Client{responses: opts.Responses}, nil
}

func (c *Client) Invoke(ctx context.Context, _ contract.GenRequest) (contract.GenResponse, error) {
	if err := ctx.Err(); err != nil {
		return contract.GenResponse{}, err
	}
	c.mu.Lock()
	resp := c.responses[c.next%len(c.responses)]
	c.next++
	c.mu.Unlock()
	return contract.GenResponse{Content: resp, DoneReason: "stop"}, nil
}
