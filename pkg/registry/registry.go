// Package registry 维护插件名到工厂的显式映射。
// 新插件在此登记，配置里用名字引用。
package registry

import (
	"encoding/json"
	"fmt"
	"sort"

	"dsgen/pkg/contract"
	"dsgen/plugins/genclient/mock"
	"dsgen/plugins/genclient/ollama"
)

// GenClientFactory 按原始 JSON 配置构造生成端点客户端。
type GenClientFactory func(raw json.RawMessage) (contract.GenClient, error)

var genClients = map[string]GenClientFactory{
	"ollama": ollama.New,
	"mock":   mock.New,
}

// NewGenClient 按名字构造生成端点客户端。
func NewGenClient(name string, raw json.RawMessage) (contract.GenClient, error) {
	f, ok := genClients[name]
	if !ok {
		return nil, fmt.Errorf("registry: 未登记的生成端点 %q（可用：%v）: %w",
			name, GenClientNames(), contract.ErrInvalidInput)
	}
	return f(raw)
}

// GenClientNames 返回已登记的端点名（有序）。
func GenClientNames() []string {
	names := make([]string, 0, len(genClients))
	for n := range genClients {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
