// Package tools содержит реестр инструментов агента и встроенные
// инструменты: запрос Scoped Access, веб-поиск, граф знаний, сценарии.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
)

// Tool — исполняемый инструмент. Execute возвращает JSON-сериализуемый
// результат; «мягкие» отказы (нет ключа, сервис недоступен) инструменты
// оформляют в результат с success=false, а не в error — error валит
// вызов целиком.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, args json.RawMessage) (any, error)
}

// Registry держит все зарегистрированные инструменты.
type Registry struct {
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names — отсортированный список (для логов и подсказок).
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for n := range r.tools {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Execute находит инструмент и выполняет его.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	t, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool %s is not registered", name)
	}
	return t.Execute(ctx, args)
}
