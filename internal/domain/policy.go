package domain

import (
	"errors"
	"fmt"
	"time"
)

// DefaultGrantTTL — срок жизни гранта по умолчанию (как в портале Pulse).
const DefaultGrantTTL = 600 * time.Second

var ErrInvalidPolicy = errors.New("invalid scoped access policy")

// AllowedAPI — одно разрешающее правило для внешнего API.
// Каждый домен разворачивается в wildcard-правило по path и method:
// портал показывает человеку домен, а не конкретные маршруты.
type AllowedAPI struct {
	Domain      string `json:"domain"`
	Path        string `json:"path"`
	Method      string `json:"method"`
	Description string `json:"description"`
}

// ScopedAccessPolicy — неизменяемое описание запрашиваемых прав.
// Собирается один раз на запрос и дальше не мутирует.
type ScopedAccessPolicy struct {
	AllowedDomains []string     `json:"allowed_domains"`
	AllowedAPIs    []AllowedAPI `json:"allowed_apis"`
	Summary        string       `json:"summary"`     // Короткий заголовок для экрана одобрения (~40 символов)
	Description    string       `json:"description"` // Развернутое объяснение: что за задача, зачем доступ
	MaxTotalSpend  int          `json:"max_total_spend"`
	MaxPerTx       int          `json:"max_per_tx"`
	TTLSeconds     int          `json:"ttl_seconds"`
}

// NewScopedAccessPolicy валидирует вход и разворачивает домены в правила.
// Ошибка здесь — ошибка вызывающего: никаких сетевых вызовов еще не было.
func NewScopedAccessPolicy(summary, description string, allowedDomains []string, ttl time.Duration) (ScopedAccessPolicy, error) {
	if len(allowedDomains) == 0 {
		return ScopedAccessPolicy{}, fmt.Errorf("%w: allowed_domains is empty", ErrInvalidPolicy)
	}
	if ttl <= 0 {
		return ScopedAccessPolicy{}, fmt.Errorf("%w: ttl must be positive, got %v", ErrInvalidPolicy, ttl)
	}

	apis := make([]AllowedAPI, 0, len(allowedDomains))
	for _, d := range allowedDomains {
		apis = append(apis, AllowedAPI{
			Domain:      d,
			Path:        "*",
			Method:      "*",
			Description: fmt.Sprintf("Access %s", d),
		})
	}

	return ScopedAccessPolicy{
		AllowedDomains: allowedDomains,
		AllowedAPIs:    apis,
		Summary:        summary,
		Description:    description,
		// Spend-лимиты агентом не используются, но обязательны в wire-формате портала
		MaxTotalSpend: 0,
		MaxPerTx:      0,
		TTLSeconds:    int(ttl / time.Second),
	}, nil
}
