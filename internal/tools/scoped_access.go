package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/access"
	"github.com/xela07ax/agent-watchdog/internal/audit"
	"github.com/xela07ax/agent-watchdog/internal/domain"
	"github.com/xela07ax/agent-watchdog/internal/infra"
)

// ScopedAccessTool — агентская обертка клиента авторизации.
// Агент зовет его ПЕРВЫМ, когда задача требует внешних API.
type ScopedAccessTool struct {
	client  *access.Client
	agentID string
	trail   audit.Recorder
	logger  *zap.Logger

	// Хук для метрик исходов; nil — молча пропускаем
	onOutcome func(status string)
}

func NewScopedAccessTool(client *access.Client, agentID string, trail audit.Recorder, onOutcome func(status string), logger *zap.Logger) *ScopedAccessTool {
	return &ScopedAccessTool{
		client:    client,
		agentID:   agentID,
		trail:     trail,
		onOutcome: onOutcome,
		logger:    logger.Named("scoped-access-tool"),
	}
}

func (t *ScopedAccessTool) Name() string { return "request_scoped_access" }

func (t *ScopedAccessTool) Description() string {
	return "Request Scoped Access (user approval) from the Pulse portal before calling external APIs. " +
		"Returns approval_url for the user to open; if poll_until_approved is true, waits until approved and returns session_handle."
}

type scopedAccessArgs struct {
	Summary           string   `json:"summary"`
	Description       string   `json:"description"`
	AllowedDomains    []string `json:"allowed_domains"`
	TTLSeconds        int      `json:"ttl_seconds"`
	PollUntilApproved *bool    `json:"poll_until_approved"` // default true
}

// Execute собирает политику и гоняет протокол. Исход всегда значение
// ScopedAccessOutcome; невалидная политика — ошибка вызывающего,
// сеть при этом не трогается.
func (t *ScopedAccessTool) Execute(ctx context.Context, args json.RawMessage) (any, error) {
	var in scopedAccessArgs
	if err := json.Unmarshal(args, &in); err != nil {
		return nil, fmt.Errorf("invalid arguments: %w", err)
	}

	ttl := domain.DefaultGrantTTL
	if in.TTLSeconds > 0 {
		ttl = time.Duration(in.TTLSeconds) * time.Second
	}
	poll := true
	if in.PollUntilApproved != nil {
		poll = *in.PollUntilApproved
	}

	policy, err := domain.NewScopedAccessPolicy(in.Summary, in.Description, in.AllowedDomains, ttl)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	outcome := t.client.RequestAccess(ctx, policy, poll)

	t.trail.Log(audit.Record{
		ID:      uuid.New().String(),
		TraceID: infra.TraceIDFrom(ctx),
		AgentID: t.agentID,
		Kind:    audit.KindAccessRequest,
		Payload: map[string]interface{}{
			"summary":    policy.Summary,
			"domains":    policy.AllowedDomains,
			"request_id": outcome.RequestID,
		},
		Status:     string(outcome.Status),
		DurationMs: time.Since(start).Milliseconds(),
		Timestamp:  start,
	})

	if t.onOutcome != nil {
		t.onOutcome(string(outcome.Status))
	}
	t.logger.Info("scoped access outcome",
		zap.String("status", string(outcome.Status)),
		zap.String("request_id", outcome.RequestID),
	)
	return outcome, nil
}
