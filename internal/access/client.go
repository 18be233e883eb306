package access

/*
Файл client.go реализует клиентскую сторону протокола Scoped Access
против портала одобрений (Pulse).

State Machine:
  Submitted -> {Pending -> [poll]* -> {Approved, Denied, TimedOut}} | Approved | Denied | Error
Error достижим из любого состояния при падении транспорта/протокола,
из Error переходов нет.

Ключевые свойства:
- Error-as-value: клиент никогда не отдает error за свою границу.
  Любой путь (включая сетевой сбой) упаковывается в ScopedAccessOutcome,
  вызывающий обрабатывает все исходы единообразно.
- Одобрение — human-in-the-loop и асинхронно. Опрос с жестким дедлайном
  не блокируется навечно, при этом терпит eventual consistency портала:
  approved может стать видимым раньше, чем появится session_handle,
  поэтому терминальным считается только approved + handle.
- Каждый submit и каждый poll — независимый HTTP-запрос, никаких
  постоянных соединений и разделяемого состояния.
*/

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/domain"
)

const (
	DefaultPollInterval = 2 * time.Second
	DefaultPollDeadline = 300 * time.Second
)

// Options настраивают клиент. Нулевые поля заменяются дефолтами.
type Options struct {
	BaseURL      string
	AgentID      string
	UserID       string
	PollInterval time.Duration
	PollDeadline time.Duration
	HTTPClient   *http.Client
	Clock        Clock
}

type Client struct {
	baseURL      string
	agentID      string
	userID       string
	pollInterval time.Duration
	pollDeadline time.Duration
	http         *http.Client
	clock        Clock
	logger       *zap.Logger
}

func NewClient(opts Options, logger *zap.Logger) *Client {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.PollDeadline <= 0 {
		opts.PollDeadline = DefaultPollDeadline
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if opts.Clock == nil {
		opts.Clock = NewRealClock()
	}
	return &Client{
		baseURL:      opts.BaseURL,
		agentID:      opts.AgentID,
		userID:       opts.UserID,
		pollInterval: opts.PollInterval,
		pollDeadline: opts.PollDeadline,
		http:         opts.HTTPClient,
		clock:        opts.Clock,
		logger:       logger.Named("access"),
	}
}

// Wire-формат портала
type submitRequest struct {
	AgentID string                    `json:"agent_id"`
	UserID  string                    `json:"user_id"`
	Policy  domain.ScopedAccessPolicy `json:"policy"`
}

type submitResponse struct {
	Status      string `json:"status"`
	RequestID   string `json:"request_id"`
	ApprovalURL string `json:"approval_url"`
	Message     string `json:"message"`
}

type pollResponse struct {
	Status        string `json:"status"`
	SessionHandle string `json:"session_handle"`
	Reason        string `json:"reason"`
}

// RequestAccess выполняет полный протокол: submit + (опционально) опрос.
// Повторной отправки submit при сбое нет — решение о ретрае за вызывающим.
func (c *Client) RequestAccess(ctx context.Context, policy domain.ScopedAccessPolicy, pollUntilApproved bool) domain.ScopedAccessOutcome {
	sub, outcome := c.submit(ctx, policy)
	if outcome != nil {
		return *outcome
	}

	if !pollUntilApproved {
		// Не-терминальный pending: вызывающий показывает approval_url
		// человеку и опрашивает сам, когда сочтет нужным.
		return domain.ScopedAccessOutcome{
			Status:      domain.StatusPending,
			RequestID:   sub.RequestID,
			ApprovalURL: sub.ApprovalURL,
			Message:     "User must open approval_url in a browser and approve. Then poll GET /request-scoped-access/" + sub.RequestID,
		}
	}

	c.logger.Info("approval required, polling portal",
		zap.String("request_id", sub.RequestID),
		zap.String("approval_url", sub.ApprovalURL),
	)

	return c.poll(ctx, sub)
}

// submit регистрирует заявку. Второе значение не-nil, если протокол
// завершился прямо на этом шаге (синхронный ответ или ошибка).
func (c *Client) submit(ctx context.Context, policy domain.ScopedAccessPolicy) (domain.ScopedAccessRequest, *domain.ScopedAccessOutcome) {
	body, err := json.Marshal(submitRequest{
		AgentID: c.agentID,
		UserID:  c.userID,
		Policy:  policy,
	})
	if err != nil {
		return domain.ScopedAccessRequest{}, errOutcome("", "", fmt.Sprintf("marshal policy: %v", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/request-scoped-access", bytes.NewReader(body))
	if err != nil {
		return domain.ScopedAccessRequest{}, errOutcome("", "", fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.ScopedAccessRequest{}, errOutcome("", "", fmt.Sprintf("portal request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return domain.ScopedAccessRequest{}, errOutcome("", "", fmt.Sprintf("portal request failed: %d %s", resp.StatusCode, string(raw)))
	}

	var sub submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return domain.ScopedAccessRequest{}, errOutcome("", "", fmt.Sprintf("decode portal response: %v", err))
	}

	// Портал мог решить синхронно, без pending — тогда опрашивать нечего.
	if sub.Status != string(domain.StatusPending) {
		status := domain.AccessStatus(sub.Status)
		if status != domain.StatusApproved && status != domain.StatusDenied {
			status = domain.StatusError
		}
		return domain.ScopedAccessRequest{}, &domain.ScopedAccessOutcome{
			Status:      status,
			RequestID:   sub.RequestID,
			ApprovalURL: sub.ApprovalURL,
			Message:     sub.Message,
		}
	}

	if sub.RequestID == "" || sub.ApprovalURL == "" {
		return domain.ScopedAccessRequest{}, errOutcome(sub.RequestID, sub.ApprovalURL, "portal returned pending without request_id/approval_url")
	}

	return domain.ScopedAccessRequest{RequestID: sub.RequestID, ApprovalURL: sub.ApprovalURL}, nil
}

// poll крутит цикл опроса с фиксированным интервалом и абсолютным
// дедлайном от старта цикла. Не-2xx на poll — transient, цикл живет.
func (c *Client) poll(ctx context.Context, sub domain.ScopedAccessRequest) domain.ScopedAccessOutcome {
	deadline := c.clock.Now().Add(c.pollDeadline)

	for c.clock.Now().Before(deadline) {
		if err := c.clock.Sleep(ctx, c.pollInterval); err != nil {
			// Потребитель отключился: опрос бросаем, грант портала
			// сам истечет по своему ttl_seconds.
			return domain.ScopedAccessOutcome{
				Status:      domain.StatusError,
				RequestID:   sub.RequestID,
				ApprovalURL: sub.ApprovalURL,
				Message:     fmt.Sprintf("polling abandoned: %v", err),
			}
		}

		st, ok := c.pollOnce(ctx, sub.RequestID)
		if !ok {
			continue
		}

		switch {
		case st.Status == string(domain.StatusApproved) && st.SessionHandle != "":
			// Только оба условия сразу: approved без handle — это
			// незаполненный грант, продолжаем опрос.
			return domain.ScopedAccessOutcome{
				Status:        domain.StatusApproved,
				RequestID:     sub.RequestID,
				ApprovalURL:   sub.ApprovalURL,
				SessionHandle: st.SessionHandle,
				Message:       "Scoped Access granted.",
			}
		case st.Status == string(domain.StatusDenied):
			reason := st.Reason
			if reason == "" {
				reason = "User denied the request."
			}
			return domain.ScopedAccessOutcome{
				Status:      domain.StatusDenied,
				RequestID:   sub.RequestID,
				ApprovalURL: sub.ApprovalURL,
				Message:     reason,
			}
		}
		// pending или неизвестный статус — ждем дальше
	}

	c.logger.Warn("approval polling deadline elapsed", zap.String("request_id", sub.RequestID))
	return domain.ScopedAccessOutcome{
		Status:      domain.StatusTimedOut,
		RequestID:   sub.RequestID,
		ApprovalURL: sub.ApprovalURL,
		Message:     "Timed out waiting for approval. Ask the user to open the approval URL and approve.",
	}
}

// pollOnce делает один GET статуса. ok=false — transient-сбой этой итерации.
func (c *Client) pollOnce(ctx context.Context, requestID string) (pollResponse, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/request-scoped-access/"+requestID, nil)
	if err != nil {
		return pollResponse{}, false
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("poll attempt failed", zap.Error(err))
		return pollResponse{}, false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return pollResponse{}, false
	}

	var st pollResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return pollResponse{}, false
	}
	return st, true
}

func errOutcome(requestID, approvalURL, msg string) *domain.ScopedAccessOutcome {
	return &domain.ScopedAccessOutcome{
		Status:      domain.StatusError,
		RequestID:   requestID,
		ApprovalURL: approvalURL,
		Message:     msg,
	}
}
