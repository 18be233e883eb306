package tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xela07ax/agent-watchdog/internal/access"
	"github.com/xela07ax/agent-watchdog/internal/audit"
	"github.com/xela07ax/agent-watchdog/internal/domain"
)

// captureRecorder копит записи аудита для проверок.
type captureRecorder struct {
	records []audit.Record
}

func (r *captureRecorder) Log(rec audit.Record) { r.records = append(r.records, rec) }

func newAccessTool(t *testing.T, portalURL string, onOutcome func(string)) (*ScopedAccessTool, *captureRecorder) {
	t.Helper()
	trail := &captureRecorder{}
	client := access.NewClient(access.Options{
		BaseURL: portalURL,
		AgentID: "agent-test",
		UserID:  "user-test",
	}, zap.NewNop())
	return NewScopedAccessTool(client, "agent-test", trail, onOutcome, zap.NewNop()), trail
}

func TestScopedAccessTool_NoPollReturnsPendingWithURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"status":       "pending",
			"request_id":   "req-1",
			"approval_url": "https://pulse.local/approve/req-1",
		})
	}))
	t.Cleanup(srv.Close)

	var observed string
	tool, trail := newAccessTool(t, srv.URL, func(status string) { observed = status })

	got, err := tool.Execute(context.Background(), json.RawMessage(`{
		"summary": "Research access",
		"allowed_domains": ["api.tavily.com"],
		"poll_until_approved": false
	}`))
	require.NoError(t, err)

	out := got.(domain.ScopedAccessOutcome)
	assert.Equal(t, domain.StatusPending, out.Status)
	assert.Equal(t, "https://pulse.local/approve/req-1", out.ApprovalURL)
	assert.Equal(t, "pending", observed)

	require.Len(t, trail.records, 1)
	assert.Equal(t, audit.KindAccessRequest, trail.records[0].Kind)
	assert.Equal(t, "pending", trail.records[0].Status)
	assert.Equal(t, "req-1", trail.records[0].Payload["request_id"])
}

func TestScopedAccessTool_InvalidPolicySkipsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("portal must not be called for an invalid policy")
	}))
	t.Cleanup(srv.Close)

	tool, trail := newAccessTool(t, srv.URL, nil)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{"summary": "no domains"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidPolicy)
	assert.Empty(t, trail.records)
}

func TestScopedAccessTool_DefaultTTL(t *testing.T) {
	var gotTTL int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Policy domain.ScopedAccessPolicy `json:"policy"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotTTL = req.Policy.TTLSeconds
		json.NewEncoder(w).Encode(map[string]string{
			"status":       "pending",
			"request_id":   "req-2",
			"approval_url": "https://pulse.local/approve/req-2",
		})
	}))
	t.Cleanup(srv.Close)

	tool, _ := newAccessTool(t, srv.URL, nil)

	_, err := tool.Execute(context.Background(), json.RawMessage(`{
		"summary": "s",
		"allowed_domains": ["api.tavily.com"],
		"poll_until_approved": false
	}`))
	require.NoError(t, err)
	assert.Equal(t, 600, gotTTL)
}
