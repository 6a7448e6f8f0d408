package runtime

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mohammad-safakhou/campaigner/config"
	"github.com/mohammad-safakhou/campaigner/internal/campaign"
)

func TestNewLogger(t *testing.T) {
	l, err := NewLogger("debug", true)
	require.NoError(t, err)
	require.NotNil(t, l)

	_, err = NewLogger("chatty", false)
	require.Error(t, err)
}

func TestTelemetryExposesExecutorMetrics(t *testing.T) {
	ctx := context.Background()
	tel, err := SetupTelemetry(ctx, config.TelemetryConfig{ServiceName: "campaigner-test"}, "test")
	require.NoError(t, err)
	defer func() { require.NoError(t, tel.Shutdown(ctx)) }()

	m, err := ExecutorMetrics(tel.Meter())
	require.NoError(t, err)
	call := &campaign.ToolCall{Tool: campaign.ToolLLMText, ID: "c1"}
	m.RetryCounter(ctx, call, 2)
	m.Duration(ctx, call, true, 250*time.Millisecond)

	rec := httptest.NewRecorder()
	tel.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), "campaign_tool_call_retries_total")
	require.Contains(t, string(body), "campaign_tool_call_duration_seconds")
	require.Contains(t, string(body), `tool="llm_text"`)
}
