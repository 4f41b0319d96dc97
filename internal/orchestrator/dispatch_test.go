package orchestrator

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalops/agentbatch/domain"
	"github.com/evalops/agentbatch/internal/tools"
	"github.com/evalops/agentbatch/policy"
)

func newDispatchOrchestrator(t *testing.T, engine *policy.Engine) *Orchestrator {
	t.Helper()
	return New(nil, tools.NewEnterpriseRegistry(), engine, "agent_test", TurnPolicy{})
}

func functionCall(id, name, args string) domain.ToolCall {
	return domain.ToolCall{
		ID:       id,
		Type:     domain.ToolCallTypeFunction,
		Function: &domain.FunctionCall{Name: name, Arguments: args},
	}
}

func TestDispatchProducesOneOutputPerFunctionCall(t *testing.T) {
	o := newDispatchOrchestrator(t, nil)
	res := &TurnResult{}
	processed := make(map[string]bool)

	calls := []domain.ToolCall{
		functionCall("call_1", "fetch_stock_price", `{"symbol":"MSFT"}`),
		functionCall("call_2", "fetch_datetime", `{}`),
	}
	outputs := o.dispatch(context.Background(), res, calls, processed)

	require.Len(t, outputs, 2)
	assert.Equal(t, "call_1", outputs[0].ToolCallID)
	assert.Equal(t, "call_2", outputs[1].ToolCallID)
	assert.Contains(t, outputs[0].Output, "MSFT")
	assert.NotEmpty(t, outputs[1].Output)
}

func TestDispatchSkipsProcessedCalls(t *testing.T) {
	o := newDispatchOrchestrator(t, nil)
	res := &TurnResult{}
	processed := make(map[string]bool)

	calls := []domain.ToolCall{functionCall("call_1", "fetch_datetime", `{}`)}
	first := o.dispatch(context.Background(), res, calls, processed)
	require.Len(t, first, 1)

	// Re-delivery of the same payload on a later poll executes nothing.
	second := o.dispatch(context.Background(), res, calls, processed)
	assert.Empty(t, second)
}

func TestDispatchUnknownFunctionYieldsErrorOutput(t *testing.T) {
	o := newDispatchOrchestrator(t, nil)
	res := &TurnResult{}

	outputs := o.dispatch(context.Background(), res,
		[]domain.ToolCall{functionCall("call_1", "reboot_datacenter", `{}`)},
		make(map[string]bool))

	require.Len(t, outputs, 1)
	assert.Equal(t, "function reboot_datacenter not found in available functions", outputs[0].Output)
}

func TestDispatchMalformedArgumentsYieldErrorOutput(t *testing.T) {
	o := newDispatchOrchestrator(t, nil)
	res := &TurnResult{}

	outputs := o.dispatch(context.Background(), res,
		[]domain.ToolCall{functionCall("call_1", "fetch_stock_price", `{"symbol":`)},
		make(map[string]bool))

	require.Len(t, outputs, 1)
	assert.Contains(t, outputs[0].Output, "invalid arguments for function fetch_stock_price")
}

func TestDispatchNormalizesWeatherLocation(t *testing.T) {
	o := newDispatchOrchestrator(t, nil)
	res := &TurnResult{}

	outputs := o.dispatch(context.Background(), res,
		[]domain.ToolCall{functionCall("call_1", "fetch_weather", `{"location":"here"}`)},
		make(map[string]bool))

	require.Len(t, outputs, 1)
	assert.Contains(t, outputs[0].Output, "Seattle")

	// The pending conversation entry carries the normalized arguments.
	require.Len(t, res.Entries, 1)
	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Entries[0].Content), &args))
	assert.Equal(t, "Seattle", args["location"])
	assert.Equal(t, "pending", res.Entries[0].Metadata.Status)
	assert.Equal(t, "tool-call_1", res.Entries[0].Metadata.ID)
	assert.Equal(t, "☁️ fetching weather", res.Entries[0].Metadata.Title)
}

func TestDispatchPolicyBlock(t *testing.T) {
	engine, err := policy.NewEngine(context.Background(), `
package tool_policy

default decision = "allow"

decision = "block" if {
	input.tool_name == "send_email"
}
`)
	require.NoError(t, err)

	o := newDispatchOrchestrator(t, engine)
	res := &TurnResult{}

	outputs := o.dispatch(context.Background(), res, []domain.ToolCall{
		functionCall("call_1", "send_email", `{"recipient":"a@b.co","subject":"s","body":"b"}`),
		functionCall("call_2", "fetch_datetime", `{}`),
	}, make(map[string]bool))

	require.Len(t, outputs, 2)
	assert.Contains(t, outputs[0].Output, "blocked by policy")
	assert.NotContains(t, outputs[1].Output, "blocked")
}

func TestDispatchManagedWebSearch(t *testing.T) {
	o := newDispatchOrchestrator(t, nil)
	res := &TurnResult{}

	details, _ := json.Marshal(map[string]string{
		"request_url": `https://search.example.com/search?q="rain in seattle tomorrow"&mkt=en-US`,
	})
	calls := []domain.ToolCall{{
		ID:      "call_ws",
		Type:    domain.ToolCallTypeWebSearch,
		Details: details,
	}}

	outputs := o.dispatch(context.Background(), res, calls, make(map[string]bool))
	assert.Empty(t, outputs, "managed calls produce no outputs")

	require.Len(t, res.Entries, 1)
	assert.Equal(t, "rain in seattle tomorrow", res.Entries[0].Content)
	assert.Equal(t, "🔍 searching the web", res.Entries[0].Metadata.Title)
}

func TestDispatchManagedDocumentSearch(t *testing.T) {
	o := newDispatchOrchestrator(t, nil)
	res := &TurnResult{}

	calls := []domain.ToolCall{{ID: "call_ds", Type: domain.ToolCallTypeDocumentSearch}}
	outputs := o.dispatch(context.Background(), res, calls, make(map[string]bool))

	assert.Empty(t, outputs)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "Search completed", res.Entries[0].Content)
	assert.Equal(t, "📄 searching docs", res.Entries[0].Metadata.Title)
}

func TestExtractSearchQueryFallbacks(t *testing.T) {
	// No query pattern in the URL: fall back to the extracted URL.
	details, _ := json.Marshal(map[string]string{"request_url": "https://example.com/search"})
	assert.Equal(t, "https://example.com/search", extractSearchQuery(details))

	// Not JSON at all: fall back to the raw metadata string.
	raw := json.RawMessage(`plain metadata`)
	assert.Equal(t, "plain metadata", extractSearchQuery(raw))
}
