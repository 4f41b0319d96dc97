package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"

	"github.com/tidwall/gjson"

	"github.com/evalops/agentbatch/domain"
	"github.com/evalops/agentbatch/internal/tools"
	"github.com/evalops/agentbatch/policy"
)

// functionTitles are the display titles for conversation tool bubbles.
var functionTitles = map[string]string{
	"fetch_weather":     "☁️ fetching weather",
	"fetch_datetime":    "🕒 fetching datetime",
	"fetch_stock_price": "📈 fetching financial info",
	"send_email":        "✉️ sending mail",
	"document_search":   "📄 searching docs",
	"web_search":        "🔍 searching the web",
}

func titleFor(name string) string {
	if title, ok := functionTitles[name]; ok {
		return title
	}
	return "🛠 " + name
}

// dispatch processes one requires_action payload and returns the outputs to
// submit. Every function-type call gets exactly one output, error text
// included; ids already in processed are skipped so a re-delivered payload is
// never executed twice.
func (o *Orchestrator) dispatch(ctx context.Context, res *TurnResult, calls []domain.ToolCall, processed map[string]bool) []domain.ToolOutput {
	outputs := make([]domain.ToolOutput, 0, len(calls))
	for _, call := range calls {
		if processed[call.ID] {
			log.Printf("skipping already processed tool call %s", call.ID)
			continue
		}
		processed[call.ID] = true

		switch call.Type {
		case domain.ToolCallTypeFunction:
			output := o.executeFunction(ctx, res, call)
			outputs = append(outputs, domain.ToolOutput{ToolCallID: call.ID, Output: output})
		default:
			o.recordManagedCall(res, call)
		}
	}
	return outputs
}

// executeFunction resolves, normalizes and runs a function call, returning the
// output text. Failures are converted to human-readable error strings: the run
// must always receive an output for every call it issued or it stalls.
func (o *Orchestrator) executeFunction(ctx context.Context, res *TurnResult, call domain.ToolCall) string {
	if call.Function == nil {
		return fmt.Sprintf("malformed function call %s: no function payload", call.ID)
	}
	name := call.Function.Name
	args := json.RawMessage(call.Function.Arguments)
	if normalize, ok := o.normalizers[name]; ok {
		args = normalize(args)
	}

	res.Entries = append(res.Entries, domain.ConversationEntry{
		Role:    domain.RoleAgent,
		Content: string(args),
		Metadata: &domain.EntryMetadata{
			Title:  titleFor(name),
			Status: "pending",
			ID:     "tool-" + call.ID,
		},
	})

	if o.policyEngine != nil {
		var argsMap map[string]any
		_ = json.Unmarshal(args, &argsMap)
		decision, reason, err := o.policyEngine.Evaluate(ctx, map[string]any{
			"tool_name": name,
			"args":      argsMap,
		})
		if err != nil {
			return fmt.Sprintf("policy evaluation error for %s: %v", name, err)
		}
		if decision == policy.DecisionBlock {
			if reason == "" {
				reason = "not permitted"
			}
			return fmt.Sprintf("tool call %s blocked by policy: %s", name, reason)
		}
	}

	output, err := o.registry.Execute(ctx, name, args)
	switch {
	case err == nil:
		return output
	case errors.Is(err, tools.ErrNotFound):
		return fmt.Sprintf("function %s not found in available functions", name)
	case errors.Is(err, tools.ErrInvalidArguments):
		return fmt.Sprintf("invalid arguments for function %s: %v", name, err)
	default:
		return fmt.Sprintf("error executing function %s: %v", name, err)
	}
}

// recordManagedCall logs a provider-executed tool call. For web searches the
// human-readable query is extracted from the request-URL metadata.
func (o *Orchestrator) recordManagedCall(res *TurnResult, call domain.ToolCall) {
	content := "Search completed"
	if call.Type == domain.ToolCallTypeWebSearch && len(call.Details) > 0 {
		content = extractSearchQuery(call.Details)
	}
	res.Entries = append(res.Entries, domain.ConversationEntry{
		Role:    domain.RoleAgent,
		Content: content,
		Metadata: &domain.EntryMetadata{
			Title:  titleFor(string(call.Type)),
			Status: "pending",
			ID:     "tool-" + call.ID,
		},
	})
}

var searchQueryPattern = regexp.MustCompile(`q="([^"]+)"`)

// extractSearchQuery pulls the query string out of a search call's provider
// metadata. The metadata is usually a JSON object with a request_url field;
// when neither the field nor the query pattern is present the raw metadata is
// returned as-is.
func extractSearchQuery(details json.RawMessage) string {
	raw := string(details)
	if v := gjson.GetBytes(details, "request_url"); v.Exists() {
		raw = v.String()
	}
	if m := searchQueryPattern.FindStringSubmatch(raw); m != nil {
		return m[1]
	}
	return raw
}
