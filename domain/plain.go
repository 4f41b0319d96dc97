package domain

import "time"

// The ToPlain methods collapse each record type to its underlying field mapping
// for the serialized transcript. The set of types is closed, so the converter
// stays exhaustive without a reflective encoder.

// ToPlain returns the message as a plain JSON-compatible mapping. The derived
// tool-call list is merged in only when non-empty.
func (m *Message) ToPlain() map[string]any {
	content := make([]map[string]any, 0, len(m.Content))
	for _, p := range m.Content {
		content = append(content, p.ToPlain())
	}
	out := map[string]any{
		"id":         m.ID,
		"thread_id":  m.ThreadID,
		"role":       string(m.Role),
		"content":    content,
		"created_at": m.CreatedAt.UTC().Format(time.RFC3339),
	}
	if m.RunID != "" {
		out["run_id"] = m.RunID
	}
	if len(m.ToolCalls) > 0 {
		calls := make([]map[string]any, 0, len(m.ToolCalls))
		for _, tc := range m.ToolCalls {
			calls = append(calls, tc.ToPlain())
		}
		out["tool_calls"] = calls
	}
	return out
}

// ToPlain returns the content part as a plain mapping.
func (p ContentPart) ToPlain() map[string]any {
	return map[string]any{
		"type": p.Type,
		"text": map[string]any{"value": p.Text.Value},
	}
}

// ToPlain returns the tool call as a plain mapping.
func (tc ToolCall) ToPlain() map[string]any {
	out := map[string]any{
		"id":   tc.ID,
		"type": string(tc.Type),
	}
	if tc.Function != nil {
		out["function"] = map[string]any{
			"name":      tc.Function.Name,
			"arguments": tc.Function.Arguments,
		}
	}
	if len(tc.Details) > 0 {
		out["details"] = string(tc.Details)
	}
	return out
}

// ToPlain returns the run step as a plain mapping.
func (s RunStep) ToPlain() map[string]any {
	out := map[string]any{
		"id":     s.ID,
		"run_id": s.RunID,
		"type":   string(s.Type),
	}
	details := map[string]any{}
	if s.StepDetails.MessageCreation != nil {
		details["message_creation"] = map[string]any{
			"message_id": s.StepDetails.MessageCreation.MessageID,
		}
	}
	if len(s.StepDetails.ToolCalls) > 0 {
		calls := make([]map[string]any, 0, len(s.StepDetails.ToolCalls))
		for _, tc := range s.StepDetails.ToolCalls {
			calls = append(calls, tc.ToPlain())
		}
		details["tool_calls"] = calls
	}
	out["step_details"] = details
	return out
}
