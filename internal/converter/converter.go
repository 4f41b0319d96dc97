// Package converter reconstructs evaluation-ready transcripts from the run
// service's stored history. The service keeps tool-call association at the
// run-step level, not on messages; this package reattaches it so a downstream
// evaluator sees one self-contained record per model turn.
package converter

import (
	"context"
	"fmt"

	"github.com/evalops/agentbatch/domain"
)

// HistoryService is the slice of the run service client the converter needs.
type HistoryService interface {
	ListMessages(ctx context.Context, threadID string) ([]domain.Message, error)
	ListRunSteps(ctx context.Context, threadID, runID string) ([]domain.RunStep, error)
}

// Converter normalizes thread history into flat transcript records.
type Converter struct {
	svc HistoryService
}

// New creates a converter over the given history source.
func New(svc HistoryService) *Converter {
	return &Converter{svc: svc}
}

// Result is the normalized transcript. FilterMatched reports whether a
// filterRunID matched any agent message; when false with a filter set, Records
// holds the full unfiltered list (documented fallback, observable to callers).
type Result struct {
	Records       []map[string]any
	FilterMatched bool
}

// Convert fetches the thread's messages in service order, attaches each agent
// message's tool calls from its run's steps, and returns the serialized
// transcript. With filterRunID set, the result is the suffix starting at the
// last agent message produced by that run: everything from the run's answer
// onward counts as the run's contribution.
func (c *Converter) Convert(ctx context.Context, threadID, filterRunID string) (*Result, error) {
	messages, err := c.svc.ListMessages(ctx, threadID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch thread messages: %w", err)
	}

	lastMatch := -1
	for i := range messages {
		msg := &messages[i]
		if msg.Role != domain.RoleAgent {
			continue
		}
		if filterRunID != "" && msg.RunID != filterRunID {
			continue
		}
		if filterRunID != "" {
			lastMatch = i
		}
		calls, err := c.toolCallsForRun(ctx, threadID, msg.RunID)
		if err != nil {
			return nil, err
		}
		msg.ToolCalls = calls
	}

	out := messages
	matched := false
	if filterRunID != "" && lastMatch >= 0 {
		out = messages[lastMatch:]
		matched = true
	}

	records := make([]map[string]any, 0, len(out))
	for i := range out {
		records = append(records, out[i].ToPlain())
	}
	return &Result{Records: records, FilterMatched: matched}, nil
}

// toolCallsForRun accumulates the tool calls across a run's steps.
// message_creation steps only identify which message the run produced and
// carry no tool calls.
func (c *Converter) toolCallsForRun(ctx context.Context, threadID, runID string) ([]domain.ToolCall, error) {
	if runID == "" {
		return nil, nil
	}
	steps, err := c.svc.ListRunSteps(ctx, threadID, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch steps for run %s: %w", runID, err)
	}
	var calls []domain.ToolCall
	for _, step := range steps {
		if step.Type == domain.RunStepTypeToolCalls {
			calls = append(calls, step.StepDetails.ToolCalls...)
		}
	}
	return calls, nil
}
