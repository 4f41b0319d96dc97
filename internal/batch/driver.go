// Package batch iterates a list of user prompts through the run orchestrator
// and the conversation converter, collecting and persisting the results. One
// bad turn never aborts the batch; only setup shared across all turns is fatal.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/evalops/agentbatch/domain"
	"github.com/evalops/agentbatch/internal/converter"
	"github.com/evalops/agentbatch/internal/orchestrator"
)

// Client is the slice of the run service client the driver needs directly.
type Client interface {
	CreateThread(ctx context.Context) (*domain.Thread, error)
	ListMessages(ctx context.Context, threadID string) ([]domain.Message, error)
}

// TurnRunner drives one conversation turn.
type TurnRunner interface {
	RunTurn(ctx context.Context, threadID, userMessage string) (*orchestrator.TurnResult, error)
}

// TranscriptConverter normalizes a thread into evaluation records.
type TranscriptConverter interface {
	Convert(ctx context.Context, threadID, filterRunID string) (*converter.Result, error)
}

// ResultStore persists batch results. May be nil to skip persistence.
type ResultStore interface {
	CreateBatch(ctx context.Context, batch *domain.Batch) error
	CreateItem(ctx context.Context, item *domain.BatchItem) error
}

// Driver runs prompts sequentially; each prompt owns its own thread/run pair.
type Driver struct {
	client    Client
	runner    TurnRunner
	conv      TranscriptConverter
	store     ResultStore
	outputDir string
}

// New creates a batch driver. store may be nil; outputDir may be empty to skip
// writing artifact files.
func New(client Client, runner TurnRunner, conv TranscriptConverter, store ResultStore, outputDir string) *Driver {
	return &Driver{
		client:    client,
		runner:    runner,
		conv:      conv,
		store:     store,
		outputDir: outputDir,
	}
}

// Report collects the batch's results in input-prompt order.
type Report struct {
	BatchID       string
	Conversations [][]domain.ConversationEntry
	Transcripts   [][]map[string]any
	ResultsPath   string
	EvalPath      string
}

// Run processes the prompts in order and persists the collected results.
func (d *Driver) Run(ctx context.Context, prompts []string) (*Report, error) {
	batch := &domain.Batch{
		BatchID:     "batch_" + uuid.New().String()[:8],
		PromptCount: len(prompts),
		CreatedAt:   time.Now().UTC(),
	}
	if d.store != nil {
		if err := d.store.CreateBatch(ctx, batch); err != nil {
			return nil, fmt.Errorf("failed to create batch record: %w", err)
		}
	}

	report := &Report{BatchID: batch.BatchID}
	for i, prompt := range prompts {
		log.Printf("processing prompt %d/%d", i+1, len(prompts))

		item, err := d.processPrompt(ctx, i, prompt)
		if err != nil {
			// Only caller cancellation aborts the batch.
			return report, err
		}
		report.Conversations = append(report.Conversations, item.entries)
		report.Transcripts = append(report.Transcripts, item.transcript)

		if d.store != nil {
			if serr := d.store.CreateItem(ctx, item.record(batch.BatchID, i, prompt)); serr != nil {
				log.Printf("WARN: failed to persist batch item %d: %v", i, serr)
			}
		}
	}

	if err := d.writeArtifacts(report); err != nil {
		return report, err
	}
	return report, nil
}

type promptResult struct {
	threadID   string
	runID      string
	outcome    domain.Outcome
	entries    []domain.ConversationEntry
	transcript []map[string]any
}

func (r *promptResult) record(batchID string, seq int, prompt string) *domain.BatchItem {
	conversation, _ := json.Marshal(r.entries)
	var transcript json.RawMessage
	if r.transcript != nil {
		transcript, _ = json.Marshal(r.transcript)
	}
	return &domain.BatchItem{
		ItemID:       "item_" + uuid.New().String()[:8],
		BatchID:      batchID,
		Seq:          seq,
		Prompt:       prompt,
		ThreadID:     r.threadID,
		RunID:        r.runID,
		Outcome:      r.outcome,
		Conversation: conversation,
		Transcript:   transcript,
		CreatedAt:    time.Now().UTC(),
	}
}

// processPrompt runs one turn end to end. Per-turn errors become a system entry
// in the conversation; the returned error is non-nil only for caller
// cancellation.
func (d *Driver) processPrompt(ctx context.Context, seq int, prompt string) (*promptResult, error) {
	result := &promptResult{outcome: domain.OutcomeTurnError}

	thread, err := d.client.CreateThread(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("ERROR: failed to create thread for prompt %d: %v", seq, err)
		result.entries = turnErrorEntries(prompt, err)
		return result, nil
	}
	result.threadID = thread.ID

	turn, err := d.runner.RunTurn(ctx, thread.ID, prompt)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Printf("ERROR: turn failed for prompt %d: %v", seq, err)
		result.entries = turnErrorEntries(prompt, err)
		return result, nil
	}
	result.runID = turn.RunID
	result.outcome = turn.Outcome
	result.entries = turn.Entries

	// Append the agent's stored responses to the live conversation log.
	messages, err := d.client.ListMessages(ctx, thread.ID)
	if err != nil {
		log.Printf("WARN: failed to list messages for thread %s: %v", thread.ID, err)
		result.entries = append(result.entries, domain.ConversationEntry{
			Role:    domain.RoleSystem,
			Content: fmt.Sprintf("Error retrieving messages: %v", err),
		})
	} else {
		for _, msg := range messages {
			if msg.Role == domain.RoleAgent && len(msg.Content) > 0 {
				result.entries = append(result.entries, domain.ConversationEntry{
					Role:    domain.RoleAgent,
					Content: msg.Content[0].Text.Value,
				})
			}
		}
	}

	if turn.RunID != "" {
		convRes, err := d.conv.Convert(ctx, thread.ID, turn.RunID)
		switch {
		case err != nil:
			log.Printf("WARN: failed to convert thread %s: %v", thread.ID, err)
		case !convRes.FilterMatched:
			log.Printf("WARN: run %s matched no agent message in thread %s; keeping full transcript", turn.RunID, thread.ID)
			result.transcript = convRes.Records
		default:
			result.transcript = convRes.Records
		}
	}

	return result, nil
}

func turnErrorEntries(prompt string, err error) []domain.ConversationEntry {
	return []domain.ConversationEntry{
		{Role: domain.RoleUser, Content: prompt},
		{Role: domain.RoleSystem, Content: fmt.Sprintf("Error processing message: %v", err)},
	}
}

// writeArtifacts saves the conversation and evaluation JSON files, order
// matching input-prompt order.
func (d *Driver) writeArtifacts(report *Report) error {
	if d.outputDir == "" {
		return nil
	}
	if err := os.MkdirAll(d.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ts := time.Now().Format("20060102_150405")
	resultsPath := filepath.Join(d.outputDir, "batch_results_"+ts+".json")
	evalPath := filepath.Join(d.outputDir, "batch_evaluation_"+ts+".json")

	results, err := json.MarshalIndent(report.Conversations, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversations: %w", err)
	}
	if err := os.WriteFile(resultsPath, results, 0o644); err != nil {
		return fmt.Errorf("failed to write results file: %w", err)
	}

	evaluation, err := json.MarshalIndent(report.Transcripts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal transcripts: %w", err)
	}
	if err := os.WriteFile(evalPath, evaluation, 0o644); err != nil {
		return fmt.Errorf("failed to write evaluation file: %w", err)
	}

	report.ResultsPath = resultsPath
	report.EvalPath = evalPath
	return nil
}
