// Package orchestrator drives a single agent run from creation to a terminal
// state: it posts the user message, polls the run, dispatches tool calls, and
// assembles the turn's conversation record.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/evalops/agentbatch/domain"
	"github.com/evalops/agentbatch/internal/tools"
	"github.com/evalops/agentbatch/policy"
)

// RunService is the slice of the run service client the orchestrator needs.
type RunService interface {
	CreateMessage(ctx context.Context, threadID string, role domain.Role, content string) (*domain.Message, error)
	CreateRun(ctx context.Context, threadID, agentID string) (*domain.Run, error)
	GetRun(ctx context.Context, threadID, runID string) (*domain.Run, error)
	SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []domain.ToolOutput) error
}

// TurnResult is the flat conversation record of one turn plus its terminal
// classification.
type TurnResult struct {
	ThreadID string
	RunID    string
	Outcome  domain.Outcome
	Entries  []domain.ConversationEntry
}

// Orchestrator drives runs against a fixed target agent.
type Orchestrator struct {
	svc          RunService
	registry     *tools.Registry
	policyEngine *policy.Engine
	agentID      string
	turnPolicy   TurnPolicy
	normalizers  map[string]Normalizer
}

// New creates an orchestrator. policyEngine may be nil, in which case every
// function call is dispatched without a policy check.
func New(svc RunService, registry *tools.Registry, policyEngine *policy.Engine, agentID string, turnPolicy TurnPolicy) *Orchestrator {
	return &Orchestrator{
		svc:          svc,
		registry:     registry,
		policyEngine: policyEngine,
		agentID:      agentID,
		turnPolicy:   turnPolicy.normalized(),
		normalizers:  DefaultNormalizers(),
	}
}

// RunTurn posts userMessage to the thread, creates a run and drives it to a
// terminal state. All turn-level failures (timeout, retry exhaustion, run
// failure, submission failure) are reported through the result's Outcome and a
// system entry; the returned error is non-nil only when the caller's context is
// done or the message/run could not be created at all.
func (o *Orchestrator) RunTurn(ctx context.Context, threadID, userMessage string) (*TurnResult, error) {
	res := &TurnResult{ThreadID: threadID}
	res.Entries = append(res.Entries, domain.ConversationEntry{
		Role:    domain.RoleUser,
		Content: userMessage,
	})

	if _, err := o.svc.CreateMessage(ctx, threadID, domain.RoleUser, userMessage); err != nil {
		return nil, fmt.Errorf("failed to post user message: %w", err)
	}
	run, err := o.svc.CreateRun(ctx, threadID, o.agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	res.RunID = run.ID

	pol := o.turnPolicy
	turnCtx, cancel := context.WithTimeout(ctx, pol.MaxWallClock)
	defer cancel()

	start := time.Now()
	retryCount := 0
	// Tool-call ids already dispatched for this run. Populated before
	// execution so a re-delivered action payload is never executed twice.
	processed := make(map[string]bool)

	for {
		if time.Since(start) > pol.MaxWallClock {
			o.failTurn(res, domain.OutcomeTimeout,
				fmt.Sprintf("run %s timed out after %s", run.ID, pol.MaxWallClock))
			return res, nil
		}

		status, err := o.svc.GetRun(turnCtx, threadID, run.ID)
		if err != nil {
			if done, derr := o.checkDone(ctx, turnCtx, res, run.ID); done {
				return res, derr
			}
			log.Printf("WARN: failed to poll run %s: %v", run.ID, err)
			if exhausted := o.consumeRetry(turnCtx, ctx, res, run.ID, pol, &retryCount); exhausted != nil {
				return res, exhausted.err
			}
			continue
		}

		switch status.Status {
		case domain.RunStatusQueued, domain.RunStatusInProgress:
			// Expected progress latency: fixed short wait, no retry budget.
			if werr := wait(turnCtx, pol.PollInterval); werr != nil {
				return o.finishOnWaitErr(ctx, res, run.ID)
			}

		case domain.RunStatusRequiresAction:
			action := status.RequiredAction
			if action == nil || action.SubmitToolOutputs == nil || len(action.SubmitToolOutputs.ToolCalls) == 0 {
				// Transient inconsistency: action status without a payload.
				if werr := wait(turnCtx, pol.PollInterval); werr != nil {
					return o.finishOnWaitErr(ctx, res, run.ID)
				}
				continue
			}
			outputs := o.dispatch(turnCtx, res, action.SubmitToolOutputs.ToolCalls, processed)
			if len(outputs) > 0 {
				if serr := o.svc.SubmitToolOutputs(turnCtx, threadID, run.ID, outputs); serr != nil {
					log.Printf("ERROR: failed to submit tool outputs for run %s: %v", run.ID, serr)
					o.failTurn(res, domain.OutcomeSubmissionFailed,
						fmt.Sprintf("tool output submission error: %v", serr))
					return res, nil
				}
			}
			if werr := wait(turnCtx, pol.SettleDelay); werr != nil {
				return o.finishOnWaitErr(ctx, res, run.ID)
			}

		case domain.RunStatusCompleted:
			res.Outcome = domain.OutcomeCompleted
			return res, nil

		case domain.RunStatusFailed:
			msg := fmt.Sprintf("run %s failed", run.ID)
			if status.LastError != nil {
				msg = fmt.Sprintf("run %s failed: %s: %s", run.ID, status.LastError.Code, status.LastError.Message)
			}
			o.failTurn(res, domain.OutcomeRunFailed, msg)
			return res, nil

		default:
			// Unknown or in-between status: suspected stall.
			log.Printf("WARN: run %s reported unknown status %q", run.ID, status.Status)
			if exhausted := o.consumeRetry(turnCtx, ctx, res, run.ID, pol, &retryCount); exhausted != nil {
				return res, exhausted.err
			}
		}
	}
}

type retryStop struct {
	err error
}

// consumeRetry applies one backoff wait against the retry budget. It returns a
// non-nil retryStop when the turn must end, carrying the error to surface (nil
// for reported outcomes).
func (o *Orchestrator) consumeRetry(turnCtx, parent context.Context, res *TurnResult, runID string, pol TurnPolicy, retryCount *int) *retryStop {
	if *retryCount >= pol.MaxRetries {
		o.failTurn(res, domain.OutcomeRetryExhausted,
			fmt.Sprintf("run %s exceeded retry budget of %d", runID, pol.MaxRetries))
		return &retryStop{}
	}
	if werr := wait(turnCtx, pol.backoffWait(*retryCount)); werr != nil {
		_, err := o.finishOnWaitErr(parent, res, runID)
		return &retryStop{err: err}
	}
	*retryCount++
	return nil
}

// checkDone reports whether the contexts ended the turn while a remote call was
// in flight, finalizing the result when so.
func (o *Orchestrator) checkDone(parent, turnCtx context.Context, res *TurnResult, runID string) (bool, error) {
	if parent.Err() != nil {
		return true, parent.Err()
	}
	if turnCtx.Err() != nil {
		o.failTurn(res, domain.OutcomeTimeout,
			fmt.Sprintf("run %s timed out after %s", runID, o.turnPolicy.MaxWallClock))
		return true, nil
	}
	return false, nil
}

// finishOnWaitErr classifies an interrupted wait: parent cancellation
// propagates as an error, the turn deadline becomes a Timeout outcome.
func (o *Orchestrator) finishOnWaitErr(parent context.Context, res *TurnResult, runID string) (*TurnResult, error) {
	if parent.Err() != nil {
		return res, parent.Err()
	}
	o.failTurn(res, domain.OutcomeTimeout,
		fmt.Sprintf("run %s timed out after %s", runID, o.turnPolicy.MaxWallClock))
	return res, nil
}

func (o *Orchestrator) failTurn(res *TurnResult, outcome domain.Outcome, msg string) {
	res.Outcome = outcome
	res.Entries = append(res.Entries, domain.ConversationEntry{
		Role:    domain.RoleSystem,
		Content: msg,
	})
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
