package runsvc_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evalops/agentbatch/domain"
	"github.com/evalops/agentbatch/internal/runsvc"
	"github.com/evalops/agentbatch/internal/runsvc/runsvctest"
)

func TestClientThreadAndRunLifecycle(t *testing.T) {
	srv := runsvctest.New(runsvctest.Frame{Status: domain.RunStatusCompleted})
	defer srv.Close()
	client := runsvc.NewClient(srv.URL(), "test-key")
	ctx := context.Background()

	thread, err := client.CreateThread(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, thread.ID)

	msg, err := client.CreateMessage(ctx, thread.ID, domain.RoleUser, "hello")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleUser, msg.Role)
	require.Len(t, msg.Content, 1)
	assert.Equal(t, "hello", msg.Content[0].Text.Value)

	run, err := client.CreateRun(ctx, thread.ID, "agent_test")
	require.NoError(t, err)
	assert.Equal(t, srv.RunID, run.ID)

	got, err := client.GetRun(ctx, thread.ID, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusCompleted, got.Status)
}

func TestClientListMessagesTraversesPagination(t *testing.T) {
	srv := runsvctest.New()
	defer srv.Close()
	srv.SetPageSize(2)
	client := runsvc.NewClient(srv.URL(), "")
	ctx := context.Background()

	thread, err := client.CreateThread(ctx)
	require.NoError(t, err)

	var wantIDs []string
	for i := 0; i < 5; i++ {
		msg, err := client.CreateMessage(ctx, thread.ID, domain.RoleUser, fmt.Sprintf("message %d", i))
		require.NoError(t, err)
		wantIDs = append(wantIDs, msg.ID)
	}

	messages, err := client.ListMessages(ctx, thread.ID)
	require.NoError(t, err)
	require.Len(t, messages, 5)
	for i, msg := range messages {
		assert.Equal(t, wantIDs[i], msg.ID, "service order must be preserved")
	}
}

func TestClientListRunStepsTraversesPagination(t *testing.T) {
	srv := runsvctest.New()
	defer srv.Close()
	srv.SetPageSize(2)
	srv.SetRunSteps("run_x", []domain.RunStep{
		{ID: "step_1", RunID: "run_x", Type: domain.RunStepTypeMessageCreation,
			StepDetails: domain.StepDetails{MessageCreation: &domain.MessageCreationRef{MessageID: "msg_1"}}},
		{ID: "step_2", RunID: "run_x", Type: domain.RunStepTypeToolCalls,
			StepDetails: domain.StepDetails{ToolCalls: []domain.ToolCall{{ID: "call_1", Type: domain.ToolCallTypeFunction,
				Function: &domain.FunctionCall{Name: "fetch_datetime", Arguments: "{}"}}}}},
		{ID: "step_3", RunID: "run_x", Type: domain.RunStepTypeToolCalls,
			StepDetails: domain.StepDetails{ToolCalls: []domain.ToolCall{{ID: "call_2", Type: domain.ToolCallTypeWebSearch}}}},
	})

	client := runsvc.NewClient(srv.URL(), "")
	steps, err := client.ListRunSteps(context.Background(), "th_any", "run_x")
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "step_1", steps[0].ID)
	assert.Equal(t, "step_3", steps[2].ID)
}

func TestClientSurfacesServiceErrors(t *testing.T) {
	srv := runsvctest.New() // no scripted frames
	defer srv.Close()
	client := runsvc.NewClient(srv.URL(), "")

	_, err := client.GetRun(context.Background(), "th_1", "run_1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run service returned status 404")
}
