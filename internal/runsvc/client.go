// Package runsvc provides the HTTP client for the remote agent-run service.
package runsvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/evalops/agentbatch/domain"
)

// defaultPageLimit is the page size used when traversing paginated collections.
const defaultPageLimit = 50

// Client is a typed JSON-over-HTTP client for the run service.
type Client struct {
	baseURL    string
	apiKey     string
	pageLimit  int
	httpClient *http.Client
}

// NewClient creates a new run service client. apiKey may be empty for services
// that do not require auth (e.g. the test server).
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		apiKey:    apiKey,
		pageLimit: defaultPageLimit,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}
}

// CreateThread creates a new empty thread.
func (c *Client) CreateThread(ctx context.Context) (*domain.Thread, error) {
	var thread domain.Thread
	if err := c.do(ctx, http.MethodPost, "/v1/threads", struct{}{}, &thread); err != nil {
		return nil, fmt.Errorf("failed to create thread: %w", err)
	}
	return &thread, nil
}

// CreateMessage appends a message to a thread.
func (c *Client) CreateMessage(ctx context.Context, threadID string, role domain.Role, content string) (*domain.Message, error) {
	req := map[string]string{
		"role":    string(role),
		"content": content,
	}
	var msg domain.Message
	path := fmt.Sprintf("/v1/threads/%s/messages", url.PathEscape(threadID))
	if err := c.do(ctx, http.MethodPost, path, req, &msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}
	return &msg, nil
}

// CreateRun starts a run of the given agent against a thread.
func (c *Client) CreateRun(ctx context.Context, threadID, agentID string) (*domain.Run, error) {
	req := map[string]string{"agent_id": agentID}
	var run domain.Run
	path := fmt.Sprintf("/v1/threads/%s/runs", url.PathEscape(threadID))
	if err := c.do(ctx, http.MethodPost, path, req, &run); err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return &run, nil
}

// GetRun fetches the current state of a run.
func (c *Client) GetRun(ctx context.Context, threadID, runID string) (*domain.Run, error) {
	var run domain.Run
	path := fmt.Sprintf("/v1/threads/%s/runs/%s", url.PathEscape(threadID), url.PathEscape(runID))
	if err := c.do(ctx, http.MethodGet, path, nil, &run); err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// SubmitToolOutputs submits the full batch of tool outputs unblocking a run.
func (c *Client) SubmitToolOutputs(ctx context.Context, threadID, runID string, outputs []domain.ToolOutput) error {
	req := map[string]any{"tool_outputs": outputs}
	path := fmt.Sprintf("/v1/threads/%s/runs/%s/submit_tool_outputs", url.PathEscape(threadID), url.PathEscape(runID))
	if err := c.do(ctx, http.MethodPost, path, req, nil); err != nil {
		return fmt.Errorf("failed to submit tool outputs: %w", err)
	}
	return nil
}

type messagePage struct {
	Data    []domain.Message `json:"data"`
	HasMore bool             `json:"has_more"`
	LastID  string           `json:"last_id"`
}

// ListMessages returns all messages of a thread in service order, traversing
// pagination to exhaustion.
func (c *Client) ListMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	var all []domain.Message
	after := ""
	for {
		path := fmt.Sprintf("/v1/threads/%s/messages?limit=%d", url.PathEscape(threadID), c.pageLimit)
		if after != "" {
			path += "&after=" + url.QueryEscape(after)
		}
		var page messagePage
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}
		all = append(all, page.Data...)
		if !page.HasMore || page.LastID == "" {
			return all, nil
		}
		after = page.LastID
	}
}

type runStepPage struct {
	Data    []domain.RunStep `json:"data"`
	HasMore bool             `json:"has_more"`
	LastID  string           `json:"last_id"`
}

// ListRunSteps returns all steps of a run in service order, traversing
// pagination to exhaustion.
func (c *Client) ListRunSteps(ctx context.Context, threadID, runID string) ([]domain.RunStep, error) {
	var all []domain.RunStep
	after := ""
	for {
		path := fmt.Sprintf("/v1/threads/%s/runs/%s/steps?limit=%d",
			url.PathEscape(threadID), url.PathEscape(runID), c.pageLimit)
		if after != "" {
			path += "&after=" + url.QueryEscape(after)
		}
		var page runStepPage
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("failed to list run steps: %w", err)
		}
		all = append(all, page.Data...)
		if !page.HasMore || page.LastID == "" {
			return all, nil
		}
		after = page.LastID
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("run service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
