// Package runsvctest provides a scripted in-process run service for tests.
// Run status is driven by a frame list: each poll serves the next frame, and
// the last frame is sticky. Submissions are validated against the most recent
// action payload and recorded for assertions.
package runsvctest

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/evalops/agentbatch/domain"
)

// Frame is one scripted poll response.
type Frame struct {
	Status domain.RunStatus
	Action *domain.RequiredAction
}

// ActionFrame builds a requires_action frame for the given tool calls.
func ActionFrame(calls ...domain.ToolCall) Frame {
	return Frame{
		Status: domain.RunStatusRequiresAction,
		Action: &domain.RequiredAction{
			Type:              domain.ActionTypeSubmitToolOutputs,
			SubmitToolOutputs: &domain.SubmitToolOutputsAction{ToolCalls: calls},
		},
	}
}

// Server is the scripted run service.
type Server struct {
	httpSrv *httptest.Server

	// RunID is the id assigned to every created run.
	RunID string

	mu          sync.Mutex
	frames      []Frame
	frameIdx    int
	pending     map[string]bool
	submissions [][]domain.ToolOutput
	failSubmit  bool
	lastError   *domain.RunError
	messages    map[string][]domain.Message
	steps       map[string][]domain.RunStep
	pageSize    int
}

// New starts the server with the given script.
func New(frames ...Frame) *Server {
	s := &Server{
		RunID:    "run_" + uuid.New().String()[:8],
		frames:   frames,
		pending:  make(map[string]bool),
		messages: make(map[string][]domain.Message),
		steps:    make(map[string][]domain.RunStep),
	}

	e := echo.New()
	e.HideBanner = true
	e.POST("/v1/threads", s.createThread)
	e.POST("/v1/threads/:thread_id/messages", s.createMessage)
	e.GET("/v1/threads/:thread_id/messages", s.listMessages)
	e.POST("/v1/threads/:thread_id/runs", s.createRun)
	e.GET("/v1/threads/:thread_id/runs/:run_id", s.getRun)
	e.POST("/v1/threads/:thread_id/runs/:run_id/submit_tool_outputs", s.submitToolOutputs)
	e.GET("/v1/threads/:thread_id/runs/:run_id/steps", s.listRunSteps)

	s.httpSrv = httptest.NewServer(e)
	return s
}

// URL returns the server's base URL.
func (s *Server) URL() string { return s.httpSrv.URL }

// Close shuts the server down.
func (s *Server) Close() { s.httpSrv.Close() }

// SetPageSize caps list pages to n items to exercise pagination traversal.
func (s *Server) SetPageSize(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pageSize = n
}

// FailSubmissions makes submit_tool_outputs return 500.
func (s *Server) FailSubmissions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSubmit = true
}

// SetLastError sets the error reported with failed frames.
func (s *Server) SetLastError(code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = &domain.RunError{Code: code, Message: message}
}

// Submissions returns the recorded output batches.
func (s *Server) Submissions() [][]domain.ToolOutput {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]domain.ToolOutput, len(s.submissions))
	copy(out, s.submissions)
	return out
}

// AddAgentMessage seeds an agent message into a thread.
func (s *Server) AddAgentMessage(threadID, runID, text string) domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := domain.Message{
		ID:        "msg_" + uuid.New().String()[:8],
		ThreadID:  threadID,
		RunID:     runID,
		Role:      domain.RoleAgent,
		Content:   []domain.ContentPart{{Type: "text", Text: domain.TextContent{Value: text}}},
		CreatedAt: time.Now().UTC(),
	}
	s.messages[threadID] = append(s.messages[threadID], msg)
	return msg
}

// SetRunSteps seeds the step collection for a run.
func (s *Server) SetRunSteps(runID string, steps []domain.RunStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.steps[runID] = steps
}

func (s *Server) createThread(c echo.Context) error {
	thread := domain.Thread{
		ID:        "th_" + uuid.New().String()[:8],
		CreatedAt: time.Now().UTC(),
	}
	return c.JSON(http.StatusOK, thread)
}

func (s *Server) createMessage(c echo.Context) error {
	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}
	threadID := c.Param("thread_id")

	s.mu.Lock()
	msg := domain.Message{
		ID:        "msg_" + uuid.New().String()[:8],
		ThreadID:  threadID,
		Role:      domain.Role(req.Role),
		Content:   []domain.ContentPart{{Type: "text", Text: domain.TextContent{Value: req.Content}}},
		CreatedAt: time.Now().UTC(),
	}
	s.messages[threadID] = append(s.messages[threadID], msg)
	s.mu.Unlock()

	return c.JSON(http.StatusOK, msg)
}

func (s *Server) createRun(c echo.Context) error {
	var req struct {
		AgentID string `json:"agent_id"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	s.mu.Lock()
	status := domain.RunStatusQueued
	if len(s.frames) > 0 {
		status = s.frames[0].Status
	}
	run := domain.Run{
		ID:       s.RunID,
		ThreadID: c.Param("thread_id"),
		AgentID:  req.AgentID,
		Status:   status,
	}
	s.mu.Unlock()

	return c.JSON(http.StatusOK, run)
}

func (s *Server) getRun(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.frames) == 0 {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "no scripted frames"})
	}
	frame := s.frames[s.frameIdx]
	if s.frameIdx < len(s.frames)-1 {
		s.frameIdx++
	}

	run := domain.Run{
		ID:             c.Param("run_id"),
		ThreadID:       c.Param("thread_id"),
		Status:         frame.Status,
		RequiredAction: frame.Action,
	}
	if frame.Status == domain.RunStatusFailed {
		run.LastError = s.lastError
	}
	if frame.Action != nil && frame.Action.SubmitToolOutputs != nil {
		s.pending = make(map[string]bool)
		for _, call := range frame.Action.SubmitToolOutputs.ToolCalls {
			s.pending[call.ID] = true
		}
	}
	return c.JSON(http.StatusOK, run)
}

func (s *Server) submitToolOutputs(c echo.Context) error {
	var req struct {
		ToolOutputs []domain.ToolOutput `json:"tool_outputs"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failSubmit {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "submission rejected"})
	}

	seen := make(map[string]bool)
	for _, out := range req.ToolOutputs {
		if !s.pending[out.ToolCallID] {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "unexpected tool_call_id " + out.ToolCallID,
			})
		}
		if seen[out.ToolCallID] {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": "duplicate tool_call_id " + out.ToolCallID,
			})
		}
		seen[out.ToolCallID] = true
	}
	if len(seen) != len(s.pending) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "incomplete output batch"})
	}

	s.submissions = append(s.submissions, req.ToolOutputs)
	s.pending = make(map[string]bool)
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) listMessages(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.messages[c.Param("thread_id")]
	page, hasMore, lastID := paginate(items, c.QueryParam("after"), s.pageSize, func(m domain.Message) string { return m.ID })
	return c.JSON(http.StatusOK, map[string]any{
		"data":     page,
		"has_more": hasMore,
		"last_id":  lastID,
	})
}

func (s *Server) listRunSteps(c echo.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := s.steps[c.Param("run_id")]
	page, hasMore, lastID := paginate(items, c.QueryParam("after"), s.pageSize, func(st domain.RunStep) string { return st.ID })
	return c.JSON(http.StatusOK, map[string]any{
		"data":     page,
		"has_more": hasMore,
		"last_id":  lastID,
	})
}

// paginate slices items after the given cursor, capped to pageSize when set.
func paginate[T any](items []T, after string, pageSize int, id func(T) string) ([]T, bool, string) {
	start := 0
	if after != "" {
		for i, item := range items {
			if id(item) == after {
				start = i + 1
				break
			}
		}
	}
	rest := items[start:]
	if pageSize > 0 && len(rest) > pageSize {
		page := rest[:pageSize]
		return page, true, id(page[len(page)-1])
	}
	if len(rest) == 0 {
		return []T{}, false, ""
	}
	return rest, false, id(rest[len(rest)-1])
}
