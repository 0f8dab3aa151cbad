// Package client provides a Go SDK for the agentteam HTTP API.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// Client calls the agentteam HTTP API. It is safe for concurrent use.
type Client struct {
	BaseURL    string       // e.g. "http://localhost:8326"
	APIKey     string       // optional; sent as X-API-Key
	HTTPClient *http.Client // optional; nil uses http.DefaultClient
}

// New returns a client for the given base URL (e.g. "http://localhost:8326").
// APIKey is optional; when set, requests carry the X-API-Key header.
func New(baseURL, apiKey string) *Client {
	return &Client{BaseURL: baseURL, APIKey: apiKey}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.APIKey != "" {
		req.Header.Set("X-API-Key", c.APIKey)
	}
	return c.client().Do(req)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errBody struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		if errBody.Error != "" {
			return fmt.Errorf("api %s %s: %s", method, path, errBody.Error)
		}
		return fmt.Errorf("api %s %s: status %d", method, path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Health returns the /health response (ok: true).
func (c *Client) Health(ctx context.Context) (bool, error) {
	var out struct {
		OK bool `json:"ok"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/health", nil, &out)
	return out.OK, err
}

// Config returns the /config response.
func (c *Client) Config(ctx context.Context) (*models.Config, error) {
	var out models.Config
	err := c.doJSON(ctx, http.MethodGet, "/config", nil, &out)
	return &out, err
}

// --- Tasks ---

// CreateTaskRequest is the POST /tasks body. Exactly one of AgentID, TeamID,
// or TeamLeaderID+TeamMemberIDs selects the coordination mode; all empty lets
// the server auto-assign the first available agent.
type CreateTaskRequest struct {
	Title         string   `json:"title"`
	Description   string   `json:"description,omitempty"`
	Priority      string   `json:"priority,omitempty"`
	AutoMode      bool     `json:"auto_mode,omitempty"`
	AgentID       *string  `json:"agent_id,omitempty"`
	TeamID        *string  `json:"team_id,omitempty"`
	TeamLeaderID  *string  `json:"team_leader_id,omitempty"`
	TeamMemberIDs []string `json:"team_member_ids,omitempty"`
	ToolNames     []string `json:"tool_names,omitempty"`
	Execute       bool     `json:"execute,omitempty"` // start immediately
}

// ListTasks returns tasks, optionally filtered by status (limit 0 = default).
func (c *Client) ListTasks(ctx context.Context, status string, limit int) ([]models.Task, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	path := "/tasks"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out []models.Task
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// CreateTask submits a task and returns it.
func (c *Client) CreateTask(ctx context.Context, req CreateTaskRequest) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPost, "/tasks", req, &out)
	return &out, err
}

// GetTask returns a task by id, including its derived detailed status.
func (c *Client) GetTask(ctx context.Context, taskID string) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID), nil, &out)
	return &out, err
}

// UpdateTask patches an unstarted task's mutable fields (empty/nil leaves a
// field unchanged) and returns the updated task.
func (c *Client) UpdateTask(ctx context.Context, taskID string, patch map[string]any) (*models.Task, error) {
	var out models.Task
	err := c.doJSON(ctx, http.MethodPatch, "/tasks/"+url.PathEscape(taskID), patch, &out)
	return &out, err
}

// DeleteTask deletes a task and its history. Running tasks are refused.
func (c *Client) DeleteTask(ctx context.Context, taskID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/tasks/"+url.PathEscape(taskID), nil, nil)
}

// ExecuteTask starts execution of a pending or finished task.
func (c *Client) ExecuteTask(ctx context.Context, taskID string) error {
	return c.doJSON(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/execute", nil, nil)
}

// CancelTask requests cooperative cancellation of a running task.
func (c *Client) CancelTask(ctx context.Context, taskID string) error {
	return c.doJSON(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/cancel", nil, nil)
}

// SendMessage resumes a completed or failed task with a follow-up instruction.
func (c *Client) SendMessage(ctx context.Context, taskID, message string) error {
	return c.doJSON(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/message",
		map[string]string{"message": message}, nil)
}

// AnalyzeTaskRequest is the POST /tasks/analyze body. Provider and friends
// are optional overrides of the server's model configuration.
type AnalyzeTaskRequest struct {
	Description string `json:"description"`
	Provider    string `json:"provider,omitempty"`
	Model       string `json:"model,omitempty"`
	BaseURL     string `json:"base_url,omitempty"`
	APIKeyEnv   string `json:"api_key_env,omitempty"`
}

// AnalyzeTask classifies a task description and recommends tools for it
// without creating the task.
func (c *Client) AnalyzeTask(ctx context.Context, req AnalyzeTaskRequest) (*models.TaskAnalysis, error) {
	var out models.TaskAnalysis
	err := c.doJSON(ctx, http.MethodPost, "/tasks/analyze", req, &out)
	return &out, err
}

// SetAutoMode toggles a task's auto mode.
func (c *Client) SetAutoMode(ctx context.Context, taskID string, autoMode bool) error {
	return c.doJSON(ctx, http.MethodPost, "/tasks/"+url.PathEscape(taskID)+"/auto-mode",
		map[string]bool{"auto_mode": autoMode}, nil)
}

// InteractionQuery filters ListInteractions.
type InteractionQuery struct {
	SinceID string
	Type    string
	Limit   int
}

// ListInteractions returns a task's interaction history.
func (c *Client) ListInteractions(ctx context.Context, taskID string, q InteractionQuery) ([]models.Interaction, error) {
	vals := url.Values{}
	if q.SinceID != "" {
		vals.Set("since", q.SinceID)
	}
	if q.Type != "" {
		vals.Set("type", q.Type)
	}
	if q.Limit > 0 {
		vals.Set("limit", strconv.Itoa(q.Limit))
	}
	path := "/tasks/" + url.PathEscape(taskID) + "/interactions"
	if len(vals) > 0 {
		path += "?" + vals.Encode()
	}
	var out []models.Interaction
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ListPendingInteractions returns the unanswered questions of a task.
func (c *Client) ListPendingInteractions(ctx context.Context, taskID string) ([]models.Interaction, error) {
	var out []models.Interaction
	err := c.doJSON(ctx, http.MethodGet, "/tasks/"+url.PathEscape(taskID)+"/interactions/pending", nil, &out)
	return out, err
}

// ListExecutionLog returns a task's audit trail (limit 0 = all).
func (c *Client) ListExecutionLog(ctx context.Context, taskID string, limit int) ([]models.ExecutionLogEntry, error) {
	path := "/tasks/" + url.PathEscape(taskID) + "/logs"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var out []models.ExecutionLogEntry
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// RespondInteraction answers a pending question and returns the updated
// interaction. The blocked execution resumes at its next poll.
func (c *Client) RespondInteraction(ctx context.Context, interactionID, response string) (*models.Interaction, error) {
	var out models.Interaction
	err := c.doJSON(ctx, http.MethodPost, "/interactions/"+url.PathEscape(interactionID)+"/respond",
		map[string]string{"response": response}, &out)
	return &out, err
}

// --- Approvals ---

// ListPendingApprovals returns pending approval requests, optionally filtered
// by agent.
func (c *Client) ListPendingApprovals(ctx context.Context, agentID string) ([]models.ApprovalRequest, error) {
	path := "/approvals"
	if agentID != "" {
		path += "?agent_id=" + url.QueryEscape(agentID)
	}
	var out []models.ApprovalRequest
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

// ApproveRequest grants a pending approval request.
func (c *Client) ApproveRequest(ctx context.Context, approvalID string, note *string) (*models.ApprovalRequest, error) {
	var out models.ApprovalRequest
	err := c.doJSON(ctx, http.MethodPost, "/approvals/"+url.PathEscape(approvalID)+"/approve",
		map[string]any{"note": note}, &out)
	return &out, err
}

// RejectRequest denies a pending approval request.
func (c *Client) RejectRequest(ctx context.Context, approvalID string, note *string) (*models.ApprovalRequest, error) {
	var out models.ApprovalRequest
	err := c.doJSON(ctx, http.MethodPost, "/approvals/"+url.PathEscape(approvalID)+"/reject",
		map[string]any{"note": note}, &out)
	return &out, err
}

// --- Agents ---

// ListAgents returns all agents.
func (c *Client) ListAgents(ctx context.Context) ([]models.Agent, error) {
	var out []models.Agent
	err := c.doJSON(ctx, http.MethodGet, "/agents", nil, &out)
	return out, err
}

// GetAgent returns an agent by id.
func (c *Client) GetAgent(ctx context.Context, agentID string) (*models.Agent, error) {
	var out models.Agent
	err := c.doJSON(ctx, http.MethodGet, "/agents/"+url.PathEscape(agentID), nil, &out)
	return &out, err
}

// CreateAgent creates an agent and returns it.
func (c *Client) CreateAgent(ctx context.Context, a models.Agent) (*models.Agent, error) {
	var out models.Agent
	err := c.doJSON(ctx, http.MethodPost, "/agents", a, &out)
	return &out, err
}

// UpdateAgent patches an agent (zero-valued fields are left unchanged).
func (c *Client) UpdateAgent(ctx context.Context, agentID string, a models.Agent) (*models.Agent, error) {
	var out models.Agent
	err := c.doJSON(ctx, http.MethodPatch, "/agents/"+url.PathEscape(agentID), a, &out)
	return &out, err
}

// DeleteAgent deletes an agent by id.
func (c *Client) DeleteAgent(ctx context.Context, agentID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/agents/"+url.PathEscape(agentID), nil, nil)
}

// --- Teams ---

// ListTeams returns all teams.
func (c *Client) ListTeams(ctx context.Context) ([]models.Team, error) {
	var out []models.Team
	err := c.doJSON(ctx, http.MethodGet, "/teams", nil, &out)
	return out, err
}

// GetTeam returns a team by id.
func (c *Client) GetTeam(ctx context.Context, teamID string) (*models.Team, error) {
	var out models.Team
	err := c.doJSON(ctx, http.MethodGet, "/teams/"+url.PathEscape(teamID), nil, &out)
	return &out, err
}

// CreateTeam creates a team and returns it.
func (c *Client) CreateTeam(ctx context.Context, t models.Team) (*models.Team, error) {
	var out models.Team
	err := c.doJSON(ctx, http.MethodPost, "/teams", t, &out)
	return &out, err
}

// UpdateTeam patches a team.
func (c *Client) UpdateTeam(ctx context.Context, teamID string, t models.Team) (*models.Team, error) {
	var out models.Team
	err := c.doJSON(ctx, http.MethodPatch, "/teams/"+url.PathEscape(teamID), t, &out)
	return &out, err
}

// DeleteTeam deletes a team by id.
func (c *Client) DeleteTeam(ctx context.Context, teamID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/teams/"+url.PathEscape(teamID), nil, nil)
}

// --- Events ---

// Event is one decoded SSE payload from /events.
type Event struct {
	Type   string `json:"type"`
	Topic  string `json:"topic"`
	TaskID string `json:"task_id"`
	Raw    json.RawMessage
}

// StreamEvents subscribes to /events and calls fn for every event until ctx
// is cancelled or the stream closes. Keepalive comments are skipped.
func (c *Client) StreamEvents(ctx context.Context, fn func(Event)) error {
	resp, err := c.do(ctx, http.MethodGet, "/events", nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("api GET /events: status %d", resp.StatusCode)
	}

	sc := bufio.NewScanner(resp.Body)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		raw := []byte(strings.TrimPrefix(line, "data: "))
		var ev Event
		if err := json.Unmarshal(raw, &ev); err != nil {
			continue
		}
		ev.Raw = json.RawMessage(raw)
		fn(ev)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return sc.Err()
}
