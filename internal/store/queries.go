package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func newID() string { return uuid.NewString() }

func encodeStrings(v []string) string {
	if len(v) == 0 {
		return "[]"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "[]"
	}
	return string(b)
}

func decodeStrings(s string) []string {
	if s == "" || s == "[]" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

func encodeMetadata(m map[string]any) *string {
	if len(m) == 0 {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func decodeMetadata(s *string) map[string]any {
	if s == nil || *s == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(*s), &out); err != nil {
		return nil
	}
	return out
}

func unixPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.UTC().Unix()
	return &v
}

func timePtr(v *int64) *time.Time {
	if v == nil {
		return nil
	}
	t := time.Unix(*v, 0).UTC()
	return &t
}

// Agents

func (s *sqliteStore) ListAgents(ctx context.Context) ([]Agent, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT agent_id, name, role, agent_type, supervisor_id, llm_provider, llm_model, llm_base_url, api_key_env, temperature, max_tokens, tool_names, status, created_at, updated_at FROM agents ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(r rowScanner) (*Agent, error) {
	var (
		a          Agent
		toolNames  string
		createdAt  int64
		updatedAt  int64
	)
	if err := r.Scan(&a.AgentID, &a.Name, &a.Role, &a.AgentType, &a.SupervisorID, &a.LLMProvider, &a.LLMModel, &a.LLMBaseURL, &a.APIKeyEnv, &a.Temperature, &a.MaxTokens, &toolNames, &a.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.ToolNames = decodeStrings(toolNames)
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &a, nil
}

func (s *sqliteStore) GetAgent(ctx context.Context, agentID string) (Agent, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT agent_id, name, role, agent_type, supervisor_id, llm_provider, llm_model, llm_base_url, api_key_env, temperature, max_tokens, tool_names, status, created_at, updated_at FROM agents WHERE agent_id = ?`, agentID)
	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Agent{}, fmt.Errorf("agent not found: %s", agentID)
		}
		return Agent{}, err
	}
	return *a, nil
}

func (s *sqliteStore) CreateAgent(ctx context.Context, a Agent) (Agent, error) {
	if a.Name == "" {
		return Agent{}, errors.New("agent name required")
	}
	if a.AgentID == "" {
		a.AgentID = newID()
	}
	if a.AgentType == "" {
		a.AgentType = "worker"
	}
	if a.Status == "" {
		a.Status = "idle"
	}
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	_, err := s.DB.ExecContext(ctx, `INSERT INTO agents(agent_id, name, role, agent_type, supervisor_id, llm_provider, llm_model, llm_base_url, api_key_env, temperature, max_tokens, tool_names, status, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.AgentID, a.Name, a.Role, a.AgentType, a.SupervisorID, a.LLMProvider, a.LLMModel, a.LLMBaseURL, a.APIKeyEnv, a.Temperature, a.MaxTokens, encodeStrings(a.ToolNames), a.Status, now.Unix(), now.Unix())
	if err != nil {
		return Agent{}, err
	}
	return a, nil
}

func (s *sqliteStore) UpdateAgent(ctx context.Context, a Agent) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE agents SET name=?, role=?, agent_type=?, supervisor_id=?, llm_provider=?, llm_model=?, llm_base_url=?, api_key_env=?, temperature=?, max_tokens=?, tool_names=?, updated_at=? WHERE agent_id=?`,
		a.Name, a.Role, a.AgentType, a.SupervisorID, a.LLMProvider, a.LLMModel, a.LLMBaseURL, a.APIKeyEnv, a.Temperature, a.MaxTokens, encodeStrings(a.ToolNames), time.Now().UTC().Unix(), a.AgentID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("agent not found: %s", a.AgentID)
	}
	return nil
}

func (s *sqliteStore) SetAgentStatus(ctx context.Context, agentID, status string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE agents SET status=?, updated_at=? WHERE agent_id=?`, status, time.Now().UTC().Unix(), agentID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("agent not found: %s", agentID)
	}
	return nil
}

func (s *sqliteStore) DeleteAgent(ctx context.Context, agentID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM agents WHERE agent_id = ?`, agentID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("agent not found: %s", agentID)
	}
	return nil
}

// Teams

func (s *sqliteStore) ListTeams(ctx context.Context) ([]Team, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT team_id, name, description, leader_agent_id, member_ids, is_active, created_at, updated_at FROM teams ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func scanTeam(r rowScanner) (*Team, error) {
	var (
		t         Team
		memberIDs string
		isActive  int
		createdAt int64
		updatedAt int64
	)
	if err := r.Scan(&t.TeamID, &t.Name, &t.Description, &t.LeaderAgentID, &memberIDs, &isActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.MemberIDs = decodeStrings(memberIDs)
	t.IsActive = isActive != 0
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}

func (s *sqliteStore) GetTeam(ctx context.Context, teamID string) (Team, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT team_id, name, description, leader_agent_id, member_ids, is_active, created_at, updated_at FROM teams WHERE team_id = ?`, teamID)
	t, err := scanTeam(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Team{}, fmt.Errorf("team not found: %s", teamID)
		}
		return Team{}, err
	}
	return *t, nil
}

func (s *sqliteStore) CreateTeam(ctx context.Context, t Team) (Team, error) {
	if t.Name == "" {
		return Team{}, errors.New("team name required")
	}
	if t.LeaderAgentID == "" {
		return Team{}, errors.New("team leader required")
	}
	if t.TeamID == "" {
		t.TeamID = newID()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	active := 0
	if t.IsActive {
		active = 1
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO teams(team_id, name, description, leader_agent_id, member_ids, is_active, created_at, updated_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TeamID, t.Name, t.Description, t.LeaderAgentID, encodeStrings(t.MemberIDs), active, now.Unix(), now.Unix())
	if err != nil {
		return Team{}, err
	}
	return t, nil
}

func (s *sqliteStore) UpdateTeam(ctx context.Context, t Team) error {
	active := 0
	if t.IsActive {
		active = 1
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE teams SET name=?, description=?, leader_agent_id=?, member_ids=?, is_active=?, updated_at=? WHERE team_id=?`,
		t.Name, t.Description, t.LeaderAgentID, encodeStrings(t.MemberIDs), active, time.Now().UTC().Unix(), t.TeamID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("team not found: %s", t.TeamID)
	}
	return nil
}

func (s *sqliteStore) DeleteTeam(ctx context.Context, teamID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM teams WHERE team_id = ?`, teamID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("team not found: %s", teamID)
	}
	return nil
}

// Tasks

const taskColumns = `task_id, title, description, priority, status, auto_mode, agent_id, team_leader_id, team_member_ids, tool_names, result, error_message, created_at, updated_at, started_at, completed_at`

func scanTask(r rowScanner) (*Task, error) {
	var (
		t           Task
		autoMode    int
		memberIDs   string
		toolNames   string
		createdAt   int64
		updatedAt   int64
		startedAt   *int64
		completedAt *int64
	)
	if err := r.Scan(&t.TaskID, &t.Title, &t.Description, &t.Priority, &t.Status, &autoMode, &t.AgentID, &t.TeamLeaderID, &memberIDs, &toolNames, &t.Result, &t.ErrorMessage, &createdAt, &updatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	t.AutoMode = autoMode != 0
	t.TeamMemberIDs = decodeStrings(memberIDs)
	t.ToolNames = decodeStrings(toolNames)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	t.StartedAt = timePtr(startedAt)
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}

func (s *sqliteStore) ListTasks(ctx context.Context, status string, limit int) ([]Task, error) {
	if limit <= 0 {
		limit = 1000
	}
	var (
		rows *sql.Rows
		err  error
	)
	if status != "" {
		rows, err = s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = ? ORDER BY created_at DESC LIMIT ?`, status, limit)
	} else {
		rows, err = s.DB.QueryContext(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC LIMIT ?`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ListRunningTasks(ctx context.Context) ([]Task, error) {
	return s.ListTasks(ctx, "running", 0)
}

func (s *sqliteStore) GetTask(ctx context.Context, taskID string) (Task, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = ?`, taskID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Task{}, fmt.Errorf("task not found: %s", taskID)
		}
		return Task{}, err
	}
	return *t, nil
}

func (s *sqliteStore) CreateTask(ctx context.Context, t Task) (Task, error) {
	if t.Title == "" {
		return Task{}, errors.New("task title required")
	}
	if t.TaskID == "" {
		t.TaskID = newID()
	}
	if t.Status == "" {
		t.Status = "pending"
	}
	if t.Priority == "" {
		t.Priority = "medium"
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	autoMode := 0
	if t.AutoMode {
		autoMode = 1
	}
	_, err := s.DB.ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.TaskID, t.Title, t.Description, t.Priority, t.Status, autoMode, t.AgentID, t.TeamLeaderID, encodeStrings(t.TeamMemberIDs), encodeStrings(t.ToolNames), t.Result, t.ErrorMessage, now.Unix(), now.Unix(), unixPtr(t.StartedAt), unixPtr(t.CompletedAt))
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

func (s *sqliteStore) UpdateTask(ctx context.Context, t Task) error {
	autoMode := 0
	if t.AutoMode {
		autoMode = 1
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE tasks SET title=?, description=?, priority=?, auto_mode=?, agent_id=?, team_leader_id=?, team_member_ids=?, tool_names=?, updated_at=? WHERE task_id=?`,
		t.Title, t.Description, t.Priority, autoMode, t.AgentID, t.TeamLeaderID, encodeStrings(t.TeamMemberIDs), encodeStrings(t.ToolNames), time.Now().UTC().Unix(), t.TaskID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task not found: %s", t.TaskID)
	}
	return nil
}

// SetTaskStatus writes a lifecycle transition. Moving to running records
// started_at and clears any previous result/error; terminal states record
// completed_at along with the result or error message.
func (s *sqliteStore) SetTaskStatus(ctx context.Context, taskID, status string, result, errMsg *string) error {
	now := time.Now().UTC().Unix()
	var (
		res sql.Result
		err error
	)
	switch status {
	case "running":
		res, err = s.DB.ExecContext(ctx, `UPDATE tasks SET status=?, result=NULL, error_message=NULL, started_at=?, completed_at=NULL, updated_at=? WHERE task_id=?`, status, now, now, taskID)
	case "completed", "failed", "cancelled":
		res, err = s.DB.ExecContext(ctx, `UPDATE tasks SET status=?, result=?, error_message=?, completed_at=?, updated_at=? WHERE task_id=?`, status, result, errMsg, now, now, taskID)
	default:
		res, err = s.DB.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE task_id=?`, status, now, taskID)
	}
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *sqliteStore) SetTaskDescription(ctx context.Context, taskID, description string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tasks SET description=?, updated_at=? WHERE task_id=?`, description, time.Now().UTC().Unix(), taskID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *sqliteStore) SetTaskAutoMode(ctx context.Context, taskID string, autoMode bool) error {
	v := 0
	if autoMode {
		v = 1
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE tasks SET auto_mode=?, updated_at=? WHERE task_id=?`, v, time.Now().UTC().Unix(), taskID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *sqliteStore) AssignTaskAgent(ctx context.Context, taskID, agentID string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE tasks SET agent_id=?, updated_at=? WHERE task_id=?`, agentID, time.Now().UTC().Unix(), taskID)
	if err != nil {
		return err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *sqliteStore) TaskStatus(ctx context.Context, taskID string) (string, error) {
	var status string
	err := s.stmtTaskStatus.QueryRowContext(ctx, taskID).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("task not found: %s", taskID)
		}
		return "", err
	}
	return status, nil
}

func (s *sqliteStore) DeleteTask(ctx context.Context, taskID string) error {
	status, err := s.TaskStatus(ctx, taskID)
	if err != nil {
		return err
	}
	if status == "running" {
		return errors.New("cannot delete a running task")
	}
	_, err = s.DB.ExecContext(ctx, `DELETE FROM tasks WHERE task_id = ?`, taskID)
	return err
}

// Interactions

const interactionColumns = `interaction_id, task_id, agent_id, interaction_type, content, metadata, requires_response, response, seq, created_at, responded_at`

func scanInteraction(r rowScanner) (*Interaction, error) {
	var (
		in          Interaction
		metadata    *string
		requires    int
		createdAt   int64
		respondedAt *int64
	)
	if err := r.Scan(&in.InteractionID, &in.TaskID, &in.AgentID, &in.InteractionType, &in.Content, &metadata, &requires, &in.Response, &in.Seq, &createdAt, &respondedAt); err != nil {
		return nil, err
	}
	in.Metadata = decodeMetadata(metadata)
	in.RequiresResponse = requires != 0
	in.CreatedAt = time.Unix(createdAt, 0).UTC()
	in.RespondedAt = timePtr(respondedAt)
	return &in, nil
}

func (s *sqliteStore) CreateInteraction(ctx context.Context, in Interaction) (Interaction, error) {
	if in.TaskID == "" {
		return Interaction{}, errors.New("interaction task_id required")
	}
	if in.InteractionType == "" {
		return Interaction{}, errors.New("interaction_type required")
	}
	if in.InteractionID == "" {
		in.InteractionID = newID()
	}
	now := time.Now().UTC()
	in.CreatedAt = now
	requires := 0
	if in.RequiresResponse {
		requires = 1
	}
	res, err := s.DB.ExecContext(ctx, `INSERT INTO interactions(interaction_id, task_id, agent_id, interaction_type, content, metadata, requires_response, response, created_at, responded_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.InteractionID, in.TaskID, in.AgentID, in.InteractionType, in.Content, encodeMetadata(in.Metadata), requires, in.Response, now.Unix(), unixPtr(in.RespondedAt))
	if err != nil {
		return Interaction{}, err
	}
	in.Seq, _ = res.LastInsertId()
	return in, nil
}

func (s *sqliteStore) GetInteraction(ctx context.Context, interactionID string) (Interaction, error) {
	row := s.stmtGetInteraction.QueryRowContext(ctx, interactionID)
	in, err := scanInteraction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Interaction{}, fmt.Errorf("interaction not found: %s", interactionID)
		}
		return Interaction{}, err
	}
	return *in, nil
}

func (s *sqliteStore) ListInteractions(ctx context.Context, taskID string, opts InteractionQuery) ([]Interaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + interactionColumns + ` FROM interactions WHERE task_id = ?`
	args := []any{taskID}
	if opts.SinceID != "" {
		q += ` AND seq > (SELECT seq FROM interactions WHERE interaction_id = ?)`
		args = append(args, opts.SinceID)
	}
	if opts.Type != "" {
		q += ` AND interaction_type = ?`
		args = append(args, opts.Type)
	}
	q += ` ORDER BY seq ASC LIMIT ?`
	args = append(args, limit)

	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (s *sqliteStore) ListPendingInteractions(ctx context.Context, taskID string) ([]Interaction, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE task_id = ? AND requires_response = 1 AND response IS NULL ORDER BY seq ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (s *sqliteStore) HasPendingInteraction(ctx context.Context, taskID string) (bool, error) {
	var n int
	if err := s.stmtHasPendingQuestion.QueryRowContext(ctx, taskID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// RespondInteraction sets the response on a pending interaction. The response
// field is written at most once; answering an already-answered or
// non-question interaction is an error.
func (s *sqliteStore) RespondInteraction(ctx context.Context, interactionID, response string) (Interaction, error) {
	now := time.Now().UTC().Unix()
	res, err := s.DB.ExecContext(ctx, `UPDATE interactions SET response=?, responded_at=? WHERE interaction_id=? AND requires_response = 1 AND response IS NULL`, response, now, interactionID)
	if err != nil {
		return Interaction{}, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		in, err := s.GetInteraction(ctx, interactionID)
		if err != nil {
			return Interaction{}, err
		}
		if !in.RequiresResponse {
			return Interaction{}, errors.New("interaction does not require a response")
		}
		return Interaction{}, errors.New("interaction already answered")
	}
	return s.GetInteraction(ctx, interactionID)
}

// Approvals

const approvalColumns = `approval_id, agent_id, task_id, tool_names, reason, status, response_note, requested_at, responded_at`

func scanApproval(r rowScanner) (*ApprovalRequest, error) {
	var (
		a           ApprovalRequest
		toolNames   string
		requestedAt int64
		respondedAt *int64
	)
	if err := r.Scan(&a.ApprovalID, &a.AgentID, &a.TaskID, &toolNames, &a.Reason, &a.Status, &a.ResponseNote, &requestedAt, &respondedAt); err != nil {
		return nil, err
	}
	a.ToolNames = decodeStrings(toolNames)
	a.RequestedAt = time.Unix(requestedAt, 0).UTC()
	a.RespondedAt = timePtr(respondedAt)
	return &a, nil
}

func (s *sqliteStore) CreateApproval(ctx context.Context, a ApprovalRequest) (ApprovalRequest, error) {
	if a.AgentID == "" {
		return ApprovalRequest{}, errors.New("approval agent_id required")
	}
	if len(a.ToolNames) == 0 {
		return ApprovalRequest{}, errors.New("approval tool names required")
	}
	if a.ApprovalID == "" {
		a.ApprovalID = newID()
	}
	if a.Status == "" {
		a.Status = "pending"
	}
	now := time.Now().UTC()
	a.RequestedAt = now
	_, err := s.DB.ExecContext(ctx, `INSERT INTO approvals(`+approvalColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ApprovalID, a.AgentID, a.TaskID, encodeStrings(a.ToolNames), a.Reason, a.Status, a.ResponseNote, now.Unix(), unixPtr(a.RespondedAt))
	if err != nil {
		return ApprovalRequest{}, err
	}
	return a, nil
}

func (s *sqliteStore) GetApproval(ctx context.Context, approvalID string) (ApprovalRequest, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE approval_id = ?`, approvalID)
	a, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ApprovalRequest{}, fmt.Errorf("approval not found: %s", approvalID)
		}
		return ApprovalRequest{}, err
	}
	return *a, nil
}

func (s *sqliteStore) ListPendingApprovals(ctx context.Context, agentID string) ([]ApprovalRequest, error) {
	q := `SELECT ` + approvalColumns + ` FROM approvals WHERE status = 'pending'`
	args := []any{}
	if agentID != "" {
		q += ` AND agent_id = ?`
		args = append(args, agentID)
	}
	q += ` ORDER BY requested_at ASC`
	rows, err := s.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ApprovalRequest
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *sqliteStore) HasPendingApproval(ctx context.Context, taskID string) (bool, error) {
	var n int
	if err := s.stmtHasPendingApproval.QueryRowContext(ctx, taskID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// ResolveApproval transitions a pending request to approved, rejected, or
// timeout. Only a pending request may transition; repeated calls report
// changed=false and leave the first resolution in place.
func (s *sqliteStore) ResolveApproval(ctx context.Context, approvalID, status string, note *string) (bool, error) {
	switch status {
	case "approved", "rejected", "timeout":
	default:
		return false, fmt.Errorf("invalid approval status: %s", status)
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE approvals SET status=?, response_note=?, responded_at=? WHERE approval_id=? AND status='pending'`,
		status, note, time.Now().UTC().Unix(), approvalID)
	if err != nil {
		return false, err
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		// Distinguish unknown id from already-resolved.
		if _, err := s.GetApproval(ctx, approvalID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Execution log

func (s *sqliteStore) AppendExecutionLog(ctx context.Context, e ExecutionLogEntry) (ExecutionLogEntry, error) {
	if e.TaskID == "" {
		return ExecutionLogEntry{}, errors.New("execution log task_id required")
	}
	if e.LogID == "" {
		e.LogID = newID()
	}
	if e.Status == "" {
		e.Status = "started"
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	_, err := s.DB.ExecContext(ctx, `INSERT INTO execution_logs(log_id, task_id, agent_id, tool_name, action, input, output, status, error_message, duration_ms, created_at) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.LogID, e.TaskID, e.AgentID, e.ToolName, e.Action, e.Input, e.Output, e.Status, e.ErrorMessage, e.DurationMs, now.Unix())
	if err != nil {
		return ExecutionLogEntry{}, err
	}
	return e, nil
}

func (s *sqliteStore) ListExecutionLog(ctx context.Context, taskID string, limit int) ([]ExecutionLogEntry, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.DB.QueryContext(ctx, `SELECT log_id, task_id, agent_id, tool_name, action, input, output, status, error_message, duration_ms, created_at FROM execution_logs WHERE task_id = ? ORDER BY created_at ASC, log_id ASC LIMIT ?`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []ExecutionLogEntry
	for rows.Next() {
		var (
			e         ExecutionLogEntry
			createdAt int64
		)
		if err := rows.Scan(&e.LogID, &e.TaskID, &e.AgentID, &e.ToolName, &e.Action, &e.Input, &e.Output, &e.Status, &e.ErrorMessage, &e.DurationMs, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
