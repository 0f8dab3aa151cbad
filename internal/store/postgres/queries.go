package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/skoibuchi/ai-agent-team-management/internal/store"
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

const agentColumns = `agent_id, name, role, agent_type, supervisor_id, llm_provider, llm_model, llm_base_url, api_key_env, temperature, max_tokens, tool_names, status, created_at, updated_at`

func scanAgent(r pgx.Row) (*store.Agent, error) {
	var (
		a         store.Agent
		toolNames string
		createdAt int64
		updatedAt int64
	)
	if err := r.Scan(&a.AgentID, &a.Name, &a.Role, &a.AgentType, &a.SupervisorID, &a.LLMProvider, &a.LLMModel, &a.LLMBaseURL, &a.APIKeyEnv, &a.Temperature, &a.MaxTokens, &toolNames, &a.Status, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.ToolNames = decodeStrings(toolNames)
	a.CreatedAt = time.Unix(createdAt, 0).UTC()
	a.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &a, nil
}

func (s *Store) ListAgents(ctx context.Context) ([]store.Agent, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Agent
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) GetAgent(ctx context.Context, agentID string) (store.Agent, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE agent_id = $1`, agentID)
	a, err := scanAgent(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Agent{}, fmt.Errorf("agent not found: %s", agentID)
		}
		return store.Agent{}, err
	}
	return *a, nil
}

func (s *Store) CreateAgent(ctx context.Context, a store.Agent) (store.Agent, error) {
	if a.Name == "" {
		return store.Agent{}, errors.New("agent name required")
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
	_, err := s.Pool.Exec(ctx, `INSERT INTO agents(`+agentColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		a.AgentID, a.Name, a.Role, a.AgentType, a.SupervisorID, a.LLMProvider, a.LLMModel, a.LLMBaseURL, a.APIKeyEnv, a.Temperature, a.MaxTokens, encodeStrings(a.ToolNames), a.Status, now.Unix(), now.Unix())
	if err != nil {
		return store.Agent{}, err
	}
	return a, nil
}

func (s *Store) UpdateAgent(ctx context.Context, a store.Agent) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE agents SET name=$1, role=$2, agent_type=$3, supervisor_id=$4, llm_provider=$5, llm_model=$6, llm_base_url=$7, api_key_env=$8, temperature=$9, max_tokens=$10, tool_names=$11, updated_at=$12 WHERE agent_id=$13`,
		a.Name, a.Role, a.AgentType, a.SupervisorID, a.LLMProvider, a.LLMModel, a.LLMBaseURL, a.APIKeyEnv, a.Temperature, a.MaxTokens, encodeStrings(a.ToolNames), time.Now().UTC().Unix(), a.AgentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agent not found: %s", a.AgentID)
	}
	return nil
}

func (s *Store) SetAgentStatus(ctx context.Context, agentID, status string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE agents SET status=$1, updated_at=$2 WHERE agent_id=$3`, status, time.Now().UTC().Unix(), agentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agent not found: %s", agentID)
	}
	return nil
}

func (s *Store) DeleteAgent(ctx context.Context, agentID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM agents WHERE agent_id = $1`, agentID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("agent not found: %s", agentID)
	}
	return nil
}

// Teams

const teamColumns = `team_id, name, description, leader_agent_id, member_ids, is_active, created_at, updated_at`

func scanTeam(r pgx.Row) (*store.Team, error) {
	var (
		t         store.Team
		memberIDs string
		createdAt int64
		updatedAt int64
	)
	if err := r.Scan(&t.TeamID, &t.Name, &t.Description, &t.LeaderAgentID, &memberIDs, &t.IsActive, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.MemberIDs = decodeStrings(memberIDs)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	return &t, nil
}

func (s *Store) ListTeams(ctx context.Context) ([]store.Team, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+teamColumns+` FROM teams ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) GetTeam(ctx context.Context, teamID string) (store.Team, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+teamColumns+` FROM teams WHERE team_id = $1`, teamID)
	t, err := scanTeam(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Team{}, fmt.Errorf("team not found: %s", teamID)
		}
		return store.Team{}, err
	}
	return *t, nil
}

func (s *Store) CreateTeam(ctx context.Context, t store.Team) (store.Team, error) {
	if t.Name == "" {
		return store.Team{}, errors.New("team name required")
	}
	if t.LeaderAgentID == "" {
		return store.Team{}, errors.New("team leader required")
	}
	if t.TeamID == "" {
		t.TeamID = newID()
	}
	now := time.Now().UTC()
	t.CreatedAt, t.UpdatedAt = now, now
	_, err := s.Pool.Exec(ctx, `INSERT INTO teams(`+teamColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		t.TeamID, t.Name, t.Description, t.LeaderAgentID, encodeStrings(t.MemberIDs), t.IsActive, now.Unix(), now.Unix())
	if err != nil {
		return store.Team{}, err
	}
	return t, nil
}

func (s *Store) UpdateTeam(ctx context.Context, t store.Team) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE teams SET name=$1, description=$2, leader_agent_id=$3, member_ids=$4, is_active=$5, updated_at=$6 WHERE team_id=$7`,
		t.Name, t.Description, t.LeaderAgentID, encodeStrings(t.MemberIDs), t.IsActive, time.Now().UTC().Unix(), t.TeamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("team not found: %s", t.TeamID)
	}
	return nil
}

func (s *Store) DeleteTeam(ctx context.Context, teamID string) error {
	tag, err := s.Pool.Exec(ctx, `DELETE FROM teams WHERE team_id = $1`, teamID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("team not found: %s", teamID)
	}
	return nil
}

// Tasks

const taskColumns = `task_id, title, description, priority, status, auto_mode, agent_id, team_leader_id, team_member_ids, tool_names, result, error_message, created_at, updated_at, started_at, completed_at`

func scanTask(r pgx.Row) (*store.Task, error) {
	var (
		t           store.Task
		memberIDs   string
		toolNames   string
		createdAt   int64
		updatedAt   int64
		startedAt   *int64
		completedAt *int64
	)
	if err := r.Scan(&t.TaskID, &t.Title, &t.Description, &t.Priority, &t.Status, &t.AutoMode, &t.AgentID, &t.TeamLeaderID, &memberIDs, &toolNames, &t.Result, &t.ErrorMessage, &createdAt, &updatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	t.TeamMemberIDs = decodeStrings(memberIDs)
	t.ToolNames = decodeStrings(toolNames)
	t.CreatedAt = time.Unix(createdAt, 0).UTC()
	t.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	t.StartedAt = timePtr(startedAt)
	t.CompletedAt = timePtr(completedAt)
	return &t, nil
}

func (s *Store) ListTasks(ctx context.Context, status string, limit int) ([]store.Task, error) {
	if limit <= 0 {
		limit = 1000
	}
	var (
		rows pgx.Rows
		err  error
	)
	if status != "" {
		rows, err = s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE status = $1 ORDER BY created_at DESC LIMIT $2`, status, limit)
	} else {
		rows, err = s.Pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks ORDER BY created_at DESC LIMIT $1`, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func (s *Store) ListRunningTasks(ctx context.Context) ([]store.Task, error) {
	return s.ListTasks(ctx, "running", 0)
}

func (s *Store) GetTask(ctx context.Context, taskID string) (store.Task, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE task_id = $1`, taskID)
	t, err := scanTask(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Task{}, fmt.Errorf("task not found: %s", taskID)
		}
		return store.Task{}, err
	}
	return *t, nil
}

func (s *Store) CreateTask(ctx context.Context, t store.Task) (store.Task, error) {
	if t.Title == "" {
		return store.Task{}, errors.New("task title required")
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
	_, err := s.Pool.Exec(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		t.TaskID, t.Title, t.Description, t.Priority, t.Status, t.AutoMode, t.AgentID, t.TeamLeaderID, encodeStrings(t.TeamMemberIDs), encodeStrings(t.ToolNames), t.Result, t.ErrorMessage, now.Unix(), now.Unix(), unixPtr(t.StartedAt), unixPtr(t.CompletedAt))
	if err != nil {
		return store.Task{}, err
	}
	return t, nil
}

func (s *Store) UpdateTask(ctx context.Context, t store.Task) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE tasks SET title=$1, description=$2, priority=$3, auto_mode=$4, agent_id=$5, team_leader_id=$6, team_member_ids=$7, tool_names=$8, updated_at=$9 WHERE task_id=$10`,
		t.Title, t.Description, t.Priority, t.AutoMode, t.AgentID, t.TeamLeaderID, encodeStrings(t.TeamMemberIDs), encodeStrings(t.ToolNames), time.Now().UTC().Unix(), t.TaskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", t.TaskID)
	}
	return nil
}

func (s *Store) SetTaskStatus(ctx context.Context, taskID, status string, result, errMsg *string) error {
	now := time.Now().UTC().Unix()
	var (
		q    string
		args []any
	)
	switch status {
	case "running":
		q = `UPDATE tasks SET status=$1, result=NULL, error_message=NULL, started_at=$2, completed_at=NULL, updated_at=$3 WHERE task_id=$4`
		args = []any{status, now, now, taskID}
	case "completed", "failed", "cancelled":
		q = `UPDATE tasks SET status=$1, result=$2, error_message=$3, completed_at=$4, updated_at=$5 WHERE task_id=$6`
		args = []any{status, result, errMsg, now, now, taskID}
	default:
		q = `UPDATE tasks SET status=$1, updated_at=$2 WHERE task_id=$3`
		args = []any{status, now, taskID}
	}
	tag, err := s.Pool.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *Store) SetTaskDescription(ctx context.Context, taskID, description string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE tasks SET description=$1, updated_at=$2 WHERE task_id=$3`, description, time.Now().UTC().Unix(), taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *Store) SetTaskAutoMode(ctx context.Context, taskID string, autoMode bool) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE tasks SET auto_mode=$1, updated_at=$2 WHERE task_id=$3`, autoMode, time.Now().UTC().Unix(), taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *Store) AssignTaskAgent(ctx context.Context, taskID, agentID string) error {
	tag, err := s.Pool.Exec(ctx, `UPDATE tasks SET agent_id=$1, updated_at=$2 WHERE task_id=$3`, agentID, time.Now().UTC().Unix(), taskID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", taskID)
	}
	return nil
}

func (s *Store) TaskStatus(ctx context.Context, taskID string) (string, error) {
	var status string
	err := s.Pool.QueryRow(ctx, `SELECT status FROM tasks WHERE task_id = $1`, taskID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("task not found: %s", taskID)
		}
		return "", err
	}
	return status, nil
}

func (s *Store) DeleteTask(ctx context.Context, taskID string) error {
	status, err := s.TaskStatus(ctx, taskID)
	if err != nil {
		return err
	}
	if status == "running" {
		return errors.New("cannot delete a running task")
	}
	_, err = s.Pool.Exec(ctx, `DELETE FROM tasks WHERE task_id = $1`, taskID)
	return err
}

// Interactions

const interactionColumns = `interaction_id, task_id, agent_id, interaction_type, content, metadata, requires_response, response, seq, created_at, responded_at`

func scanInteraction(r pgx.Row) (*store.Interaction, error) {
	var (
		in          store.Interaction
		metadata    *string
		createdAt   int64
		respondedAt *int64
	)
	if err := r.Scan(&in.InteractionID, &in.TaskID, &in.AgentID, &in.InteractionType, &in.Content, &metadata, &in.RequiresResponse, &in.Response, &in.Seq, &createdAt, &respondedAt); err != nil {
		return nil, err
	}
	in.Metadata = decodeMetadata(metadata)
	in.CreatedAt = time.Unix(createdAt, 0).UTC()
	in.RespondedAt = timePtr(respondedAt)
	return &in, nil
}

func (s *Store) CreateInteraction(ctx context.Context, in store.Interaction) (store.Interaction, error) {
	if in.TaskID == "" {
		return store.Interaction{}, errors.New("interaction task_id required")
	}
	if in.InteractionType == "" {
		return store.Interaction{}, errors.New("interaction_type required")
	}
	if in.InteractionID == "" {
		in.InteractionID = newID()
	}
	now := time.Now().UTC()
	in.CreatedAt = now
	err := s.Pool.QueryRow(ctx, `INSERT INTO interactions(interaction_id, task_id, agent_id, interaction_type, content, metadata, requires_response, response, created_at, responded_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10) RETURNING seq`,
		in.InteractionID, in.TaskID, in.AgentID, in.InteractionType, in.Content, encodeMetadata(in.Metadata), in.RequiresResponse, in.Response, now.Unix(), unixPtr(in.RespondedAt)).Scan(&in.Seq)
	if err != nil {
		return store.Interaction{}, err
	}
	return in, nil
}

func (s *Store) GetInteraction(ctx context.Context, interactionID string) (store.Interaction, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE interaction_id = $1`, interactionID)
	in, err := scanInteraction(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Interaction{}, fmt.Errorf("interaction not found: %s", interactionID)
		}
		return store.Interaction{}, err
	}
	return *in, nil
}

func (s *Store) ListInteractions(ctx context.Context, taskID string, opts store.InteractionQuery) ([]store.Interaction, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 500
	}
	q := `SELECT ` + interactionColumns + ` FROM interactions WHERE task_id = $1`
	args := []any{taskID}
	if opts.SinceID != "" {
		args = append(args, opts.SinceID)
		q += fmt.Sprintf(` AND seq > (SELECT seq FROM interactions WHERE interaction_id = $%d)`, len(args))
	}
	if opts.Type != "" {
		args = append(args, opts.Type)
		q += fmt.Sprintf(` AND interaction_type = $%d`, len(args))
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY seq ASC LIMIT $%d`, len(args))

	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (s *Store) ListPendingInteractions(ctx context.Context, taskID string) ([]store.Interaction, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+interactionColumns+` FROM interactions WHERE task_id = $1 AND requires_response AND response IS NULL ORDER BY seq ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *in)
	}
	return out, rows.Err()
}

func (s *Store) HasPendingInteraction(ctx context.Context, taskID string) (bool, error) {
	var n int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM interactions WHERE task_id = $1 AND requires_response AND response IS NULL`, taskID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) RespondInteraction(ctx context.Context, interactionID, response string) (store.Interaction, error) {
	tag, err := s.Pool.Exec(ctx, `UPDATE interactions SET response=$1, responded_at=$2 WHERE interaction_id=$3 AND requires_response AND response IS NULL`, response, time.Now().UTC().Unix(), interactionID)
	if err != nil {
		return store.Interaction{}, err
	}
	if tag.RowsAffected() == 0 {
		in, err := s.GetInteraction(ctx, interactionID)
		if err != nil {
			return store.Interaction{}, err
		}
		if !in.RequiresResponse {
			return store.Interaction{}, errors.New("interaction does not require a response")
		}
		return store.Interaction{}, errors.New("interaction already answered")
	}
	return s.GetInteraction(ctx, interactionID)
}

// Approvals

const approvalColumns = `approval_id, agent_id, task_id, tool_names, reason, status, response_note, requested_at, responded_at`

func scanApproval(r pgx.Row) (*store.ApprovalRequest, error) {
	var (
		a           store.ApprovalRequest
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

func (s *Store) CreateApproval(ctx context.Context, a store.ApprovalRequest) (store.ApprovalRequest, error) {
	if a.AgentID == "" {
		return store.ApprovalRequest{}, errors.New("approval agent_id required")
	}
	if len(a.ToolNames) == 0 {
		return store.ApprovalRequest{}, errors.New("approval tool names required")
	}
	if a.ApprovalID == "" {
		a.ApprovalID = newID()
	}
	if a.Status == "" {
		a.Status = "pending"
	}
	now := time.Now().UTC()
	a.RequestedAt = now
	_, err := s.Pool.Exec(ctx, `INSERT INTO approvals(`+approvalColumns+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		a.ApprovalID, a.AgentID, a.TaskID, encodeStrings(a.ToolNames), a.Reason, a.Status, a.ResponseNote, now.Unix(), unixPtr(a.RespondedAt))
	if err != nil {
		return store.ApprovalRequest{}, err
	}
	return a, nil
}

func (s *Store) GetApproval(ctx context.Context, approvalID string) (store.ApprovalRequest, error) {
	row := s.Pool.QueryRow(ctx, `SELECT `+approvalColumns+` FROM approvals WHERE approval_id = $1`, approvalID)
	a, err := scanApproval(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.ApprovalRequest{}, fmt.Errorf("approval not found: %s", approvalID)
		}
		return store.ApprovalRequest{}, err
	}
	return *a, nil
}

func (s *Store) ListPendingApprovals(ctx context.Context, agentID string) ([]store.ApprovalRequest, error) {
	q := `SELECT ` + approvalColumns + ` FROM approvals WHERE status = 'pending'`
	args := []any{}
	if agentID != "" {
		args = append(args, agentID)
		q += ` AND agent_id = $1`
	}
	q += ` ORDER BY requested_at ASC`
	rows, err := s.Pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ApprovalRequest
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (s *Store) HasPendingApproval(ctx context.Context, taskID string) (bool, error) {
	var n int
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM approvals WHERE task_id = $1 AND status = 'pending'`, taskID).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ResolveApproval(ctx context.Context, approvalID, status string, note *string) (bool, error) {
	switch status {
	case "approved", "rejected", "timeout":
	default:
		return false, fmt.Errorf("invalid approval status: %s", status)
	}
	tag, err := s.Pool.Exec(ctx, `UPDATE approvals SET status=$1, response_note=$2, responded_at=$3 WHERE approval_id=$4 AND status='pending'`,
		status, note, time.Now().UTC().Unix(), approvalID)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.GetApproval(ctx, approvalID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// Execution log

func (s *Store) AppendExecutionLog(ctx context.Context, e store.ExecutionLogEntry) (store.ExecutionLogEntry, error) {
	if e.TaskID == "" {
		return store.ExecutionLogEntry{}, errors.New("execution log task_id required")
	}
	if e.LogID == "" {
		e.LogID = newID()
	}
	if e.Status == "" {
		e.Status = "started"
	}
	now := time.Now().UTC()
	e.CreatedAt = now
	_, err := s.Pool.Exec(ctx, `INSERT INTO execution_logs(log_id, task_id, agent_id, tool_name, action, input, output, status, error_message, duration_ms, created_at) VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.LogID, e.TaskID, e.AgentID, e.ToolName, e.Action, e.Input, e.Output, e.Status, e.ErrorMessage, e.DurationMs, now.Unix())
	if err != nil {
		return store.ExecutionLogEntry{}, err
	}
	return e, nil
}

func (s *Store) ListExecutionLog(ctx context.Context, taskID string, limit int) ([]store.ExecutionLogEntry, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := s.Pool.Query(ctx, `SELECT log_id, task_id, agent_id, tool_name, action, input, output, status, error_message, duration_ms, created_at FROM execution_logs WHERE task_id = $1 ORDER BY created_at ASC, log_id ASC LIMIT $2`, taskID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ExecutionLogEntry
	for rows.Next() {
		var (
			e         store.ExecutionLogEntry
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
