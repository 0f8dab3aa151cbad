package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/skoibuchi/ai-agent-team-management/internal/llm"
	"github.com/skoibuchi/ai-agent-team-management/internal/store"
	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

// --- API shape converters ---

func apiAgent(a store.Agent) models.Agent {
	return models.Agent{
		AgentID:      a.AgentID,
		Name:         a.Name,
		Role:         a.Role,
		AgentType:    a.AgentType,
		SupervisorID: a.SupervisorID,
		LLMProvider:  a.LLMProvider,
		LLMModel:     a.LLMModel,
		LLMBaseURL:   a.LLMBaseURL,
		APIKeyEnv:    a.APIKeyEnv,
		Temperature:  a.Temperature,
		MaxTokens:    a.MaxTokens,
		ToolNames:    a.ToolNames,
		Status:       a.Status,
		CreatedAt:    a.CreatedAt,
		UpdatedAt:    a.UpdatedAt,
	}
}

func apiTeam(t store.Team) models.Team {
	return models.Team{
		TeamID:        t.TeamID,
		Name:          t.Name,
		Description:   t.Description,
		LeaderAgentID: t.LeaderAgentID,
		MemberIDs:     t.MemberIDs,
		IsActive:      t.IsActive,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
}

func apiTask(t store.Task, detailed string) models.Task {
	return models.Task{
		TaskID:         t.TaskID,
		Title:          t.Title,
		Description:    t.Description,
		Priority:       t.Priority,
		Status:         t.Status,
		DetailedStatus: detailed,
		AutoMode:       t.AutoMode,
		AgentID:        t.AgentID,
		TeamLeaderID:   t.TeamLeaderID,
		TeamMemberIDs:  t.TeamMemberIDs,
		ToolNames:      t.ToolNames,
		Result:         t.Result,
		ErrorMessage:   t.ErrorMessage,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
		StartedAt:      t.StartedAt,
		CompletedAt:    t.CompletedAt,
	}
}

func apiInteraction(in store.Interaction) models.Interaction {
	return models.Interaction{
		InteractionID:    in.InteractionID,
		TaskID:           in.TaskID,
		AgentID:          in.AgentID,
		InteractionType:  in.InteractionType,
		Content:          in.Content,
		Metadata:         in.Metadata,
		RequiresResponse: in.RequiresResponse,
		Response:         in.Response,
		CreatedAt:        in.CreatedAt,
		RespondedAt:      in.RespondedAt,
	}
}

func apiApproval(a store.ApprovalRequest) models.ApprovalRequest {
	return models.ApprovalRequest{
		ApprovalID:   a.ApprovalID,
		AgentID:      a.AgentID,
		TaskID:       a.TaskID,
		ToolNames:    a.ToolNames,
		Reason:       a.Reason,
		Status:       a.Status,
		ResponseNote: a.ResponseNote,
		RequestedAt:  a.RequestedAt,
		RespondedAt:  a.RespondedAt,
	}
}

func apiLogEntry(e store.ExecutionLogEntry) models.ExecutionLogEntry {
	return models.ExecutionLogEntry{
		LogID:        e.LogID,
		TaskID:       e.TaskID,
		AgentID:      e.AgentID,
		ToolName:     e.ToolName,
		Action:       e.Action,
		Input:        e.Input,
		Output:       e.Output,
		Status:       e.Status,
		ErrorMessage: e.ErrorMessage,
		DurationMs:   e.DurationMs,
		CreatedAt:    e.CreatedAt,
	}
}

// --- Tasks ---

func (a *App) handleTasks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		status := r.URL.Query().Get("status")
		limit := parseLimit(r, models.DefaultTaskListLimit)
		tasks, err := a.Store.ListTasks(r.Context(), status, limit)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]models.Task, 0, len(tasks))
		for _, t := range tasks {
			detailed, err := a.Orch.DetailedStatus(r.Context(), t)
			if err != nil {
				detailed = t.Status
			}
			out = append(out, apiTask(t, detailed))
		}
		writeJSON(w, out)
	case http.MethodPost:
		var body struct {
			Title         string   `json:"title"`
			Description   string   `json:"description"`
			Priority      string   `json:"priority"`
			AutoMode      bool     `json:"auto_mode"`
			AgentID       *string  `json:"agent_id"`
			TeamID        *string  `json:"team_id"`
			TeamLeaderID  *string  `json:"team_leader_id"`
			TeamMemberIDs []string `json:"team_member_ids"`
			ToolNames     []string `json:"tool_names"`
			Execute       bool     `json:"execute"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		t := store.Task{
			Title:         body.Title,
			Description:   body.Description,
			Priority:      body.Priority,
			AutoMode:      body.AutoMode,
			AgentID:       body.AgentID,
			TeamLeaderID:  body.TeamLeaderID,
			TeamMemberIDs: body.TeamMemberIDs,
			ToolNames:     body.ToolNames,
		}
		// A pre-defined team resolves to its leader and members at submit.
		if body.TeamID != nil {
			team, err := a.Store.GetTeam(r.Context(), *body.TeamID)
			if err != nil {
				writeJSONError(w, statusForErr(err), err.Error())
				return
			}
			if !team.IsActive {
				writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("team %s is not active", team.TeamID))
				return
			}
			t.TeamLeaderID = &team.LeaderAgentID
			t.TeamMemberIDs = team.MemberIDs
			t.AgentID = nil
		}
		created, err := a.Orch.Submit(r.Context(), t)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		if body.Execute {
			if err := a.Orch.Execute(r.Context(), created.TaskID); err != nil {
				writeJSONError(w, http.StatusConflict, err.Error())
				return
			}
			created, _ = a.Store.GetTask(r.Context(), created.TaskID)
		}
		writeJSON(w, apiTask(created, created.Status))
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleTaskSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/tasks/")
	parts := strings.Split(rest, "/")
	if len(parts) < 1 || parts[0] == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	taskID := parts[0]

	// /tasks/{id}
	if len(parts) == 1 || parts[1] == "" {
		switch r.Method {
		case http.MethodGet:
			t, err := a.Store.GetTask(r.Context(), taskID)
			if err != nil {
				writeJSONError(w, statusForErr(err), err.Error())
				return
			}
			detailed, err := a.Orch.DetailedStatus(r.Context(), t)
			if err != nil {
				detailed = t.Status
			}
			writeJSON(w, apiTask(t, detailed))
		case http.MethodPut, http.MethodPatch:
			cur, err := a.Store.GetTask(r.Context(), taskID)
			if err != nil {
				writeJSONError(w, statusForErr(err), err.Error())
				return
			}
			if cur.Status == models.TaskRunning {
				writeJSONError(w, http.StatusConflict, "task is running")
				return
			}
			var body struct {
				Title       string   `json:"title"`
				Description string   `json:"description"`
				Priority    string   `json:"priority"`
				AgentID     *string  `json:"agent_id"`
				ToolNames   []string `json:"tool_names"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeJSONError(w, http.StatusBadRequest, "invalid json")
				return
			}
			if body.Title != "" {
				cur.Title = body.Title
			}
			if body.Description != "" {
				cur.Description = body.Description
			}
			if body.Priority != "" {
				cur.Priority = body.Priority
			}
			if body.AgentID != nil {
				if _, err := a.Store.GetAgent(r.Context(), *body.AgentID); err != nil {
					writeJSONError(w, statusForErr(err), err.Error())
					return
				}
				cur.AgentID = body.AgentID
			}
			if body.ToolNames != nil {
				cur.ToolNames = body.ToolNames
			}
			if err := a.Store.UpdateTask(r.Context(), cur); err != nil {
				writeJSONError(w, http.StatusBadRequest, err.Error())
				return
			}
			updated, _ := a.Store.GetTask(r.Context(), taskID)
			writeJSON(w, apiTask(updated, updated.Status))
		case http.MethodDelete:
			if err := a.Store.DeleteTask(r.Context(), taskID); err != nil {
				code := statusForErr(err)
				if strings.Contains(err.Error(), "running") {
					code = http.StatusConflict
				}
				writeJSONError(w, code, err.Error())
				return
			}
			writeJSON(w, map[string]any{"ok": true})
		default:
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch parts[1] {
	case "execute":
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := a.Orch.Execute(r.Context(), taskID); err != nil {
			code := statusForErr(err)
			if strings.Contains(err.Error(), "already running") {
				code = http.StatusConflict
			}
			writeJSONError(w, code, err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true, "task_id": taskID})

	case "cancel":
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if err := a.Orch.Cancel(r.Context(), taskID); err != nil {
			code := statusForErr(err)
			if strings.Contains(err.Error(), "not running") {
				code = http.StatusConflict
			}
			writeJSONError(w, code, err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true, "task_id": taskID})

	case "message":
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body struct {
			Message string `json:"message"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := a.Orch.ResumeWithMessage(r.Context(), taskID, body.Message); err != nil {
			code := statusForErr(err)
			if strings.Contains(err.Error(), "cannot be resumed") {
				code = http.StatusConflict
			}
			writeJSONError(w, code, err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true, "task_id": taskID})

	case "auto-mode":
		if r.Method != http.MethodPost {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		var body struct {
			AutoMode bool `json:"auto_mode"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if err := a.Store.SetTaskAutoMode(r.Context(), taskID, body.AutoMode); err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		a.Hub.PublishTask(taskID, "auto_mode_changed", map[string]any{"auto_mode": body.AutoMode})
		writeJSON(w, map[string]any{"ok": true, "auto_mode": body.AutoMode})

	case "interactions":
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		if len(parts) >= 3 && parts[2] == "pending" {
			pend, err := a.Store.ListPendingInteractions(r.Context(), taskID)
			if err != nil {
				writeJSONError(w, statusForErr(err), err.Error())
				return
			}
			out := make([]models.Interaction, 0, len(pend))
			for _, in := range pend {
				out = append(out, apiInteraction(in))
			}
			writeJSON(w, out)
			return
		}
		ins, err := a.Store.ListInteractions(r.Context(), taskID, store.InteractionQuery{
			SinceID: r.URL.Query().Get("since"),
			Type:    r.URL.Query().Get("type"),
			Limit:   parseLimit(r, models.DefaultInteractionLimit),
		})
		if err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		out := make([]models.Interaction, 0, len(ins))
		for _, in := range ins {
			out = append(out, apiInteraction(in))
		}
		writeJSON(w, out)

	case "logs":
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		logs, err := a.Store.ListExecutionLog(r.Context(), taskID, parseLimit(r, 0))
		if err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		out := make([]models.ExecutionLogEntry, 0, len(logs))
		for _, e := range logs {
			out = append(out, apiLogEntry(e))
		}
		writeJSON(w, out)

	default:
		writeJSONError(w, http.StatusNotFound, "not found")
	}
}

// handleTaskAnalyze classifies a task description and recommends registered
// tools for it, without creating the task. The model defaults to the server's
// provider configuration; the request can override it.
func (a *App) handleTaskAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Description string `json:"description"`
		Provider    string `json:"provider"`
		Model       string `json:"model"`
		BaseURL     string `json:"base_url"`
		APIKeyEnv   string `json:"api_key_env"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if strings.TrimSpace(body.Description) == "" {
		writeJSONError(w, http.StatusBadRequest, "description required")
		return
	}
	model, err := a.ResolveModel(llm.Config{
		Provider:  body.Provider,
		Model:     body.Model,
		BaseURL:   body.BaseURL,
		APIKeyEnv: body.APIKeyEnv,
	})
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	analysis, err := a.Orch.AnalyzeTask(r.Context(), model, body.Description)
	if err != nil {
		writeJSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, analysis)
}

// --- Interactions ---

func (a *App) handleInteractionSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/interactions/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "respond" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if body.Response == "" {
		writeJSONError(w, http.StatusBadRequest, "response required")
		return
	}
	in, err := a.Store.RespondInteraction(r.Context(), parts[0], body.Response)
	if err != nil {
		code := statusForErr(err)
		if strings.Contains(err.Error(), "already answered") || strings.Contains(err.Error(), "does not require") {
			code = http.StatusConflict
		}
		writeJSONError(w, code, err.Error())
		return
	}
	a.Hub.PublishTask(in.TaskID, "interaction_answered", map[string]any{
		"interaction_id": in.InteractionID,
		"response":       body.Response,
	})
	writeJSON(w, apiInteraction(in))
}

// --- Approvals ---

func (a *App) handleApprovals(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	pend, err := a.Store.ListPendingApprovals(r.Context(), r.URL.Query().Get("agent_id"))
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]models.ApprovalRequest, 0, len(pend))
	for _, ap := range pend {
		out = append(out, apiApproval(ap))
	}
	writeJSON(w, out)
}

func (a *App) handleApprovalSubroutes(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/approvals/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var body struct {
		Note *string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSONError(w, http.StatusBadRequest, "invalid json")
		return
	}

	approvalID := parts[0]
	var changed bool
	var err error
	switch parts[1] {
	case "approve":
		changed, err = a.Orch.Approval.Approve(r.Context(), approvalID, body.Note)
	case "reject":
		changed, err = a.Orch.Approval.Reject(r.Context(), approvalID, body.Note)
	default:
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	if err != nil {
		writeJSONError(w, statusForErr(err), err.Error())
		return
	}
	if !changed {
		writeJSONError(w, http.StatusConflict, "approval already decided")
		return
	}
	ap, err := a.Store.GetApproval(r.Context(), approvalID)
	if err != nil {
		writeJSONError(w, statusForErr(err), err.Error())
		return
	}
	writeJSON(w, apiApproval(ap))
}

// --- Agents ---

func (a *App) handleAgents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		agents, err := a.Store.ListAgents(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]models.Agent, 0, len(agents))
		for _, ag := range agents {
			out = append(out, apiAgent(ag))
		}
		writeJSON(w, out)
	case http.MethodPost:
		var body models.Agent
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Name == "" {
			writeJSONError(w, http.StatusBadRequest, "name required")
			return
		}
		if body.AgentType == "" {
			body.AgentType = models.AgentTypeWorker
		}
		if body.AgentType != models.AgentTypeWorker && body.AgentType != models.AgentTypeSupervisor {
			writeJSONError(w, http.StatusBadRequest, "agent_type must be worker or supervisor")
			return
		}
		if body.AgentType == models.AgentTypeSupervisor && body.SupervisorID != nil {
			writeJSONError(w, http.StatusBadRequest, "a supervisor cannot itself have a supervisor")
			return
		}
		if body.SupervisorID != nil {
			if _, err := a.Store.GetAgent(r.Context(), *body.SupervisorID); err != nil {
				writeJSONError(w, statusForErr(err), err.Error())
				return
			}
		}
		created, err := a.Store.CreateAgent(r.Context(), store.Agent{
			Name:         body.Name,
			Role:         body.Role,
			AgentType:    body.AgentType,
			SupervisorID: body.SupervisorID,
			LLMProvider:  body.LLMProvider,
			LLMModel:     body.LLMModel,
			LLMBaseURL:   body.LLMBaseURL,
			APIKeyEnv:    body.APIKeyEnv,
			Temperature:  body.Temperature,
			MaxTokens:    body.MaxTokens,
			ToolNames:    body.ToolNames,
		})
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Hub.PublishBroadcast("agent_created", map[string]any{"agent_id": created.AgentID, "name": created.Name})
		writeJSON(w, apiAgent(created))
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleAgentByID(w http.ResponseWriter, r *http.Request) {
	agentID := strings.TrimPrefix(r.URL.Path, "/agents/")
	if agentID == "" || strings.Contains(agentID, "/") {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		ag, err := a.Store.GetAgent(r.Context(), agentID)
		if err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		writeJSON(w, apiAgent(ag))
	case http.MethodPut, http.MethodPatch:
		cur, err := a.Store.GetAgent(r.Context(), agentID)
		if err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		var body models.Agent
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Name != "" {
			cur.Name = body.Name
		}
		if body.Role != "" {
			cur.Role = body.Role
		}
		if body.AgentType != "" {
			cur.AgentType = body.AgentType
		}
		if body.SupervisorID != nil {
			cur.SupervisorID = body.SupervisorID
		}
		if body.LLMProvider != "" {
			cur.LLMProvider = body.LLMProvider
		}
		if body.LLMModel != "" {
			cur.LLMModel = body.LLMModel
		}
		if body.LLMBaseURL != nil {
			cur.LLMBaseURL = body.LLMBaseURL
		}
		if body.APIKeyEnv != nil {
			cur.APIKeyEnv = body.APIKeyEnv
		}
		if body.Temperature != nil {
			cur.Temperature = body.Temperature
		}
		if body.MaxTokens != nil {
			cur.MaxTokens = body.MaxTokens
		}
		if body.ToolNames != nil {
			cur.ToolNames = body.ToolNames
		}
		if err := a.Store.UpdateAgent(r.Context(), cur); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, _ := a.Store.GetAgent(r.Context(), agentID)
		writeJSON(w, apiAgent(updated))
	case http.MethodDelete:
		if err := a.Store.DeleteAgent(r.Context(), agentID); err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// --- Teams ---

func (a *App) handleTeams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		teams, err := a.Store.ListTeams(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		out := make([]models.Team, 0, len(teams))
		for _, t := range teams {
			out = append(out, apiTeam(t))
		}
		writeJSON(w, out)
	case http.MethodPost:
		var body models.Team
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Name == "" || body.LeaderAgentID == "" || len(body.MemberIDs) == 0 {
			writeJSONError(w, http.StatusBadRequest, "name, leader_agent_id, and member_ids required")
			return
		}
		if _, err := a.Store.GetAgent(r.Context(), body.LeaderAgentID); err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		for _, id := range body.MemberIDs {
			if _, err := a.Store.GetAgent(r.Context(), id); err != nil {
				writeJSONError(w, statusForErr(err), err.Error())
				return
			}
		}
		created, err := a.Store.CreateTeam(r.Context(), store.Team{
			Name:          body.Name,
			Description:   body.Description,
			LeaderAgentID: body.LeaderAgentID,
			MemberIDs:     body.MemberIDs,
			IsActive:      true,
		})
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		a.Hub.PublishBroadcast("team_created", map[string]any{"team_id": created.TeamID, "name": created.Name})
		writeJSON(w, apiTeam(created))
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (a *App) handleTeamByID(w http.ResponseWriter, r *http.Request) {
	teamID := strings.TrimPrefix(r.URL.Path, "/teams/")
	if teamID == "" || strings.Contains(teamID, "/") {
		writeJSONError(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		t, err := a.Store.GetTeam(r.Context(), teamID)
		if err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		writeJSON(w, apiTeam(t))
	case http.MethodPut, http.MethodPatch:
		cur, err := a.Store.GetTeam(r.Context(), teamID)
		if err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		var body models.Team
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		if body.Name != "" {
			cur.Name = body.Name
		}
		if body.Description != "" {
			cur.Description = body.Description
		}
		if body.LeaderAgentID != "" {
			cur.LeaderAgentID = body.LeaderAgentID
		}
		if body.MemberIDs != nil {
			cur.MemberIDs = body.MemberIDs
		}
		cur.IsActive = body.IsActive
		if err := a.Store.UpdateTeam(r.Context(), cur); err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}
		updated, _ := a.Store.GetTeam(r.Context(), teamID)
		writeJSON(w, apiTeam(updated))
	case http.MethodDelete:
		if err := a.Store.DeleteTeam(r.Context(), teamID); err != nil {
			writeJSONError(w, statusForErr(err), err.Error())
			return
		}
		writeJSON(w, map[string]any{"ok": true})
	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}
