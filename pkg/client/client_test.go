package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skoibuchi/ai-agent-team-management/pkg/models"
)

func TestNew(t *testing.T) {
	c := New("http://localhost:8326", "")
	if c.BaseURL != "http://localhost:8326" || c.APIKey != "" {
		t.Errorf("New: %+v", c)
	}
	c2 := New("http://localhost:8326", "secret")
	if c2.APIKey != "secret" {
		t.Errorf("New with key: %+v", c2)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	ok, err := New(srv.URL, "").Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if !ok {
		t.Fatal("Health: expected ok true")
	}
}

func TestDoJSON_apiErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"task x is already running"}`))
	}))
	defer srv.Close()

	err := New(srv.URL, "").ExecuteTask(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error from 409")
	}
	if got := err.Error(); got != "api POST /tasks/x/execute: task x is already running" {
		t.Errorf("error: %q", got)
	}
}

func TestClient_setsAPIKeyHeader(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-Key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	_, _ = New(srv.URL, "mykey").Health(context.Background())
	if gotKey != "mykey" {
		t.Errorf("X-API-Key: got %q", gotKey)
	}
}

func TestCreateTask_roundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tasks" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req CreateTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Title != "ship it" || !req.Execute {
			t.Errorf("request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.Task{TaskID: "t1", Title: req.Title, Status: models.TaskRunning})
	}))
	defer srv.Close()

	task, err := New(srv.URL, "").CreateTask(context.Background(), CreateTaskRequest{Title: "ship it", Execute: true})
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if task.TaskID != "t1" || task.Status != models.TaskRunning {
		t.Errorf("task: %+v", task)
	}
}

func TestAnalyzeTask_roundTrip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/tasks/analyze" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var req AnalyzeTaskRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Description != "research llm routers" || req.Provider != "ollama" {
			t.Errorf("request: %+v", req)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(models.TaskAnalysis{
			TaskType: "research", Complexity: "medium", RecommendedTools: []string{"web_search"},
		})
	}))
	defer srv.Close()

	analysis, err := New(srv.URL, "").AnalyzeTask(context.Background(), AnalyzeTaskRequest{
		Description: "research llm routers", Provider: "ollama",
	})
	if err != nil {
		t.Fatalf("AnalyzeTask: %v", err)
	}
	if analysis.TaskType != "research" || len(analysis.RecommendedTools) != 1 {
		t.Errorf("analysis: %+v", analysis)
	}
}

func TestListInteractions_queryEncoding(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	_, err := New(srv.URL, "").ListInteractions(context.Background(), "t1", InteractionQuery{
		SinceID: "i5", Type: models.InteractionQuestion, Limit: 10,
	})
	if err != nil {
		t.Fatalf("ListInteractions: %v", err)
	}
	if gotQuery != "limit=10&since=i5&type=question" {
		t.Errorf("query: %q", gotQuery)
	}
}

func TestStreamEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"type\":\"connected\"}\n\n"))
		_, _ = w.Write([]byte(": keepalive\n\n"))
		_, _ = w.Write([]byte("data: {\"type\":\"task_completed\",\"topic\":\"task:t1\",\"task_id\":\"t1\"}\n\n"))
	}))
	defer srv.Close()

	var got []Event
	err := New(srv.URL, "").StreamEvents(context.Background(), func(ev Event) {
		got = append(got, ev)
	})
	if err != nil {
		t.Fatalf("StreamEvents: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("events: %+v", got)
	}
	if got[1].Type != "task_completed" || got[1].TaskID != "t1" || got[1].Topic != "task:t1" {
		t.Errorf("event: %+v", got[1])
	}
}
