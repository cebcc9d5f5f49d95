package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestServer_CreateRun(t *testing.T) {
	s := NewServer(":8080", nil)

	body, _ := json.Marshal(testProblem())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var run Run
	if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if run.ID == "" {
		t.Error("Run ID should not be empty")
	}
	// worker starts immediately, so pending or running are both fine
	if run.State != StatePending && run.State != StateRunning {
		t.Errorf("Expected pending or running state, got %s", run.State)
	}
}

func TestServer_CreateRunValidatesProblem(t *testing.T) {
	s := NewServer(":8080", nil)

	// no variables: rejected before anything starts
	body := []byte(`{"name": "empty"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServer_CreateRunRejectsBadJSON(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader([]byte("{")))
	w := httptest.NewRecorder()

	s.handleCreateRun(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServer_ListRuns(t *testing.T) {
	s := NewServer(":8080", nil)

	s.runManager.CreateRun(testProblem())
	s.runManager.CreateRun(testProblem())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil)
	w := httptest.NewRecorder()

	s.handleListRuns(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var runs []Run
	if err := json.NewDecoder(w.Body).Decode(&runs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(runs) != 2 {
		t.Errorf("Expected 2 runs, got %d", len(runs))
	}
}

func TestServer_GetRun(t *testing.T) {
	s := NewServer(":8080", nil)
	run := s.runManager.CreateRun(testProblem())

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/runs/%s", run.ID), nil)
	w := httptest.NewRecorder()

	s.handleRunsWithID(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}

	var got Run
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if got.ID != run.ID {
		t.Errorf("ID = %s, want %s", got.ID, run.ID)
	}
}

func TestServer_GetRunNotFound(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/runs/missing", nil)
	w := httptest.NewRecorder()

	s.handleRunsWithID(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_CancelRun(t *testing.T) {
	s := NewServer(":8080", nil)

	// no such run
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/missing/cancel", nil)
	w := httptest.NewRecorder()
	s.handleRunsWithID(w, req)
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}

	// run exists but has no driver attached yet: not cancellable
	run := s.runManager.CreateRun(testProblem())
	req = httptest.NewRequest(http.MethodPost, fmt.Sprintf("/api/v1/runs/%s/cancel", run.ID), nil)
	w = httptest.NewRecorder()
	s.handleRunsWithID(w, req)
	if w.Code != http.StatusConflict {
		t.Errorf("Expected status 409, got %d", w.Code)
	}

	// GET on the cancel path is rejected
	req = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/runs/%s/cancel", run.ID), nil)
	w = httptest.NewRecorder()
	s.handleRunsWithID(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", w.Code)
	}
}

func TestServer_TraceWithoutPersistence(t *testing.T) {
	s := NewServer(":8080", nil)
	run := s.runManager.CreateRun(testProblem())

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/runs/%s/trace", run.ID), nil)
	w := httptest.NewRecorder()

	s.handleRunsWithID(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 without a store, got %d", w.Code)
	}
}

func TestServer_Healthz(t *testing.T) {
	s := NewServer(":8080", nil)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	s.handleHealthz(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestServer_RunToCompletion(t *testing.T) {
	s := NewServer(":8080", nil)

	body, _ := json.Marshal(testProblem())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/runs", bytes.NewReader(body))
	w := httptest.NewRecorder()
	s.handleCreateRun(w, req)

	var run Run
	if err := json.NewDecoder(w.Body).Decode(&run); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	deadline := time.Now().Add(10 * time.Second)
	for {
		got, exists := s.runManager.GetRun(run.ID)
		if !exists {
			t.Fatal("Run disappeared")
		}
		if got.State == StateCompleted {
			if got.Result == nil {
				t.Fatal("Completed run should carry a result")
			}
			if got.Result.StopReason == "" {
				t.Error("Result should carry a stop reason")
			}
			return
		}
		if got.State == StateFailed {
			t.Fatalf("Run failed: %s", got.Error)
		}
		if time.Now().After(deadline) {
			t.Fatalf("Run did not complete, state %s", got.State)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
