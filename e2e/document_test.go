package e2e

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
)

func validGenerateBody() string {
	projectID := uuid.New().String()
	return fmt.Sprintf(`{
		"title": "Quarterly Infrastructure Review",
		"brief": "Summarize the state of our infrastructure and recommend next steps.",
		"projectId": "%s",
		"sections": ["Background", "Findings", "Recommendations"],
		"targetWords": 1200,
		"language": "en",
		"tone": "formal"
	}`, projectID)
}

func TestDocumentGenerate_Accepted(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusAccepted)

	result := parseJSON(t, resp)
	if result["jobId"] == nil || result["jobId"] == "" {
		t.Error("expected 'jobId' in response")
	}
	if result["status"] != "queued" {
		t.Errorf("expected status 'queued', got %v", result["status"])
	}
	if result["estimatedDuration"] == nil {
		t.Error("expected 'estimatedDuration' in response")
	}
}

func TestDocumentGenerate_NoAuth(t *testing.T) {
	ta := setupApp(t)

	resp, err := doRequest(ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody(), nil)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusUnauthorized)
}

func TestDocumentGenerate_InvalidBody(t *testing.T) {
	ta := setupApp(t)

	// Missing required title and brief
	body := `{"projectId": "not-a-uuid"}`

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", body)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
	if code := errorCode(t, resp); code != "VALIDATION_ERROR" {
		t.Errorf("expected error code VALIDATION_ERROR, got %v", code)
	}
}

func TestDocumentGenerate_QuotaExceeded(t *testing.T) {
	ta := setupQueuedApp(t)

	// Fill the quota with jobs that stay queued
	for i := 0; i < 4; i++ {
		resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody())
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		assertStatus(t, resp, http.StatusAccepted)
	}

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody())
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusTooManyRequests)
	if code := errorCode(t, resp); code != "QUOTA_EXCEEDED" {
		t.Errorf("expected error code QUOTA_EXCEEDED, got %v", code)
	}
}

func TestDocumentStatus_FullLifecycle(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody())
	if err != nil {
		t.Fatalf("generate request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	jobID := parseJSON(t, resp)["jobId"].(string)

	// Mock stages finish fast; wait for success
	status := pollUntilStatus(t, ta.app, jobID, "succeeded")

	if status["progress"] != float64(100) {
		t.Errorf("expected progress 100, got %v", status["progress"])
	}
	if status["resultReady"] != true {
		t.Error("expected resultReady true")
	}
	history, ok := status["stageHistory"].([]interface{})
	if !ok {
		t.Fatalf("expected stageHistory array, got %v", status["stageHistory"])
	}
	if len(history) != 4 {
		t.Errorf("expected 4 completed stages, got %d", len(history))
	}

	// Result is now available
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/documents/result/"+jobID, "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	if result["title"] != "Quarterly Infrastructure Review" {
		t.Errorf("expected document title, got %v", result["title"])
	}
	sections, ok := result["sections"].([]interface{})
	if !ok || len(sections) != 3 {
		t.Errorf("expected 3 sections, got %v", result["sections"])
	}
}

func TestDocumentStatus_NotFound(t *testing.T) {
	ta := setupApp(t)

	fakeJobID := uuid.New().String()
	resp, err := doAuthRequest(t, ta.app, http.MethodGet, "/api/documents/status/"+fakeJobID, "")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusNotFound)
	if code := errorCode(t, resp); code != "NOT_FOUND" {
		t.Errorf("expected error code NOT_FOUND, got %v", code)
	}
}

func TestDocumentStatus_ForeignOwner(t *testing.T) {
	ta := setupQueuedApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody())
	if err != nil {
		t.Fatalf("generate request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	jobID := parseJSON(t, resp)["jobId"].(string)

	// Another user polling the same job gets 403, not the record
	resp, err = doUserRequest(t, ta.app, "other-user-456", http.MethodGet, "/api/documents/status/"+jobID, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusForbidden)
	if code := errorCode(t, resp); code != "FORBIDDEN" {
		t.Errorf("expected error code FORBIDDEN, got %v", code)
	}
}

func TestDocumentResult_NotCompleted(t *testing.T) {
	ta := setupQueuedApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody())
	if err != nil {
		t.Fatalf("generate request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	jobID := parseJSON(t, resp)["jobId"].(string)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/documents/result/"+jobID, "")
	if err != nil {
		t.Fatalf("result request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusBadRequest)
}

func TestDocumentCancel_Queued(t *testing.T) {
	ta := setupQueuedApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody())
	if err != nil {
		t.Fatalf("generate request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	jobID := parseJSON(t, resp)["jobId"].(string)

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/cancel/"+jobID, "")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusOK)

	cancelResult := parseJSON(t, resp)
	if cancelResult["success"] != true {
		t.Errorf("expected success true, got %v", cancelResult["success"])
	}
	if cancelResult["cancelRequested"] != true {
		t.Errorf("expected cancelRequested true, got %v", cancelResult["cancelRequested"])
	}

	// The flag shows up in status while the job is still queued
	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/documents/status/"+jobID, "")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	status := parseJSON(t, resp)
	if status["cancelRequested"] != true {
		t.Errorf("expected cancelRequested in status, got %v", status)
	}
}

func TestDocumentCancel_AlreadyFinished(t *testing.T) {
	ta := setupApp(t)

	resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody())
	if err != nil {
		t.Fatalf("generate request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)
	jobID := parseJSON(t, resp)["jobId"].(string)

	pollUntilStatus(t, ta.app, jobID, "succeeded")

	resp, err = doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/cancel/"+jobID, "")
	if err != nil {
		t.Fatalf("cancel request failed: %v", err)
	}

	assertStatus(t, resp, http.StatusConflict)
	if code := errorCode(t, resp); code != "INVALID_TRANSITION" {
		t.Errorf("expected error code INVALID_TRANSITION, got %v", code)
	}
}

func TestDocumentList_OwnJobsOnly(t *testing.T) {
	ta := setupQueuedApp(t)

	for i := 0; i < 2; i++ {
		resp, err := doAuthRequest(t, ta.app, http.MethodPost, "/api/documents/generate", validGenerateBody())
		if err != nil {
			t.Fatalf("generate request failed: %v", err)
		}
		assertStatus(t, resp, http.StatusAccepted)
	}
	resp, err := doUserRequest(t, ta.app, "other-user-456", http.MethodPost, "/api/documents/generate", validGenerateBody())
	if err != nil {
		t.Fatalf("generate request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusAccepted)

	resp, err = doAuthRequest(t, ta.app, http.MethodGet, "/api/documents/jobs", "")
	if err != nil {
		t.Fatalf("list request failed: %v", err)
	}
	assertStatus(t, resp, http.StatusOK)

	result := parseJSON(t, resp)
	jobs, ok := result["jobs"].([]interface{})
	if !ok {
		t.Fatalf("expected jobs array, got %v", result)
	}
	if len(jobs) != 2 {
		t.Errorf("expected 2 jobs for test user, got %d", len(jobs))
	}
}
