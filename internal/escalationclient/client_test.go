package escalationclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCreateJobReturnsJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs" || r.Method != http.MethodPost {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var req createJobRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-escalate" || req.Prompt != "investigate down transition" {
			t.Errorf("unexpected request body: %+v", req)
		}
		json.NewEncoder(w).Encode(createJobResponse{JobID: "job-123"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	jobID, err := c.CreateJob(context.Background(), "investigate down transition", "gpt-escalate")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if jobID != "job-123" {
		t.Fatalf("expected job-123, got %q", jobID)
	}
}

func TestPollReturnsDoneAndOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/jobs/job-123" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(pollResponse{Done: true, Output: "likely a deploy regression"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "tok")
	done, output, err := c.Poll(context.Background(), "job-123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !done {
		t.Fatal("expected done=true")
	}
	if output != "likely a deploy regression" {
		t.Fatalf("unexpected output: %q", output)
	}
}

func TestCreateJobErrorsOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.CreateJob(context.Background(), "x", "y"); err == nil {
		t.Fatal("expected an error for a 502 response")
	}
}
