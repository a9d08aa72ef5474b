package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(url string, timeout time.Duration) *Client {
	cfg := DefaultClientConfig()
	cfg.BaseURL = url
	cfg.RequestTimeout = timeout
	return NewClient(cfg, nil)
}

func TestQuery_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat" {
			t.Errorf("Unexpected request: %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("Failed to decode request body: %v", err)
		}
		if body["query"] != "What is ROS 2?" {
			t.Errorf("Expected query field, got %v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		if _, err := w.Write([]byte(`{
			"response": "ROS 2 is...",
			"sources": [{"title": "ROS 2 Intro", "url": "/docs/ros2", "module": "robotics"}]
		}`)); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer srv.Close()

	answer, err := newTestClient(srv.URL, 0).Query(context.Background(), "What is ROS 2?")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer.Response != "ROS 2 is..." {
		t.Errorf("Unexpected response text: %q", answer.Response)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Title != "ROS 2 Intro" {
		t.Errorf("Unexpected sources: %+v", answer.Sources)
	}
}

func TestQuery_MissingSourcesNormalized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(`{"response": "no citations"}`)); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer srv.Close()

	answer, err := newTestClient(srv.URL, 0).Query(context.Background(), "q")
	if err != nil {
		t.Fatalf("Query failed: %v", err)
	}
	if answer.Sources == nil {
		t.Error("Expected absent sources to be normalized to an empty slice")
	}
}

func TestQuery_BackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		if _, err := w.Write([]byte(`{"error": "rate limited", "code": "RATE_LIMIT"}`)); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Query(context.Background(), "q")

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("Expected *BackendError, got %T: %v", err, err)
	}
	if backendErr.Code != "RATE_LIMIT" {
		t.Errorf("Expected code RATE_LIMIT, got %q", backendErr.Code)
	}
	if backendErr.Message != "rate limited" {
		t.Errorf("Expected message to surface verbatim, got %q", backendErr.Message)
	}
}

func TestQuery_BackendErrorWithoutBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		if _, err := w.Write([]byte("nope")); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Query(context.Background(), "q")

	var backendErr *BackendError
	if !errors.As(err, &backendErr) {
		t.Fatalf("Expected *BackendError, got %T: %v", err, err)
	}
	if backendErr.Code != "HTTP_500" {
		t.Errorf("Expected fallback code HTTP_500, got %q", backendErr.Code)
	}
	if backendErr.Message == "" {
		t.Error("Expected a generic fallback message")
	}
}

func TestQuery_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing listens anymore

	_, err := newTestClient(srv.URL, 0).Query(context.Background(), "q")

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected *NetworkError, got %T: %v", err, err)
	}
	if netErr.Message == "" {
		t.Error("Expected a user-safe message")
	}
	if netErr.Unwrap() == nil {
		t.Error("Expected the transport cause to be preserved")
	}
}

func TestQuery_Timeout(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		<-block
	}))
	defer func() {
		close(block)
		srv.Close()
	}()

	_, err := newTestClient(srv.URL, 50*time.Millisecond).Query(context.Background(), "q")

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected *NetworkError on timeout, got %T: %v", err, err)
	}
	if netErr.Message != "assistant service timed out" {
		t.Errorf("Expected timeout message, got %q", netErr.Message)
	}
}

func TestQuery_MalformedSuccessBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte("{broken")); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, 0).Query(context.Background(), "q")

	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("Expected *NetworkError for malformed body, got %T: %v", err, err)
	}
}

func TestHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if _, err := w.Write([]byte(`{"status": "healthy"}`)); err != nil {
			t.Errorf("Failed to write response: %v", err)
		}
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL, 0).Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}

func TestHealth_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	if err := newTestClient(srv.URL, 0).Health(context.Background()); err == nil {
		t.Error("Expected error for 500 health response")
	}
}
