package notification

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ---------------------------------------------------------------------------
// RelaySink tests
// ---------------------------------------------------------------------------

func TestRelaySink_SendSuccess(t *testing.T) {
	var gotPayload relayRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected application/json, got %s", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotPayload); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("queued"))
	}))
	defer server.Close()

	sink := NewRelaySink(server.URL, "alerts@heartwatch.local", 5*time.Second)
	resp, err := sink.Send(context.Background(), "dr.gray@hospital.org", "subject", "body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "queued" {
		t.Errorf("response = %q, want %q", resp, "queued")
	}

	if gotPayload.From != "alerts@heartwatch.local" {
		t.Errorf("from = %q, want alerts@heartwatch.local", gotPayload.From)
	}
	if gotPayload.To != "dr.gray@hospital.org" {
		t.Errorf("to = %q, want dr.gray@hospital.org", gotPayload.To)
	}
	if gotPayload.Subject != "subject" || gotPayload.Body != "body" {
		t.Errorf("unexpected payload: %+v", gotPayload)
	}
}

func TestRelaySink_SendErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "relay rejected", http.StatusBadGateway)
	}))
	defer server.Close()

	sink := NewRelaySink(server.URL, "alerts@heartwatch.local", 5*time.Second)
	_, err := sink.Send(context.Background(), "dr.gray@hospital.org", "s", "b")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

func TestRelaySink_SendConnectionFailure(t *testing.T) {
	sink := NewRelaySink("http://127.0.0.1:1", "alerts@heartwatch.local", time.Second)
	_, err := sink.Send(context.Background(), "dr.gray@hospital.org", "s", "b")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// LogSink tests
// ---------------------------------------------------------------------------

func TestLogSink_Send(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)
	sink := NewLogSink(logger)

	resp, err := sink.Send(context.Background(), "dr.gray@hospital.org", "subject", "body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "logged" {
		t.Errorf("response = %q, want %q", resp, "logged")
	}
	if !strings.Contains(buf.String(), "dr.gray@hospital.org") {
		t.Error("expected recipient in log output")
	}
}

// ---------------------------------------------------------------------------
// MockSink tests
// ---------------------------------------------------------------------------

func TestMockSink_RecordsCalls(t *testing.T) {
	sink := &MockSink{Response: "ok"}

	resp, err := sink.Send(context.Background(), "to@x", "s", "b")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Errorf("response = %q, want %q", resp, "ok")
	}

	calls := sink.Calls()
	if len(calls) != 1 || calls[0].To != "to@x" {
		t.Errorf("unexpected calls: %+v", calls)
	}
}

func TestMockSink_Failure(t *testing.T) {
	sink := &MockSink{ShouldFail: true, FailError: "boom"}

	_, err := sink.Send(context.Background(), "to@x", "s", "b")
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

// ---------------------------------------------------------------------------
// Manager tests
// ---------------------------------------------------------------------------

func TestManager_SendRecordsDelivery(t *testing.T) {
	m := NewManager(&MockSink{Response: "ok"})

	resp, err := m.Send(context.Background(), "dr.gray@hospital.org", "subject", "body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp != "ok" {
		t.Errorf("response = %q, want %q", resp, "ok")
	}

	list := m.ListByRecipient("dr.gray@hospital.org", 10)
	if len(list) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(list))
	}
	d := list[0]
	if d.Status != "sent" {
		t.Errorf("status = %q, want sent", d.Status)
	}
	if d.SentAt == nil {
		t.Error("expected SentAt to be set")
	}
}

func TestManager_SendRecordsFailure(t *testing.T) {
	m := NewManager(&MockSink{ShouldFail: true, FailError: "boom"})

	_, err := m.Send(context.Background(), "dr.gray@hospital.org", "subject", "body")
	if err == nil {
		t.Fatal("expected error from failing sink")
	}

	list := m.ListByRecipient("", 10)
	if len(list) != 1 {
		t.Fatalf("expected 1 delivery, got %d", len(list))
	}
	if list[0].Status != "failed" {
		t.Errorf("status = %q, want failed", list[0].Status)
	}
	if list[0].Error == "" {
		t.Error("expected error recorded on delivery")
	}
}

func TestManager_Get(t *testing.T) {
	m := NewManager(&MockSink{})
	m.Send(context.Background(), "a@x", "s", "b")

	list := m.ListByRecipient("", 10)
	d, err := m.Get(list[0].ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Recipient != "a@x" {
		t.Errorf("recipient = %q, want a@x", d.Recipient)
	}

	if _, err := m.Get("nonexistent"); err == nil {
		t.Error("expected error for unknown delivery id")
	}
}

func TestManager_ListByRecipient_Filters(t *testing.T) {
	m := NewManager(&MockSink{})
	m.Send(context.Background(), "a@x", "s1", "b1")
	m.Send(context.Background(), "b@x", "s2", "b2")
	m.Send(context.Background(), "a@x", "s3", "b3")

	list := m.ListByRecipient("a@x", 10)
	if len(list) != 2 {
		t.Fatalf("expected 2 deliveries for a@x, got %d", len(list))
	}
	// Creation order preserved
	if list[0].Subject != "s1" || list[1].Subject != "s3" {
		t.Errorf("unexpected order: %+v", list)
	}

	all := m.ListByRecipient("", 10)
	if len(all) != 3 {
		t.Errorf("expected 3 deliveries total, got %d", len(all))
	}

	limited := m.ListByRecipient("", 2)
	if len(limited) != 2 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}

func TestManager_RetryFailedDelivery(t *testing.T) {
	sink := &MockSink{ShouldFail: true, FailError: "boom"}
	m := NewManager(sink)
	m.Send(context.Background(), "a@x", "s", "b")

	list := m.ListByRecipient("", 10)
	id := list[0].ID

	// First retry also fails
	if err := m.Retry(context.Background(), id); err == nil {
		t.Fatal("expected retry to fail while sink fails")
	}

	// Sink recovers; retry succeeds
	sink.ShouldFail = false
	if err := m.Retry(context.Background(), id); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	d, _ := m.Get(id)
	if d.Status != "sent" {
		t.Errorf("status = %q, want sent after successful retry", d.Status)
	}
	if d.Error != "" {
		t.Errorf("expected error cleared after retry, got %q", d.Error)
	}
}

func TestManager_RetryRejectsSentDelivery(t *testing.T) {
	m := NewManager(&MockSink{})
	m.Send(context.Background(), "a@x", "s", "b")

	list := m.ListByRecipient("", 10)
	if err := m.Retry(context.Background(), list[0].ID); err == nil {
		t.Error("expected error retrying a sent delivery")
	}
	if err := m.Retry(context.Background(), "nonexistent"); err == nil {
		t.Error("expected error retrying unknown delivery")
	}
}

func TestManager_Stats(t *testing.T) {
	sink := &MockSink{}
	m := NewManager(sink)
	m.Send(context.Background(), "a@x", "s", "b")

	sink.ShouldFail = true
	m.Send(context.Background(), "b@x", "s", "b")

	stats := m.Stats()
	if stats["sent"] != 1 || stats["failed"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}

// ---------------------------------------------------------------------------
// Handler tests
// ---------------------------------------------------------------------------

func setupNotificationHandler(sink Sink) (*echo.Echo, *Manager) {
	e := echo.New()
	m := NewManager(sink)
	NewHandler(m).RegisterRoutes(e.Group("/api"))
	return e, m
}

func TestHandler_List(t *testing.T) {
	e, m := setupNotificationHandler(&MockSink{})
	m.Send(context.Background(), "a@x", "s", "b")

	req := httptest.NewRequest(http.MethodGet, "/api/notifications", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var list []Delivery
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if len(list) != 1 || list[0].Recipient != "a@x" {
		t.Errorf("unexpected list: %+v", list)
	}
}

func TestHandler_GetNotFound(t *testing.T) {
	e, _ := setupNotificationHandler(&MockSink{})

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/unknown-id", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandler_Retry(t *testing.T) {
	sink := &MockSink{ShouldFail: true, FailError: "boom"}
	e, m := setupNotificationHandler(sink)
	m.Send(context.Background(), "a@x", "s", "b")
	id := m.ListByRecipient("", 1)[0].ID

	sink.ShouldFail = false
	req := httptest.NewRequest(http.MethodPost, "/api/notifications/"+id+"/retry", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var d Delivery
	if err := json.Unmarshal(rec.Body.Bytes(), &d); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if d.Status != "sent" {
		t.Errorf("status = %q, want sent", d.Status)
	}
}

func TestHandler_Stats(t *testing.T) {
	e, m := setupNotificationHandler(&MockSink{})
	m.Send(context.Background(), "a@x", "s", "b")

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/stats", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats map[string]int
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if stats["sent"] != 1 {
		t.Errorf("unexpected stats: %v", stats)
	}
}
