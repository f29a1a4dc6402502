// Package notification provides the outbound alert delivery path: a Sink
// abstraction over an external email-relay endpoint, an in-memory delivery
// log with retry support, and Echo HTTP handlers for inspection.
package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// ErrDelivery marks a failed hand-off to the relay. Callers report it as the
// alert outcome; delivery failure is never an ingestion failure.
var ErrDelivery = errors.New("notification delivery failed")

// Sink delivers one message and returns the relay's response text. The relay
// call applies its own timeout; callers must not hold locks across Send.
type Sink interface {
	Send(ctx context.Context, to, subject, body string) (string, error)
}

// ---------------------------------------------------------------------------
// Relay sink
// ---------------------------------------------------------------------------

// RelaySink posts messages to an external email-relay endpoint as JSON.
type RelaySink struct {
	url    string
	from   string
	client *http.Client
}

// NewRelaySink creates a RelaySink with its own HTTP timeout.
func NewRelaySink(url, from string, timeout time.Duration) *RelaySink {
	return &RelaySink{
		url:    url,
		from:   from,
		client: &http.Client{Timeout: timeout},
	}
}

type relayRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Send posts the message to the relay and returns the relay's response text.
func (s *RelaySink) Send(ctx context.Context, to, subject, body string) (string, error) {
	payload, err := json.Marshal(relayRequest{From: s.from, To: to, Subject: subject, Body: body})
	if err != nil {
		return "", fmt.Errorf("marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDelivery, err)
	}
	defer resp.Body.Close()

	text, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("%w: read relay response: %v", ErrDelivery, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: relay returned %d: %s", ErrDelivery, resp.StatusCode, text)
	}
	return string(text), nil
}

// ---------------------------------------------------------------------------
// Log sink (development fallback)
// ---------------------------------------------------------------------------

// LogSink writes messages to the log instead of a relay. Used in development
// when no relay endpoint is configured.
type LogSink struct {
	logger zerolog.Logger
}

func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Send(_ context.Context, to, subject, body string) (string, error) {
	s.logger.Info().
		Str("to", to).
		Str("subject", subject).
		Str("body", body).
		Msg("notification (log sink)")
	return "logged", nil
}

// ---------------------------------------------------------------------------
// Mock sink (test double)
// ---------------------------------------------------------------------------

// SendCall records a single call to Send.
type SendCall struct {
	To      string
	Subject string
	Body    string
}

// MockSink is a test double for Sink.
type MockSink struct {
	mu         sync.Mutex
	calls      []SendCall
	Response   string
	ShouldFail bool
	FailError  string
}

// Send records the call and optionally returns an error.
func (m *MockSink) Send(_ context.Context, to, subject, body string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, SendCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return "", fmt.Errorf("%w: %s", ErrDelivery, m.FailError)
	}
	if m.Response != "" {
		return m.Response, nil
	}
	return "sent", nil
}

// Calls returns a copy of recorded calls.
func (m *MockSink) Calls() []SendCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SendCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// ---------------------------------------------------------------------------
// Manager
// ---------------------------------------------------------------------------

// Delivery is one logged notification attempt.
type Delivery struct {
	ID        string     `json:"id"`
	Recipient string     `json:"recipient"`
	Subject   string     `json:"subject"`
	Body      string     `json:"body"`
	Status    string     `json:"status"` // "sent" or "failed"
	Response  string     `json:"response,omitempty"`
	Error     string     `json:"error,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	SentAt    *time.Time `json:"sent_at,omitempty"`
}

// Manager wraps a Sink with an in-memory delivery log. It implements Sink
// itself so it can be injected wherever a plain sink is expected.
type Manager struct {
	sink       Sink
	mu         sync.RWMutex
	deliveries map[string]*Delivery
	order      []string // delivery ids in creation order
}

// NewManager constructs a Manager delegating to the given sink.
func NewManager(sink Sink) *Manager {
	return &Manager{
		sink:       sink,
		deliveries: make(map[string]*Delivery),
	}
}

// Send delegates to the underlying sink and records the outcome.
func (m *Manager) Send(ctx context.Context, to, subject, body string) (string, error) {
	d := &Delivery{
		ID:        uuid.New().String(),
		Recipient: to,
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}

	response, err := m.sink.Send(ctx, to, subject, body)
	if err != nil {
		d.Status = "failed"
		d.Error = err.Error()
	} else {
		d.Status = "sent"
		d.Response = response
		sentAt := time.Now().UTC()
		d.SentAt = &sentAt
	}

	m.mu.Lock()
	m.deliveries[d.ID] = d
	m.order = append(m.order, d.ID)
	m.mu.Unlock()

	return response, err
}

// Get retrieves a logged delivery by id.
func (m *Manager) Get(id string) (*Delivery, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.deliveries[id]
	if !ok {
		return nil, fmt.Errorf("delivery %q not found", id)
	}
	out := *d
	return &out, nil
}

// ListByRecipient returns deliveries for a recipient in creation order, up to
// limit. An empty recipient matches everything.
func (m *Manager) ListByRecipient(recipient string, limit int) []*Delivery {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*Delivery, 0)
	for _, id := range m.order {
		d := m.deliveries[id]
		if recipient != "" && d.Recipient != recipient {
			continue
		}
		out := *d
		result = append(result, &out)
		if len(result) >= limit {
			break
		}
	}
	return result
}

// Retry re-sends a failed delivery.
func (m *Manager) Retry(ctx context.Context, id string) error {
	m.mu.RLock()
	d, ok := m.deliveries[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("delivery %q not found", id)
	}
	if d.Status != "failed" {
		return fmt.Errorf("delivery %q is not in failed status (current: %s)", id, d.Status)
	}

	response, err := m.sink.Send(ctx, d.Recipient, d.Subject, d.Body)

	m.mu.Lock()
	if err != nil {
		d.Status = "failed"
		d.Error = err.Error()
	} else {
		d.Status = "sent"
		d.Response = response
		d.Error = ""
		sentAt := time.Now().UTC()
		d.SentAt = &sentAt
	}
	m.mu.Unlock()

	return err
}

// Stats returns delivery counts grouped by status.
func (m *Manager) Stats() map[string]int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := make(map[string]int)
	for _, d := range m.deliveries {
		stats[d.Status]++
	}
	return stats
}

// ---------------------------------------------------------------------------
// HTTP Handler
// ---------------------------------------------------------------------------

// Handler exposes the delivery log over HTTP via Echo.
type Handler struct {
	manager *Manager
}

func NewHandler(manager *Manager) *Handler {
	return &Handler{manager: manager}
}

// RegisterRoutes registers the notification routes on the given Echo group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/notifications", h.HandleList)
	g.GET("/notifications/stats", h.HandleStats)
	g.GET("/notifications/:id", h.HandleGet)
	g.POST("/notifications/:id/retry", h.HandleRetry)
}

// HandleList handles GET /notifications?recipient=...
func (h *Handler) HandleList(c echo.Context) error {
	recipient := c.QueryParam("recipient")
	list := h.manager.ListByRecipient(recipient, 100)
	return c.JSON(http.StatusOK, list)
}

// HandleGet handles GET /notifications/:id.
func (h *Handler) HandleGet(c echo.Context) error {
	d, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	}
	return c.JSON(http.StatusOK, d)
}

// HandleRetry handles POST /notifications/:id/retry.
func (h *Handler) HandleRetry(c echo.Context) error {
	id := c.Param("id")
	if err := h.manager.Retry(c.Request().Context(), id); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	d, _ := h.manager.Get(id)
	return c.JSON(http.StatusOK, d)
}

// HandleStats handles GET /notifications/stats.
func (h *Handler) HandleStats(c echo.Context) error {
	return c.JSON(http.StatusOK, h.manager.Stats())
}
