package integration

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/heartwatch/heartwatch/internal/domain/registry"
	"github.com/heartwatch/heartwatch/internal/domain/vitals"
	"github.com/heartwatch/heartwatch/internal/platform/middleware"
	"github.com/heartwatch/heartwatch/internal/platform/notification"
	"github.com/heartwatch/heartwatch/internal/platform/websocket"
)

// testApp is the fully wired monitoring server with its observable seams:
// the sink records alert deliveries, the hub exposes the live feed.
type testApp struct {
	Server *httptest.Server
	Sink   *notification.MockSink
	Hub    *websocket.Hub
	Store  *registry.Store
}

// feedAdapter bridges accepted readings onto the hub, mirroring the server's
// production wiring.
type feedAdapter struct {
	hub *websocket.Hub
}

func (a *feedAdapter) PublishReading(res vitals.RecordResult) {
	eventType := "reading.recorded"
	if res.Status == registry.StatusTachycardic {
		eventType = "alert.raised"
	}
	data, _ := json.Marshal(res)
	a.hub.Broadcast(websocket.VitalsTopic(res.PatientID), websocket.Event{
		Type:      eventType,
		Topic:     websocket.VitalsTopic(res.PatientID),
		PatientID: res.PatientID,
		Timestamp: res.Reading.Taken,
		Data:      data,
	})
}

// newTestApp wires the whole HTTP stack the way the server binary does,
// with a recording sink in place of the email relay.
func newTestApp(t *testing.T) *testApp {
	t.Helper()

	logger := zerolog.New(io.Discard)

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.BodyLimit("64K"))

	api := e.Group("/api")
	api.Use(middleware.RateLimit(middleware.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 2000}))
	api.Use(middleware.RequestTimeout(10 * time.Second))

	sink := &notification.MockSink{Response: "delivered"}
	manager := notification.NewManager(sink)
	notification.NewHandler(manager).RegisterRoutes(api)

	hub := websocket.NewHub()
	websocket.NewWebSocketHandler(hub).RegisterRoutes(api)

	store := registry.NewStore()
	registry.NewHandler(registry.NewService(store)).RegisterRoutes(api)

	vitalsSvc := vitals.NewService(store, manager, &feedAdapter{hub: hub})
	vitals.NewHandler(vitalsSvc).RegisterRoutes(api)

	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)

	return &testApp{Server: srv, Sink: sink, Hub: hub, Store: store}
}

// postJSON posts a JSON body and decodes the response into out (when non-nil).
func (a *testApp) postJSON(t *testing.T, path, body string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Post(a.Server.URL+path, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	decodeBody(t, resp, out)
	return resp
}

// getJSON gets a path and decodes the response into out (when non-nil).
func (a *testApp) getJSON(t *testing.T, path string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(a.Server.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	decodeBody(t, resp, out)
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			t.Fatalf("unmarshal response %q: %v", raw, err)
		}
	}
}

// registerAttending registers a clinician directly through the API.
func (a *testApp) registerAttending(t *testing.T, username, email, phone string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{
		"attending_username": username,
		"attending_email":    email,
		"attending_phone":    phone,
	})
	resp := a.postJSON(t, "/api/new_attending", string(body), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register attending %s: status %d", username, resp.StatusCode)
	}
}

// registerPatient registers a patient directly through the API.
func (a *testApp) registerPatient(t *testing.T, id int, attending string, age int) {
	t.Helper()
	body, _ := json.Marshal(map[string]interface{}{
		"patient_id":         id,
		"attending_username": attending,
		"patient_age":        age,
	})
	resp := a.postJSON(t, "/api/new_patient", string(body), nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register patient %d: status %d", id, resp.StatusCode)
	}
}
