package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/nerrad567/gray-logic-zigbee/internal/audit"
	"github.com/nerrad567/gray-logic-zigbee/internal/bridges/zigbee"
	"github.com/nerrad567/gray-logic-zigbee/internal/converters"
	"github.com/nerrad567/gray-logic-zigbee/internal/device"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-zigbee/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-zigbee/migrations"
)

const (
	bulbIEEE   = "0x000b57fffec6a5b2"
	switchIEEE = "0x00158d0001e4b1a2"
)

// mockGateway records injected commands and device count updates.
type mockGateway struct {
	mu       sync.Mutex
	health   zigbee.HealthMessage
	topics   []string
	payloads [][]byte
	count    int
	reject   bool
}

func (g *mockGateway) Health() zigbee.HealthMessage {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.health
}

func (g *mockGateway) QueueStats() zigbee.QueueStats {
	return zigbee.QueueStats{State: zigbee.QueueRunning, Depth: 2, Enqueued: 5, Succeeded: 3}
}

func (g *mockGateway) HandleMessage(topic string, payload []byte) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reject {
		return false
	}
	g.topics = append(g.topics, topic)
	g.payloads = append(g.payloads, payload)
	return true
}

func (g *mockGateway) SetDeviceCount(n int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count = n
}

// testServer creates a Server with a real device registry backed by SQLite.
func testServer(t *testing.T) (*Server, *device.Registry, *mockGateway) {
	t.Helper()

	db, err := database.Open(config.DatabaseConfig{
		Path:        filepath.Join(t.TempDir(), "api.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("database.Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup
	if err := db.MigrateFrom(context.Background(), migrations.Source()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	registry := device.NewRegistry(device.NewSQLiteRepository(db.DB))
	err = registry.Seed(context.Background(), []device.Device{
		{IEEEAddress: bulbIEEE, FriendlyName: "kitchen/ceiling", ModelID: "TRADFRI bulb E27 WS opal 980lm"},
		{IEEEAddress: switchIEEE, FriendlyName: "hall_switch", ModelID: "lumi.ctrl_neutral2"},
	})
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	gw := &mockGateway{health: zigbee.HealthMessage{Status: zigbee.HealthHealthy, Version: "test"}}
	log := logging.NewWithWriter(config.LoggingConfig{Level: "error", Format: "text"}, "test", io.Discard)

	srv, err := New(Deps{
		Config:    config.APIConfig{Host: "127.0.0.1", Port: 0},
		Logger:    log,
		Registry:  registry,
		Models:    converters.DefaultCatalog(),
		Gateway:   gw,
		Commands:  audit.NewSQLiteRepository(db.DB),
		BaseTopic: "zigbee2mqtt/",
		Version:   "test",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return srv, registry, gw
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rdr)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
	return resp
}

func TestNew_RequiresDeps(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Error("New() with no deps should fail")
	}
}

func TestHealth(t *testing.T) {
	srv, _, gw := testServer(t)
	router := srv.buildRouter()

	for _, path := range []string{"/health", "/api/v1/health"} {
		w := do(t, router, http.MethodGet, path, "")
		if w.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, w.Code)
		}
		if resp := decode(t, w); resp["status"] != "healthy" {
			t.Errorf("GET %s status = %v", path, resp["status"])
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Errorf("GET %s missing X-Request-ID", path)
		}
	}

	gw.mu.Lock()
	gw.health.Status = zigbee.HealthStopping
	gw.mu.Unlock()
	if w := do(t, router, http.MethodGet, "/health", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("stopping health = %d, want 503", w.Code)
	}
}

func TestQueueStats(t *testing.T) {
	srv, _, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/queue", "")

	resp := decode(t, w)
	if resp["state"] != "running" || resp["depth"] != float64(2) {
		t.Errorf("queue stats = %v", resp)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	do(t, router, http.MethodGet, "/api/v1/devices", "")
	w := do(t, router, http.MethodGet, "/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", w.Code)
	}
	want := `graylogic_zigbee_http_requests_total{method="GET",route="/api/v1/devices`
	if !strings.Contains(w.Body.String(), want) {
		t.Errorf("metrics missing %q", want)
	}
}

func TestListDevices(t *testing.T) {
	srv, _, _ := testServer(t)
	w := do(t, srv.buildRouter(), http.MethodGet, "/api/v1/devices", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	if resp["count"] != float64(2) {
		t.Fatalf("count = %v, want 2", resp["count"])
	}
	first := resp["devices"].([]any)[0].(map[string]any)
	if first["friendly_name"] != "hall_switch" || first["model"] != "QBKG03LM" || first["supported"] != true {
		t.Errorf("first device = %v", first)
	}
}

func TestGetDevice(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{"by ieee", "/api/v1/devices/" + bulbIEEE, http.StatusOK},
		{"by escaped name", "/api/v1/devices/kitchen%2Fceiling", http.StatusOK},
		{"by plain name", "/api/v1/devices/hall_switch", http.StatusOK},
		{"unknown", "/api/v1/devices/garage", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodGet, tt.path, "")
			if w.Code != tt.status {
				t.Errorf("GET %s = %d, want %d (%s)", tt.path, w.Code, tt.status, w.Body.String())
			}
		})
	}
}

func TestPutDevice(t *testing.T) {
	srv, registry, gw := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name   string
		id     string
		body   string
		status int
	}{
		{"create", "0x0017880104E45517", `{"friendly_name":"office/lamp","model_id":"LWB010"}`, http.StatusOK},
		{"rename", bulbIEEE, `{"friendly_name":"kitchen/pendant","model_id":"TRADFRI bulb E27 WS opal 980lm"}`, http.StatusOK},
		{"not an address", "lamp", `{"model_id":"LWB010"}`, http.StatusBadRequest},
		{"bad json", bulbIEEE, `{`, http.StatusBadRequest},
		{"missing model", "0x0017880104e45518", `{"friendly_name":"x"}`, http.StatusBadRequest},
		{"name taken", "0x0017880104e45519", `{"friendly_name":"HALL_SWITCH","model_id":"LWB010"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, router, http.MethodPut, "/api/v1/devices/"+tt.id, tt.body)
			if w.Code != tt.status {
				t.Errorf("PUT %s = %d, want %d (%s)", tt.id, w.Code, tt.status, w.Body.String())
			}
		})
	}

	if registry.Count() != 3 {
		t.Errorf("Count() = %d, want 3", registry.Count())
	}
	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.count != 3 {
		t.Errorf("gateway device count = %d, want 3", gw.count)
	}
}

func TestDeleteDevice(t *testing.T) {
	srv, registry, gw := testServer(t)
	router := srv.buildRouter()

	if w := do(t, router, http.MethodDelete, "/api/v1/devices/hall_switch", ""); w.Code != http.StatusNoContent {
		t.Fatalf("DELETE = %d, want 204", w.Code)
	}
	if w := do(t, router, http.MethodDelete, "/api/v1/devices/hall_switch", ""); w.Code != http.StatusNotFound {
		t.Errorf("second DELETE = %d, want 404", w.Code)
	}
	if registry.Count() != 1 || gw.count != 1 {
		t.Errorf("Count() = %d, gateway count = %d, want 1", registry.Count(), gw.count)
	}
}

func TestGetDeviceState(t *testing.T) {
	srv, registry, _ := testServer(t)
	router := srv.buildRouter()

	w := do(t, router, http.MethodGet, "/api/v1/devices/"+bulbIEEE+"/state", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if state := decode(t, w)["state"].(map[string]any); len(state) != 0 {
		t.Errorf("initial state = %v, want empty", state)
	}

	if _, err := registry.MergeState(context.Background(), bulbIEEE, device.State{"state": "ON"}); err != nil {
		t.Fatalf("MergeState() error = %v", err)
	}
	w = do(t, router, http.MethodGet, "/api/v1/devices/kitchen%2Fceiling/state", "")
	resp := decode(t, w)
	if resp["state"].(map[string]any)["state"] != "ON" || resp["friendly_name"] != "kitchen/ceiling" {
		t.Errorf("state response = %v", resp)
	}
}

func TestDeviceCommand(t *testing.T) {
	srv, _, gw := testServer(t)
	router := srv.buildRouter()

	tests := []struct {
		name      string
		path      string
		body      string
		status    int
		wantTopic string
	}{
		{
			name:      "set by ieee",
			path:      "/api/v1/devices/" + bulbIEEE + "/command",
			body:      `{"payload":{"state":"ON","brightness":128}}`,
			status:    http.StatusAccepted,
			wantTopic: "zigbee2mqtt/kitchen/ceiling/set",
		},
		{
			name:      "get with endpoint",
			path:      "/api/v1/devices/hall_switch/command",
			body:      `{"kind":"get","endpoint":"left","payload":{"state":""}}`,
			status:    http.StatusAccepted,
			wantTopic: "zigbee2mqtt/hall_switch/left/get",
		},
		{name: "bad kind", path: "/api/v1/devices/hall_switch/command", body: `{"kind":"setkv","payload":{}}`, status: http.StatusBadRequest},
		{name: "bad endpoint", path: "/api/v1/devices/hall_switch/command", body: `{"endpoint":"middle","payload":{}}`, status: http.StatusBadRequest},
		{name: "no payload", path: "/api/v1/devices/hall_switch/command", body: `{}`, status: http.StatusBadRequest},
		{name: "unknown device", path: "/api/v1/devices/garage/command", body: `{"payload":{}}`, status: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gw.mu.Lock()
			before := len(gw.topics)
			gw.mu.Unlock()

			w := do(t, router, http.MethodPost, tt.path, tt.body)
			if w.Code != tt.status {
				t.Fatalf("POST = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.wantTopic == "" {
				return
			}
			gw.mu.Lock()
			defer gw.mu.Unlock()
			if len(gw.topics) != before+1 || gw.topics[before] != tt.wantTopic {
				t.Errorf("topics = %v, want %s appended", gw.topics, tt.wantTopic)
			}
		})
	}

	gw.mu.Lock()
	payload := gw.payloads[0]
	gw.mu.Unlock()
	if !bytes.Equal(payload, []byte(`{"state":"ON","brightness":128}`)) {
		t.Errorf("payload = %s", payload)
	}
}

func TestDeviceCommand_Rejected(t *testing.T) {
	srv, _, gw := testServer(t)
	gw.reject = true

	w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/devices/hall_switch/command", `{"payload":{"state":"ON"}}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("POST = %d, want 400", w.Code)
	}
}

func TestListModels(t *testing.T) {
	srv, _, _ := testServer(t)
	resp := decode(t, do(t, srv.buildRouter(), http.MethodGet, "/api/v1/models", ""))

	models := resp["models"].([]any)
	if want := len(converters.DefaultCatalog().Models()); len(models) != want {
		t.Fatalf("models = %d, want %d", len(models), want)
	}
	for _, m := range models {
		mv := m.(map[string]any)
		if mv["model"] == "QBKG03LM" {
			eps := mv["endpoints"].(map[string]any)
			if eps["left"] != float64(2) || eps["right"] != float64(3) {
				t.Errorf("QBKG03LM endpoints = %v", eps)
			}
			return
		}
	}
	t.Error("QBKG03LM not listed")
}

func TestListCommands(t *testing.T) {
	srv, _, _ := testServer(t)
	router := srv.buildRouter()

	rec := srv.commands.(*audit.SQLiteRepository)
	rec.RecordCommand("kitchen/ceiling", "state", "genOnOff", 0, nil)
	rec.RecordCommand("hall_switch", "state", "genOnOff", 0, nil)

	w := do(t, router, http.MethodGet, "/api/v1/commands?device=hall_switch", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	resp := decode(t, w)
	if resp["total"] != float64(1) {
		t.Errorf("total = %v, want 1", resp["total"])
	}

	if w := do(t, router, http.MethodGet, "/api/v1/commands?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Errorf("bad limit = %d, want 400", w.Code)
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	srv, _, _ := testServer(t)
	h := srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := do(t, h, http.MethodGet, "/", "")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
}

func TestServer_StartClose(t *testing.T) {
	srv, _, _ := testServer(t)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
