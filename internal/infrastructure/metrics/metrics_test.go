package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	c := New()

	c.MessageReceived("set")
	c.MessageReceived("set")
	c.MessageReceived("get")
	c.MessageDropped("unknown_device")

	if got := testutil.ToFloat64(c.received.WithLabelValues("set")); got != 2 {
		t.Errorf("received{set} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.received.WithLabelValues("get")); got != 1 {
		t.Errorf("received{get} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.dropped.WithLabelValues("unknown_device")); got != 1 {
		t.Errorf("dropped{unknown_device} = %v, want 1", got)
	}
}

func TestCollector_RecordCommand(t *testing.T) {
	c := New()

	c.RecordCommand("0x000b57fffec6a5b2", "state", "genOnOff", 20*time.Millisecond, nil)
	c.RecordCommand("0x000b57fffec6a5b2", "state", "genOnOff", time.Second, errors.New("timeout"))

	if got := testutil.ToFloat64(c.commands.WithLabelValues("genOnOff", ResultSuccess)); got != 1 {
		t.Errorf("commands{success} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.commands.WithLabelValues("genOnOff", ResultError)); got != 1 {
		t.Errorf("commands{error} = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(c.duration); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestCollector_QueueDepth(t *testing.T) {
	c := New()
	c.SetQueueDepth(7)
	if got := testutil.ToFloat64(c.queueDepth); got != 7 {
		t.Errorf("queue_depth = %v, want 7", got)
	}
	c.SetQueueDepth(0)
	if got := testutil.ToFloat64(c.queueDepth); got != 0 {
		t.Errorf("queue_depth = %v, want 0", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.MessageReceived("set")
	c.ObserveHTTP("/api/v1/devices", http.MethodGet, http.StatusOK)

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	text := string(body)

	for _, want := range []string{
		`graylogic_zigbee_messages_received_total{kind="set"} 1`,
		`graylogic_zigbee_http_requests_total{method="GET",route="/api/v1/devices",status="200"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}

func TestCollector_IndependentRegistries(t *testing.T) {
	a, b := New(), New()
	a.MessageReceived("set")

	if got := testutil.ToFloat64(b.received.WithLabelValues("set")); got != 0 {
		t.Errorf("second collector saw %v, want 0", got)
	}
}
