package zigbee

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// DefaultHealthInterval is used when no interval is configured.
const DefaultHealthInterval = 30 * time.Second

// HealthPublisher is the interface for publishing health messages.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// QueueObserver exposes queue statistics to the health reporter.
type QueueObserver interface {
	Stats() QueueStats
}

// HealthReporter publishes gateway health at a fixed interval.
type HealthReporter struct {
	topic     string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	queue     QueueObserver

	// Device count (updated externally)
	deviceCount   int
	deviceCountMu sync.RWMutex

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once

	logger Logger
}

// HealthReporterConfig holds configuration for the health reporter.
type HealthReporterConfig struct {
	// Topic is where reports are published, normally <base>/bridge/health.
	Topic string

	Version string

	// Interval is how often to publish. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher

	// Queue is optional; when set its stats are included in each report.
	Queue QueueObserver

	Logger Logger
}

// NewHealthReporter creates a new health reporter. Call Start to begin.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultHealthInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger{}
	}

	return &HealthReporter{
		topic:     cfg.Topic,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		queue:     cfg.Queue,
		done:      make(chan struct{}),
		logger:    logger,
	}
}

// Start begins periodic health reporting until ctx ends or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // Best-effort during shutdown
		h.publishStatus(HealthStopping, "")
	})
}

// SetDeviceCount updates the managed device count.
func (h *HealthReporter) SetDeviceCount(count int) {
	h.deviceCountMu.Lock()
	h.deviceCount = count
	h.deviceCountMu.Unlock()
}

// PublishStarting publishes a "starting" status.
func (h *HealthReporter) PublishStarting() error {
	return h.publishStatus(HealthStarting, "gateway starting")
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publishStatus(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Error("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Error("failed to publish health", "error", err)
			}
		}
	}
}

func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}
	if h.queue != nil && h.queue.Stats().State == QueueStopped {
		return HealthDegraded, "command queue stopped"
	}
	return HealthHealthy, ""
}

// Snapshot builds the current health message.
func (h *HealthReporter) Snapshot(status HealthStatus, reason string) HealthMessage {
	h.deviceCountMu.RLock()
	devices := h.deviceCount
	h.deviceCountMu.RUnlock()

	msg := HealthMessage{
		Status:    status,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
		Uptime:    int64(time.Since(h.startTime).Seconds()),
		Devices:   devices,
	}
	if h.queue != nil {
		msg.Queue = h.queue.Stats()
	}
	return msg
}

func (h *HealthReporter) publishStatus(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.Snapshot(status, reason))
	if err != nil {
		return err
	}

	// QoS 1, retained
	return h.publisher.Publish(h.topic, payload, 1, true)
}
