package health

import (
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/config"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/orchestrator"
	"github.com/nsmo-public/LiveMeetingNotes-sub001/internal/recognition"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

type ComponentStatus struct {
	Status    Status `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

type RuntimeStats struct {
	Goroutines         int    `json:"goroutines"`
	MemoryAllocMB      uint64 `json:"memory_alloc_mb"`
	MemoryTotalAllocMB uint64 `json:"memory_total_alloc_mb"`
	MemorySysMB        uint64 `json:"memory_sys_mb"`
	NumGC              uint32 `json:"num_gc"`
}

type SessionStats struct {
	LiveTranscribing  bool `json:"live_transcribing"`
	BatchTranscribing bool `json:"batch_transcribing"`
}

type Stats struct {
	Sessions SessionStats `json:"sessions"`
	Runtime  RuntimeStats `json:"runtime"`
}

type HealthResponse struct {
	Status        Status                     `json:"status"`
	Timestamp     time.Time                  `json:"timestamp"`
	Version       string                     `json:"version"`
	UptimeSeconds int64                      `json:"uptime_seconds"`
	Stats         Stats                      `json:"stats"`
	Components    map[string]ComponentStatus `json:"components"`
}

type Handler struct {
	cfg          config.Config
	localAddress string
	probeLocal   func(address string) bool
	svc          *orchestrator.Service
	version      string
	startTime    time.Time
}

func NewHandler(cfg config.Config, localAddress string, svc *orchestrator.Service, version string) *Handler {
	return &Handler{
		cfg:          cfg,
		localAddress: localAddress,
		probeLocal:   recognition.Probe,
		svc:          svc,
		version:      version,
		startTime:    time.Now(),
	}
}

func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Liveness)
	e.GET("/health/ready", h.Readiness)
}

func (h *Handler) Liveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

func (h *Handler) Readiness(c echo.Context) error {
	components := map[string]ComponentStatus{
		"local_engine": h.checkLocalEngine(),
		"remote":       h.checkRemote(),
	}

	overallStatus := computeOverallStatus(components)

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := HealthResponse{
		Status:        overallStatus,
		Timestamp:     time.Now().UTC(),
		Version:       h.version,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Stats: Stats{
			Sessions: SessionStats{
				LiveTranscribing:  h.svc != nil && h.svc.IsLiveTranscribing(),
				BatchTranscribing: h.svc != nil && h.svc.IsBatchTranscribing(),
			},
			Runtime: RuntimeStats{
				Goroutines:         runtime.NumGoroutine(),
				MemoryAllocMB:      memStats.Alloc / 1024 / 1024,
				MemoryTotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
				MemorySysMB:        memStats.Sys / 1024 / 1024,
				NumGC:              memStats.NumGC,
			},
		},
		Components: components,
	}

	statusCode := http.StatusOK
	if overallStatus == StatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	return c.JSON(statusCode, resp)
}

func (h *Handler) checkLocalEngine() ComponentStatus {
	start := time.Now()
	if h.localAddress == "" {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "local engine not configured",
		}
	}

	if !h.probeLocal(h.localAddress) {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "probe failed",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

func (h *Handler) checkRemote() ComponentStatus {
	start := time.Now()
	if h.cfg.APIKey == "" || h.cfg.APIEndpoint == "" {
		return ComponentStatus{
			Status:    StatusDegraded,
			LatencyMs: time.Since(start).Milliseconds(),
			Error:     "remote recognizer not configured",
		}
	}

	return ComponentStatus{
		Status:    StatusHealthy,
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

// computeOverallStatus treats the backends as redundant: the service is only
// unhealthy when neither can serve a session.
func computeOverallStatus(components map[string]ComponentStatus) Status {
	healthy := 0
	for _, status := range components {
		if status.Status == StatusHealthy {
			healthy++
		}
	}

	switch healthy {
	case len(components):
		return StatusHealthy
	case 0:
		return StatusUnhealthy
	default:
		return StatusDegraded
	}
}
