package handler

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/SwiftTim/hub2/internal/response"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const healthTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// SystemHandler serves liveness and runtime metrics.
type SystemHandler struct {
	checks    map[string]HealthCheck
	rdb       *redis.Client
	dropped   func() int64
	startTime time.Time
	log       zerolog.Logger
}

// NewSystemHandler creates a SystemHandler. rdb and dropped may be nil.
func NewSystemHandler(checks map[string]HealthCheck, rdb *redis.Client, dropped func() int64, log zerolog.Logger) *SystemHandler {
	return &SystemHandler{
		checks:    checks,
		rdb:       rdb,
		dropped:   dropped,
		startTime: time.Now(),
		log:       log.With().Str("component", "system_handler").Logger(),
	}
}

// Health godoc
// GET /health
func (h *SystemHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Warn().Err(err).Str("dependency", name).Msg("Health check failed")
			deps[name] = "down"
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "up"
	}

	state := "ok"
	if status != http.StatusOK {
		state = "degraded"
	}
	response.Success(c, status, gin.H{"status": state, "dependencies": deps})
}

type systemMetrics struct {
	Timestamp int64  `json:"timestamp"`
	Uptime    string `json:"uptime"`

	Goroutines int    `json:"goroutines"`
	HeapAlloc  uint64 `json:"heap_alloc"`
	HeapSys    uint64 `json:"heap_sys"`
	NumGC      uint32 `json:"num_gc"`
	GoVersion  string `json:"go_version"`
	NumCPU     int    `json:"num_cpu"`

	QueueSecurityLogs  int64 `json:"queue_security_logs"`
	DroppedSecurityLog int64 `json:"dropped_security_logs"`
}

// Metrics godoc
// GET /api/v1/admin/system/metrics
func (h *SystemHandler) Metrics(c *gin.Context) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m := systemMetrics{
		Timestamp:  time.Now().Unix(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		HeapAlloc:  ms.HeapAlloc,
		HeapSys:    ms.Sys,
		NumGC:      ms.NumGC,
		GoVersion:  runtime.Version(),
		NumCPU:     runtime.NumCPU(),
	}

	if h.rdb != nil {
		if n, err := h.rdb.LLen(c.Request.Context(), config.WorkerKey.PersistSecurityLogsQueue).Result(); err == nil {
			m.QueueSecurityLogs = n
		}
	}
	if h.dropped != nil {
		m.DroppedSecurityLog = h.dropped()
	}

	response.Success(c, http.StatusOK, m)
}
