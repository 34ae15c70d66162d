package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/SwiftTim/hub2/internal/config"
	"github.com/SwiftTim/hub2/internal/middleware"
	"github.com/SwiftTim/hub2/internal/model"
	"github.com/SwiftTim/hub2/internal/response"
	"github.com/SwiftTim/hub2/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	refreshInterval   = 15 * time.Second
	keepAliveInterval = 30 * time.Second
	refreshTimeout    = 5 * time.Second // prevent slow queries from blocking the SSE loop
)

type MonitorHandler struct {
	rdb      *redis.Client
	attempts *service.AttemptService
	monitor  *service.MonitorService
	log      zerolog.Logger
}

func NewMonitorHandler(
	rdb *redis.Client,
	attempts *service.AttemptService,
	monitor *service.MonitorService,
	log zerolog.Logger,
) *MonitorHandler {
	return &MonitorHandler{
		rdb:      rdb,
		attempts: attempts,
		monitor:  monitor,
		log:      log.With().Str("component", "monitor_handler").Logger(),
	}
}

// MonitorAssessmentSSE godoc
// GET /api/v1/lecturer/assessments/:assessment_id/monitor
func (h *MonitorHandler) MonitorAssessmentSSE(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	assessment, err := h.attempts.CanMonitor(c.Request.Context(), assessmentID, claims)
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	case errors.Is(err, service.ErrNotAssessmentStaff):
		response.Fail(c, http.StatusForbidden, response.ErrNotAssessmentStaff)
		return
	case err != nil:
		h.log.Error().Err(err).Str("assessment_id", assessmentID.String()).Msg("Monitor access check failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	reqCtx := c.Request.Context()

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	h.sendSnapshot(c, reqCtx, "snapshot", assessment)

	pubsub := h.rdb.Subscribe(reqCtx, config.CacheKey.AssessmentMonitorChannel(assessmentID.String()))
	defer pubsub.Close()
	ch := pubsub.Channel()

	keepAliveTicker := time.NewTicker(keepAliveInterval)
	defer keepAliveTicker.Stop()
	refreshTicker := time.NewTicker(refreshInterval)
	defer refreshTicker.Stop()

	// Refreshes are skipped until an alert shows the assessment is live.
	dirty := false

	log := response.RequestLogger(c, h.log).With().
		Str("assessment_id", assessmentID.String()).
		Str("user_id", claims.UserID.String()).
		Logger()
	log.Info().Msg("Proctor attached to live monitor")

	pingPayload, _ := json.Marshal(map[string]string{"type": "ping"})

	for {
		select {
		case <-reqCtx.Done():
			log.Info().Msg("Proctor detached from live monitor")
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}
			// Alerts are already JSON; forward as-is.
			writeRawEvent(c, []byte(msg.Payload))
			dirty = true

		case <-refreshTicker.C:
			if !dirty {
				continue
			}
			dirty = false
			h.sendSnapshot(c, reqCtx, "refresh", assessment)

		case <-keepAliveTicker.C:
			writeRawEvent(c, pingPayload)
		}
	}
}

func (h *MonitorHandler) sendSnapshot(c *gin.Context, parent context.Context, kind string, assessment *model.Assessment) {
	ctx, cancel := context.WithTimeout(parent, refreshTimeout)
	defer cancel()

	snap, err := h.monitor.Snapshot(ctx, assessment.ID)
	if err != nil {
		h.log.Warn().Err(err).Str("assessment_id", assessment.ID.String()).Msg("Failed to build monitor snapshot")
		return
	}

	c.SSEvent("message", gin.H{
		"type": kind,
		"data": gin.H{
			"assessment": gin.H{
				"id":         assessment.ID,
				"title":      assessment.Title,
				"duration":   assessment.DurationMinutes,
				"start_time": assessment.StartTime,
				"end_time":   assessment.EndTime,
			},
			"stats": gin.H{
				"active_students":  snap.ActiveStudents,
				"flagged_students": snap.FlaggedCount,
				"high_risk_total":  snap.HighRiskTotal,
			},
			"students": snap.Students,
		},
	})
	c.Writer.Flush()
}

func writeRawEvent(c *gin.Context, payload []byte) {
	c.Writer.Write([]byte("data: "))
	c.Writer.Write(payload)
	c.Writer.Write([]byte("\n\n"))
	c.Writer.Flush()
}
