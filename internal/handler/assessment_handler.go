package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/SwiftTim/hub2/internal/middleware"
	"github.com/SwiftTim/hub2/internal/response"
	"github.com/SwiftTim/hub2/internal/service"
	"github.com/SwiftTim/hub2/internal/session"
	"github.com/SwiftTim/hub2/internal/validator"
	ws "github.com/SwiftTim/hub2/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	tickInterval   = time.Second
	persistTimeout = 10 * time.Second
	closeTimeout   = 5 * time.Second
	lobbyPath      = "/student/assessments"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// AssessmentHandler serves assessment entry and the live session stream.
type AssessmentHandler struct {
	attempts *service.AttemptService
	sink     session.EventSink
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

// NewAssessmentHandler creates a new AssessmentHandler.
func NewAssessmentHandler(attempts *service.AttemptService, sink session.EventSink, log zerolog.Logger, allowedOrigins []string) *AssessmentHandler {
	return &AssessmentHandler{
		attempts: attempts,
		sink:     sink,
		upgrader: buildUpgrader(allowedOrigins),
		log:      log.With().Str("component", "assessment_handler").Logger(),
	}
}

// enterFailure maps an Enter error onto HTTP and redirect semantics.
func enterFailure(err error) (int, response.ErrCode, string) {
	switch {
	case errors.Is(err, service.ErrAssessmentNotFound):
		return http.StatusNotFound, response.ErrNotFound, ws.ReasonNotFound
	case errors.Is(err, service.ErrWindowClosed):
		return http.StatusForbidden, response.ErrWindowClosed, ws.ReasonWindowClosed
	case errors.Is(err, service.ErrNotEnrolled):
		return http.StatusForbidden, response.ErrNotEnrolled, ws.ReasonNotEnrolled
	case errors.Is(err, service.ErrAlreadySubmitted), errors.Is(err, session.ErrAlreadySubmitted):
		return http.StatusConflict, response.ErrAlreadySubmitted, ws.ReasonAlreadySubmitted
	default:
		return http.StatusInternalServerError, response.ErrInternal, ""
	}
}

// Enter godoc
// POST /api/v1/student/assessments/:assessment_id/enter
func (h *AssessmentHandler) Enter(c *gin.Context) {
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

	entry, err := h.attempts.Enter(c.Request.Context(), assessmentID, claims.UserID)
	if err != nil {
		status, code, _ := enterFailure(err)
		if status == http.StatusInternalServerError {
			h.log.Error().Err(err).Str("assessment_id", assessmentID.String()).Msg("Enter assessment failed")
		}
		response.Fail(c, status, code)
		return
	}

	response.Success(c, http.StatusOK, entry.View(h.attempts.Clock().Now()))
}

// Stream godoc
// WS /ws/v1/student/assessments/:assessment_id/stream
// Drives one live session: answers and environment signals in, timer,
// save status and enforcement directives out.
func (h *AssessmentHandler) Stream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	assessmentID, err := uuid.Parse(c.Param("assessment_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid assessment ID"})
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	wsLog := response.RequestLogger(c, h.log).With().
		Str("student_id", claims.UserID.String()).
		Str("assessment_id", assessmentID.String()).
		Logger()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	entry, err := h.attempts.Enter(ctx, assessmentID, claims.UserID)
	if err != nil {
		_, _, reason := enterFailure(err)
		if reason == "" {
			wsLog.Error().Err(err).Msg("Enter assessment failed")
			conn.WriteError("failed to load assessment")
			return
		}
		conn.Redirect(reason, lobbyPath)
		return
	}

	sess, err := h.attempts.NewSession(entry, h.sink, func(st session.SaveStatus, saveErr error) {
		resp := ws.SavedResponse{Event: ws.EventSaved, Status: st}
		if saveErr != nil {
			resp.Error = "auto-save failed, your answers are kept and will be retried"
		}
		conn.WriteTyped(resp)
	})
	if err != nil {
		conn.Redirect(ws.ReasonAlreadySubmitted, lobbyPath)
		return
	}
	defer func() {
		closeCtx, cc := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cc()
		sess.Close(closeCtx)
	}()

	if err := sess.Start(); err != nil {
		wsLog.Error().Err(err).Msg("Start session failed")
		return
	}
	wsLog.Info().Msg("Student connected")

	conn.WriteTyped(ws.StateResponse{
		Event:    ws.EventState,
		View:     entry.View(h.attempts.Clock().Now()),
		Snapshot: sess.Snapshot(),
	})

	go h.runTimer(ctx, conn, sess, wsLog)

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionAnswer:
			h.handleAnswer(conn, sess, &msg)
		case ws.ActionActivity:
			h.handleActivity(conn, sess, &msg)
		case ws.ActionSubmit:
			if h.handleSubmit(ctx, conn, sess, wsLog) {
				return
			}
		case ws.ActionPing:
			conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			conn.WriteError("unknown action: " + string(msg.Action))
		}
	}
}

// runTimer pushes the countdown and performs the expiry submission.
func (h *AssessmentHandler) runTimer(ctx context.Context, conn *ws.Conn, sess *session.Session, log zerolog.Logger) {
	ticker := h.attempts.Clock().NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
			res, err := sess.Tick(tctx)
			cancel()
			if err != nil {
				log.Error().Err(err).Msg("Expiry submission failed, retrying on next tick")
				conn.WriteError("time is up but the submission could not be saved, retrying")
				continue
			}
			if res.Submitted != nil {
				conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Result: *res.Submitted})
				conn.Redirect(ws.ReasonSubmitted, lobbyPath)
				conn.Close()
				return
			}
			if sess.State().Done() {
				return
			}
			conn.WriteTyped(ws.TickResponse{Event: ws.EventTick, RemainingMs: res.Remaining.Milliseconds()})
		}
	}
}

func (h *AssessmentHandler) handleAnswer(conn *ws.Conn, sess *session.Session, msg *ws.RequestPayload) {
	if msg.QID == "" {
		conn.WriteError("q_id is required")
		return
	}
	qid, err := uuid.Parse(msg.QID)
	if err != nil {
		conn.WriteError("invalid q_id format")
		return
	}

	switch err := sess.RecordAnswer(qid.String(), msg.Answer); {
	case err == nil:
	case errors.Is(err, session.ErrEnvironmentLocked):
		conn.WriteError("return to fullscreen to continue answering")
	case errors.Is(err, session.ErrTimeUp):
		conn.WriteError("time is up, answers are closed")
	case errors.Is(err, session.ErrFinalized):
		conn.WriteError("assessment already submitted")
	default:
		conn.WriteError(err.Error())
	}
}

func (h *AssessmentHandler) handleActivity(conn *ws.Conn, sess *session.Session, msg *ws.RequestPayload) {
	if msg.Signal == nil {
		conn.WriteError("signal is required")
		return
	}
	if fields := validator.Validate(msg.Signal); fields != nil {
		conn.WriteError("invalid signal: " + fields["kind"])
		return
	}

	out := sess.RecordEvent(*msg.Signal)
	if out.Event == nil && !out.Suppress && !out.Lock && !out.Unlock {
		return
	}
	resp := ws.DirectiveResponse{
		Event:    ws.EventDirective,
		Suppress: out.Suppress,
		Lock:     out.Lock,
		Unlock:   out.Unlock,
	}
	if out.Event != nil {
		resp.ActivityType = out.Event.ActivityType
		resp.RiskLevel = out.Event.RiskLevel
		resp.Description = out.Event.Description
	}
	conn.WriteTyped(resp)
}

// handleSubmit reports whether the stream should end.
func (h *AssessmentHandler) handleSubmit(ctx context.Context, conn *ws.Conn, sess *session.Session, log zerolog.Logger) bool {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	res, err := sess.Submit(sctx)
	switch {
	case err == nil:
		conn.WriteTyped(ws.SubmittedResponse{Event: ws.EventSubmitted, Result: *res})
		conn.Redirect(ws.ReasonSubmitted, lobbyPath)
		return true
	case errors.Is(err, session.ErrSubmissionInFlight):
		conn.WriteError("submission already in progress")
		return false
	case errors.Is(err, session.ErrAlreadySubmitted):
		conn.Redirect(ws.ReasonAlreadySubmitted, lobbyPath)
		return true
	default:
		log.Error().Err(err).Msg("Submit failed")
		conn.WriteError("submission failed, please retry")
		return false
	}
}
