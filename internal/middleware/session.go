package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/SwiftTim/hub2/internal/response"
	"github.com/SwiftTim/hub2/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// StreamLocker grants exclusive access to a student's attempt stream.
type StreamLocker interface {
	Acquire(ctx context.Context, assessmentID, studentID uuid.UUID) (func(), error)
}

// SingleAssessmentStream rejects a second concurrent stream for the same
// student and assessment. The lease is held until the handler returns.
func SingleAssessmentStream(locker StreamLocker) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := GetClaims(c)
		if claims == nil {
			response.AbortFail(c, http.StatusUnauthorized, response.ErrTokenRequired)
			return
		}

		assessmentID, err := uuid.Parse(c.Param("assessment_id"))
		if err != nil {
			response.AbortFail(c, http.StatusBadRequest, response.ErrInvalidID)
			return
		}

		release, err := locker.Acquire(c.Request.Context(), assessmentID, claims.UserID)
		if err != nil {
			if errors.Is(err, service.ErrStreamAlreadyOpen) {
				response.AbortFail(c, http.StatusConflict, response.ErrStreamAlreadyOpen)
				return
			}
			response.AbortFail(c, http.StatusServiceUnavailable, response.ErrInternal)
			return
		}
		defer release()

		c.Next()
	}
}
