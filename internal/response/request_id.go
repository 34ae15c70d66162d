package response

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ContextKeyRequestID is the Gin context key for the request ID.
const ContextKeyRequestID = "request_id"

// HeaderRequestID carries the ID in both directions.
const HeaderRequestID = "X-Request-ID"

// RequestIDMiddleware tags every request with an ID, echoed in the response
// header and in the metadata of every JSON envelope. A client-supplied ID is
// kept only when it is a UUID, so a proctor can quote the value shown by the
// exam client and find the matching socket and report logs.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader(HeaderRequestID)
		if _, err := uuid.Parse(reqID); err != nil {
			reqID = uuid.NewString()
		}
		c.Set(ContextKeyRequestID, reqID)
		c.Header(HeaderRequestID, reqID)
		c.Next()
	}
}

// RequestLogger scopes l to the current request. Assessment streams and
// monitor feeds outlive the upgrade request, so every line they write keeps
// the ID.
func RequestLogger(c *gin.Context, l zerolog.Logger) zerolog.Logger {
	reqID := c.GetString(ContextKeyRequestID)
	if reqID == "" {
		return l
	}
	return l.With().Str(ContextKeyRequestID, reqID).Logger()
}
