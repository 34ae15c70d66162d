package response

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestIDMiddleware(t *testing.T) {
	var logs bytes.Buffer
	base := zerolog.New(&logs)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/stream", func(c *gin.Context) {
		l := RequestLogger(c, base)
		l.Info().Msg("Stream opened")
		Success(c, http.StatusOK, nil)
	})

	t.Run("client uuid is kept", func(t *testing.T) {
		logs.Reset()
		id := uuid.NewString()
		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		req.Header.Set(HeaderRequestID, id)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		assert.Equal(t, id, w.Header().Get(HeaderRequestID))
		var body Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, id, body.Metadata.RequestID)

		var line map[string]any
		require.NoError(t, json.Unmarshal(logs.Bytes(), &line))
		assert.Equal(t, id, line[ContextKeyRequestID])
	})

	t.Run("non-uuid header is replaced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		req.Header.Set(HeaderRequestID, "exam-client-42\nforged")
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		got := w.Header().Get(HeaderRequestID)
		_, err := uuid.Parse(got)
		assert.NoError(t, err)
		assert.False(t, strings.Contains(got, "forged"))
	})
}

func TestRequestLogger_WithoutMiddleware(t *testing.T) {
	var logs bytes.Buffer
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	l := RequestLogger(c, zerolog.New(&logs))
	l.Info().Msg("no id")
	assert.NotContains(t, logs.String(), ContextKeyRequestID)
}
