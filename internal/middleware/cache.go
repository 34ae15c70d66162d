package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// cacheWriter picks the Cache-Control value once the status is known.
type cacheWriter struct {
	gin.ResponseWriter
	public string
}

func (w *cacheWriter) WriteHeader(code int) {
	if code == http.StatusOK || code == http.StatusNotFound {
		w.Header().Set("Cache-Control", w.public)
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.ResponseWriter.WriteHeader(code)
}

// CacheControl marks 200 and 404 responses as publicly cacheable for maxAge.
// Any other status is no-store.
func CacheControl(maxAge time.Duration) gin.HandlerFunc {
	public := "public, max-age=" + strconv.Itoa(int(maxAge.Seconds()))
	return func(c *gin.Context) {
		c.Header("Cache-Control", public)
		c.Writer = &cacheWriter{ResponseWriter: c.Writer, public: public}
		c.Next()
	}
}

// NoStore forbids caching, used for generated reports and live streams.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("Cache-Control", "no-store")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		c.Next()
	}
}
