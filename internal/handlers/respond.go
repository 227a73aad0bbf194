package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grip-observatory/observatory-api/internal/events"
	"github.com/grip-observatory/observatory-api/internal/meta"
	"github.com/grip-observatory/observatory-api/internal/metrics"
	"github.com/grip-observatory/observatory-api/internal/store"
)

// Responder writes JSON bodies with the copyright notice injected.
type Responder struct {
	Copyright string
	Metrics   *metrics.Metrics
}

// JSON writes body with status 200 after adding the copyright field.
func (rs Responder) JSON(c *gin.Context, body map[string]any) {
	if body == nil {
		body = map[string]any{}
	}
	body["copyright"] = rs.Copyright
	c.JSON(http.StatusOK, body)
}

// Fail maps err onto the API's error conventions:
//   - malformed input: 200 {"error": ...}
//   - missing document: 200 {}
//   - metadata service failure: 502
//   - anything else: 500
func (rs Responder) Fail(c *gin.Context, err error) {
	switch {
	case events.IsMalformed(err):
		rs.count("malformed")
		rs.JSON(c, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound):
		rs.count("not_found")
		rs.JSON(c, nil)
	case errors.Is(err, meta.ErrUpstream):
		rs.count("upstream")
		c.JSON(http.StatusBadGateway, gin.H{"error": "metadata service unavailable", "copyright": rs.Copyright})
	case errors.Is(err, context.DeadlineExceeded):
		rs.count("timeout")
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "event store timed out", "copyright": rs.Copyright})
	default:
		rs.count("store")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event store query failed", "copyright": rs.Copyright})
	}
}

func (rs Responder) count(kind string) {
	if rs.Metrics != nil {
		rs.Metrics.Error(kind)
	}
}
