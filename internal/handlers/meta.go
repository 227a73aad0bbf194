package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// MetaService proxies the metadata service.
type MetaService interface {
	Tags(ctx context.Context) (map[string]any, error)
	Blacklist(ctx context.Context) (map[string]any, error)
	Blocklist(ctx context.Context) (map[string]any, error)
}

// RegisterMetaRoutes registers the metadata passthrough endpoints. svc may be
// nil when no metadata service is configured.
func RegisterMetaRoutes(r gin.IRoutes, svc MetaService, rs Responder) {
	proxy := func(fetch func(MetaService, context.Context) (map[string]any, error)) gin.HandlerFunc {
		return func(c *gin.Context) {
			if svc == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "metadata service not configured", "copyright": rs.Copyright})
				return
			}
			data, err := fetch(svc, c.Request.Context())
			if err != nil {
				rs.Fail(c, err)
				return
			}
			rs.JSON(c, data)
		}
	}

	r.GET("/tags", proxy(MetaService.Tags))
	r.GET("/blacklist", proxy(MetaService.Blacklist))
	r.GET("/blocklist", proxy(MetaService.Blocklist))

	// asndrop is no longer published upstream; clients still poll it.
	r.GET("/asndrop", func(c *gin.Context) {
		rs.JSON(c, nil)
	})
}
