package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/grip-observatory/observatory-api/internal/events"
	"github.com/grip-observatory/observatory-api/internal/models"
)

// EventService is the read side of the event repository.
type EventService interface {
	GetByID(ctx context.Context, eventID string) (models.Document, error)
	Search(ctx context.Context, p events.SearchParams) (*models.SearchResponse, error)
}

// RegisterEventRoutes registers the event endpoints.
//
// GET /event/id/:evid                  one event, pfx_event prefixes promoted
// GET /events                          filtered, paginated search
// GET /pfx_event/id/:evid/:fingerprint one pfx_event of an event
func RegisterEventRoutes(r gin.IRoutes, svc EventService, rs Responder) {
	r.GET("/event/id/:evid", func(c *gin.Context) {
		ev, err := svc.GetByID(c.Request.Context(), c.Param("evid"))
		if err != nil {
			rs.Fail(c, err)
			return
		}
		rs.JSON(c, ev)
	})

	r.GET("/events", func(c *gin.Context) {
		p, err := events.ParseSearchParams(c.Request.URL.Query())
		if err != nil {
			rs.Fail(c, err)
			return
		}

		res, err := svc.Search(c.Request.Context(), p)
		if err != nil {
			rs.Fail(c, err)
			return
		}
		res.Copyright = rs.Copyright
		c.JSON(http.StatusOK, res)
	})

	r.GET("/pfx_event/id/:evid/:fingerprint", func(c *gin.Context) {
		ev, err := svc.GetByID(c.Request.Context(), c.Param("evid"))
		if err != nil {
			rs.Fail(c, err)
			return
		}

		// a nil match is the documented "not found" answer: an empty object
		pfx, err := events.FindPfxEvent(ev, c.Param("fingerprint"))
		if err != nil {
			rs.Fail(c, err)
			return
		}
		rs.JSON(c, pfx)
	})
}
