package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/recurra/internal/scheduler"
	"github.com/smallbiznis/recurra/pkg/errs"
)

var errTickBusy = errs.New(errs.KindConflict, "scheduler_tick_in_progress")

// RunScheduler runs one tick synchronously. as_of defaults to today in the
// scheduler timezone. The /internal group is expected to be unreachable from
// the public edge.
func (s *Server) RunScheduler(c *gin.Context) {
	if s.scheduler == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}
	asOf, err := parseOptionalDate(c.Query("as_of"))
	if err != nil {
		AbortWithError(c, newValidationError("as_of", "invalid_as_of", "as_of must be YYYY-MM-DD"))
		return
	}

	var summary scheduler.TickSummary
	if asOf.IsZero() {
		summary, err = s.scheduler.Tick(c.Request.Context())
	} else {
		summary, err = s.scheduler.RunAt(c.Request.Context(), asOf)
	}
	if errors.Is(err, scheduler.ErrTickInFlight) || errors.Is(err, scheduler.ErrTickLocked) {
		AbortWithError(c, errTickBusy)
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": summary})
}
