package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/smallbiznis/recurra/pkg/errs"
	"github.com/stretchr/testify/assert"
)

func TestHTTPMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := newHTTPMetrics(prometheus.NewRegistry(), Config{Environment: "test"})

	r := gin.New()
	r.Use(m.GinMiddleware())
	r.GET("/charges/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, id := range []string{"1", "2"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/charges/"+id, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues(http.MethodGet, "/charges/:id", "204")))
}

func TestGatewayMetricsOutcome(t *testing.T) {
	m := newGatewayMetrics(prometheus.NewRegistry(), Config{})

	m.Observe("asaas", GatewayOperationCreate, 10*time.Millisecond, nil)
	m.Observe("asaas", GatewayOperationCreate, 10*time.Millisecond, errs.New(errs.KindUpstream, "bad_gateway"))
	m.Observe("asaas", GatewayOperationCancel, time.Millisecond, errors.New("boom"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("asaas", GatewayOperationCreate, "ok")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("asaas", GatewayOperationCreate, "upstream_error")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("asaas", GatewayOperationCancel, "internal_error")))
}
