package server

import (
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

const (
	HeaderTenant       = "X-Tenant-ID"
	contextTenantIDKey = "tenant_id"
)

// TenantRequired resolves the calling tenant from X-Tenant-ID. Identity is
// asserted by the upstream gateway; this service does not authenticate callers.
func TenantRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := strings.TrimSpace(c.GetHeader(HeaderTenant))
		if raw == "" {
			AbortWithError(c, newValidationError("tenant", "missing_tenant", "X-Tenant-ID header is required"))
			return
		}
		id, err := snowflake.ParseString(raw)
		if err != nil || id <= 0 {
			AbortWithError(c, newValidationError("tenant", "invalid_tenant", "X-Tenant-ID must be a numeric id"))
			return
		}
		c.Set(contextTenantIDKey, id)
		c.Next()
	}
}

func tenantFrom(c *gin.Context) snowflake.ID {
	v, ok := c.Get(contextTenantIDKey)
	if !ok {
		return 0
	}
	id, _ := v.(snowflake.ID)
	return id
}
