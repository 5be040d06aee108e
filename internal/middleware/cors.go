package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// OriginPolicy is a parsed CORS allow-list shared by the REST API and the live feed handshake.
type OriginPolicy struct {
	any     bool
	origins map[string]struct{}
}

// NewOriginPolicy parses "*" or a comma-separated list of origins. An empty list allows any origin.
func NewOriginPolicy(allowedOrigins string) OriginPolicy {
	p := OriginPolicy{origins: make(map[string]struct{})}
	for _, o := range strings.Split(allowedOrigins, ",") {
		switch o = strings.TrimSpace(o); o {
		case "":
		case "*":
			p.any = true
		default:
			p.origins[o] = struct{}{}
		}
	}
	if len(p.origins) == 0 {
		p.any = true
	}
	return p
}

// Allows reports whether a browser at origin may call the API. Requests without an Origin
// header do not come from a browser page and are allowed.
func (p OriginPolicy) Allows(origin string) bool {
	if p.any || origin == "" {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

// CORS returns a middleware that sets CORS headers for allowed origins.
// Preflights from other origins are refused with 403.
func CORS(policy OriginPolicy) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := policy.Allows(origin)
		if allowed && origin != "" {
			if policy.any {
				c.Header("Access-Control-Allow-Origin", "*")
			} else {
				c.Header("Access-Control-Allow-Origin", origin)
				c.Header("Vary", "Origin")
			}
			c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			if !allowed {
				c.AbortWithStatus(http.StatusForbidden)
				return
			}
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
