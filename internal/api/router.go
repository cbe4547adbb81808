// Package api exposes the HTTP surface: the payment-provider IPN
// endpoints, a health probe, and Prometheus metrics.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/craftdesk/craftdesk/internal/gateway"
	"github.com/craftdesk/craftdesk/internal/invoice"
	"github.com/craftdesk/craftdesk/internal/middleware"
)

// ipnRateLimit caps callbacks per source IP per hour. Providers retry
// in bursts after downtime, so this is deliberately generous.
const ipnRateLimit = 600

// NewRouter builds the gin engine with all routes attached. The caller
// owns the limiter's lifecycle.
func NewRouter(dispatcher *invoice.Dispatcher, gateways *gateway.Registry, limiter *middleware.RateLimiter) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestMetrics())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ipn := &ipnHandler{dispatcher: dispatcher, gateways: gateways}
	r.GET("/ipn", ipn.info)
	r.GET("/ipn/:gateway", ipn.info)
	r.POST("/ipn/:gateway", limiter.LimitByIP(ipnRateLimit), ipn.callback)

	return r
}
