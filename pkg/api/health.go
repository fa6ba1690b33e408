package api

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/SUNET/go-xmlsign/pkg/logging"
)

// HealthResponse represents the response from health check endpoints
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadinessResponse represents the response from the readiness endpoint
type ReadinessResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	KeyLoaded bool      `json:"key_loaded"`
	Ready     bool      `json:"ready"`
	Message   string    `json:"message,omitempty"`
}

// RegisterHealthEndpoints registers health check endpoints on the given Gin
// router. These endpoints are useful for Kubernetes liveness and readiness
// probes, load balancers, and monitoring systems.
//
// Endpoints:
//
//	GET /health       - Liveness probe: returns 200 if the server is running
//	GET /healthz      - Alias for /health
//	GET /ready        - Readiness probe: returns 200 if a signing key is loaded
//	GET /readiness    - Alias for /ready
func RegisterHealthEndpoints(r *gin.Engine, serverCtx *ServerContext) {
	r.GET("/health", HealthHandler(serverCtx))
	r.GET("/healthz", HealthHandler(serverCtx))
	r.GET("/ready", ReadinessHandler(serverCtx))
	r.GET("/readiness", ReadinessHandler(serverCtx))

	serverCtx.Logger.Info("Health check endpoints registered",
		logging.F("endpoints", []string{"/health", "/healthz", "/ready", "/readiness"}))
}

// HealthHandler godoc
// @Summary Liveness check
// @Description Returns OK if the server is running and able to handle requests
// @Tags Health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
// @Router /healthz [get]
func HealthHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		serverCtx.Logger.Debug("Health check requested",
			logging.F("remote_ip", c.ClientIP()),
			logging.F("endpoint", c.Request.URL.Path))

		c.JSON(200, HealthResponse{
			Status:    "ok",
			Timestamp: time.Now(),
		})
	}
}

// ReadinessHandler godoc
// @Summary Readiness check
// @Description Returns ready status if the server-side signing key is loaded
// @Tags Health
// @Produce json
// @Success 200 {object} ReadinessResponse
// @Failure 503 {object} ReadinessResponse
// @Router /ready [get]
// @Router /readiness [get]
func ReadinessHandler(serverCtx *ServerContext) gin.HandlerFunc {
	return func(c *gin.Context) {
		serverCtx.RLock()
		keyLoaded := serverCtx.Key != nil
		serverCtx.RUnlock()

		resp := ReadinessResponse{
			Timestamp: time.Now(),
			KeyLoaded: keyLoaded,
			Ready:     keyLoaded,
		}
		if keyLoaded {
			resp.Status = "ok"
			c.JSON(200, resp)
			return
		}
		resp.Status = "unavailable"
		resp.Message = "no signing key configured"
		c.JSON(503, resp)
	}
}
