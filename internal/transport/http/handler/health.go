package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"evalboard/internal/bootstrap"
)

type HealthHandler struct {
	app *bootstrap.App
}

type dependencyStatus struct {
	OK      bool   `json:"ok"`
	Mode    string `json:"mode,omitempty"`
	Message string `json:"message,omitempty"`
}

func NewHealthHandler(app *bootstrap.App) *HealthHandler {
	return &HealthHandler{app: app}
}

// Check reports liveness plus the degradation state of each optional
// dependency. A degraded cache or missing blob bucket still counts as
// healthy; only a configured-but-unreachable Redis flips the status.
func (h *HealthHandler) Check(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	cacheStatus := h.checkCache(ctx)
	statusCode := http.StatusOK
	if !cacheStatus.OK {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, gin.H{
		"app":        h.app.Config.App.Name,
		"env":        h.app.Config.App.Env,
		"uptime_sec": int(time.Since(h.app.StartedAt).Seconds()),
		"dependencies": gin.H{
			"cache": cacheStatus,
			"blob":  dependencyStatus{OK: true, Mode: blobMode(h.app)},
			"llm":   dependencyStatus{OK: h.app.Config.LLM.APIKey != "", Mode: h.app.Config.LLM.Provider},
		},
	})
}

func (h *HealthHandler) checkCache(ctx context.Context) dependencyStatus {
	if h.app.Redis == nil {
		return dependencyStatus{OK: true, Mode: "memory"}
	}
	if err := h.app.Redis.Ping(ctx).Err(); err != nil {
		return dependencyStatus{OK: false, Mode: "redis", Message: err.Error()}
	}
	return dependencyStatus{OK: true, Mode: "redis"}
}

func blobMode(app *bootstrap.App) string {
	if app.Blob == nil {
		return "disabled"
	}
	return "gcs"
}
