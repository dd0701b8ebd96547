package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	errx "github.com/wiresense/server/internal/core/error"
	"github.com/wiresense/server/internal/dispatch"
	"github.com/wiresense/server/internal/quota"
	logx "github.com/wiresense/server/pkg/logger"
)

// userIDHeader carries the caller identity set by the upstream auth layer.
const userIDHeader = "X-User-ID"

const quotaExceededMessage = "monthly usage limit reached for your plan"

func registerRoutes(router *gin.Engine, opts Options) {
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.POST("/diagnostic-session", handleDiagnosticAction(opts.Diagnostics))
	api.GET("/diagnostic-session/:id", handleGetSession(opts.Diagnostics))
	api.POST("/wire-tracing", handleWireTracing(opts.WireTracing))
	api.GET("/usage", handleUsage(opts.Usage))
}

func handleDiagnosticAction(svc DiagnosticService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.DiagnosticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			renderError(c, errx.InvalidArgument("malformed request body"))
			return
		}
		req.UserID = userID(c)
		resp, err := svc.Handle(c.Request.Context(), req)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleGetSession(svc DiagnosticService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID(c) == "" {
			renderError(c, errx.Unauthorized("user id is required"))
			return
		}
		s, err := svc.Session(c.Request.Context(), c.Param("id"))
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, s)
	}
}

func handleWireTracing(svc WireTracingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req dispatch.WireTracingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			renderError(c, errx.InvalidArgument("malformed request body"))
			return
		}
		req.UserID = userID(c)
		resp, err := svc.Handle(c.Request.Context(), req)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleUsage(svc UsageService) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := userID(c)
		if uid == "" {
			renderError(c, errx.Unauthorized("user id is required"))
			return
		}
		states, err := svc.Usage(c.Request.Context(), uid)
		if err != nil {
			renderError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"userId": uid, "usage": states})
	}
}

func userID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(userIDHeader))
}

// renderError writes the structured error body. Quota rejections carry the
// usage numbers so the client can offer an upgrade.
func renderError(c *gin.Context, err error) {
	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"errorCode":  errx.CodeQuotaExceeded,
			"message":    quotaExceededMessage,
			"category":   exceeded.State.Category,
			"current":    exceeded.State.Current,
			"limit":      exceeded.State.Limit,
			"percentage": exceeded.State.Percentage,
		})
		return
	}

	status := errx.StatusOf(err)
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{
		"errorCode": errx.CodeOf(err),
		"message":   errx.PublicMessage(err),
		"retryable": errx.IsRetryable(err),
	})
}
