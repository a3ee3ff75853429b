package delivery

import (
	"net/http"
	"time"

	"utmtrack/internal/delivery/middleware"
	"utmtrack/internal/domain"
	"utmtrack/internal/usecase"
	"utmtrack/pkg/logger"

	"github.com/gin-gonic/gin"
)

const serviceVersion = "1.0.0"

// handles HTTP requests
type HTTPHandlers struct {
	attribution *usecase.AttributionService
	dispatcher  *usecase.Dispatcher
	gate        *usecase.Gate
	logger      *logger.Logger
}

// creates new HTTP handlers
func NewHTTPHandlers(
	attribution *usecase.AttributionService,
	dispatcher *usecase.Dispatcher,
	gate *usecase.Gate,
	logger *logger.Logger,
) *HTTPHandlers {
	return &HTTPHandlers{
		attribution: attribution,
		dispatcher:  dispatcher,
		gate:        gate,
		logger:      logger,
	}
}

type extractRequest struct {
	URL string `json:"url"`
}

type pageViewRequest struct {
	URL   string `json:"url" binding:"required"`
	Title string `json:"title"`
}

type eventRequest struct {
	Name   string             `json:"name" binding:"required"`
	Params domain.EventParams `json:"params"`
}

func requestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

func sessionID(c *gin.Context) string {
	return c.GetString(middleware.SessionIDKey)
}

func (h *HTTPHandlers) badRequest(c *gin.Context, title string, err error) {
	h.logger.WithContext(c.Request.Context()).WithError(err).Debug(title)
	c.JSON(http.StatusBadRequest, gin.H{
		"error":      title,
		"message":    err.Error(),
		"request_id": requestID(c),
	})
}

// Extract runs extraction and validation for a URL without persisting or
// sending anything. Malformed URLs yield an empty parameter set.
func (h *HTTPHandlers) Extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	analysis := h.attribution.Analyze(c.Request.Context(), sessionID(c), req.URL)

	c.JSON(http.StatusOK, gin.H{
		"url":        analysis.URL,
		"params":     analysis.Params,
		"validation": analysis.Validation,
		"request_id": requestID(c),
	})
}

// GetAttribution returns the attribution stored for the caller's session.
func (h *HTTPHandlers) GetAttribution(c *gin.Context) {
	stored := h.attribution.Retrieve(c.Request.Context(), sessionID(c))

	c.JSON(http.StatusOK, gin.H{
		"params":          stored,
		"has_attribution": !stored.IsEmpty(),
		"request_id":      requestID(c),
	})
}

// Diagnose explains how the given landing URL would be attributed.
func (h *HTTPHandlers) Diagnose(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Missing required parameter",
			"message":    "url parameter is required",
			"request_id": requestID(c),
		})
		return
	}

	diagnosis := h.attribution.Diagnose(c.Request.Context(), sessionID(c), rawURL, h.gate.Readiness())

	c.JSON(http.StatusOK, gin.H{
		"diagnosis":  diagnosis,
		"request_id": requestID(c),
	})
}

// AnalyticsReady reports whether analytics can accept events. With
// wait=true it blocks until the binding is ready, the polling ceiling is
// hit or the request times out.
func (h *HTTPHandlers) AnalyticsReady(c *gin.Context) {
	available := h.gate.IsAvailable()
	if !available && c.Query("wait") == "true" {
		available = h.gate.WaitForReady(c.Request.Context())
	}

	c.JSON(http.StatusOK, gin.H{
		"available":  available,
		"readiness":  h.gate.Readiness(),
		"request_id": requestID(c),
	})
}

func (h *HTTPHandlers) SendPageView(c *gin.Context) {
	var req pageViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	result := h.dispatcher.SendPageView(c.Request.Context(), sessionID(c), req.URL, req.Title)
	h.respondDispatch(c, result)
}

func (h *HTTPHandlers) SendEvent(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	result := h.dispatcher.SendEvent(c.Request.Context(), sessionID(c), req.Name, req.Params)
	h.respondDispatch(c, result)
}

func (h *HTTPHandlers) SendConversion(c *gin.Context) {
	var req eventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, "Invalid request body", err)
		return
	}

	result := h.dispatcher.SendConversion(c.Request.Context(), sessionID(c), req.Name, req.Params)
	h.respondDispatch(c, result)
}

// respondDispatch maps a dispatch outcome onto a status code. Skipped sends
// are not failures: the caller's page keeps working without analytics.
func (h *HTTPHandlers) respondDispatch(c *gin.Context, result domain.DispatchResult) {
	status := http.StatusOK
	switch result.Outcome {
	case domain.OutcomeSent:
		status = http.StatusAccepted
	case domain.OutcomeInvalid:
		c.JSON(http.StatusBadRequest, gin.H{
			"error":      "Invalid event",
			"message":    result.Error,
			"result":     result,
			"request_id": requestID(c),
		})
		return
	case domain.OutcomeSendError:
		status = http.StatusServiceUnavailable
	}

	c.JSON(status, gin.H{
		"result":     result,
		"request_id": requestID(c),
	})
}

// GetAPIInfo returns API v1 information and available endpoints
func (h *HTTPHandlers) GetAPIInfo(c *gin.Context) {
	names := h.attribution.Catalog().Names()
	tracked := make([]string, len(names))
	for i, name := range names {
		tracked[i] = string(name)
	}

	c.JSON(http.StatusOK, gin.H{
		"api_version": "v1",
		"service":     "UTM Tracking Service",
		"version":     serviceVersion,
		"description": "Captures campaign parameters from landing URLs and forwards attributed events to Google Analytics 4",
		"endpoints": gin.H{
			"extract": gin.H{
				"path":        "/api/v1/extract",
				"method":      "POST",
				"description": "Extract and validate the tracking parameters of a URL",
				"body":        gin.H{"url": "Landing page URL"},
			},
			"attribution": gin.H{
				"path":        "/api/v1/attribution",
				"method":      "GET",
				"description": "Attribution stored for the current session",
			},
			"diagnose": gin.H{
				"path":        "/api/v1/attribution/diagnose",
				"method":      "GET",
				"description": "Explain why a visit would or would not be attributed",
				"parameters":  gin.H{"url": "Required: landing page URL"},
				"example":     "/api/v1/attribution/diagnose?url=https%3A%2F%2Fexample.com%2F%3Futm_source%3Dgoogle",
			},
			"analytics_ready": gin.H{
				"path":        "/api/v1/analytics/ready",
				"method":      "GET",
				"description": "Whether analytics accepts events",
				"parameters":  gin.H{"wait": "Optional: true to wait for readiness"},
			},
			"page_view": gin.H{
				"path":        "/api/v1/events/pageview",
				"method":      "POST",
				"description": "Persist campaign parameters and send a page_view",
				"body":        gin.H{"url": "Required: page URL", "title": "Optional: page title"},
			},
			"event": gin.H{
				"path":        "/api/v1/events",
				"method":      "POST",
				"description": "Send a custom event",
				"body":        gin.H{"name": "Required: event name", "params": "Optional: event parameters"},
			},
			"conversion": gin.H{
				"path":        "/api/v1/events/conversion",
				"method":      "POST",
				"description": "Send a conversion with attribution diagnostics",
				"body":        gin.H{"name": "Required: conversion name", "params": "Optional: extra parameters"},
			},
		},
		"tracked_parameters":  tracked,
		"critical_parameters": domain.CriticalParameters,
		"request_id":          requestID(c),
	})
}

// HealthCheck returns the health status of the service
func (h *HTTPHandlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "utmtrack",
		"version":   serviceVersion,
		"analytics": gin.H{
			"available": h.gate.IsAvailable(),
			"readiness": h.gate.Readiness(),
		},
		"request_id": requestID(c),
	})
}
