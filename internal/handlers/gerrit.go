package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/ol-repo-gateway/internal/events"
	"github.com/oremus-labs/ol-repo-gateway/internal/gerrit"
	"github.com/oremus-labs/ol-repo-gateway/internal/logutil"
	"github.com/oremus-labs/ol-repo-gateway/internal/metrics"
	"github.com/oremus-labs/ol-repo-gateway/internal/store"
)

const sideChannelTimeout = 2 * time.Second

type verifyRequest struct {
	URL *string `json:"url"`
}

// VerifyGerrit probes the submitted URL and reports whether it hosts Gerrit.
// Probe failures are part of the 200 response body.
func (h *Handler) VerifyGerrit(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.URL == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url is required and must be a string"})
		return
	}

	start := time.Now()
	result := h.prober.Probe(c.Request.Context(), *req.URL)
	metrics.ObserveProbe(result.IsGerrit, result.Reason, len(result.TriedEndpoints), time.Since(start))

	logutil.Info("gerrit verification", logutil.Fields{
		"request_id": requestID(c),
		"url":        *req.URL,
		"is_gerrit":  result.IsGerrit,
		"reason":     result.Reason,
		"attempts":   len(result.TriedEndpoints),
	})

	h.recordVerification(requestID(c), *req.URL, result)

	c.JSON(http.StatusOK, result)
}

// RecordVerification stores and announces a probe outcome that did not come
// through VerifyGerrit (the GraphQL mutation, for instance).
func (h *Handler) RecordVerification(rawURL string, result gerrit.Result) {
	h.recordVerification("", rawURL, result)
}

// recordVerification stores and announces a probe outcome. Failures are
// logged only.
func (h *Handler) recordVerification(reqID, rawURL string, result gerrit.Result) {
	record := &store.Verification{
		URL:            rawURL,
		BaseURL:        result.BaseURL,
		IsGerrit:       result.IsGerrit,
		Version:        result.Version,
		Reason:         result.Reason,
		Details:        result.Details,
		TriedEndpoints: result.TriedEndpoints,
		RequestID:      reqID,
	}
	fields := logutil.Fields{"request_id": reqID, "url": rawURL}

	if h.history != nil && rawURL != "" {
		if err := h.history.RecordVerification(record); err != nil {
			logutil.Error("record verification failed", err, fields)
		}
	}

	if h.events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), sideChannelTimeout)
		defer cancel()
		evt := events.Event{Type: events.TypeGerritVerified, Data: record}
		if err := h.events.Publish(ctx, evt); err != nil {
			logutil.Error("publish verification event failed", err, fields)
		}
	}
}
