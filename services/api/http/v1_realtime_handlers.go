package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/02loveslollipop/station-telemetry/internal/alert"
	"github.com/02loveslollipop/station-telemetry/internal/flow"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
	"github.com/02loveslollipop/station-telemetry/services/api/db"
)

// handleV1RealtimeLevel returns the latest level of a channel with the alert
// conditions it currently meets
// GET /api/v1/realtime/:id
func (s *Server) handleV1RealtimeLevel(c *gin.Context) {
	ch, ok := s.channelParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
	defer cancel()

	data, err := s.recent.FetchRecent(ctx, ch.ID, 1)
	if err != nil {
		s.logger.Warn("latest level unavailable", zap.Int("channel_id", ch.ID), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": fetchFailedMessage})
		return
	}

	latest, found := data.Latest(telemetry.LevelField)
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "no level data available"})
		return
	}

	level := flow.CentimetersToMeters(latest.Value)
	// A fresh state shows which conditions the level meets right now.
	conditions, _ := alert.Step(alert.State{}, level, ch, 0)

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"channel_id": ch.ID,
			"name":       ch.Name,
			"level":      level,
			"date":       latest.Date,
			"thresholds": gin.H{
				"nth":      ch.NTHThreshold,
				"ntb":      ch.NTBThreshold,
				"overflow": ch.OverflowThreshold,
			},
			"alerts_enabled": ch.AlertsEnabled(),
			"conditions": gin.H{
				"nth":      conditions.IsNTH,
				"ntb":      conditions.IsNTB,
				"overflow": conditions.IsOverflowing,
			},
		},
		"meta": gin.H{
			"generated_at": time.Now().UTC().Format(time.RFC3339),
		},
	})
}

// handleV1ListAlerts returns archived alert events, most recent first
// GET /api/v1/alerts?channel_id=2780154&type=NTH&start=...&end=...&limit=50
func (s *Server) handleV1ListAlerts(c *gin.Context) {
	if s.alerts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "alert log requires DATABASE_URL"})
		return
	}

	q := db.AlertQuery{Limit: s.cfg.DefaultLimit, Type: c.Query("type")}
	if v := c.Query("channel_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil || id <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel_id"})
			return
		}
		q.ChannelID = &id
	}
	if v := c.Query("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		q.Limit = limit
	}
	if v := c.Query("start"); v != "" {
		t, err := parseInstant(v, s.cfg.Location, false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start: " + err.Error()})
			return
		}
		q.Since = &t
	}
	if v := c.Query("end"); v != "" {
		t, err := parseInstant(v, s.cfg.Location, true)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end: " + err.Error()})
			return
		}
		q.Until = &t
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	events, err := s.alerts.ListAlertEvents(ctx, q)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": events,
		"meta": gin.H{
			"count": len(events),
			"limit": q.Limit,
		},
	})
}
