package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

const (
	localLayout = "2006-01-02T15:04:05"
	dayLayout   = "2006-01-02"

	// fetchFailedMessage is shown when no window of a request could be read.
	fetchFailedMessage = "Erreur lors de la récupération des données. Vérifiez votre connexion internet."
)

// parseInstant accepts RFC3339, a station-local timestamp or a bare day.
// A bare day is the start of that day, or its last second when endOfDay.
func parseInstant(v string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	if t, err := time.ParseInLocation(localLayout, v, loc); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(dayLayout, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q", v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Second)
	}
	return t, nil
}

// dayBounds returns 00:00:00 and 23:59:59 of the day of t in loc.
func dayBounds(t time.Time, loc *time.Location) (time.Time, time.Time) {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 23, 59, 59, 0, loc)
	return start, end
}

// parseRange reads start/end query parameters, defaulting to today.
func (s *Server) parseRange(c *gin.Context) (time.Time, time.Time, bool) {
	start, end := dayBounds(time.Now(), s.cfg.Location)

	if v := c.Query("start"); v != "" {
		t, err := parseInstant(v, s.cfg.Location, false)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start: " + err.Error()})
			return time.Time{}, time.Time{}, false
		}
		start = t
	}
	if v := c.Query("end"); v != "" {
		t, err := parseInstant(v, s.cfg.Location, true)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end: " + err.Error()})
			return time.Time{}, time.Time{}, false
		}
		end = t
	}
	if end.Before(start) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "end is before start"})
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// channelParam resolves the :id path parameter against the registry.
func (s *Server) channelParam(c *gin.Context) (channels.Channel, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid channel id"})
		return channels.Channel{}, false
	}
	ch, ok := s.registry.Channel(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "channel not found"})
		return channels.Channel{}, false
	}
	return ch, true
}

func (s *Server) writeFetchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, telemetry.ErrNoData):
		c.JSON(http.StatusBadGateway, gin.H{"error": fetchFailedMessage})
	case errors.Is(err, context.DeadlineExceeded):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": fetchFailedMessage})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
