package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
)

type channelView struct {
	channels.Channel
	FlowEnabled   bool `json:"flow_enabled"`
	AlertsEnabled bool `json:"alerts_enabled"`
	Recipients    int  `json:"recipients"`
}

func (s *Server) viewChannel(ch channels.Channel) channelView {
	return channelView{
		Channel:       ch,
		FlowEnabled:   ch.FlowEnabled(),
		AlertsEnabled: ch.AlertsEnabled(),
		Recipients:    len(s.registry.Emails(ch.EmailGroup)),
	}
}

// handleV1ListChannels returns all configured channels
// GET /api/v1/core/channels
func (s *Server) handleV1ListChannels(c *gin.Context) {
	all := s.registry.Channels()
	views := make([]channelView, 0, len(all))
	for _, ch := range all {
		views = append(views, s.viewChannel(ch))
	}

	c.JSON(http.StatusOK, gin.H{
		"data": views,
		"meta": gin.H{
			"count": len(views),
		},
	})
}

// handleV1GetChannel returns the configuration of one channel
// GET /api/v1/core/channels/:id
func (s *Server) handleV1GetChannel(c *gin.Context) {
	ch, ok := s.channelParam(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": s.viewChannel(ch),
	})
}
