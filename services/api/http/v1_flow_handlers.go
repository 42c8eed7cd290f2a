package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/02loveslollipop/station-telemetry/internal/channels"
	"github.com/02loveslollipop/station-telemetry/internal/export"
	"github.com/02loveslollipop/station-telemetry/internal/flow"
	"github.com/02loveslollipop/station-telemetry/internal/telemetry"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type rangeRequest struct {
	channel channels.Channel
	data    *telemetry.ChannelData
	start   time.Time
	end     time.Time
}

// loadRange resolves the channel and range of a request and fetches its
// telemetry. It writes the error response itself.
func (s *Server) loadRange(c *gin.Context) (rangeRequest, bool) {
	ch, ok := s.channelParam(c)
	if !ok {
		return rangeRequest{}, false
	}
	start, end, ok := s.parseRange(c)
	if !ok {
		return rangeRequest{}, false
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	data, err := s.fetcher.FetchRange(ctx, ch.ID, start, end)
	if err != nil {
		s.writeFetchError(c, err)
		return rangeRequest{}, false
	}
	return rangeRequest{channel: ch, data: data, start: start, end: end}, true
}

func (r rangeRequest) meta() gin.H {
	return gin.H{
		"channel_id": r.channel.ID,
		"start":      r.start.Format(time.RFC3339),
		"end":        r.end.Format(time.RFC3339),
	}
}

func (r rangeRequest) filename(ext string) string {
	return fmt.Sprintf("%s_%s_%s.%s", r.channel.Name, r.start.Format(dayLayout), r.end.Format(dayLayout), ext)
}

func (s *Server) derive(r rangeRequest) flow.Result {
	return s.cache.Derive(r.data.Series(telemetry.LevelField), r.channel, s.cfg.Location)
}

// handleV1Telemetry returns the merged field series of a channel
// GET /api/v1/telemetry/:id?start=2024-03-01T00:00:00&end=2024-03-01T23:59:59
func (s *Server) handleV1Telemetry(c *gin.Context) {
	r, ok := s.loadRange(c)
	if !ok {
		return
	}

	meta := r.meta()
	meta["samples"] = len(r.data.Series(telemetry.LevelField))
	c.JSON(http.StatusOK, gin.H{
		"data": r.data,
		"meta": meta,
	})
}

// handleV1Flow returns derived rates, volumes, pump flow and level summary
// GET /api/v1/flow/:id?start=...&end=...
func (s *Server) handleV1Flow(c *gin.Context) {
	r, ok := s.loadRange(c)
	if !ok {
		return
	}

	res := s.derive(r)
	levels := flow.Levels(r.data.Series(telemetry.LevelField))

	c.JSON(http.StatusOK, gin.H{
		"data": gin.H{
			"processed":        res.Processed,
			"average_q_entree": res.AverageQEntree,
			"total_q_sortie":   res.TotalQSortie,
			"volume_index":     res.VolumeIndex,
			"daily_volumes":    res.DailyVolumes,
			"pump_flow":        flow.PumpFlow(r.data, r.channel),
			"summary":          flow.Summarize(levels),
		},
		"meta": r.meta(),
	})
}

// handleV1FlowCSV downloads the processed samples table
// GET /api/v1/flow/:id/export.csv
func (s *Server) handleV1FlowCSV(c *gin.Context) {
	r, ok := s.loadRange(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteProcessedCSV(&buf, s.derive(r).Processed, s.cfg.Location); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", r.filename("csv")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// handleV1DailyCSV downloads the daily volumes table
// GET /api/v1/flow/:id/daily.csv
func (s *Server) handleV1DailyCSV(c *gin.Context) {
	r, ok := s.loadRange(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteDailyCSV(&buf, s.derive(r).DailyVolumes); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", r.filename("daily.csv")))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// handleV1FlowWorkbook downloads both tables as an Excel workbook
// GET /api/v1/flow/:id/export.xlsx
func (s *Server) handleV1FlowWorkbook(c *gin.Context) {
	r, ok := s.loadRange(c)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteWorkbook(&buf, s.derive(r), s.cfg.Location); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", r.filename("xlsx")))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
