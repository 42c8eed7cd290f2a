package http

// registerV1Routes sets up the v1 API structure.
// Groups: /api/v1/core, /api/v1/telemetry, /api/v1/flow, /api/v1/realtime, /api/v1/alerts
func (s *Server) registerV1Routes() {
	v1 := s.engine.Group("/api/v1")
	v1.Use(apiVersionMiddleware())

	// Core endpoints - channel configuration
	core := v1.Group("/core")
	{
		core.GET("/channels", s.handleV1ListChannels)
		core.GET("/channels/:id", s.handleV1GetChannel)
	}

	v1.GET("/telemetry/:id", s.handleV1Telemetry)

	// Flow endpoints - derived rates, volumes and exports
	fl := v1.Group("/flow")
	{
		fl.GET("/:id", s.handleV1Flow)
		fl.GET("/:id/export.csv", s.handleV1FlowCSV)
		fl.GET("/:id/daily.csv", s.handleV1DailyCSV)
		fl.GET("/:id/export.xlsx", s.handleV1FlowWorkbook)
	}

	// Realtime endpoints - latest level and alert conditions
	realtime := v1.Group("/realtime")
	{
		realtime.GET("/:id", s.handleV1RealtimeLevel)
	}

	v1.GET("/alerts", s.handleV1ListAlerts)
}
