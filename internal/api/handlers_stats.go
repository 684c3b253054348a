package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *RESTServer) handleHealth(c *gin.Context) {
	status := "ok"
	dbStatus := "ok"
	httpStatus := http.StatusOK

	if err := s.repo.DB.Ping(); err != nil {
		status = "degraded"
		dbStatus = "unreachable"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, gin.H{
		"status":         status,
		"database":       dbStatus,
		"scanning":       s.pipeline.Scanning(),
		"watching":       s.pipeline.Watching(),
		"uptime_seconds": int64(time.Since(s.startTime).Seconds()),
	})
}

func (s *RESTServer) getStats(c *gin.Context) {
	trackCount, err := s.repo.CountTracks()
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	dbStats, err := s.repo.GetDatabaseStats()
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	stats := gin.H{
		"tracks":       trackCount,
		"database":     dbStats,
		"scanning":     s.pipeline.Scanning(),
		"watching":     s.pipeline.Watching(),
		"last_scan_at": s.pipeline.LastScanAt(),
		"ws_clients":   s.hub.ClientCount(),
	}

	if s.scheduler != nil {
		stats["scheduled_jobs"] = s.scheduler.JobCount()
	}
	if s.enrichment != nil {
		bs := s.enrichment.BreakerStats()
		stats["enrichment"] = gin.H{
			"circuit_state":   bs.State.String(),
			"total_successes": bs.TotalSuccesses,
			"total_failures":  bs.TotalFailures,
			"total_rejected":  bs.TotalRejected,
		}
	}

	c.JSON(http.StatusOK, stats)
}
