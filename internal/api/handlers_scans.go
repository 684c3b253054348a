package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Melodarr/internal/ingest"
	"github.com/mescon/Melodarr/internal/logger"
)

func (s *RESTServer) getScans(c *gin.Context) {
	p := ParsePagination(c, DefaultPaginationConfig())

	scans, err := s.repo.ListScans(p.Limit)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans})
}

func (s *RESTServer) getActiveScan(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"scanning":     s.pipeline.Scanning(),
		"watching":     s.pipeline.Watching(),
		"last_scan_at": s.pipeline.LastScanAt(),
	})
}

// triggerScan starts a scan over all roots, or a single root when the
// request body names one. The scan runs synchronously; watcher-triggered
// rescans continue in the background regardless.
func (s *RESTServer) triggerScan(c *gin.Context) {
	var req struct {
		Root string `json:"root"`
	}
	// Body is optional: an empty body scans everything.
	if c.Request.ContentLength > 0 {
		if err := c.BindJSON(&req); err != nil {
			respondBadRequest(c, err, true)
			return
		}
	}

	ctx := c.Request.Context()
	var result *ingest.ScanResult
	var err error
	if req.Root != "" {
		root, verr := validateLibraryPath(req.Root)
		if verr != nil {
			respondBadRequest(c, verr, true)
			return
		}
		result, err = s.pipeline.ScanOneRoot(ctx, "manual", root)
	} else {
		result, err = s.pipeline.ScanNow(ctx, "manual")
	}

	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrScanActive):
			c.JSON(http.StatusConflict, gin.H{"error": "A scan is already in progress"})
		case errors.Is(err, ingest.ErrScanTooSoon):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Scan requested too soon after the previous one"})
		default:
			respondWithError(c, http.StatusInternalServerError, "Scan failed", err)
		}
		return
	}

	logger.Infof("Manual scan %s completed via API", result.ScanID)
	c.JSON(http.StatusOK, gin.H{
		"scan_id":     result.ScanID,
		"processed":   result.Processed,
		"new":         result.Added,
		"modified":    result.Updated,
		"unchanged":   result.Unchanged,
		"removed":     result.Removed,
		"skipped":     result.Skipped,
		"duration_ms": result.Duration.Milliseconds(),
	})
}

func (s *RESTServer) startWatcher(c *gin.Context) {
	if s.pipeline.Watching() {
		c.JSON(http.StatusOK, gin.H{"message": "Watcher already running"})
		return
	}
	if err := s.pipeline.StartWatching(); err != nil {
		respondWithError(c, http.StatusInternalServerError, "Failed to start watcher", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Watcher started", "watching": s.pipeline.Watching()})
}

func (s *RESTServer) stopWatcher(c *gin.Context) {
	s.pipeline.StopWatching()
	c.JSON(http.StatusOK, gin.H{"message": "Watcher stopped"})
}
