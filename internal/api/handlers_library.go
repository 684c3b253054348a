package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Melodarr/internal/ingest"
	"github.com/mescon/Melodarr/internal/logger"
)

func (s *RESTServer) getLibraryRoots(c *gin.Context) {
	roots, err := s.repo.ListLibraryRoots(s.profileID)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roots": roots})
}

func (s *RESTServer) createLibraryRoot(c *gin.Context) {
	var req struct {
		Path string `json:"path" binding:"required"`
	}
	if err := c.BindJSON(&req); err != nil {
		respondBadRequest(c, err, true)
		return
	}

	path, err := validateLibraryPath(req.Path)
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}

	id, err := s.repo.AddLibraryRoot(s.profileID, path)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, gin.H{"error": "Root already registered"})
			return
		}
		respondDatabaseError(c, err)
		return
	}

	logger.Infof("Library root added: %s", path)
	c.JSON(http.StatusCreated, gin.H{"id": id, "path": path})
}

func (s *RESTServer) deleteLibraryRoot(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, ErrMsgInvalidID, err)
		return
	}

	if err := s.repo.RemoveLibraryRoot(id); err != nil {
		if err == sql.ErrNoRows {
			respondNotFound(c, "Library root")
			return
		}
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Library root removed"})
}

func (s *RESTServer) getBlacklist(c *gin.Context) {
	entries, err := s.repo.ListBlacklistEntries(s.profileID)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blacklist": entries})
}

func (s *RESTServer) createBlacklistEntry(c *gin.Context) {
	var req struct {
		Path   string `json:"path" binding:"required"`
		Reason string `json:"reason"`
	}
	if err := c.BindJSON(&req); err != nil {
		respondBadRequest(c, err, true)
		return
	}

	path, err := validateLibraryPath(req.Path)
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}

	id, err := s.repo.AddBlacklistEntry(s.profileID, path, req.Reason)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			c.JSON(http.StatusConflict, gin.H{"error": "Path already blacklisted"})
			return
		}
		respondDatabaseError(c, err)
		return
	}

	logger.Infof("Blacklist entry added: %s", path)
	c.JSON(http.StatusCreated, gin.H{"id": id, "path": path})
}

func (s *RESTServer) deleteBlacklistEntry(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, ErrMsgInvalidID, err)
		return
	}

	if err := s.repo.RemoveBlacklistEntry(id); err != nil {
		if err == sql.ErrNoRows {
			respondNotFound(c, "Blacklist entry")
			return
		}
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Blacklist entry removed"})
}

// validateLibraryPath canonicalizes a path for storage and rejects paths
// that are not absolute. The stored form keeps the user's casing so it stays
// valid for filesystem access; case-insensitive uniqueness is enforced by
// the database collation, and the scanner lowercases only when comparing.
func validateLibraryPath(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("path is required")
	}
	cleaned := ingest.Clean(trimmed)
	if !filepath.IsAbs(cleaned) {
		return "", fmt.Errorf("path must be absolute")
	}
	return cleaned, nil
}
