package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *RESTServer) getTracks(c *gin.Context) {
	p := ParsePagination(c, DefaultPaginationConfig())

	if q := strings.TrimSpace(c.Query("q")); q != "" {
		tracks, err := s.repo.SearchTracks(q, p.Limit)
		if err != nil {
			respondDatabaseError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"tracks": tracks, "query": q})
		return
	}

	total, err := s.repo.CountTracks()
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	tracks, err := s.repo.ListTracks(p.Limit, p.Offset)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tracks":     tracks,
		"pagination": NewPaginationResponse(p, int(total)),
	})
}

func (s *RESTServer) getArtists(c *gin.Context) {
	p := ParsePagination(c, DefaultPaginationConfig())

	artists, err := s.repo.ListArtists(p.Limit, p.Offset)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"artists": artists})
}
