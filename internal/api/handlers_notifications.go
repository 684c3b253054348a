package api

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Melodarr/internal/domain"
	"github.com/mescon/Melodarr/internal/notifier"
)

type notificationRequest struct {
	Name            string          `json:"name" binding:"required"`
	ProviderType    string          `json:"provider_type" binding:"required"`
	Config          json.RawMessage `json:"config" binding:"required"`
	Events          []string        `json:"events" binding:"required"`
	Enabled         *bool           `json:"enabled"`
	ThrottleSeconds int             `json:"throttle_seconds"`
}

func (r *notificationRequest) toConfig() (*domain.NotificationConfig, error) {
	if !notifier.ValidProvider(r.ProviderType) {
		return nil, fmt.Errorf("unknown provider type: %s", r.ProviderType)
	}
	valid := make(map[string]bool)
	for _, e := range notifier.NotifiableEvents() {
		valid[e] = true
	}
	for _, e := range r.Events {
		if !valid[e] {
			return nil, fmt.Errorf("unknown event type: %s", e)
		}
	}
	if r.ThrottleSeconds < 0 {
		return nil, fmt.Errorf("throttle_seconds must not be negative")
	}

	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}
	return &domain.NotificationConfig{
		Name:            r.Name,
		ProviderType:    r.ProviderType,
		Config:          string(r.Config),
		Events:          r.Events,
		Enabled:         enabled,
		ThrottleSeconds: r.ThrottleSeconds,
	}, nil
}

func (s *RESTServer) getNotifications(c *gin.Context) {
	configs, err := s.repo.ListNotificationConfigs(false)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": configs})
}

func (s *RESTServer) createNotification(c *gin.Context) {
	var req notificationRequest
	if err := c.BindJSON(&req); err != nil {
		respondBadRequest(c, err, true)
		return
	}
	cfg, err := req.toConfig()
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}

	id, err := s.repo.CreateNotificationConfig(cfg)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}

	if s.notifier != nil {
		s.notifier.ReloadConfigs()
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

func (s *RESTServer) updateNotification(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, ErrMsgInvalidID, err)
		return
	}

	var req notificationRequest
	if err := c.BindJSON(&req); err != nil {
		respondBadRequest(c, err, true)
		return
	}
	cfg, err := req.toConfig()
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}
	cfg.ID = id

	if err := s.repo.UpdateNotificationConfig(cfg); err != nil {
		if err == sql.ErrNoRows {
			respondNotFound(c, "Notification")
			return
		}
		respondDatabaseError(c, err)
		return
	}

	if s.notifier != nil {
		s.notifier.ReloadConfigs()
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification updated"})
}

func (s *RESTServer) deleteNotification(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		respondWithError(c, http.StatusBadRequest, ErrMsgInvalidID, err)
		return
	}

	if err := s.repo.DeleteNotificationConfig(id); err != nil {
		if err == sql.ErrNoRows {
			respondNotFound(c, "Notification")
			return
		}
		respondDatabaseError(c, err)
		return
	}

	if s.notifier != nil {
		s.notifier.ReloadConfigs()
	}
	c.JSON(http.StatusOK, gin.H{"message": "Notification deleted"})
}

// testNotification sends a test message through an unsaved config.
func (s *RESTServer) testNotification(c *gin.Context) {
	if s.notifier == nil {
		respondServiceUnavailable(c, "Notifier")
		return
	}

	var req notificationRequest
	if err := c.BindJSON(&req); err != nil {
		respondBadRequest(c, err, true)
		return
	}
	cfg, err := req.toConfig()
	if err != nil {
		respondBadRequest(c, err, true)
		return
	}

	if err := s.notifier.TestNotification(cfg); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "Test notification failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Test notification sent"})
}

func (s *RESTServer) getNotificationEvents(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": notifier.NotifiableEvents()})
}
