package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Melodarr/internal/auth"
	"github.com/mescon/Melodarr/internal/logger"
)

// handleAuthSetup generates the API key on first use. The plaintext key
// is returned exactly once; only its bcrypt hash is stored.
func (s *RESTServer) handleAuthSetup(c *gin.Context) {
	existing, err := s.repo.GetSetting(settingAPIKeyHash)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	if existing != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Setup already completed"})
		return
	}

	key, err := s.issueAPIKey()
	if err != nil {
		respondAuthError(c, err)
		return
	}

	logger.Infof("Auth setup completed, API key issued")
	c.JSON(http.StatusOK, gin.H{
		"message": "Setup complete. Store this key, it will not be shown again.",
		"api_key": key,
	})
}

// regenerateAPIKey replaces the stored key. Requires the current key.
func (s *RESTServer) regenerateAPIKey(c *gin.Context) {
	key, err := s.issueAPIKey()
	if err != nil {
		respondAuthError(c, err)
		return
	}

	logger.Infof("API key regenerated")
	c.JSON(http.StatusOK, gin.H{
		"message": "API key regenerated. Store this key, it will not be shown again.",
		"api_key": key,
	})
}

func (s *RESTServer) handleAuthStatus(c *gin.Context) {
	hash, err := s.repo.GetSetting(settingAPIKeyHash)
	if err != nil {
		respondDatabaseError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"configured": hash != ""})
}

func (s *RESTServer) issueAPIKey() (string, error) {
	key, err := auth.GenerateAPIKey()
	if err != nil {
		return "", err
	}
	hash, err := auth.HashKey(key)
	if err != nil {
		return "", err
	}
	if err := s.repo.SetSetting(settingAPIKeyHash, hash); err != nil {
		return "", err
	}
	return key, nil
}
