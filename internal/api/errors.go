package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mescon/Melodarr/internal/logger"
)

// Public error messages. Clients get these; the underlying error stays in
// the server log so library paths and SQL details never leak through the API.
const (
	ErrMsgDatabaseError       = "Library database error"
	ErrMsgAuthenticationError = "Authentication error"
	ErrMsgInvalidRequest      = "Invalid request"
	ErrMsgInvalidID           = "Invalid ID"
)

// respondWithError sends a JSON error response and logs the actual error.
func respondWithError(c *gin.Context, status int, publicMsg string, err error) {
	if err != nil {
		logger.Debugf("%s: %v", publicMsg, err)
	}
	c.JSON(status, gin.H{"error": publicMsg})
}

// respondDatabaseError reports a failed index or settings query. These are
// unexpected, so the underlying error is logged at error level.
func respondDatabaseError(c *gin.Context, err error) {
	logger.Errorf("Database error handling %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": ErrMsgDatabaseError})
}

func respondAuthError(c *gin.Context, err error) {
	respondWithError(c, http.StatusInternalServerError, ErrMsgAuthenticationError, err)
}

// respondBadRequest rejects malformed input. exposeError=true forwards the
// validation message to the client; keep it false for anything that might
// carry internal detail.
func respondBadRequest(c *gin.Context, err error, exposeError bool) {
	if exposeError && err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	respondWithError(c, http.StatusBadRequest, ErrMsgInvalidRequest, err)
}

// respondNotFound reports a missing resource by name, e.g. "Library root".
func respondNotFound(c *gin.Context, resource string) {
	c.JSON(http.StatusNotFound, gin.H{"error": resource + " not found"})
}

// respondServiceUnavailable reports an optional service that is not wired,
// such as the notifier when notifications are disabled.
func respondServiceUnavailable(c *gin.Context, service string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{"error": service + " not available"})
}
