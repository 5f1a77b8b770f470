package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gravitational/trace"
	log "github.com/sirupsen/logrus"
)

// abortWithError maps the error taxonomy onto HTTP statuses: validation 400,
// bad credentials 401, permission 403, not found 404, conflict 409.
func abortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case trace.IsBadParameter(err):
		status = http.StatusBadRequest
	case trace.IsCompareFailed(err):
		status = http.StatusUnauthorized
	case trace.IsAccessDenied(err):
		status = http.StatusForbidden
	case trace.IsNotFound(err):
		status = http.StatusNotFound
	case trace.IsAlreadyExists(err):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("internal error")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": trace.UserMessage(err)})
}
