package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pinify/pinify-backend/internal/services"
	"github.com/pinify/pinify-backend/internal/session"
	"github.com/pinify/pinify-backend/internal/utils"
	"github.com/pinify/pinify-backend/pkg/logger"
)

// sendServiceError maps a service error onto the response envelope.
func sendServiceError(c *gin.Context, err error) {
	msg := services.MessageOf(err)

	switch services.KindOf(err) {
	case services.KindValidation:
		utils.SendValidationError(c, msg)
	case services.KindNotFound:
		utils.SendNotFound(c, msg)
	case services.KindForbidden:
		utils.SendForbidden(c, msg)
	case services.KindUnauthorized:
		utils.SendUnauthorized(c, msg)
	case services.KindUnavailable:
		utils.SendError(c, http.StatusServiceUnavailable, msg, nil)
	default:
		logger.WithFields(logger.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).WithError(err).Error(msg)
		utils.SendError(c, http.StatusInternalServerError, msg, nil)
	}
}

// currentSession writes a 401 when the request has no live session.
func currentSession(c *gin.Context) (*session.Session, bool) {
	s, ok := session.From(c)
	if !ok {
		utils.SendUnauthorized(c, "Authentication required")
		return nil, false
	}
	return s, true
}
