package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/TPAIN22/nubian-storefront/internal/app/service"
	"github.com/TPAIN22/nubian-storefront/internal/errors"
	"github.com/TPAIN22/nubian-storefront/internal/middleware"
)

type SessionController struct {
	sessionService service.SessionService
}

func NewSessionController(sessionService service.SessionService) *SessionController {
	return &SessionController{
		sessionService: sessionService,
	}
}

type SetCredentialRequest struct {
	Token string `json:"token" binding:"required"`
}

// SetCredential stores the upstream token of the session
// PUT /api/v1/session/credential
func (ctrl *SessionController) SetCredential(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)
	sessionID, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	var req SetCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid credential request", map[string]interface{}{
			"error": err.Error(),
		})
		errors.RespondWithValidationError(c, map[string]string{
			"token": "is required",
		})
		return
	}

	if err := ctrl.sessionService.SetCredential(c.Request.Context(), sessionID, req.Token); err != nil {
		errors.Respond(c, err, "credential")
		return
	}
	c.Status(http.StatusNoContent)
}

// ClearCredential signs the session out of the upstream
// DELETE /api/v1/session/credential
func (ctrl *SessionController) ClearCredential(c *gin.Context) {
	sessionID, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	if err := ctrl.sessionService.ClearCredential(c.Request.Context(), sessionID); err != nil {
		errors.Respond(c, err, "credential")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetSession reports whether the session holds a credential
// GET /api/v1/session
func (ctrl *SessionController) GetSession(c *gin.Context) {
	sessionID, ok := sessionOrAbort(c)
	if !ok {
		return
	}

	has, err := ctrl.sessionService.HasCredential(c.Request.Context(), sessionID)
	if err != nil {
		errors.Respond(c, err, "session")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session_id":     sessionID,
		"has_credential": has,
	})
}
