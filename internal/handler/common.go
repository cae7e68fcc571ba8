package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"hazeltrade/internal/model"
	"hazeltrade/internal/service"
	"hazeltrade/pkg/response"
)

// currentUserID pulls the authenticated user id set by the auth middleware
func currentUserID(c *gin.Context) (uuid.UUID, bool) {
	raw, ok := c.Get("userID")
	if !ok {
		return uuid.Nil, false
	}
	str, ok := raw.(string)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(str)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// loadUser resolves the full account record for the authenticated request
func loadUser(c *gin.Context, auth service.AuthService) (*model.User, bool) {
	id, ok := currentUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return nil, false
	}
	user, err := auth.GetUser(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Authentication required"))
		return nil, false
	}
	return user, true
}

// respondError maps domain errors onto HTTP statuses. Permission failures
// echo the step's required parties so clients can render who still has to act.
func respondError(c *gin.Context, err error) {
	var permErr *service.PermissionError
	if errors.As(err, &permErr) {
		c.JSON(http.StatusForbidden, response.Response{
			Status:     "error",
			StatusCode: http.StatusForbidden,
			Error:      permErr.Error(),
			Data:       gin.H{"required_parties": permErr.RequiredParties},
		})
		return
	}

	switch {
	case errors.Is(err, service.ErrDealNotFound),
		errors.Is(err, service.ErrStepNotFound),
		errors.Is(err, service.ErrDocumentNotFound),
		errors.Is(err, service.ErrInviteNotFound):
		c.JSON(http.StatusNotFound, response.Error(http.StatusNotFound, err.Error()))
	case errors.Is(err, service.ErrStepCompleted),
		errors.Is(err, service.ErrStepNotCurrent),
		errors.Is(err, service.ErrWorkflowLocked),
		errors.Is(err, service.ErrInviteExpired),
		errors.Is(err, service.ErrInviteAccepted),
		errors.Is(err, service.ErrEmailTaken),
		errors.Is(err, service.ErrFileTooLarge),
		errors.Is(err, service.ErrFileType):
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, err.Error()))
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, err.Error()))
	default:
		c.JSON(http.StatusInternalServerError, response.Error(http.StatusInternalServerError, err.Error()))
	}
}
