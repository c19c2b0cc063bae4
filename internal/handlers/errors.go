package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/signup"
	"clinic-portal-server/internal/utils"
)

// respondError maps service errors to the response envelope. data, when not
// nil, is sent along so the client keeps the current state.
func respondError(c *gin.Context, err error, data interface{}) {
	if ve, ok := utils.AsValidationError(err); ok {
		utils.ErrorWithData(c, http.StatusBadRequest, ve.Message, data)
		return
	}
	if be, ok := backend.AsError(err); ok {
		status := be.Status
		if status < 400 || status >= 500 {
			status = http.StatusBadGateway
		}
		utils.ErrorWithData(c, status, be.Message, data)
		return
	}

	switch {
	case errors.Is(err, signup.ErrFlowNotFound):
		utils.NotFound(c, err.Error())
	case errors.Is(err, signup.ErrBusy), errors.Is(err, signup.ErrInvalidTransition):
		utils.ErrorWithData(c, http.StatusConflict, err.Error(), data)
	case errors.Is(err, signup.ErrNoMatch):
		utils.ErrorWithData(c, http.StatusUnprocessableEntity, err.Error(), data)
	default:
		_ = c.Error(err)
		utils.ErrorWithData(c, http.StatusInternalServerError, err.Error(), data)
	}
}
