package handlers

import (
	"github.com/gin-gonic/gin"

	"clinic-portal-server/internal/signup"
	"clinic-portal-server/internal/utils"
)

// SignupHandler exposes the patient signup flow.
type SignupHandler struct {
	Service *signup.Service
}

// NewSignupHandler creates a new SignupHandler.
func NewSignupHandler(service *signup.Service) *SignupHandler {
	return &SignupHandler{Service: service}
}

// snapshot is nil for a nil flow so error responses omit data.
func snapshot(f *signup.Flow) interface{} {
	if f == nil {
		return nil
	}
	return f.Snapshot()
}

// StartSignup opens a flow in the verification step.
func (h *SignupHandler) StartSignup(c *gin.Context) {
	flow, err := h.Service.Start(c.Request.Context())
	if err != nil {
		respondError(c, err, nil)
		return
	}
	utils.Created(c, "Signup started", flow.Snapshot())
}

// GetSignup returns the current state of a flow.
func (h *SignupHandler) GetSignup(c *gin.Context) {
	flow, err := h.Service.Get(c.Request.Context(), c.Param("flowId"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	utils.Success(c, "Signup retrieved", flow.Snapshot())
}

// Verify submits the identity verification form.
func (h *SignupHandler) Verify(c *gin.Context) {
	var req signup.VerificationForm
	if !utils.BindJSON(c, &req) {
		return
	}

	flow, err := h.Service.Verify(c.Request.Context(), c.Param("flowId"), req)
	if err != nil {
		respondError(c, err, snapshot(flow))
		return
	}
	utils.Success(c, "Patient verified", flow.Snapshot())
}

// SubmitAccount submits the account creation form.
func (h *SignupHandler) SubmitAccount(c *gin.Context) {
	var req signup.AccountForm
	if !utils.BindJSON(c, &req) {
		return
	}

	flow, err := h.Service.SubmitAccount(c.Request.Context(), c.Param("flowId"), req)
	if err != nil {
		respondError(c, err, snapshot(flow))
		return
	}
	utils.Success(c, "Account submitted", flow.Snapshot())
}

// Back goes one step back; from verification it leaves the signup.
func (h *SignupHandler) Back(c *gin.Context) {
	flow, err := h.Service.Back(c.Request.Context(), c.Param("flowId"))
	if err != nil {
		respondError(c, err, snapshot(flow))
		return
	}
	utils.Success(c, "Signup updated", flow.Snapshot())
}
