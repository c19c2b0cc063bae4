package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"clinic-portal-server/internal/diagnoses"
	"clinic-portal-server/internal/middleware"
	"clinic-portal-server/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// DiagnosisHandler handles patient diagnosis requests.
type DiagnosisHandler struct {
	Service *diagnoses.Service
}

// NewDiagnosisHandler creates a new DiagnosisHandler.
func NewDiagnosisHandler(service *diagnoses.Service) *DiagnosisHandler {
	return &DiagnosisHandler{Service: service}
}

// ListDiagnoses returns the diagnoses of ?patient_id=, newest first. Without a
// patient the list is disabled and nothing is fetched.
func (h *DiagnosisHandler) ListDiagnoses(c *gin.Context) {
	result, err := h.Service.List(c.Request.Context(), c.Query("patient_id"))
	if err != nil {
		respondError(c, err, nil)
		return
	}
	utils.Success(c, "Diagnoses retrieved successfully", result)
}

// CreateDiagnosis records a new diagnosis. created_by defaults to the caller.
func (h *DiagnosisHandler) CreateDiagnosis(c *gin.Context) {
	var req diagnoses.CreateInput
	if !utils.BindJSON(c, &req) {
		return
	}

	if req.CreatedBy == nil {
		if userID, ok := middleware.GetUserIDFromContext(c); ok {
			req.CreatedBy = &userID
		}
	}

	row, err := h.Service.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	utils.Created(c, "Diagnosis created successfully", row)
}

// DeleteDiagnosis deletes a diagnosis. ?patient_id= names the owning patient
// whose cached list is invalidated.
func (h *DiagnosisHandler) DeleteDiagnosis(c *gin.Context) {
	patientID := c.Query("patient_id")
	if patientID == "" {
		utils.BadRequest(c, "patient_id query parameter is required")
		return
	}

	result, err := h.Service.Delete(c.Request.Context(), c.Param("id"), patientID)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	utils.Success(c, "Diagnosis deleted successfully", result)
}

// ExportDiagnoses sends the patient's diagnoses as an xlsx workbook.
func (h *DiagnosisHandler) ExportDiagnoses(c *gin.Context) {
	patientID := c.Param("patientId")
	result, err := h.Service.List(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	body, err := diagnoses.Export(result.Diagnoses)
	if err != nil {
		utils.InternalServerError(c, "Failed to build workbook: "+err.Error())
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="diagnoses-%s.xlsx"`, patientID))
	c.Data(http.StatusOK, xlsxContentType, body)
}
