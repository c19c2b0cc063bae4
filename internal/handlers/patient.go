package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/samber/lo"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/diagnoses"
	"clinic-portal-server/internal/middleware"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/utils"
)

// PatientHandler serves the dashboard of a signed-in patient.
type PatientHandler struct {
	Accounts  backend.AccountLinker
	Diagnoses *diagnoses.Service
}

// NewPatientHandler creates a new PatientHandler.
func NewPatientHandler(accounts backend.AccountLinker, diagnosisService *diagnoses.Service) *PatientHandler {
	return &PatientHandler{Accounts: accounts, Diagnoses: diagnosisService}
}

// DashboardDiagnosis is one line of the patient's diagnosis history.
type DashboardDiagnosis struct {
	ID            string      `json:"id"`
	DiagnosisDate models.Date `json:"diagnosis_date"`
	ICD10Code     string      `json:"icd10_code"`
	Description   string      `json:"description"`
	DiagnosisType string      `json:"diagnosis_type"`
}

// DashboardResponse is the /patient page.
type DashboardResponse struct {
	PatientID string               `json:"patient_id"`
	Diagnoses []DashboardDiagnosis `json:"diagnoses"`
}

// GetDashboard returns the linked patient and their diagnoses.
func (h *PatientHandler) GetDashboard(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User ID not found in token")
		return
	}

	patientID, err := h.Accounts.PatientForUser(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err, nil)
		return
	}
	if patientID == "" {
		utils.NotFound(c, "No patient is linked to this account")
		return
	}

	result, err := h.Diagnoses.List(c.Request.Context(), patientID)
	if err != nil {
		respondError(c, err, nil)
		return
	}

	utils.Success(c, "Dashboard retrieved successfully", DashboardResponse{
		PatientID: patientID,
		Diagnoses: lo.Map(result.Diagnoses, func(d models.Diagnosis, _ int) DashboardDiagnosis {
			return DashboardDiagnosis{
				ID:            d.ID,
				DiagnosisDate: d.DiagnosisDate,
				ICD10Code:     d.ICD10Code,
				Description:   lo.FromPtr(d.Description),
				DiagnosisType: lo.FromPtr(d.DiagnosisType),
			}
		}),
	})
}
