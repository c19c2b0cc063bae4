// Package store implements the backend contracts directly on the clinic
// database through gorm.
package store

import (
	"context"

	"gorm.io/gorm"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/models"
)

// DiagnosisRepository is the patient_diagnoses table.
type DiagnosisRepository struct {
	DB *gorm.DB
}

var _ backend.DiagnosisStore = (*DiagnosisRepository)(nil)

func NewDiagnosisRepository(db *gorm.DB) *DiagnosisRepository {
	return &DiagnosisRepository{DB: db}
}

func (r *DiagnosisRepository) ListDiagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error) {
	var rows []models.Diagnosis
	if err := r.DB.WithContext(ctx).
		Where("patient_id = ?", patientID).
		Order("diagnosis_date desc").
		Find(&rows).Error; err != nil {
		return nil, wrap("failed to list diagnoses", err)
	}
	return rows, nil
}

func (r *DiagnosisRepository) InsertDiagnosis(ctx context.Context, in models.NewDiagnosis) (*models.Diagnosis, error) {
	row := models.Diagnosis{
		PatientID:     in.PatientID,
		DiagnosisDate: in.DiagnosisDate,
		ICD10Code:     in.ICD10Code,
		Description:   in.Description,
		DiagnosisType: in.DiagnosisType,
		Notes:         in.Notes,
		CreatedBy:     in.CreatedBy,
	}
	if err := r.DB.WithContext(ctx).Create(&row).Error; err != nil {
		return nil, wrap("failed to insert diagnosis", err)
	}
	return &row, nil
}

func (r *DiagnosisRepository) DeleteDiagnosis(ctx context.Context, id string) error {
	if err := r.DB.WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.Diagnosis{}).Error; err != nil {
		return wrap("failed to delete diagnosis", err)
	}
	return nil
}
