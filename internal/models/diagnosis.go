package models

import (
	"time"
)

// Diagnosis is a row of patient_diagnoses.
type Diagnosis struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PatientID     string    `gorm:"size:36;index;not null" json:"patient_id"`
	DiagnosisDate Date      `gorm:"index" json:"diagnosis_date"`
	ICD10Code     string    `gorm:"column:icd10_code;size:16;not null" json:"icd10_code"`
	Description   *string   `gorm:"type:text" json:"description"`
	DiagnosisType *string   `gorm:"size:50" json:"diagnosis_type"`
	Notes         *string   `gorm:"type:text" json:"notes"`
	CreatedAt     time.Time `json:"created_at"`
	CreatedBy     *string   `gorm:"size:36" json:"created_by"`
}

func (Diagnosis) TableName() string {
	return "patient_diagnoses"
}

// NewDiagnosis is the insert payload of a diagnosis. Zero-valued optional
// fields are left out so the database applies its defaults.
type NewDiagnosis struct {
	PatientID     string  `json:"patient_id"`
	DiagnosisDate Date    `json:"diagnosis_date"`
	ICD10Code     string  `json:"icd10_code"`
	Description   *string `json:"description,omitempty"`
	DiagnosisType *string `json:"diagnosis_type,omitempty"`
	Notes         *string `json:"notes,omitempty"`
	CreatedBy     *string `json:"created_by,omitempty"`
}

// PatientAccount links an auth identity to a clinic patient record.
type PatientAccount struct {
	BaseModel
	UserID    string `gorm:"size:36;uniqueIndex;not null" json:"user_id"`
	PatientID string `gorm:"size:36;index;not null" json:"patient_id"`
}

func (PatientAccount) TableName() string {
	return "patient_accounts"
}
