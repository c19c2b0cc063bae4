package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/models"
)

// AccountRepository covers patient_accounts and the signup verification function.
type AccountRepository struct {
	DB *gorm.DB
}

var (
	_ backend.AccountLinker   = (*AccountRepository)(nil)
	_ backend.PatientVerifier = (*AccountRepository)(nil)
)

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{DB: db}
}

// VerifyPatientForSignup calls the verify_patient_for_signup SQL function,
// which returns a JSON object on match and NULL or an exception otherwise.
func (r *AccountRepository) VerifyPatientForSignup(ctx context.Context, nationalID, dob, phone string) (*backend.VerifiedPatient, error) {
	var raw []byte
	row := r.DB.WithContext(ctx).
		Raw("SELECT verify_patient_for_signup(?, ?, ?) AS result", nationalID, dob, phone).
		Row()
	if err := row.Scan(&raw); err != nil {
		return nil, wrap("verify_patient_for_signup", err)
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var patient backend.VerifiedPatient
	if err := json.Unmarshal(raw, &patient); err != nil {
		return nil, fmt.Errorf("verify_patient_for_signup: decode result: %w", err)
	}
	if patient.PatientID == "" {
		return nil, nil
	}
	return &patient, nil
}

func (r *AccountRepository) LinkAccount(ctx context.Context, userID, patientID string) error {
	link := models.PatientAccount{UserID: userID, PatientID: patientID}
	if err := r.DB.WithContext(ctx).Create(&link).Error; err != nil {
		return wrap("failed to link patient account", err)
	}
	return nil
}

func (r *AccountRepository) PatientForUser(ctx context.Context, userID string) (string, error) {
	var link models.PatientAccount
	err := r.DB.WithContext(ctx).Where("user_id = ?", userID).First(&link).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", wrap("failed to look up patient account", err)
	}
	return link.PatientID, nil
}
