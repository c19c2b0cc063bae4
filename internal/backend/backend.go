// Package backend describes the hosted backend the portal is built on:
// the patient_diagnoses and patient_accounts tables, the
// verify_patient_for_signup procedure and the auth API.
package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"clinic-portal-server/internal/models"
)

// DiagnosisStore is the remote patient_diagnoses table.
type DiagnosisStore interface {
	// ListDiagnoses returns the patient's rows ordered by diagnosis_date descending.
	ListDiagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error)
	InsertDiagnosis(ctx context.Context, in models.NewDiagnosis) (*models.Diagnosis, error)
	DeleteDiagnosis(ctx context.Context, id string) error
}

// PatientVerifier is the verify_patient_for_signup procedure.
type PatientVerifier interface {
	// VerifyPatientForSignup returns nil, nil when the procedure answers with no record.
	VerifyPatientForSignup(ctx context.Context, nationalID, dob, phone string) (*VerifiedPatient, error)
}

// AccountLinker is the remote patient_accounts table.
type AccountLinker interface {
	LinkAccount(ctx context.Context, userID, patientID string) error
	// PatientForUser returns "" when the user has no linked patient.
	PatientForUser(ctx context.Context, userID string) (string, error)
}

// Authenticator is the remote auth API.
type Authenticator interface {
	SignUp(ctx context.Context, req SignUpRequest) (*User, error)
	// CurrentSession returns nil, nil while no session is active for the credentials.
	CurrentSession(ctx context.Context, email, password string) (*Session, error)
	DeleteUser(ctx context.Context, userID string) error
}

// VerifiedPatient is the answer of a successful identity verification.
type VerifiedPatient struct {
	PatientID string `json:"patient_id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// FullName joins first and last name the way the account display name is built.
func (p VerifiedPatient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// SignUpRequest creates an auth identity.
type SignUpRequest struct {
	Email       string
	Password    string
	DisplayName string
}

// User is an auth identity.
type User struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	Role         string                 `json:"role,omitempty"`
	UserMetadata map[string]interface{} `json:"user_metadata,omitempty"`
}

// Session is an active auth session.
type Session struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Error is a rejection returned by the backend. Message is meant for the user.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend error (status %d, code %s)", e.Status, e.Code)
	}
	return e.Message
}

// AsError reports whether err is a backend rejection.
func AsError(err error) (*Error, bool) {
	var be *Error
	if errors.As(err, &be) {
		return be, true
	}
	return nil, false
}

type accessTokenKey struct{}

// WithAccessToken attaches the caller's bearer token to ctx so table calls run as that user.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken returns the token attached by WithAccessToken.
func AccessToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(accessTokenKey{}).(string)
	return token, ok && token != ""
}

// Message is the text shown to the user for err: the remote message of a
// backend rejection, the error text otherwise.
func Message(err error) string {
	if be, ok := AsError(err); ok {
		return be.Message
	}
	return err.Error()
}
