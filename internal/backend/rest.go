package backend

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"clinic-portal-server/internal/models"
)

// RESTConfig points the client at a hosted backend project.
type RESTConfig struct {
	URL            string
	AnonKey        string
	ServiceRoleKey string
	Timeout        time.Duration
}

// RESTClient talks to the hosted backend over HTTP: tables and procedures
// under /rest/v1, the auth API under /auth/v1.
type RESTClient struct {
	rest           *resty.Client
	auth           *resty.Client
	anonKey        string
	serviceRoleKey string
	logger         *zap.Logger
}

var (
	_ DiagnosisStore  = (*RESTClient)(nil)
	_ PatientVerifier = (*RESTClient)(nil)
	_ AccountLinker   = (*RESTClient)(nil)
	_ Authenticator   = (*RESTClient)(nil)
)

// NewRESTClient creates the backend client. Requests are never retried.
func NewRESTClient(cfg RESTConfig, logger *zap.Logger) *RESTClient {
	newClient := func(path string) *resty.Client {
		return resty.New().
			SetBaseURL(strings.TrimRight(cfg.URL, "/")+path).
			SetTimeout(cfg.Timeout).
			SetHeader("apikey", cfg.AnonKey).
			SetHeader("Content-Type", "application/json").
			SetHeader("Accept", "application/json")
	}

	return &RESTClient{
		rest:           newClient("/rest/v1"),
		auth:           newClient("/auth/v1"),
		anonKey:        cfg.AnonKey,
		serviceRoleKey: cfg.ServiceRoleKey,
		logger:         logger,
	}
}

// tableRequest runs as the caller when a token is attached to ctx, else as anon.
func (c *RESTClient) tableRequest(ctx context.Context) *resty.Request {
	token := c.anonKey
	if t, ok := AccessToken(ctx); ok {
		token = t
	}
	return c.rest.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetError(&Error{})
}

// ListDiagnoses implements DiagnosisStore.
func (c *RESTClient) ListDiagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error) {
	var rows []models.Diagnosis
	resp, err := c.tableRequest(ctx).
		SetQueryParams(map[string]string{
			"select":     "*",
			"patient_id": "eq." + patientID,
			"order":      "diagnosis_date.desc",
		}).
		SetResult(&rows).
		Get("/patient_diagnoses")
	if err != nil {
		return nil, fmt.Errorf("failed to list diagnoses: %w", err)
	}
	if resp.IsError() {
		return nil, restError(resp)
	}
	return rows, nil
}

// InsertDiagnosis implements DiagnosisStore.
func (c *RESTClient) InsertDiagnosis(ctx context.Context, in models.NewDiagnosis) (*models.Diagnosis, error) {
	var rows []models.Diagnosis
	resp, err := c.tableRequest(ctx).
		SetHeader("Prefer", "return=representation").
		SetBody(in).
		SetResult(&rows).
		Post("/patient_diagnoses")
	if err != nil {
		return nil, fmt.Errorf("failed to insert diagnosis: %w", err)
	}
	if resp.IsError() {
		return nil, restError(resp)
	}
	if len(rows) != 1 {
		return nil, fmt.Errorf("insert diagnosis: expected 1 row, got %d", len(rows))
	}
	return &rows[0], nil
}

// DeleteDiagnosis implements DiagnosisStore.
func (c *RESTClient) DeleteDiagnosis(ctx context.Context, id string) error {
	resp, err := c.tableRequest(ctx).
		SetQueryParam("id", "eq."+id).
		Delete("/patient_diagnoses")
	if err != nil {
		return fmt.Errorf("failed to delete diagnosis: %w", err)
	}
	if resp.IsError() {
		return restError(resp)
	}
	return nil
}

// VerifyPatientForSignup implements PatientVerifier.
func (c *RESTClient) VerifyPatientForSignup(ctx context.Context, nationalID, dob, phone string) (*VerifiedPatient, error) {
	var patient *VerifiedPatient
	resp, err := c.tableRequest(ctx).
		SetBody(map[string]string{
			"p_national_id": nationalID,
			"p_dob":         dob,
			"p_phone":       phone,
		}).
		SetResult(&patient).
		Post("/rpc/verify_patient_for_signup")
	if err != nil {
		return nil, fmt.Errorf("failed to call verify_patient_for_signup: %w", err)
	}
	if resp.IsError() {
		return nil, restError(resp)
	}
	if patient == nil || patient.PatientID == "" {
		return nil, nil
	}
	return patient, nil
}

// LinkAccount implements AccountLinker.
func (c *RESTClient) LinkAccount(ctx context.Context, userID, patientID string) error {
	resp, err := c.tableRequest(ctx).
		SetHeader("Prefer", "return=minimal").
		SetBody(map[string]string{
			"user_id":    userID,
			"patient_id": patientID,
		}).
		Post("/patient_accounts")
	if err != nil {
		return fmt.Errorf("failed to link patient account: %w", err)
	}
	if resp.IsError() {
		return restError(resp)
	}
	return nil
}

// PatientForUser implements AccountLinker.
func (c *RESTClient) PatientForUser(ctx context.Context, userID string) (string, error) {
	var rows []struct {
		PatientID string `json:"patient_id"`
	}
	resp, err := c.tableRequest(ctx).
		SetQueryParams(map[string]string{
			"select":  "patient_id",
			"user_id": "eq." + userID,
			"limit":   "1",
		}).
		SetResult(&rows).
		Get("/patient_accounts")
	if err != nil {
		return "", fmt.Errorf("failed to look up patient account: %w", err)
	}
	if resp.IsError() {
		return "", restError(resp)
	}
	if len(rows) == 0 {
		return "", nil
	}
	return rows[0].PatientID, nil
}

// restError turns a failed table response into an *Error carrying the remote message.
func restError(resp *resty.Response) error {
	be, _ := resp.Error().(*Error)
	if be == nil {
		be = &Error{}
	}
	be.Status = resp.StatusCode()
	if be.Message == "" {
		be.Message = strings.TrimSpace(resp.String())
	}
	if be.Message == "" {
		be.Message = http.StatusText(resp.StatusCode())
	}
	return be
}
