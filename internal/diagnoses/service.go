// Package diagnoses is the data access layer of patient diagnoses: a
// read-through cached list per patient, and create/delete operations that
// invalidate that list and notify the user.
package diagnoses

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/cache"
	"clinic-portal-server/internal/events"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/notify"
	"clinic-portal-server/internal/utils"
)

const (
	cacheKeyPrefix      = "patient-diagnoses:"
	generationKeyPrefix = "patient-diagnoses-gen:"
	anonymousCaller     = "anon"
)

// GenerationKey holds a counter that every create or delete for the patient
// bumps. Lists cached under an older generation are never read again.
func GenerationKey(patientID string) string {
	return generationKeyPrefix + patientID
}

// CacheKey is the key of a patient's diagnosis list as seen by one caller at
// one generation. Row visibility is decided by the backend per access token,
// so a list is only served back to the token that fetched it.
func CacheKey(patientID string, generation int64, caller string) string {
	return fmt.Sprintf("%s%s:g%d:%s", cacheKeyPrefix, patientID, generation, caller)
}

// CallerScope identifies the caller of ctx without keeping its token.
func CallerScope(ctx context.Context) string {
	token, ok := backend.AccessToken(ctx)
	if !ok {
		return anonymousCaller
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

// CreateInput is a new diagnosis as submitted by a user.
type CreateInput struct {
	PatientID     string       `json:"patient_id" validate:"required" msg:"กรุณาระบุผู้ป่วย"`
	ICD10Code     string       `json:"icd10_code" validate:"required" msg:"กรุณาระบุรหัส ICD-10"`
	DiagnosisDate *models.Date `json:"diagnosis_date,omitempty"`
	Description   *string      `json:"description,omitempty"`
	DiagnosisType *string      `json:"diagnosis_type,omitempty"`
	Notes         *string      `json:"notes,omitempty"`
	CreatedBy     *string      `json:"created_by,omitempty"`
}

// ListResult is the state of a patient's diagnosis list.
type ListResult struct {
	// Enabled is false when no patient was given; nothing was fetched.
	Enabled   bool               `json:"enabled"`
	Cached    bool               `json:"cached"`
	Diagnoses []models.Diagnosis `json:"diagnoses"`
}

// DeleteResult identifies a deleted diagnosis.
type DeleteResult struct {
	ID        string `json:"id"`
	PatientID string `json:"patient_id"`
}

type Service struct {
	store     backend.DiagnosisStore
	kv        cache.KV
	ttl       time.Duration
	notifier  notify.Notifier
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func NewService(store backend.DiagnosisStore, kv cache.KV, ttl time.Duration, notifier notify.Notifier, publisher events.Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		kv:        kv,
		ttl:       ttl,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// List returns the patient's diagnoses ordered by diagnosis date, newest first.
// Remote errors are returned unchanged.
func (s *Service) List(ctx context.Context, patientID string) (*ListResult, error) {
	if patientID == "" {
		return &ListResult{Enabled: false}, nil
	}

	gen, err := s.generation(ctx, patientID)
	if err != nil {
		s.logger.Warn("diagnoses cache generation unavailable, bypassing cache",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
		return s.fetch(ctx, patientID)
	}

	// The fill below lands under the generation read here. A create or delete
	// racing with the fetch bumps the generation and orphans that entry.
	key := CacheKey(patientID, gen, CallerScope(ctx))
	if raw, err := s.kv.Get(ctx, key); err == nil {
		var rows []models.Diagnosis
		if err := json.Unmarshal([]byte(raw), &rows); err == nil {
			return &ListResult{Enabled: true, Cached: true, Diagnoses: rows}, nil
		}
		s.logger.Warn("dropping undecodable cached diagnoses", zap.String("key", key))
		_ = s.kv.Del(ctx, key)
	} else if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("diagnoses cache read failed", zap.String("key", key), zap.Error(err))
	}

	res, err := s.fetch(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if payload, err := json.Marshal(res.Diagnoses); err == nil {
		if err := s.kv.Set(ctx, key, string(payload), s.ttl); err != nil {
			s.logger.Warn("diagnoses cache write failed", zap.String("key", key), zap.Error(err))
		}
	}

	return res, nil
}

func (s *Service) fetch(ctx context.Context, patientID string) (*ListResult, error) {
	rows, err := s.store.ListDiagnoses(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []models.Diagnosis{}
	}
	return &ListResult{Enabled: true, Diagnoses: rows}, nil
}

// generation is the patient's current cache generation; 0 before any change.
func (s *Service) generation(ctx context.Context, patientID string) (int64, error) {
	raw, err := s.kv.Get(ctx, GenerationKey(patientID))
	if errors.Is(err, cache.ErrMiss) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

// Create validates and inserts a diagnosis.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.Diagnosis, error) {
	in.PatientID = strings.TrimSpace(in.PatientID)
	in.ICD10Code = strings.TrimSpace(in.ICD10Code)
	if err := utils.Validate(&in); err != nil {
		notify.Error(ctx, s.notifier, notify.MsgGenericError, backend.Message(err))
		return nil, err
	}

	payload := models.NewDiagnosis{
		PatientID:     in.PatientID,
		ICD10Code:     in.ICD10Code,
		Description:   in.Description,
		DiagnosisType: in.DiagnosisType,
		Notes:         in.Notes,
		CreatedBy:     in.CreatedBy,
	}
	if in.DiagnosisDate != nil && !in.DiagnosisDate.IsZero() {
		payload.DiagnosisDate = *in.DiagnosisDate
	} else {
		payload.DiagnosisDate = models.NewDate(s.now())
	}

	row, err := s.store.InsertDiagnosis(ctx, payload)
	if err != nil {
		notify.Error(ctx, s.notifier, notify.MsgGenericError, backend.Message(err))
		return nil, err
	}

	s.invalidate(ctx, row.PatientID)
	notify.Info(ctx, s.notifier, notify.MsgDiagnosisCreated, notify.MsgDiagnosisCreatedDesc)
	events.PublishAsync(s.publisher, s.logger, events.Event{
		Type:       events.TypeDiagnosisCreated,
		Key:        row.PatientID,
		OccurredAt: s.now(),
		Attributes: map[string]string{
			"diagnosis_id": row.ID,
			"icd10_code":   row.ICD10Code,
		},
	})
	return row, nil
}

// Delete removes a diagnosis of the given patient.
func (s *Service) Delete(ctx context.Context, id, patientID string) (*DeleteResult, error) {
	if err := s.store.DeleteDiagnosis(ctx, id); err != nil {
		notify.Error(ctx, s.notifier, notify.MsgGenericError, backend.Message(err))
		return nil, err
	}

	s.invalidate(ctx, patientID)
	notify.Info(ctx, s.notifier, notify.MsgDiagnosisDeleted, notify.MsgDiagnosisDeletedDesc)
	events.PublishAsync(s.publisher, s.logger, events.Event{
		Type:       events.TypeDiagnosisDeleted,
		Key:        patientID,
		OccurredAt: s.now(),
		Attributes: map[string]string{"diagnosis_id": id},
	})
	return &DeleteResult{ID: id, PatientID: patientID}, nil
}

// invalidate moves the patient to a new cache generation, which drops the
// cached lists of every caller at once.
func (s *Service) invalidate(ctx context.Context, patientID string) {
	if _, err := s.kv.Incr(ctx, GenerationKey(patientID)); err != nil {
		s.logger.Error("failed to invalidate diagnoses cache",
			zap.String("patient_id", patientID),
			zap.Error(err),
		)
	}
}
