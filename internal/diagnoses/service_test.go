package diagnoses

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/cache"
	"clinic-portal-server/internal/events"
	"clinic-portal-server/internal/models"
	"clinic-portal-server/internal/notify"
	"clinic-portal-server/internal/utils"
)

// fakeStore is an in-memory patient_diagnoses table.
type fakeStore struct {
	mu        sync.Mutex
	rows      []models.Diagnosis
	calls     int
	insertErr error
	deleteErr error
	seq       int
}

func (f *fakeStore) ListDiagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++

	var out []models.Diagnosis
	for _, r := range f.rows {
		if r.PatientID == patientID {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DiagnosisDate.After(out[j].DiagnosisDate.Time)
	})
	return out, nil
}

func (f *fakeStore) InsertDiagnosis(ctx context.Context, in models.NewDiagnosis) (*models.Diagnosis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.insertErr != nil {
		return nil, f.insertErr
	}
	f.seq++
	row := models.Diagnosis{
		ID:            "d" + string(rune('0'+f.seq)),
		PatientID:     in.PatientID,
		DiagnosisDate: in.DiagnosisDate,
		ICD10Code:     in.ICD10Code,
		Description:   in.Description,
		CreatedAt:     time.Now(),
	}
	f.rows = append(f.rows, row)
	return &row, nil
}

func (f *fakeStore) DeleteDiagnosis(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	for i, r := range f.rows {
		if r.ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			break
		}
	}
	return nil
}

func mustDate(t *testing.T, s string) models.Date {
	t.Helper()
	d, err := models.ParseDate(s)
	require.NoError(t, err)
	return d
}

func newTestService(t *testing.T, store backend.DiagnosisStore) (*Service, *cache.MemoryKV, *notify.Recorder) {
	t.Helper()
	kv := cache.NewMemoryKV()
	rec := notify.NewRecorder()
	svc := NewService(store, kv, time.Minute, rec, events.Nop{}, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return svc, kv, rec
}

func TestList_EmptyPatientIsDisabled(t *testing.T) {
	store := &fakeStore{}
	svc, _, _ := newTestService(t, store)

	res, err := svc.List(context.Background(), "")
	require.NoError(t, err)
	assert.False(t, res.Enabled)
	assert.Zero(t, store.calls)
}

func TestList_OnlyPatientRowsNewestFirst(t *testing.T) {
	store := &fakeStore{rows: []models.Diagnosis{
		{ID: "a", PatientID: "p1", DiagnosisDate: mustDate(t, "2023-01-01"), ICD10Code: "A00"},
		{ID: "b", PatientID: "p2", DiagnosisDate: mustDate(t, "2024-01-01"), ICD10Code: "B00"},
		{ID: "c", PatientID: "p1", DiagnosisDate: mustDate(t, "2024-02-01"), ICD10Code: "C00"},
		{ID: "d", PatientID: "p1", DiagnosisDate: mustDate(t, "2023-06-01"), ICD10Code: "D00"},
	}}
	svc, _, _ := newTestService(t, store)

	res, err := svc.List(context.Background(), "p1")
	require.NoError(t, err)
	require.True(t, res.Enabled)
	require.Len(t, res.Diagnoses, 3)

	for i, d := range res.Diagnoses {
		assert.Equal(t, "p1", d.PatientID)
		if i > 0 {
			assert.False(t, d.DiagnosisDate.After(res.Diagnoses[i-1].DiagnosisDate.Time), "dates must be non-increasing")
		}
	}
}

func TestList_ServesFromCacheUntilInvalidated(t *testing.T) {
	store := &fakeStore{rows: []models.Diagnosis{
		{ID: "a", PatientID: "p1", DiagnosisDate: mustDate(t, "2023-01-01"), ICD10Code: "A00"},
	}}
	svc, kv, _ := newTestService(t, store)
	ctx := context.Background()

	first, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, 1, store.calls)
	assert.Equal(t, "2023-01-01", second.Diagnoses[0].DiagnosisDate.String())

	_, err = svc.Create(ctx, CreateInput{PatientID: "p1", ICD10Code: "I10"})
	require.NoError(t, err)

	gen, err := kv.Get(ctx, GenerationKey("p1"))
	require.NoError(t, err)
	assert.Equal(t, "1", gen)

	third, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.Len(t, third.Diagnoses, 2)
}

// rowSecurityStore only shows a patient's rows to that patient's token, the
// way the hosted backend's row level security does.
type rowSecurityStore struct {
	*fakeStore
	owners map[string]string
}

func (r rowSecurityStore) ListDiagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error) {
	token, _ := backend.AccessToken(ctx)
	if r.owners[token] != patientID {
		return []models.Diagnosis{}, nil
	}
	return r.fakeStore.ListDiagnoses(ctx, patientID)
}

func TestList_CacheIsScopedToCaller(t *testing.T) {
	store := rowSecurityStore{
		fakeStore: &fakeStore{rows: []models.Diagnosis{
			{ID: "a", PatientID: "p1", DiagnosisDate: mustDate(t, "2023-01-01"), ICD10Code: "A00"},
		}},
		owners: map[string]string{"token-of-p1": "p1", "token-of-p2": "p2"},
	}
	svc, _, _ := newTestService(t, store)
	asP1 := backend.WithAccessToken(context.Background(), "token-of-p1")
	asP2 := backend.WithAccessToken(context.Background(), "token-of-p2")

	own, err := svc.List(asP1, "p1")
	require.NoError(t, err)
	require.Len(t, own.Diagnoses, 1)

	other, err := svc.List(asP2, "p1")
	require.NoError(t, err)
	assert.False(t, other.Cached)
	assert.Empty(t, other.Diagnoses)

	anon, err := svc.List(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, anon.Cached)
	assert.Empty(t, anon.Diagnoses)

	again, err := svc.List(asP1, "p1")
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Len(t, again.Diagnoses, 1)

	assert.NotEqual(t, CallerScope(asP1), CallerScope(asP2))
	assert.NotContains(t, CallerScope(asP1), "token-of-p1")
}

func TestList_CacheInvalidatedForEveryCaller(t *testing.T) {
	store := &fakeStore{rows: []models.Diagnosis{
		{ID: "a", PatientID: "p1", DiagnosisDate: mustDate(t, "2023-01-01"), ICD10Code: "A00"},
	}}
	svc, _, _ := newTestService(t, store)
	patient := backend.WithAccessToken(context.Background(), "patient-token")
	staff := backend.WithAccessToken(context.Background(), "staff-token")

	for _, ctx := range []context.Context{patient, staff} {
		_, err := svc.List(ctx, "p1")
		require.NoError(t, err)
	}

	_, err := svc.Delete(staff, "a", "p1")
	require.NoError(t, err)

	for _, ctx := range []context.Context{patient, staff} {
		res, err := svc.List(ctx, "p1")
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.Empty(t, res.Diagnoses)
	}
}

// slowStore runs during, once, after the rows of the next list were read and
// before they are returned.
type slowStore struct {
	*fakeStore
	during func()
}

func (s *slowStore) ListDiagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error) {
	rows, err := s.fakeStore.ListDiagnoses(ctx, patientID)
	if fn := s.during; fn != nil {
		s.during = nil
		fn()
	}
	return rows, err
}

func TestList_FillRacingDeleteIsNotServed(t *testing.T) {
	store := &slowStore{fakeStore: &fakeStore{rows: []models.Diagnosis{
		{ID: "a", PatientID: "p1", DiagnosisDate: mustDate(t, "2023-01-01"), ICD10Code: "A00"},
	}}}
	svc, _, _ := newTestService(t, store)
	ctx := context.Background()
	store.during = func() {
		_, err := svc.Delete(ctx, "a", "p1")
		require.NoError(t, err)
	}

	inFlight, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, inFlight.Diagnoses, 1, "rows read before the delete")

	next, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, next.Cached)
	assert.Empty(t, next.Diagnoses)
}

func TestList_BrokenGenerationBypassesCache(t *testing.T) {
	store := &fakeStore{rows: []models.Diagnosis{
		{ID: "a", PatientID: "p1", DiagnosisDate: mustDate(t, "2023-01-01"), ICD10Code: "A00"},
	}}
	svc, kv, _ := newTestService(t, store)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, GenerationKey("p1"), "not-a-number", 0))

	for i := 0; i < 2; i++ {
		res, err := svc.List(ctx, "p1")
		require.NoError(t, err)
		assert.False(t, res.Cached)
		assert.Len(t, res.Diagnoses, 1)
	}
	assert.Equal(t, 2, store.calls)
}

func TestList_RemoteErrorPropagates(t *testing.T) {
	remote := &backend.Error{Status: 401, Message: "JWT expired"}
	svc, _, rec := newTestService(t, &fakeStore{})
	svc.store = failingStore{err: remote}

	_, err := svc.List(context.Background(), "p1")
	assert.Same(t, remote, err)
	assert.Empty(t, rec.Toasts())
}

func TestCreate_ValidationFailsBeforeRemoteCall(t *testing.T) {
	cases := map[string]struct {
		in      CreateInput
		message string
	}{
		"missing patient": {CreateInput{ICD10Code: "I10"}, notify.MsgPatientRequired},
		"missing code":    {CreateInput{PatientID: "p1", ICD10Code: "  "}, notify.MsgICD10Required},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			store := &fakeStore{}
			svc, _, rec := newTestService(t, store)

			_, err := svc.Create(context.Background(), tc.in)
			ve, ok := utils.AsValidationError(err)
			require.True(t, ok)
			assert.Equal(t, tc.message, ve.Message)
			assert.Zero(t, store.calls)

			toasts := rec.Toasts()
			require.Len(t, toasts, 1)
			assert.Equal(t, notify.SeverityError, toasts[0].Severity)
		})
	}
}

func TestCreate_SuccessNotifiesAndDefaultsDate(t *testing.T) {
	store := &fakeStore{}
	svc, _, rec := newTestService(t, store)

	row, err := svc.Create(context.Background(), CreateInput{PatientID: "p1", ICD10Code: "I10"})
	require.NoError(t, err)
	assert.Equal(t, "2024-06-01", row.DiagnosisDate.String())

	assert.Equal(t, []notify.Toast{{
		Severity:    notify.SeverityInfo,
		Title:       notify.MsgDiagnosisCreated,
		Description: notify.MsgDiagnosisCreatedDesc,
	}}, rec.Toasts())
}

func TestCreate_RemoteFailureNotifiesWithMessage(t *testing.T) {
	store := &fakeStore{insertErr: &backend.Error{Status: 409, Message: "duplicate key value violates unique constraint"}}
	svc, kv, rec := newTestService(t, store)
	ctx := context.Background()
	require.NoError(t, kv.Set(ctx, CacheKey("p1", 0, CallerScope(ctx)), "[]", time.Minute))

	_, err := svc.Create(ctx, CreateInput{PatientID: "p1", ICD10Code: "I10"})
	require.Error(t, err)

	assert.Equal(t, []notify.Toast{{
		Severity:    notify.SeverityError,
		Title:       notify.MsgGenericError,
		Description: "duplicate key value violates unique constraint",
	}}, rec.Toasts())

	_, err = kv.Get(ctx, GenerationKey("p1"))
	assert.ErrorIs(t, err, cache.ErrMiss, "failed create must not invalidate")
	list, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.True(t, list.Cached)
}

func TestDelete_InvalidatesAndNotifies(t *testing.T) {
	store := &fakeStore{rows: []models.Diagnosis{
		{ID: "a", PatientID: "p1", DiagnosisDate: mustDate(t, "2023-01-01"), ICD10Code: "A00"},
	}}
	svc, kv, rec := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.List(ctx, "p1")
	require.NoError(t, err)

	res, err := svc.Delete(ctx, "a", "p1")
	require.NoError(t, err)
	assert.Equal(t, &DeleteResult{ID: "a", PatientID: "p1"}, res)

	gen, err := kv.Get(ctx, GenerationKey("p1"))
	require.NoError(t, err)
	assert.Equal(t, "1", gen)

	list, err := svc.List(ctx, "p1")
	require.NoError(t, err)
	assert.False(t, list.Cached)
	assert.Empty(t, list.Diagnoses)

	toasts := rec.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.MsgDiagnosisDeleted, toasts[0].Title)
}

func TestDelete_RemoteFailure(t *testing.T) {
	store := &fakeStore{deleteErr: errors.New("connection reset by peer")}
	svc, _, rec := newTestService(t, store)

	_, err := svc.Delete(context.Background(), "a", "p1")
	require.Error(t, err)

	toasts := rec.Toasts()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.SeverityError, toasts[0].Severity)
	assert.Equal(t, "connection reset by peer", toasts[0].Description)
}

type failingStore struct{ err error }

func (f failingStore) ListDiagnoses(context.Context, string) ([]models.Diagnosis, error) {
	return nil, f.err
}

func (f failingStore) InsertDiagnosis(context.Context, models.NewDiagnosis) (*models.Diagnosis, error) {
	return nil, f.err
}

func (f failingStore) DeleteDiagnosis(context.Context, string) error { return f.err }
