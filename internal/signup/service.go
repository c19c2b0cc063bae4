package signup

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/events"
	"clinic-portal-server/internal/notify"
	"clinic-portal-server/internal/utils"
)

// VerificationForm is step one of the signup.
type VerificationForm struct {
	NationalID string `json:"national_id" validate:"len=13" msg:"กรุณากรอกเลขบัตรประชาชน 13 หลัก"`
	DOB        string `json:"dob" validate:"required,datetime=2006-01-02" msg:"กรุณาเลือกวันเกิด"`
	Phone      string `json:"phone" validate:"required" msg:"กรุณากรอกเบอร์โทรศัพท์"`
}

func (f *VerificationForm) normalize() {
	f.NationalID = strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, f.NationalID)
	f.DOB = strings.TrimSpace(f.DOB)
	f.Phone = strings.TrimSpace(f.Phone)
}

// AccountForm is step two of the signup.
type AccountForm struct {
	Email           string `json:"email" validate:"required" msg:"กรุณากรอกอีเมล"`
	Password        string `json:"password" validate:"min=6" msg:"รหัสผ่านต้องมีอย่างน้อย 6 ตัวอักษร"`
	ConfirmPassword string `json:"confirm_password" validate:"eqfield=Password" msg:"รหัสผ่านไม่ตรงกัน"`
}

// PollConfig bounds the wait for the session of a new account.
type PollConfig struct {
	Initial  time.Duration
	Max      time.Duration
	Attempts int
}

// Deps are the remote services a signup talks to.
type Deps struct {
	Verifier backend.PatientVerifier
	Auth     backend.Authenticator
	Linker   backend.AccountLinker
}

type Service struct {
	flows     *FlowStore
	deps      Deps
	poll      PollConfig
	notifier  notify.Notifier
	publisher events.Publisher
	logger    *zap.Logger

	now   func() time.Time
	newID func() string
	sleep func(ctx context.Context, d time.Duration) error
}

func NewService(flows *FlowStore, deps Deps, poll PollConfig, notifier notify.Notifier, publisher events.Publisher, logger *zap.Logger) *Service {
	if poll.Attempts < 1 {
		poll.Attempts = 1
	}
	return &Service{
		flows:     flows,
		deps:      deps,
		poll:      poll,
		notifier:  notifier,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		sleep:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start opens a new flow in the verification step.
func (s *Service) Start(ctx context.Context) (*Flow, error) {
	f := &Flow{ID: s.newID(), State: Verifying{}, UpdatedAt: s.now()}
	if err := s.flows.Save(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Service) Get(ctx context.Context, id string) (*Flow, error) {
	return s.flows.Load(ctx, id)
}

// acquire locks the flow and loads it. The returned flow is nil on error.
func (s *Service) acquire(ctx context.Context, id string) (*Flow, func(), error) {
	// 404 takes precedence over 409 for unknown ids
	if _, err := s.flows.Load(ctx, id); err != nil {
		return nil, nil, err
	}
	unlock, err := s.flows.Lock(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	f, err := s.flows.Load(ctx, id)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return f, unlock, nil
}

func (s *Service) transition(ctx context.Context, f *Flow, next State) error {
	f.State = next
	f.UpdatedAt = s.now()
	return s.flows.Save(ctx, f)
}

// Verify checks the patient's identity. On a match the flow moves to account
// creation. Any failure leaves the flow unchanged; the flow is returned
// alongside the error whenever it could be loaded.
func (s *Service) Verify(ctx context.Context, id string, form VerificationForm) (*Flow, error) {
	f, unlock, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, ok := f.State.(Verifying)
	if !ok {
		return f, ErrInvalidTransition
	}

	form.normalize()
	if err := utils.Validate(&form); err != nil {
		notify.Error(ctx, s.notifier, err.Error(), "")
		return f, err
	}

	patient, err := s.deps.Verifier.VerifyPatientForSignup(ctx, form.NationalID, form.DOB, form.Phone)
	if err != nil {
		if be, ok := backend.AsError(err); ok {
			msg := be.Message
			if msg == "" {
				msg = notify.MsgVerifyFailedDefault
			}
			notify.Error(ctx, s.notifier, notify.MsgVerifyFailed, msg)
			return f, err
		}
		s.logger.Error("patient verification failed", zap.String("flow_id", id), zap.Error(err))
		notify.Error(ctx, s.notifier, notify.MsgGenericError, err.Error())
		return f, err
	}
	if patient == nil {
		notify.Error(ctx, s.notifier, notify.MsgVerifyFailed, notify.MsgVerifyFailedDefault)
		return f, ErrNoMatch
	}

	if err := s.transition(ctx, f, cur.verified(*patient)); err != nil {
		return nil, err
	}
	notify.Info(ctx, s.notifier, notify.MsgPatientFound, "")
	return f, nil
}

// SubmitAccount creates the auth account of the verified patient, waits for
// its session and links it to the patient. Account creation, session lookup
// and link insertion run strictly in that order and stop at the first failure.
func (s *Service) SubmitAccount(ctx context.Context, id string, form AccountForm) (*Flow, error) {
	f, unlock, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	cur, ok := f.State.(AwaitingAccount)
	if !ok {
		return f, ErrInvalidTransition
	}

	form.Email = strings.TrimSpace(form.Email)
	if err := utils.Validate(&form); err != nil {
		notify.Error(ctx, s.notifier, err.Error(), "")
		return f, err
	}

	user, err := s.deps.Auth.SignUp(ctx, backend.SignUpRequest{
		Email:       form.Email,
		Password:    form.Password,
		DisplayName: cur.Patient.FullName(),
	})
	if err != nil {
		notify.Error(ctx, s.notifier, notify.MsgSignUpFailed, backend.Message(err))
		return f, err
	}

	session, err := s.waitForSession(ctx, form.Email, form.Password)
	if err != nil {
		s.logger.Error("session lookup after signup failed", zap.String("flow_id", id), zap.Error(err))
		// the account is unlinked; removing it lets the same email retry
		if user != nil && user.ID != "" {
			s.compensate(ctx, user.ID)
		}
		notify.Error(ctx, s.notifier, notify.MsgGenericError, backend.Message(err))
		return f, err
	}
	if session == nil {
		s.logger.Info("no session after signup, sending user to login", zap.String("flow_id", id))
		notify.Error(ctx, s.notifier, notify.MsgSignInToContinue, "")
		if err := s.transition(ctx, f, cur.finish(RedirectLogin)); err != nil {
			return nil, err
		}
		return f, nil
	}

	userID := session.User.ID
	linkCtx := backend.WithAccessToken(ctx, session.AccessToken)
	if err := s.deps.Linker.LinkAccount(linkCtx, userID, cur.Patient.PatientID); err != nil {
		s.logger.Error("failed to link patient account",
			zap.String("flow_id", id),
			zap.String("user_id", userID),
			zap.String("patient_id", cur.Patient.PatientID),
			zap.Error(err),
		)
		s.compensate(ctx, userID)
		notify.Error(ctx, s.notifier, notify.MsgLinkFailed, "")
		return f, err
	}

	if err := s.transition(ctx, f, cur.finish(RedirectDashboard)); err != nil {
		return nil, err
	}
	notify.Info(ctx, s.notifier, notify.MsgSignUpSucceeded, "")
	events.PublishAsync(s.publisher, s.logger, events.Event{
		Type:       events.TypePatientAccountLinked,
		Key:        cur.Patient.PatientID,
		OccurredAt: s.now(),
		Attributes: map[string]string{"user_id": userID},
	})
	return f, nil
}

// waitForSession polls the current session with exponential backoff. It
// returns nil, nil when no session appeared within the configured attempts.
func (s *Service) waitForSession(ctx context.Context, email, password string) (*backend.Session, error) {
	delay := s.poll.Initial
	for attempt := 1; attempt <= s.poll.Attempts; attempt++ {
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
		session, err := s.deps.Auth.CurrentSession(ctx, email, password)
		if err != nil {
			return nil, err
		}
		if session != nil {
			return session, nil
		}
		s.logger.Debug("session not active yet", zap.Int("attempt", attempt), zap.Duration("delay", delay))
		delay *= 2
		if s.poll.Max > 0 && delay > s.poll.Max {
			delay = s.poll.Max
		}
	}
	return nil, nil
}

// compensate removes an auth account that could not be linked to its patient.
func (s *Service) compensate(ctx context.Context, userID string) {
	ctx = context.WithoutCancel(ctx)
	if err := s.deps.Auth.DeleteUser(ctx, userID); err != nil {
		s.logger.Error("failed to delete unlinked account", zap.String("user_id", userID), zap.Error(err))
		return
	}
	s.logger.Warn("deleted unlinked account", zap.String("user_id", userID))
}

// Back returns from account creation to verification and keeps the verified
// patient. Going back from verification leaves the signup: the flow is
// discarded and the client is sent to the login page.
func (s *Service) Back(ctx context.Context, id string) (*Flow, error) {
	f, unlock, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer unlock()

	switch cur := f.State.(type) {
	case AwaitingAccount:
		if err := s.transition(ctx, f, cur.back()); err != nil {
			return nil, err
		}
		return f, nil
	case Verifying:
		if err := s.flows.Delete(ctx, id); err != nil {
			s.logger.Warn("failed to discard signup flow", zap.String("flow_id", id), zap.Error(err))
		}
		f.State = cur.leave()
		f.UpdatedAt = s.now()
		return f, nil
	default:
		return f, ErrInvalidTransition
	}
}
