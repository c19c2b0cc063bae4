// Package signup implements the two step patient signup: verify the patient's
// identity against the clinic records, then create an auth account and link
// it to the verified patient.
package signup

import (
	"errors"
	"fmt"
	"time"

	"clinic-portal-server/internal/backend"
	"clinic-portal-server/internal/notify"
)

var (
	ErrFlowNotFound      = errors.New("signup flow not found")
	ErrBusy              = errors.New("signup flow is busy")
	ErrInvalidTransition = errors.New("action not allowed in the current signup step")
	// ErrNoMatch is returned when verification found no patient record.
	ErrNoMatch = errors.New("no matching patient record")
)

// Step names a state of the flow on the wire.
type Step string

const (
	StepVerification    Step = "verification"
	StepAccountCreation Step = "account-creation"
	StepDone            Step = "done"
)

// Redirect targets of a finished flow.
const (
	RedirectLogin     = "/auth"
	RedirectDashboard = "/patient"
)

// State is one of Verifying, AwaitingAccount or Done.
type State interface {
	Step() Step
	state()
}

// Verifying is the identity verification step. Patient is kept when the user
// went back from account creation.
type Verifying struct {
	Patient *backend.VerifiedPatient
}

// AwaitingAccount is the account creation step. It always has a verified patient.
type AwaitingAccount struct {
	Patient backend.VerifiedPatient
}

// Done ends the flow; the client navigates to Redirect.
type Done struct {
	Redirect string
}

func (Verifying) Step() Step       { return StepVerification }
func (AwaitingAccount) Step() Step { return StepAccountCreation }
func (Done) Step() Step            { return StepDone }

func (Verifying) state()       {}
func (AwaitingAccount) state() {}
func (Done) state()            {}

func (Verifying) verified(p backend.VerifiedPatient) AwaitingAccount {
	return AwaitingAccount{Patient: p}
}

func (Verifying) leave() Done {
	return Done{Redirect: RedirectLogin}
}

func (a AwaitingAccount) back() Verifying {
	p := a.Patient
	return Verifying{Patient: &p}
}

func (a AwaitingAccount) finish(redirect string) Done {
	return Done{Redirect: redirect}
}

// Flow is one signup in progress.
type Flow struct {
	ID        string
	State     State
	UpdatedAt time.Time
}

// Patient returns the verified patient of the flow, if any.
func (f *Flow) Patient() *backend.VerifiedPatient {
	switch s := f.State.(type) {
	case Verifying:
		return s.Patient
	case AwaitingAccount:
		p := s.Patient
		return &p
	}
	return nil
}

// Snapshot is the serialized form of a flow, both in the flow store and in
// API responses.
type Snapshot struct {
	ID          string                   `json:"id"`
	Step        Step                     `json:"step"`
	Patient     *backend.VerifiedPatient `json:"patient,omitempty"`
	PatientName string                   `json:"patient_name,omitempty"`
	Redirect    string                   `json:"redirect,omitempty"`
	UpdatedAt   time.Time                `json:"updated_at"`
}

func (f *Flow) Snapshot() Snapshot {
	s := Snapshot{
		ID:        f.ID,
		Step:      f.State.Step(),
		Patient:   f.Patient(),
		UpdatedAt: f.UpdatedAt,
	}
	if s.Patient != nil {
		s.PatientName = notify.MsgPatientNamePrefix + s.Patient.FullName()
	}
	if d, ok := f.State.(Done); ok {
		s.Redirect = d.Redirect
	}
	return s
}

// FromSnapshot rebuilds a flow. A snapshot in account creation without a
// patient is rejected.
func FromSnapshot(s Snapshot) (*Flow, error) {
	f := &Flow{ID: s.ID, UpdatedAt: s.UpdatedAt}
	switch s.Step {
	case StepVerification:
		f.State = Verifying{Patient: s.Patient}
	case StepAccountCreation:
		if s.Patient == nil {
			return nil, fmt.Errorf("flow %s: account creation without a verified patient", s.ID)
		}
		f.State = AwaitingAccount{Patient: *s.Patient}
	case StepDone:
		f.State = Done{Redirect: s.Redirect}
	default:
		return nil, fmt.Errorf("flow %s: unknown step %q", s.ID, s.Step)
	}
	return f, nil
}
