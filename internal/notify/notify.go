// Package notify carries user-facing toast notifications from the services
// to the HTTP response of the request that caused them.
package notify

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityError Severity = "error"
)

// Toast is one user-facing notification.
type Toast struct {
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
}

// Notifier delivers toasts. Delivery never fails from the caller's point of view.
type Notifier interface {
	Notify(ctx context.Context, t Toast)
}

// Info sends an info toast.
func Info(ctx context.Context, n Notifier, title, description string) {
	n.Notify(ctx, Toast{Severity: SeverityInfo, Title: title, Description: description})
}

// Error sends an error toast.
func Error(ctx context.Context, n Notifier, title, description string) {
	n.Notify(ctx, Toast{Severity: SeverityError, Title: title, Description: description})
}

// Recorder collects the toasts of one request.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) Notify(_ context.Context, t Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

// Toasts returns a copy of what was recorded so far.
func (r *Recorder) Toasts() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Toast, len(r.toasts))
	copy(out, r.toasts)
	return out
}

type recorderKey struct{}

// WithRecorder attaches a fresh recorder to ctx.
func WithRecorder(ctx context.Context) (context.Context, *Recorder) {
	r := NewRecorder()
	return context.WithValue(ctx, recorderKey{}, r), r
}

// FromContext returns the recorder attached by WithRecorder, if any.
func FromContext(ctx context.Context) (*Recorder, bool) {
	r, ok := ctx.Value(recorderKey{}).(*Recorder)
	return r, ok
}

// RequestNotifier routes each toast to the recorder of the request context
// and logs it.
type RequestNotifier struct {
	logger *zap.Logger
}

func NewRequestNotifier(logger *zap.Logger) *RequestNotifier {
	return &RequestNotifier{logger: logger}
}

func (n *RequestNotifier) Notify(ctx context.Context, t Toast) {
	n.logger.Debug("toast",
		zap.String("severity", string(t.Severity)),
		zap.String("title", t.Title),
		zap.String("description", t.Description),
	)
	if r, ok := FromContext(ctx); ok {
		r.Notify(ctx, t)
	}
}
