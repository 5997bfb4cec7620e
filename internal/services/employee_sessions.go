package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ledgerdesk/internal/amqp"
	"ledgerdesk/internal/cache"
	"ledgerdesk/internal/core"
	"ledgerdesk/internal/employee"
	"ledgerdesk/internal/log"
	"ledgerdesk/internal/metrics"
	"ledgerdesk/internal/storage"
	"ledgerdesk/internal/wizard"
)

// ErrSessionNotFound is returned for unknown, expired or foreign sessions.
var ErrSessionNotFound = errors.New("employee setup session not found")

type setupWizard = wizard.Wizard[employee.SetupForm]

// SessionView is what a client sees of a setup session. Sensitive numbers
// are masked.
type SessionView struct {
	ID     string             `json:"id"`
	State  wizard.State       `json:"state"`
	Form   employee.SetupForm `json:"form"`
	Errors core.FieldErrors   `json:"errors,omitempty"`
}

// EmployeeSessions holds in-progress employee setup wizards. Sessions slide
// their TTL on every access and are dropped least recently used first once
// capacity is reached.
type EmployeeSessions struct {
	store      storage.EmployeeStore
	publisher  Publisher
	sealer     employee.Sealer
	completion wizard.CompletionPolicy
	sessions   *cache.LRUCache[*setupWizard]
	logger     *log.Logger
	settings
}

// SessionConfig sizes the session cache.
type SessionConfig struct {
	TTL        time.Duration
	Capacity   int
	Completion wizard.CompletionPolicy
}

func NewEmployeeSessions(store storage.EmployeeStore, publisher Publisher, sealer employee.Sealer, cfg SessionConfig, logger *log.Logger, opts ...Option) *EmployeeSessions {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 1000
	}
	if cfg.Completion == nil {
		cfg.Completion = wizard.StickyCompletion{}
	}
	s := &EmployeeSessions{
		store:      store,
		publisher:  publisher,
		sealer:     sealer,
		completion: cfg.Completion,
		logger:     logger.WithComponent(log.ComponentEmployee),
		settings:   newSettings(opts),
	}
	s.sessions = cache.NewLRUCache[*setupWizard](cfg.Capacity, cfg.TTL, cache.Options{
		Sliding: true,
		Now:     s.now,
		OnEvict: func(key string, reason cache.EvictReason) {
			metrics.WizardEvicted.WithLabelValues(string(reason)).Inc()
			s.logger.Debug("Setup session evicted", log.FieldSessionID, key, "reason", reason)
		},
	})
	return s
}

// Cache exposes the session cache so it can be swept with the others.
func (s *EmployeeSessions) Cache() cache.Cleaner { return s.sessions }

func sessionKey(companyID, id string) string { return companyID + "/" + id }

func (s *EmployeeSessions) gauge() {
	metrics.WizardSessions.Set(float64(s.sessions.Size()))
}

// Start opens a wizard on step 1 with the form defaults, optionally
// prefilled.
func (s *EmployeeSessions) Start(ctx context.Context, companyID string, values map[employee.Field]string) (SessionView, error) {
	form := employee.NewSetupForm()
	if err := form.Apply(values); err != nil {
		return SessionView{}, err
	}
	w, err := wizard.New(employee.Steps(s.now), form, wizard.WithCompletion(s.completion))
	if err != nil {
		return SessionView{}, fmt.Errorf("create wizard: %w", err)
	}
	id := s.newID()
	s.sessions.Set(sessionKey(companyID, id), w)
	s.gauge()
	s.logger.InfoContext(ctx, "Setup session started", log.FieldCompanyID, companyID, log.FieldSessionID, id)
	return view(id, w, nil), nil
}

func (s *EmployeeSessions) lookup(companyID, id string) (*setupWizard, error) {
	w, ok := s.sessions.Get(sessionKey(companyID, id))
	s.gauge()
	if !ok {
		return nil, ErrSessionNotFound
	}
	return w, nil
}

func (s *EmployeeSessions) Get(_ context.Context, companyID, id string) (SessionView, error) {
	w, err := s.lookup(companyID, id)
	if err != nil {
		return SessionView{}, err
	}
	return view(id, w, nil), nil
}

// Patch sets form fields. Unknown fields or unparseable values fail the
// whole patch and leave the form untouched.
func (s *EmployeeSessions) Patch(_ context.Context, companyID, id string, values map[employee.Field]string) (SessionView, error) {
	w, err := s.lookup(companyID, id)
	if err != nil {
		return SessionView{}, err
	}
	err = w.Update(func(f *employee.SetupForm) error {
		next := *f
		if err := next.Apply(values); err != nil {
			return err
		}
		*f = next
		return nil
	})
	if err != nil {
		return SessionView{}, err
	}
	return view(id, w, nil), nil
}

// Next validates the current step. Errors are returned inside the view; the
// session stays on the failing step.
func (s *EmployeeSessions) Next(_ context.Context, companyID, id string) (SessionView, error) {
	w, err := s.lookup(companyID, id)
	if err != nil {
		return SessionView{}, err
	}
	errs := w.Next()
	if len(errs) > 0 {
		metrics.ValidationFailures.WithLabelValues("employee_setup").Inc()
	}
	return view(id, w, errs), nil
}

func (s *EmployeeSessions) Previous(_ context.Context, companyID, id string) (SessionView, error) {
	w, err := s.lookup(companyID, id)
	if err != nil {
		return SessionView{}, err
	}
	w.Previous()
	return view(id, w, nil), nil
}

func (s *EmployeeSessions) Jump(_ context.Context, companyID, id string, step int) (SessionView, error) {
	w, err := s.lookup(companyID, id)
	if err != nil {
		return SessionView{}, err
	}
	if err := w.JumpTo(step); err != nil {
		return SessionView{}, err
	}
	return view(id, w, nil), nil
}

// Submit creates the employee from the final step. Validation errors come
// back as core.FieldErrors and keep the session open.
func (s *EmployeeSessions) Submit(ctx context.Context, companyID, id string) (employee.Employee, error) {
	w, err := s.lookup(companyID, id)
	if err != nil {
		return employee.Employee{}, err
	}

	var created employee.Employee
	err = w.Submit(ctx, wizard.SubmitterFunc[employee.SetupForm](func(ctx context.Context, f employee.SetupForm) error {
		e, err := employee.FromForm(s.newID(), companyID, f, s.sealer, s.now())
		if err != nil {
			return err
		}
		if err := s.store.SaveEmployee(ctx, e); err != nil {
			return fmt.Errorf("save employee: %w", err)
		}
		created = e
		return nil
	}))
	if err != nil {
		var fe core.FieldErrors
		if errors.As(err, &fe) {
			metrics.ValidationFailures.WithLabelValues("employee_setup").Inc()
		}
		return employee.Employee{}, err
	}

	metrics.WizardSubmitted.Inc()
	s.logger.InfoContext(ctx, "Employee created",
		log.FieldCompanyID, companyID,
		log.FieldEmployeeID, created.ID,
		log.FieldSessionID, id)

	if s.publisher == nil {
		s.logger.DebugContext(ctx, "AMQP publisher not available, skipping employee message")
	} else if err := s.publisher.PublishEmployeeCreated(ctx, amqp.NewEmployeeCreatedMessage(companyID, created.ID)); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish employee message",
			log.FieldEmployeeID, created.ID, log.FieldError, err)
	}

	return created, nil
}

func view(id string, w *setupWizard, errs core.FieldErrors) SessionView {
	return SessionView{ID: id, State: w.State(), Form: mask(w.Data()), Errors: errs}
}

func mask(f employee.SetupForm) employee.SetupForm {
	f.Personal.SSN = maskTail(f.Personal.SSN)
	f.Banking.AccountNumber = maskTail(f.Banking.AccountNumber)
	return f
}

func maskTail(s string) string {
	if len(s) <= 4 {
		return s
	}
	masked := make([]byte, len(s))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(s)-4:], s[len(s)-4:])
	return string(masked)
}
