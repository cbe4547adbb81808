// Package scheduler runs the periodic sweeps: payment reconciliation
// for polling-mode gateways, deferred archive timers, expired
// deadlines, quote reminders, and cooldown cleanup.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/craftdesk/craftdesk/internal/config"
	"github.com/craftdesk/craftdesk/internal/gateway"
	"github.com/craftdesk/craftdesk/internal/invoice"
	"github.com/craftdesk/craftdesk/internal/repository"
	"github.com/craftdesk/craftdesk/internal/ticket"
)

// Job is one registered sweep: a handler name bound to a cron spec.
type Job struct {
	Name     string
	Handler  string
	Schedule string
}

// Handler executes one sweep run.
type Handler func(ctx context.Context, job *Job) error

// Service wires the sweeps onto a cron runner.
type Service struct {
	manager   *ticket.Manager
	ledger    *invoice.Ledger
	gateways  *gateway.Registry
	invoices  repository.InvoiceRepository
	cooldowns repository.CooldownRepository

	opts     options
	cron     *cron.Cron
	mu       sync.Mutex
	handlers map[string]Handler
	entries  map[string]cron.EntryID
}

// NewService builds the sweep service. Jobs default to one per sweep
// with the cadence taken from cfg.Sweeps; override with WithJobs.
func NewService(cfg *config.Config, manager *ticket.Manager, ledger *invoice.Ledger,
	gateways *gateway.Registry, invoices repository.InvoiceRepository,
	cooldowns repository.CooldownRepository, opts ...Option) *Service {

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.Jobs == nil {
		o.Jobs = defaultJobs(cfg)
	}
	c := o.Cron
	if c == nil {
		c = cron.New(cron.WithLocation(o.Location))
	}

	s := &Service{
		manager:   manager,
		ledger:    ledger,
		gateways:  gateways,
		invoices:  invoices,
		cooldowns: cooldowns,
		opts:      o,
		cron:      c,
		handlers:  make(map[string]Handler),
		entries:   make(map[string]cron.EntryID),
	}
	s.registerBuiltinHandlers()
	return s
}

// RegisterHandler binds a handler name to its implementation. Replacing
// an existing handler is allowed; tests use it to stub sweeps.
func (s *Service) RegisterHandler(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[name] = h
}

// Start schedules every job and starts the cron runner.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.opts.Jobs {
		job := s.opts.Jobs[i]
		h, ok := s.handlers[job.Handler]
		if !ok {
			return fmt.Errorf("scheduler: job %q references unknown handler %q", job.Name, job.Handler)
		}
		id, err := s.cron.AddFunc(job.Schedule, func() { s.run(job, h) })
		if err != nil {
			return fmt.Errorf("scheduler: failed to schedule %q (%s): %w", job.Name, job.Schedule, err)
		}
		s.entries[job.Name] = id
		s.opts.Logger.Printf("[scheduler] registered %s (%s)", job.Name, job.Schedule)
	}
	s.cron.Start()
	return nil
}

// Stop halts the cron runner and waits for in-flight sweeps.
func (s *Service) Stop(ctx context.Context) error {
	done := s.cron.Stop().Done()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunJob executes one job by name immediately, outside its schedule.
func (s *Service) RunJob(ctx context.Context, name string) error {
	s.mu.Lock()
	var job *Job
	for i := range s.opts.Jobs {
		if s.opts.Jobs[i].Name == name {
			job = s.opts.Jobs[i]
			break
		}
	}
	var h Handler
	if job != nil {
		h = s.handlers[job.Handler]
	}
	s.mu.Unlock()
	if job == nil || h == nil {
		return fmt.Errorf("scheduler: unknown job %q", name)
	}
	return h(ctx, job)
}

func (s *Service) run(job *Job, h Handler) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opts.JobTimeout)
	defer cancel()

	stop := globalSweepMetrics().recordRun(job.Handler)
	err := h(ctx, job)
	stop()
	if err != nil {
		globalSweepMetrics().recordFailure(job.Handler)
		s.opts.Logger.Printf("[scheduler] %s failed: %v", job.Name, err)
		return
	}
}

// defaultJobs maps the configured sweep cadences onto jobs. A zero
// duration disables the sweep.
func defaultJobs(cfg *config.Config) []*Job {
	var jobs []*Job
	add := func(name, handler string, every time.Duration) {
		if every <= 0 {
			return
		}
		jobs = append(jobs, &Job{
			Name:     name,
			Handler:  handler,
			Schedule: "@every " + every.String(),
		})
	}
	add("Payment Reconciliation", "invoice.poll", cfg.Sweeps.PaymentPoll)
	add("Archive Timers", "ticket.archiveTimers", cfg.Sweeps.ArchiveTimers)
	add("Deadline Sweep", "ticket.deadlines", cfg.Sweeps.Deadlines)
	add("Quote Reminders", "ticket.quoteReminders", cfg.Sweeps.QuoteReminders)
	add("Cooldown Cleanup", "cooldown.cleanup", cfg.Sweeps.Cooldowns)
	return jobs
}
