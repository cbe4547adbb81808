package scheduler

import (
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

type options struct {
	Logger     *log.Logger
	Cron       *cron.Cron
	Jobs       []*Job
	Location   *time.Location
	JobTimeout time.Duration
	Now        func() time.Time
}

// Option applies configuration to the sweep service.
type Option func(*options)

func defaultOptions() options {
	return options{
		Logger:     log.Default(),
		Location:   time.UTC,
		JobTimeout: 2 * time.Minute,
		Now:        time.Now,
	}
}

// WithLogger injects a custom logger implementation.
func WithLogger(l *log.Logger) Option {
	return func(o *options) { o.Logger = l }
}

// WithCron supplies a preconfigured cron runner.
func WithCron(c *cron.Cron) Option {
	return func(o *options) { o.Cron = c }
}

// WithJobs registers explicit job definitions instead of the defaults
// derived from the sweep config.
func WithJobs(jobs []*Job) Option {
	return func(o *options) { o.Jobs = jobs }
}

// WithLocation sets the scheduler timezone.
func WithLocation(loc *time.Location) Option {
	return func(o *options) { o.Location = loc }
}

// WithJobTimeout bounds a single sweep run.
func WithJobTimeout(d time.Duration) Option {
	return func(o *options) { o.JobTimeout = d }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.Now = now }
}
