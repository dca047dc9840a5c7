package services

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// ServiceStatus represents the current state of a background job
type ServiceStatus struct {
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Enabled     bool      `json:"enabled"`
	Running     bool      `json:"running"`
	Interval    string    `json:"interval"`
	LastRun     time.Time `json:"last_run"`
	NextRun     time.Time `json:"next_run"`
	LastError   string    `json:"last_error,omitempty"`
	RunCount    int64     `json:"run_count"`
}

// Job is one unit of periodic work.
type Job func(ctx context.Context) error

type scheduledJob struct {
	status   ServiceStatus
	interval time.Duration
	run      Job
}

// ServiceScheduler runs registered jobs on fixed intervals and tracks their
// status.
type ServiceScheduler struct {
	mu     sync.RWMutex
	jobs   map[string]*scheduledJob
	logger *slog.Logger
	now    func() time.Time
}

// NewServiceScheduler creates a new service scheduler
func NewServiceScheduler(logger *slog.Logger) *ServiceScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ServiceScheduler{
		jobs:   make(map[string]*scheduledJob),
		logger: logger,
		now:    time.Now,
	}
}

// Service name constants
const (
	ServiceSessionSweep = "session_sweep"
	ServiceCacheCleanup = "cache_cleanup"
)

// Register adds a job. It must be called before Run.
func (s *ServiceScheduler) Register(name, description string, interval time.Duration, enabled bool, run Job) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[name] = &scheduledJob{
		status: ServiceStatus{
			Name:        name,
			Description: description,
			Enabled:     enabled,
			Interval:    interval.String(),
			NextRun:     s.now().Add(interval),
		},
		interval: interval,
		run:      run,
	}
}

// Run starts one loop per registered job and blocks until ctx is cancelled
// and every loop has returned.
func (s *ServiceScheduler) Run(ctx context.Context) {
	s.mu.RLock()
	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	s.mu.RUnlock()

	var wg sync.WaitGroup
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			s.loop(ctx, name)
		}(name)
	}
	wg.Wait()
}

func (s *ServiceScheduler) loop(ctx context.Context, name string) {
	s.mu.RLock()
	interval := s.jobs[name].interval
	s.mu.RUnlock()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.RunNow(ctx, name)
		}
	}
}

// RunNow runs the job once, unless it is disabled, unknown or already
// running. It reports whether the job ran.
func (s *ServiceScheduler) RunNow(ctx context.Context, name string) bool {
	s.mu.Lock()
	job, ok := s.jobs[name]
	if !ok || !job.status.Enabled || job.status.Running {
		s.mu.Unlock()
		return false
	}
	job.status.Running = true
	s.mu.Unlock()

	err := job.run(ctx)
	if err != nil {
		s.logger.Warn("background job failed", "job", name, "error", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	job.status.Running = false
	job.status.LastRun = s.now()
	job.status.NextRun = job.status.LastRun.Add(job.interval)
	job.status.RunCount++
	if err != nil {
		job.status.LastError = err.Error()
	} else {
		job.status.LastError = ""
	}
	return true
}

// GetStatus returns the status of a specific job
func (s *ServiceScheduler) GetStatus(name string) (ServiceStatus, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if job, exists := s.jobs[name]; exists {
		return job.status, true
	}
	return ServiceStatus{}, false
}

// GetAllStatus returns the status of all jobs, sorted by name
func (s *ServiceScheduler) GetAllStatus() []ServiceStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()

	statuses := make([]ServiceStatus, 0, len(s.jobs))
	for _, job := range s.jobs {
		statuses = append(statuses, job.status)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Name < statuses[j].Name })
	return statuses
}

// SetEnabled enables or disables a job
func (s *ServiceScheduler) SetEnabled(name string, enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if job, exists := s.jobs[name]; exists {
		job.status.Enabled = enabled
	}
}
