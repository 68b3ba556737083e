package api

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chri75252/simpler-fba/internal/report"
)

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
)

var ErrJobNotFound = errors.New("job not found")

// Runner executes one pipeline pass. Implemented by pipeline.Pipeline.
type Runner interface {
	Run(ctx context.Context, restart bool) ([]report.Row, error)
}

// Job tracks one pipeline pass triggered over the API.
type Job struct {
	ID          string       `json:"id"`
	Supplier    string       `json:"supplier"`
	Restart     bool         `json:"restart"`
	Status      string       `json:"status"`
	RowCount    int          `json:"row_count"`
	Rows        []report.Row `json:"-"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	CompletedAt *time.Time   `json:"completed_at,omitempty"`
	Error       string       `json:"error,omitempty"`
}

// JobManager runs pipeline passes one at a time and keeps their results in
// memory for the report endpoint.
type JobManager struct {
	mu      sync.RWMutex
	jobs    map[string]*Job
	runner  Runner
	logger  *slog.Logger
	running bool
}

func NewJobManager(runner Runner, logger *slog.Logger) *JobManager {
	return &JobManager{
		jobs:   make(map[string]*Job),
		runner: runner,
		logger: logger.With("component", "job_manager"),
	}
}

// Create registers a job and starts it in the background. Only one pipeline
// pass runs at a time; a second request while one is running is rejected.
func (m *JobManager) Create(ctx context.Context, supplier string, restart bool) (*Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return nil, errors.New("a pipeline pass is already running")
	}

	job := &Job{
		ID:        uuid.New().String(),
		Supplier:  supplier,
		Restart:   restart,
		Status:    JobStatusPending,
		CreatedAt: time.Now(),
	}
	m.jobs[job.ID] = job
	m.running = true

	go m.run(job)

	m.logger.Info("job created", "id", job.ID, "supplier", supplier, "restart", restart)
	return job, nil
}

func (m *JobManager) run(job *Job) {
	now := time.Now()
	m.mu.Lock()
	job.Status = JobStatusRunning
	job.StartedAt = &now
	m.mu.Unlock()

	// Detached from the request context: the pass outlives the HTTP call.
	rows, err := m.runner.Run(context.Background(), job.Restart)

	done := time.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	m.running = false
	job.CompletedAt = &done
	job.Rows = rows
	job.RowCount = len(rows)
	if err != nil {
		job.Status = JobStatusFailed
		job.Error = err.Error()
		m.logger.Error("job failed", "id", job.ID, "error", err)
		return
	}
	job.Status = JobStatusCompleted
	m.logger.Info("job completed", "id", job.ID, "rows", len(rows))
}

// Get returns a job by ID.
func (m *JobManager) Get(id string) (*Job, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	job, ok := m.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	copied := *job
	return &copied, nil
}

// List returns all jobs, newest first.
func (m *JobManager) List() []*Job {
	m.mu.RLock()
	defer m.mu.RUnlock()

	jobs := make([]*Job, 0, len(m.jobs))
	for _, job := range m.jobs {
		copied := *job
		jobs = append(jobs, &copied)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// LatestRows returns the rows of the most recent completed job.
func (m *JobManager) LatestRows() []report.Row {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *Job
	for _, job := range m.jobs {
		if job.Status != JobStatusCompleted {
			continue
		}
		if latest == nil || job.CompletedAt.After(*latest.CompletedAt) {
			latest = job
		}
	}
	if latest == nil {
		return nil
	}
	rows := make([]report.Row, len(latest.Rows))
	copy(rows, latest.Rows)
	return rows
}
