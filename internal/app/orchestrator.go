package app

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/raysh454/linkguard/internal/logging"
	"github.com/raysh454/linkguard/internal/model"
)

var ErrOrchestratorClosed = errors.New("orchestrator is closed")

type JobEventType string

const (
	JobEventStatus JobEventType = "status"
	JobEventPhase  JobEventType = "phase"
	JobEventResult JobEventType = "result"
)

type JobEvent struct {
	JobID string       `json:"job_id"`
	Type  JobEventType `json:"type"`

	// For status changes
	Status JobStatus `json:"status,omitempty"`
	Error  string    `json:"error,omitempty"`

	// For phase changes
	Phase model.Phase `json:"phase,omitempty"`

	// For the final result
	Result *model.ScanResult `json:"result,omitempty"`
}

type JobStatus string

const (
	JobPending  JobStatus = "pending"
	JobRunning  JobStatus = "running"
	JobDone     JobStatus = "done"
	JobFailed   JobStatus = "failed"
	JobCanceled JobStatus = "canceled"
)

// Terminal reports whether the job has stopped.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobCanceled
}

type Job struct {
	ID        string        `json:"id"`
	URL       string        `json:"url"`
	Status    JobStatus     `json:"status"`
	Phase     model.Phase   `json:"phase"`
	Error     string        `json:"error,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	EndedAt   time.Time     `json:"ended_at"`
	Events    chan JobEvent `json:"-"`

	Result *model.ScanResult `json:"result,omitempty"`
}

// Orchestrator runs scans as background jobs and keeps finished ones around
// for JobRetentionTime so they can be fetched after the fact. Jobs run on the
// orchestrator's own context: a caller going away does not stop its scan.
type Orchestrator struct {
	cfg      *Config
	pipeline *Pipeline
	logger   logging.Logger
	slots    *semaphore.Weighted

	baseCtx    context.Context
	baseCancel context.CancelFunc
	closeOnce  sync.Once
	wg         sync.WaitGroup

	jobsMu     sync.Mutex
	closed     bool
	jobs       map[string]*Job
	jobCancels map[string]context.CancelFunc
	expiries   map[string]*time.Timer
}

func NewOrchestrator(cfg *Config, pipeline *Pipeline, logger logging.Logger) *Orchestrator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = logging.NopLogger{}
	}
	slots := int64(cfg.MaxConcurrentScans)
	if slots <= 0 {
		slots = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg,
		pipeline:   pipeline,
		logger:     logger.With(logging.Field{Key: "component", Value: "orchestrator"}),
		slots:      semaphore.NewWeighted(slots),
		baseCtx:    ctx,
		baseCancel: cancel,
		jobs:       make(map[string]*Job),
		jobCancels: make(map[string]context.CancelFunc),
		expiries:   make(map[string]*time.Timer),
	}
}

func (o *Orchestrator) emitJobEvent(job *Job, ev JobEvent) {
	// Non-blocking send; drop if buffer is full.
	select {
	case job.Events <- ev:
	default:
	}
}

func (o *Orchestrator) updateJob(jobID string, fn func(j *Job)) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if j, ok := o.jobs[jobID]; ok {
		fn(j)
	}
}

func (o *Orchestrator) deleteCancel(jobID string) {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	delete(o.jobCancels, jobID)
}

func (o *Orchestrator) getCancel(jobID string) context.CancelFunc {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	return o.jobCancels[jobID]
}

// StartScanJob queues a scan of rawURL and returns immediately. The returned
// job's Events channel is closed once the job reaches a terminal status.
func (o *Orchestrator) StartScanJob(rawURL string) (*Job, error) {
	jobID := uuid.New().String()
	job := &Job{
		ID:        jobID,
		URL:       rawURL,
		Status:    JobPending,
		Phase:     model.PhaseIdle,
		StartedAt: time.Now().UTC(),
		Events:    make(chan JobEvent, 16),
	}
	jobCtx, cancel := context.WithCancel(o.baseCtx)

	o.jobsMu.Lock()
	if o.closed {
		o.jobsMu.Unlock()
		cancel()
		return nil, ErrOrchestratorClosed
	}
	o.jobs[jobID] = job
	o.jobCancels[jobID] = cancel
	o.wg.Add(1)
	o.jobsMu.Unlock()

	o.emitJobEvent(job, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobPending})
	o.logger.Info("scan job queued",
		logging.Field{Key: "job_id", Value: jobID},
		logging.Field{Key: "url", Value: rawURL})

	go o.runJob(jobCtx, job)
	return job, nil
}

func (o *Orchestrator) runJob(ctx context.Context, job *Job) {
	jobID := job.ID
	defer o.wg.Done()
	defer func() {
		o.updateJob(jobID, func(j *Job) { j.EndedAt = time.Now().UTC() })
		o.deleteCancel(jobID)
		o.scheduleExpiry(jobID)
		// Close events channel so websocket loop can terminate cleanly
		close(job.Events)
	}()

	if err := o.slots.Acquire(ctx, 1); err != nil {
		o.finishCanceled(job, ctx.Err())
		return
	}
	defer o.slots.Release(1)

	o.updateJob(jobID, func(j *Job) { j.Status = JobRunning })
	o.emitJobEvent(job, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobRunning})

	session := o.pipeline.Run(ctx, job.URL, func(phase model.Phase) {
		o.updateJob(jobID, func(j *Job) { j.Phase = phase })
		o.emitJobEvent(job, JobEvent{JobID: jobID, Type: JobEventPhase, Phase: phase})
	})

	// A session that reached COMPLETE keeps its result even if a cancel
	// arrived after the last stage returned.
	if session.Phase != model.PhaseComplete && ctx.Err() != nil {
		o.finishCanceled(job, ctx.Err())
		return
	}

	if session.Phase == model.PhaseError {
		o.updateJob(jobID, func(j *Job) {
			j.Status = JobFailed
			j.Error = session.Error
		})
		o.emitJobEvent(job, JobEvent{JobID: jobID, Type: JobEventStatus, Status: JobFailed, Error: session.Error})
		return
	}

	o.updateJob(jobID, func(j *Job) {
		j.Status = JobDone
		j.Result = session.Result
	})
	o.emitJobEvent(job, JobEvent{JobID: jobID, Type: JobEventResult, Status: JobDone, Result: session.Result})
	o.logger.Info("scan job done",
		logging.Field{Key: "job_id", Value: jobID},
		logging.Field{Key: "verdict", Value: string(session.Result.Verdict)})
}

func (o *Orchestrator) finishCanceled(job *Job, cause error) {
	msg := UserMessage(cause)
	o.updateJob(job.ID, func(j *Job) {
		j.Status = JobCanceled
		j.Error = msg
	})
	o.emitJobEvent(job, JobEvent{JobID: job.ID, Type: JobEventStatus, Status: JobCanceled, Error: msg})
}

func (o *Orchestrator) scheduleExpiry(jobID string) {
	ttl := o.cfg.JobRetentionTime
	if ttl <= 0 {
		return
	}
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	if o.closed {
		return
	}
	o.expiries[jobID] = time.AfterFunc(ttl, func() {
		o.jobsMu.Lock()
		defer o.jobsMu.Unlock()
		delete(o.jobs, jobID)
		delete(o.expiries, jobID)
	})
}

func (o *Orchestrator) CancelJob(jobID string) {
	cancel := o.getCancel(jobID)
	if cancel != nil {
		cancel()
	}
}

// GetJob returns a snapshot of the job, or nil when it is unknown or has
// expired.
func (o *Orchestrator) GetJob(jobID string) *Job {
	o.jobsMu.Lock()
	defer o.jobsMu.Unlock()
	j, ok := o.jobs[jobID]
	if !ok {
		return nil
	}
	cp := *j
	return &cp
}

// ListJobs returns snapshots of all retained jobs, newest first.
func (o *Orchestrator) ListJobs() []*Job {
	o.jobsMu.Lock()
	out := make([]*Job, 0, len(o.jobs))
	for _, j := range o.jobs {
		cp := *j
		out = append(out, &cp)
	}
	o.jobsMu.Unlock()

	sort.Slice(out, func(a, b int) bool {
		if out[a].StartedAt.Equal(out[b].StartedAt) {
			return out[a].ID < out[b].ID
		}
		return out[a].StartedAt.After(out[b].StartedAt)
	})
	return out
}

// Close cancels every running job and waits for them to wind down. It is
// safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.jobsMu.Lock()
		o.closed = true
		for id, t := range o.expiries {
			t.Stop()
			delete(o.expiries, id)
		}
		o.jobsMu.Unlock()

		o.baseCancel()
		o.wg.Wait()
		o.logger.Info("orchestrator closed")
	})
}
