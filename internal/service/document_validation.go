package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tramitia/process-tracker/internal/domain"
	"go.uber.org/zap"
)

// ValidationTaskStatus is the state of an asynchronous document check
type ValidationTaskStatus string

const (
	ValidationTaskPending    ValidationTaskStatus = "pending"
	ValidationTaskProcessing ValidationTaskStatus = "processing"
	ValidationTaskCompleted  ValidationTaskStatus = "completed"
	ValidationTaskFailed     ValidationTaskStatus = "failed"
)

// IsFinal reports whether the task can no longer change.
func (s ValidationTaskStatus) IsFinal() bool {
	return s == ValidationTaskCompleted || s == ValidationTaskFailed
}

// ValidationTask tracks one automated check of an uploaded document
type ValidationTask struct {
	ID         uuid.UUID
	ProcessID  uuid.UUID
	DocumentID uuid.UUID
	// StoragePath is the file under review
	StoragePath string
	Status      ValidationTaskStatus
	Confidence  float64
	Passed      bool
	Error       string
	RetryOf     *uuid.UUID
	CreatedAt   time.Time
	StartedAt   *time.Time
	FinishedAt  *time.Time
}

// DocumentChecker inspects a document and returns a confidence in [0, 1]
type DocumentChecker interface {
	Check(ctx context.Context, doc domain.Document) (float64, error)
}

// DelayChecker simulates an external validation service: it waits Delay and
// then reports a fixed confidence.
type DelayChecker struct {
	Delay      time.Duration
	Confidence float64
}

// Check implements DocumentChecker
func (c DelayChecker) Check(ctx context.Context, doc domain.Document) (float64, error) {
	if doc.StoragePath == "" {
		return 0, fmt.Errorf("document %s has no uploaded file", doc.ID)
	}
	timer := time.NewTimer(c.Delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-timer.C:
		return c.Confidence, nil
	}
}

// ValidationResultFunc is called once for every task that completes with a
// passing confidence.
type ValidationResultFunc func(ctx context.Context, task ValidationTask) error

// ValidationRunner runs document checks in the background. Each task runs in
// its own goroutine and can be cancelled; a failed task can be retried, which
// creates a new task linked to the old one.
type ValidationRunner struct {
	checker   DocumentChecker
	threshold float64
	onPassed  ValidationResultFunc
	logger    *zap.Logger
	now       func() time.Time

	mu      sync.Mutex
	tasks   map[uuid.UUID]*ValidationTask
	docs    map[uuid.UUID]domain.Document
	cancels map[uuid.UUID]context.CancelFunc
	wg      sync.WaitGroup
}

// NewValidationRunner creates a runner. Checks at or above threshold pass.
func NewValidationRunner(checker DocumentChecker, threshold float64, onPassed ValidationResultFunc, logger *zap.Logger) *ValidationRunner {
	return &ValidationRunner{
		checker:   checker,
		threshold: threshold,
		onPassed:  onPassed,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
		tasks:     make(map[uuid.UUID]*ValidationTask),
		docs:      make(map[uuid.UUID]domain.Document),
		cancels:   make(map[uuid.UUID]context.CancelFunc),
	}
}

// SetResultFunc replaces the callback run for passing tasks.
func (r *ValidationRunner) SetResultFunc(fn ValidationResultFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onPassed = fn
}

// SetClock replaces the time source; used by tests.
func (r *ValidationRunner) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

// Start queues a check of doc and returns the pending task.
func (r *ValidationRunner) Start(processID uuid.UUID, doc domain.Document) ValidationTask {
	return r.start(processID, doc, nil)
}

func (r *ValidationRunner) start(processID uuid.UUID, doc domain.Document, retryOf *uuid.UUID) ValidationTask {
	ctx, cancel := context.WithCancel(context.Background())

	r.mu.Lock()
	task := &ValidationTask{
		ID:          uuid.New(),
		ProcessID:   processID,
		DocumentID:  doc.ID,
		StoragePath: doc.StoragePath,
		Status:      ValidationTaskPending,
		RetryOf:     retryOf,
		CreatedAt:   r.now(),
	}
	r.tasks[task.ID] = task
	r.docs[task.ID] = doc
	r.cancels[task.ID] = cancel
	snapshot := *task
	r.wg.Add(1)
	r.mu.Unlock()

	go r.run(ctx, task.ID, doc)

	r.logger.Info("document validation queued",
		zap.String("taskId", snapshot.ID.String()),
		zap.String("processId", processID.String()),
		zap.String("documentId", doc.ID.String()))
	return snapshot
}

func (r *ValidationRunner) run(ctx context.Context, taskID uuid.UUID, doc domain.Document) {
	defer r.wg.Done()

	r.mu.Lock()
	task := r.tasks[taskID]
	if task.Status.IsFinal() {
		r.mu.Unlock()
		return
	}
	started := r.now()
	task.Status = ValidationTaskProcessing
	task.StartedAt = &started
	r.mu.Unlock()

	confidence, err := r.checker.Check(ctx, doc)

	r.mu.Lock()
	if cancel := r.cancels[taskID]; cancel != nil {
		cancel()
		delete(r.cancels, taskID)
	}
	if task.Status.IsFinal() {
		// cancelled while the checker was running
		r.mu.Unlock()
		return
	}
	finished := r.now()
	task.FinishedAt = &finished
	if err != nil {
		task.Status = ValidationTaskFailed
		task.Error = err.Error()
		result := *task
		r.mu.Unlock()
		r.logger.Warn("document validation failed",
			zap.String("taskId", result.ID.String()),
			zap.String("documentId", result.DocumentID.String()),
			zap.Error(err))
		return
	}
	task.Status = ValidationTaskCompleted
	task.Confidence = confidence
	task.Passed = confidence >= r.threshold
	result := *task
	onPassed := r.onPassed
	r.mu.Unlock()

	r.logger.Info("document validation completed",
		zap.String("taskId", result.ID.String()),
		zap.String("documentId", result.DocumentID.String()),
		zap.Float64("confidence", result.Confidence),
		zap.Bool("passed", result.Passed))

	if result.Passed && onPassed != nil {
		if err := onPassed(context.Background(), result); err != nil {
			r.logger.Warn("failed to record document validation",
				zap.String("taskId", result.ID.String()),
				zap.Error(err))
		}
	}
}

// Get returns a copy of a task.
func (r *ValidationRunner) Get(id uuid.UUID) (ValidationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return ValidationTask{}, ErrValidationTaskNotFound
	}
	return *task, nil
}

// ListForDocument returns every task of one document, oldest first.
func (r *ValidationRunner) ListForDocument(documentID uuid.UUID) []ValidationTask {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]ValidationTask, 0)
	for _, task := range r.tasks {
		if task.DocumentID == documentID {
			out = append(out, *task)
		}
	}
	sortTasks(out)
	return out
}

// Cancel stops a pending or running task, which then ends as failed.
// Cancelling a finished task is a no-op.
func (r *ValidationRunner) Cancel(id uuid.UUID) (ValidationTask, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	task, ok := r.tasks[id]
	if !ok {
		return ValidationTask{}, ErrValidationTaskNotFound
	}
	if task.Status.IsFinal() {
		return *task, nil
	}
	if cancel := r.cancels[id]; cancel != nil {
		cancel()
		delete(r.cancels, id)
	}
	now := r.now()
	task.Status = ValidationTaskFailed
	task.Error = context.Canceled.Error()
	task.FinishedAt = &now
	return *task, nil
}

// Retry starts a new check for the document of a failed task.
func (r *ValidationRunner) Retry(id uuid.UUID) (ValidationTask, error) {
	r.mu.Lock()
	task, ok := r.tasks[id]
	if !ok {
		r.mu.Unlock()
		return ValidationTask{}, ErrValidationTaskNotFound
	}
	if !task.Status.IsFinal() {
		r.mu.Unlock()
		return ValidationTask{}, ErrValidationTaskActive
	}
	if task.Status != ValidationTaskFailed {
		r.mu.Unlock()
		return ValidationTask{}, domain.NewValidationError("task", "only failed validations can be retried")
	}
	processID := task.ProcessID
	doc := r.docs[id]
	r.mu.Unlock()

	retryOf := id
	return r.start(processID, doc, &retryOf), nil
}

// Shutdown cancels every running task and waits for the goroutines to exit
// or ctx to expire.
func (r *ValidationRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for id, cancel := range r.cancels {
		cancel()
		delete(r.cancels, id)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Join(errors.New("validation runner did not stop in time"), ctx.Err())
	}
}

// Wait blocks until every started task has finished.
func (r *ValidationRunner) Wait() {
	r.wg.Wait()
}

func sortTasks(tasks []ValidationTask) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.Before(tasks[j].CreatedAt)
	})
}
