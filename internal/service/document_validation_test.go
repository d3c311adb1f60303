package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tramitia/process-tracker/internal/domain"
	"github.com/tramitia/process-tracker/internal/service"
	"go.uber.org/zap"
)

// blockingChecker waits until released or cancelled
type blockingChecker struct {
	release chan struct{}
}

func (c blockingChecker) Check(ctx context.Context, doc domain.Document) (float64, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c.release:
		return 1, nil
	}
}

func loadedDocument() domain.Document {
	uploaded := testNow
	return domain.Document{
		ID:          uuid.New(),
		Name:        "Factura comercial",
		Kind:        domain.DocumentKindRequired,
		Status:      domain.DocumentStatusLoaded,
		UploadedAt:  &uploaded,
		StoragePath: "ab/cd/file.pdf",
	}
}

func TestValidationRunner(t *testing.T) {
	t.Run("passing check calls back", func(t *testing.T) {
		var mu sync.Mutex
		var passed []service.ValidationTask
		r := service.NewValidationRunner(instantChecker{confidence: 0.9}, 0.8,
			func(ctx context.Context, task service.ValidationTask) error {
				mu.Lock()
				defer mu.Unlock()
				passed = append(passed, task)
				return nil
			}, zap.NewNop())

		task := r.Start(uuid.New(), loadedDocument())
		assert.Equal(t, service.ValidationTaskPending, task.Status)
		r.Wait()

		got, err := r.Get(task.ID)
		require.NoError(t, err)
		assert.Equal(t, service.ValidationTaskCompleted, got.Status)
		assert.True(t, got.Passed)
		assert.InDelta(t, 0.9, got.Confidence, 1e-9)
		require.NotNil(t, got.FinishedAt)

		mu.Lock()
		defer mu.Unlock()
		require.Len(t, passed, 1)
		assert.Equal(t, task.ID, passed[0].ID)
	})

	t.Run("low confidence completes without passing", func(t *testing.T) {
		called := false
		r := service.NewValidationRunner(instantChecker{confidence: 0.4}, 0.8,
			func(ctx context.Context, task service.ValidationTask) error {
				called = true
				return nil
			}, zap.NewNop())

		task := r.Start(uuid.New(), loadedDocument())
		r.Wait()

		got, err := r.Get(task.ID)
		require.NoError(t, err)
		assert.Equal(t, service.ValidationTaskCompleted, got.Status)
		assert.False(t, got.Passed)
		assert.False(t, called)
	})

	t.Run("checker error fails the task and retry creates a new one", func(t *testing.T) {
		r := service.NewValidationRunner(instantChecker{err: errors.New("service down")}, 0.8, nil, zap.NewNop())

		task := r.Start(uuid.New(), loadedDocument())
		r.Wait()
		failed, err := r.Get(task.ID)
		require.NoError(t, err)
		assert.Equal(t, service.ValidationTaskFailed, failed.Status)
		assert.Equal(t, "service down", failed.Error)

		retry, err := r.Retry(task.ID)
		require.NoError(t, err)
		r.Wait()
		assert.NotEqual(t, task.ID, retry.ID)
		require.NotNil(t, retry.RetryOf)
		assert.Equal(t, task.ID, *retry.RetryOf)

		original, err := r.Get(task.ID)
		require.NoError(t, err)
		assert.Equal(t, service.ValidationTaskFailed, original.Status, "failed task is never mutated by a retry")
		assert.Len(t, r.ListForDocument(task.DocumentID), 2)
	})

	t.Run("cancel ends a running task as failed", func(t *testing.T) {
		checker := blockingChecker{release: make(chan struct{})}
		r := service.NewValidationRunner(checker, 0.8, nil, zap.NewNop())

		task := r.Start(uuid.New(), loadedDocument())
		cancelled, err := r.Cancel(task.ID)
		require.NoError(t, err)
		assert.Equal(t, service.ValidationTaskFailed, cancelled.Status)
		assert.Equal(t, context.Canceled.Error(), cancelled.Error)
		r.Wait()

		got, err := r.Get(task.ID)
		require.NoError(t, err)
		assert.Equal(t, service.ValidationTaskFailed, got.Status)
	})

	t.Run("running task cannot be retried", func(t *testing.T) {
		checker := blockingChecker{release: make(chan struct{})}
		r := service.NewValidationRunner(checker, 0.8, nil, zap.NewNop())

		task := r.Start(uuid.New(), loadedDocument())
		_, err := r.Retry(task.ID)
		assert.ErrorIs(t, err, service.ErrValidationTaskActive)

		close(checker.release)
		r.Wait()
		_, err = r.Retry(task.ID)
		assert.ErrorIs(t, err, domain.ErrValidation, "completed tasks are not retried")
	})

	t.Run("unknown task", func(t *testing.T) {
		r := service.NewValidationRunner(instantChecker{}, 0.8, nil, zap.NewNop())
		_, err := r.Get(uuid.New())
		assert.ErrorIs(t, err, service.ErrValidationTaskNotFound)
	})

	t.Run("shutdown cancels running tasks", func(t *testing.T) {
		checker := blockingChecker{release: make(chan struct{})}
		r := service.NewValidationRunner(checker, 0.8, nil, zap.NewNop())
		task := r.Start(uuid.New(), loadedDocument())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		require.NoError(t, r.Shutdown(ctx))

		got, err := r.Get(task.ID)
		require.NoError(t, err)
		assert.Equal(t, service.ValidationTaskFailed, got.Status)
	})
}

func TestDelayChecker(t *testing.T) {
	t.Run("reports confidence after the delay", func(t *testing.T) {
		c := service.DelayChecker{Delay: time.Millisecond, Confidence: 0.7}
		got, err := c.Check(context.Background(), loadedDocument())
		require.NoError(t, err)
		assert.InDelta(t, 0.7, got, 1e-9)
	})

	t.Run("stops on cancel", func(t *testing.T) {
		c := service.DelayChecker{Delay: time.Hour, Confidence: 0.7}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := c.Check(ctx, loadedDocument())
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("document without file fails", func(t *testing.T) {
		c := service.DelayChecker{Delay: time.Millisecond}
		_, err := c.Check(context.Background(), domain.Document{ID: uuid.New()})
		assert.Error(t, err)
	})

	t.Run("upload time without stored file fails", func(t *testing.T) {
		c := service.DelayChecker{Delay: time.Millisecond, Confidence: 0.9}
		doc := loadedDocument()
		doc.StoragePath = ""
		_, err := c.Check(context.Background(), doc)
		assert.Error(t, err)
	})
}
