package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/kinesica-health/kinesica/internal/domain"
)

// MockJob is a mock implementation of Job
type MockJob struct {
	mock.Mock
}

func (m *MockJob) Name() string {
	return "mock-job"
}

func (m *MockJob) Run(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

// MockRetentionRepository is a mock implementation of RetentionRepository
type MockRetentionRepository struct {
	mock.Mock
}

func (m *MockRetentionRepository) DeleteOlderThan(ctx context.Context, assistantType domain.AssistantType, cutoff time.Time) (int64, error) {
	args := m.Called(ctx, assistantType, cutoff)
	return args.Get(0).(int64), args.Error(1)
}

// TestWorker_StartStop tests the worker start and stop functionality
func TestWorker_StartStop(t *testing.T) {
	mockJob := new(MockJob)
	mockJob.On("Run", mock.Anything).Return(nil)

	worker := NewWorker(mockJob, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(250 * time.Millisecond)

	worker.Stop()
	wg.Wait()

	mockJob.AssertCalled(t, "Run", mock.Anything)
}

// TestWorker_ContextCancellation tests worker stops on context cancellation
func TestWorker_ContextCancellation(t *testing.T) {
	mockJob := new(MockJob)
	mockJob.On("Run", mock.Anything).Return(nil)

	worker := NewWorker(mockJob, 100*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Start(ctx)
	}()

	time.Sleep(150 * time.Millisecond)

	cancel()
	wg.Wait()

	mockJob.AssertCalled(t, "Run", mock.Anything)
}

func TestRetentionJob_PrunesEveryAssistant(t *testing.T) {
	mockRepo := new(MockRetentionRepository)
	now := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	job := NewRetentionJob(mockRepo, 90)
	job.now = func() time.Time { return now }

	cutoff := now.AddDate(0, 0, -90)
	for _, at := range domain.AssistantTypes() {
		mockRepo.On("DeleteOlderThan", mock.Anything, at, cutoff).Return(int64(2), nil)
	}

	err := job.Run(context.Background())

	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
	mockRepo.AssertNumberOfCalls(t, "DeleteOlderThan", len(domain.AssistantTypes()))
}

func TestRetentionJob_ContinuesAfterTableFailure(t *testing.T) {
	mockRepo := new(MockRetentionRepository)
	job := NewRetentionJob(mockRepo, 90)

	types := domain.AssistantTypes()
	mockRepo.On("DeleteOlderThan", mock.Anything, types[0], mock.Anything).
		Return(int64(0), errors.New("lock timeout"))
	for _, at := range types[1:] {
		mockRepo.On("DeleteOlderThan", mock.Anything, at, mock.Anything).Return(int64(1), nil)
	}

	err := job.Run(context.Background())

	assert.ErrorContains(t, err, "retention sweep")
	mockRepo.AssertNumberOfCalls(t, "DeleteOlderThan", len(types))
}
