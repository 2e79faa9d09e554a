package services

import (
	"context"
	"errors"
	"sync"

	"spacesweep/internal/domain"
)

// MockAPI is a scripted SpaceAPI. Each progress call pops the next scripted
// response; the last one repeats once the script runs out.
type MockAPI struct {
	mu sync.Mutex

	ScanStartErr  error
	ScanSteps     []MockStep[domain.ScanProgress]
	Result        *domain.ScanResult
	ResultErr     error
	CleanupStart  error
	CleanupTaskID string
	CleanupSteps  []MockStep[domain.CleanupProgress]

	scanStarts      int
	scanPolls       int
	resultCalls     int
	cleanupRequests []domain.CleanupRequest
	cleanupPolls    int
}

type MockStep[T any] struct {
	Value T
	Err   error
}

func NewMockAPI() *MockAPI {
	return &MockAPI{CleanupTaskID: "task-1"}
}

func (api *MockAPI) StartScan(ctx context.Context) error {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.scanStarts++
	api.scanPolls = 0
	return api.ScanStartErr
}

func (api *MockAPI) ScanProgress(ctx context.Context) (domain.ScanProgress, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	step := pick(api.ScanSteps, api.scanPolls)
	api.scanPolls++
	return step.Value, step.Err
}

func (api *MockAPI) ScanResult(ctx context.Context) (domain.ScanResult, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.resultCalls++
	if api.ResultErr != nil {
		return domain.ScanResult{}, api.ResultErr
	}
	if api.Result == nil {
		return domain.ScanResult{}, ErrNoResult
	}
	return *api.Result, nil
}

func (api *MockAPI) StartCleanup(ctx context.Context, req domain.CleanupRequest) (string, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.cleanupRequests = append(api.cleanupRequests, req)
	api.cleanupPolls = 0
	if api.CleanupStart != nil {
		return "", api.CleanupStart
	}
	return api.CleanupTaskID, nil
}

func (api *MockAPI) CleanupProgress(ctx context.Context, taskID string) (domain.CleanupProgress, error) {
	api.mu.Lock()
	defer api.mu.Unlock()
	if taskID != api.CleanupTaskID {
		return domain.CleanupProgress{}, ErrUnknownTask
	}
	step := pick(api.CleanupSteps, api.cleanupPolls)
	api.cleanupPolls++
	step.Value.TaskID = taskID
	return step.Value, step.Err
}

func (api *MockAPI) ScanStarts() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.scanStarts
}

func (api *MockAPI) ResultCalls() int {
	api.mu.Lock()
	defer api.mu.Unlock()
	return api.resultCalls
}

func (api *MockAPI) CleanupRequests() []domain.CleanupRequest {
	api.mu.Lock()
	defer api.mu.Unlock()
	return append([]domain.CleanupRequest(nil), api.cleanupRequests...)
}

func (api *MockAPI) SetResult(result domain.ScanResult) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.Result = &result
}

var errNoScript = errors.New("mock: no scripted response")

func pick[T any](steps []MockStep[T], index int) MockStep[T] {
	if len(steps) == 0 {
		var zero MockStep[T]
		zero.Err = errNoScript
		return zero
	}
	if index >= len(steps) {
		index = len(steps) - 1
	}
	return steps[index]
}
