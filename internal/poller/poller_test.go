package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type taskState struct {
	status   string
	progress int
}

func classifyState(state taskState) Status {
	switch state.status {
	case "completed":
		return Completed
	case "failed":
		return Failed
	default:
		return Pending
	}
}

func fastOptions() Options {
	return Options{Interval: time.Millisecond, ErrorInterval: 2 * time.Millisecond}
}

// scripted replays responses in order and repeats the last one.
type scripted struct {
	mu        sync.Mutex
	responses []taskState
	errs      []error
	calls     int
	inFlight  int32
	overlaps  int32
}

func (script *scripted) fetch(ctx context.Context) (taskState, error) {
	if atomic.AddInt32(&script.inFlight, 1) > 1 {
		atomic.AddInt32(&script.overlaps, 1)
	}
	defer atomic.AddInt32(&script.inFlight, -1)

	script.mu.Lock()
	defer script.mu.Unlock()
	index := script.calls
	script.calls++
	if index < len(script.errs) && script.errs[index] != nil {
		return taskState{}, script.errs[index]
	}
	if index >= len(script.responses) {
		index = len(script.responses) - 1
	}
	return script.responses[index], nil
}

func (script *scripted) callCount() int {
	script.mu.Lock()
	defer script.mu.Unlock()
	return script.calls
}

func TestPollerStopsAtTerminalStatus(t *testing.T) {
	script := &scripted{responses: []taskState{
		{status: "scanning", progress: 10},
		{status: "scanning", progress: 40},
		{status: "scanning", progress: 80},
		{status: "completed", progress: 100},
	}}
	var progress []int
	var completed int32
	poller := New[taskState](fastOptions())

	poller.Start(context.Background(), script.fetch, classifyState, Handlers[taskState]{
		OnProgress:  func(_ Generation, state taskState) { progress = append(progress, state.progress) },
		OnCompleted: func(Generation, taskState) { atomic.AddInt32(&completed, 1) },
	})
	poller.Wait()
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, 4, script.callCount())
	assert.Equal(t, []int{10, 40, 80, 100}, progress)
	assert.Equal(t, int32(1), atomic.LoadInt32(&completed))
	assert.Zero(t, atomic.LoadInt32(&script.overlaps))
	assert.False(t, poller.Running())
}

func TestPollerReportsFailedStatusOnce(t *testing.T) {
	script := &scripted{responses: []taskState{{status: "scanning"}, {status: "failed"}}}
	var failed, completed int32
	poller := New[taskState](fastOptions())

	poller.Start(context.Background(), script.fetch, classifyState, Handlers[taskState]{
		OnCompleted: func(Generation, taskState) { atomic.AddInt32(&completed, 1) },
		OnFailed:    func(Generation, taskState) { atomic.AddInt32(&failed, 1) },
	})
	poller.Wait()

	assert.Equal(t, 2, script.callCount())
	assert.Equal(t, int32(1), failed)
	assert.Zero(t, completed)
}

func TestPollerRetriesTransportErrors(t *testing.T) {
	transport := errors.New("connection refused")
	script := &scripted{
		responses: []taskState{{}, {}, {status: "scanning"}, {status: "completed"}},
		errs:      []error{transport, transport},
	}
	var errorsSeen int32
	var completed int32
	poller := New[taskState](fastOptions())

	poller.Start(context.Background(), script.fetch, classifyState, Handlers[taskState]{
		OnError:     func(_ Generation, err error) { assert.ErrorIs(t, err, transport); atomic.AddInt32(&errorsSeen, 1) },
		OnCompleted: func(Generation, taskState) { atomic.AddInt32(&completed, 1) },
	})
	poller.Wait()

	assert.Equal(t, int32(2), errorsSeen)
	assert.Equal(t, int32(1), completed)
	assert.Equal(t, 4, script.callCount())
}

func TestPollerGivesUpAfterMaxErrors(t *testing.T) {
	transport := errors.New("timeout")
	script := &scripted{
		responses: []taskState{{}},
		errs:      []error{transport, transport, transport, transport, transport},
	}
	var gaveUp int32
	opts := fastOptions()
	opts.MaxErrors = 2
	poller := New[taskState](opts)

	poller.Start(context.Background(), script.fetch, classifyState, Handlers[taskState]{
		OnGiveUp: func(_ Generation, err error) { assert.ErrorIs(t, err, transport); atomic.AddInt32(&gaveUp, 1) },
	})
	poller.Wait()

	assert.Equal(t, 3, script.callCount())
	assert.Equal(t, int32(1), gaveUp)
}

func TestPollerRestartReplacesPreviousLoop(t *testing.T) {
	first := &scripted{responses: []taskState{{status: "scanning"}}}
	second := &scripted{responses: []taskState{{status: "scanning"}, {status: "completed"}}}
	poller := New[taskState](fastOptions())

	firstGeneration := poller.Start(context.Background(), first.fetch, classifyState, Handlers[taskState]{})
	require.Eventually(t, func() bool { return first.callCount() >= 2 }, time.Second, time.Millisecond)

	var completedGeneration atomic.Uint64
	secondGeneration := poller.Start(context.Background(), second.fetch, classifyState, Handlers[taskState]{
		OnCompleted: func(generation Generation, _ taskState) { completedGeneration.Store(uint64(generation)) },
	})
	poller.Wait()

	assert.Greater(t, secondGeneration, firstGeneration)
	assert.False(t, poller.Current(firstGeneration))
	assert.Equal(t, uint64(secondGeneration), completedGeneration.Load())

	settled := first.callCount()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, first.callCount())
}

func TestPollerStopCancelsPendingWait(t *testing.T) {
	script := &scripted{responses: []taskState{{status: "scanning"}}}
	opts := fastOptions()
	opts.Interval = time.Hour
	poller := New[taskState](opts)

	var progressed int32
	poller.Start(context.Background(), script.fetch, classifyState, Handlers[taskState]{
		OnProgress: func(Generation, taskState) { atomic.AddInt32(&progressed, 1) },
	})
	require.Eventually(t, func() bool { return atomic.LoadInt32(&progressed) == 1 }, time.Second, time.Millisecond)

	poller.Stop()
	poller.Wait()

	assert.Equal(t, 1, script.callCount())
	assert.False(t, poller.Running())
}

func TestPollerParentContextCancellation(t *testing.T) {
	script := &scripted{responses: []taskState{{status: "scanning"}}}
	ctx, cancel := context.WithCancel(context.Background())
	poller := New[taskState](fastOptions())

	poller.Start(ctx, script.fetch, classifyState, Handlers[taskState]{})
	require.Eventually(t, func() bool { return script.callCount() >= 1 }, time.Second, time.Millisecond)
	cancel()
	poller.Wait()

	assert.False(t, poller.Running())
}
