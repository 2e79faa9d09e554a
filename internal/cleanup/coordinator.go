// Package cleanup orchestrates the scan and cleanup workflows against a
// SpaceAPI backend.
//
// All workflow state is owned by the Coordinator. Poll callbacks write it
// under one mutex and publish an Event per change; callbacks belonging to a
// replaced poll loop are dropped by comparing generations.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"spacesweep/internal/domain"
	"spacesweep/internal/estimate"
	"spacesweep/internal/logging"
	"spacesweep/internal/poller"
	"spacesweep/internal/services"
)

type Options struct {
	PollInterval      time.Duration
	PollErrorInterval time.Duration
	// MaxPollErrors stops a workflow after that many consecutive transport
	// errors. Zero keeps retrying until the job ends or Close is called.
	MaxPollErrors int
	Logger        *slog.Logger
	Now           func() time.Time
}

type Coordinator struct {
	api         services.SpaceAPI
	results     services.ResultSource
	invalidator services.Invalidator
	scans       *poller.Poller[domain.ScanProgress]
	cleanups    *poller.Poller[domain.CleanupProgress]
	logger      *slog.Logger
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	out    chan Event
	wake   chan struct{}
	pumped chan struct{}

	mu         sync.Mutex
	closed     bool
	scanGen    poller.Generation
	cleanupGen poller.Generation
	state      Snapshot
	queue      []Event
}

// New builds a coordinator. results is where scan results are read from,
// normally a services.ResultCache over api; nil reads api directly.
func New(api services.SpaceAPI, results services.ResultSource, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	if results == nil {
		results = api
	}
	pollOpts := poller.Options{
		Interval:      opts.PollInterval,
		ErrorInterval: opts.PollErrorInterval,
		MaxErrors:     opts.MaxPollErrors,
		Logger:        logger,
	}
	scanOpts, cleanupOpts := pollOpts, pollOpts
	scanOpts.Name = "scan"
	cleanupOpts.Name = "cleanup"

	ctx, cancel := context.WithCancel(context.Background())
	coordinator := &Coordinator{
		api:      api,
		results:  results,
		scans:    poller.New[domain.ScanProgress](scanOpts),
		cleanups: poller.New[domain.CleanupProgress](cleanupOpts),
		logger:   logger,
		now:      now,
		ctx:      ctx,
		cancel:   cancel,
		out:      make(chan Event, 16),
		wake:     make(chan struct{}, 1),
		pumped:   make(chan struct{}),
	}
	if invalidator, ok := results.(services.Invalidator); ok {
		coordinator.invalidator = invalidator
	}
	go coordinator.pump()
	return coordinator
}

// Events delivers state changes in order. The channel is closed by Close.
func (coordinator *Coordinator) Events() <-chan Event {
	return coordinator.out
}

func (coordinator *Coordinator) Snapshot() Snapshot {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	return coordinator.state
}

// Close stops both workflows. No events are published afterwards.
func (coordinator *Coordinator) Close() {
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return
	}
	coordinator.closed = true
	coordinator.queue = nil
	coordinator.mu.Unlock()

	coordinator.cancel()
	coordinator.scans.Stop()
	coordinator.cleanups.Stop()
	<-coordinator.pumped
}

// LoadPrevious fetches the result of an earlier scan, if the backend has one.
// A missing result is not an error; it reports false.
func (coordinator *Coordinator) LoadPrevious(ctx context.Context) bool {
	result, err := coordinator.results.ScanResult(ctx)
	if err != nil {
		coordinator.logger.Info("no previous scan result", slog.Any("err", err))
		return false
	}

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if coordinator.closed || coordinator.state.Result != nil {
		return false
	}
	coordinator.state.Result = &result
	coordinator.publish(Event{Kind: EventResultLoaded})
	return true
}

// StartScan issues scan-start and polls scan progress. A scan already being
// polled is replaced.
func (coordinator *Coordinator) StartScan(ctx context.Context) error {
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return ErrClosed
	}
	if coordinator.state.Cleanup.Busy() {
		coordinator.mu.Unlock()
		return ErrBusy
	}
	coordinator.mu.Unlock()
	return coordinator.startScan(ctx)
}

func (coordinator *Coordinator) startScan(ctx context.Context) error {
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return ErrClosed
	}
	// Generation zero is never issued, so callbacks still queued from the old
	// loop are dropped from here on.
	coordinator.scanGen = 0
	coordinator.mu.Unlock()
	coordinator.scans.Stop()
	coordinator.scans.Wait()

	if err := coordinator.api.StartScan(ctx); err != nil {
		coordinator.logger.Warn("scan start failed", slog.Any("err", err))
		err = fmt.Errorf("start scan: %w", err)
		coordinator.mu.Lock()
		defer coordinator.mu.Unlock()
		if coordinator.closed {
			return ErrClosed
		}
		coordinator.state.Scan = PhaseIdle
		coordinator.state.Err = err
		coordinator.publish(Event{Kind: EventScanFailed, Err: err})
		return err
	}
	if coordinator.invalidator != nil {
		coordinator.invalidator.Invalidate()
	}

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if coordinator.closed {
		return ErrClosed
	}
	// The poller never runs handlers synchronously, so holding the lock here
	// makes the new generation visible before its first callback.
	coordinator.scanGen = coordinator.scans.Start(coordinator.ctx, coordinator.api.ScanProgress, classifyScan, poller.Handlers[domain.ScanProgress]{
		OnProgress:  coordinator.onScanProgress,
		OnCompleted: coordinator.onScanCompleted,
		OnFailed:    coordinator.onScanFailed,
		OnError:     coordinator.onScanError,
		OnGiveUp:    coordinator.onScanGiveUp,
	})
	coordinator.state.Scan = PhaseRunning
	coordinator.state.ScanProgress = 0
	coordinator.state.Err = nil
	coordinator.publish(Event{Kind: EventScanStarted, Generation: coordinator.scanGen})
	coordinator.logger.Info("scan started", slog.Uint64("generation", uint64(coordinator.scanGen)))
	return nil
}

// PlanCleanup validates the selection and computes what the confirmation
// dialog shows. It never calls the backend.
func (coordinator *Coordinator) PlanCleanup(selection domain.Selection, dryRun bool) (Plan, error) {
	if selection.Empty() {
		return Plan{}, ErrNoSelection
	}
	coordinator.mu.Lock()
	result := coordinator.state.Result
	coordinator.mu.Unlock()
	if result == nil {
		return Plan{}, ErrNoResult
	}

	now := coordinator.now()
	request := selection.CleanupRequest(now, dryRun)
	chats := 0
	for resourceType, keys := range selection.ChatKeys {
		if selection.Selected(resourceType) {
			chats += len(keys)
		}
	}
	return Plan{
		Request:  request,
		Estimate: estimate.Compute(*result, selection, now),
		Types:    len(request.ResourceTypes),
		Chats:    chats,
	}, nil
}

// ConfirmCleanup issues cleanup-start for an accepted plan and polls its
// progress. A successful cleanup starts a new scan.
func (coordinator *Coordinator) ConfirmCleanup(ctx context.Context, plan Plan) error {
	if len(plan.Request.ResourceTypes) == 0 {
		return ErrNoSelection
	}
	coordinator.mu.Lock()
	if coordinator.closed {
		coordinator.mu.Unlock()
		return ErrClosed
	}
	if coordinator.state.Scan.Busy() || coordinator.state.Cleanup.Busy() {
		coordinator.mu.Unlock()
		return ErrBusy
	}
	coordinator.cleanupGen = 0
	coordinator.mu.Unlock()
	coordinator.cleanups.Stop()
	coordinator.cleanups.Wait()

	taskID, err := coordinator.api.StartCleanup(ctx, plan.Request)
	if err != nil {
		coordinator.logger.Warn("cleanup start failed", slog.Any("err", err))
		return fmt.Errorf("start cleanup: %w", err)
	}
	fetch := func(ctx context.Context) (domain.CleanupProgress, error) {
		return coordinator.api.CleanupProgress(ctx, taskID)
	}

	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()
	if coordinator.closed {
		return ErrClosed
	}
	coordinator.cleanupGen = coordinator.cleanups.Start(coordinator.ctx, fetch, classifyCleanup, poller.Handlers[domain.CleanupProgress]{
		OnProgress:  coordinator.onCleanupProgress,
		OnCompleted: coordinator.onCleanupCompleted,
		OnFailed:    coordinator.onCleanupFailed,
		OnError:     coordinator.onCleanupError,
		OnGiveUp:    coordinator.onCleanupGiveUp,
	})
	coordinator.state.Cleanup = PhaseRunning
	coordinator.state.CleanupProgress = domain.CleanupProgress{TaskID: taskID, Status: domain.StatusRunning}
	coordinator.state.Err = nil
	coordinator.publish(Event{Kind: EventCleanupStarted, Generation: coordinator.cleanupGen})
	coordinator.logger.Info("cleanup started",
		slog.String("task", taskID),
		slog.Int("types", plan.Types),
		slog.Int("chats", plan.Chats),
		slog.Bool("dry_run", plan.Request.DryRun),
	)
	return nil
}

func classifyScan(progress domain.ScanProgress) poller.Status {
	return classify(progress.Status)
}

func classifyCleanup(progress domain.CleanupProgress) poller.Status {
	return classify(progress.Status)
}

func classify(status domain.TaskStatus) poller.Status {
	switch status {
	case domain.StatusCompleted:
		return poller.Completed
	case domain.StatusFailed:
		return poller.Failed
	default:
		return poller.Pending
	}
}

// lockScan takes the state lock when generation is the live scan loop.
func (coordinator *Coordinator) lockScan(generation poller.Generation) bool {
	coordinator.mu.Lock()
	if coordinator.closed || generation != coordinator.scanGen {
		coordinator.mu.Unlock()
		return false
	}
	return true
}

func (coordinator *Coordinator) lockCleanup(generation poller.Generation) bool {
	coordinator.mu.Lock()
	if coordinator.closed || generation != coordinator.cleanupGen {
		coordinator.mu.Unlock()
		return false
	}
	return true
}

func (coordinator *Coordinator) onScanProgress(generation poller.Generation, progress domain.ScanProgress) {
	if !coordinator.lockScan(generation) {
		return
	}
	defer coordinator.mu.Unlock()
	coordinator.state.ScanProgress = progress.Progress
	coordinator.publish(Event{Kind: EventScanProgress, Generation: generation})
}

func (coordinator *Coordinator) onScanCompleted(generation poller.Generation, _ domain.ScanProgress) {
	if !coordinator.lockScan(generation) {
		return
	}
	coordinator.state.Scan = PhaseLoadingResult
	coordinator.state.ScanProgress = 100
	coordinator.publish(Event{Kind: EventScanLoading, Generation: generation})
	coordinator.mu.Unlock()

	if coordinator.invalidator != nil {
		coordinator.invalidator.Invalidate()
	}
	result, err := coordinator.results.ScanResult(coordinator.ctx)

	if !coordinator.lockScan(generation) {
		return
	}
	defer coordinator.mu.Unlock()
	if err != nil {
		coordinator.state.Scan = PhaseFailed
		coordinator.state.Err = fmt.Errorf("%w: %v", ErrLoadResult, err)
		coordinator.publish(Event{Kind: EventResultFailed, Generation: generation, Err: coordinator.state.Err})
		coordinator.logger.Warn("scan result fetch failed", slog.Any("err", err))
		return
	}
	coordinator.state.Scan = PhaseIdle
	coordinator.state.Result = &result
	coordinator.publish(Event{Kind: EventScanCompleted, Generation: generation})
	coordinator.logger.Info("scan result loaded",
		slog.Int("categories", len(result.Categories)),
		slog.Int64("bytes", result.Summary.TotalSize),
	)
}

func (coordinator *Coordinator) onScanFailed(generation poller.Generation, progress domain.ScanProgress) {
	coordinator.failScan(generation, jobError(ErrScanFailed, progress.Message))
}

func (coordinator *Coordinator) onScanGiveUp(generation poller.Generation, err error) {
	coordinator.failScan(generation, fmt.Errorf("%w: %v", ErrScanFailed, err))
}

func (coordinator *Coordinator) failScan(generation poller.Generation, err error) {
	if !coordinator.lockScan(generation) {
		return
	}
	defer coordinator.mu.Unlock()
	coordinator.state.Scan = PhaseIdle
	coordinator.state.Err = err
	coordinator.publish(Event{Kind: EventScanFailed, Generation: generation, Err: err})
	coordinator.logger.Warn("scan failed", slog.Any("err", err))
}

func (coordinator *Coordinator) onScanError(generation poller.Generation, err error) {
	if !coordinator.lockScan(generation) {
		return
	}
	defer coordinator.mu.Unlock()
	coordinator.publish(Event{Kind: EventRetrying, Generation: generation, Err: err})
}

func (coordinator *Coordinator) onCleanupProgress(generation poller.Generation, progress domain.CleanupProgress) {
	if !coordinator.lockCleanup(generation) {
		return
	}
	defer coordinator.mu.Unlock()
	coordinator.state.CleanupProgress = progress
	coordinator.publish(Event{Kind: EventCleanupProgress, Generation: generation})
}

func (coordinator *Coordinator) onCleanupCompleted(generation poller.Generation, progress domain.CleanupProgress) {
	if !coordinator.lockCleanup(generation) {
		return
	}
	result := domain.CleanupResultFrom(progress, coordinator.now())
	coordinator.state.Cleanup = PhaseIdle
	coordinator.state.CleanupProgress = progress
	coordinator.state.LastCleanup = &result
	coordinator.publish(Event{Kind: EventCleanupCompleted, Generation: generation})
	coordinator.logger.Info("cleanup completed",
		slog.String("task", result.TaskID),
		slog.Int64("files", result.ProcessedFiles),
		slog.Int64("freed", result.FreedSpace),
	)
	coordinator.mu.Unlock()

	// A failed rescan publishes its own EventScanFailed.
	_ = coordinator.startScan(coordinator.ctx)
}

func (coordinator *Coordinator) onCleanupFailed(generation poller.Generation, progress domain.CleanupProgress) {
	coordinator.failCleanup(generation, progress, jobError(ErrCleanupFailed, progress.Message))
}

func (coordinator *Coordinator) onCleanupGiveUp(generation poller.Generation, err error) {
	coordinator.failCleanup(generation, domain.CleanupProgress{}, fmt.Errorf("%w: %v", ErrCleanupFailed, err))
}

func (coordinator *Coordinator) failCleanup(generation poller.Generation, progress domain.CleanupProgress, err error) {
	if !coordinator.lockCleanup(generation) {
		return
	}
	defer coordinator.mu.Unlock()
	coordinator.state.Cleanup = PhaseIdle
	if progress.TaskID != "" {
		coordinator.state.CleanupProgress = progress
	}
	coordinator.state.Err = err
	coordinator.publish(Event{Kind: EventCleanupFailed, Generation: generation, Err: err})
	coordinator.logger.Warn("cleanup failed", slog.Any("err", err))
}

func (coordinator *Coordinator) onCleanupError(generation poller.Generation, err error) {
	if !coordinator.lockCleanup(generation) {
		return
	}
	defer coordinator.mu.Unlock()
	coordinator.publish(Event{Kind: EventRetrying, Generation: generation, Err: err})
}

func jobError(base error, message string) error {
	if message == "" {
		return base
	}
	return fmt.Errorf("%w: %s", base, message)
}

// publish queues an event carrying the current state. Callers hold mu.
func (coordinator *Coordinator) publish(event Event) {
	if coordinator.closed {
		return
	}
	event.Snapshot = coordinator.state
	coordinator.queue = append(coordinator.queue, event)
	select {
	case coordinator.wake <- struct{}{}:
	default:
	}
}

// pump moves queued events to the out channel so publishers never block on
// a slow reader.
func (coordinator *Coordinator) pump() {
	defer close(coordinator.pumped)
	defer close(coordinator.out)
	for {
		coordinator.mu.Lock()
		pending := coordinator.queue
		coordinator.queue = nil
		coordinator.mu.Unlock()

		for _, event := range pending {
			select {
			case coordinator.out <- event:
			case <-coordinator.ctx.Done():
				return
			}
		}
		select {
		case <-coordinator.wake:
		case <-coordinator.ctx.Done():
			return
		}
	}
}
