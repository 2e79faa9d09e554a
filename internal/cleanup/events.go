package cleanup

import (
	"errors"

	"spacesweep/internal/domain"
	"spacesweep/internal/poller"
)

var (
	// ErrNoSelection blocks a cleanup with no resource type selected. No
	// backend call is made.
	ErrNoSelection = errors.New("select at least one resource type to clean")
	// ErrNoResult means a cleanup was planned before any scan result loaded.
	ErrNoResult = errors.New("no scan result loaded")
	// ErrScanFailed means the backend reported the scan job as failed.
	ErrScanFailed = errors.New("scan failed")
	// ErrLoadResult means the scan finished but its result could not be
	// fetched.
	ErrLoadResult = errors.New("failed to load scan result")
	// ErrCleanupFailed means the backend reported the cleanup job as failed.
	ErrCleanupFailed = errors.New("cleanup failed")
	ErrBusy          = errors.New("a scan or cleanup is already running")
	ErrClosed        = errors.New("coordinator closed")
)

// Phase is the state of one workflow.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseLoadingResult
	PhaseFailed
)

func (phase Phase) String() string {
	switch phase {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseLoadingResult:
		return "loading result"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (phase Phase) Busy() bool {
	return phase == PhaseRunning || phase == PhaseLoadingResult
}

type EventKind int

const (
	EventScanStarted EventKind = iota
	EventScanProgress
	EventScanLoading
	EventScanCompleted
	EventScanFailed
	EventResultFailed
	EventCleanupStarted
	EventCleanupProgress
	EventCleanupCompleted
	EventCleanupFailed
	// EventRetrying reports a transient poll error. The workflow keeps
	// polling.
	EventRetrying
	// EventResultLoaded reports a previous scan result found at startup.
	EventResultLoaded
)

func (kind EventKind) String() string {
	switch kind {
	case EventScanStarted:
		return "scan started"
	case EventScanProgress:
		return "scan progress"
	case EventScanLoading:
		return "loading scan result"
	case EventScanCompleted:
		return "scan completed"
	case EventScanFailed:
		return "scan failed"
	case EventResultFailed:
		return "result failed"
	case EventCleanupStarted:
		return "cleanup started"
	case EventCleanupProgress:
		return "cleanup progress"
	case EventCleanupCompleted:
		return "cleanup completed"
	case EventCleanupFailed:
		return "cleanup failed"
	case EventRetrying:
		return "retrying"
	case EventResultLoaded:
		return "result loaded"
	default:
		return "unknown"
	}
}

// Snapshot is a copy of the coordinator's workflow state.
type Snapshot struct {
	Scan            Phase
	ScanProgress    float64
	Cleanup         Phase
	CleanupProgress domain.CleanupProgress
	Result          *domain.ScanResult
	LastCleanup     *domain.CleanupResult
	Err             error
}

// Busy reports whether either workflow is in flight.
func (snapshot Snapshot) Busy() bool {
	return snapshot.Scan.Busy() || snapshot.Cleanup.Busy()
}

// Event is published for every state change. Events of a replaced poll loop
// are never published after the loop that replaced it has started.
type Event struct {
	Kind       EventKind
	Generation poller.Generation
	Snapshot   Snapshot
	Err        error
}

// Plan is what the confirmation dialog shows before a cleanup is issued.
type Plan struct {
	Request  domain.CleanupRequest
	Estimate domain.Estimate
	Types    int
	Chats    int
}
