package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"time"

	"spacesweep/internal/domain"
	"spacesweep/internal/logging"
)

const defaultMaxFileDetail = 500

// LocalBackend serves the space API from a platform data directory on this
// machine. Jobs run in background goroutines and are observed by polling,
// the same way the remote backend behaves.
type LocalBackend struct {
	root          string
	catalog       []categorySpec
	maxFileDetail int
	workers       int
	logger        *slog.Logger
	now           func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu       sync.RWMutex
	scan     localScan
	cleanups map[string]*localCleanup
}

type localScan struct {
	seq      uint64
	cancel   context.CancelFunc
	status   domain.TaskStatus
	progress float64
	message  string
	result   *domain.ScanResult
}

type LocalOption func(*LocalBackend)

// WithMaxFileDetail sets how many files a chat may hold before its per-file
// listing is left out of scan results.
func WithMaxFileDetail(limit int) LocalOption {
	return func(backend *LocalBackend) {
		backend.maxFileDetail = limit
	}
}

func WithLocalLogger(logger *slog.Logger) LocalOption {
	return func(backend *LocalBackend) {
		backend.logger = logger
	}
}

func WithClock(now func() time.Time) LocalOption {
	return func(backend *LocalBackend) {
		backend.now = now
	}
}

func NewLocalBackend(root string, opts ...LocalOption) (*LocalBackend, error) {
	root = cleanPath(root)
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	if isCriticalPath(root) {
		return nil, fmt.Errorf("refusing to manage protected path %s", root)
	}
	ctx, cancel := context.WithCancel(context.Background())
	backend := &LocalBackend{
		root:          root,
		catalog:       defaultCatalog(),
		maxFileDetail: defaultMaxFileDetail,
		workers:       maxInt(2, runtime.NumCPU()),
		logger:        logging.Discard(),
		now:           time.Now,
		ctx:           ctx,
		cancel:        cancel,
		scan:          localScan{status: domain.StatusIdle},
		cleanups:      make(map[string]*localCleanup),
	}
	for _, opt := range opts {
		opt(backend)
	}
	return backend, nil
}

// Close cancels running jobs and waits for them to stop.
func (backend *LocalBackend) Close() error {
	backend.cancel()
	backend.wg.Wait()
	return nil
}

func (backend *LocalBackend) StartScan(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	backend.mu.Lock()
	if backend.scan.cancel != nil {
		backend.scan.cancel()
	}
	scanCtx, cancel := context.WithCancel(backend.ctx)
	backend.scan.seq++
	seq := backend.scan.seq
	backend.scan.cancel = cancel
	backend.scan.status = domain.StatusRunning
	backend.scan.progress = 0
	backend.scan.message = ""
	backend.mu.Unlock()

	backend.wg.Add(1)
	go func() {
		defer backend.wg.Done()
		defer cancel()
		backend.runScan(scanCtx, seq)
	}()
	return nil
}

func (backend *LocalBackend) ScanProgress(ctx context.Context) (domain.ScanProgress, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScanProgress{}, err
	}
	backend.mu.RLock()
	defer backend.mu.RUnlock()
	return domain.ScanProgress{
		Status:   backend.scan.status,
		Progress: backend.scan.progress,
		Message:  backend.scan.message,
	}, nil
}

// scannedChats returns the chat keys the last completed scan recorded for
// resourceType.
func (backend *LocalBackend) scannedChats(resourceType domain.ResourceType) map[string]bool {
	backend.mu.RLock()
	defer backend.mu.RUnlock()
	chats := make(map[string]bool)
	if backend.scan.result == nil {
		return chats
	}
	if category, ok := backend.scan.result.Category(resourceType); ok {
		for _, chat := range category.ChatResources {
			chats[chat.ChatKey] = true
		}
	}
	return chats
}

func (backend *LocalBackend) ScanResult(ctx context.Context) (domain.ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.ScanResult{}, err
	}
	backend.mu.RLock()
	defer backend.mu.RUnlock()
	if backend.scan.result == nil {
		return domain.ScanResult{}, ErrNoResult
	}
	return *backend.scan.result, nil
}

type fileJob struct {
	category int
	group    string
	path     string
}

type fileResult struct {
	job     fileJob
	size    int64
	modTime time.Time
	err     error
}

// runScan sizes every catalog file. Starting another scan cancels this one;
// its outcome is then discarded.
func (backend *LocalBackend) runScan(ctx context.Context, seq uint64) {
	start := backend.now()
	jobs, err := backend.collectJobs(ctx)
	if err != nil {
		backend.finishScan(seq, nil, err)
		return
	}

	results := make(chan fileResult, backend.workers*8)
	queue := make(chan fileJob, backend.workers*8)
	var wg sync.WaitGroup
	for i := 0; i < backend.workers; i++ {
		wg.Add(1)
		go worker(ctx, queue, results, &wg)
	}
	go func() {
		defer close(queue)
		for _, job := range jobs {
			select {
			case <-ctx.Done():
				return
			case queue <- job:
			}
		}
	}()
	go func() {
		wg.Wait()
		close(results)
	}()

	builder := newResultBuilder(backend.catalog, backend.maxFileDetail)
	total := len(jobs)
	processed := 0
	for result := range results {
		processed++
		if result.err != nil {
			backend.logger.Debug("stat failed", slog.String("path", result.job.path), slog.Any("err", result.err))
		} else {
			builder.add(result)
		}
		if processed%50 == 0 {
			backend.setScanProgress(seq, percent(processed, total))
		}
	}
	if err := ctx.Err(); err != nil {
		backend.finishScan(seq, nil, err)
		return
	}

	result := builder.build()
	end := backend.now()
	result.Summary.DurationSeconds = end.Sub(start).Seconds()
	result.Summary.EndTime = end
	result.DiskInfo = diskInfoFor(backend.root)
	result.DiskInfo.DataDirSize = result.Summary.TotalSize
	backend.finishScan(seq, &result, nil)
	backend.logger.Info("scan finished",
		slog.Int64("files", result.Summary.TotalFiles),
		slog.Int64("bytes", result.Summary.TotalSize),
		slog.Duration("elapsed", end.Sub(start)),
	)
}

// collectJobs lists every file of every catalog category. Files sitting
// directly in a chat-grouped directory belong to no chat; they are left out
// of the scan and cleanup never touches them.
func (backend *LocalBackend) collectJobs(ctx context.Context) ([]fileJob, error) {
	var jobs []fileJob
	for index, spec := range backend.catalog {
		dir := filepath.Join(backend.root, filepath.FromSlash(spec.dir))
		walkErr := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err != nil {
				if errors.Is(err, fs.ErrNotExist) || isPermissionErr(err) {
					return nil
				}
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if entry.IsDir() || entry.Type()&fs.ModeSymlink != 0 {
				return nil
			}
			group := groupKey(spec, dir, path)
			if spec.grouping == groupByChat && group == "" {
				return nil
			}
			jobs = append(jobs, fileJob{category: index, group: group, path: path})
			return nil
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}
	return jobs, nil
}

func groupKey(spec categorySpec, dir, path string) string {
	if spec.grouping == groupNone {
		return ""
	}
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return ""
	}
	parts := splitPath(rel)
	if len(parts) < 2 {
		return ""
	}
	return parts[0]
}

func worker(ctx context.Context, jobs <-chan fileJob, results chan<- fileResult, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		if ctx.Err() != nil {
			return
		}
		info, err := os.Lstat(job.path)
		if err != nil {
			results <- fileResult{job: job, err: err}
			continue
		}
		results <- fileResult{job: job, size: info.Size(), modTime: info.ModTime()}
	}
}

func (backend *LocalBackend) setScanProgress(seq uint64, progress float64) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.scan.seq == seq && backend.scan.status == domain.StatusRunning {
		backend.scan.progress = progress
	}
}

func (backend *LocalBackend) finishScan(seq uint64, result *domain.ScanResult, err error) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if backend.scan.seq != seq {
		return
	}
	backend.scan.cancel = nil
	if err != nil {
		backend.scan.status = domain.StatusFailed
		backend.scan.message = err.Error()
		backend.logger.Warn("scan failed", slog.Any("err", err))
		return
	}
	backend.scan.status = domain.StatusCompleted
	backend.scan.progress = 100
	backend.scan.result = result
}

type groupTotals struct {
	size  int64
	count int64
	files []domain.FileEntry
}

type resultBuilder struct {
	catalog       []categorySpec
	maxFileDetail int
	totals        []groupTotals
	groups        []map[string]*groupTotals
}

func newResultBuilder(catalog []categorySpec, maxFileDetail int) *resultBuilder {
	builder := &resultBuilder{
		catalog:       catalog,
		maxFileDetail: maxFileDetail,
		totals:        make([]groupTotals, len(catalog)),
		groups:        make([]map[string]*groupTotals, len(catalog)),
	}
	for i := range builder.groups {
		builder.groups[i] = make(map[string]*groupTotals)
	}
	return builder
}

func (builder *resultBuilder) add(result fileResult) {
	index := result.job.category
	builder.totals[index].size += result.size
	builder.totals[index].count++
	if result.job.group == "" {
		return
	}
	group, ok := builder.groups[index][result.job.group]
	if !ok {
		group = &groupTotals{}
		builder.groups[index][result.job.group] = group
	}
	group.size += result.size
	group.count++
	group.files = append(group.files, domain.FileEntry{Size: result.size, ModifiedTime: result.modTime})
}

func (builder *resultBuilder) build() domain.ScanResult {
	var result domain.ScanResult
	for index, spec := range builder.catalog {
		category := domain.ResourceCategory{
			ResourceType:       spec.resourceType,
			Description:        spec.description,
			CanCleanup:         spec.canCleanup,
			RiskLevel:          spec.risk,
			SupportsTimeFilter: spec.supportsTimeFilter,
			TotalSize:          builder.totals[index].size,
			FileCount:          builder.totals[index].count,
		}
		keys := make([]string, 0, len(builder.groups[index]))
		for key := range builder.groups[index] {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		switch spec.grouping {
		case groupByChat:
			category.ChatResources = make([]domain.ChatResource, 0, len(keys))
			for _, key := range keys {
				group := builder.groups[index][key]
				chat := domain.ChatResource{ChatKey: key, TotalSize: group.size, FileCount: group.count}
				if builder.maxFileDetail <= 0 || len(group.files) <= builder.maxFileDetail {
					chat.Files = append(make([]domain.FileEntry, 0, len(group.files)), group.files...)
				}
				category.ChatResources = append(category.ChatResources, chat)
			}
		case groupByPlugin:
			for _, key := range keys {
				group := builder.groups[index][key]
				category.PluginResources = append(category.PluginResources, domain.PluginResource{
					PluginName: key,
					TotalSize:  group.size,
					FileCount:  group.count,
				})
			}
		}
		result.Summary.TotalFiles += category.FileCount
		result.Summary.TotalSize += category.TotalSize
		result.Categories = append(result.Categories, category)
	}
	return result
}
