package services

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"spacesweep/internal/domain"
)

var (
	ErrUnknownTask     = errors.New("unknown cleanup task")
	ErrNothingSelected = errors.New("no resource types in cleanup request")
)

type localCleanup struct {
	progress domain.CleanupProgress
}

type candidate struct {
	path string
	size int64
}

func (backend *LocalBackend) StartCleanup(ctx context.Context, req domain.CleanupRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.ResourceTypes) == 0 {
		return "", ErrNothingSelected
	}
	for _, resourceType := range req.ResourceTypes {
		spec, ok := findSpec(backend.catalog, resourceType)
		if !ok {
			return "", fmt.Errorf("unknown resource type %q", resourceType)
		}
		if !spec.canCleanup {
			return "", fmt.Errorf("resource type %q cannot be cleaned", resourceType)
		}
	}

	taskID := uuid.NewString()
	backend.mu.Lock()
	backend.cleanups[taskID] = &localCleanup{progress: domain.CleanupProgress{
		TaskID: taskID,
		Status: domain.StatusRunning,
	}}
	backend.mu.Unlock()

	backend.wg.Add(1)
	go func() {
		defer backend.wg.Done()
		backend.runCleanup(backend.ctx, taskID, req)
	}()
	backend.logger.Info("cleanup started",
		slog.String("task", taskID),
		slog.Int("types", len(req.ResourceTypes)),
		slog.Int("chats", len(req.ChatKeys)),
		slog.Bool("dry_run", req.DryRun),
	)
	return taskID, nil
}

func (backend *LocalBackend) CleanupProgress(ctx context.Context, taskID string) (domain.CleanupProgress, error) {
	if err := ctx.Err(); err != nil {
		return domain.CleanupProgress{}, err
	}
	backend.mu.RLock()
	defer backend.mu.RUnlock()
	task, ok := backend.cleanups[taskID]
	if !ok {
		return domain.CleanupProgress{}, fmt.Errorf("%w: %s", ErrUnknownTask, taskID)
	}
	return task.progress, nil
}

func (backend *LocalBackend) runCleanup(ctx context.Context, taskID string, req domain.CleanupRequest) {
	candidates, err := backend.collectCandidates(ctx, req)
	if err != nil {
		backend.updateCleanup(taskID, func(progress *domain.CleanupProgress) {
			progress.Status = domain.StatusFailed
			progress.Message = err.Error()
		})
		return
	}
	total := int64(len(candidates))
	backend.updateCleanup(taskID, func(progress *domain.CleanupProgress) {
		progress.TotalFiles = total
	})

	var processed, freed, failures int64
	for _, item := range candidates {
		if ctx.Err() != nil {
			break
		}
		if !req.DryRun {
			if err := os.Remove(item.path); err != nil {
				failures++
				backend.logger.Debug("remove failed", slog.String("path", item.path), slog.Any("err", err))
				continue
			}
		}
		processed++
		freed += item.size
		if processed%25 == 0 {
			backend.updateCleanup(taskID, func(progress *domain.CleanupProgress) {
				progress.ProcessedFiles = processed
				progress.FreedSpace = freed
				progress.Progress = percent(int(processed+failures), int(total))
			})
		}
	}
	if !req.DryRun {
		backend.pruneEmptyDirs(req)
	}

	backend.updateCleanup(taskID, func(progress *domain.CleanupProgress) {
		progress.ProcessedFiles = processed
		progress.FreedSpace = freed
		if err := ctx.Err(); err != nil {
			progress.Status = domain.StatusFailed
			progress.Message = "cleanup cancelled"
			return
		}
		progress.Status = domain.StatusCompleted
		progress.Progress = 100
		progress.Message = cleanupMessage(processed, failures, req.DryRun)
	})
	backend.logger.Info("cleanup finished",
		slog.String("task", taskID),
		slog.Int64("files", processed),
		slog.Int64("failed", failures),
		slog.Int64("freed", freed),
	)
}

func cleanupMessage(processed, failures int64, dryRun bool) string {
	verb := "removed"
	if dryRun {
		verb = "would remove"
	}
	if failures > 0 {
		return fmt.Sprintf("%s %d files, %d failed", verb, processed, failures)
	}
	return fmt.Sprintf("%s %d files", verb, processed)
}

func (backend *LocalBackend) updateCleanup(taskID string, update func(*domain.CleanupProgress)) {
	backend.mu.Lock()
	defer backend.mu.Unlock()
	if task, ok := backend.cleanups[taskID]; ok {
		update(&task.progress)
	}
}

// collectCandidates lists the files a request would remove. Chat keys narrow
// a chat-grouped category when any of them belonged to it in the last scan or
// names one of its chat directories now. A narrowed category whose chats are
// all gone yields nothing.
func (backend *LocalBackend) collectCandidates(ctx context.Context, req domain.CleanupRequest) ([]candidate, error) {
	var candidates []candidate
	for _, resourceType := range req.ResourceTypes {
		spec, _ := findSpec(backend.catalog, resourceType)
		dir := filepath.Join(backend.root, filepath.FromSlash(spec.dir))
		if !isWithin(backend.root, dir) {
			return nil, fmt.Errorf("category %s resolves outside %s", resourceType, backend.root)
		}
		roots := []string{dir}
		if spec.grouping == groupByChat {
			if owned := ownedChats(dir, req.ChatKeys, backend.scannedChats(resourceType)); len(owned) > 0 {
				roots = existingChats(dir, owned)
			} else {
				roots = chatDirs(dir)
			}
		}
		var cutoff time.Time
		if req.BeforeDate != nil && spec.supportsTimeFilter {
			cutoff = *req.BeforeDate
		}
		for _, root := range roots {
			found, err := listFiles(ctx, root, cutoff)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, found...)
		}
	}
	return candidates, nil
}

func validChatKey(key string) bool {
	return key != "" && key == filepath.Base(key) && key != "." && key != ".."
}

func ownedChats(dir string, chatKeys []string, scanned map[string]bool) []string {
	var owned []string
	for _, key := range chatKeys {
		if !validChatKey(key) {
			continue
		}
		if scanned[key] {
			owned = append(owned, key)
			continue
		}
		if info, err := os.Lstat(filepath.Join(dir, key)); err == nil && info.IsDir() {
			owned = append(owned, key)
		}
	}
	return owned
}

func existingChats(dir string, chatKeys []string) []string {
	var roots []string
	for _, key := range chatKeys {
		path := filepath.Join(dir, key)
		if info, err := os.Lstat(path); err == nil && info.IsDir() {
			roots = append(roots, path)
		}
	}
	return roots
}

// chatDirs lists every chat directory of a chat-grouped category.
func chatDirs(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var roots []string
	for _, entry := range entries {
		if entry.IsDir() {
			roots = append(roots, filepath.Join(dir, entry.Name()))
		}
	}
	return roots
}

func listFiles(ctx context.Context, root string, cutoff time.Time) ([]candidate, error) {
	var found []candidate
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) || isPermissionErr(err) {
				return nil
			}
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if entry.IsDir() {
			return nil
		}
		info, err := entry.Info()
		if err != nil {
			return nil
		}
		if !cutoff.IsZero() && !info.ModTime().Before(cutoff) {
			return nil
		}
		found = append(found, candidate{path: path, size: info.Size()})
		return nil
	})
	return found, err
}

// pruneEmptyDirs removes directories left empty below each cleaned category.
// Category roots themselves stay.
func (backend *LocalBackend) pruneEmptyDirs(req domain.CleanupRequest) {
	for _, resourceType := range req.ResourceTypes {
		spec, _ := findSpec(backend.catalog, resourceType)
		dir := filepath.Join(backend.root, filepath.FromSlash(spec.dir))
		var dirs []string
		_ = filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
			if err == nil && entry.IsDir() && path != dir {
				dirs = append(dirs, path)
			}
			return nil
		})
		for index := len(dirs) - 1; index >= 0; index-- {
			// Remove fails on non-empty directories, which is what we want.
			_ = os.Remove(dirs[index])
		}
	}
}
