// Package status tracks and persists the per-target replication status.
package status

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

const (
	// StatusFileName is the name of the status file
	StatusFileName = "status.json"

	// LockFileName guards a target directory against concurrent writers
	LockFileName = "status.lock"

	lockRetryDelay = 50 * time.Millisecond
)

// Persistence stores target status records
type Persistence interface {
	// SaveStatus saves the status of a specific target
	SaveStatus(ctx context.Context, target string, status *TargetStatus) error

	// LoadStatus loads the status of a specific target
	// Returns an empty TargetStatus if the file doesn't exist (first run)
	LoadStatus(ctx context.Context, target string) (*TargetStatus, error)

	// LoadAllStatus loads the status of all targets
	LoadAllStatus(ctx context.Context) (map[string]*TargetStatus, error)
}

// Locker is implemented by persistences shared between processes
type Locker interface {
	// LockTarget blocks until the status of target is held exclusively or ctx is done
	LockTarget(ctx context.Context, target string) (unlock func(), err error)
}

// fileStatusPersistence implements Persistence using local filesystem
type fileStatusPersistence struct {
	basePath string
}

// NewFileStatusPersistence creates a new file-based status persistence
// basePath is the base directory where per-target status files will be stored
func NewFileStatusPersistence(basePath string) Persistence {
	return &fileStatusPersistence{
		basePath: basePath,
	}
}

// SaveStatus saves the status to a JSON file in a target-specific directory
func (f *fileStatusPersistence) SaveStatus(_ context.Context, target string, status *TargetStatus) error {
	targetDir := filepath.Join(f.basePath, target)
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return fmt.Errorf("failed to create status directory for target '%s': %w", target, err)
	}

	filePath := filepath.Join(targetDir, StatusFileName)

	// Marshal status to JSON with pretty printing for readability
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal status data for target '%s': %w", target, err)
	}

	// Write to temporary file first for atomic operation
	tempPath := filePath + ".tmp"
	if err := os.WriteFile(tempPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary status file for target '%s': %w", target, err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, filePath); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tempPath)
		return fmt.Errorf("failed to rename status file for target '%s': %w", target, err)
	}

	return nil
}

// LockTarget takes an advisory file lock on the target directory
func (f *fileStatusPersistence) LockTarget(ctx context.Context, target string) (func(), error) {
	targetDir := filepath.Join(f.basePath, target)
	if err := os.MkdirAll(targetDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create status directory for target '%s': %w", target, err)
	}

	lock := flock.New(filepath.Join(targetDir, LockFileName))
	locked, err := lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return nil, fmt.Errorf("failed to lock status of target '%s': %w", target, err)
	}
	if !locked {
		return nil, fmt.Errorf("status of target '%s' is locked by another process", target)
	}
	return func() {
		if err := lock.Unlock(); err != nil {
			slog.Warn("Failed to release status lock", "target", target, "error", err)
		}
	}, nil
}

// LoadStatus loads the status from the JSON file of a specific target
// Returns an empty TargetStatus if the file does not exist
func (f *fileStatusPersistence) LoadStatus(_ context.Context, target string) (*TargetStatus, error) {
	targetDir := filepath.Join(f.basePath, target)
	filePath := filepath.Join(targetDir, StatusFileName)

	// Read file
	// #nosec G304 -- filePath is built from basePath and a configured target identifier
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist - this is OK for first run
			return &TargetStatus{}, nil
		}
		return nil, fmt.Errorf("failed to read status file for target '%s': %w", target, err)
	}

	// Unmarshal JSON
	var status TargetStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return nil, fmt.Errorf("failed to unmarshal status data for target '%s': %w", target, err)
	}

	return &status, nil
}

// LoadAllStatus loads the status of all targets that have one
func (f *fileStatusPersistence) LoadAllStatus(ctx context.Context) (map[string]*TargetStatus, error) {
	result := make(map[string]*TargetStatus)

	// Read all subdirectories in the base path
	entries, err := os.ReadDir(f.basePath)
	if err != nil {
		if os.IsNotExist(err) {
			// Base directory doesn't exist yet, return empty map
			return result, nil
		}
		return nil, fmt.Errorf("failed to read status directory: %w", err)
	}

	// For each subdirectory, try to load status
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		target := entry.Name()
		status, err := f.LoadStatus(ctx, target)
		if err != nil {
			slog.Warn("Skipping unreadable target status", "target", target, "error", err)
			continue
		}

		result[target] = status
	}

	return result, nil
}
