package state

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"syscall"
	"time"

	"github.com/hugo-lorenzo-mato/rolechain/internal/core"
)

// Lock error codes.
const (
	CodeLockAcquireFailed = "LOCK_ACQUIRE_FAILED"
	CodeStateCorrupted    = "STATE_CORRUPTED"
)

// lockInfo represents lock file contents.
type lockInfo struct {
	PID        int       `json:"pid"`
	Hostname   string    `json:"hostname"`
	AcquiredAt time.Time `json:"acquired_at"`
}

// acquireFileLock creates lockPath exclusively. A lock left by a dead process
// or older than ttl is taken over.
func acquireFileLock(lockPath string, ttl time.Duration) error {
	if data, err := os.ReadFile(lockPath); err == nil {
		var info lockInfo
		if err := json.Unmarshal(data, &info); err == nil {
			if time.Since(info.AcquiredAt) < ttl && info.PID != os.Getpid() && processExists(info.PID) {
				return core.ErrState(CodeLockAcquireFailed,
					fmt.Sprintf("state locked by PID %d since %s", info.PID, info.AcquiredAt.Format(time.RFC3339)))
			}
		}
		_ = os.Remove(lockPath)
	}

	hostname, _ := os.Hostname()
	data, err := json.Marshal(lockInfo{PID: os.Getpid(), Hostname: hostname, AcquiredAt: time.Now()})
	if err != nil {
		return fmt.Errorf("marshaling lock info: %w", err)
	}

	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return core.ErrState(CodeLockAcquireFailed, "lock file created by another process")
		}
		return fmt.Errorf("creating lock file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		_ = os.Remove(lockPath)
		return fmt.Errorf("writing lock file: %w", err)
	}
	return nil
}

// releaseFileLock removes lockPath if this process owns it.
func releaseFileLock(lockPath string) error {
	data, err := os.ReadFile(lockPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading lock file: %w", err)
	}

	var info lockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("parsing lock info: %w", err)
	}
	if info.PID != os.Getpid() {
		return core.ErrState("LOCK_RELEASE_FAILED", "lock owned by different process")
	}
	return os.Remove(lockPath)
}

// processExists checks if a process is running.
func processExists(pid int) bool {
	// Windows reports no access when signaling the current process; treat that as existing.
	if runtime.GOOS == "windows" && pid == os.Getpid() {
		return true
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix, FindProcess always succeeds, so we send signal 0.
	return process.Signal(syscall.Signal(0)) == nil
}
