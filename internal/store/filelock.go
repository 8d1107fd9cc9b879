package store

import (
	"fmt"
	"time"

	"github.com/gofrs/flock"

	"github.com/tellerline/tellerline/internal/config"
)

// FileLock guards the data directory so exactly one engine process writes the
// store at a time.
type FileLock struct {
	fileLock *flock.Flock
	lockPath string
}

type FileLockConfig struct {
	LockTimeout  time.Duration
	LockRetry    time.Duration
	LockMaxRetry int
}

func DefaultFileLockConfig() *FileLockConfig {
	lockTimeout, _ := config.DurationOrDefault(config.DefaultStoreLockTimeout, config.DefaultStoreLockTimeout)
	lockRetry, _ := config.DurationOrDefault(config.DefaultStoreLockRetry, config.DefaultStoreLockRetry)

	return &FileLockConfig{
		LockTimeout:  lockTimeout,
		LockRetry:    lockRetry,
		LockMaxRetry: config.DefaultStoreLockMaxRetry,
	}
}

func NewFileLock(lockPath string, cfg *FileLockConfig) (*FileLock, error) {
	if cfg == nil {
		cfg = DefaultFileLockConfig()
	}

	fl := &FileLock{
		fileLock: flock.New(lockPath),
		lockPath: lockPath,
	}

	deadline := time.Now().Add(cfg.LockTimeout)
	for i := 0; i < cfg.LockMaxRetry; i++ {
		locked, err := fl.fileLock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("failed to attempt lock: %w", err)
		}
		if locked {
			return fl, nil
		}
		if time.Now().After(deadline) {
			break
		}
		if i < cfg.LockMaxRetry-1 {
			time.Sleep(cfg.LockRetry)
		}
	}

	return nil, fmt.Errorf("store %s is locked by another instance (timeout after %v)", fl.lockPath, cfg.LockTimeout)
}

func (fl *FileLock) Release() error {
	return fl.fileLock.Unlock()
}
