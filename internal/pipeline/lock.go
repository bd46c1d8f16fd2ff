package pipeline

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is the run lock kept inside the output directory.
const LockFileName = ".labelreel.lock"

// ErrOutputLocked means another run is writing to the same output directory.
var ErrOutputLocked = errors.New("output directory is locked by another run")

// lockOutput creates dir and takes an exclusive, non-blocking lock on it.
func lockOutput(dir string) (*flock.Flock, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output directory: %w", err)
	}
	lock := flock.New(filepath.Join(dir, LockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire output lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOutputLocked, dir)
	}
	return lock, nil
}
