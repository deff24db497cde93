package auth

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/forcegrid/sfschema/internal/output"
)

const (
	// lockWait bounds how long a refresh waits for the cross-process lock.
	// A racing pair of expired-token detections must serialize, but a held
	// lock (crashed process, NFS) must never hang the CLI: fail fast.
	lockWait = 5 * time.Second
	lockPoll = 10 * time.Millisecond
)

// refreshLock is the cross-process exclusive lock guarding token refresh for
// one (user, environment) principal. Two near-simultaneous invocations both
// observing an expired token would otherwise perform two refresh exchanges,
// and the second exchange can invalidate the first's refresh token.
type refreshLock struct {
	fl *flock.Flock
}

// acquireRefreshLock obtains the refresh lock for the given scope key.
// Fails with AuthFailed when the lock cannot be acquired within lockWait.
func acquireRefreshLock(ctx context.Context, dir, key string) (*refreshLock, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, output.ErrAuthFailed("Cannot create lock directory", err.Error())
	}

	fl := flock.New(filepath.Join(dir, fmt.Sprintf("refresh-%s.lock", key)))

	lockCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	locked, err := fl.TryLockContext(lockCtx, lockPoll)
	if err != nil {
		if lockCtx.Err() != nil {
			return nil, output.ErrAuthFailed("Timed out waiting for token refresh lock", err.Error())
		}
		return nil, output.ErrAuthFailed("Cannot acquire token refresh lock", err.Error())
	}
	if !locked {
		return nil, output.ErrAuthFailed("Timed out waiting for token refresh lock", "")
	}

	return &refreshLock{fl: fl}, nil
}

func (l *refreshLock) release() {
	if l == nil || l.fl == nil {
		return
	}
	_ = l.fl.Unlock()
}
