package auth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forcegrid/sfschema/internal/output"
)

func TestAcquireRefreshLockExcludes(t *testing.T) {
	dir := t.TempDir()

	lock, err := acquireRefreshLock(context.Background(), dir, "production")
	require.NoError(t, err)
	defer lock.release()

	contender := flock.New(filepath.Join(dir, "refresh-production.lock"))
	locked, err := contender.TryLock()
	require.NoError(t, err)
	assert.False(t, locked, "held refresh lock must exclude other acquirers")
}

func TestAcquireRefreshLockTimesOut(t *testing.T) {
	dir := t.TempDir()

	holder := flock.New(filepath.Join(dir, "refresh-production.lock"))
	require.NoError(t, holder.Lock())
	defer func() { _ = holder.Unlock() }()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := acquireRefreshLock(ctx, dir, "production")
	var apiErr *output.Error
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, output.CodeAuthFailed, apiErr.Code)
	assert.Contains(t, apiErr.Message, "Timed out")
}

func TestAcquireRefreshLockScopesByKey(t *testing.T) {
	dir := t.TempDir()

	prod, err := acquireRefreshLock(context.Background(), dir, "production")
	require.NoError(t, err)
	defer prod.release()

	// A different principal's refresh never contends.
	sand, err := acquireRefreshLock(context.Background(), dir, "sandbox")
	require.NoError(t, err)
	sand.release()
}

func TestReleaseNilLock(t *testing.T) {
	var lock *refreshLock
	lock.release()
}
