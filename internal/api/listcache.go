package api

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forcegrid/sfschema/internal/config"
)

const (
	// ListCacheTTL is how long a cached object list stays fresh.
	ListCacheTTL = 6 * time.Hour

	// maxCachedListBytes caps the serialized payload size. An oversized put
	// is a logged no-op, never a failed request.
	maxCachedListBytes = 100_000
)

// ListCache is a TTL file cache for the expensive "list all objects"
// endpoint, keyed by environment. Storage failures on either side degrade to
// a cache miss; nothing here ever fails a request.
type ListCache struct {
	dir string
	ttl time.Duration
	now func() time.Time
}

// cachedList is the on-disk record.
type cachedList struct {
	Environment string          `json:"environment"`
	StoredAt    time.Time       `json:"stored_at"`
	TTLSeconds  int64           `json:"ttl_seconds"`
	Payload     json.RawMessage `json:"payload"`
}

// NewListCache creates a list cache rooted at dir.
func NewListCache(dir string) *ListCache {
	return &ListCache{dir: dir, ttl: ListCacheTTL, now: time.Now}
}

func (c *ListCache) path(env config.Environment) string {
	return filepath.Join(c.dir, fmt.Sprintf("objects-%s.json", env))
}

// Get returns the cached payload for the environment, or ok=false on miss,
// expiry, or any storage error.
func (c *ListCache) Get(env config.Environment) (json.RawMessage, bool) {
	data, err := os.ReadFile(c.path(env))
	if err != nil {
		return nil, false
	}

	var entry cachedList
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false
	}
	if entry.Environment != string(env) || len(entry.Payload) == 0 {
		return nil, false
	}

	ttl := c.ttl
	if entry.TTLSeconds > 0 {
		ttl = time.Duration(entry.TTLSeconds) * time.Second
	}
	if c.now().After(entry.StoredAt.Add(ttl)) {
		return nil, false
	}

	return entry.Payload, true
}

// Put stores the payload for the environment. Oversized payloads and storage
// errors are logged no-ops.
func (c *ListCache) Put(env config.Environment, payload json.RawMessage) {
	if len(payload) >= maxCachedListBytes {
		fmt.Fprintf(os.Stderr, "warning: object list for %s is %d bytes, too large to cache\n", env, len(payload))
		return
	}

	entry := cachedList{
		Environment: string(env),
		StoredAt:    c.now(),
		TTLSeconds:  int64(c.ttl / time.Second),
		Payload:     payload,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return
	}
	if err := os.MkdirAll(c.dir, 0700); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot create cache directory: %v\n", err)
		return
	}
	if err := os.WriteFile(c.path(env), data, 0600); err != nil {
		fmt.Fprintf(os.Stderr, "warning: cannot write object list cache: %v\n", err)
	}
}

// Invalidate discards the cached list for the environment.
func (c *ListCache) Invalidate(env config.Environment) {
	_ = os.Remove(c.path(env))
}

// InvalidateAll discards cached lists for every environment. Used on logout
// and environment switch.
func (c *ListCache) InvalidateAll() {
	for _, env := range []config.Environment{config.Production, config.Sandbox} {
		c.Invalidate(env)
	}
}
