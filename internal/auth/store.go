package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/zalando/go-keyring"
)

const serviceName = "sfschema"

// memoTTL bounds how long a loaded token may be served from memory before
// the durable store is consulted again.
const memoTTL = 30 * time.Second

// Token holds the OAuth credential set for one (user, environment) scope.
// InstanceURL is always the value returned by the token endpoint — the API
// host routinely differs from the login host and must never be hardcoded.
type Token struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token"`
	ExpiresAt     int64  `json:"expires_at"`
	InstanceURL   string `json:"instance_url"`
	TokenType     string `json:"token_type"`
	TokenEndpoint string `json:"token_endpoint"`
	Scope         string `json:"scope,omitempty"`
}

// Store handles token storage, preferring the system keychain with a
// plaintext file fallback. A short-lived in-memory read-through cache sits
// in front of the durable store.
type Store struct {
	useKeyring  bool
	fallbackDir string

	mu   sync.Mutex
	memo map[string]memoEntry
	now  func() time.Time
}

type memoEntry struct {
	tok      *Token
	loadedAt time.Time
}

// NewStore creates a token store rooted at fallbackDir.
func NewStore(fallbackDir string) *Store {
	s := &Store{fallbackDir: fallbackDir, memo: make(map[string]memoEntry), now: time.Now}

	// Skip keyring for tests or when explicitly disabled
	if os.Getenv("SFSCHEMA_NO_KEYRING") != "" {
		return s
	}

	// Test if keyring is available
	testKey := "sfschema::probe"
	if err := keyring.Set(serviceName, testKey, "probe"); err == nil {
		_ = keyring.Delete(serviceName, testKey) // Best-effort cleanup
		s.useKeyring = true
		return s
	}
	fmt.Fprintf(os.Stderr, "warning: system keyring unavailable, tokens stored in plaintext at %s\n",
		filepath.Join(fallbackDir, "tokens.json"))
	return s
}

func storageKey(key string) string {
	return fmt.Sprintf("sfschema::%s", key)
}

// Load retrieves the token for the given scope key.
func (s *Store) Load(key string) (*Token, error) {
	s.mu.Lock()
	if e, ok := s.memo[key]; ok && s.now().Sub(e.loadedAt) < memoTTL {
		tok := e.tok
		s.mu.Unlock()
		return tok, nil
	}
	s.mu.Unlock()

	var tok *Token
	var err error
	if s.useKeyring {
		tok, err = s.loadFromKeyring(key)
	} else {
		tok, err = s.loadFromFile(key)
	}
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.memo[key] = memoEntry{tok: tok, loadedAt: s.now()}
	s.mu.Unlock()
	return tok, nil
}

// Reload retrieves the token for the given scope key straight from the
// durable store, bypassing the memo. Refresh coordination needs this: another
// process may have replaced the token, and the memo would serve the stale one.
func (s *Store) Reload(key string) (*Token, error) {
	var tok *Token
	var err error
	if s.useKeyring {
		tok, err = s.loadFromKeyring(key)
	} else {
		tok, err = s.loadFromFile(key)
	}
	if err != nil {
		s.mu.Lock()
		delete(s.memo, key)
		s.mu.Unlock()
		return nil, err
	}

	s.mu.Lock()
	s.memo[key] = memoEntry{tok: tok, loadedAt: s.now()}
	s.mu.Unlock()
	return tok, nil
}

// Save stores the token for the given scope key.
func (s *Store) Save(key string, tok *Token) error {
	var err error
	if s.useKeyring {
		err = s.saveToKeyring(key, tok)
	} else {
		err = s.saveToFile(key, tok)
	}
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.memo[key] = memoEntry{tok: tok, loadedAt: s.now()}
	s.mu.Unlock()
	return nil
}

// Delete removes the token for the given scope key.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	delete(s.memo, key)
	s.mu.Unlock()

	if s.useKeyring {
		return keyring.Delete(serviceName, storageKey(key))
	}
	return s.deleteFromFile(key)
}

// UsingKeyring reports whether tokens are held in the system keyring.
func (s *Store) UsingKeyring() bool {
	return s.useKeyring
}

// Keyring methods

func (s *Store) loadFromKeyring(key string) (*Token, error) {
	data, err := keyring.Get(serviceName, storageKey(key))
	if err != nil {
		return nil, fmt.Errorf("token not found: %w", err)
	}

	var tok Token
	if err := json.Unmarshal([]byte(data), &tok); err != nil {
		return nil, fmt.Errorf("invalid token record: %w", err)
	}
	return &tok, nil
}

func (s *Store) saveToKeyring(key string, tok *Token) error {
	data, err := json.Marshal(tok)
	if err != nil {
		return err
	}
	return keyring.Set(serviceName, storageKey(key), string(data))
}

// File fallback methods

func (s *Store) tokensPath() string {
	return filepath.Join(s.fallbackDir, "tokens.json")
}

func (s *Store) loadAllFromFile() (map[string]*Token, error) {
	data, err := os.ReadFile(s.tokensPath())
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]*Token), nil
		}
		return nil, err
	}

	var all map[string]*Token
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	return all, nil
}

func (s *Store) saveAllToFile(all map[string]*Token) error {
	if err := os.MkdirAll(s.fallbackDir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write with randomized temp file name
	tmpFile, err := os.CreateTemp(s.fallbackDir, "tokens-*.json.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Chmod(0600); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	// Unix: rename atomically replaces the destination.
	// Windows: rename fails when destination exists.
	destPath := s.tokensPath()
	if err := os.Rename(tmpPath, destPath); err != nil {
		if runtime.GOOS == "windows" {
			_ = os.Remove(destPath)
			return os.Rename(tmpPath, destPath)
		}
		os.Remove(tmpPath)
		return err
	}
	return nil
}

func (s *Store) loadFromFile(key string) (*Token, error) {
	all, err := s.loadAllFromFile()
	if err != nil {
		return nil, err
	}

	tok, ok := all[key]
	if !ok {
		return nil, fmt.Errorf("token not found for %s", key)
	}
	return tok, nil
}

func (s *Store) saveToFile(key string, tok *Token) error {
	all, err := s.loadAllFromFile()
	if err != nil {
		return err
	}

	all[key] = tok
	return s.saveAllToFile(all)
}

func (s *Store) deleteFromFile(key string) error {
	all, err := s.loadAllFromFile()
	if err != nil {
		return err
	}

	delete(all, key)
	return s.saveAllToFile(all)
}
