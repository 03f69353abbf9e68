// Package storage keeps the client's durable session state: the session
// token cookie and the email waiting for OTP verification.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"
)

const (
	// TokenName is the cookie name the session token is stored under.
	TokenName = "token"
	// TokenTTL is how long a stored session token stays valid.
	TokenTTL = 15 * 24 * time.Hour
	// TokenPath scopes the cookie to the whole site.
	TokenPath = "/"
)

// Cookie is a persisted name/value pair with browser-cookie attributes.
type Cookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
	// Secure restricts the cookie to https transport.
	Secure bool   `json:"secure"`
	Path   string `json:"path"`
}

// Expired reports whether the cookie is past its expiry at now.
func (c Cookie) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

type fileState struct {
	Session      *Cookie `json:"session,omitempty"`
	PendingEmail string  `json:"pending_email,omitempty"`
}

// LocalStorage persists session state as JSON in a single file. An empty
// path keeps everything in memory.
type LocalStorage struct {
	path  string
	mu    sync.Mutex
	state fileState
	// now is replaceable in tests.
	now func() time.Time
}

// NewLocalStorage returns storage backed by the file at path. Call Load to
// read previously persisted state.
func NewLocalStorage(path string) *LocalStorage {
	return &LocalStorage{path: path, now: time.Now}
}

// NewMemoryStorage returns storage that is never written to disk.
func NewMemoryStorage() *LocalStorage {
	return NewLocalStorage("")
}

// Load reads the state file. A missing file yields empty state.
func (ls *LocalStorage) Load() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.state = fileState{}
	if ls.path == "" {
		return nil
	}

	f, err := os.Open(ls.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open session file: %w", err)
	}
	defer f.Close()

	if err := json.NewDecoder(f).Decode(&ls.state); err != nil {
		return fmt.Errorf("decode session file: %w", err)
	}
	return nil
}

// save writes the state file; callers hold mu.
func (ls *LocalStorage) save() error {
	if ls.path == "" {
		return nil
	}
	f, err := os.OpenFile(ls.path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("create session file: %w", err)
	}
	defer f.Close()
	return json.NewEncoder(f).Encode(&ls.state)
}

// Token returns the stored session token. Expired or missing cookies are
// reported as absent.
func (ls *LocalStorage) Token() (string, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	c := ls.state.Session
	if c == nil || c.Value == "" || c.Expired(ls.now()) {
		return "", false
	}
	return c.Value, true
}

// Cookie returns a copy of the stored session cookie, if any.
func (ls *LocalStorage) Cookie() (Cookie, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	if ls.state.Session == nil {
		return Cookie{}, false
	}
	return *ls.state.Session, true
}

// SetToken stores token as a secure, site-wide cookie expiring after TokenTTL.
func (ls *LocalStorage) SetToken(token string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.state.Session = &Cookie{
		Name:    TokenName,
		Value:   token,
		Expires: ls.now().Add(TokenTTL),
		Secure:  true,
		Path:    TokenPath,
	}
	return ls.save()
}

// DeleteToken invalidates the stored session token.
func (ls *LocalStorage) DeleteToken() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.state.Session = nil
	return ls.save()
}

// SetPendingEmail holds email between the login request and OTP verification.
func (ls *LocalStorage) SetPendingEmail(email string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.state.PendingEmail = email
	return ls.save()
}

// PendingEmail returns the held email, if any.
func (ls *LocalStorage) PendingEmail() (string, bool) {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	return ls.state.PendingEmail, ls.state.PendingEmail != ""
}

// ClearPendingEmail drops the held email.
func (ls *LocalStorage) ClearPendingEmail() error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	ls.state.PendingEmail = ""
	return ls.save()
}
