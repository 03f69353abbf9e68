package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_FileNotExist(t *testing.T) {
	ls := NewLocalStorage(filepath.Join(t.TempDir(), "session.json"))
	if err := ls.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if _, ok := ls.Token(); ok {
		t.Error("expected no token")
	}
	if _, ok := ls.PendingEmail(); ok {
		t.Error("expected no pending email")
	}
}

func TestLoad_FileExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	state := fileState{
		Session:      &Cookie{Name: TokenName, Value: "tok", Expires: time.Now().Add(time.Hour), Secure: true, Path: "/"},
		PendingEmail: "a@b.com",
	}
	buf, _ := json.Marshal(&state)
	if err := os.WriteFile(path, buf, 0600); err != nil {
		t.Fatal(err)
	}

	ls := NewLocalStorage(path)
	if err := ls.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tok, ok := ls.Token(); !ok || tok != "tok" {
		t.Errorf("Token() = %q, %v; want tok, true", tok, ok)
	}
	if email, ok := ls.PendingEmail(); !ok || email != "a@b.com" {
		t.Errorf("PendingEmail() = %q, %v", email, ok)
	}
}

func TestLoad_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte("{"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := NewLocalStorage(path).Load(); err == nil {
		t.Error("expected decode error")
	}
}

func TestSetToken_PersistsCookieAttributes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ls := NewLocalStorage(path)
	ls.now = func() time.Time { return now }
	if err := ls.SetToken("abc"); err != nil {
		t.Fatalf("SetToken failed: %v", err)
	}

	reread := NewLocalStorage(path)
	reread.now = ls.now
	if err := reread.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c, ok := reread.Cookie()
	if !ok {
		t.Fatal("cookie not persisted")
	}
	if c.Value != "abc" || !c.Secure || c.Path != "/" || c.Name != TokenName {
		t.Errorf("unexpected cookie: %+v", c)
	}
	if !c.Expires.Equal(now.Add(15 * 24 * time.Hour)) {
		t.Errorf("expires = %v; want 15 days after %v", c.Expires, now)
	}
}

func TestToken_Expired(t *testing.T) {
	ls := NewMemoryStorage()
	start := time.Now()
	ls.now = func() time.Time { return start }
	if err := ls.SetToken("abc"); err != nil {
		t.Fatal(err)
	}
	ls.now = func() time.Time { return start.Add(TokenTTL) }
	if _, ok := ls.Token(); ok {
		t.Error("expired token must read as absent")
	}
}

func TestDeleteToken(t *testing.T) {
	ls := NewMemoryStorage()
	_ = ls.SetToken("abc")
	if err := ls.DeleteToken(); err != nil {
		t.Fatal(err)
	}
	if _, ok := ls.Token(); ok {
		t.Error("token still present after delete")
	}
}

func TestPendingEmail(t *testing.T) {
	ls := NewMemoryStorage()
	if err := ls.SetPendingEmail("x@y.z"); err != nil {
		t.Fatal(err)
	}
	if email, ok := ls.PendingEmail(); !ok || email != "x@y.z" {
		t.Errorf("PendingEmail() = %q, %v", email, ok)
	}
	_ = ls.ClearPendingEmail()
	if _, ok := ls.PendingEmail(); ok {
		t.Error("pending email not cleared")
	}
}
