package certgen

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewCA(t *testing.T) {
	ca, err := NewCA("Test CA", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	if !ca.Cert.IsCA || !ca.Cert.BasicConstraintsValid {
		t.Error("expected a CA certificate")
	}
	if ca.Cert.KeyUsage&x509.KeyUsageCertSign == 0 {
		t.Errorf("KeyUsage = %v; want CertSign", ca.Cert.KeyUsage)
	}
	if ca.Cert.Subject.CommonName != "Test CA" {
		t.Errorf("CommonName = %q", ca.Cert.Subject.CommonName)
	}
}

func TestIssueServer(t *testing.T) {
	ca, err := NewCA("Test CA", 24*time.Hour)
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}

	certPEM, keyPEM, err := ca.IssueServer([]string{"localhost", "127.0.0.1"}, time.Hour)
	if err != nil {
		t.Fatalf("IssueServer: %v", err)
	}

	if _, err := tls.X509KeyPair(certPEM, keyPEM); err != nil {
		t.Fatalf("certificate and key do not match: %v", err)
	}

	block, _ := pem.Decode(certPEM)
	if block == nil || block.Type != "CERTIFICATE" {
		t.Fatalf("expected CERTIFICATE PEM block; got %v", block)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	pool := x509.NewCertPool()
	pool.AddCert(ca.Cert)
	for _, host := range []string{"localhost", "127.0.0.1"} {
		if _, err := cert.Verify(x509.VerifyOptions{DNSName: host, Roots: pool}); err != nil {
			t.Errorf("verify for %s: %v", host, err)
		}
	}
	if _, err := cert.Verify(x509.VerifyOptions{DNSName: "example.com", Roots: pool}); err == nil {
		t.Error("expected verification to fail for an unlisted host")
	}
}

func TestIssueServer_NoHosts(t *testing.T) {
	ca, err := NewCA("Test CA", time.Hour)
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	if _, _, err := ca.IssueServer(nil, time.Hour); err == nil {
		t.Error("expected error for empty host list")
	}
}

func TestWriteAndLoadCA(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "ca.crt")
	keyPath := filepath.Join(dir, "ca.key")

	ca, err := NewCA("Test CA", time.Hour)
	if err != nil {
		t.Fatalf("NewCA: %v", err)
	}
	certPEM, keyPEM, err := ca.PEM()
	if err != nil {
		t.Fatalf("PEM: %v", err)
	}
	if err := WritePair(certPath, keyPath, certPEM, keyPEM); err != nil {
		t.Fatalf("WritePair: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("stat key: %v", err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Errorf("key permissions = %v; want 0600", info.Mode().Perm())
	}

	loaded, err := LoadCA(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadCA: %v", err)
	}
	if !loaded.Cert.Equal(ca.Cert) {
		t.Error("loaded certificate does not match")
	}
	if !loaded.Key.Equal(ca.Key) {
		t.Error("loaded key does not match")
	}
}

func TestLoadCA_Errors(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.pem")
	if err := os.WriteFile(bad, []byte("not a pem"), 0o600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadCA(filepath.Join(dir, "missing.crt"), bad); err == nil {
		t.Error("expected error for missing cert")
	}
	if _, err := LoadCA(bad, bad); err == nil {
		t.Error("expected error for invalid PEM")
	}
}
