package util

import (
	"crypto/x509"
	"os"
	"path/filepath"
	"testing"
)

// TestGenerateSelfSignedCert tests the LoadOrGenerateCert function for correctness.
func TestGenerateSelfSignedCert(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "tls", "tls.crt")
	keyPath := filepath.Join(dir, "tls", "tls.key")

	cert, err := LoadOrGenerateCert(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadOrGenerateCert() failed: %v", err)
	}

	if _, err := os.Stat(certPath); os.IsNotExist(err) {
		t.Errorf("Expected certificate file %s does not exist", certPath)
	}
	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("Expected key file %s: %v", keyPath, err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file mode = %o, want 600", perm)
	}

	if len(cert.Certificate) == 0 {
		t.Fatal("Generated certificate has no data")
	}
	if cert.PrivateKey == nil {
		t.Errorf("Generated certificate has no private key")
	}
	parsed, err := x509.ParseCertificate(cert.Certificate[0])
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}
	if err := parsed.VerifyHostname("localhost"); err != nil {
		t.Errorf("certificate does not cover localhost: %v", err)
	}
}

// TestLoadOrGenerateCertReuses checks that an existing pair is loaded, not replaced.
func TestLoadOrGenerateCertReuses(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "tls.crt")
	keyPath := filepath.Join(dir, "tls.key")

	first, err := LoadOrGenerateCert(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadOrGenerateCert() failed: %v", err)
	}
	second, err := LoadOrGenerateCert(certPath, keyPath)
	if err != nil {
		t.Fatalf("LoadOrGenerateCert() second call failed: %v", err)
	}
	if string(first.Certificate[0]) != string(second.Certificate[0]) {
		t.Error("existing certificate was regenerated")
	}
}

// TestLoadCertFromFiles_InvalidPath tests loading certificates from invalid file paths.
func TestLoadCertFromFiles_InvalidPath(t *testing.T) {
	dir := t.TempDir()
	_, err := loadCertFromFiles(filepath.Join(dir, "invalid.crt"), filepath.Join(dir, "invalid.key"))
	if err == nil {
		t.Error("Expected error loading certificate from invalid paths, got nil")
	}
}
