package keystore

import (
	"context"
	"crypto/x509"
	"os"
	"testing"
)

func newOfflineProvider(t *testing.T) *Provider {
	t.Helper()
	p := NewProvider(t.TempDir())
	// Force the pure-Go path regardless of the host toolchain
	p.ToolPath = "definitely-not-a-real-keytool-binary"
	return p
}

func TestProvider_SelfSignedFallback(t *testing.T) {
	p := newOfflineProvider(t)

	identity, err := p.Ensure(context.Background())
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	if identity.Alias != Alias || identity.Password != Password {
		t.Errorf("Identity = %+v, want the shared alias and password", identity)
	}
	if identity.KeystorePath != "" {
		t.Error("Pure-Go identity should not claim a keystore file")
	}
	if identity.CertPath == "" || identity.KeyPath == "" {
		t.Fatal("Pure-Go identity must carry certificate and key paths")
	}

	certDER, err := os.ReadFile(identity.CertPath)
	if err != nil {
		t.Fatalf("Certificate not on disk: %v", err)
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		t.Fatalf("Certificate is not valid DER: %v", err)
	}
	if cert.Subject.CommonName != "APK Forge Debug" {
		t.Errorf("CN = %q, want APK Forge Debug", cert.Subject.CommonName)
	}
}

// A second Ensure reuses the provisioned identity
func TestProvider_ReusesIdentity(t *testing.T) {
	p := newOfflineProvider(t)

	first, err := p.Ensure(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	firstCert, err := os.ReadFile(first.CertPath)
	if err != nil {
		t.Fatal(err)
	}

	second, err := p.Ensure(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.CertPath != first.CertPath {
		t.Error("Second Ensure returned a different certificate path")
	}
	secondCert, err := os.ReadFile(second.CertPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(firstCert) != string(secondCert) {
		t.Error("Second Ensure regenerated the certificate")
	}
}
