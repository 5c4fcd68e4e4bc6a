package gateways

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

// stubTool is a controllable SigningTool for tests
type stubTool struct {
	available  bool
	signErr    error
	legacyErr  error
	verifyErr  error
	signCalls  int
	legacyCall int
}

func (s *stubTool) Available() bool { return s.available }

func (s *stubTool) Sign(_ context.Context, _ string, _ entities.SigningIdentity) error {
	s.signCalls++
	return s.signErr
}

func (s *stubTool) SignLegacy(_ context.Context, _ string, _ entities.SigningIdentity) error {
	s.legacyCall++
	return s.legacyErr
}

func (s *stubTool) Verify(_ context.Context, _ string) error { return s.verifyErr }

// stubKeystore returns a fixed identity
type stubKeystore struct {
	identity entities.SigningIdentity
	err      error
}

func (s *stubKeystore) Ensure(_ context.Context) (entities.SigningIdentity, error) {
	return s.identity, s.err
}

func writeUnsignedArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "unsigned.apk")
	data := buildArchive(t, map[string][]byte{
		"AndroidManifest.xml": []byte(testManifestXML),
		"classes.dex":         []byte("dex"),
	})
	if err := os.WriteFile(path, data, 0640); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSigner_ToolSigns(t *testing.T) {
	tool := &stubTool{available: true}
	signer := NewPackageSigner(tool, &stubKeystore{identity: entities.SigningIdentity{Alias: "k"}}, nil)
	report := entities.NewValidationReport()

	state, err := signer.Sign(context.Background(), writeUnsignedArchive(t), report)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if state != entities.Signed {
		t.Errorf("State = %s, want %s", state, entities.Signed)
	}
	if tool.signCalls != 1 || tool.legacyCall != 0 {
		t.Errorf("Expected one primary sign call, got %d/%d", tool.signCalls, tool.legacyCall)
	}
	if report.Metadata["signing.verified"] != "tool" {
		t.Errorf("signing.verified = %q, want tool", report.Metadata["signing.verified"])
	}
}

// The legacy signer picks up when the primary fails
func TestSigner_LegacyFallback(t *testing.T) {
	tool := &stubTool{available: true, signErr: errors.New("boom")}
	signer := NewPackageSigner(tool, &stubKeystore{identity: entities.SigningIdentity{Alias: "k"}}, nil)
	report := entities.NewValidationReport()

	state, err := signer.Sign(context.Background(), writeUnsignedArchive(t), report)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if state != entities.Signed {
		t.Errorf("State = %s, want %s", state, entities.Signed)
	}
	if tool.legacyCall != 1 {
		t.Error("Expected the legacy signer to run")
	}
	if len(report.Warnings) == 0 {
		t.Error("Expected a warning about the primary signer failing")
	}
}

// With no tool at all the structural triple is written
func TestSigner_StructuralFallback(t *testing.T) {
	tool := &stubTool{available: false, verifyErr: errors.New("unavailable")}
	signer := NewPackageSigner(tool, &stubKeystore{identity: entities.SigningIdentity{Alias: "k"}}, nil)
	report := entities.NewValidationReport()
	apkPath := writeUnsignedArchive(t)

	state, err := signer.Sign(context.Background(), apkPath, report)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if state != entities.SignFallback {
		t.Errorf("State = %s, want %s", state, entities.SignFallback)
	}

	signed, err := os.ReadFile(apkPath)
	if err != nil {
		t.Fatal(err)
	}
	zr, err := zip.NewReader(bytes.NewReader(signed), int64(len(signed)))
	if err != nil {
		t.Fatalf("Signed archive unreadable: %v", err)
	}
	triple := map[string]bool{}
	for _, f := range zr.File {
		triple[f.Name] = true
	}
	for _, name := range []string{"META-INF/MANIFEST.MF", "META-INF/CERT.SF", "META-INF/CERT.RSA"} {
		if !triple[name] {
			t.Errorf("Fallback triple missing %s", name)
		}
	}
	if report.Metadata["signing.verified"] != "structural" {
		t.Errorf("signing.verified = %q, want structural", report.Metadata["signing.verified"])
	}
}

// A missing identity still produces a fallback-signed archive
func TestSigner_NoIdentity(t *testing.T) {
	tool := &stubTool{available: true}
	signer := NewPackageSigner(tool, &stubKeystore{err: errors.New("no keytool")}, nil)
	report := entities.NewValidationReport()

	state, err := signer.Sign(context.Background(), writeUnsignedArchive(t), report)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if state != entities.SignFallback {
		t.Errorf("State = %s, want %s", state, entities.SignFallback)
	}
	if tool.signCalls != 0 {
		t.Error("Tool must not run without an identity")
	}
	if len(report.Warnings) == 0 {
		t.Error("Expected a warning about the missing identity")
	}
}

// The fallback certificate bytes come from the identity when available
func TestSigner_FallbackUsesCertificate(t *testing.T) {
	dir := t.TempDir()
	certPath := filepath.Join(dir, "cert.der")
	certBytes := []byte{0x30, 0x82, 0x01, 0x02}
	if err := os.WriteFile(certPath, certBytes, 0640); err != nil {
		t.Fatal(err)
	}

	tool := &stubTool{available: false, verifyErr: errors.New("unavailable")}
	signer := NewPackageSigner(tool, &stubKeystore{identity: entities.SigningIdentity{Alias: "k", CertPath: certPath}}, nil)
	report := entities.NewValidationReport()
	apkPath := writeUnsignedArchive(t)

	if _, err := signer.Sign(context.Background(), apkPath, report); err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	signed, _ := os.ReadFile(apkPath)
	zr, err := zip.NewReader(bytes.NewReader(signed), int64(len(signed)))
	if err != nil {
		t.Fatal(err)
	}
	for _, f := range zr.File {
		if f.Name != "META-INF/CERT.RSA" {
			continue
		}
		rc, _ := f.Open()
		data := make([]byte, len(certBytes))
		if _, err := io.ReadFull(rc, data); err != nil {
			t.Fatal(err)
		}
		//nolint:errcheck // Close on read-only stream
		rc.Close()
		if !bytes.Equal(data, certBytes) {
			t.Error("CERT.RSA does not carry the identity certificate")
		}
	}
}
