// Package keystore provisions the shared development signing identity.
// It prefers the host keytool; when that is absent a pure-Go self-signed
// certificate is generated so the structural signing fallback still has
// real certificate bytes to embed.
package keystore

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

const (
	// Alias and Password identify the shared development key. They are
	// deliberately public: the identity signs local test builds only.
	Alias    = "apkforgedebugkey"
	Password = "apkforge"

	keystoreFile = "apkforge.keystore"
	certFile     = "apkforge.cert.der"
	keyFile      = "apkforge.key.pem"

	validityDays  = 10000
	distinguished = "CN=APK Forge Debug,O=apkforge,C=US"
)

// Provider lazily creates and then reuses the identity below Dir
type Provider struct {
	// Dir holds the keystore and certificate files
	Dir string

	// ToolPath is the keytool binary
	ToolPath string

	// Timeout bounds a single keytool invocation
	Timeout time.Duration
}

// NewProvider creates a provider storing the identity below dir
func NewProvider(dir string) *Provider {
	return &Provider{
		Dir:      dir,
		ToolPath: "keytool",
		Timeout:  time.Minute,
	}
}

// Ensure returns the shared identity, provisioning it on first use.
// Concurrent first calls are not coordinated; callers share one
// provider per scratch root.
func (p *Provider) Ensure(ctx context.Context) (entities.SigningIdentity, error) {
	if err := os.MkdirAll(p.Dir, 0750); err != nil {
		return entities.SigningIdentity{}, fmt.Errorf("failed to create keystore directory: %w", err)
	}

	keystorePath := filepath.Join(p.Dir, keystoreFile)
	certPath := filepath.Join(p.Dir, certFile)
	keyPath := filepath.Join(p.Dir, keyFile)

	if fileExists(keystorePath) {
		identity := entities.SigningIdentity{KeystorePath: keystorePath, Alias: Alias, Password: Password}
		if fileExists(certPath) {
			identity.CertPath = certPath
		}
		return identity, nil
	}
	if fileExists(certPath) && fileExists(keyPath) {
		return entities.SigningIdentity{Alias: Alias, Password: Password, CertPath: certPath, KeyPath: keyPath}, nil
	}

	if _, err := exec.LookPath(p.ToolPath); err == nil {
		if identity, err := p.provisionWithKeytool(ctx, keystorePath, certPath); err == nil {
			return identity, nil
		}
		// keytool present but failed; fall through to the pure-Go path
	}
	return provisionSelfSigned(certPath, keyPath)
}

// provisionWithKeytool generates the keystore and exports its certificate
func (p *Provider) provisionWithKeytool(ctx context.Context, keystorePath, certPath string) (entities.SigningIdentity, error) {
	genArgs := []string{
		"-genkeypair",
		"-keystore", keystorePath,
		"-storetype", "PKCS12",
		"-alias", Alias,
		"-storepass", Password,
		"-keypass", Password,
		"-keyalg", "RSA",
		"-keysize", "2048",
		"-validity", fmt.Sprintf("%d", validityDays),
		"-dname", distinguished,
	}
	if err := p.run(ctx, genArgs); err != nil {
		return entities.SigningIdentity{}, err
	}

	exportArgs := []string{
		"-exportcert",
		"-keystore", keystorePath,
		"-alias", Alias,
		"-storepass", Password,
		"-file", certPath,
	}
	identity := entities.SigningIdentity{KeystorePath: keystorePath, Alias: Alias, Password: Password}
	if err := p.run(ctx, exportArgs); err == nil {
		identity.CertPath = certPath
	}
	return identity, nil
}

func (p *Provider) run(ctx context.Context, args []string) error {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	//nolint:gosec // G204: Binary and arguments are built from configuration
	cmd := exec.CommandContext(ctx, p.ToolPath, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("keytool failed: %w: %s", err, string(output))
	}
	return nil
}

// provisionSelfSigned generates the identity without keytool. No
// keystore file is written; external signers cannot use this identity,
// but the certificate feeds the structural signing fallback.
func provisionSelfSigned(certPath, keyPath string) (entities.SigningIdentity, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return entities.SigningIdentity{}, fmt.Errorf("failed to generate key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return entities.SigningIdentity{}, fmt.Errorf("failed to generate serial: %w", err)
	}
	template := x509.Certificate{
		SerialNumber: serial,
		Subject: pkix.Name{
			CommonName:   "APK Forge Debug",
			Organization: []string{"apkforge"},
			Country:      []string{"US"},
		},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().AddDate(0, 0, validityDays),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return entities.SigningIdentity{}, fmt.Errorf("failed to create certificate: %w", err)
	}

	if err := os.WriteFile(certPath, certDER, 0640); err != nil {
		return entities.SigningIdentity{}, fmt.Errorf("failed to write certificate: %w", err)
	}
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	if err != nil {
		return entities.SigningIdentity{}, fmt.Errorf("failed to marshal key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER})
	if err := os.WriteFile(keyPath, keyPEM, 0600); err != nil {
		return entities.SigningIdentity{}, fmt.Errorf("failed to write key: %w", err)
	}

	return entities.SigningIdentity{Alias: Alias, Password: Password, CertPath: certPath, KeyPath: keyPath}, nil
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
