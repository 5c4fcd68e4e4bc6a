// Package apksigner wraps the external Android signing toolchain. The
// dependency on the host-installed binaries is isolated here so the
// pipeline can degrade gracefully when they are absent.
package apksigner

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

// RetryPolicy controls transient-failure retries of tool invocations
type RetryPolicy struct {
	// MaxAttempts is the total invocation count, including the first try
	MaxAttempts int

	// Backoff returns the wait before the given 1-based retry attempt
	Backoff func(attempt int) time.Duration
}

// DefaultRetryPolicy retries twice with a linear backoff
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(attempt) * 500 * time.Millisecond
		},
	}
}

// Tool invokes apksigner, with jarsigner as the legacy fallback
type Tool struct {
	// Path is the apksigner binary; JarsignerPath the jarsigner binary
	Path          string
	JarsignerPath string

	// Timeout bounds a single tool invocation
	Timeout time.Duration

	Retry RetryPolicy
}

// NewTool creates a tool wrapper with the default binary names and policy
func NewTool() *Tool {
	return &Tool{
		Path:          "apksigner",
		JarsignerPath: "jarsigner",
		Timeout:       2 * time.Minute,
		Retry:         DefaultRetryPolicy(),
	}
}

// Available reports whether the primary signer is on the path
func (t *Tool) Available() bool {
	_, err := exec.LookPath(t.Path)
	return err == nil
}

// Sign produces v1+v2 signatures on the archive in place
func (t *Tool) Sign(ctx context.Context, apkPath string, identity entities.SigningIdentity) error {
	args := []string{
		"sign",
		"--ks", identity.KeystorePath,
		"--ks-key-alias", identity.Alias,
		"--ks-pass", "pass:" + identity.Password,
		"--v1-signing-enabled", "true",
		"--v2-signing-enabled", "true",
		"--v3-signing-enabled", "false",
		"--v4-signing-enabled", "false",
		apkPath,
	}
	return t.runWithRetry(ctx, t.Path, args)
}

// SignLegacy produces a v1-only signature via jarsigner
func (t *Tool) SignLegacy(ctx context.Context, apkPath string, identity entities.SigningIdentity) error {
	args := []string{
		"-keystore", identity.KeystorePath,
		"-storepass", identity.Password,
		"-sigalg", "SHA256withRSA",
		"-digestalg", "SHA-256",
		apkPath,
		identity.Alias,
	}
	return t.runWithRetry(ctx, t.JarsignerPath, args)
}

// Verify checks the archive's signature with apksigner
func (t *Tool) Verify(ctx context.Context, apkPath string) error {
	return t.run(ctx, t.Path, []string{"verify", apkPath})
}

// runWithRetry retries tool invocations under the configured policy.
// Context cancellation stops the loop immediately.
func (t *Tool) runWithRetry(ctx context.Context, bin string, args []string) error {
	attempts := t.Retry.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = t.run(ctx, bin, args)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < attempts && t.Retry.Backoff != nil {
			select {
			case <-time.After(t.Retry.Backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (t *Tool) run(ctx context.Context, bin string, args []string) error {
	if t.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.Timeout)
		defer cancel()
	}

	//nolint:gosec // G204: Binary and arguments are built from configuration
	cmd := exec.CommandContext(ctx, bin, args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s failed: %w: %s", bin, err, string(output))
	}
	return nil
}
