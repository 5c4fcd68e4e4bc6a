package gateways

import (
	"context"
	"strings"
	"testing"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/domain/services"
)

func resolveManifest(t *testing.T, data []byte, mode entities.Mode) (*entities.ManifestDocument, *entities.ValidationReport) {
	t.Helper()
	report := entities.NewValidationReport()
	resolver := NewManifestResolver(services.OverlayForMode(mode), nil)
	doc, err := resolver.Resolve(context.Background(), data, mode, report)
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return doc, report
}

func TestResolver_TextManifest(t *testing.T) {
	doc, report := resolveManifest(t, []byte(testManifestXML), entities.ModeDebug)

	if doc.Kind != entities.ManifestText {
		t.Errorf("Kind = %v, want text", doc.Kind)
	}
	if pkg, _ := doc.Root.Attr("package"); pkg != "com.example.app" {
		t.Errorf("package = %q, want com.example.app", pkg)
	}
	app := doc.Root.Child("application")
	if got, _ := app.Attr("android:debuggable"); got != "true" {
		t.Error("Overlay did not force android:debuggable")
	}
	if report.Fatal() {
		t.Errorf("Unexpected issues: %v", report.Issues)
	}

	// The resolved document must serialize into parseable XML
	if _, err := services.ParseManifest(services.SerializeManifest(doc.Root)); err != nil {
		t.Fatalf("Resolved manifest does not roundtrip: %v", err)
	}
}

// Binary manifests are replaced wholesale with a synthesized document
func TestResolver_BinaryManifestSynthesized(t *testing.T) {
	binary := []byte{0x03, 0x00, 0x08, 0x00, 0x01, 0x02, 0x03, 0x04}
	doc, report := resolveManifest(t, binary, entities.ModeDebug)

	if doc.Kind != entities.ManifestText {
		t.Errorf("Kind = %v, want text", doc.Kind)
	}
	if doc.Root.Name != "manifest" {
		t.Fatalf("Root = %q, want manifest", doc.Root.Name)
	}
	pkg, _ := doc.Root.Attr("package")
	if !strings.HasPrefix(pkg, services.SynthesizedPackagePrefix) {
		t.Errorf("package = %q, want synthesized prefix", pkg)
	}
	if len(report.Warnings) == 0 {
		t.Error("Expected a replacement warning")
	}
}

// Malformed text manifests parse after the sanitation retry
func TestResolver_SanitationRetry(t *testing.T) {
	broken := `<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.a&b"><application /></manifest>`
	doc, report := resolveManifest(t, []byte(broken), entities.ModeDebug)

	if pkg, _ := doc.Root.Attr("package"); pkg != "com.a&b" {
		t.Errorf("package = %q, want com.a&b", pkg)
	}
	if !report.ManifestValid {
		t.Error("Sanitized manifest should keep ManifestValid true")
	}
	if len(report.Warnings) == 0 {
		t.Error("Expected a sanitation warning")
	}
}

// Unparsable text falls back to a synthesized manifest without failing
func TestResolver_UnparsableTextSynthesized(t *testing.T) {
	doc, report := resolveManifest(t, []byte("<<<<< not xml at all"), entities.ModeDebug)

	if doc.Root.Name != "manifest" {
		t.Fatalf("Root = %q, want manifest", doc.Root.Name)
	}
	if report.ManifestValid {
		t.Error("ManifestValid should be false after synthesis fallback")
	}
}

func TestResolver_SandboxMode(t *testing.T) {
	doc, _ := resolveManifest(t, []byte(testManifestXML), entities.ModeSandbox)

	app := doc.Root.Child("application")
	if got, _ := app.Attr("android:testOnly"); got != "true" {
		t.Error("Sandbox mode should mark the build test-only")
	}

	found := false
	for _, el := range doc.Root.ChildrenNamed("uses-permission") {
		if name, _ := el.Attr("android:name"); name == "com.android.vending.BILLING" {
			found = true
		}
	}
	if !found {
		t.Error("Sandbox mode should inject the billing permission")
	}
}

// The android namespace is always declared on the output root
func TestResolver_EnsuresNamespace(t *testing.T) {
	bare := `<manifest package="com.example.app"><application /></manifest>`
	doc, _ := resolveManifest(t, []byte(bare), entities.ModeDebug)

	if ns, ok := doc.Root.Attr("xmlns:android"); !ok || ns != services.AndroidNamespace {
		t.Errorf("xmlns:android = %q, want %q", ns, services.AndroidNamespace)
	}
}
