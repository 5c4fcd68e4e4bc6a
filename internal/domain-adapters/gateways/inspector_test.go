package gateways

import (
	"context"
	"strings"
	"testing"
)

func TestInspector_EmptyInput(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{}, nil)

	report := inspector.Validate(context.Background(), nil)

	if !report.Fatal() {
		t.Fatal("Expected fatal report for empty input")
	}
	if report.StructureValid || report.InstallationCompatible {
		t.Error("Structure flags should be false for empty input")
	}
}

func TestInspector_NotAnArchive(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{}, nil)

	report := inspector.Validate(context.Background(), []byte("this is not a zip file"))

	if !report.Fatal() {
		t.Fatal("Expected fatal report for non-archive input")
	}
}

func TestInspector_OversizedInput(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{MaxArchiveBytes: 16}, nil)

	report := inspector.Validate(context.Background(), make([]byte, 32))

	if !report.Fatal() {
		t.Fatal("Expected fatal report for oversized input")
	}
	if !strings.Contains(report.Issues[0], "size ceiling") {
		t.Errorf("Expected size ceiling issue, got: %v", report.Issues)
	}
}

func TestInspector_ZeroEntries(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{}, nil)
	data := buildArchive(t, map[string][]byte{})

	report := inspector.Validate(context.Background(), data)

	if !report.Fatal() {
		t.Fatal("Expected fatal report for zero-entry archive")
	}
	if !strings.Contains(report.Issues[0], "zero entries") {
		t.Errorf("Expected zero entries issue, got: %v", report.Issues)
	}
}

func TestInspector_MissingManifest(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{}, nil)
	entries := validPackageEntries()
	delete(entries, "AndroidManifest.xml")

	report := inspector.Validate(context.Background(), buildArchive(t, entries))

	if !report.Fatal() {
		t.Fatal("Expected fatal report for missing manifest")
	}
	if report.ManifestValid {
		t.Error("ManifestValid should be false")
	}
}

// A missing .dex is informational, not fatal
func TestInspector_MissingDex(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{}, nil)
	entries := validPackageEntries()
	delete(entries, "classes.dex")

	report := inspector.Validate(context.Background(), buildArchive(t, entries))

	if report.Fatal() {
		t.Fatalf("Missing .dex should not be fatal, issues: %v", report.Issues)
	}
	if report.DexValid {
		t.Error("DexValid should be false")
	}
	if len(report.Warnings) == 0 {
		t.Error("Expected a warning about missing .dex entries")
	}
}

func TestInspector_ValidPackage(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{}, nil)

	report := inspector.Validate(context.Background(), buildArchive(t, validPackageEntries()))

	if report.Fatal() {
		t.Fatalf("Expected clean report, issues: %v", report.Issues)
	}
	if !report.StructureValid || !report.ManifestValid || !report.DexValid {
		t.Error("Category flags should stay true for a valid package")
	}
	if report.Metadata["manifest.format"] != "text" {
		t.Errorf("manifest.format = %q, want text", report.Metadata["manifest.format"])
	}
}

func TestInspector_BinaryManifestDetected(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{}, nil)
	entries := validPackageEntries()
	entries["AndroidManifest.xml"] = []byte{0x03, 0x00, 0x08, 0x00, 0x01, 0x02}

	report := inspector.Validate(context.Background(), buildArchive(t, entries))

	if report.Fatal() {
		t.Fatalf("Binary manifest should not be fatal at inspection, issues: %v", report.Issues)
	}
	if report.Metadata["manifest.format"] != "binary" {
		t.Errorf("manifest.format = %q, want binary", report.Metadata["manifest.format"])
	}
}

// More corrupt samples than the limit marks the archive corrupt
func TestInspector_CorruptSampleLimit(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{CorruptSampleLimit: 2}, nil)
	data := buildArchiveWithCorrupt(t, map[string][]byte{
		"AndroidManifest.xml": []byte(testManifestXML),
		"classes.dex":         []byte("dex"),
	}, []string{"broken1.bin", "broken2.bin", "broken3.bin"})

	report := inspector.Validate(context.Background(), data)

	if !report.Fatal() {
		t.Fatal("Expected fatal report when corrupt samples exceed the limit")
	}
	if !strings.Contains(report.Issues[0], "unreadable") {
		t.Errorf("Expected corruption issue, got: %v", report.Issues)
	}
}

// A few corrupt samples stay below the threshold and only warn
func TestInspector_CorruptSamplesBelowLimit(t *testing.T) {
	inspector := NewPackageInspector(InspectorConfig{CorruptSampleLimit: 3}, nil)
	data := buildArchiveWithCorrupt(t, validPackageEntries(), []string{"broken.bin"})

	report := inspector.Validate(context.Background(), data)

	if report.Fatal() {
		t.Fatalf("Expected non-fatal report, issues: %v", report.Issues)
	}
	if len(report.Warnings) == 0 {
		t.Error("Expected a warning about failed decompression samples")
	}
}
