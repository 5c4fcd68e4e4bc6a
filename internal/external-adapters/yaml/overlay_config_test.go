package yaml

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

const sampleOverlay = `
permissions:
  - android.permission.BODY_SENSORS
booleans:
  - name: custom_flag
    value: true
strings:
  - name: custom_endpoint
    value: http://10.0.2.2:9000
integers:
  - name: custom_timeout
    value: 5000
arrays:
  - name: custom_hosts
    items:
      - a.example.com
      - b.example.com
services:
  - name: com.example.DebugService
    exported: false
    attrs:
      android:process: ":debug"
`

func TestOverlayParser_Parse(t *testing.T) {
	set, err := NewOverlayParser().Parse([]byte(sampleOverlay))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(set.Permissions) != 1 || set.Permissions[0] != "android.permission.BODY_SENSORS" {
		t.Errorf("Permissions = %v", set.Permissions)
	}
	if len(set.Booleans) != 1 || !set.Booleans[0].Value {
		t.Errorf("Booleans = %v", set.Booleans)
	}
	if len(set.Integers) != 1 || set.Integers[0].Value != 5000 {
		t.Errorf("Integers = %v", set.Integers)
	}
	if len(set.Arrays) != 1 || len(set.Arrays[0].Items) != 2 {
		t.Errorf("Arrays = %v", set.Arrays)
	}
	if len(set.Services) != 1 {
		t.Fatalf("Services = %v", set.Services)
	}
	svc := set.Services[0]
	if svc.Name != "com.example.DebugService" || svc.Exported {
		t.Errorf("Service = %+v", svc)
	}
	if len(svc.Attrs) != 1 || svc.Attrs[0].Key != "android:process" || svc.Attrs[0].Value != ":debug" {
		t.Errorf("Service attrs = %v", svc.Attrs)
	}
}

func TestOverlayParser_ParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlay.yaml")
	if err := os.WriteFile(path, []byte(sampleOverlay), 0600); err != nil {
		t.Fatal(err)
	}

	set, err := NewOverlayParser().ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile failed: %v", err)
	}
	if len(set.Permissions) != 1 {
		t.Errorf("Permissions = %v", set.Permissions)
	}
}

func TestOverlayParser_MissingFile(t *testing.T) {
	if _, err := NewOverlayParser().ParseFile(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestOverlayParser_InvalidYAML(t *testing.T) {
	if _, err := NewOverlayParser().Parse([]byte("permissions: [unclosed")); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

// A parsed set merges atop the built-ins without duplicating names
func TestOverlayParser_MergesWithBuiltins(t *testing.T) {
	extra, err := NewOverlayParser().Parse([]byte(sampleOverlay))
	if err != nil {
		t.Fatal(err)
	}

	base := entities.OverlaySet{Permissions: []string{"android.permission.INTERNET"}}
	merged := base.Merge(extra)

	if len(merged.Permissions) != 2 {
		t.Errorf("Permissions = %v, want 2 entries", merged.Permissions)
	}

	// Merging the same extras again must not grow the set
	again := merged.Merge(extra)
	if len(again.Permissions) != len(merged.Permissions) || len(again.Services) != len(merged.Services) {
		t.Error("Repeated merge duplicated declarations")
	}
}
