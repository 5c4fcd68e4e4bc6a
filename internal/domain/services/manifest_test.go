package services

import (
	"strings"
	"testing"
	"time"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

// A parsed and re-serialized manifest keeps its structure
func TestManifest_Roundtrip(t *testing.T) {
	root := parseTestManifest(t)
	serialized := SerializeManifest(root)

	reparsed, err := ParseManifest(serialized)
	if err != nil {
		t.Fatalf("Failed to reparse serialized manifest: %v", err)
	}

	if pkg, _ := reparsed.Attr("package"); pkg != "com.example.app" {
		t.Errorf("package = %q, want com.example.app", pkg)
	}
	app := reparsed.Child("application")
	if app == nil {
		t.Fatal("Reparsed manifest lost the application element")
	}
	if name, _ := app.Child("activity").Attr("android:name"); name != ".MainActivity" {
		t.Errorf("activity android:name = %q, want .MainActivity", name)
	}
}

func TestParseManifest_RejectsWrongRoot(t *testing.T) {
	_, err := ParseManifest([]byte(`<resources><string name="a">b</string></resources>`))
	if err == nil {
		t.Fatal("Expected error for non-manifest root, got nil")
	}
	if !strings.Contains(err.Error(), "root element") {
		t.Errorf("Expected root element error, got: %v", err)
	}
}

func TestParseManifest_RejectsTruncated(t *testing.T) {
	_, err := ParseManifest([]byte(`<manifest package="a"><application>`))
	if err == nil {
		t.Fatal("Expected error for truncated manifest, got nil")
	}
}

// Attribute values with escaped characters survive serialization
func TestSerializeManifest_EscapesAttributes(t *testing.T) {
	root := &entities.Element{
		Name: "manifest",
		Attrs: []entities.Attr{
			{Key: "package", Value: "com.example.app"},
			{Key: "android:label", Value: `Tom & "Jerry" <demo>`},
		},
	}
	serialized := SerializeManifest(root)

	reparsed, err := ParseManifest(serialized)
	if err != nil {
		t.Fatalf("Failed to reparse: %v", err)
	}
	if label, _ := reparsed.Attr("android:label"); label != `Tom & "Jerry" <demo>` {
		t.Errorf("Label did not survive roundtrip: %q", label)
	}
}

func TestSanitizeManifest(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "bare ampersand escaped",
			input: `<manifest package="a&b" />`,
			want:  `<manifest package="a&amp;b" />`,
		},
		{
			name:  "existing entity preserved",
			input: `<manifest package="a&amp;b" />`,
			want:  `<manifest package="a&amp;b" />`,
		},
		{
			name:  "numeric entity preserved",
			input: `<manifest package="a&#38;b" />`,
			want:  `<manifest package="a&#38;b" />`,
		},
		{
			name:  "control characters stripped",
			input: "<manifest\x00 package=\"a\x01b\" />",
			want:  `<manifest package="ab" />`,
		},
		{
			name:  "whitespace kept",
			input: "<manifest\n\tpackage=\"a\" />",
			want:  "<manifest\n\tpackage=\"a\" />",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := string(SanitizeManifest([]byte(tt.input)))
			if got != tt.want {
				t.Errorf("SanitizeManifest = %q, want %q", got, tt.want)
			}
		})
	}
}

// A manifest broken by a bare ampersand parses after sanitation
func TestSanitizeManifest_EnablesRetry(t *testing.T) {
	broken := `<manifest package="com.a&b"><application /></manifest>`
	if _, err := ParseManifest([]byte(broken)); err == nil {
		t.Fatal("Expected the broken manifest to fail parsing")
	}

	root, err := ParseManifest(SanitizeManifest([]byte(broken)))
	if err != nil {
		t.Fatalf("Sanitized manifest still fails to parse: %v", err)
	}
	if pkg, _ := root.Attr("package"); pkg != "com.a&b" {
		t.Errorf("package = %q, want com.a&b", pkg)
	}
}

func TestEnsureNamespace(t *testing.T) {
	root := &entities.Element{Name: "manifest"}
	EnsureNamespace(root)
	if ns, _ := root.Attr("xmlns:android"); ns != AndroidNamespace {
		t.Errorf("xmlns:android = %q, want %q", ns, AndroidNamespace)
	}

	// Second call must not duplicate the declaration
	EnsureNamespace(root)
	if len(root.Attrs) != 1 {
		t.Errorf("Expected 1 attribute, got %d", len(root.Attrs))
	}
}

func TestSynthesizeManifest(t *testing.T) {
	now := time.Unix(1700000000, 0)
	root := SynthesizeManifest(entities.ModeDebug, now)

	if root.Name != "manifest" {
		t.Fatalf("Root = %q, want manifest", root.Name)
	}
	pkg, _ := root.Attr("package")
	if !strings.HasPrefix(pkg, SynthesizedPackagePrefix+".") {
		t.Errorf("package = %q, want prefix %s.", pkg, SynthesizedPackagePrefix)
	}
	if code, _ := root.Attr("android:versionCode"); code != "1700000000" {
		t.Errorf("versionCode = %q, want 1700000000", code)
	}

	app := root.Child("application")
	if app == nil {
		t.Fatal("Synthesized manifest has no application element")
	}
	activity := app.Child("activity")
	if activity == nil || activity.Child("intent-filter") == nil {
		t.Fatal("Synthesized manifest has no launcher activity")
	}

	// The synthesized document must serialize and reparse cleanly
	if _, err := ParseManifest(SerializeManifest(root)); err != nil {
		t.Fatalf("Synthesized manifest does not roundtrip: %v", err)
	}
}

func TestSynthesizePackageName_Unique(t *testing.T) {
	a := SynthesizePackageName()
	b := SynthesizePackageName()
	if a == b {
		t.Errorf("Generated package names collide: %s", a)
	}
}
