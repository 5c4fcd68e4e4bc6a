package gateways

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/domain/interfaces"
)

// canonicalResourceDirs are created on every run so downstream tooling
// finds the directory shape it expects even in resource-less inputs.
var canonicalResourceDirs = []string{
	"values",
	"values-v21",
	"values-v23",
	"values-v28",
	"xml",
	"drawable",
	"drawable-hdpi",
	"drawable-xhdpi",
	"layout",
	"color",
	"raw",
}

// networkSecurityConfig permits cleartext traffic and user certificates
// for the debug/test domain set. Written verbatim each run.
const networkSecurityConfig = `<?xml version="1.0" encoding="utf-8"?>
<network-security-config>
    <base-config cleartextTrafficPermitted="true">
        <trust-anchors>
            <certificates src="system" />
            <certificates src="user" />
        </trust-anchors>
    </base-config>
    <domain-config cleartextTrafficPermitted="true">
        <domain includeSubdomains="true">localhost</domain>
        <domain includeSubdomains="true">127.0.0.1</domain>
        <domain includeSubdomains="true">10.0.2.2</domain>
        <domain includeSubdomains="true">192.168.0.0/16</domain>
        <domain includeSubdomains="true">172.16.0.0/12</domain>
        <domain includeSubdomains="true">10.0.0.0/8</domain>
        <domain includeSubdomains="true">.local</domain>
    </domain-config>
    <debug-overrides>
        <trust-anchors>
            <certificates src="system" />
            <certificates src="user" />
        </trust-anchors>
    </debug-overrides>
</network-security-config>
`

// filePathsConfig exposes every FileProvider root used during testing
const filePathsConfig = `<?xml version="1.0" encoding="utf-8"?>
<paths>
    <files-path name="internal_files" path="." />
    <cache-path name="internal_cache" path="." />
    <external-path name="external_root" path="." />
    <external-files-path name="external_files" path="." />
    <external-cache-path name="external_cache" path="." />
    <root-path name="device_root" path="." />
</paths>
`

// resourceOverlayBuilder writes the synthetic resource overlay. Every
// generated file is owned wholesale by the builder and overwritten each
// run, so declarations are duplicate-free by construction.
type resourceOverlayBuilder struct {
	logger interfaces.Logger
}

// NewResourceOverlayBuilder creates a new overlay builder
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewResourceOverlayBuilder(logger interfaces.Logger) *resourceOverlayBuilder {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &resourceOverlayBuilder{logger: logger}
}

// Build materializes the overlay below workTree/res and returns the
// archive entry names of every written file.
func (g *resourceOverlayBuilder) Build(_ context.Context, workTree string, mode entities.Mode, set entities.OverlaySet) ([]string, error) {
	resRoot := filepath.Join(workTree, "res")
	for _, dir := range canonicalResourceDirs {
		if err := os.MkdirAll(filepath.Join(resRoot, dir), 0750); err != nil {
			return nil, fmt.Errorf("failed to create resource directory %s: %w", dir, err)
		}
	}

	files := map[string][]byte{
		"res/xml/network_security_config.xml": []byte(networkSecurityConfig),
		"res/xml/file_paths.xml":              []byte(filePathsConfig),
		"res/values/debug_config.xml":         renderValues(set, false),
	}
	if mode.Extended() {
		files["res/values/sandbox_config.xml"] = renderValues(set, true)
	}

	var written []string
	for name, content := range files {
		dest := filepath.Join(workTree, filepath.FromSlash(name))
		if err := os.WriteFile(dest, content, 0640); err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, name)
	}
	sort.Strings(written)

	g.logger.Info("resource overlay written", interfaces.F("files", len(written)), interfaces.F("mode", string(mode)))
	return written, nil
}

// renderValues serializes the overlay's value resources. The extended
// file carries only the arrays plus the bypass-oriented declarations so
// the two files never declare the same name.
func renderValues(set entities.OverlaySet, extended bool) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n<resources>\n")

	if !extended {
		for _, b := range set.Booleans {
			fmt.Fprintf(&buf, "    <bool name=%q>%t</bool>\n", b.Name, b.Value)
		}
		for _, s := range set.Strings {
			fmt.Fprintf(&buf, "    <string name=%q>%s</string>\n", s.Name, escapeResourceText(s.Value))
		}
		for _, i := range set.Integers {
			fmt.Fprintf(&buf, "    <integer name=%q>%d</integer>\n", i.Name, i.Value)
		}
	} else {
		for _, a := range set.Arrays {
			fmt.Fprintf(&buf, "    <string-array name=%q>\n", a.Name)
			for _, item := range a.Items {
				fmt.Fprintf(&buf, "        <item>%s</item>\n", escapeResourceText(item))
			}
			buf.WriteString("    </string-array>\n")
		}
	}

	buf.WriteString("</resources>\n")
	return buf.Bytes()
}

// escapeResourceText escapes configured values so a literal & or < in an
// overlay declaration cannot break the generated resource file.
func escapeResourceText(s string) string {
	var buf bytes.Buffer
	//nolint:errcheck // Writes to a bytes.Buffer cannot fail
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}
