package gateways

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/avast/apkparser"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/domain/interfaces"
	"github.com/halcyonlabs/apkforge/internal/domain/services"
)

// manifestResolver turns raw manifest bytes into a text document with
// the overlay applied. Binary manifests are replaced wholesale by a
// synthesized document (there is no binary encoder); text manifests
// are parsed, sanitized once on failure, and synthesized as the last
// resort.
type manifestResolver struct {
	overlay entities.OverlaySet
	logger  interfaces.Logger
	now     func() time.Time
}

// NewManifestResolver creates a resolver carrying the overlay set to
// merge into every resolved manifest.
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewManifestResolver(overlay entities.OverlaySet, logger interfaces.Logger) *manifestResolver {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &manifestResolver{overlay: overlay, logger: logger, now: time.Now}
}

// Resolve produces the replacement manifest document. The result is
// always a text document; the original bytes survive only as report
// metadata.
func (g *manifestResolver) Resolve(_ context.Context, manifestBytes []byte, mode entities.Mode, report *entities.ValidationReport) (*entities.ManifestDocument, error) {
	var root *entities.Element

	if entities.IsBinaryManifest(manifestBytes) {
		root = g.synthesizeFromBinary(manifestBytes, mode, report)
	} else {
		root = g.parseText(manifestBytes, mode, report)
	}

	services.EnsureNamespace(root)
	merged := services.MergeOverlay(root, g.overlay, mode)

	return &entities.ManifestDocument{Kind: entities.ManifestText, Root: merged}, nil
}

// parseText parses a text manifest with one sanitation retry and a
// synthesis fallback.
func (g *manifestResolver) parseText(data []byte, mode entities.Mode, report *entities.ValidationReport) *entities.Element {
	root, err := services.ParseManifest(data)
	if err == nil {
		return root
	}
	g.logger.Warn("manifest parse failed, sanitizing", interfaces.F("error", err))

	root, retryErr := services.ParseManifest(services.SanitizeManifest(data))
	if retryErr == nil {
		report.AddWarning(fmt.Sprintf("manifest required sanitation before parsing: %v", err))
		return root
	}

	report.AddWarning(fmt.Sprintf("manifest unparsable after sanitation, synthesized a replacement: %v", retryErr))
	report.ManifestValid = false
	return services.SynthesizeManifest(mode, g.now())
}

// synthesizeFromBinary replaces a binary manifest with a synthesized
// document. When apkparser can decode the binary XML, the original
// package name is preserved as an informational meta-data entry.
func (g *manifestResolver) synthesizeFromBinary(data []byte, mode entities.Mode, report *entities.ValidationReport) *entities.Element {
	report.AddWarning("binary manifest replaced with a synthesized text manifest")
	root := services.SynthesizeManifest(mode, g.now())

	origin, ok := g.decodeBinary(data)
	if !ok {
		return root
	}
	if pkg, found := origin.Attr("package"); found && pkg != "" {
		report.Metadata["origin.package"] = pkg
		if app := root.Child("application"); app != nil {
			app.Children = append(app.Children, &entities.Element{
				Name: "meta-data",
				Attrs: []entities.Attr{
					{Key: "android:name", Value: "apkforge.origin.package"},
					{Key: "android:value", Value: pkg},
				},
			})
		}
	}
	return root
}

// decodeBinary is a best-effort AXML decode used purely for metadata
// recovery; the decoded tree never becomes the output manifest.
func (g *manifestResolver) decodeBinary(data []byte) (root *entities.Element, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Debug("binary manifest decode panicked", interfaces.F("cause", r))
			root, ok = nil, false
		}
	}()

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)
	if err := apkparser.ParseXml(bytes.NewReader(data), enc, nil); err != nil {
		g.logger.Debug("binary manifest decode failed", interfaces.F("error", err))
		return nil, false
	}
	//nolint:errcheck // Flush into bytes.Buffer cannot fail
	enc.Flush()

	decoded, err := services.ParseManifest(buf.Bytes())
	if err != nil {
		return nil, false
	}
	return decoded, true
}
