package gateways

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shogo82148/androidbinary/apk"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/domain/interfaces"
)

// InspectorConfig bounds the structural validation pass
type InspectorConfig struct {
	// MaxArchiveBytes is the input size ceiling; zero uses the default
	MaxArchiveBytes int64

	// SampleBudget is how many leading entries get a decompression probe
	SampleBudget int

	// CorruptSampleLimit is the number of unreadable samples tolerated
	// before the archive is treated as corrupt
	CorruptSampleLimit int
}

const (
	defaultMaxArchiveBytes    = 500 * 1024 * 1024
	defaultSampleBudget       = 10
	defaultCorruptSampleLimit = 3
)

// packageInspector performs structural and format validation of an
// uploaded archive without extracting it.
type packageInspector struct {
	cfg    InspectorConfig
	logger interfaces.Logger
}

// NewPackageInspector creates a new inspector
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewPackageInspector(cfg InspectorConfig, logger interfaces.Logger) *packageInspector {
	if cfg.MaxArchiveBytes <= 0 {
		cfg.MaxArchiveBytes = defaultMaxArchiveBytes
	}
	if cfg.SampleBudget <= 0 {
		cfg.SampleBudget = defaultSampleBudget
	}
	if cfg.CorruptSampleLimit <= 0 {
		cfg.CorruptSampleLimit = defaultCorruptSampleLimit
	}
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &packageInspector{cfg: cfg, logger: logger}
}

// Validate checks the archive and returns the per-run report. Fatal
// findings land in Issues; everything non-fatal is a warning or a log
// line, never an error.
func (g *packageInspector) Validate(_ context.Context, data []byte) *entities.ValidationReport {
	report := entities.NewValidationReport()

	if len(data) == 0 {
		report.AddIssue("empty archive: input contains no bytes")
		report.StructureValid = false
		report.InstallationCompatible = false
		return report
	}
	if int64(len(data)) > g.cfg.MaxArchiveBytes {
		report.AddIssue(fmt.Sprintf("archive exceeds size ceiling: %d > %d bytes", len(data), g.cfg.MaxArchiveBytes))
		report.StructureValid = false
		report.InstallationCompatible = false
		return report
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		report.AddIssue(fmt.Sprintf("not a readable archive: %v", err))
		report.StructureValid = false
		report.InstallationCompatible = false
		return report
	}
	if len(zr.File) == 0 {
		report.AddIssue("archive contains zero entries")
		report.StructureValid = false
		report.InstallationCompatible = false
		return report
	}

	var manifestEntry *zip.File
	hasDex := false
	hasRes := false
	hasLib := false
	for _, f := range zr.File {
		switch {
		case f.Name == entities.ManifestEntryName:
			manifestEntry = f
		case strings.HasSuffix(f.Name, ".dex"):
			hasDex = true
		case strings.HasPrefix(f.Name, "res/"):
			hasRes = true
		case strings.HasPrefix(f.Name, "lib/"):
			hasLib = true
		}
	}

	if manifestEntry == nil {
		report.AddIssue("archive is missing the AndroidManifest.xml entry")
		report.ManifestValid = false
		report.InstallationCompatible = false
	}
	if !hasDex {
		report.AddWarning("archive contains no .dex entries")
		report.DexValid = false
	}
	if !hasRes {
		g.logger.Info("archive has no res/ directory")
	}
	if !hasLib {
		g.logger.Info("archive has no lib/ directory")
	}

	unreadable := g.sampleEntries(zr)
	if unreadable > g.cfg.CorruptSampleLimit {
		report.AddIssue(fmt.Sprintf("%d of %d sampled entries are unreadable, archive is likely corrupt", unreadable, g.cfg.SampleBudget))
		report.StructureValid = false
		report.InstallationCompatible = false
	} else if unreadable > 0 {
		report.AddWarning(fmt.Sprintf("%d sampled entries failed decompression", unreadable))
	}

	if manifestEntry != nil {
		g.probeManifest(manifestEntry, data, report)
	}

	return report
}

// sampleEntries probes a bounded prefix of entries with a full
// decompression pass and counts the failures.
func (g *packageInspector) sampleEntries(zr *zip.Reader) int {
	unreadable := 0
	sampled := 0
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if sampled >= g.cfg.SampleBudget {
			break
		}
		sampled++
		rc, err := f.Open()
		if err != nil {
			unreadable++
			continue
		}
		if _, err := io.Copy(io.Discard, rc); err != nil {
			unreadable++
		}
		//nolint:errcheck // Close on read-only stream
		rc.Close()
	}
	return unreadable
}

// probeManifest records informational metadata about the original
// manifest. Binary manifests are decoded with androidbinary when
// possible; failures are ignored since the pipeline replaces binary
// manifests wholesale anyway.
func (g *packageInspector) probeManifest(manifestEntry *zip.File, archive []byte, report *entities.ValidationReport) {
	head := make([]byte, 2)
	rc, err := manifestEntry.Open()
	if err != nil {
		return
	}
	n, _ := io.ReadFull(rc, head)
	//nolint:errcheck // Close on read-only stream
	rc.Close()
	if n < 2 {
		return
	}

	if !entities.IsBinaryManifest(head) {
		report.Metadata["manifest.format"] = "text"
		return
	}
	report.Metadata["manifest.format"] = "binary"

	defer func() {
		// androidbinary panics on malformed chunks; a failed probe
		// only costs the informational metadata.
		_ = recover()
	}()

	pkg, err := apk.OpenZipReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		g.logger.Debug("binary manifest probe failed", interfaces.F("error", err))
		return
	}
	manifest := pkg.Manifest()
	report.Metadata["origin.package"] = manifest.Package.MustString()
	if target, err := manifest.SDK.Target.Int32(); err == nil {
		report.Metadata["origin.targetSdk"] = strconv.Itoa(int(target))
	}
}
