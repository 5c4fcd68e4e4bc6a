package gateways

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/domain/interfaces"
)

// extractionEngine materializes archive entries under a scratch tree.
// A single bad entry never aborts the whole extraction: unreadable
// entries fall back to their raw compressed bytes, and if even that is
// unavailable a zero-length placeholder preserves the tree shape.
type extractionEngine struct {
	logger interfaces.Logger
}

// NewExtractionEngine creates a new extraction engine
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewExtractionEngine(logger interfaces.Logger) *extractionEngine {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &extractionEngine{logger: logger}
}

// Extract writes every non-directory entry below destRoot and verifies
// the critical-path set afterwards. Missing critical files are fatal;
// everything else is a report warning.
func (g *extractionEngine) Extract(_ context.Context, archive *entities.PackageArchive, destRoot string, report *entities.ValidationReport) (entities.ExtractionStats, error) {
	stats := entities.ExtractionStats{}

	if err := os.MkdirAll(destRoot, 0750); err != nil {
		return stats, entities.WrapPipelineError(entities.StageExtracting, "failed to create extraction root", err)
	}

	hadDexEntry := false
	for i := range archive.Entries {
		entry := &archive.Entries[i]
		if entry.IsDirectory {
			continue
		}
		if strings.HasSuffix(entry.Name, ".dex") {
			hadDexEntry = true
		}

		dest, ok := resolveDest(destRoot, entry.Name)
		if !ok {
			report.AddWarning(fmt.Sprintf("skipped entry %q: resolves outside extraction root", entry.Name))
			stats.Skipped++
			continue
		}
		if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
			report.AddWarning(fmt.Sprintf("skipped entry %q: %v", entry.Name, err))
			stats.Skipped++
			continue
		}

		switch {
		case entry.Readable():
			if err := os.WriteFile(dest, entry.Data, 0640); err != nil {
				report.AddWarning(fmt.Sprintf("failed to write entry %q: %v", entry.Name, err))
				stats.Skipped++
				continue
			}
			stats.Extracted++
		case len(entry.Compressed) > 0:
			// Decompression failed; keep the raw stream so the bytes
			// are not lost and the assembler can carry them through.
			if err := os.WriteFile(dest, entry.Compressed, 0640); err != nil {
				report.AddWarning(fmt.Sprintf("failed to write raw bytes for entry %q: %v", entry.Name, err))
				stats.Skipped++
				continue
			}
			report.AddWarning(fmt.Sprintf("recovered entry %q from raw compressed bytes: %s", entry.Name, entry.DecompressErr))
			stats.Recovered++
		default:
			if err := os.WriteFile(dest, nil, 0640); err != nil {
				return stats, entities.WrapPipelineError(entities.StageExtracting, "failed to write placeholder", err)
			}
			report.AddWarning(fmt.Sprintf("wrote placeholder for unreadable entry %q: %s", entry.Name, entry.DecompressErr))
			stats.Skipped++
		}
	}

	if err := g.verifyCriticalPaths(destRoot, hadDexEntry); err != nil {
		return stats, err
	}
	g.logger.Info("extraction complete",
		interfaces.F("extracted", stats.Extracted),
		interfaces.F("recovered", stats.Recovered),
		interfaces.F("skipped", stats.Skipped))
	return stats, nil
}

// verifyCriticalPaths confirms the manifest landed on disk, plus at
// least one .dex when the archive declared any. An archive that never
// had bytecode stays at the inspection warning instead of failing here.
func (g *extractionEngine) verifyCriticalPaths(destRoot string, hadDexEntry bool) error {
	manifestPath := filepath.Join(destRoot, entities.ManifestEntryName)
	if _, err := os.Stat(manifestPath); err != nil {
		return entities.NewPipelineError(entities.StageExtracting, "critical file missing after extraction: AndroidManifest.xml")
	}
	if !hadDexEntry {
		return nil
	}
	found := false
	//nolint:errcheck // Walk errors surface through the found flag
	filepath.Walk(destRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil || info == nil {
			return nil
		}
		if !info.IsDir() && strings.HasSuffix(path, ".dex") {
			found = true
		}
		return nil
	})
	if !found {
		return entities.NewPipelineError(entities.StageExtracting, "critical file missing after extraction: no .dex on disk")
	}
	return nil
}

// resolveDest joins the normalized entry name below destRoot and
// rejects any path that would escape it.
func resolveDest(destRoot, name string) (string, bool) {
	dest := filepath.Join(destRoot, filepath.FromSlash(name))
	rel, err := filepath.Rel(destRoot, dest)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return dest, true
}
