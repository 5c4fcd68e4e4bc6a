package gateways

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/domain/interfaces"
)

// storedSuffixes lists entry types that must not be recompressed; the
// installer memory-maps native libraries and resources.arsc, and the
// media formats are already compressed.
var storedSuffixes = []string{".so", ".png", ".jpg", ".jpeg", ".webp", ".mp4"}

// packageAssembler re-packs the work tree and the untouched original
// entries into the output archive. Original signature entries are
// stripped proactively: any content mutation invalidates them anyway,
// and stale signature files confuse installers.
type packageAssembler struct {
	logger interfaces.Logger
}

// NewPackageAssembler creates a new assembler
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewPackageAssembler(logger interfaces.Logger) *packageAssembler {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &packageAssembler{logger: logger}
}

// Assemble writes the output archive bytes. Entries named in modified
// are read from workTree and replace their originals in place; new
// names are appended in sorted order so output ordering stays
// deterministic. All other original entries pass through unchanged,
// including ones that never decompressed (their raw streams are carried
// verbatim).
func (g *packageAssembler) Assemble(_ context.Context, workTree string, archive *entities.PackageArchive, modified []string) ([]byte, error) {
	modSet := make(map[string]bool, len(modified))
	for _, name := range modified {
		modSet[name] = true
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	written := make(map[string]bool)
	for i := range archive.Entries {
		entry := &archive.Entries[i]
		if entry.IsDirectory || isSignatureEntry(entry.Name) {
			continue
		}
		if modSet[entry.Name] {
			if err := g.writeFromTree(zw, workTree, entry.Name); err != nil {
				return nil, err
			}
			written[entry.Name] = true
			continue
		}
		if err := writeOriginal(zw, entry); err != nil {
			return nil, fmt.Errorf("failed to carry entry %q: %w", entry.Name, err)
		}
	}

	// Injected files that had no original counterpart
	var added []string
	for _, name := range modified {
		if !written[name] {
			added = append(added, name)
		}
	}
	sort.Strings(added)
	for _, name := range added {
		if err := g.writeFromTree(zw, workTree, name); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}
	g.logger.Info("archive assembled",
		interfaces.F("original", len(archive.Entries)),
		interfaces.F("modified", len(modified)))
	return buf.Bytes(), nil
}

// writeFromTree adds one work-tree file under its archive entry name
func (g *packageAssembler) writeFromTree(zw *zip.Writer, workTree, name string) error {
	data, err := os.ReadFile(filepath.Join(workTree, filepath.FromSlash(name)))
	if err != nil {
		return fmt.Errorf("failed to read modified entry %q: %w", name, err)
	}
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: compressionMethod(name),
	})
	if err != nil {
		return fmt.Errorf("failed to create entry %q: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write entry %q: %w", name, err)
	}
	return nil
}

// writeOriginal carries an untouched entry into the output. Readable
// entries are rewritten under the compression policy; unreadable ones
// keep their original raw stream and header fields.
func writeOriginal(zw *zip.Writer, entry *entities.Entry) error {
	if entry.Readable() {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   entry.Name,
			Method: compressionMethod(entry.Name),
		})
		if err != nil {
			return err
		}
		_, err = w.Write(entry.Data)
		return err
	}

	if len(entry.Compressed) == 0 {
		// Nothing recoverable; preserve the name as an empty entry
		_, err := zw.CreateHeader(&zip.FileHeader{Name: entry.Name, Method: zip.Store})
		return err
	}

	fh := &zip.FileHeader{
		Name:               entry.Name,
		Method:             entry.Method,
		CRC32:              entry.CRC32,
		CompressedSize64:   entry.CompressedSize,
		UncompressedSize64: entry.UncompressedSize,
	}
	w, err := zw.CreateRaw(fh)
	if err != nil {
		return err
	}
	_, err = w.Write(entry.Compressed)
	return err
}

// compressionMethod applies the store-vs-deflate policy
func compressionMethod(name string) uint16 {
	if strings.HasSuffix(name, "resources.arsc") {
		return zip.Store
	}
	for _, suffix := range storedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return zip.Store
		}
	}
	return zip.Deflate
}

// isSignatureEntry matches the original signing artifacts that must be
// stripped before re-signing.
func isSignatureEntry(name string) bool {
	if name == "META-INF" || strings.HasPrefix(name, "META-INF/") {
		return true
	}
	upper := strings.ToUpper(name)
	return strings.HasSuffix(upper, ".SF") || strings.HasSuffix(upper, ".RSA") ||
		strings.HasSuffix(upper, ".DSA") || strings.HasSuffix(upper, "MANIFEST.MF")
}
