// Package gateways provides adapter implementations for the pipeline
// stages and for local stand-ins of the external collaborators.
package gateways

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

// archiveLoader parses raw container bytes into a PackageArchive,
// enforcing the entity invariants: unique normalized entry names that
// never resolve outside an extraction root.
type archiveLoader struct{}

// NewArchiveLoader creates a new archive loader
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewArchiveLoader() *archiveLoader {
	return &archiveLoader{}
}

// Load reads every entry once. Decompression failures do not abort the
// load; the affected entry keeps its raw compressed bytes and an error
// tag so the extraction stage can pick a recovery path.
func (l *archiveLoader) Load(data []byte, report *entities.ValidationReport) (*entities.PackageArchive, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	archive := &entities.PackageArchive{}
	seen := make(map[string]bool, len(zr.File))

	for _, f := range zr.File {
		name, ok := NormalizeEntryName(f.Name)
		if !ok {
			report.AddWarning(fmt.Sprintf("dropped entry with unsafe name %q", f.Name))
			continue
		}
		if seen[name] {
			report.AddWarning(fmt.Sprintf("dropped duplicate entry %q", name))
			continue
		}
		seen[name] = true

		entry := entities.Entry{
			Name:             name,
			IsDirectory:      f.FileInfo().IsDir(),
			Method:           f.Method,
			CRC32:            f.CRC32,
			CompressedSize:   f.CompressedSize64,
			UncompressedSize: f.UncompressedSize64,
		}
		if !entry.IsDirectory {
			entry.Compressed = readRaw(f)
			entry.Data, err = readDecompressed(f)
			if err != nil {
				entry.DecompressErr = err.Error()
			}
		}
		archive.Entries = append(archive.Entries, entry)
	}

	return archive, nil
}

func readDecompressed(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	//nolint:errcheck // Defer close on read-only stream
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, err
	}
	return data, nil
}

func readRaw(f *zip.File) []byte {
	r, err := f.OpenRaw()
	if err != nil {
		return nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil
	}
	return data
}

// NormalizeEntryName cleans a container entry name and reports whether
// it is safe to materialize under an extraction root. Absolute paths
// and names escaping the root are unsafe.
func NormalizeEntryName(name string) (string, bool) {
	name = strings.ReplaceAll(name, `\`, "/")
	cleaned := path.Clean(name)
	if cleaned == "." || cleaned == "/" {
		return "", false
	}
	cleaned = strings.TrimPrefix(cleaned, "/")
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", false
	}
	return cleaned, true
}
