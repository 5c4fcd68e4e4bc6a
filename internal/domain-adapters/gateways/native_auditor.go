package gateways

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/domain/interfaces"
)

// elfMagic is the four-byte header every valid native library starts with
var elfMagic = [4]byte{0x7F, 'E', 'L', 'F'}

// nativeLibraryAuditor validates the ELF header of every lib/<abi>/*.so
// file in the extracted tree. Pure-bytecode apps have no lib/ directory
// and pass trivially.
type nativeLibraryAuditor struct {
	logger interfaces.Logger
}

// NewNativeLibraryAuditor creates a new auditor
//
//nolint:revive // unexported-return: Intentionally returns concrete type for testability
func NewNativeLibraryAuditor(logger interfaces.Logger) *nativeLibraryAuditor {
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}
	return &nativeLibraryAuditor{logger: logger}
}

// Audit walks libRoot and tallies valid/total per ABI directory
func (g *nativeLibraryAuditor) Audit(_ context.Context, libRoot string, report *entities.ValidationReport) (*entities.LibraryReport, error) {
	result := &entities.LibraryReport{PerABI: make(map[string]entities.ABICount)}

	abis, err := os.ReadDir(libRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return result, err
	}

	for _, abi := range abis {
		if !abi.IsDir() {
			continue
		}
		count := entities.ABICount{}
		libs, err := os.ReadDir(filepath.Join(libRoot, abi.Name()))
		if err != nil {
			continue
		}
		for _, lib := range libs {
			if lib.IsDir() || !strings.HasSuffix(lib.Name(), ".so") {
				continue
			}
			count.Total++
			path := filepath.Join(libRoot, abi.Name(), lib.Name())
			if hasELFHeader(path) {
				count.Valid++
			} else {
				report.AddWarning("native library failed ELF header check: " + filepath.Join("lib", abi.Name(), lib.Name()))
			}
		}
		if count.Total > 0 {
			result.PerABI[abi.Name()] = count
		}
	}

	if !result.Valid() {
		report.NativeLibsValid = false
	}
	g.logger.Info("native library audit complete", interfaces.F("abis", len(result.PerABI)))
	return result, nil
}

func hasELFHeader(path string) bool {
	//nolint:gosec // G304: Path comes from walking the extraction tree
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	//nolint:errcheck // Close on read-only file
	defer f.Close()

	var magic [4]byte
	if _, err := io.ReadFull(f, magic[:]); err != nil {
		return false
	}
	return magic == elfMagic
}
