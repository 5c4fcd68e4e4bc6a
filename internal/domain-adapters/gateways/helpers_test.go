package gateways

import (
	"archive/zip"
	"bytes"
	"sort"
	"testing"
)

const testManifestXML = `<?xml version="1.0" encoding="utf-8"?>
<manifest xmlns:android="http://schemas.android.com/apk/res/android" package="com.example.app">
    <application android:name=".App" android:debuggable="false">
        <activity android:name=".MainActivity" />
    </application>
</manifest>`

// elfStub is the smallest payload the auditor accepts as a library
var elfStub = []byte{0x7F, 'E', 'L', 'F', 0, 0, 0, 0}

// buildArchive writes a deterministic test archive from name to content
func buildArchive(t *testing.T, entries map[string][]byte) []byte {
	t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry %s: %v", name, err)
		}
		if _, err := w.Write(entries[name]); err != nil {
			t.Fatalf("Failed to write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close archive: %v", err)
	}
	return buf.Bytes()
}

// buildArchiveWithCorrupt appends entries whose compressed streams are
// garbage, so decompression fails but the raw bytes stay recoverable.
func buildArchiveWithCorrupt(t *testing.T, entries map[string][]byte, corrupt []string) []byte {
	t.Helper()

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, name := range names {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry %s: %v", name, err)
		}
		if _, err := w.Write(entries[name]); err != nil {
			t.Fatalf("Failed to write entry %s: %v", name, err)
		}
	}
	for _, name := range corrupt {
		garbage := []byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0xff}
		w, err := zw.CreateRaw(&zip.FileHeader{
			Name:               name,
			Method:             zip.Deflate,
			CRC32:              0x1234abcd,
			CompressedSize64:   uint64(len(garbage)),
			UncompressedSize64: 64,
		})
		if err != nil {
			t.Fatalf("Failed to create corrupt entry %s: %v", name, err)
		}
		if _, err := w.Write(garbage); err != nil {
			t.Fatalf("Failed to write corrupt entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("Failed to close archive: %v", err)
	}
	return buf.Bytes()
}

// validPackageEntries is a minimal but structurally complete package
func validPackageEntries() map[string][]byte {
	return map[string][]byte{
		"AndroidManifest.xml":      []byte(testManifestXML),
		"classes.dex":              []byte("dex\n035\x00fake"),
		"resources.arsc":           []byte{0x02, 0x00, 0x0c, 0x00},
		"res/values/strings.xml":   []byte(`<resources />`),
		"lib/arm64-v8a/libnat.so":  elfStub,
		"META-INF/MANIFEST.MF":     []byte("Manifest-Version: 1.0\r\n"),
		"META-INF/CERT.SF":         []byte("Signature-Version: 1.0\r\n"),
		"META-INF/CERT.RSA":        {0x30, 0x82},
		"assets/data.bin":          []byte("payload"),
	}
}

// readArchiveNames lists the entry names of an assembled archive
func readArchiveNames(t *testing.T, data []byte) []string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Failed to read assembled archive: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}
