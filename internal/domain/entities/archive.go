// Package entities defines core domain models and data structures.
package entities

// Entry is a single named record inside a package archive.
//
// Data holds the decompressed bytes when decompression succeeded.
// Compressed always holds the raw deflate stream (empty for stored
// entries, where Data and Compressed are the same bytes). When an entry
// could not be decompressed, Data is nil and DecompressErr carries the
// reason so downstream stages can pick a recovery path.
type Entry struct {
	Name             string
	IsDirectory      bool
	Data             []byte
	Compressed       []byte
	Method           uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	DecompressErr    string
}

// Readable reports whether the entry decompressed cleanly
func (e *Entry) Readable() bool {
	return e.DecompressErr == ""
}

// PackageArchive owns the ordered entry set of one input archive.
// Entry names are unique and normalized; ordering matches the container.
type PackageArchive struct {
	Entries []Entry
}

// Lookup returns the entry with the given normalized name, or nil
func (a *PackageArchive) Lookup(name string) *Entry {
	for i := range a.Entries {
		if a.Entries[i].Name == name {
			return &a.Entries[i]
		}
	}
	return nil
}

// ManifestEntryName is the exact entry name every installable package
// must contain.
const ManifestEntryName = "AndroidManifest.xml"

// ExtractionStats summarizes one extraction run
type ExtractionStats struct {
	Extracted int
	Recovered int
	Skipped   int
}

// Total returns the number of non-directory entries processed
func (s ExtractionStats) Total() int {
	return s.Extracted + s.Recovered + s.Skipped
}

// ABICount holds the audit tally for one ABI directory
type ABICount struct {
	Valid int
	Total int
}

// LibraryReport is the result of auditing lib/<abi>/*.so entries.
// An archive without native code yields an empty PerABI map and is valid.
type LibraryReport struct {
	PerABI map[string]ABICount
}

// Valid reports whether every audited library carried an ELF header
func (r *LibraryReport) Valid() bool {
	for _, c := range r.PerABI {
		if c.Valid != c.Total {
			return false
		}
	}
	return true
}
