package entities

// ValidationReport accumulates the findings of one pipeline run.
// Issues are fatal, warnings are not; both lists are append-only.
type ValidationReport struct {
	Issues   []string
	Warnings []string

	StructureValid         bool
	ManifestValid          bool
	DexValid               bool
	ResourcesValid         bool
	NativeLibsValid        bool
	InstallationCompatible bool

	// Metadata carries informational facts recovered during inspection
	// (original package name, target SDK) keyed by a short label.
	Metadata map[string]string
}

// NewValidationReport creates an empty report with optimistic category flags
func NewValidationReport() *ValidationReport {
	return &ValidationReport{
		StructureValid:         true,
		ManifestValid:          true,
		DexValid:               true,
		ResourcesValid:         true,
		NativeLibsValid:        true,
		InstallationCompatible: true,
		Metadata:               make(map[string]string),
	}
}

// AddIssue records a fatal finding
func (r *ValidationReport) AddIssue(msg string) {
	r.Issues = append(r.Issues, msg)
}

// AddWarning records a non-fatal finding
func (r *ValidationReport) AddWarning(msg string) {
	r.Warnings = append(r.Warnings, msg)
}

// Fatal reports whether any issue has been recorded
func (r *ValidationReport) Fatal() bool {
	return len(r.Issues) > 0
}
