// Package orchestrators coordinates the repackaging pipeline across the
// stage gateways.
package orchestrators

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/domain/interfaces"
	ifgateways "github.com/halcyonlabs/apkforge/internal/domain/interfaces/gateways"
	"github.com/halcyonlabs/apkforge/internal/domain/services"
)

// Inspector validates the raw input container
type Inspector interface {
	Validate(ctx context.Context, data []byte) *entities.ValidationReport
}

// ArchiveLoader parses the container into its entry model
type ArchiveLoader interface {
	Load(data []byte, report *entities.ValidationReport) (*entities.PackageArchive, error)
}

// Extractor materializes archive entries below a scratch tree
type Extractor interface {
	Extract(ctx context.Context, archive *entities.PackageArchive, destRoot string, report *entities.ValidationReport) (entities.ExtractionStats, error)
}

// ManifestResolver produces the replacement manifest document
type ManifestResolver interface {
	Resolve(ctx context.Context, manifestBytes []byte, mode entities.Mode, report *entities.ValidationReport) (*entities.ManifestDocument, error)
}

// OverlayBuilder writes the synthetic resource overlay into the work tree
type OverlayBuilder interface {
	Build(ctx context.Context, workTree string, mode entities.Mode, set entities.OverlaySet) ([]string, error)
}

// LibraryAuditor checks native libraries in the extracted tree
type LibraryAuditor interface {
	Audit(ctx context.Context, libRoot string, report *entities.ValidationReport) (*entities.LibraryReport, error)
}

// Assembler rebuilds the output container from the work tree and the
// untouched original entries
type Assembler interface {
	Assemble(ctx context.Context, workTree string, archive *entities.PackageArchive, modified []string) ([]byte, error)
}

// Signer signs the assembled container in place
type Signer interface {
	Sign(ctx context.Context, apkPath string, report *entities.ValidationReport) (entities.SignState, error)
}

// RepackOrchestrator runs the full pipeline: inspect, extract, resolve
// the manifest, overlay resources, audit native libraries, assemble and
// sign. Stage transitions check for cancellation; a fatal error freezes
// the result at the failing stage.
type RepackOrchestrator struct {
	inspector      Inspector
	loader         ArchiveLoader
	extractor      Extractor
	resolver       ManifestResolver
	overlayBuilder OverlayBuilder
	auditor        LibraryAuditor
	assembler      Assembler
	signer         Signer
	storage        ifgateways.Storage
	records        ifgateways.ConversionRecords
	overlay        entities.OverlaySet
	scratchRoot    string
	logger         interfaces.Logger
}

// RepackOrchestratorConfig holds the orchestrator wiring that is not a
// stage gateway. Storage and Records are optional collaborators.
type RepackOrchestratorConfig struct {
	ScratchRoot string
	Overlay     entities.OverlaySet
	Storage     ifgateways.Storage
	Records     ifgateways.ConversionRecords
	Logger      interfaces.Logger
}

// NewRepackOrchestrator creates a new repack orchestrator
func NewRepackOrchestrator(
	inspector Inspector,
	loader ArchiveLoader,
	extractor Extractor,
	resolver ManifestResolver,
	overlayBuilder OverlayBuilder,
	auditor LibraryAuditor,
	assembler Assembler,
	signer Signer,
	config RepackOrchestratorConfig,
) *RepackOrchestrator {
	scratchRoot := config.ScratchRoot
	if scratchRoot == "" {
		scratchRoot = filepath.Join(os.TempDir(), "apkforge")
	}
	logger := config.Logger
	if logger == nil {
		logger = &interfaces.NoOpLogger{}
	}

	return &RepackOrchestrator{
		inspector:      inspector,
		loader:         loader,
		extractor:      extractor,
		resolver:       resolver,
		overlayBuilder: overlayBuilder,
		auditor:        auditor,
		assembler:      assembler,
		signer:         signer,
		storage:        config.Storage,
		records:        config.Records,
		overlay:        config.Overlay,
		scratchRoot:    scratchRoot,
		logger:         logger,
	}
}

// RepackRequest describes one repackaging job
type RepackRequest struct {
	// Input is the raw container bytes
	Input []byte

	// Source labels where the input came from, for record keeping
	Source string

	// Mode selects the instrumentation profile
	Mode entities.Mode

	// UploadBucket, when set together with a storage collaborator,
	// receives a copy of the signed output
	UploadBucket string
}

// RepackResult contains the result of a repackaging run
type RepackResult struct {
	RequestID string
	Stage     entities.Stage
	Report    *entities.ValidationReport
	Stats     entities.ExtractionStats
	Libraries *entities.LibraryReport
	SignState entities.SignState

	// OutputPath is the signed archive on disk; Output its bytes
	OutputPath string
	Output     []byte

	// UploadURL is set when the output was copied to storage
	UploadURL string

	ExtractDuration time.Duration
	SignDuration    time.Duration
	TotalDuration   time.Duration
	Success         bool
	Error           error
}

// Repack executes the complete pipeline for one request
func (o *RepackOrchestrator) Repack(ctx context.Context, req RepackRequest) (*RepackResult, error) {
	startTime := time.Now()
	result := &RepackResult{
		RequestID: uuid.NewString(),
		Stage:     entities.StageInspecting,
	}
	defer func() { result.TotalDuration = time.Since(startTime) }()

	recordID := o.openRecord(ctx, req, result.RequestID)

	// Step 1: Inspect the raw container
	report := o.inspector.Validate(ctx, req.Input)
	result.Report = report
	if report.Fatal() {
		return o.fail(ctx, result, recordID,
			entities.NewPipelineError(entities.StageInspecting, "inspection found fatal issues: "+report.Issues[0]))
	}

	// Step 2: Extract into the scratch tree
	if err := o.advance(ctx, result, entities.StageExtracting); err != nil {
		return o.fail(ctx, result, recordID, err)
	}
	scratch := filepath.Join(o.scratchRoot, result.RequestID)
	workTree := filepath.Join(scratch, "extract")

	archive, err := o.loader.Load(req.Input, report)
	if err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageExtracting, "failed to load archive", err))
	}
	extractStart := time.Now()
	stats, err := o.extractor.Extract(ctx, archive, workTree, report)
	result.Stats = stats
	result.ExtractDuration = time.Since(extractStart)
	if err != nil {
		return o.fail(ctx, result, recordID, err)
	}

	// Step 3: Resolve and rewrite the manifest
	if err := o.advance(ctx, result, entities.StageResolvingManifest); err != nil {
		return o.fail(ctx, result, recordID, err)
	}
	manifestBytes, err := os.ReadFile(filepath.Join(workTree, entities.ManifestEntryName))
	if err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageResolvingManifest, "failed to read extracted manifest", err))
	}
	doc, err := o.resolver.Resolve(ctx, manifestBytes, req.Mode, report)
	if err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageResolvingManifest, "failed to resolve manifest", err))
	}
	serialized := services.SerializeManifest(doc.Root)
	if err := os.WriteFile(filepath.Join(workTree, entities.ManifestEntryName), serialized, 0640); err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageResolvingManifest, "failed to write resolved manifest", err))
	}
	modified := []string{entities.ManifestEntryName}

	// Step 4: Write the resource overlay and the repack marker
	if err := o.advance(ctx, result, entities.StageOverlaying); err != nil {
		return o.fail(ctx, result, recordID, err)
	}
	overlayFiles, err := o.overlayBuilder.Build(ctx, workTree, req.Mode, o.overlay)
	if err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageOverlaying, "failed to build resource overlay", err))
	}
	modified = append(modified, overlayFiles...)

	marker, err := o.writeMarker(workTree, result.RequestID, req.Mode)
	if err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageOverlaying, "failed to write repack marker", err))
	}
	modified = append(modified, marker)

	// Step 5: Audit native libraries
	if err := o.advance(ctx, result, entities.StageAuditing); err != nil {
		return o.fail(ctx, result, recordID, err)
	}
	libraries, err := o.auditor.Audit(ctx, filepath.Join(workTree, "lib"), report)
	if err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageAuditing, "failed to audit native libraries", err))
	}
	result.Libraries = libraries

	// Step 6: Assemble the output container
	if err := o.advance(ctx, result, entities.StageAssembling); err != nil {
		return o.fail(ctx, result, recordID, err)
	}
	assembled, err := o.assembler.Assemble(ctx, workTree, archive, modified)
	if err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageAssembling, "failed to assemble archive", err))
	}
	outPath := filepath.Join(scratch, "out", "repacked.apk")
	if err := os.MkdirAll(filepath.Dir(outPath), 0750); err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageAssembling, "failed to create output directory", err))
	}
	if err := os.WriteFile(outPath, assembled, 0640); err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageAssembling, "failed to write output archive", err))
	}
	result.OutputPath = outPath

	// Step 7: Sign in place
	if err := o.advance(ctx, result, entities.StageSigning); err != nil {
		return o.fail(ctx, result, recordID, err)
	}
	signStart := time.Now()
	signState, err := o.signer.Sign(ctx, outPath, report)
	result.SignDuration = time.Since(signStart)
	result.SignState = signState
	if err != nil {
		return o.fail(ctx, result, recordID, err)
	}

	signed, err := os.ReadFile(outPath)
	if err != nil {
		return o.fail(ctx, result, recordID, entities.WrapPipelineError(entities.StageSigning, "failed to read signed archive", err))
	}
	result.Output = signed

	// Step 8: Optional upload
	if o.storage != nil && req.UploadBucket != "" {
		url, uploadErr := o.storage.Upload(ctx, req.UploadBucket, result.RequestID+"/repacked.apk", signed)
		if uploadErr != nil {
			report.AddWarning(fmt.Sprintf("failed to upload output: %v", uploadErr))
		} else {
			result.UploadURL = url
		}
	}

	result.Stage = entities.StageDone
	result.Success = true
	o.closeRecord(ctx, recordID, map[string]string{
		"status":     "done",
		"stage":      string(entities.StageDone),
		"sign_state": string(signState),
		"url":        result.UploadURL,
	})
	o.logger.Info("repack complete",
		interfaces.F("request", result.RequestID),
		interfaces.F("mode", string(req.Mode)),
		interfaces.F("sign_state", string(signState)),
		interfaces.F("warnings", len(report.Warnings)))
	return result, nil
}

// advance moves the result to the next stage, honoring cancellation
func (o *RepackOrchestrator) advance(ctx context.Context, result *RepackResult, stage entities.Stage) error {
	if err := ctx.Err(); err != nil {
		return entities.WrapPipelineError(result.Stage, "pipeline canceled", err)
	}
	result.Stage = stage
	o.logger.Debug("stage transition", interfaces.F("request", result.RequestID), interfaces.F("stage", string(stage)))
	return nil
}

// fail freezes the result at the failing stage and closes the record
func (o *RepackOrchestrator) fail(ctx context.Context, result *RepackResult, recordID string, err error) (*RepackResult, error) {
	o.logger.Error("repack failed",
		interfaces.F("request", result.RequestID),
		interfaces.F("stage", string(result.Stage)),
		interfaces.F("error", err))
	result.Stage = entities.StageFailed
	result.Error = err
	o.closeRecord(ctx, recordID, map[string]string{
		"status": "failed",
		"error":  err.Error(),
	})
	return result, err
}

// writeMarker drops the repack marker asset into the work tree
func (o *RepackOrchestrator) writeMarker(workTree, requestID string, mode entities.Mode) (string, error) {
	const name = "assets/apkforge/REPACKED.txt"
	dest := filepath.Join(workTree, filepath.FromSlash(name))
	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return "", err
	}
	content := fmt.Sprintf("request: %s\nmode: %s\nrepacked-at: %s\n",
		requestID, mode, time.Now().UTC().Format(time.RFC3339))
	if err := os.WriteFile(dest, []byte(content), 0640); err != nil {
		return "", err
	}
	return name, nil
}

// openRecord starts the job record; record failures never block the run
func (o *RepackOrchestrator) openRecord(ctx context.Context, req RepackRequest, requestID string) string {
	if o.records == nil {
		return ""
	}
	record, err := o.records.Create(ctx, map[string]string{
		"request": requestID,
		"source":  req.Source,
		"mode":    string(req.Mode),
	})
	if err != nil {
		o.logger.Warn("failed to create conversion record", interfaces.F("error", err))
		return ""
	}
	if _, err := o.records.Update(ctx, record.ID, map[string]string{"status": "processing"}); err != nil {
		o.logger.Warn("failed to update conversion record", interfaces.F("error", err))
	}
	return record.ID
}

func (o *RepackOrchestrator) closeRecord(ctx context.Context, recordID string, fields map[string]string) {
	if o.records == nil || recordID == "" {
		return
	}
	if _, err := o.records.Update(ctx, recordID, fields); err != nil {
		o.logger.Warn("failed to close conversion record", interfaces.F("error", err))
	}
}

// GetSummary returns a human-readable summary of the run
func (r *RepackResult) GetSummary() string {
	if !r.Success {
		return fmt.Sprintf("Repack failed at %s: %v", r.Stage, r.Error)
	}

	summary := fmt.Sprintf(`Repack successful!
Request: %s
Entries: %d extracted, %d recovered, %d skipped
Signing: %s
Extract: %v
Sign: %v
Total: %v`,
		r.RequestID,
		r.Stats.Extracted, r.Stats.Recovered, r.Stats.Skipped,
		r.SignState,
		r.ExtractDuration,
		r.SignDuration,
		r.TotalDuration,
	)
	if r.UploadURL != "" {
		summary += "\nUploaded: " + r.UploadURL
	}
	if len(r.Report.Warnings) > 0 {
		summary += fmt.Sprintf("\nWarnings: %d", len(r.Report.Warnings))
	}
	return summary
}
