// Package main provides the apkforge CLI for repackaging Android packages.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/halcyonlabs/apkforge/internal/domain-adapters/gateways"
	orchestrators "github.com/halcyonlabs/apkforge/internal/domain-orchestrators"
	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	ifgateways "github.com/halcyonlabs/apkforge/internal/domain/interfaces/gateways"
	"github.com/halcyonlabs/apkforge/internal/domain/services"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/apksigner"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/gpg"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/keystore"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/logging"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/yaml"
)

func runRepack(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("repack", flag.ExitOnError)
	var (
		mode          = fs.String("mode", "debug", "Instrumentation mode: debug, sandbox or combined")
		output        = fs.String("out", "", "Output path (default: <input>-repacked.apk)")
		scratchDir    = fs.String("scratch-dir", "", "Scratch directory for extraction and assembly")
		overlayConfig = fs.String("overlay-config", "", "YAML file with extra overlay declarations")
		storageDir    = fs.String("storage-dir", "", "Optional local storage root for uploads")
		bucket        = fs.String("bucket", "repacked", "Storage bucket used with --storage-dir")
		keystoreDir   = fs.String("keystore-dir", "", "Directory holding the signing identity")
		apksignerPath = fs.String("apksigner", "apksigner", "Path to the apksigner binary")
		jarsignerPath = fs.String("jarsigner", "jarsigner", "Path to the jarsigner binary")
		provenanceSig = fs.String("provenance-sig", "", "Detached PGP signature over the input")
		keyringPath   = fs.String("keyring", "", "PGP keyring used with --provenance-sig")
		logLevel      = fs.String("log-level", "info", "Log level: debug, info, warn, error")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: apkforge repack <input.apk> [options]

Repackage an APK with the instrumentation overlay for the selected mode,
then re-sign it with the shared development identity.

Examples:
  apkforge repack app.apk
  apkforge repack app.apk --mode sandbox --out app-sandbox.apk
  apkforge repack app.apk --overlay-config extra.yaml
  apkforge repack app.apk --provenance-sig app.apk.asc --keyring keys.asc

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		os.Exit(1)
	}
	if fs.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Error: input APK path is required\n\n")
		fs.Usage()
		os.Exit(1)
	}
	inputPath := fs.Arg(0)

	parsedMode, err := entities.ParseMode(*mode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	input, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	// Verify provenance before touching the package
	if *provenanceSig != "" {
		if *keyringPath == "" {
			fmt.Fprintf(os.Stderr, "Error: --keyring is required with --provenance-sig\n")
			os.Exit(1)
		}
		verifier := gpg.NewVerifier()
		if err := verifier.ImportKeyFromFile(*keyringPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error importing keyring: %v\n", err)
			os.Exit(1)
		}
		if err := verifier.VerifyDetached(inputPath, *provenanceSig); err != nil {
			fmt.Fprintf(os.Stderr, "Error: provenance verification failed: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("🔏 Provenance signature verified")
	}

	// Assemble the overlay set for the mode, plus any configured extras
	overlay := services.OverlayForMode(parsedMode)
	if *overlayConfig != "" {
		extra, err := yaml.NewOverlayParser().ParseFile(*overlayConfig)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading overlay config: %v\n", err)
			os.Exit(1)
		}
		overlay = overlay.Merge(extra)
	}

	logger := logging.NewLogrusLogger(*logLevel)

	scratch := *scratchDir
	if scratch == "" {
		scratch = filepath.Join(os.TempDir(), "apkforge")
	}
	ksDir := *keystoreDir
	if ksDir == "" {
		ksDir = filepath.Join(scratch, "keystore")
	}

	tool := apksigner.NewTool()
	tool.Path = *apksignerPath
	tool.JarsignerPath = *jarsignerPath

	var storage ifgateways.Storage
	if *storageDir != "" {
		storage = gateways.NewFsStorage(*storageDir, logger)
	}

	orch := orchestrators.NewRepackOrchestrator(
		gateways.NewPackageInspector(gateways.InspectorConfig{}, logger),
		gateways.NewArchiveLoader(),
		gateways.NewExtractionEngine(logger),
		gateways.NewManifestResolver(overlay, logger),
		gateways.NewResourceOverlayBuilder(logger),
		gateways.NewNativeLibraryAuditor(logger),
		gateways.NewPackageAssembler(logger),
		gateways.NewPackageSigner(tool, keystore.NewProvider(ksDir), logger),
		orchestrators.RepackOrchestratorConfig{
			ScratchRoot: scratch,
			Overlay:     overlay,
			Storage:     storage,
			Records:     gateways.NewMemoryRecords(),
			Logger:      logger,
		},
	)

	uploadBucket := ""
	if storage != nil {
		uploadBucket = *bucket
	}
	result, err := orch.Repack(ctx, orchestrators.RepackRequest{
		Input:        input,
		Source:       inputPath,
		Mode:         parsedMode,
		UploadBucket: uploadBucket,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, result.GetSummary())
		printFindings(result.Report)
		os.Exit(1)
	}

	outPath := *output
	if outPath == "" {
		outPath = strings.TrimSuffix(inputPath, ".apk") + "-repacked.apk"
	}
	if err := os.WriteFile(outPath, result.Output, 0640); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(result.GetSummary())
	printFindings(result.Report)
	fmt.Printf("\n✅ Wrote %s\n", outPath)
}

func printFindings(report *entities.ValidationReport) {
	if report == nil {
		return
	}
	for _, issue := range report.Issues {
		fmt.Printf("  ❌ %s\n", issue)
	}
	for _, warning := range report.Warnings {
		fmt.Printf("  ⚠️  %s\n", warning)
	}
}
