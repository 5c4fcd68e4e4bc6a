package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/halcyonlabs/apkforge/internal/domain-adapters/gateways"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/logging"
)

func runInspect(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	var (
		logLevel = fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: apkforge inspect <input.apk> [options]

Validate the structure of an APK without modifying it.

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

	input, err := os.ReadFile(inputPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewLogrusLogger(*logLevel)
	inspector := gateways.NewPackageInspector(gateways.InspectorConfig{}, logger)
	report := inspector.Validate(ctx, input)

	fmt.Printf("Inspection of %s\n\n", inputPath)
	fmt.Printf("  Structure:    %s\n", okOrBad(report.StructureValid))
	fmt.Printf("  Manifest:     %s\n", okOrBad(report.ManifestValid))
	fmt.Printf("  Bytecode:     %s\n", okOrBad(report.DexValid))
	fmt.Printf("  Resources:    %s\n", okOrBad(report.ResourcesValid))
	fmt.Printf("  Native libs:  %s\n", okOrBad(report.NativeLibsValid))
	fmt.Printf("  Installable:  %s\n", okOrBad(report.InstallationCompatible))

	if len(report.Metadata) > 0 {
		fmt.Println("\nMetadata:")
		keys := make([]string, 0, len(report.Metadata))
		for k := range report.Metadata {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("  %s = %s\n", k, report.Metadata[k])
		}
	}

	if len(report.Issues) > 0 || len(report.Warnings) > 0 {
		fmt.Println()
		printFindings(report)
	}

	if report.Fatal() {
		os.Exit(1)
	}
	fmt.Println("\n✅ No fatal issues")
}

func okOrBad(ok bool) string {
	if ok {
		return "ok"
	}
	return "FAILED"
}
