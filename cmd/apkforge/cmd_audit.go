package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/halcyonlabs/apkforge/internal/domain-adapters/gateways"
	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/logging"
)

func runAudit(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("audit", flag.ExitOnError)
	var (
		logLevel = fs.String("log-level", "warn", "Log level: debug, info, warn, error")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: apkforge audit <input.apk> [options]

Extract an APK to a temporary directory and check every native library
for a valid ELF header.

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
	report := entities.NewValidationReport()

	archive, err := gateways.NewArchiveLoader().Load(input, report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	workTree, err := os.MkdirTemp("", "apkforge-audit-")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	//nolint:errcheck // Best-effort scratch cleanup
	defer os.RemoveAll(workTree)

	if _, err := gateways.NewExtractionEngine(logger).Extract(ctx, archive, workTree, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	libraries, err := gateways.NewNativeLibraryAuditor(logger).Audit(ctx, filepath.Join(workTree, "lib"), report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Native library audit of %s\n\n", inputPath)
	if len(libraries.PerABI) == 0 {
		fmt.Println("  No native libraries (pure bytecode package)")
		return
	}

	abis := make([]string, 0, len(libraries.PerABI))
	for abi := range libraries.PerABI {
		abis = append(abis, abi)
	}
	sort.Strings(abis)
	for _, abi := range abis {
		count := libraries.PerABI[abi]
		fmt.Printf("  %-16s %d/%d valid\n", abi, count.Valid, count.Total)
	}

	if len(report.Warnings) > 0 {
		fmt.Println()
		printFindings(report)
	}
	if !libraries.Valid() {
		os.Exit(1)
	}
	fmt.Println("\n✅ All native libraries valid")
}
