package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/halcyonlabs/apkforge/internal/domain-adapters/gateways"
	"github.com/halcyonlabs/apkforge/internal/domain/entities"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/apksigner"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/keystore"
	"github.com/halcyonlabs/apkforge/internal/external-adapters/logging"
)

func runSign(ctx context.Context, args []string) {
	fs := flag.NewFlagSet("sign", flag.ExitOnError)
	var (
		output        = fs.String("out", "", "Output path (default: sign in place)")
		keystoreDir   = fs.String("keystore-dir", "", "Directory holding the signing identity")
		apksignerPath = fs.String("apksigner", "apksigner", "Path to the apksigner binary")
		jarsignerPath = fs.String("jarsigner", "jarsigner", "Path to the jarsigner binary")
		logLevel      = fs.String("log-level", "info", "Log level: debug, info, warn, error")
	)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: apkforge sign <input.apk> [options]

Re-sign an APK with the shared development identity. Falls back to a
structural signature when no signing tool is installed.

Examples:
  apkforge sign app-repacked.apk
  apkforge sign app-repacked.apk --out app-signed.apk

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

	logger := logging.NewLogrusLogger(*logLevel)

	ksDir := *keystoreDir
	if ksDir == "" {
		ksDir = filepath.Join(os.TempDir(), "apkforge", "keystore")
	}

	tool := apksigner.NewTool()
	tool.Path = *apksignerPath
	tool.JarsignerPath = *jarsignerPath

	// Signing happens in place, so copy first when a separate output is asked for
	target := inputPath
	if *output != "" {
		data, err := os.ReadFile(inputPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
			os.Exit(1)
		}
		if err := os.WriteFile(*output, data, 0640); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing output: %v\n", err)
			os.Exit(1)
		}
		target = *output
	}

	report := entities.NewValidationReport()
	signer := gateways.NewPackageSigner(tool, keystore.NewProvider(ksDir), logger)
	state, err := signer.Sign(ctx, target, report)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: signing failed: %v\n", err)
		printFindings(report)
		os.Exit(1)
	}

	printFindings(report)
	if state == entities.SignFallback {
		fmt.Printf("⚠️  Signed %s with the structural fallback (no signing tool found)\n", target)
		return
	}
	fmt.Printf("✅ Signed %s\n", target)
}
