package main

import (
	"context"
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	ctx := context.Background()
	command := os.Args[1]

	// Dispatch to subcommand
	switch command {
	case "repack":
		runRepack(ctx, os.Args[2:])
	case "inspect":
		runInspect(ctx, os.Args[2:])
	case "audit":
		runAudit(ctx, os.Args[2:])
	case "sign":
		runSign(ctx, os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`apkforge - APK repackaging and instrumentation pipeline

Usage:
  apkforge <command> [options]

Commands:
  repack   Repackage an APK with the debug/sandbox instrumentation overlay
  inspect  Validate an APK's structure without modifying it
  audit    Check the native libraries inside an APK
  sign     Re-sign an APK with the shared development identity

Use "apkforge <command> --help" for more information about a command.`)
}
