package main

import (
	"fmt"
	"os"
)

// Exit codes
const (
	ExitSuccess          = 0
	ExitGeneralError     = 1
	ExitInvalidArgs      = 2
	ExitNetworkError     = 3
	ExitNotFound         = 4
	ExitStorageError     = 5
	ExitIntegrityError   = 6
	ExitValidationFailed = 7
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		printUsage()
		return ExitInvalidArgs
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "versions":
		return runVersions(cmdArgs)
	case "download":
		return runDownload(cmdArgs)
	case "validate":
		return runValidate(cmdArgs)
	case "help", "-h", "--help":
		printUsage()
		return ExitSuccess
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		return ExitInvalidArgs
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: gridcore <command> [options]

Commands:
  versions  List releases from the version catalogue
  download  Download every file a release needs into the game root
  validate  Check that every file of a release is present and intact
  help      Show this help

Run 'gridcore <command> -h' for command-specific help.`)
}
