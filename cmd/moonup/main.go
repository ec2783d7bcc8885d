package main

import (
	"fmt"
	"os"
)

// Version will be set at build time via -ldflags
var Version = "v0.1.0"

func main() {
	// Handle subcommands
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v":
			fmt.Printf("moonup %s\n", Version)
			fmt.Println("MoonBit toolchain manager")
			return
		case "update":
			if err := runUpdate(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "list":
			if err := runList(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "current":
			if err := runCurrent(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "history":
			if err := runHistory(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "rollback":
			if err := runRollback(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "config":
			if err := runConfig(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "mirror":
			if len(os.Args) < 3 {
				fmt.Fprintln(os.Stderr, "Error: mirror subcommand requires an action")
				printMirrorUsage(os.Stderr)
				os.Exit(1)
			}
			var err error
			switch os.Args[2] {
			case "create":
				err = runMirrorCreate(os.Args[3:])
			case "info":
				err = runMirrorInfo(os.Args[3:])
			case "sync":
				err = runMirrorSync(os.Args[3:])
			case "serve":
				err = runMirrorServe(os.Args[3:])
			default:
				fmt.Fprintf(os.Stderr, "Error: unknown mirror action: %s\n", os.Args[2])
				printMirrorUsage(os.Stderr)
				os.Exit(1)
			}
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		case "help", "--help", "-h":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Error: unknown command: %s\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}

	// Default: show help
	printUsage()
}

func printUsage() {
	fmt.Println("moonup - MoonBit toolchain manager")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  moonup update [version]         Install or update the toolchain")
	fmt.Println("  moonup list [--all]             List available versions")
	fmt.Println("  moonup current                  Show the installed version")
	fmt.Println("  moonup history                  Show the install history")
	fmt.Println("  moonup rollback                 Restore the previous installation")
	fmt.Println("  moonup config [action]          Show or change configuration")
	fmt.Println("  moonup mirror <action>          Manage a local release mirror")
	fmt.Println("  moonup --version                Show version information")
	fmt.Println()
	fmt.Println("Run 'moonup <command> --help' for command details.")
}

func printMirrorUsage(w *os.File) {
	fmt.Fprintln(w, "Usage: moonup mirror create <path> [--all | --version <v>]")
	fmt.Fprintln(w, "       moonup mirror info <path>")
	fmt.Fprintln(w, "       moonup mirror sync <path>")
	fmt.Fprintln(w, "       moonup mirror serve <path> [--addr <host:port>]")
}
