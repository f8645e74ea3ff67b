// Command nas is the entry point for the NAS browser binary. It
// dispatches to the setup, server, and passwd subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/Atharva0177/NAS/internal/cmd/passwd"
	"github.com/Atharva0177/NAS/internal/cmd/server"
	"github.com/Atharva0177/NAS/internal/cmd/setup"
)

func main() {
	if err := run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
}

// run parses argv and invokes the matching subcommand handler.
func run(argv []string) error {
	if len(argv) < 2 {
		usage()
		return fmt.Errorf("missing subcommand")
	}

	switch argv[1] {
	case "setup":
		return setup.Run(argv[2:])
	case "server":
		return server.Run(argv[2:])
	case "passwd":
		return passwd.Run(argv[2:])
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		usage()
		return fmt.Errorf("unknown subcommand: %s", argv[1])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "nas <setup|server|passwd> [flags]")
}
