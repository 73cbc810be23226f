package main

import (
	"fmt"
	"os"

	"github.com/marmos91/photoloader/cmd/photoloaderd/commands"
)

// Build-time variables injected via ldflags.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	root := commands.NewRootCommand(version, commit)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
