package main

import (
	"os"

	"github.com/spherical/drawn-weight/cmd/drawn-weight/commands"
	"github.com/spherical/drawn-weight/cmd/drawn-weight/ui"
)

func main() {
	if err := commands.Execute(); err != nil {
		ui.Error("%v", err)
		os.Exit(1)
	}
}
