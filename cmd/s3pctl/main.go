package main

import (
	"os"

	"github.com/paradigmatech/gos3p/cmd/s3pctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		commands.PrintErr("Error: %v", err)
		os.Exit(1)
	}
}
