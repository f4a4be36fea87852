package main

import (
	"os"

	"github.com/kbukum/lifecycle/cmd/lifecycled/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
