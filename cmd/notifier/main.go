package main

import (
	"os"

	"github.com/stormlightlabs/notifier/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
