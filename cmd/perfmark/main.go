package main

import (
	"os"

	"github.com/psantana5/perfmark/cmd/perfmark/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
