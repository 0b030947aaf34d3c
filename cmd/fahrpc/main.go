package main

import (
	"os"

	"github.com/Bandokii/fahrpc/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
