package main

import (
	"context"
	"os"

	"github.com/charmbracelet/fang"
)

// Version is set at build time
var Version = "dev"

func main() {
	rootCmd.Version = Version
	if err := fang.Execute(context.Background(), rootCmd); err != nil {
		os.Exit(1)
	}
}
