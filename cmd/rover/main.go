package main

import (
	"os"

	"github.com/sightline/go-rover/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
