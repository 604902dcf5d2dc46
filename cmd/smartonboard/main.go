package main

import (
	"os"

	"github.com/nhle/smart-onboard/internal/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
