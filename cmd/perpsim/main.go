package main

import (
	"os"

	"perpsim/cmd/perpsim/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
