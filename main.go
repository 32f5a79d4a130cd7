package main

import (
	"os"

	"github.com/easeml/easemlschema/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
