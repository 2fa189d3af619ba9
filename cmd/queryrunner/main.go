// Package main is the entry point for the queryrunner CLI binary.
package main

import (
	"os"

	cli "queryrunner/pkg/cli"
)

func main() {
	os.Exit(cli.Execute())
}
