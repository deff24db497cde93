// Package main is the entry point for the sfschema CLI.
package main

import "github.com/forcegrid/sfschema/internal/cli"

func main() {
	cli.Execute()
}
